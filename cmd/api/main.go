package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/tasq/core/cmd/api/commands"
)

// @title tasq API
// @version 1.0
// @description Task tracking service: filtered task listings, attachment reconciliation and dashboard analytics.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:           "tasq",
		Short:         "tasq API server",
		Long:          `tasq tracks tasks with assignees, attachments and comments, and serves dashboard analytics over them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}

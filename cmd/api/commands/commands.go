package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/tasq/core/internal/adapters/cache"
	"github.com/tasq/core/internal/adapters/repository"
	"github.com/tasq/core/internal/adapters/storage"
	"github.com/tasq/core/internal/application/services"
	"github.com/tasq/core/internal/infrastructure/config"
	"github.com/tasq/core/internal/infrastructure/database"
	"github.com/tasq/core/internal/infrastructure/logger"
	"github.com/tasq/core/internal/infrastructure/server"
)

// Version is overridden at build time with -ldflags
var Version = "dev"

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the tasq API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply up migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 = all)")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return runMigration(cmd, "down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to roll back (0 = all)")

	migrateCmd.AddCommand(upCmd, downCmd, &cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showMigrationVersion(cmd)
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users and mint access tokens for local development",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			return createUser(cmd, name, email, password)
		},
	}
	createUserCmd.Flags().String("name", "", "Display name")
	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("password", "", "User password, at least 8 characters (required)")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			return printToken(cmd, email)
		},
	}
	tokenCmd.Flags().String("email", "", "User email (required)")
	_ = tokenCmd.MarkFlagRequired("email")

	userCmd.AddCommand(createUserCmd, tokenCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print tasq version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("tasq %s\n", Version)
		},
	}
}

func runServer(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	store, err := storage.NewJetStreamStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to connect to attachment storage: %w", err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize attachment bucket: %w", err)
	}

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Warnw("Redis unavailable, dashboard caching disabled", "error", err, "addr", cfg.Redis.GetAddr())
		} else {
			redisCache = cache.New(client, cfg.Redis.Prefix)
			defer redisCache.Close()
		}
	}

	srv, err := server.New(cfg, db, store, redisCache, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	appLogger.Infow("Starting tasq API server",
		"port", cfg.Server.Port,
		"environment", cfg.App.Environment,
		"version", Version,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	appLogger.Infow("Server stopped")
	return nil
}

func newMigrator(cfg *config.Config, db *database.DB) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

func runMigration(cmd *cobra.Command, direction string, steps int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(cfg, db)
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		cmd.Println("No migrations to run")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cmd.Printf("Migration %s completed successfully\n", direction)
	return nil
}

func showMigrationVersion(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	m, err := newMigrator(cfg, db)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		cmd.Println("No migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	cmd.Printf("Current migration version: %d\n", version)
	cmd.Printf("Dirty: %t\n", dirty)
	return nil
}

func newAuthService() (*services.AuthService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	auth := services.NewAuthService(repository.NewUserRepository(db.DB), cfg.JWT, logger.NewNop())
	return auth, func() { db.Close() }, nil
}

func createUser(cmd *cobra.Command, name, email, password string) error {
	auth, closeDB, err := newAuthService()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := auth.CreateUser(cmd.Context(), name, email, password)
	if err != nil {
		return err
	}

	cmd.Printf("User created successfully:\n")
	cmd.Printf("  ID: %s\n", user.ID)
	cmd.Printf("  Email: %s\n", user.Email)
	if user.Name != "" {
		cmd.Printf("  Name: %s\n", user.Name)
	}
	return nil
}

func printToken(cmd *cobra.Command, email string) error {
	auth, closeDB, err := newAuthService()
	if err != nil {
		return err
	}
	defer closeDB()

	token, err := auth.TokenForEmail(cmd.Context(), email)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

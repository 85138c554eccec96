// Package docs holds the Swagger document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "schemes": {{ marshal .Schemes }},
    "paths": {
        "/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "List tasks",
                "description": "Filtered, sorted and paginated list of the caller's tasks",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query", "description": "Page (default 1)"},
                    {"type": "integer", "name": "limit", "in": "query", "description": "Page size (default 9)"},
                    {"type": "string", "name": "search", "in": "query", "description": "Substring of title or description"},
                    {"type": "string", "name": "status", "in": "query", "enum": ["all", "pending", "in-progress", "completed"]},
                    {"type": "string", "name": "priority", "in": "query", "enum": ["all", "low", "medium", "high"]},
                    {"type": "string", "name": "sortBy", "in": "query", "enum": ["createdAt", "updatedAt", "dueDate", "title", "status", "priority"]},
                    {"type": "string", "name": "sortOrder", "in": "query", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Create a task",
                "description": "Create a task from multipart form fields and optional files. The task always starts pending.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "title", "in": "formData", "required": true},
                    {"type": "string", "name": "description", "in": "formData"},
                    {"type": "string", "name": "priority", "in": "formData", "enum": ["low", "medium", "high"]},
                    {"type": "string", "name": "dueDate", "in": "formData", "required": true},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "name": "assignedTo", "in": "formData"},
                    {"type": "file", "name": "files", "in": "formData"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.Response"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        },
        "/tasks/dashboard/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["dashboard"],
                "summary": "Dashboard counters",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}}}
            }
        },
        "/tasks/analytics/data": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["dashboard"],
                "summary": "Analytics snapshot",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}}}
            }
        },
        "/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Get a task",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Update a task",
                "description": "Partial update. Only the fields present in the form change.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "existingFiles", "in": "formData", "description": "JSON array of {filename,url} to keep"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "name": "removedFiles", "in": "formData"},
                    {"type": "file", "name": "newFiles", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Soft-delete a task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        },
        "/tasks/{id}/complete": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Mark a task completed",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        },
        "/tasks/{id}/restore": {
            "patch": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Restore a soft-deleted task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        },
        "/tasks/{id}/permanent": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Permanently delete a task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        },
        "/tasks/{id}/comments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Comment on a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ports.AddCommentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/http.Response"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.Response"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.Response"}}
                }
            }
        }
    },
    "definitions": {
        "entities.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.Pagination": {
            "type": "object",
            "properties": {
                "totalCount": {"type": "integer"},
                "totalPages": {"type": "integer"},
                "currentPage": {"type": "integer"},
                "limit": {"type": "integer"}
            }
        },
        "http.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "pagination": {"$ref": "#/definitions/http.Pagination"},
                "errors": {"type": "array", "items": {"$ref": "#/definitions/entities.FieldError"}}
            }
        },
        "ports.AddCommentRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string", "maxLength": 2000}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header",
            "description": "Type \"Bearer\" followed by a space and JWT token."
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http"},
	Title:            "tasq API",
	Description:      "Task tracking service: filtered task listings, attachment reconciliation and dashboard analytics.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

// Package docs registers the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tasks/today": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the user's task selection for the current day with done flags, today's earnings against the daily cap, and the bonus state.",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Today's tasks",
                "operationId": "getTodayTasks",
                "parameters": [
                    {"type": "string", "example": "gardener-42", "description": "User id (only when header auth is enabled)", "name": "X-User-ID", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.TodayList"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/complete": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Marks a task from today's list as done and credits its reward, limited by the daily earning cap. Completing the same task again the same day returns the amount credited the first time with already_completed=true.",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Complete a task",
                "operationId": "completeTask",
                "parameters": [
                    {"type": "string", "example": "gardener-42", "description": "User id (only when header auth is enabled)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab", "description": "Key for safe client retries", "name": "Idempotency-Key", "in": "header"},
                    {"type": "string", "example": "water_plants", "description": "Task id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Completion"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "422": {"description": "Task not on today's list", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tasks/bonus": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Credits the bonus currency once per day after every task on today's list is done. A repeated claim returns awarded_bonus=0 with already_claimed=true.",
                "produces": ["application/json"],
                "tags": ["Tasks"],
                "summary": "Claim the all-done bonus",
                "operationId": "claimBonus",
                "parameters": [
                    {"type": "string", "example": "gardener-42", "description": "User id (only when header auth is enabled)", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "example": "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab", "description": "Key for safe client retries", "name": "Idempotency-Key", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.BonusClaim"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "409": {"description": "Tasks still open", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/tasks/history": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the user's completion records, newest day first. Supports conditional requests via a weak ETag.",
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Completion history",
                "operationId": "listHistory",
                "parameters": [
                    {"type": "string", "example": "gardener-42", "description": "User id (only when header auth is enabled)", "name": "X-User-ID", "in": "header"},
                    {"minimum": 1, "type": "integer", "default": 1, "description": "Page number", "name": "page", "in": "query"},
                    {"maximum": 100, "minimum": 1, "type": "integer", "default": 20, "description": "Items per page", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.HistoryResponse"}},
                    "304": {"description": "Not modified"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/wallet": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Returns the user's primary and bonus balances. Users without any award yet get zeros.",
                "produces": ["application/json"],
                "tags": ["Wallet"],
                "summary": "Wallet balances",
                "operationId": "getWallet",
                "parameters": [
                    {"type": "string", "example": "gardener-42", "description": "User id (only when header auth is enabled)", "name": "X-User-ID", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Wallet"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "500": {"description": "Internal error", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.TaskCompletion": {
            "type": "object",
            "properties": {
                "awarded": {"type": "integer"},
                "created_at": {"type": "string"},
                "day": {"type": "string", "example": "2025-06-01"},
                "id": {"type": "string"},
                "task_id": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "domain.Wallet": {
            "type": "object",
            "properties": {
                "bonus_balance": {"type": "integer"},
                "lifetime_earned": {"type": "integer"},
                "primary_balance": {"type": "integer"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "not_all_done"},
                "message": {"type": "string", "example": "finish every task on today's list first"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "handlers.HistoryResponse": {
            "type": "object",
            "properties": {
                "completions": {"type": "array", "items": {"$ref": "#/definitions/domain.TaskCompletion"}},
                "pagination": {"$ref": "#/definitions/handlers.Pagination"}
            }
        },
        "handlers.Pagination": {
            "type": "object",
            "properties": {
                "has_next": {"type": "boolean"},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "services.BonusClaim": {
            "type": "object",
            "properties": {
                "already_claimed": {"type": "boolean"},
                "awarded_bonus": {"type": "integer"},
                "wallet": {"$ref": "#/definitions/domain.Wallet"}
            }
        },
        "services.Completion": {
            "type": "object",
            "properties": {
                "already_completed": {"type": "boolean"},
                "awarded_amount": {"type": "integer"},
                "task_id": {"type": "string"},
                "wallet": {"$ref": "#/definitions/domain.Wallet"}
            }
        },
        "services.TodayItem": {
            "type": "object",
            "properties": {
                "done": {"type": "boolean"},
                "id": {"type": "string", "example": "water_plants"},
                "reward_amount": {"type": "integer"},
                "title": {"type": "string", "example": "Water Plants"}
            }
        },
        "services.TodayList": {
            "type": "object",
            "properties": {
                "all_done": {"type": "boolean"},
                "bonus_amount": {"type": "integer"},
                "bonus_claimed": {"type": "boolean"},
                "date": {"type": "string", "example": "2025-06-01"},
                "earned_today": {"type": "integer"},
                "max_daily_earning": {"type": "integer"},
                "tasks": {"type": "array", "items": {"$ref": "#/definitions/services.TodayItem"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "HS256 JWT; the user id is the sub claim. Format: Bearer <token>",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Garden Daily Tasks API",
	Description:      "Daily task selection and reward ledger: today's tasks, completions under a daily earning cap, the all-done bonus, and wallet balances.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

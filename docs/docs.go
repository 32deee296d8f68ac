// Package docs registers the OpenAPI description served under /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Accounts"], "summary": "Current account", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AccountView"}}}},
            "patch": {"security": [{"BearerAuth": []}], "tags": ["Accounts"], "summary": "Update profile",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.UpdateProfileRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AccountView"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/tasks": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Tasks"], "summary": "List tasks", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.TaskView"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Tasks"], "summary": "Create task",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.CreateTaskRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.TaskView"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/tasks/{taskId}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Tasks"], "summary": "Get task",
                "parameters": [{"type": "integer", "name": "taskId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TaskView"}}, "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/tasks/{taskId}/lock": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Tasks"], "summary": "Lock task",
                "parameters": [{"type": "integer", "name": "taskId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TaskView"}}, "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/tasks/{taskId}/release": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Tasks"], "summary": "Release task",
                "parameters": [{"type": "integer", "name": "taskId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.TaskView"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/submissions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Submissions"], "summary": "List submissions",
                "parameters": [{"type": "string", "name": "status", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Submission"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Submissions"], "summary": "Submit transcription",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.SubmitRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DecisionView"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}, "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/submissions/{submissionId}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Submissions"], "summary": "Get submission",
                "parameters": [{"type": "string", "name": "submissionId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Submission"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/submissions/{submissionId}/moderate": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Submissions"], "summary": "Moderate submission",
                "parameters": [{"type": "string", "name": "submissionId", "in": "path", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.ModerateRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DecisionView"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/wallet": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "Wallet", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WalletView"}}}}
        },
        "/wallet/withdraw": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "Withdraw",
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.WithdrawRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WalletView"}}, "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}}}
        },
        "/transactions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "Transaction history", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.EntryView"}}}}}
        },
        "/accounts": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List accounts", "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.AccountView"}}}}}
        },
        "/accounts/{accountId}": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Update account",
                "parameters": [{"type": "string", "name": "accountId", "in": "path", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/services.UpdateAccountRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.AccountView"}}}}
        },
        "/accounts/{accountId}/adjust": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Adjust balance",
                "parameters": [{"type": "string", "name": "accountId", "in": "path", "required": true}, {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.AdjustRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.WalletView"}}}}
        }
    },
    "definitions": {
        "services.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "kind": {"type": "string"}, "details": {"type": "object", "additionalProperties": {"type": "string"}}}},
        "services.CreateTaskRequest": {"type": "object", "required": ["kind", "time_limit"], "properties": {"kind": {"type": "string", "enum": ["ASSESSMENT", "PAID"]}, "deposit_amount": {"type": "string", "example": "5.00"}, "reward_amount": {"type": "string", "example": "10.00"}, "time_limit": {"type": "integer", "example": 30}, "reference_image_url": {"type": "string"}, "reference_text": {"type": "string"}}},
        "services.SubmitRequest": {"type": "object", "required": ["task", "typed_content"], "properties": {"task": {"type": "integer"}, "typed_content": {"type": "string"}}},
        "services.ModerateRequest": {"type": "object", "required": ["status"], "properties": {"status": {"type": "string", "enum": ["APPROVED", "REJECTED"]}}},
        "services.UpdateProfileRequest": {"type": "object", "properties": {"display_name": {"type": "string"}}},
        "services.UpdateAccountRequest": {"type": "object", "properties": {"role": {"type": "string", "enum": ["TRAINEE", "WRITER", "ADMIN"]}, "display_name": {"type": "string"}}},
        "handlers.WithdrawRequest": {"type": "object", "properties": {"amount": {"type": "string", "example": "10.00"}}},
        "handlers.AdjustRequest": {"type": "object", "properties": {"amount": {"type": "string", "example": "2.50"}}},
        "handlers.TaskView": {"type": "object", "properties": {"id": {"type": "integer"}, "kind": {"type": "string"}, "deposit_amount": {"type": "string"}, "reward_amount": {"type": "string"}, "time_limit": {"type": "integer"}, "reference_image_url": {"type": "string"}, "reference_text": {"type": "string"}, "status": {"type": "string"}, "holder_id": {"type": "string"}, "lock_id": {"type": "string"}, "locked_at": {"type": "string"}, "lock_expires_at": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.AccountView": {"type": "object", "properties": {"id": {"type": "string"}, "phone_number": {"type": "string"}, "display_name": {"type": "string"}, "role": {"type": "string"}, "balance": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.EntryView": {"type": "object", "properties": {"id": {"type": "string"}, "account_id": {"type": "string"}, "amount": {"type": "string"}, "kind": {"type": "string"}, "task_id": {"type": "integer"}, "submission_id": {"type": "string"}, "created_at": {"type": "string"}}},
        "handlers.WalletView": {"type": "object", "properties": {"balance": {"type": "string"}, "entries": {"type": "array", "items": {"$ref": "#/definitions/handlers.EntryView"}}}},
        "handlers.DecisionView": {"type": "object", "properties": {"submission": {"$ref": "#/definitions/models.Submission"}, "task": {"$ref": "#/definitions/handlers.TaskView"}, "role": {"type": "string"}, "balance": {"type": "string"}, "promoted": {"type": "boolean"}}},
        "models.Submission": {"type": "object", "properties": {"id": {"type": "string"}, "task_id": {"type": "integer"}, "account_id": {"type": "string"}, "lock_id": {"type": "string"}, "typed_content": {"type": "string"}, "ocr_match_score": {"type": "number"}, "status": {"type": "string"}, "resolved_by": {"type": "string"}, "created_at": {"type": "string"}, "resolved_at": {"type": "string"}}}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Scribeworks Task Engine API",
	Description:      "Task locking, transcription scoring and wallet settlement",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

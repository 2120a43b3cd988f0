// Package docs holds the OpenAPI description served at /swagger when
// SWAGGER_ENABLED is set. Regenerate with:
//
//	swag init -g internal/http/router.go -o internal/docs
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
        "/chats/{id}/messages": {
            "get": {
                "tags": ["Messages"],
                "summary": "List recent messages of a chat",
                "operationId": "listMessages",
                "parameters": [
                    {"type": "integer", "description": "Chat ID (0 = all chats)", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Window in hours", "name": "hours", "in": "query", "minimum": 1, "maximum": 168, "default": 24}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListMessagesResponse"}},
                    "304": {"description": "Not modified"},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            },
            "post": {
                "tags": ["Messages"],
                "summary": "Ingest a chat message",
                "operationId": "postMessage",
                "parameters": [
                    {"type": "integer", "description": "Caller id, default author", "name": "X-User-ID", "in": "header"},
                    {"type": "integer", "description": "Chat ID", "name": "id", "in": "path", "required": true},
                    {"description": "Message", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.IngestMessageRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/domain.Message"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/messages/{mid}/reactions": {
            "post": {
                "tags": ["Messages"],
                "summary": "Apply a reaction change",
                "operationId": "postReaction",
                "parameters": [
                    {"type": "integer", "description": "Chat ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Message ID", "name": "mid", "in": "path", "required": true},
                    {"description": "Reaction change", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ReactionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReactionResponse"}},
                    "404": {"description": "Message not found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/analysis": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Summarize a chat window",
                "operationId": "getAnalysis",
                "parameters": [
                    {"type": "integer", "description": "Caller id", "name": "X-User-ID", "in": "header"},
                    {"type": "string", "description": "Administrator secret", "name": "X-Admin-Token", "in": "header"},
                    {"type": "integer", "description": "Chat ID (0 = all chats)", "name": "id", "in": "path", "required": true},
                    {"enum": ["analyze", "anal", "deep_anal"], "type": "string", "default": "analyze", "description": "Analysis type", "name": "type", "in": "query"},
                    {"type": "integer", "description": "Window override", "name": "hours", "in": "query", "minimum": 1, "maximum": 168}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Result"}},
                    "429": {"description": "Debounced", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Analyzer failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/horoscope": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Create a horoscope for the caller",
                "operationId": "postHoroscope",
                "parameters": [
                    {"type": "integer", "description": "Caller id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "integer", "description": "Chat ID (0 = all chats)", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Window override", "name": "hours", "in": "query"},
                    {"description": "Display name", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/handlers.HoroscopeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Result"}},
                    "401": {"description": "Missing caller", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "Debounced", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Analyzer failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chats/{id}/ask": {
            "post": {
                "tags": ["Analysis"],
                "summary": "Ask a question",
                "operationId": "postAsk",
                "parameters": [
                    {"type": "integer", "description": "Caller id", "name": "X-User-ID", "in": "header", "required": true},
                    {"type": "string", "description": "Retry key", "name": "Idempotency-Key", "in": "header"},
                    {"type": "integer", "description": "Chat ID", "name": "id", "in": "path", "required": true},
                    {"description": "Question", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Result"}},
                    "429": {"description": "Debounced", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "502": {"description": "Analyzer failed", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/debounce": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Remaining debounce time",
                "operationId": "getDebounce",
                "parameters": [
                    {"type": "string", "description": "Operation key", "name": "operation", "in": "query", "required": true},
                    {"type": "integer", "description": "Interval in seconds", "name": "interval", "in": "query", "minimum": 0}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.DebounceResponse"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "tags": ["Stats"],
                "summary": "Storage statistics",
                "operationId": "getStats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/repo.Stats"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Message": {
            "type": "object",
            "properties": {
                "chat_id": {"type": "integer"},
                "message_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "username": {"type": "string"},
                "text": {"type": "string"},
                "timestamp": {"type": "string"},
                "reactions": {"type": "object", "additionalProperties": {"type": "integer"}},
                "reply_to_message_id": {"type": "integer"}
            }
        },
        "domain.ReplyContext": {
            "type": "object",
            "properties": {
                "text": {"type": "string"},
                "username": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "code": {"type": "string", "example": "too_many_requests"},
                "message": {"type": "string"},
                "retry_after_seconds": {"type": "integer", "example": 280},
                "reason": {"type": "string", "example": "upstream_unreachable"}
            }
        },
        "handlers.IngestMessageRequest": {
            "type": "object",
            "required": ["message_id", "text"],
            "properties": {
                "message_id": {"type": "integer"},
                "user_id": {"type": "integer"},
                "username": {"type": "string"},
                "text": {"type": "string"},
                "timestamp": {"type": "string"},
                "reply_to_message_id": {"type": "integer"}
            }
        },
        "handlers.ListMessagesResponse": {
            "type": "object",
            "properties": {
                "messages": {"type": "array", "items": {"$ref": "#/definitions/domain.Message"}},
                "count": {"type": "integer"},
                "hours": {"type": "integer"}
            }
        },
        "handlers.ReactionRequest": {
            "type": "object",
            "properties": {
                "old": {"type": "array", "items": {"type": "string"}},
                "new": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handlers.ReactionResponse": {
            "type": "object",
            "properties": {
                "reactions": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "handlers.HoroscopeRequest": {
            "type": "object",
            "properties": {"username": {"type": "string"}}
        },
        "handlers.AskRequest": {
            "type": "object",
            "required": ["question"],
            "properties": {
                "question": {"type": "string"},
                "reply": {"$ref": "#/definitions/domain.ReplyContext"}
            }
        },
        "handlers.DebounceResponse": {
            "type": "object",
            "properties": {
                "operation": {"type": "string"},
                "interval_seconds": {"type": "integer"},
                "remaining_seconds": {"type": "integer"},
                "ready": {"type": "boolean"}
            }
        },
        "repo.Stats": {
            "type": "object",
            "properties": {
                "chats": {"type": "integer"},
                "messages": {"type": "integer"},
                "active_cache_entries": {"type": "integer"},
                "last_message_at": {"type": "string"}
            }
        },
        "services.Result": {
            "type": "object",
            "properties": {
                "operation": {"type": "string", "example": "analyze:-100123"},
                "text": {"type": "string"},
                "from_cache": {"type": "boolean"},
                "empty": {"type": "boolean"},
                "message_count": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Chat Digest API",
	Description:      "Debounced, cached chat analysis on top of stored group chat history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

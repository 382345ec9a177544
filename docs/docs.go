// Package docs holds the OpenAPI description of the session agent served
// under /swagger. Keep it in step with the handler annotations.
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
        "/restaurant": {
            "get": {
                "produces": ["application/json"],
                "tags": ["restaurant"],
                "summary": "Restaurant profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.RestaurantInfo"}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "403": {"description": "Forbidden", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/session": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}}
                }
            }
        },
        "/session/activity": {
            "post": {
                "tags": ["session"],
                "summary": "Record activity",
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/session/check": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Revalidate session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}}
                }
            }
        },
        "/session/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Login",
                "parameters": [
                    {
                        "description": "Login credentials",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handler.loginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "502": {"description": "Bad Gateway", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/session/logout": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Logout",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}}
                }
            }
        },
        "/session/permissions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Check permission",
                "parameters": [
                    {"type": "string", "description": "Resource, e.g. orders", "name": "resource", "in": "query", "required": true},
                    {"type": "string", "description": "Action, e.g. update", "name": "action", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.permissionResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "401": {"description": "Unauthorized", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/session/refresh": {
            "post": {
                "produces": ["application/json"],
                "tags": ["session"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.refreshResponse"}}
                }
            }
        }
    },
    "definitions": {
        "domain.Permission": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "id": {"type": "string"},
                "resource": {"type": "string"}
            }
        },
        "domain.RestaurantInfo": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "currency": {"type": "string"},
                "id": {"type": "string"},
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "taxRate": {"type": "number"},
                "timezone": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "domain.Role": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "permissions": {"type": "array", "items": {"$ref": "#/definitions/domain.Permission"}}
            }
        },
        "domain.User": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "isActive": {"type": "boolean"},
                "name": {"type": "string"},
                "role": {"$ref": "#/definitions/domain.Role"},
                "updatedAt": {"type": "string"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string", "maxLength": 256},
                "remember": {"type": "boolean"}
            }
        },
        "handler.permissionResponse": {
            "type": "object",
            "properties": {
                "action": {"type": "string"},
                "allowed": {"type": "boolean"},
                "resource": {"type": "string"}
            }
        },
        "handler.refreshResponse": {
            "type": "object",
            "properties": {
                "refreshed": {"type": "boolean"},
                "session": {"$ref": "#/definitions/handler.sessionResponse"}
            }
        },
        "handler.sessionResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "isAuthenticated": {"type": "boolean"},
                "isLoading": {"type": "boolean"},
                "state": {"type": "string"},
                "user": {"$ref": "#/definitions/domain.User"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Restaurant Console Session Agent",
	Description:      "Local agent that owns the console's authentication session.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

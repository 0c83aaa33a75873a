package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CI Results API",
        "description": "Stores and queries build, boot and test results of a CI pipeline.",
        "version": "1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "TokenAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [
        {"TokenAuth": []}
    ],
    "tags": [
        {"name": "Resources", "description": "Jobs, builds, boots and test suites"},
        {"name": "Count", "description": "Document counts per collection"},
        {"name": "Tokens", "description": "API token administration (admin only)"},
        {"name": "Bisect", "description": "Regression range of failed boots and builds"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "security": [],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "security": [],
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is down"}
                }
            }
        },
        "/version": {
            "get": {
                "summary": "Running version",
                "security": [],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/{resource}": {
            "get": {
                "tags": ["Resources"],
                "summary": "List documents",
                "parameters": [
                    {"$ref": "#/parameters/resource"},
                    {"name": "field", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "nfield", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "sort", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "sort_order", "in": "query", "type": "integer", "enum": [1, -1]},
                    {"name": "skip", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "date_range", "in": "query", "type": "integer"},
                    {"name": "created_on", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Resources"],
                "summary": "Create a document",
                "description": "boot and build reports are imported by the task worker and answer 202.",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/resource"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "202": {"description": "Accepted for import", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Malformed JSON", "schema": {"$ref": "#/definitions/Envelope"}},
                    "415": {"description": "Not JSON", "schema": {"$ref": "#/definitions/Envelope"}},
                    "422": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/{resource}/{id}": {
            "get": {
                "tags": ["Resources"],
                "summary": "Get a document",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "put": {
                "tags": ["Resources"],
                "summary": "Update a document",
                "consumes": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/resource"},
                    {"$ref": "#/parameters/id"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Updated", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "501": {"description": "Not implemented for the resource", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "delete": {
                "tags": ["Resources"],
                "summary": "Delete a document",
                "parameters": [{"$ref": "#/parameters/resource"}, {"$ref": "#/parameters/id"}],
                "responses": {
                    "200": {"description": "Deleted", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/count": {
            "get": {
                "tags": ["Count"],
                "summary": "Count matches in every collection accepting the filters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Unknown filter key", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/count/{collection}": {
            "get": {
                "tags": ["Count"],
                "summary": "Count matches in one collection",
                "parameters": [
                    {"name": "collection", "in": "path", "required": true, "type": "string", "enum": ["job", "build", "boot", "test"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid collection", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/token": {
            "get": {
                "tags": ["Tokens"],
                "summary": "List tokens",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Not an admin token", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Tokens"],
                "summary": "Create a token",
                "consumes": ["application/json"],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Token"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "422": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/token/{id}": {
            "get": {
                "tags": ["Tokens"],
                "summary": "Get a token",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "put": {
                "tags": ["Tokens"],
                "summary": "Update a token",
                "parameters": [
                    {"$ref": "#/parameters/id"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Token"}}
                ],
                "responses": {"200": {"description": "Updated", "schema": {"$ref": "#/definitions/Envelope"}}}
            },
            "delete": {
                "tags": ["Tokens"],
                "summary": "Delete a token",
                "parameters": [{"$ref": "#/parameters/id"}],
                "responses": {"200": {"description": "Deleted", "schema": {"$ref": "#/definitions/Envelope"}}}
            }
        },
        "/bisect/{collection}/{id}": {
            "get": {
                "tags": ["Bisect"],
                "summary": "Bisect a failed boot or build",
                "parameters": [
                    {"name": "collection", "in": "path", "required": true, "type": "string", "enum": ["boot", "build"]},
                    {"$ref": "#/parameters/id"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Invalid collection or id", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Boot report not found", "schema": {"$ref": "#/definitions/Envelope"}},
                    "504": {"description": "Task did not complete in time", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        }
    },
    "parameters": {
        "resource": {"name": "resource", "in": "path", "required": true, "type": "string", "enum": ["job", "build", "boot", "test"]},
        "id": {"name": "id", "in": "path", "required": true, "type": "string", "pattern": "^[0-9a-f]{24}$"}
    },
    "definitions": {
        "Envelope": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "count": {"type": "integer"},
                "limit": {"type": "integer"},
                "result": {"type": "array", "items": {"type": "object"}}
            }
        },
        "Capabilities": {
            "type": "object",
            "properties": {
                "read": {"type": "integer", "enum": [0, 1]},
                "create": {"type": "integer", "enum": [0, 1]},
                "delete": {"type": "integer", "enum": [0, 1]},
                "update": {"type": "integer", "enum": [0, 1]},
                "admin": {"type": "integer", "enum": [0, 1]},
                "superuser": {"type": "integer", "enum": [0, 1]},
                "create_token": {"type": "integer", "enum": [0, 1]},
                "ip_restricted": {"type": "integer", "enum": [0, 1]}
            }
        },
        "Token": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "username": {"type": "string"},
                "expires_on": {"type": "string", "format": "date-time"},
                "expired": {"type": "boolean"},
                "properties": {"$ref": "#/definitions/Capabilities"},
                "ip_address": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

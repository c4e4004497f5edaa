// Package docs holds the OpenAPI description of the HTTP API in the layout
// swag init produces. Regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
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
        "/health": {
            "get": {
                "description": "Database reachability and polling state",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/resources.HealthResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/resources.HealthResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "description": "Exchange the manager PIN for a session token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Manager login",
                "parameters": [
                    {"description": "Manager PIN", "name": "login", "in": "body", "required": true, "schema": {"$ref": "#/definitions/resources.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/resources.LoginResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/sensors": {
            "get": {
                "description": "List all known sensors, optionally filtered",
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "List sensors",
                "parameters": [
                    {"type": "boolean", "description": "Only active or inactive sensors", "name": "active", "in": "query"},
                    {"type": "string", "description": "Sensor category", "name": "category", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Sensor"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/sensors/{id}": {
            "get": {
                "description": "Get a sensor with its latest reading and history summary",
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Get a sensor",
                "parameters": [
                    {"type": "string", "description": "Sensor ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Rename a sensor, toggle it or change its thresholds",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Update sensor settings",
                "parameters": [
                    {"type": "string", "description": "Sensor ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "sensor", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Sensor"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/sensors/{id}/readings": {
            "get": {
                "description": "Get readings for a sensor, newest first, within an optional time range",
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Get sensor readings",
                "parameters": [
                    {"type": "string", "description": "Sensor ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Start time (RFC3339 or YYYY-MM-DD)", "name": "start", "in": "query"},
                    {"type": "string", "description": "End time (RFC3339 or YYYY-MM-DD)", "name": "end", "in": "query"},
                    {"type": "integer", "description": "Maximum number of readings", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.SensorReading"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/sensors/{id}/latest": {
            "get": {
                "description": "Get the newest reading of a sensor with its threshold check",
                "produces": ["application/json"],
                "tags": ["sensors"],
                "summary": "Get the latest reading",
                "parameters": [
                    {"type": "string", "description": "Sensor ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/polling/status": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Scheduler state, run counters and next run times",
                "produces": ["application/json"],
                "tags": ["polling"],
                "summary": "Polling status",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/polling/poll": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Run the SensorPush poll immediately in the background",
                "produces": ["application/json"],
                "tags": ["polling"],
                "summary": "Poll now",
                "responses": {
                    "200": {"description": "A run is already in progress"},
                    "202": {"description": "Accepted"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/polling/purge": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Run the retention purge immediately in the background",
                "produces": ["application/json"],
                "tags": ["polling"],
                "summary": "Purge now",
                "responses": {
                    "200": {"description": "A run is already in progress"},
                    "202": {"description": "Accepted"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/polling/interval": {
            "put": {
                "security": [{"BearerAuth": []}],
                "description": "Persist a new interval in minutes and reschedule polling if it is running",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["polling"],
                "summary": "Change the polling interval",
                "parameters": [
                    {"description": "New interval", "name": "interval", "in": "body", "required": true, "schema": {"type": "object", "properties": {"minutes": {"type": "integer"}}}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/retention/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Totals, date range and purge-eligible count of stored readings",
                "produces": ["application/json"],
                "tags": ["retention"],
                "summary": "Retention statistics",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/retention/sensors/{id}/summary": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Stored reading count and date span of one sensor",
                "produces": ["application/json"],
                "tags": ["retention"],
                "summary": "Sensor data summary",
                "parameters": [
                    {"type": "string", "description": "Sensor ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/retention/readings": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "description": "Delete readings of one sensor or within a date range",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["retention"],
                "summary": "Delete readings",
                "parameters": [
                    {"description": "Readings to delete", "name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "500": {"description": "Internal Server Error"}
                }
            }
        },
        "/settings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Stored operator settings",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List settings",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        },
        "/errors": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Newest recorded errors with their correlation IDs",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Recent errors",
                "parameters": [
                    {"type": "integer", "description": "Maximum number of records", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.APIError"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.APIError"}}
                }
            }
        }
    },
    "definitions": {
        "errors.APIError": {
            "type": "object",
            "properties": {
                "type": {"type": "string"},
                "message": {"type": "string"},
                "code": {"type": "integer"},
                "request_id": {"type": "string"},
                "details": {}
            }
        },
        "models.Sensor": {
            "type": "object",
            "properties": {
                "sensor_id": {"type": "string"},
                "name": {"type": "string"},
                "active": {"type": "boolean"},
                "min_temp": {"type": "number"},
                "max_temp": {"type": "number"},
                "min_humidity": {"type": "number"},
                "max_humidity": {"type": "number"},
                "category": {"type": "string"}
            }
        },
        "models.SensorReading": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "sensor_id": {"type": "string"},
                "timestamp": {"type": "string"},
                "temperature": {"type": "number"},
                "humidity": {"type": "number"},
                "battery_voltage": {"type": "number"}
            }
        },
        "resources.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "version": {"type": "string"},
                "database": {"type": "string"},
                "polling_running": {"type": "boolean"},
                "time": {"type": "string"}
            }
        },
        "resources.LoginRequest": {
            "type": "object",
            "properties": {
                "pin": {"type": "string"}
            }
        },
        "resources.LoginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expires_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
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
	Title:            "Sensor Hub API",
	Description:      "SensorPush telemetry polling, history and retention.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

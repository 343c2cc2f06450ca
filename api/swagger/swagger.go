package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Account API",
        "description": "Account management API with rotating refresh-token sessions",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and refresh-token lifecycle"},
        {"name": "Accounts", "description": "Registration, verification and account management"},
        {"name": "Departments", "description": "Department roster"},
        {"name": "Employees", "description": "Employee onboarding and transfers"},
        {"name": "Requests", "description": "Employee requests and approvals"},
        {"name": "Workflows", "description": "Per-employee workflow history"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/accounts/authenticate": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate account",
                "responses": {
                    "200": {"description": "Token pair issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/accounts/refresh-token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate refresh token",
                "responses": {
                    "200": {"description": "New token pair issued"},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/accounts/revoke-token": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "200": {"description": "Token revoked"},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/accounts/register": {
            "post": {
                "tags": ["Accounts"],
                "summary": "Register account",
                "responses": {
                    "200": {"description": "Registration accepted"}
                }
            }
        },
        "/accounts": {
            "get": {
                "tags": ["Accounts"],
                "summary": "List accounts",
                "responses": {
                    "200": {"description": "Paginated accounts"}
                }
            },
            "post": {
                "tags": ["Accounts"],
                "summary": "Create account",
                "responses": {
                    "201": {"description": "Account created"}
                }
            }
        },
        "/departments": {
            "get": {
                "tags": ["Departments"],
                "summary": "List departments",
                "responses": {
                    "200": {"description": "Departments with employee counts"}
                }
            }
        },
        "/employees": {
            "get": {
                "tags": ["Employees"],
                "summary": "List employees",
                "responses": {
                    "200": {"description": "Employee roster"}
                }
            }
        },
        "/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List requests",
                "responses": {
                    "200": {"description": "Requests with items"}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Account API",
	Description:      "Account management API with rotating refresh-token sessions",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

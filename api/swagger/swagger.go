package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Attestation API",
        "description": "Proof-of-enrollment attestation request service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "tags": [
        {"name": "Roster", "description": "Read-only enrollment roster"},
        {"name": "Attestations", "description": "Attestation request lifecycle"},
        {"name": "Counter", "description": "Document reference counter"}
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
        "/identity/check": {
            "post": {
                "tags": ["Roster"],
                "summary": "Validate an identity against the enrollment roster",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IdentityCheckRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster/groups": {
            "get": {
                "tags": ["Roster"],
                "summary": "List known group codes",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/roster/groups/{group}": {
            "get": {
                "tags": ["Roster"],
                "summary": "List roster entries for a group",
                "parameters": [
                    {"name": "group", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown group"}
                }
            }
        },
        "/attestations": {
            "post": {
                "tags": ["Attestations"],
                "summary": "Submit an attestation request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAttestationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate CIN or quota reached"},
                    "422": {"description": "No roster match, suggestions in meta"}
                }
            },
            "get": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "List attestation requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "group", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "cin", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string"},
                    {"name": "order", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attestations/verified": {
            "post": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Submit a request with externally verified identity",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitAttestationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attestations/{id}": {
            "get": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Get request detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Delete a request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/attestations/{id}/approve": {
            "post": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Approve a pending request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request no longer pending"}
                }
            }
        },
        "/attestations/{id}/reject": {
            "post": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Reject a pending request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/DecideRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request no longer pending"}
                }
            }
        },
        "/attestations/{id}/print": {
            "post": {
                "tags": ["Attestations"],
                "security": [{"BearerAuth": []}],
                "summary": "Resolve the print snapshot for an approved request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request not approved"},
                    "503": {"description": "Reference counter busy, retry"}
                }
            }
        },
        "/counter": {
            "get": {
                "tags": ["Counter"],
                "security": [{"BearerAuth": []}],
                "summary": "Read the document counter",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/counter/reset": {
            "post": {
                "tags": ["Counter"],
                "security": [{"BearerAuth": []}],
                "summary": "Reset the document counter",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AttestationRequest": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "cin": {"type": "string"},
                "contact": {"type": "string"},
                "group_code": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED"]},
                "rejection_reason": {"type": "string"},
                "year_requested": {"type": "integer"},
                "reference_number": {"type": "integer"},
                "decided_by": {"type": "string"},
                "decided_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "RosterEntry": {
            "type": "object",
            "properties": {
                "external_id": {"type": "string"},
                "full_name": {"type": "string"},
                "group_code": {"type": "string"}
            }
        },
        "SubmitAttestationRequest": {
            "type": "object",
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "cin": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"},
                "group_code": {"type": "string"}
            },
            "required": ["first_name", "last_name", "cin", "group_code"]
        },
        "IdentityCheckRequest": {
            "type": "object",
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "group_code": {"type": "string"}
            },
            "required": ["first_name", "group_code"]
        },
        "DecideRequest": {
            "type": "object",
            "properties": {
                "reason": {"type": "string"}
            }
        },
        "DocumentCounter": {
            "type": "object",
            "properties": {
                "value": {"type": "integer"},
                "last_reset_by": {"type": "string"},
                "last_reset_at": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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

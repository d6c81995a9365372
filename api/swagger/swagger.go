package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Packing QR API",
        "description": "Carton label issuance, scanning and label-sheet export for packing lists",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Shipments", "description": "Packing-list intake and corrections"},
        {"name": "Articles", "description": "Per-article code issuance"},
        {"name": "Codes", "description": "Scanning, verification and regeneration"},
        {"name": "Exports", "description": "Label sheets and manifests"}
    ],
    "paths": {
        "/shipments": {
            "get": {
                "tags": ["Shipments"],
                "summary": "List shipments",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "client_id", "in": "query", "type": "integer"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Shipments"],
                "summary": "Register a shipment with its parsed articles",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IntakeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Shipment code already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shipments/{code}": {
            "get": {
                "tags": ["Shipments"],
                "summary": "Shipment with its articles",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Shipments"],
                "summary": "Amend end date or destination",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ShipmentCorrectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shipments/{code}/codes": {
            "post": {
                "tags": ["Shipments"],
                "summary": "Issue codes for every article of a shipment",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/IssueCodesRequest"}}
                ],
                "responses": {
                    "200": {"description": "All articles issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "207": {"description": "Some articles failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shipments/{code}/export": {
            "post": {
                "tags": ["Exports"],
                "summary": "Render the shipment's label sheet or manifest",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["pdf", "html", "csv"]},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Stored and signed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Shipment has no codes", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Rendering backend failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shipments/{code}/stats": {
            "get": {
                "tags": ["Shipments"],
                "summary": "Code counts per state for a shipment",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/codes": {
            "get": {
                "tags": ["Articles"],
                "summary": "Codes of an article ordered by carton",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Articles"],
                "summary": "Issue one code per carton of an article",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/IssueCodesRequest"}}
                ],
                "responses": {
                    "201": {"description": "Issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Article not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Codes already issued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/cartons": {
            "get": {
                "tags": ["Articles"],
                "summary": "Cartons of an article ordered by sequence",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Article not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/articles/{id}/image": {
            "put": {
                "tags": ["Articles"],
                "summary": "Set or clear the product image of an article",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ArticleImageRequest"}}
                ],
                "responses": {
                    "204": {"description": "Updated"}
                }
            }
        },
        "/articles/{id}": {
            "delete": {
                "tags": ["Articles"],
                "summary": "Delete an article with its cartons and codes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/codes/scan": {
            "post": {
                "tags": ["Codes"],
                "summary": "Record a label scan",
                "parameters": [
                    {"name": "X-Scanner-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScanCodeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scanned", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/codes/verify": {
            "get": {
                "tags": ["Codes"],
                "summary": "Check a code string and resolve its carton",
                "parameters": [
                    {"name": "code", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/codes/duplicates": {
            "get": {
                "tags": ["Codes"],
                "summary": "Code strings stored more than once",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/codes/stats": {
            "get": {
                "tags": ["Codes"],
                "summary": "Code counts per state",
                "parameters": [
                    {"name": "shipment", "in": "query", "type": "string"},
                    {"name": "article_id", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/codes/{id}/regenerate": {
            "post": {
                "tags": ["Codes"],
                "summary": "Replace one code keeping its carton",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Regenerated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download an exported document",
                "produces": ["application/pdf", "text/html", "text/csv"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Document", "schema": {"type": "file"}},
                    "401": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Document removed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "IntakeArticle": {
            "type": "object",
            "properties": {
                "reference": {"type": "string"},
                "description_es": {"type": "string"},
                "description_en": {"type": "string"},
                "unit_price": {"type": "string"},
                "material": {"type": "string"},
                "brand": {"type": "string"},
                "length_cm": {"type": "string"},
                "width_cm": {"type": "string"},
                "height_cm": {"type": "string"},
                "volume_cbm": {"type": "string"},
                "weight_kg": {"type": "string"},
                "carton_count": {"type": "integer"},
                "image_url": {"type": "string"}
            },
            "required": ["reference", "carton_count"]
        },
        "IntakeRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "client_id": {"type": "integer"},
                "start_date": {"type": "string", "format": "date-time"},
                "end_date": {"type": "string", "format": "date-time"},
                "destination": {"type": "string"},
                "source_file": {"type": "string"},
                "articles": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/IntakeArticle"}
                }
            },
            "required": ["code", "client_id", "start_date", "destination", "articles"]
        },
        "ShipmentCorrectionRequest": {
            "type": "object",
            "properties": {
                "end_date": {"type": "string", "format": "date-time"},
                "destination": {"type": "string"}
            }
        },
        "IssueCodesRequest": {
            "type": "object",
            "properties": {
                "force_regenerate": {"type": "boolean"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "format": {"type": "string", "enum": ["pdf", "html", "csv"]}
            }
        },
        "ArticleImageRequest": {
            "type": "object",
            "properties": {
                "image_url": {"type": "string"}
            }
        },
        "ScanCodeRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "scanned_by": {"type": "string"}
            },
            "required": ["code"]
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

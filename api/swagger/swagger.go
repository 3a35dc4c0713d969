package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Data Marketplace API",
        "description": "Marketplace backend for anonymized CSV datasets",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Datasets", "description": "Dataset upload and lifecycle"},
        {"name": "Marketplace", "description": "Browsing and previews"},
        {"name": "Purchases", "description": "Buyer purchase ledger"},
        {"name": "Sellers", "description": "Seller analytics and statements"},
        {"name": "Subscriptions", "description": "Seller plan management"}
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/datasets/upload": {
            "post": {
                "tags": ["Datasets"],
                "summary": "Upload a CSV dataset for anonymization",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "title", "in": "formData", "type": "string", "required": true},
                    {"name": "description", "in": "formData", "type": "string", "required": true},
                    {"name": "price", "in": "formData", "type": "number", "required": true},
                    {"name": "category", "in": "formData", "type": "string"},
                    {"name": "file", "in": "formData", "type": "file", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Quota exceeded or no subscription"}
                }
            }
        },
        "/datasets/mine": {
            "get": {
                "tags": ["Datasets"],
                "summary": "List the caller's datasets in every state",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/marketplace": {
            "get": {
                "tags": ["Marketplace"],
                "summary": "Browse listed anonymized datasets",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/datasets/{id}/preview": {
            "get": {
                "tags": ["Marketplace"],
                "summary": "Preview the first rows of an anonymized dataset",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Dataset not anonymized yet"}
                }
            }
        },
        "/datasets/{id}/listing": {
            "patch": {
                "tags": ["Datasets"],
                "summary": "Toggle marketplace visibility",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateListingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Dataset not anonymized yet"}
                }
            }
        },
        "/datasets/{id}/download-url": {
            "get": {
                "tags": ["Datasets"],
                "summary": "Get a signed URL for the anonymized artifact",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the seller and no purchase"}
                }
            }
        },
        "/datasets/{id}/download": {
            "get": {
                "tags": ["Datasets"],
                "summary": "Download the anonymized artifact via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/purchases/{datasetId}": {
            "post": {
                "tags": ["Purchases"],
                "summary": "Purchase a listed dataset",
                "parameters": [
                    {"name": "datasetId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already purchased or not available"}
                }
            }
        },
        "/purchases": {
            "get": {
                "tags": ["Purchases"],
                "summary": "List the caller's purchases",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sellers/stats": {
            "get": {
                "tags": ["Sellers"],
                "summary": "Seller revenue and catalogue stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sellers/statement": {
            "get": {
                "tags": ["Sellers"],
                "summary": "Export the seller's sales statement",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File stream"}
                }
            }
        },
        "/subscriptions": {
            "post": {
                "tags": ["Subscriptions"],
                "summary": "Change the caller's subscription tier",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeTierRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Dataset": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "seller_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "price": {"type": "number"},
                "views": {"type": "integer"},
                "data_points": {"type": "integer"},
                "original_filename": {"type": "string"},
                "content_type": {"type": "string"},
                "size_bytes": {"type": "integer"},
                "listed": {"type": "boolean"},
                "status": {"type": "string", "enum": ["processing", "anonymized", "failed"]},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "Purchase": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "buyer_id": {"type": "string"},
                "dataset_id": {"type": "string"},
                "seller_id": {"type": "string"},
                "price_paid": {"type": "number"},
                "created_at": {"type": "string"}
            }
        },
        "UpdateListingRequest": {
            "type": "object",
            "properties": {
                "listed": {"type": "boolean"}
            },
            "required": ["listed"]
        },
        "ChangeTierRequest": {
            "type": "object",
            "properties": {
                "tier": {"type": "string", "enum": ["basic", "pro", "enterprise"]}
            },
            "required": ["tier"]
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

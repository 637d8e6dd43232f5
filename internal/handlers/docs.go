package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"city-stats-platform/pkg/logging"
)

const (
	openAPIPath  = "/api/docs/openapi.json"
	openAPIRoute = "openapi"
)

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>City Stats Platform API Documentation</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui.css">
    <style>
        html { box-sizing: border-box; overflow-y: scroll; }
        body { margin: 0; padding: 0; }
    </style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "%s",
                dom_id: "#swagger-ui",
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis]
            });
        };
    </script>
</body>
</html>`

// swaggerPage renders the UI page pointing at the OpenAPI route registered on router
func swaggerPage(router *mux.Router) []byte {
	specURL := openAPIPath
	if route := router.Get(openAPIRoute); route != nil {
		if u, err := route.URL(); err == nil {
			specURL = u.String()
		}
	}
	return []byte(fmt.Sprintf(swaggerUIPage, template.JSEscapeString(specURL)))
}

// SwaggerUI handles GET /api/docs
func (h *CityHandler) SwaggerUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(h.swaggerPage); err != nil {
		h.logger.Warn(r.Context(), "[API_DOCS_WRITE_ERROR] Failed to write Swagger UI page", logging.Fields{
			"error": err.Error(),
		})
	}
}

func queryParam(name, description string, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func jsonResponse(description, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/" + schemaRef},
			},
		},
	}
}

func nullable(typ string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "nullable": true}
}

// OpenAPISpec handles GET /api/docs/openapi.json
func (h *CityHandler) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(openAPIDocument()); err != nil {
		h.logger.Warn(r.Context(), "[API_DOCS_WRITE_ERROR] Failed to write OpenAPI document", logging.Fields{
			"error": err.Error(),
		})
	}
}

// openAPIDocument describes the City Stats API as OpenAPI 3.0
func openAPIDocument() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "City Stats Platform API",
			"description": "Per-city weather, PM2.5 air quality and population statistics built from resumable batch ingestion",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/cities/stats": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get city statistics",
					"description": "Average temperature, average PM2.5, population and air quality category for every city with both weather and PM2.5 data, sorted by city then country",
					"parameters": []map[string]interface{}{
						queryParam("category", "Only return cities in this air quality category", map[string]interface{}{
							"type": "string",
							"enum": []string{"Good", "Moderate", "Unhealthy"},
						}),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("City statistics", "StatsResponse"),
						"400": jsonResponse("Invalid category", "Error"),
						"500": jsonResponse("Internal server error", "Error"),
					},
				},
			},
			"/api/cities": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List cities",
					"description": "Canonical cities known to the store, with pagination",
					"parameters": []map[string]interface{}{
						queryParam("country", "Filter by country code", map[string]interface{}{"type": "string"}),
						queryParam("page", "Page number (default: 1)", map[string]interface{}{"type": "integer", "default": 1}),
						queryParam("limit", "Records per page (default: 100, max: 1000)", map[string]interface{}{"type": "integer", "default": 100, "maximum": 1000}),
					},
					"responses": map[string]interface{}{
						"200": jsonResponse("Paginated cities", "PaginatedCities"),
						"500": jsonResponse("Internal server error", "Error"),
					},
				},
			},
			"/api/progress": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Get ingestion progress",
					"responses": map[string]interface{}{
						"200": jsonResponse("Roster cursor position", "Progress"),
						"500": jsonResponse("Internal server error", "Error"),
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary": "Health check",
					"responses": map[string]interface{}{
						"200": jsonResponse("Store reachable", "Health"),
						"503": jsonResponse("Store unreachable", "Health"),
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"CityStatsSummary": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"city":        map[string]string{"type": "string"},
						"country":     map[string]string{"type": "string"},
						"avg_temp":    nullable("number"),
						"avg_pm25":    nullable("number"),
						"population":  nullable("integer"),
						"aq_category": map[string]interface{}{"type": "string", "nullable": true, "enum": []string{"Good", "Moderate", "Unhealthy"}},
					},
				},
				"StatsResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data":  map[string]interface{}{"type": "array", "items": map[string]string{"$ref": "#/components/schemas/CityStatsSummary"}},
						"count": map[string]string{"type": "integer"},
					},
				},
				"City": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":         map[string]string{"type": "integer"},
						"city":       map[string]string{"type": "string"},
						"country":    map[string]string{"type": "string"},
						"latitude":   map[string]string{"type": "number"},
						"longitude":  map[string]string{"type": "number"},
						"created_at": map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"PaginatedCities": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"data":        map[string]interface{}{"type": "array", "items": map[string]string{"$ref": "#/components/schemas/City"}},
						"total":       map[string]string{"type": "integer"},
						"page":        map[string]string{"type": "integer"},
						"limit":       map[string]string{"type": "integer"},
						"total_pages": map[string]string{"type": "integer"},
					},
				},
				"Progress": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"next_start":  map[string]string{"type": "integer"},
						"roster_size": map[string]string{"type": "integer"},
						"remaining":   map[string]string{"type": "integer"},
						"complete":    map[string]string{"type": "boolean"},
					},
				},
				"Health": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"status":    map[string]string{"type": "string"},
						"timestamp": map[string]string{"type": "string", "format": "date-time"},
					},
				},
				"Error": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
			},
		},
	}
}

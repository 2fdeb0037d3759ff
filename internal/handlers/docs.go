package handlers

import (
	"encoding/json"
	"net/http"
)

type object = map[string]interface{}

func queryParam(name, description, typ string, extra object) object {
	schema := object{"type": typ}
	for k, v := range extra {
		schema[k] = v
	}
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func idParam() object {
	return object{
		"name":        "id",
		"in":          "path",
		"description": "Report ID",
		"required":    true,
		"schema":      object{"type": "string", "format": "uuid"},
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func errorResponse(description string) object {
	return jsonResponse(description, ref("Error"))
}

func pagedSchema(items object) object {
	return object{
		"type": "object",
		"properties": object{
			"data":        object{"type": "array", "items": items},
			"total":       object{"type": "integer"},
			"page":        object{"type": "integer"},
			"limit":       object{"type": "integer"},
			"total_pages": object{"type": "integer"},
		},
	}
}

func seriesOperation(summary, itemSchema, rangeDescription string) object {
	return object{
		"summary": summary,
		"parameters": []object{
			idParam(),
			queryParam("from", rangeDescription+" from (YYYY-MM-DD)", "string", object{"format": "date"}),
			queryParam("to", rangeDescription+" to (YYYY-MM-DD)", "string", object{"format": "date"}),
			queryParam("format", "Response format", "string", object{"enum": []string{"json", "csv"}, "default": "json"}),
			queryParam("page", "Page number (default: 1)", "integer", object{"default": 1}),
			queryParam("limit", "Records per page (default: 100)", "integer", object{"default": 100, "maximum": 1000}),
		},
		"responses": object{
			"200": object{
				"description": "Rows in order",
				"content": object{
					"application/json": object{"schema": pagedSchema(ref(itemSchema))},
					"text/csv":         object{"schema": object{"type": "string"}},
				},
			},
			"400": errorResponse("Invalid parameters"),
			"404": errorResponse("Report not found"),
		},
	}
}

var totalsProperties = object{
	"drinks":             object{"type": "integer"},
	"drinks_rated":       object{"type": "integer"},
	"drinks_total_score": object{"type": "number"},
	"average_score":      object{"type": "number", "nullable": true},
	"beverage_ml":        object{"type": "number"},
	"alcohol_ml":         object{"type": "number"},
	"units":              object{"type": "number"},
	"estimated":          ref("Estimate"),
}

func withTotals(props object) object {
	merged := object{}
	for k, v := range totalsProperties {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	return object{"type": "object", "properties": merged}
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the Checkin Platform API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec := object{
		"openapi": "3.0.0",
		"info": object{
			"title":       "Checkin Platform API",
			"description": "Daily and weekly drinking summaries from beer checkin exports",
			"version":     "1.0.0",
			"contact": map[string]string{
				"name": "Checkin Platform Team",
			},
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": object{
			"/api/checkins/summary": object{
				"post": object{
					"summary":     "Summarise a checkin export",
					"description": "Aggregates an exported checkin list. Persists, uploads and caches the result when those services are configured.",
					"parameters": []object{
						queryParam("region", "Region assumed when no checkin names a country", "string", object{"enum": []string{"eur", "usa"}}),
						queryParam("owner", "Owner used for the report and artifact path", "string", nil),
					},
					"requestBody": object{
						"required": true,
						"content": object{
							"application/json": object{
								"schema": object{"type": "array", "items": ref("Checkin")},
							},
						},
					},
					"responses": object{
						"200": jsonResponse("Summary", ref("Summary")),
						"400": errorResponse("Body is not a checkin export"),
						"413": errorResponse("Export too large"),
						"422": errorResponse("Export has no usable checkins, no region, or an invalid measure"),
					},
				},
			},
			"/api/reports": object{
				"get": object{
					"summary": "List stored reports",
					"parameters": []object{
						queryParam("owner", "Filter by owner", "string", nil),
						queryParam("page", "Page number (default: 1)", "integer", object{"default": 1}),
						queryParam("limit", "Records per page (default: 100)", "integer", object{"default": 100, "maximum": 1000}),
					},
					"responses": object{
						"200": jsonResponse("Reports, newest first", pagedSchema(ref("Report"))),
						"503": errorResponse("Persistence not configured"),
					},
				},
			},
			"/api/reports/{id}": object{
				"get": object{
					"summary":    "Get a stored report",
					"parameters": []object{idParam()},
					"responses": object{
						"200": jsonResponse("Report", ref("Report")),
						"404": errorResponse("Report not found"),
					},
				},
			},
			"/api/reports/{id}/weekly": object{"get": seriesOperation("Weekly rows of a report", "WeeklySummary", "Weeks commencing")},
			"/api/reports/{id}/daily":  object{"get": seriesOperation("Daily rows of a report", "DailySummary", "Dates")},
			"/api/reports/{id}/styles": object{
				"get": object{
					"summary": "Style breakdown of a report",
					"parameters": []object{
						idParam(),
						queryParam("format", "Response format", "string", object{"enum": []string{"json", "csv"}, "default": "json"}),
					},
					"responses": object{
						"200": jsonResponse("Styles by popularity", object{"type": "array", "items": ref("StyleSummary")}),
						"404": errorResponse("Report not found"),
					},
				},
			},
			"/health": object{
				"get": object{
					"summary":     "Health check",
					"description": "Check if the API and its database are reachable",
					"responses": object{
						"200": jsonResponse("API is healthy", object{
							"type":       "object",
							"properties": object{"status": object{"type": "string"}},
						}),
						"503": jsonResponse("A dependency is down", object{
							"type":       "object",
							"properties": object{"status": object{"type": "string"}},
						}),
					},
				},
			},
			"/metrics": object{
				"get": object{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": object{
						"200": object{
							"description": "Prometheus metrics in text format",
							"content": object{
								"text/plain": object{"schema": object{"type": "string"}},
							},
						},
					},
				},
			},
		},
		"components": object{
			"schemas": object{
				"Error": object{
					"type": "object",
					"properties": object{
						"error":   object{"type": "string"},
						"message": object{"type": "string"},
						"code":    object{"type": "integer"},
					},
				},
				"Estimate": object{
					"type":        "string",
					"enum":        []string{"", "*", "**"},
					"description": "* = some measures guessed from serving, ** = some checkins had no measure",
				},
				"Checkin": object{
					"type": "object",
					"properties": object{
						"created_at":      object{"type": "string"},
						"comment":         object{"type": "string"},
						"serving_type":    object{"type": "string"},
						"beer_abv":        object{"type": "number", "nullable": true},
						"rating_score":    object{"type": "number", "nullable": true},
						"beer_name":       object{"type": "string"},
						"beer_type":       object{"type": "string"},
						"brewery_name":    object{"type": "string"},
						"brewery_country": object{"type": "string"},
						"venue_country":   object{"type": "string"},
					},
				},
				"Report": object{
					"type": "object",
					"properties": object{
						"id":             object{"type": "string", "format": "uuid"},
						"owner":          object{"type": "string"},
						"source":         object{"type": "string"},
						"content_hash":   object{"type": "string"},
						"initial_region": object{"type": "string", "enum": []string{"eur", "usa"}},
						"checkins":       object{"type": "integer"},
						"skipped":        object{"type": "integer"},
						"first_date":     object{"type": "string", "format": "date"},
						"last_date":      object{"type": "string", "format": "date"},
						"artifact_url":   object{"type": "string"},
						"created_at":     object{"type": "string", "format": "date-time"},
					},
				},
				"DailySummary": withTotals(object{
					"date": object{"type": "string", "format": "date"},
				}),
				"WeeklySummary": withTotals(object{
					"week":       object{"type": "string", "example": "2023-W01"},
					"commencing": object{"type": "string", "format": "date"},
					"dry_days":   object{"type": "integer"},
				}),
				"StyleSummary": object{
					"type": "object",
					"properties": object{
						"style":         object{"type": "string"},
						"checkins":      object{"type": "integer"},
						"rated":         object{"type": "integer"},
						"rating_total":  object{"type": "number"},
						"average_score": object{"type": "number", "nullable": true},
					},
				},
				"ProducerSummary": object{
					"type": "object",
					"properties": object{
						"brewery":          object{"type": "string"},
						"checkins":         object{"type": "integer"},
						"rated":            object{"type": "integer"},
						"rating_total":     object{"type": "number"},
						"unique_beers":     object{"type": "integer"},
						"average_score":    object{"type": "number", "nullable": true},
						"average_of_beers": object{"type": "number", "nullable": true},
						"beer_ratings": object{
							"type":                 "object",
							"additionalProperties": object{"type": "array", "items": object{"type": "number"}},
						},
					},
				},
				"Summary": object{
					"type": "object",
					"properties": object{
						"report":    ref("Report"),
						"daily":     object{"type": "array", "items": ref("DailySummary")},
						"weekly":    object{"type": "array", "items": ref("WeeklySummary")},
						"styles":    object{"type": "array", "items": ref("StyleSummary")},
						"producers": object{"type": "array", "items": ref("ProducerSummary")},
						"counters": object{
							"type": "object",
							"properties": object{
								"records":   object{"type": "integer"},
								"skipped":   object{"type": "integer"},
								"annotated": object{"type": "integer"},
								"estimated": object{"type": "integer"},
								"missing":   object{"type": "integer"},
								"by_region": object{"type": "object", "additionalProperties": object{"type": "integer"}},
							},
						},
						"estimated": ref("Estimate"),
						"legend":    object{"type": "array", "items": object{"type": "string"}},
						"persisted": object{"type": "boolean"},
						"cached":    object{"type": "boolean"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}

package extract

import "google.golang.org/genai"

// dataKeys are the optional sub-fields the model may fill inside "data".
var dataKeys = []string{"location", "merchant", "payment_method", "notes"}

// responseSchema constrains the provider's structured output to the Result shape.
func responseSchema() *genai.Schema {
	dataProps := make(map[string]*genai.Schema, len(dataKeys))
	for _, key := range dataKeys {
		dataProps[key] = &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"value": {
				Type:        genai.TypeNumber,
				Nullable:    genai.Ptr(true),
				Description: "Amount payed, or null when no payment information is present.",
			},
			"description": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			"category":    {Type: genai.TypeString, Nullable: genai.Ptr(true)},
			"payed_at": {
				Type:        genai.TypeString,
				Nullable:    genai.Ptr(true),
				Description: "ISO-8601 timestamp of the payment, or null.",
			},
			"data": {
				Type:       genai.TypeObject,
				Nullable:   genai.Ptr(true),
				Properties: dataProps,
			},
		},
		Required: []string{"value", "description", "category", "payed_at", "data"},
	}
}

// jsonSchema returns the same shape as a JSON-Schema (draft 2020-12 subset) map.
// Provider conformance to responseSchema is not guaranteed, so parsed output is
// re-validated locally against this before it can reach the store.
func jsonSchema() map[string]any {
	dataProps := make(map[string]any, len(dataKeys))
	for _, key := range dataKeys {
		dataProps[key] = map[string]any{"type": "string"}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"value"},
		"properties": map[string]any{
			"value":       map[string]any{"type": []string{"number", "null"}},
			"description": map[string]any{"type": []string{"string", "null"}},
			"category":    map[string]any{"type": []string{"string", "null"}},
			"payed_at":    map[string]any{"type": []string{"string", "null"}},
			"data": map[string]any{
				"type":                 []string{"object", "null"},
				"additionalProperties": map[string]any{"type": "string"},
				"properties":           dataProps,
			},
		},
	}
}

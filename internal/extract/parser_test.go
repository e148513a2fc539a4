package extract

import (
	"errors"
	"testing"
	"time"
)

func TestParseValidResult(t *testing.T) {
	raw := `{"value":25.5,"description":"lunch","category":"food","payed_at":null,"data":{"merchant":"Corner Deli"}}`

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Value == nil || *res.Value != 25.5 {
		t.Fatalf("expected value 25.5, got %v", res.Value)
	}
	if res.Description == nil || *res.Description != "lunch" {
		t.Fatalf("expected description lunch, got %v", res.Description)
	}
	if res.PayedAt != nil {
		t.Fatalf("expected nil payed_at, got %v", *res.PayedAt)
	}
	if res.Data["merchant"] != "Corner Deli" {
		t.Fatalf("expected merchant sub-field, got %v", res.Data)
	}
}

func TestParseNullObjectIsValid(t *testing.T) {
	raw := `{"value":null,"description":null,"category":null,"payed_at":null,"data":null}`

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Value != nil {
		t.Fatalf("expected nil value, got %v", *res.Value)
	}
}

func TestParseStripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"value\":10,\"description\":null,\"category\":null,\"payed_at\":null,\"data\":null}\n```"

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Value == nil || *res.Value != 10 {
		t.Fatalf("expected value 10, got %v", res.Value)
	}
}

func TestParseRejectsInvalidOutput(t *testing.T) {
	cases := map[string]string{
		"non-json":           "I'm sorry, I can't help with that.",
		"empty":              "",
		"wrong value type":   `{"value":"a lot","description":null,"category":null,"payed_at":null,"data":null}`,
		"missing value":      `{"description":"lunch"}`,
		"unknown field":      `{"value":1,"description":null,"category":null,"payed_at":null,"data":null,"total":1}`,
		"non-string in data": `{"value":1,"description":null,"category":null,"payed_at":null,"data":{"notes":42}}`,
		"array output":       `[1, 2, 3]`,
	}

	for name, raw := range cases {
		if _, err := Parse(raw); !errors.Is(err, ErrUnparsable) {
			t.Errorf("%s: expected ErrUnparsable, got %v", name, err)
		}
	}
}

func TestParseAllowsExtraDataKeys(t *testing.T) {
	raw := `{"value":1,"description":null,"category":null,"payed_at":null,"data":{"receipt_no":"A-17"}}`

	res, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Data["receipt_no"] != "A-17" {
		t.Fatalf("expected open data mapping to carry extra keys, got %v", res.Data)
	}
}

func TestCleanModelJSON(t *testing.T) {
	cases := map[string]string{
		`{"value":1}`:                          `{"value":1}`,
		"```json\n{\"value\":1}\n```":          `{"value":1}`,
		"```\n{\"value\":1}\n```":              `{"value":1}`,
		"Here you go: {\"value\":1} thanks":    `{"value":1}`,
		"  \n{\"value\":1}\n  ":                `{"value":1}`,
	}
	for raw, want := range cases {
		if got := cleanModelJSON(raw); got != want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestPayedAtTimeLayouts(t *testing.T) {
	cases := map[string]*time.Time{
		"2024-05-01T13:00:00Z": timePtr(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)),
		"2024-05-01T13:00:00":  timePtr(time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)),
		"2024-05-01":           timePtr(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)),
		"yesterday":            nil,
		"":                     nil,
	}

	for input, want := range cases {
		var in *string
		if input != "" {
			in = &input
		}
		res := Result{PayedAt: in}
		got := res.PayedAtTime()
		switch {
		case want == nil && got != nil:
			t.Errorf("PayedAtTime(%q): expected nil, got %v", input, got)
		case want != nil && (got == nil || !got.Equal(*want)):
			t.Errorf("PayedAtTime(%q): expected %v, got %v", input, want, got)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

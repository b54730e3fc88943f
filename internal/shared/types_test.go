package shared

import (
	"strings"
	"testing"
)

func TestJSONMap_Value(t *testing.T) {
	tests := []struct {
		name     string
		m        JSONMap
		expected string
	}{
		{name: "nil map", m: nil, expected: "{}"},
		{name: "empty map", m: JSONMap{}, expected: "{}"},
		{name: "single key", m: JSONMap{"title": "clip"}, expected: `{"title":"clip"}`},
		{name: "nested", m: JSONMap{"a": map[string]any{"b": 1}}, expected: `{"a":{"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.m.Value()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s, ok := result.(string)
			if !ok {
				t.Fatalf("expected string, got %T", result)
			}
			if s != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, s)
			}
		})
	}
}

func TestJSONMap_Scan(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantKey string
		wantNil bool
		wantErr bool
	}{
		{name: "nil value", input: nil, wantNil: true},
		{name: "byte slice", input: []byte(`{"k":"v"}`), wantKey: "k"},
		{name: "string", input: `{"x":2}`, wantKey: "x"},
		{name: "invalid type", input: 42, wantErr: true},
		{name: "invalid json", input: `{nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m JSONMap
			err := m.Scan(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Scan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil && m != nil {
				t.Errorf("expected nil map, got %v", m)
			}
			if tt.wantKey != "" {
				if _, ok := m[tt.wantKey]; !ok {
					t.Errorf("expected key %q in %v", tt.wantKey, m)
				}
			}
		})
	}
}

func TestNewID(t *testing.T) {
	id := NewID("doc_")
	if !strings.HasPrefix(id, "doc_") {
		t.Errorf("expected prefix doc_, got %s", id)
	}
	if len(id) != len("doc_")+32 {
		t.Errorf("expected 32 hex chars after prefix, got %d", len(id)-len("doc_"))
	}
	if NewID("doc_") == id {
		t.Error("expected unique ids")
	}
}

package quiz

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"prose around", "Sure! Here you go:\n{\"a\":{\"b\":2}}\nThanks.", `{"a":{"b":2}}`},
		{"brace inside string", `{"feedback":"use } carefully","correct":true}`, `{"feedback":"use } carefully","correct":true}`},
		{"escaped quote", `{"f":"say \"hi\" {"}`, `{"f":"say \"hi\" {"}`},
		{"quote before object", `the "best" answer {"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"unterminated", `{"a":1`, ""},
		{"none", "no json here", ""},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeLenient(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}
	if err := decodeLenient("result: {\"a\": 3}", &out); err != nil {
		t.Fatalf("decodeLenient() error = %v", err)
	}
	if out.A != 3 {
		t.Errorf("A = %d; want 3", out.A)
	}

	if err := decodeLenient("nothing", &out); !errors.Is(err, ErrNoJSONObject) {
		t.Errorf("decodeLenient(nothing) error = %v; want ErrNoJSONObject", err)
	}
}

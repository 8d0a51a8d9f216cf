package pagination

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		t.Fatalf("test payload invalid: %v", err)
	}
	return value
}

func TestExtractRule_Extract(t *testing.T) {
	rule := DefaultExtractRule()

	tests := []struct {
		name    string
		payload string
		want    []int64
	}{
		{
			name:    "flat list of objects",
			payload: `{"data": [{"universeId": 10}, {"universeId": 20}, {"universeId": 30}]}`,
			want:    []int64{10, 20, 30},
		},
		{
			name:    "snake case variant",
			payload: `{"games": [{"universe_id": 7}]}`,
			want:    []int64{7},
		},
		{
			name:    "case-insensitive match",
			payload: `{"rows": [{"UNIVERSEID": 5}, {"UniverseId": 6}]}`,
			want:    []int64{5, 6},
		},
		{
			name:    "deeply nested",
			payload: `{"sorts": [{"contents": {"games": [{"meta": {"universeId": 99}}]}}]}`,
			want:    []int64{99},
		},
		{
			name:    "numeric string accepted",
			payload: `{"data": [{"universeId": "123"}, {"universeId": " 456 "}]}`,
			want:    []int64{123, 456},
		},
		{
			name:    "deduplicated by value in first-seen order",
			payload: `{"data": [{"universeId": 2}, {"universeId": 1}, {"universeId": 2}]}`,
			want:    []int64{2, 1},
		},
		{
			name:    "rejects non-positive and non-integral",
			payload: `{"data": [{"universeId": 0}, {"universeId": -5}, {"universeId": 1.5}, {"universeId": "abc"}, {"universeId": null}, {"universeId": true}]}`,
			want:    nil,
		},
		{
			name:    "unrelated keys ignored",
			payload: `{"placeId": 42, "data": [{"id": 7, "universeId": 8}]}`,
			want:    []int64{8},
		},
		{
			name:    "empty payload",
			payload: `{}`,
			want:    nil,
		},
		{
			name:    "scalar payload",
			payload: `"nothing here"`,
			want:    nil,
		},
		{
			name:    "top-level array",
			payload: `[{"universeId": 3}, {"universeId": 4}]`,
			want:    []int64{3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rule.Extract(decode(t, tt.payload))
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Extract()[%d] = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractRule_AliasedContainers(t *testing.T) {
	// The same slice reachable twice must not double-count its IDs.
	inner := []any{map[string]any{"universeId": float64(11)}}
	payload := map[string]any{"a": inner, "b": inner}

	got := DefaultExtractRule().Extract(payload)
	if len(got) != 1 || got[0] != 11 {
		t.Errorf("Extract() = %v, want [11]", got)
	}
}

func TestCoerceID(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int64
		wantOK bool
	}{
		{name: "integral float", value: float64(42), want: 42, wantOK: true},
		{name: "numeric string", value: "42", want: 42, wantOK: true},
		{name: "fractional float", value: float64(42.5), wantOK: false},
		{name: "zero", value: float64(0), wantOK: false},
		{name: "negative string", value: "-1", wantOK: false},
		{name: "empty string", value: "", wantOK: false},
		{name: "bool", value: true, wantOK: false},
		{name: "nil", value: nil, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := coerceID(tt.value)
			if ok != tt.wantOK {
				t.Fatalf("coerceID(%v) ok = %v, want %v", tt.value, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("coerceID(%v) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

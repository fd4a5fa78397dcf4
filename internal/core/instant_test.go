package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeInstant(t *testing.T) {
	want := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"iso string", `"2025-01-15T10:30:00Z"`, want},
		{"iso with offset", `"2025-01-15T11:30:00+01:00"`, want},
		{"iso millis", `"2025-01-15T10:30:00.000Z"`, want},
		{"date only", `"2025-01-15"`, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"server timestamp", `{"seconds": 1736937000, "nanos": 0}`, want},
		{"admin server timestamp", `{"_seconds": 1736937000, "_nanoseconds": 0}`, want},
		{"epoch millis", `1736937000000`, want},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeInstant([]byte(tc.in))
			if err != nil {
				t.Fatalf("DecodeInstant(%s) error = %v", tc.in, err)
			}
			if !got.Time.Equal(tc.want) {
				t.Fatalf("DecodeInstant(%s) = %v, want %v", tc.in, got.Time, tc.want)
			}
		})
	}
}

func TestDecodeInstantRejectsGarbage(t *testing.T) {
	for _, in := range []string{`"yesterday"`, `{"foo": 1}`, `true`} {
		if _, err := DecodeInstant([]byte(in)); err == nil {
			t.Errorf("DecodeInstant(%s) expected error", in)
		}
	}
}

func TestInstantJSON(t *testing.T) {
	type doc struct {
		At    Instant `json:"at"`
		Unset Instant `json:"unset"`
	}
	in := doc{At: NewInstant(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"at":"2025-06-01T08:00:00Z","unset":null}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var out doc
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.At.Equal(in.At) || out.Unset.IsSet() {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Instant is the single time representation used at every storage boundary.
// The zero Instant means "unset" and encodes as JSON null.
type Instant struct {
	time.Time
}

var ErrInvalidInstant = errors.New("invalid instant")

// NewInstant wraps t. Monotonic clock readings are stripped so that
// instants compare by value after a round trip.
func NewInstant(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{Time: t.Round(0)}
}

// IsSet reports whether the instant carries a value.
func (i Instant) IsSet() bool {
	return !i.IsZero()
}

// Equal compares instants by value.
func (i Instant) Equal(o Instant) bool {
	return i.Time.Equal(o.Time)
}

// String renders the ISO-8601 wire form.
func (i Instant) String() string {
	if i.IsZero() {
		return ""
	}
	return i.UTC().Format(time.RFC3339Nano)
}

func (i Instant) MarshalJSON() ([]byte, error) {
	if i.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

func (i *Instant) UnmarshalJSON(data []byte) error {
	v, err := DecodeInstant(data)
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// serverTimestamp covers the object shapes a document store returns for
// server-generated timestamps.
type serverTimestamp struct {
	Seconds      *int64 `json:"seconds"`
	Nanos        int64  `json:"nanos"`
	Nanoseconds  int64  `json:"nanoseconds"`
	USeconds     *int64 `json:"_seconds"`
	UNanoseconds int64  `json:"_nanoseconds"`
}

// DecodeInstant is the one decode step applied to every instant read from
// disk or from the remote store. It accepts null, an ISO-8601 string, epoch
// milliseconds, or a server timestamp object.
func DecodeInstant(data []byte) (Instant, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Instant{}, nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return Instant{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
		}
		return ParseInstant(s)
	case '{':
		var ts serverTimestamp
		if err := json.Unmarshal(data, &ts); err != nil {
			return Instant{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
		}
		switch {
		case ts.Seconds != nil:
			nanos := ts.Nanos
			if nanos == 0 {
				nanos = ts.Nanoseconds
			}
			return NewInstant(time.Unix(*ts.Seconds, nanos).UTC()), nil
		case ts.USeconds != nil:
			return NewInstant(time.Unix(*ts.USeconds, ts.UNanoseconds).UTC()), nil
		}
		return Instant{}, fmt.Errorf("%w: unrecognized timestamp object %s", ErrInvalidInstant, data)
	default:
		var ms json.Number
		if err := json.Unmarshal(data, &ms); err != nil {
			return Instant{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
		}
		n, err := ms.Int64()
		if err != nil {
			return Instant{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
		}
		return NewInstant(time.UnixMilli(n).UTC()), nil
	}
}

// ParseInstant parses an ISO-8601 string. Date-only strings are read as
// midnight UTC.
func ParseInstant(s string) (Instant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Instant{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewInstant(t), nil
		}
	}
	return Instant{}, fmt.Errorf("%w: %q", ErrInvalidInstant, s)
}

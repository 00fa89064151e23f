package notification

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"
)

// layouts accepted for string timestamps. The backend serializes local
// date-times without a zone; those are read as UTC. Fractional seconds are
// accepted after any seconds field.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a time.Time that decodes from an ISO string (with or without a
// zone), from epoch milliseconds, or from a [y,m,d,h,m,s,nanos] array.
// Anything else decodes to the zero time: a timestamp only orders and labels
// a notification, so it never fails the record carrying it.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	ts.Time = time.Time{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte(`""`)) {
		return nil
	}

	t, ok := parseTimestamp(data)
	if !ok {
		slog.Warn("timestamp_unrecognized", "value", string(data))
		return nil
	}
	ts.Time = t
	return nil
}

func parseTimestamp(data []byte) (time.Time, bool) {
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return time.Time{}, false
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case '[':
		return parseDateArray(data)
	default:
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
}

// parseDateArray reads the array form of a local date-time:
// [year, month, day, hour?, minute?, second?, nanos?].
func parseDateArray(data []byte) (time.Time, bool) {
	var parts []int
	if err := json.Unmarshal(data, &parts); err != nil || len(parts) < 3 || len(parts) > 7 {
		return time.Time{}, false
	}
	var f [7]int
	copy(f[:], parts)
	if f[1] < 1 || f[1] > 12 || f[2] < 1 || f[2] > 31 {
		return time.Time{}, false
	}
	return time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], f[6], time.UTC), true
}

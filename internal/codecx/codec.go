// Package codecx implements the transport codec for encrypted message
// fields: base64 with a hex fallback for byte columns, lenient JSON for
// envelopes, and timestamp normalization. Decode failures never surface
// as errors; callers get a conservative default plus an ok flag to log.
package codecx

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DecodeBytes decodes a transport string into raw bytes. Base64 is tried
// first, then hex. Absent or undecodable input yields empty bytes and
// ok=false rather than an error.
func DecodeBytes(s string) ([]byte, bool) {
	if s == "" {
		return []byte{}, true
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, true
	}
	if b, err := hex.DecodeString(s); err == nil {
		return b, true
	}
	return []byte{}, false
}

// EncodeBytes is the inverse of DecodeBytes; empty input encodes to "".
func EncodeBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}

// EnvelopesJSON serializes per-recipient key envelopes for the JSONB
// column. A nil map and a marshal failure both fall back to "{}".
func EnvelopesJSON(envelopes map[string]any) []byte {
	if envelopes == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(envelopes)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// ParseObject parses a JSON object leniently: malformed input or a
// non-object document yields an empty map, never an error.
func ParseObject(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// timestamp layouts accepted from clients, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp interprets a client-supplied creation time. A full
// timestamp is taken as-is, a bare time-of-day is anchored to today, and
// anything unparseable (including "") falls back to now with ok=false so
// the caller can log it.
func NormalizeTimestamp(value string, now time.Time) (time.Time, bool) {
	if value == "" {
		return now, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("15:04:05", value); err == nil {
		y, m, d := now.Date()
		return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, now.Location()), true
	}
	return now, false
}

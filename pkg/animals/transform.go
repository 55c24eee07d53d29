package animals

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedTimestamp is returned when a born_at value cannot be parsed.
// Callers drop the offending record; a bad timestamp is a data-quality
// problem, not a transport one.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// SplitFriends converts the source's comma-separated friends field into a
// slice: surrounding whitespace trimmed, empty elements from doubled
// delimiters dropped. An empty input maps to an empty slice, never nil.
func SplitFriends(s string) []string {
	friends := []string{}
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			friends = append(friends, name)
		}
	}
	return friends
}

// ToISO8601UTC normalizes a raw born_at value to ISO-8601 UTC with a Z
// suffix. Accepted inputs: epoch milliseconds (JSON number or numeric
// string) and ISO-8601 strings. Null, empty, and zero values map to nil;
// the source uses 0 as a missing-value sentinel, not the epoch.
// Fractional seconds appear only when the source carries them.
func ToISO8601UTC(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return epochMillisUTC(ms), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedTimestamp, raw)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epochMillisUTC(ms), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return renderUTC(t), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// epochMillisUTC converts epoch milliseconds to a rendered timestamp,
// treating 0 as absent.
func epochMillisUTC(ms int64) *string {
	if ms == 0 {
		return nil
	}
	return renderUTC(time.UnixMilli(ms))
}

// renderUTC formats a time as ISO-8601 UTC, keeping sub-second precision
// only when present.
func renderUTC(t time.Time) *string {
	t = t.UTC()
	layout := time.RFC3339
	if t.Nanosecond() != 0 {
		layout = time.RFC3339Nano
	}
	s := t.Format(layout)
	return &s
}

// Transform normalizes one raw detail into the upload schema. Pure: friends
// becomes a trimmed slice, born_at becomes ISO-8601 UTC, all other fields
// pass through unchanged.
func Transform(d Detail) (Record, error) {
	bornAt, err := ToISO8601UTC(d.BornAt)
	if err != nil {
		return Record{}, fmt.Errorf("animal %d: %w", d.ID, err)
	}

	return Record{
		ID:      d.ID,
		Name:    d.Name,
		BornAt:  bornAt,
		Friends: SplitFriends(d.Friends),
		Extra:   d.Extra,
	}, nil
}

// Package animals defines the animals API wire types and the normalization
// applied before upload.
package animals

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is one listing entry. The listing endpoint returns only the
// minimal fields; everything else comes from the detail endpoint.
type Summary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListPage is one page of the listing endpoint.
type ListPage struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Items      []Summary `json:"items"`
}

// Detail is a raw animal as served by the detail endpoint. BornAt is kept
// raw because the source emits epoch milliseconds, numeric strings, ISO-8601
// strings, or null. Friends arrives as a comma-separated string or as an
// array of strings. Fields beyond the known schema are preserved in Extra so
// they survive the transform untouched.
type Detail struct {
	ID      int64
	Name    string
	BornAt  json.RawMessage
	Friends string
	Extra   map[string]json.RawMessage
}

// UnmarshalJSON decodes the known fields and stashes everything else in Extra.
func (d *Detail) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	for key, raw := range fields {
		switch key {
		case "id":
			if err := json.Unmarshal(raw, &d.ID); err != nil {
				return fmt.Errorf("detail id: %w", err)
			}
		case "name":
			if err := json.Unmarshal(raw, &d.Name); err != nil {
				return fmt.Errorf("detail name: %w", err)
			}
		case "born_at":
			if string(raw) != "null" {
				d.BornAt = raw
			}
		case "friends":
			if string(raw) != "null" {
				if err := json.Unmarshal(raw, &d.Friends); err != nil {
					// Some records carry friends as an array already.
					var list []string
					if json.Unmarshal(raw, &list) != nil {
						return fmt.Errorf("detail friends: %w", err)
					}
					d.Friends = strings.Join(list, ",")
				}
			}
		default:
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[key] = raw
		}
	}
	return nil
}

// Record is a normalized animal ready for upload: friends is always a slice
// (possibly empty, never nil) and born_at is ISO-8601 UTC or null.
type Record struct {
	ID      int64
	Name    string
	BornAt  *string
	Friends []string
	Extra   map[string]json.RawMessage
}

// MarshalJSON renders the record with passthrough fields merged back in.
// Known fields win over Extra on key collision.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+4)
	for key, raw := range r.Extra {
		out[key] = raw
	}

	friends := r.Friends
	if friends == nil {
		friends = []string{}
	}

	for key, value := range map[string]any{
		"id":      r.ID,
		"name":    r.Name,
		"born_at": r.BornAt,
		"friends": friends,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", key, err)
		}
		out[key] = raw
	}

	return json.Marshal(out)
}

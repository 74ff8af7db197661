package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Ref is a foreign-key reference returned by the LMS server. Depending on whether the
// server populated the relation it arrives either as a bare id string or as an embedded
// document carrying `_id`. Both shapes decode into the same value and compare by ID.
type Ref struct {
	ID  string
	Raw json.RawMessage
}

// NewRef builds an unpopulated reference.
func NewRef(id string) Ref {
	return Ref{ID: strings.TrimSpace(id)}
}

// Is reports whether the reference points at the given id.
func (r Ref) Is(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && r.ID == id
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

func (r Ref) String() string {
	return r.ID
}

// Populated reports whether the server embedded the referenced document.
func (r Ref) Populated() bool {
	return len(r.Raw) > 0
}

// Decode unmarshals the embedded document, if any, into dst.
func (r Ref) Decode(dst interface{}) error {
	if !r.Populated() {
		return fmt.Errorf("reference %q is not populated", r.ID)
	}
	return json.Unmarshal(r.Raw, dst)
}

// UnmarshalJSON accepts a string id, a number, null or an object with `_id`/`id`.
func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Ref{}
		return nil
	}

	if trimmed[0] == '{' {
		var doc map[string]interface{}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return err
		}
		*r = Ref{ID: ExtractID(doc), Raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}

	var value interface{}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return err
	}
	*r = Ref{ID: ExtractID(value)}
	return nil
}

// MarshalJSON writes the embedded document back when present, otherwise the bare id.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.Populated() {
		return r.Raw, nil
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// ExtractID normalises a possibly-populated reference into its plain id.
func ExtractID(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case Ref:
		return v.ID
	case *Ref:
		if v == nil {
			return ""
		}
		return v.ID
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case json.Number:
		return v.String()
	case json.RawMessage:
		var ref Ref
		if err := ref.UnmarshalJSON(v); err != nil {
			return ""
		}
		return ref.ID
	case map[string]interface{}:
		for _, key := range []string{"_id", "id"} {
			if nested, ok := v[key]; ok {
				if id := ExtractID(nested); id != "" {
					return id
				}
			}
		}
		// Mongo extended JSON: {"$oid": "..."}
		if oid, ok := v["$oid"]; ok {
			return ExtractID(oid)
		}
		return ""
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

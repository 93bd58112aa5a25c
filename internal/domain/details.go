package domain

import (
	"encoding/json"
	"maps"
)

// Details is the schema-less side record attached to an entry. Enrichment
// steps each own a disjoint set of keys and merge them in; nothing replaces
// the whole document.
//
// Known keys decode into typed fields. Anything else is kept in Extra so a
// newer writer's fields survive a round trip through an older reader.
type Details struct {
	Width       *int     `json:"width,omitempty"`
	Height      *int     `json:"height,omitempty"`
	ByteLength  *int     `json:"byteLength,omitempty"`
	BlurHash    string   `json:"blurHash,omitempty"`
	WordCount   *int     `json:"wordCount,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// detailsFields mirrors Details without the custom (un)marshalers.
type detailsFields Details

var knownDetailKeys = map[string]struct{}{
	"width": {}, "height": {}, "byteLength": {}, "blurHash": {},
	"wordCount": {}, "tags": {}, "description": {},
}

// MarshalJSON writes the typed fields plus any preserved extra keys.
func (d Details) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(detailsFields(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(d.Extra)+7)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, known := knownDetailKeys[k]; !known {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON decodes typed fields leniently. A known key carrying the
// wrong JSON type is dropped rather than failing the whole record.
func (d *Details) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*d = Details{}
	for k, v := range raw {
		if _, known := knownDetailKeys[k]; !known {
			if d.Extra == nil {
				d.Extra = make(map[string]json.RawMessage)
			}
			d.Extra[k] = v
			continue
		}
		var one detailsFields
		if err := json.Unmarshal(singleKeyObject(k, v), &one); err != nil {
			continue
		}
		d.mergeFrom(Details(one))
	}
	return nil
}

// IsEmpty reports whether no field is set.
func (d Details) IsEmpty() bool {
	return d.Width == nil && d.Height == nil && d.ByteLength == nil &&
		d.BlurHash == "" && d.WordCount == nil && len(d.Tags) == 0 &&
		d.Description == "" && len(d.Extra) == 0
}

// Merge returns a copy of d with every field set in patch applied on top.
func (d Details) Merge(patch Details) Details {
	out := d
	if d.Extra != nil {
		out.Extra = maps.Clone(d.Extra)
	}
	out.mergeFrom(patch)
	return out
}

func (d *Details) mergeFrom(p Details) {
	if p.Width != nil {
		d.Width = p.Width
	}
	if p.Height != nil {
		d.Height = p.Height
	}
	if p.ByteLength != nil {
		d.ByteLength = p.ByteLength
	}
	if p.BlurHash != "" {
		d.BlurHash = p.BlurHash
	}
	if p.WordCount != nil {
		d.WordCount = p.WordCount
	}
	if len(p.Tags) > 0 {
		d.Tags = append([]string(nil), p.Tags...)
	}
	if p.Description != "" {
		d.Description = p.Description
	}
	for k, v := range p.Extra {
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
}

// singleKeyObject wraps a single key/value pair back into a JSON object.
func singleKeyObject(key string, value json.RawMessage) []byte {
	k, _ := json.Marshal(key)
	buf := make([]byte, 0, len(k)+len(value)+3)
	buf = append(buf, '{')
	buf = append(buf, k...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	buf = append(buf, '}')
	return buf
}

// IntPtr is a small helper for building Details literals.
func IntPtr(v int) *int { return &v }

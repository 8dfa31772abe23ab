// Package flow models the records, channels and sessions that connect a
// processing stage to the pipeline hosting it.
package flow

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Attribute names shared by producers and the stage.
const (
	AttrContentType = "content-type"
	AttrRegion      = "region"
)

// Relationship names an outbound channel.
type Relationship string

const (
	RelSuccess Relationship = "success"
	RelFailure Relationship = "failure"
)

// Record is one flow record: opaque content plus string attributes.
// ParentID links a derived record to the record it was produced from.
type Record struct {
	ID         string            `json:"id"`
	ParentID   string            `json:"parentId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Content    []byte            `json:"content"`
}

// Attribute returns the named attribute, or "" when absent.
func (r *Record) Attribute(name string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := &Record{ID: r.ID, ParentID: r.ParentID}
	if r.Attributes != nil {
		cp.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			cp.Attributes[k] = v
		}
	}
	if r.Content != nil {
		cp.Content = append([]byte(nil), r.Content...)
	}
	return cp
}

// UnmarshalJSON accepts content either as a base64 string or as a Node.js
// Buffer object ({"type":"Buffer","data":[...]}) written by older producers.
func (r *Record) UnmarshalJSON(data []byte) error {
	type Alias Record
	aux := &struct {
		Content interface{} `json:"content,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}

	switch v := aux.Content.(type) {
	case nil:
		r.Content = nil

	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 content: %w", err)
		}
		r.Content = decoded

	case map[string]interface{}:
		if bufferType, ok := v["type"].(string); !ok || bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		r.Content = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			r.Content[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("content must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// Property is one configured stage property. Order of a []Property is the
// declaration order.
type Property struct {
	Name  string
	Value string
}

// Lookup returns the value of the named property and whether it was set.
func Lookup(props []Property, name string) (string, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

package iot

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ustrahlendorf/web-form-datacollection/internal/apierr"
)

// EnvelopeKind tells how a response body wrapped its items
type EnvelopeKind int

const (
	// ListEnvelope is a bare JSON array of items
	ListEnvelope EnvelopeKind = iota
	// ObjectEnvelope is a single item; it only appears inside a wrapper
	ObjectEnvelope
	// WrappedEnvelope is {"data": <list or object>}
	WrappedEnvelope
)

// Envelope is a decoded response body. Exactly one of Items, Object or Data
// is set, according to Kind.
type Envelope struct {
	Kind   EnvelopeKind
	Items  []map[string]any
	Object map[string]any
	Data   *Envelope
}

// DecodeEnvelope parses a response body into an Envelope. Numbers are kept
// as json.Number so large ids survive unchanged.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", apierr.ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		items, err := decodeItems(trimmed)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: ListEnvelope, Items: items}, nil

	case '{':
		var top map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &top); err != nil {
			return nil, fmt.Errorf("%w: %v", apierr.ErrMalformedResponse, err)
		}
		raw, ok := top["data"]
		if !ok {
			return nil, fmt.Errorf("%w: object without \"data\" key", apierr.ErrMalformedResponse)
		}
		inner, err := decodeData(raw)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: WrappedEnvelope, Data: inner}, nil

	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", apierr.ErrMalformedResponse)
	}
}

func decodeData(raw json.RawMessage) (*Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty \"data\"", apierr.ErrMalformedResponse)
	}

	switch trimmed[0] {
	case '[':
		items, err := decodeItems(trimmed)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: ListEnvelope, Items: items}, nil
	case '{':
		obj, err := decodeObject(trimmed)
		if err != nil {
			return nil, err
		}
		return &Envelope{Kind: ObjectEnvelope, Object: obj}, nil
	default:
		return nil, fmt.Errorf("%w: \"data\" must be a list or object", apierr.ErrMalformedResponse)
	}
}

func decodeItems(raw []byte) ([]map[string]any, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrMalformedResponse, err)
	}

	items := make([]map[string]any, 0, len(elems))
	for i, elem := range elems {
		obj, err := decodeObject(elem)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, obj)
	}
	return items, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", apierr.ErrMalformedResponse, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: list item is %s, not an object", apierr.ErrMalformedResponse, jsonKind(v))
	}
	return obj, nil
}

// List flattens the envelope into its items
func (e *Envelope) List() []map[string]any {
	switch e.Kind {
	case ListEnvelope:
		return e.Items
	case ObjectEnvelope:
		return []map[string]any{e.Object}
	case WrappedEnvelope:
		if e.Data == nil {
			return nil
		}
		return e.Data.List()
	}
	return nil
}

// NormalizeList decodes body and returns its items, whatever the envelope
func NormalizeList(body []byte) ([]map[string]any, error) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	return env.List(), nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	case string:
		return "a string"
	case []any:
		return "a list"
	default:
		return fmt.Sprintf("%T", v)
	}
}

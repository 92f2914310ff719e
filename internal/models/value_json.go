package models

import (
	"encoding/json"
	"fmt"
)

// taggedValue JSON-представление Value: {"kind": "...", "value": ...}.
// Тег сохраняет вариант значения при round-trip (например, Int и Float).
type taggedValue struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Fields набор доменных полей записи с JSON-кодированием через taggedValue.
type Fields map[string]Value

// MarshalJSON implements json.Marshaler
func (f Fields) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f))
	for name, value := range f {
		out[name] = encodeTagged(value)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Fields) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode fields: %w", err)
	}

	out := make(Fields, len(raw))
	for name, item := range raw {
		value, err := UnmarshalValue(item)
		if err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		out[name] = value
	}
	*f = out
	return nil
}

// MarshalValue кодирует одно значение в tagged JSON.
func MarshalValue(v Value) ([]byte, error) {
	return json.Marshal(encodeTagged(v))
}

// UnmarshalValue декодирует tagged JSON в Value.
func UnmarshalValue(data []byte) (Value, error) {
	var tagged taggedValue
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return decodeTagged(tagged)
}

func encodeTagged(v Value) any {
	if IsNull(v) {
		return map[string]any{"kind": KindNull}
	}

	var payload any
	switch val := v.(type) {
	case List:
		items := make([]any, len(val))
		for i, item := range val {
			items[i] = encodeTagged(item)
		}
		payload = items
	case Object:
		items := make(map[string]any, len(val))
		for key, item := range val {
			items[key] = encodeTagged(item)
		}
		payload = items
	case Bytes:
		payload = []byte(val)
	default:
		payload = val
	}

	return map[string]any{"kind": v.Kind(), "value": payload}
}

func decodeTagged(tagged taggedValue) (Value, error) {
	switch tagged.Kind {
	case KindNull, "":
		return Null{}, nil
	case KindBool:
		var b bool
		if err := json.Unmarshal(tagged.Value, &b); err != nil {
			return nil, fmt.Errorf("invalid bool: %w", err)
		}
		return Bool(b), nil
	case KindInt:
		var i int64
		if err := json.Unmarshal(tagged.Value, &i); err != nil {
			return nil, fmt.Errorf("invalid int: %w", err)
		}
		return Int(i), nil
	case KindFloat:
		var f float64
		if err := json.Unmarshal(tagged.Value, &f); err != nil {
			return nil, fmt.Errorf("invalid float: %w", err)
		}
		return Float(f), nil
	case KindString:
		var s string
		if err := json.Unmarshal(tagged.Value, &s); err != nil {
			return nil, fmt.Errorf("invalid string: %w", err)
		}
		return String(s), nil
	case KindBytes:
		var b []byte
		if err := json.Unmarshal(tagged.Value, &b); err != nil {
			return nil, fmt.Errorf("invalid bytes: %w", err)
		}
		return Bytes(b), nil
	case KindList:
		var items []taggedValue
		if err := json.Unmarshal(tagged.Value, &items); err != nil {
			return nil, fmt.Errorf("invalid list: %w", err)
		}
		out := make(List, len(items))
		for i, item := range items {
			value, err := decodeTagged(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = value
		}
		return out, nil
	case KindObject:
		var items map[string]taggedValue
		if err := json.Unmarshal(tagged.Value, &items); err != nil {
			return nil, fmt.Errorf("invalid object: %w", err)
		}
		out := make(Object, len(items))
		for key, item := range items {
			value, err := decodeTagged(item)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			out[key] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", tagged.Kind)
	}
}

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Kind тип значения поля записи.
type Kind string

// Допустимые типы значений
const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBytes  Kind = "bytes"
	KindList   Kind = "list"
	KindObject Kind = "object"
)

// ErrNotOrdered возвращается при сравнении значений, для которых нет порядка.
var ErrNotOrdered = errors.New("values are not totally ordered")

// Value закрытый (sealed) набор значений полей записи.
// Реализуют только Null, Bool, Int, Float, String, Bytes, List и Object.
type Value interface {
	Kind() Kind
	sealed()
}

// Null явное отсутствие значения. Поле со значением Null эквивалентно
// отсутствующему полю.
type Null struct{}

// Bool логическое значение
type Bool bool

// Int целое значение
type Int int64

// Float значение с плавающей точкой
type Float float64

// String строковое значение
type String string

// Bytes бинарное значение (например, содержимое файла)
type Bytes []byte

// List упорядоченная последовательность значений
type List []Value

// Object вложенный объект; порядок ключей не имеет значения
type Object map[string]Value

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (Bytes) Kind() Kind  { return KindBytes }
func (List) Kind() Kind   { return KindList }
func (Object) Kind() Kind { return KindObject }

func (Null) sealed()   {}
func (Bool) sealed()   {}
func (Int) sealed()    {}
func (Float) sealed()  {}
func (String) sealed() {}
func (Bytes) sealed()  {}
func (List) sealed()   {}
func (Object) sealed() {}

// IsNull сообщает, что значение отсутствует (nil или Null).
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal структурное сравнение значений.
// В отличие от сравнения сериализованных строк:
//   - порядок ключей объекта не важен
//   - ключ со значением Null равен отсутствующему ключу
//   - строки сравниваются после NFC-нормализации
//   - Int(1) равен Float(1.0)
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	if isNumeric(a) {
		c, ok := compareNumeric(a, b)
		return ok && c == 0
	}

	switch va := a.(type) {
	case Bool:
		vb, ok := b.(Bool)
		return ok && va == vb
	case String:
		vb, ok := b.(String)
		return ok && norm.NFC.String(string(va)) == norm.NFC.String(string(vb))
	case Bytes:
		vb, ok := b.(Bytes)
		return ok && bytes.Equal(va, vb)
	case List:
		vb, ok := b.(List)
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !Equal(va[i], vb[i]) {
				return false
			}
		}
		return true
	case Object:
		vb, ok := b.(Object)
		if !ok {
			return false
		}
		for key, value := range va {
			if !Equal(value, vb[key]) {
				return false
			}
		}
		for key, value := range vb {
			if _, seen := va[key]; !seen && !IsNull(value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CompareOrdered сравнивает два упорядоченных значения (числа или строки).
// Null меньше любого значения. Возвращает -1, 0 или 1.
func CompareOrdered(a, b Value) (int, error) {
	switch {
	case IsNull(a) && IsNull(b):
		return 0, nil
	case IsNull(a):
		return -1, nil
	case IsNull(b):
		return 1, nil
	}

	if isNumeric(a) {
		c, ok := compareNumeric(a, b)
		if !ok {
			return 0, fmt.Errorf("%w: %s vs %s", ErrNotOrdered, a.Kind(), b.Kind())
		}
		return c, nil
	}

	sa, okA := a.(String)
	sb, okB := b.(String)
	if !okA || !okB {
		return 0, fmt.Errorf("%w: %s vs %s", ErrNotOrdered, a.Kind(), b.Kind())
	}
	switch na, nb := norm.NFC.String(string(sa)), norm.NFC.String(string(sb)); {
	case na < nb:
		return -1, nil
	case na > nb:
		return 1, nil
	}
	return 0, nil
}

func isNumeric(v Value) bool {
	switch v.(type) {
	case Int, Float:
		return true
	}
	return false
}

// compareNumeric точно сравнивает Int и Float без приведения int64 к float64.
// ok == false, если b не число или одно из значений NaN.
func compareNumeric(a, b Value) (int, bool) {
	switch va := a.(type) {
	case Int:
		switch vb := b.(type) {
		case Int:
			return cmpInt(int64(va), int64(vb)), true
		case Float:
			return compareIntFloat(int64(va), float64(vb))
		}
	case Float:
		switch vb := b.(type) {
		case Int:
			c, ok := compareIntFloat(int64(vb), float64(va))
			return -c, ok
		case Float:
			x, y := float64(va), float64(vb)
			if math.IsNaN(x) || math.IsNaN(y) {
				return 0, false
			}
			switch {
			case x < y:
				return -1, true
			case x > y:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func cmpInt(x, y int64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// compareIntFloat сравнивает i и f: целая часть f сравнивается как int64,
// дробная решает при равенстве целых частей.
func compareIntFloat(i int64, f float64) (int, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case f >= 1<<63:
		return -1, true
	case f < -(1 << 63):
		return 1, true
	}

	t := math.Trunc(f)
	if c := cmpInt(i, int64(t)); c != 0 {
		return c, true
	}
	switch {
	case f > t:
		return -1, true
	case f < t:
		return 1, true
	}
	return 0, true
}

// integralFloat сообщает, что f целое и представимо в int64
func integralFloat(f float64) bool {
	return f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63
}

// Canonical возвращает каноническое байтовое представление значения:
// отсортированные ключи, NFC-строки, ключи со значением Null опущены,
// целые Float кодируются как Int. Равные по Equal значения дают
// одинаковое представление.
func Canonical(v Value) []byte {
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.Bytes()
}

func writeCanonical(buf *bytes.Buffer, v Value) {
	if IsNull(v) {
		buf.WriteString("null")
		return
	}

	switch val := v.(type) {
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if integralFloat(f) {
			buf.WriteString(strconv.FormatInt(int64(f), 10))
			return
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case String:
		buf.WriteString(strconv.Quote(norm.NFC.String(string(val))))
	case Bytes:
		buf.WriteString("b")
		buf.WriteString(strconv.Quote(string(val)))
	case List:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, item)
		}
		buf.WriteByte(']')
	case Object:
		keys := make([]string, 0, len(val))
		for key, item := range val {
			if !IsNull(item) {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Quote(key))
			buf.WriteByte(':')
			writeCanonical(buf, val[key])
		}
		buf.WriteByte('}')
	}
}

// CloneValue создает глубокую копию значения.
func CloneValue(v Value) Value {
	switch val := v.(type) {
	case Bytes:
		out := make(Bytes, len(val))
		copy(out, val)
		return out
	case List:
		out := make(List, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case Object:
		out := make(Object, len(val))
		for key, item := range val {
			out[key] = CloneValue(item)
		}
		return out
	default:
		return v
	}
}

// FromAny конвертирует значение, полученное из JSON/YAML декодера, в Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return Int(int64(val)), nil
		}
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Float(f), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case []any:
		out := make(List, len(val))
		for i, item := range val {
			converted, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = converted
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for key, item := range val {
			converted, err := FromAny(item)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			out[key] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

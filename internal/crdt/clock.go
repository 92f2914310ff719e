package crdt

import (
	"fmt"
	"sort"
	"strings"
)

// Order описывает причинно-следственное отношение между двумя векторными часами.
type Order int

const (
	// Equal все счетчики совпадают
	Equal Order = iota
	// Before первые часы предшествуют вторым (все счетчики <=, хотя бы один <)
	Before
	// After первые часы следуют за вторыми
	After
	// Concurrent ни одни часы не доминируют над другими - настоящий конфликт
	Concurrent
)

// String возвращает имя отношения для логов и вывода CLI.
func (o Order) String() string {
	switch o {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	default:
		return fmt.Sprintf("order(%d)", int(o))
	}
}

// VectorClock представляет векторные часы: device id -> монотонный счетчик.
// Значения неизменяемы по соглашению: все операции возвращают новые часы,
// поэтому их можно безопасно разделять между горутинами.
type VectorClock map[string]int64

// NewVectorClock создает пустые векторные часы.
func NewVectorClock() VectorClock {
	return make(VectorClock)
}

// Get возвращает счетчик устройства; отсутствующая запись равна 0.
func (vc VectorClock) Get(device string) int64 {
	return vc[device]
}

// IsZero сообщает, что в часах нет ни одного ненулевого счетчика.
func (vc VectorClock) IsZero() bool {
	for _, counter := range vc {
		if counter != 0 {
			return false
		}
	}
	return true
}

// Copy создает глубокую копию часов.
func (vc VectorClock) Copy() VectorClock {
	out := make(VectorClock, len(vc))
	for device, counter := range vc {
		out[device] = counter
	}
	return out
}

// Increment возвращает новые часы, в которых счетчик device увеличен на 1.
// Используется хранилищем при локальной записи.
func (vc VectorClock) Increment(device string) VectorClock {
	out := vc.Copy()
	out[device]++
	return out
}

// Compare сравнивает часы vc с other.
// Отсутствующие записи считаются равными 0, поэтому {a:1} и {a:1, b:0} равны.
func (vc VectorClock) Compare(other VectorClock) Order {
	var less, greater bool

	for device, counter := range vc {
		switch otherCounter := other[device]; {
		case counter < otherCounter:
			less = true
		case counter > otherCounter:
			greater = true
		}
	}
	for device, otherCounter := range other {
		if _, seen := vc[device]; seen {
			continue
		}
		if otherCounter > 0 {
			less = true
		} else if otherCounter < 0 {
			greater = true
		}
	}

	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	default:
		return Equal
	}
}

// Dominates сообщает, что vc следует за other или равен ему.
func (vc VectorClock) Dominates(other VectorClock) bool {
	order := vc.Compare(other)
	return order == After || order == Equal
}

// Merge возвращает поточечный максимум двух часов.
// Результат доминирует над обоими аргументами; операция коммутативна,
// ассоциативна и идемпотентна.
func Merge(a, b VectorClock) VectorClock {
	out := make(VectorClock, len(a)+len(b))
	for device, counter := range a {
		out[device] = counter
	}
	for device, counter := range b {
		if current, ok := out[device]; !ok || counter > current {
			out[device] = counter
		}
	}
	return out
}

// Equal сообщает, что часы равны с учетом нулевых записей.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.Compare(other) == Equal
}

// Devices возвращает отсортированный список устройств.
func (vc VectorClock) Devices() []string {
	devices := make([]string, 0, len(vc))
	for device := range vc {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices
}

// String возвращает детерминированное представление вида {d1:2, d2:1}.
func (vc VectorClock) String() string {
	if len(vc) == 0 {
		return "{}"
	}

	parts := make([]string, 0, len(vc))
	for _, device := range vc.Devices() {
		parts = append(parts, fmt.Sprintf("%s:%d", device, vc[device]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

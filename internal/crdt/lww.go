package crdt

import "time"

// Stamp описывает момент записи для правила LWW (Last-Write-Wins):
// физическое время записи и идентификатор устройства, сделавшего запись.
type Stamp struct {
	At     time.Time
	NodeID string
}

// Side указывает, какая из двух версий выиграла сравнение.
type Side int

const (
	// SideLocal победила локальная версия
	SideLocal Side = iota
	// SideRemote победила удаленная версия
	SideRemote
)

// String возвращает имя стороны.
func (s Side) String() string {
	if s == SideRemote {
		return "remote"
	}
	return "local"
}

// IsNewerThan определяет, новее ли s, чем other.
// Согласно алгоритму LWW:
// 1. Сначала сравнивается время (более позднее выигрывает)
// 2. При равном времени сравнивается NodeID (лексикографически)
func (s Stamp) IsNewerThan(other Stamp) bool {
	if s.At.After(other.At) {
		return true
	}
	if s.At.Before(other.At) {
		return false
	}
	// Время одинаковое - сравниваем NodeID для детерминизма
	return s.NodeID > other.NodeID
}

// PickLWW выбирает победителя между локальной и удаленной версиями.
// При полном совпадении (время и NodeID) побеждает локальная версия.
// Только в этом случае результат зависит от того, какая сторона локальная:
// PickLWW(a, b) и PickLWW(b, a) обе возвращают SideLocal, то есть разные
// версии. Повторный вызов с теми же аргументами дает тот же результат.
func PickLWW(local, remote Stamp) Side {
	if remote.IsNewerThan(local) {
		return SideRemote
	}
	return SideLocal
}

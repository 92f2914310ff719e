package models

import (
	"sort"
	"time"

	"github.com/iudanet/gophsync/internal/crdt"
)

// Record представляет CRDT-запись, которую можно редактировать независимо
// на нескольких устройствах и позже согласовать.
// Записи создаются доменным модулем и изменяются только через хранилище;
// движок согласования никогда не изменяет запись на месте, а создает новую.
type Record struct {
	UpdatedAt  time.Time            `json:"updated_at"`            // UpdatedAt время последней записи (для LWW)
	Tombstone  *time.Time           `json:"tombstone,omitempty"`   // Tombstone время soft delete (nil = запись жива)
	Clock      crdt.VectorClock     `json:"clock"`                 // Clock векторные часы записи
	Fields     Fields               `json:"fields"`                // Fields доменные поля записи
	FieldTimes map[string]time.Time `json:"field_times,omitempty"` // FieldTimes время записи отдельных полей (опционально)
	ID         string               `json:"id"`                    // ID стабильный идентификатор записи (UUID)
	Type       string               `json:"type"`                  // Type тип сущности: "credential", "text", "binary", "card"
	NodeID     string               `json:"node_id"`               // NodeID устройство, сделавшее последнюю запись
}

// IsDeleted сообщает, что запись помечена как удаленная (soft delete).
func (r *Record) IsDeleted() bool {
	return r.Tombstone != nil
}

// Stamp возвращает отметку записи для правила LWW.
func (r *Record) Stamp() crdt.Stamp {
	return crdt.Stamp{At: r.UpdatedAt, NodeID: r.NodeID}
}

// FieldStamp возвращает отметку поля и признак того, что время поля отслеживается.
func (r *Record) FieldStamp(field string) (crdt.Stamp, bool) {
	at, ok := r.FieldTimes[field]
	if !ok {
		return r.Stamp(), false
	}
	return crdt.Stamp{At: at, NodeID: r.NodeID}, true
}

// Field возвращает значение поля; отсутствующее поле возвращается как Null.
func (r *Record) Field(name string) Value {
	if v, ok := r.Fields[name]; ok && v != nil {
		return v
	}
	return Null{}
}

// FieldNames возвращает отсортированные имена полей записи.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone создает глубокую копию записи
func (r *Record) Clone() *Record {
	fields := make(Fields, len(r.Fields))
	for name, value := range r.Fields {
		fields[name] = CloneValue(value)
	}

	var fieldTimes map[string]time.Time
	if r.FieldTimes != nil {
		fieldTimes = make(map[string]time.Time, len(r.FieldTimes))
		for name, at := range r.FieldTimes {
			fieldTimes[name] = at
		}
	}

	var tombstone *time.Time
	if r.Tombstone != nil {
		ts := *r.Tombstone
		tombstone = &ts
	}

	return &Record{
		ID:         r.ID,
		Type:       r.Type,
		NodeID:     r.NodeID,
		Clock:      r.Clock.Copy(),
		Tombstone:  tombstone,
		UpdatedAt:  r.UpdatedAt,
		Fields:     fields,
		FieldTimes: fieldTimes,
	}
}

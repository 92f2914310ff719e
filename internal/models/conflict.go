package models

import "time"

// ConflictKind классификация конфликта
type ConflictKind string

const (
	// ConcurrentUpdate обе стороны изменили запись независимо
	ConcurrentUpdate ConflictKind = "concurrent_update"
	// DeleteUpdate одна сторона удалила запись, другая изменила
	DeleteUpdate ConflictKind = "delete_update"
	// StructuralConflict стороны разошлись в поле-дискриминаторе
	StructuralConflict ConflictKind = "structural_conflict"
)

// Severity уровень важности конфликта для триажа
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank возвращает порядковый номер уровня (low = 0 ... critical = 3).
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Strategy имя стратегии разрешения конфликта
type Strategy string

// Автоматические стратегии
const (
	StrategyAutoLWW    Strategy = "auto_lww"
	StrategyAutoMerge  Strategy = "auto_merge"
	StrategyLocalWins  Strategy = "local_wins"
	StrategyRemoteWins Strategy = "remote_wins"
	// StrategyManual пакетная стратегия: critical конфликты уходят на ручной разбор
	StrategyManual Strategy = "manual"
)

// Ручные решения
const (
	StrategyKeepLocal   Strategy = "keep_local"
	StrategyKeepRemote  Strategy = "keep_remote"
	StrategyCustomMerge Strategy = "custom_merge"
)

// IsManual сообщает, что стратегия - ручное решение пользователя.
func (s Strategy) IsManual() bool {
	return s == StrategyKeepLocal || s == StrategyKeepRemote || s == StrategyCustomMerge
}

// Winner чья версия легла в основу согласованной записи
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
	WinnerMerged Winner = "merged"
	WinnerManual Winner = "manual"
)

// DetectedConflict неизменяемое описание обнаруженного конфликта.
// Создается только детектором конфликтов.
type DetectedConflict struct {
	DetectedAt        time.Time    `json:"detected_at"`
	Local             *Record      `json:"local"`
	Remote            *Record      `json:"remote"`
	ID                string       `json:"id"`
	EntityType        string       `json:"entity_type"`
	EntityID          string       `json:"entity_id"`
	Kind              ConflictKind `json:"kind"`
	Severity          Severity     `json:"severity"`
	ConflictingFields []string     `json:"conflicting_fields"`
}

// FieldConflict проекция конфликта на одно поле для ручного разбора.
type FieldConflict struct {
	LocalValue     Value  `json:"-"`
	RemoteValue    Value  `json:"-"`
	SuggestedValue Value  `json:"-"`
	Field          string `json:"field"`
	Policy         string `json:"policy,omitempty"`
	CanAutoResolve bool   `json:"can_auto_resolve"`
}

// ConflictResolution неизменяемый результат разрешения конфликта.
// Инвариант: Record.Clock доминирует над часами обеих входных записей.
type ConflictResolution struct {
	ResolvedAt   time.Time `json:"resolved_at" validate:"required"`
	Record       *Record   `json:"record" validate:"required"`
	ConflictID   string    `json:"conflict_id" validate:"required"`
	Strategy     Strategy  `json:"strategy" validate:"required,oneof=auto_lww auto_merge local_wins remote_wins keep_local keep_remote custom_merge"`
	Winner       Winner    `json:"winner" validate:"required,oneof=local remote merged manual"`
	ResolvedBy   string    `json:"resolved_by,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	MergedFields []string  `json:"merged_fields,omitempty"`
}

// HistoryEntry запись аудита: конфликт и его разрешение (nil, если не разрешен)
// плюс флаги просмотра. После разрешения изменяются только флаги Read/Dismissed.
type HistoryEntry struct {
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	Resolution *ConflictResolution `json:"resolution,omitempty"`
	Conflict   DetectedConflict    `json:"conflict"`
	Read       bool                `json:"read"`
	Dismissed  bool                `json:"dismissed"`
}

// ID идентификатор записи истории (совпадает с ID конфликта)
func (h *HistoryEntry) ID() string {
	return h.Conflict.ID
}

// IsResolved сообщает, что конфликт разрешен
func (h *HistoryEntry) IsResolved() bool {
	return h.Resolution != nil
}

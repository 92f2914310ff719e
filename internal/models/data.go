package models

import (
	"errors"
	"fmt"
	"sort"
)

// DataType константы для типов сущностей
const (
	DataTypeCredential = "credential"
	DataTypeText       = "text"
	DataTypeBinary     = "binary"
	DataTypeCard       = "card"
)

// ErrSchemaViolation запись не соответствует схеме своего типа.
var ErrSchemaViolation = errors.New("record does not match entity schema")

// FieldDescriptor описывает одно доменное поле сущности.
type FieldDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Ordered сообщает, что значения поля линейно упорядочены (для политик max/min).
func (d FieldDescriptor) Ordered() bool {
	return d.Kind == KindInt || d.Kind == KindFloat || d.Kind == KindString
}

// Schema описывает набор полей типа сущности.
// Discriminator - поле, изменение которого означает смену структуры записи
// (например, MIME-тип бинарных данных).
type Schema struct {
	EntityType    string            `json:"entity_type"`
	Discriminator string            `json:"discriminator,omitempty"`
	Fields        []FieldDescriptor `json:"fields"`
}

// Field возвращает описание поля по имени.
func (s Schema) Field(name string) (FieldDescriptor, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Check проверяет, что все поля записи описаны в схеме и имеют нужный тип.
// Null допустим для любого поля.
func (s Schema) Check(r *Record) error {
	for _, name := range r.FieldNames() {
		desc, ok := s.Field(name)
		if !ok {
			return fmt.Errorf("%w: %s has no field %q", ErrSchemaViolation, s.EntityType, name)
		}
		value := r.Field(name)
		if IsNull(value) {
			continue
		}
		if !kindCompatible(desc.Kind, value.Kind()) {
			return fmt.Errorf("%w: %s.%s expects %s, got %s",
				ErrSchemaViolation, s.EntityType, name, desc.Kind, value.Kind())
		}
	}
	return nil
}

func kindCompatible(want, got Kind) bool {
	if want == got {
		return true
	}
	// Целые значения допустимы в числовых полях с плавающей точкой
	return want == KindFloat && got == KindInt
}

// metadataFields поля метаданных, общие для всех типов сущностей:
// теги, категория, избранное, заметки и кастомные поля.
var metadataFields = []FieldDescriptor{
	{Name: "tags", Kind: KindList},
	{Name: "category", Kind: KindString},
	{Name: "favorite", Kind: KindBool},
	{Name: "notes", Kind: KindString},
	{Name: "custom_fields", Kind: KindObject},
	{Name: "usage_count", Kind: KindInt},
	{Name: "created_unix", Kind: KindInt},
}

func withMetadata(fields ...FieldDescriptor) []FieldDescriptor {
	out := make([]FieldDescriptor, 0, len(fields)+len(metadataFields))
	out = append(out, fields...)
	return append(out, metadataFields...)
}

var builtinSchemas = map[string]Schema{
	// Учетные данные (логин/пароль)
	DataTypeCredential: {
		EntityType:    DataTypeCredential,
		Discriminator: "kind",
		Fields: withMetadata(
			FieldDescriptor{Name: "kind", Kind: KindString},
			FieldDescriptor{Name: "name", Kind: KindString},
			FieldDescriptor{Name: "login", Kind: KindString},
			FieldDescriptor{Name: "password", Kind: KindString},
			FieldDescriptor{Name: "url", Kind: KindString},
		),
	},
	// Произвольные текстовые данные
	DataTypeText: {
		EntityType:    DataTypeText,
		Discriminator: "format",
		Fields: withMetadata(
			FieldDescriptor{Name: "format", Kind: KindString},
			FieldDescriptor{Name: "name", Kind: KindString},
			FieldDescriptor{Name: "content", Kind: KindString},
		),
	},
	// Бинарные данные (файлы)
	DataTypeBinary: {
		EntityType:    DataTypeBinary,
		Discriminator: "mime_type",
		Fields: withMetadata(
			FieldDescriptor{Name: "mime_type", Kind: KindString},
			FieldDescriptor{Name: "name", Kind: KindString},
			FieldDescriptor{Name: "data", Kind: KindBytes},
			FieldDescriptor{Name: "size", Kind: KindInt},
		),
	},
	// Банковская карта
	DataTypeCard: {
		EntityType:    DataTypeCard,
		Discriminator: "network",
		Fields: withMetadata(
			FieldDescriptor{Name: "network", Kind: KindString},
			FieldDescriptor{Name: "name", Kind: KindString},
			FieldDescriptor{Name: "number", Kind: KindString},
			FieldDescriptor{Name: "holder", Kind: KindString},
			FieldDescriptor{Name: "expiry", Kind: KindString},
			FieldDescriptor{Name: "cvv", Kind: KindString},
			FieldDescriptor{Name: "pin", Kind: KindString},
		),
	},
}

// LookupSchema возвращает встроенную схему типа сущности.
func LookupSchema(entityType string) (Schema, bool) {
	s, ok := builtinSchemas[entityType]
	return s, ok
}

// EntityTypes возвращает отсортированный список известных типов сущностей.
func EntityTypes() []string {
	types := make([]string, 0, len(builtinSchemas))
	for name := range builtinSchemas {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

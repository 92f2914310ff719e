// Package validation проверяет идентификаторы, приходящие извне:
// имена типов сущностей и идентификаторы устройств.
package validation

import (
	"fmt"
	"regexp"
)

// EntityTypePattern допустимый формат имени типа сущности:
// строчные латинские буквы, цифры и подчеркивание, начинается с буквы.
var EntityTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// DeviceIDPattern допустимый формат идентификатора устройства:
// латинские буквы, цифры, '-', '_' и '.'
var DeviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

const (
	// MaxEntityTypeLen максимальная длина имени типа сущности
	MaxEntityTypeLen = 32
	// MaxDeviceIDLen максимальная длина идентификатора устройства (UUID помещается)
	MaxDeviceIDLen = 64
)

// ValidateEntityType проверяет имя типа сущности
func ValidateEntityType(entityType string) error {
	if entityType == "" {
		return fmt.Errorf("entity type cannot be empty")
	}

	if len(entityType) > MaxEntityTypeLen {
		return fmt.Errorf("entity type must not exceed %d characters", MaxEntityTypeLen)
	}

	if !EntityTypePattern.MatchString(entityType) {
		return fmt.Errorf("entity type %q can only contain lowercase letters (a-z), numbers (0-9), and underscores (_), starting with a letter", entityType)
	}

	return nil
}

// ValidateDeviceID проверяет идентификатор устройства (ключ векторных часов)
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("device id cannot be empty")
	}

	if len(deviceID) > MaxDeviceIDLen {
		return fmt.Errorf("device id must not exceed %d characters", MaxDeviceIDLen)
	}

	if !DeviceIDPattern.MatchString(deviceID) {
		return fmt.Errorf("device id %q can only contain letters, numbers, '.', '-' and '_'", deviceID)
	}

	return nil
}

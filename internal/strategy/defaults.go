package strategy

import "github.com/iudanet/gophsync/internal/models"

// Defaults returns the built-in strategies of the keeper entity types.
// Secrets (passwords, card numbers, file contents) are critical: a
// divergence there is always escalated to a human.
func Defaults() []EntityStrategy {
	metadata := func(extra map[string]FieldPolicy) map[string]FieldPolicy {
		fields := map[string]FieldPolicy{
			"tags":         PolicyUnion,
			"usage_count":  PolicyMax,
			"created_unix": PolicyMin,
			"notes":        PolicyLastWriterWins,
		}
		for k, v := range extra {
			fields[k] = v
		}
		return fields
	}

	return []EntityStrategy{
		{
			EntityType:     models.DataTypeCredential,
			DefaultPolicy:  PolicyLastWriterWins,
			Discriminator:  "kind",
			CriticalFields: []string{"password"},
			Fields: metadata(map[string]FieldPolicy{
				"login": PolicyLastWriterWins,
				"url":   PolicyLastWriterWins,
			}),
		},
		{
			EntityType:    models.DataTypeText,
			DefaultPolicy: PolicyLastWriterWins,
			Discriminator: "format",
			Fields: metadata(map[string]FieldPolicy{
				"content": PolicyConcat,
			}),
		},
		{
			EntityType:     models.DataTypeBinary,
			DefaultPolicy:  PolicyLastWriterWins,
			Discriminator:  "mime_type",
			CriticalFields: []string{"data"},
			Fields: metadata(map[string]FieldPolicy{
				"size": PolicyLastWriterWins,
			}),
		},
		{
			EntityType:     models.DataTypeCard,
			DefaultPolicy:  PolicyLastWriterWins,
			Discriminator:  "network",
			CriticalFields: []string{"number", "cvv", "pin"},
			Fields:         metadata(nil),
		},
	}
}

// DefaultRegistry builds a registry from Defaults.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Defaults(), nil)
	if err != nil {
		// Встроенная конфигурация проверяется тестами
		panic(err)
	}
	return r
}

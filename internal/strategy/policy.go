package strategy

import (
	"strings"

	"github.com/iudanet/gophsync/internal/models"
)

// FieldPolicy field-level merge policy.
type FieldPolicy string

// Built-in field policies. Custom resolvers are referenced as "custom:<name>".
const (
	PolicyLastWriterWins FieldPolicy = "last-writer-wins"
	PolicyMax            FieldPolicy = "max"
	PolicyMin            FieldPolicy = "min"
	PolicyConcat         FieldPolicy = "concat"
	PolicyUnion          FieldPolicy = "union"

	customPrefix = "custom:"
)

// DefaultMediumThreshold is the number of differing fields above which a
// conflict is classified as medium severity.
const DefaultMediumThreshold = 3

// Custom builds a policy that delegates to the named resolver.
func Custom(name string) FieldPolicy {
	return FieldPolicy(customPrefix + name)
}

// IsCustom reports whether the policy delegates to a custom resolver.
func (p FieldPolicy) IsCustom() bool {
	return strings.HasPrefix(string(p), customPrefix)
}

// CustomName returns the resolver name of a custom policy.
func (p FieldPolicy) CustomName() string {
	return strings.TrimPrefix(string(p), customPrefix)
}

// Known reports whether the policy is a built-in or a well-formed custom policy.
func (p FieldPolicy) Known() bool {
	switch p {
	case PolicyLastWriterWins, PolicyMax, PolicyMin, PolicyConcat, PolicyUnion:
		return true
	}
	return p.IsCustom() && p.CustomName() != ""
}

// Suggestable reports whether the advisor can compute a suggested value
// for the policy without running user code.
func (p FieldPolicy) Suggestable() bool {
	switch p {
	case PolicyLastWriterWins, PolicyMax, PolicyMin, PolicyUnion:
		return true
	}
	return false
}

// ResolverInput is passed to custom resolvers.
type ResolverInput struct {
	Local        models.Value
	Remote       models.Value
	LocalRecord  *models.Record
	RemoteRecord *models.Record
	Field        string
}

// ResolverFunc merges one field. It must be deterministic and must not
// mutate its input.
type ResolverFunc func(in ResolverInput) (models.Value, error)

// EntityStrategy is the merge configuration of one entity type.
type EntityStrategy struct {
	Fields          map[string]FieldPolicy `yaml:"fields" validate:"omitempty,dive,keys,required,endkeys,required"`
	EntityType      string                 `yaml:"entity_type" validate:"required"`
	DefaultPolicy   FieldPolicy            `yaml:"default_policy"`
	Discriminator   string                 `yaml:"discriminator"`
	CriticalFields  []string               `yaml:"critical_fields" validate:"omitempty,dive,required"`
	MediumThreshold int                    `yaml:"medium_threshold" validate:"gte=0"`
}

// PolicyFor returns the policy of a field and whether it was configured
// explicitly in Fields.
func (s EntityStrategy) PolicyFor(field string) (FieldPolicy, bool) {
	if p, ok := s.Fields[field]; ok {
		return p, true
	}
	if s.DefaultPolicy != "" {
		return s.DefaultPolicy, false
	}
	return PolicyLastWriterWins, false
}

// IsCritical reports whether a difference in field escalates to critical severity.
func (s EntityStrategy) IsCritical(field string) bool {
	for _, f := range s.CriticalFields {
		if f == field {
			return true
		}
	}
	return false
}

// Threshold returns the medium-severity threshold, defaulting to 3.
func (s EntityStrategy) Threshold() int {
	if s.MediumThreshold <= 0 {
		return DefaultMediumThreshold
	}
	return s.MediumThreshold
}

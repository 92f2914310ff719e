package strategy

import (
	"fmt"
	"sort"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/validation"
)

// Registry maps entity types to merge strategies. It is built once at
// start-up and is read-only afterwards, so a single value can be shared by
// concurrent reconciliation calls.
type Registry struct {
	entries   map[string]EntityStrategy
	resolvers map[string]ResolverFunc
}

// NewRegistry validates the strategies and builds an immutable registry.
// Resolvers are referenced from policies as "custom:<name>".
func NewRegistry(strategies []EntityStrategy, resolvers map[string]ResolverFunc) (*Registry, error) {
	r := &Registry{
		entries:   make(map[string]EntityStrategy, len(strategies)),
		resolvers: make(map[string]ResolverFunc, len(resolvers)),
	}

	for name, fn := range resolvers {
		if name == "" || fn == nil {
			return nil, fmt.Errorf("%w: resolver %q", ErrInvalidStrategy, name)
		}
		r.resolvers[name] = fn
	}

	for _, s := range strategies {
		if _, dup := r.entries[s.EntityType]; dup {
			return nil, fmt.Errorf("%w: duplicate entity type %q", ErrInvalidStrategy, s.EntityType)
		}
		if err := r.check(s); err != nil {
			return nil, err
		}
		r.entries[s.EntityType] = copyStrategy(s)
	}

	return r, nil
}

// Get returns the strategy of an entity type. Unregistered types get a
// last-writer-wins default for every field.
func (r *Registry) Get(entityType string) EntityStrategy {
	if r != nil {
		if s, ok := r.entries[entityType]; ok {
			return s
		}
	}
	return defaultStrategy(entityType)
}

// Registered reports whether a strategy was configured for the entity type.
func (r *Registry) Registered(entityType string) bool {
	if r == nil {
		return false
	}
	_, ok := r.entries[entityType]
	return ok
}

// Policy returns the field policy and whether it is configured, either
// explicitly for the field or through a registered default policy.
func (r *Registry) Policy(entityType, field string) (FieldPolicy, bool) {
	s := r.Get(entityType)
	p, explicit := s.PolicyFor(field)
	if explicit {
		return p, true
	}
	return p, r.Registered(entityType) && s.DefaultPolicy != ""
}

// Resolver returns a registered custom resolver.
func (r *Registry) Resolver(name string) (ResolverFunc, error) {
	if r != nil {
		if fn, ok := r.resolvers[name]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResolver, name)
}

// EntityTypes returns the registered entity types in sorted order.
func (r *Registry) EntityTypes() []string {
	if r == nil {
		return nil
	}
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func defaultStrategy(entityType string) EntityStrategy {
	s := EntityStrategy{
		EntityType:    entityType,
		DefaultPolicy: PolicyLastWriterWins,
	}
	if schema, ok := models.LookupSchema(entityType); ok {
		s.Discriminator = schema.Discriminator
	}
	return s
}

func (r *Registry) check(s EntityStrategy) error {
	if err := validation.ValidateEntityType(s.EntityType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
	}
	if s.MediumThreshold < 0 {
		return fmt.Errorf("%w: %s: negative medium threshold", ErrInvalidStrategy, s.EntityType)
	}
	if s.DefaultPolicy != "" {
		if err := r.checkPolicy(s.EntityType, "", s.DefaultPolicy, nil); err != nil {
			return err
		}
	}

	schema, hasSchema := models.LookupSchema(s.EntityType)

	for field, p := range s.Fields {
		var desc *models.FieldDescriptor
		if hasSchema {
			d, ok := schema.Field(field)
			if !ok {
				return fmt.Errorf("%w: %s has no field %q", ErrInvalidStrategy, s.EntityType, field)
			}
			desc = &d
		}
		if err := r.checkPolicy(s.EntityType, field, p, desc); err != nil {
			return err
		}
	}

	if hasSchema {
		for _, field := range s.CriticalFields {
			if _, ok := schema.Field(field); !ok {
				return fmt.Errorf("%w: %s has no critical field %q", ErrInvalidStrategy, s.EntityType, field)
			}
		}
		if s.Discriminator != "" {
			if _, ok := schema.Field(s.Discriminator); !ok {
				return fmt.Errorf("%w: %s has no discriminator %q", ErrInvalidStrategy, s.EntityType, s.Discriminator)
			}
		}
	}

	return nil
}

// checkPolicy validates one policy; desc is nil when the field kind is unknown.
func (r *Registry) checkPolicy(entityType, field string, p FieldPolicy, desc *models.FieldDescriptor) error {
	if !p.Known() {
		return fmt.Errorf("%w: %s.%s: unknown policy %q", ErrInvalidStrategy, entityType, field, p)
	}
	if p.IsCustom() {
		if _, ok := r.resolvers[p.CustomName()]; !ok {
			return fmt.Errorf("%w: %s.%s: %w %q", ErrInvalidStrategy, entityType, field, ErrUnknownResolver, p.CustomName())
		}
		return nil
	}
	if desc == nil {
		return nil
	}

	switch p {
	case PolicyMax, PolicyMin:
		if !desc.Ordered() {
			return fmt.Errorf("%w: %s.%s: %s needs an ordered field, got %s", ErrInvalidStrategy, entityType, field, p, desc.Kind)
		}
	case PolicyUnion:
		if desc.Kind != models.KindList {
			return fmt.Errorf("%w: %s.%s: union needs a list field, got %s", ErrInvalidStrategy, entityType, field, desc.Kind)
		}
	case PolicyConcat:
		if desc.Kind != models.KindList && desc.Kind != models.KindString {
			return fmt.Errorf("%w: %s.%s: concat needs a list or string field, got %s", ErrInvalidStrategy, entityType, field, desc.Kind)
		}
	}
	return nil
}

func copyStrategy(s EntityStrategy) EntityStrategy {
	out := s
	out.Fields = make(map[string]FieldPolicy, len(s.Fields))
	for field, p := range s.Fields {
		out.Fields[field] = p
	}
	out.CriticalFields = append([]string(nil), s.CriticalFields...)
	return out
}

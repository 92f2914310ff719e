package resolve

import (
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/crdt"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/internal/strategy"
)

// mergeField применяет политику поля к двум версиям записи.
func (e *Engine) mergeField(policy strategy.FieldPolicy, field string, local, remote *models.Record) (models.Value, error) {
	lv, rv := local.Field(field), remote.Field(field)

	switch {
	case policy == strategy.PolicyLastWriterWins:
		return MergeLWW(field, local, remote), nil
	case policy == strategy.PolicyMax:
		return MergeExtreme(field, lv, rv, 1)
	case policy == strategy.PolicyMin:
		return MergeExtreme(field, lv, rv, -1)
	case policy == strategy.PolicyUnion:
		return MergeUnion(field, lv, rv)
	case policy == strategy.PolicyConcat:
		return MergeConcat(field, lv, rv)
	case policy.IsCustom():
		fn, err := e.registry.Resolver(policy.CustomName())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPolicyFailed, field, err)
		}
		v, err := fn(strategy.ResolverInput{
			Field:        field,
			Local:        models.CloneValue(lv),
			Remote:       models.CloneValue(rv),
			LocalRecord:  local.Clone(),
			RemoteRecord: remote.Clone(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: resolver %q: %w", ErrPolicyFailed, field, policy.CustomName(), err)
		}
		if v == nil {
			return models.Null{}, nil
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s: unknown policy %q", ErrPolicyFailed, field, policy)
	}
}

// MergeLWW выбирает значение поля по правилу LWW.
// Если обе стороны отслеживают время поля (FieldTimes), сравниваются
// отметки поля, иначе отметки записей.
func MergeLWW(field string, local, remote *models.Record) models.Value {
	ls, lTracked := local.FieldStamp(field)
	rs, rTracked := remote.FieldStamp(field)
	if !lTracked || !rTracked {
		ls, rs = local.Stamp(), remote.Stamp()
	}

	if crdt.PickLWW(ls, rs) == crdt.SideRemote {
		return models.CloneValue(remote.Field(field))
	}
	return models.CloneValue(local.Field(field))
}

// MergeExtreme возвращает максимум (sign = 1) или минимум (sign = -1)
// двух упорядоченных значений. Null всегда проигрывает.
func MergeExtreme(field string, local, remote models.Value, sign int) (models.Value, error) {
	if models.IsNull(local) {
		return models.CloneValue(remote), nil
	}
	if models.IsNull(remote) {
		return models.CloneValue(local), nil
	}

	cmp, err := models.CompareOrdered(local, remote)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPolicyFailed, field, err)
	}
	if cmp*sign >= 0 {
		return models.CloneValue(local), nil
	}
	return models.CloneValue(remote), nil
}

// MergeUnion объединяет два списка: элементы local в исходном порядке,
// затем элементы remote, которых еще нет в результате.
func MergeUnion(field string, local, remote models.Value) (models.Value, error) {
	ll, err := asList(field, local)
	if err != nil {
		return nil, err
	}
	rl, err := asList(field, remote)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(ll)+len(rl))
	out := make(models.List, 0, len(ll)+len(rl))
	for _, items := range []models.List{ll, rl} {
		for _, item := range items {
			key := string(models.Canonical(item))
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, models.CloneValue(item))
		}
	}
	return out, nil
}

// MergeConcat склеивает списки или строки (через перевод строки).
func MergeConcat(field string, local, remote models.Value) (models.Value, error) {
	if models.IsNull(local) {
		return models.CloneValue(remote), nil
	}
	if models.IsNull(remote) {
		return models.CloneValue(local), nil
	}

	switch lv := local.(type) {
	case models.String:
		rv, ok := remote.(models.String)
		if !ok {
			break
		}
		return models.String(strings.Join([]string{string(lv), string(rv)}, "\n")), nil
	case models.List:
		rv, ok := remote.(models.List)
		if !ok {
			break
		}
		out := make(models.List, 0, len(lv)+len(rv))
		for _, item := range lv {
			out = append(out, models.CloneValue(item))
		}
		for _, item := range rv {
			out = append(out, models.CloneValue(item))
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %s: concat of %s and %s", ErrPolicyFailed, field, local.Kind(), remote.Kind())
}

func asList(field string, v models.Value) (models.List, error) {
	if models.IsNull(v) {
		return nil, nil
	}
	l, ok := v.(models.List)
	if !ok {
		return nil, fmt.Errorf("%w: %s: union expects list, got %s", ErrPolicyFailed, field, v.Kind())
	}
	return l, nil
}

// latestFieldTime возвращает более позднее время записи поля, если его
// отслеживает хотя бы одна сторона.
func latestFieldTime(field string, local, remote *models.Record) (time.Time, bool) {
	lt, lok := local.FieldTimes[field]
	rt, rok := remote.FieldTimes[field]
	switch {
	case lok && rok:
		if rt.After(lt) {
			return rt, true
		}
		return lt, true
	case lok:
		return lt, true
	case rok:
		return rt, true
	}
	return time.Time{}, false
}

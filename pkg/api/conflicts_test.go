package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/models"
)

func TestNewFieldConflicts(t *testing.T) {
	in := []models.FieldConflict{
		{
			Field:          "uses",
			LocalValue:     models.Int(3),
			RemoteValue:    models.Int(7),
			SuggestedValue: models.Int(7),
			Policy:         "max",
			CanAutoResolve: true,
		},
		{
			Field:       "notes",
			LocalValue:  models.String("a"),
			RemoteValue: models.Null{},
		},
	}

	out, err := NewFieldConflicts(in)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "uses", out[0].Field)
	assert.True(t, out[0].CanAutoResolve)
	assert.JSONEq(t, `{"kind":"int","value":7}`, string(out[0].SuggestedValue))

	assert.Nil(t, out[1].SuggestedValue)
	body, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.NotContains(t, string(body), "suggested_value")

	// Значение декодируется обратно в тот же вариант
	v, err := models.UnmarshalValue(out[0].LocalValue)
	require.NoError(t, err)
	assert.Equal(t, models.Int(3), v)
}

func TestNewFieldConflicts_Empty(t *testing.T) {
	out, err := NewFieldConflicts(nil)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

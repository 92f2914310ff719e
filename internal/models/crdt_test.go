package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/crdt"
)

func newTestRecord() *Record {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	deleted := now.Add(time.Hour)

	return &Record{
		ID:        "id-1",
		Type:      DataTypeCredential,
		NodeID:    "node1",
		Clock:     crdt.VectorClock{"node1": 2, "node2": 1},
		Tombstone: &deleted,
		UpdatedAt: now,
		Fields: Fields{
			"name": String("GitHub"),
			"tags": List{String("work"), String("dev")},
			"custom_fields": Object{
				"team": String("core"),
			},
			"data": Bytes{1, 2, 3},
		},
		FieldTimes: map[string]time.Time{"name": now},
	}
}

func TestRecord_Clone(t *testing.T) {
	original := newTestRecord()
	clone := original.Clone()

	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	// Модификация оригинала не должна влиять на клон
	original.Clock["node1"] = 99
	original.Fields["name"] = String("changed")
	original.Fields["tags"].(List)[0] = String("changed")
	original.Fields["custom_fields"].(Object)["team"] = String("changed")
	original.Fields["data"].(Bytes)[0] = 9
	*original.Tombstone = original.Tombstone.Add(time.Hour)
	original.FieldTimes["name"] = time.Time{}

	assert.Equal(t, int64(2), clone.Clock.Get("node1"))
	assert.Equal(t, String("GitHub"), clone.Fields["name"])
	assert.Equal(t, String("work"), clone.Fields["tags"].(List)[0])
	assert.Equal(t, String("core"), clone.Fields["custom_fields"].(Object)["team"])
	assert.Equal(t, byte(1), clone.Fields["data"].(Bytes)[0])
	assert.NotEqual(t, *original.Tombstone, *clone.Tombstone)
	assert.False(t, clone.FieldTimes["name"].IsZero())
}

func TestRecord_IsDeleted(t *testing.T) {
	r := newTestRecord()
	assert.True(t, r.IsDeleted())

	r.Tombstone = nil
	assert.False(t, r.IsDeleted())
}

func TestRecord_Field(t *testing.T) {
	r := newTestRecord()

	assert.Equal(t, String("GitHub"), r.Field("name"))
	assert.Equal(t, Null{}, r.Field("missing"))

	r.Fields["nil_value"] = nil
	assert.Equal(t, Null{}, r.Field("nil_value"))
}

func TestRecord_FieldStamp(t *testing.T) {
	r := newTestRecord()

	stamp, tracked := r.FieldStamp("name")
	assert.True(t, tracked)
	assert.Equal(t, r.FieldTimes["name"], stamp.At)
	assert.Equal(t, "node1", stamp.NodeID)

	stamp, tracked = r.FieldStamp("tags")
	assert.False(t, tracked)
	assert.Equal(t, r.UpdatedAt, stamp.At)
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	original := newTestRecord()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.Clock, decoded.Clock)
	assert.True(t, original.Tombstone.Equal(*decoded.Tombstone))
	for name, value := range original.Fields {
		assert.True(t, Equal(value, decoded.Fields[name]), "field %s", name)
		assert.Equal(t, value.Kind(), decoded.Fields[name].Kind(), "field %s", name)
	}
}

func TestRecord_FieldNames(t *testing.T) {
	r := newTestRecord()
	assert.Equal(t, []string{"custom_fields", "data", "name", "tags"}, r.FieldNames())
}

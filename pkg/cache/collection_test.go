package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func TestCollection_GetAllMissingKey(t *testing.T) {
	c := NewCollection[item](NewMemoryKV(), "members", nil, nil)

	got := c.GetAll(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollection_SaveThenGetAll(t *testing.T) {
	ctx := context.Background()
	var notified [][]item
	c := NewCollection[item](NewMemoryKV(), "members", func(items []item) {
		notified = append(notified, items)
	}, nil)

	require.NoError(t, c.Save(ctx, []item{{ID: 1, Name: "Dana"}, {ID: 2, Name: "Omar"}}))

	got := c.GetAll(ctx)
	assert.Equal(t, []item{{ID: 1, Name: "Dana"}, {ID: 2, Name: "Omar"}}, got)
	require.Len(t, notified, 1)
	assert.Len(t, notified[0], 2)
}

func TestCollection_MalformedValueResets(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "members", `{"not":"an array"}`))
	c := NewCollection[item](kv, "members", nil, nil)

	got := c.GetAll(ctx)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCollection_SaveNilStoresEmptyArray(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	c := NewCollection[item](kv, "members", nil, nil)

	require.NoError(t, c.Save(ctx, nil))

	raw, ok, err := kv.Get(ctx, "members")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", raw)
}

type buckets struct {
	Upcoming []item `json:"upcoming"`
	Past     []item `json:"past"`
}

func TestDocument_RoundTripAndNotify(t *testing.T) {
	ctx := context.Background()
	var last buckets
	d := NewDocument[buckets](NewMemoryKV(), "events", func(b buckets) { last = b }, nil)

	assert.Empty(t, d.Get(ctx).Upcoming)

	b := buckets{Upcoming: []item{{ID: 1, Name: "Annual conference"}}}
	require.NoError(t, d.Save(ctx, b))

	assert.Equal(t, b, d.Get(ctx))
	assert.Equal(t, b, last)
}

func TestDocument_MalformedValue(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, "events", `[1,2,3]`))
	d := NewDocument[buckets](kv, "events", nil, nil)

	assert.Equal(t, buckets{}, d.Get(ctx))
}

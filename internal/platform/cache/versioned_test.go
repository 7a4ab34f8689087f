package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Value string `json:"value"`
}

func TestVersionedFetchAndBump(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := NewVersioned(client, "ledger", time.Minute)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return payload{Value: "balance"}, nil
	}

	key, err := c.BuildKey(ctx, "7", "balance")
	require.NoError(t, err)
	require.Equal(t, "ledger:7:balance:v1", key)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.NoError(t, c.FetchJSON(ctx, key, &out, loader))
	require.Equal(t, "balance", out.Value)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx, "7"))
	bumped, err := c.BuildKey(ctx, "7", "balance")
	require.NoError(t, err)
	require.Equal(t, "ledger:7:balance:v2", bumped)
	require.NoError(t, c.FetchJSON(ctx, bumped, &out, loader))
	require.Equal(t, 2, calls)

	other, err := c.BuildKey(ctx, "8", "balance")
	require.NoError(t, err)
	require.Equal(t, "ledger:8:balance:v1", other)
}

func TestVersionedWithoutClient(t *testing.T) {
	c := NewVersioned(nil, "chart", time.Minute)
	ctx := context.Background()
	key, err := c.BuildKey(ctx, "1", "account", "571")
	require.NoError(t, err)
	require.Equal(t, "chart:1:account:571", key)

	var out payload
	require.NoError(t, c.FetchJSON(ctx, key, &out, func(context.Context) (any, error) {
		return payload{Value: "x"}, nil
	}))
	require.Equal(t, "x", out.Value)
	require.NoError(t, c.Bump(ctx, "1"))
}

package sqlite

import (
	"context"
	"testing"

	"github.com/hupe1980/colbench/engine"
	"github.com/hupe1980/colbench/engine/enginetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	enginetest.Run(t, func(t *testing.T) (engine.Engine, string) {
		return New(engine.NewStores(engine.StoreOptions{}), WithMaxConns(4)), t.TempDir()
	})
}

func TestRemoteURIUnsupported(t *testing.T) {
	e := New(engine.NewStores(engine.StoreOptions{}))

	_, err := e.Open(context.Background(), "s3://bucket/prefix")
	require.ErrorIs(t, err, engine.ErrUnsupported)

	kind, ok := engine.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engine.KindInvalid, kind)

	assert.False(t, e.Exists(context.Background(), "s3://bucket/prefix", -1))
}

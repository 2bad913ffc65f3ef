package ledger_test

import (
	"context"
	"testing"

	"github.com/alovak/cardledger/ledger"
	"github.com/stretchr/testify/require"
)

func TestOpenStores_UnknownBackend(t *testing.T) {
	cfg := ledger.DefaultConfig()
	cfg.Backend = "cassandra"

	_, err := ledger.OpenStores(context.Background(), cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported backend")
}

func TestOpenStores_MemoryIsGated(t *testing.T) {
	cfg := ledger.DefaultConfig()
	cfg.Backend = "memory"

	_, err := ledger.OpenStores(context.Background(), cfg)
	require.Error(t, err)

	cfg.AllowMemory = true
	stores, err := ledger.OpenStores(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, stores.Users)
	require.NotNil(t, stores.Cards)
	require.NoError(t, stores.Ping(context.Background()))
	require.NoError(t, stores.Close(context.Background()))
}

func TestOpenStores_PostgresRequiresDSN(t *testing.T) {
	cfg := ledger.DefaultConfig()
	cfg.Backend = "postgres"
	cfg.PostgresDSN = ""

	_, err := ledger.OpenStores(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenStores_MongoRequiresURI(t *testing.T) {
	cfg := ledger.DefaultConfig()
	cfg.Backend = "mongo"
	cfg.MongoURI = ""

	_, err := ledger.OpenStores(context.Background(), cfg)
	require.Error(t, err)
}

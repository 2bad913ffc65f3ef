package ledger

import (
	"context"
	"database/sql"
	"fmt"

	ledgermongo "github.com/alovak/cardledger/ledger/mongo"
	ledgerpg "github.com/alovak/cardledger/ledger/postgres"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Stores bundles the two contracts bound to one backend, plus the close
// func that releases the backend's connections.
type Stores struct {
	Users UserStore
	Cards CardStore
	Ping  func(context.Context) error
	Close func(context.Context) error
}

// OpenStores binds cfg.Backend to concrete adapters. Unknown backends are a
// configuration error, reported immediately rather than at first use. Each
// adapter owns its pool/client; nothing is process-global.
func OpenStores(ctx context.Context, cfg *Config) (*Stores, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for the postgres backend")
		}
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxIdleConns(5)
		db.SetMaxOpenConns(10)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := ledgerpg.InitSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Stores{
			Users: ledgerpg.NewUserRepository(db),
			Cards: ledgerpg.NewCardRepository(db),
			Ping:  db.PingContext,
			Close: func(context.Context) error { return db.Close() },
		}, nil

	case "mongo", "mongodb":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required for the mongo backend")
		}
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		if err := ledgermongo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &Stores{
			Users: ledgermongo.NewUserRepository(db),
			Cards: ledgermongo.NewCardRepository(db),
			Ping:  func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
			Close: client.Disconnect,
		}, nil

	case "memory":
		if !cfg.AllowMemory {
			return nil, fmt.Errorf("memory backend is disabled at runtime; set ALLOW_MEMORY_BACKEND=true only in tests")
		}
		return &Stores{
			Users: NewMemoryUserStore(),
			Cards: NewMemoryCardStore(),
			Ping:  func(context.Context) error { return nil },
			Close: func(context.Context) error { return nil },
		}, nil
	}

	return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}

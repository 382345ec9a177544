// Package db selects and opens the credential store configured by STORE_DRIVER.
package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/comanda/restaurant-console/internal/core/ports"
	"github.com/comanda/restaurant-console/internal/infrastructure/db/file"
	"github.com/comanda/restaurant-console/internal/infrastructure/db/memory"
	mongostore "github.com/comanda/restaurant-console/internal/infrastructure/db/mongo"
	redisstore "github.com/comanda/restaurant-console/internal/infrastructure/db/redis"
	"github.com/comanda/restaurant-console/internal/pkg/config"
)

// Store is a credential store that can report its reachability.
type Store interface {
	ports.CredentialStore
	ports.Pinger
}

// Open returns the store selected by cfg.Store.Driver together with a function
// releasing its connections.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		return memory.New(), noop, nil

	case config.StoreFile:
		path := cfg.Store.FilePath
		if path == "" {
			path = file.DefaultPath()
		}
		s, err := file.New(path, cfg.Store.Passphrase)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", path).Bool("encrypted", cfg.Store.Passphrase != "").Msg("using file credential store")
		return s, noop, nil

	case config.StoreRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Redis.Addr).Str("profile", cfg.Store.Profile).Msg("using redis credential store")
		s := redisstore.NewCredentialStore(client, cfg.Store.Profile, cfg.Session.SessionTTL, cfg.Session.RememberTTL)
		return s, func() {
			if err := client.Close(); err != nil {
				log.Warn().Err(err).Msg("close redis client")
			}
		}, nil

	case config.StoreMongo:
		client, database, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Str("profile", cfg.Store.Profile).Msg("using mongo credential store")
		s := mongostore.NewCredentialStore(database, cfg.Store.Profile, cfg.Session.SessionTTL, cfg.Session.RememberTTL)
		return s, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("disconnect mongo client")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

//go:build integration

package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/sambatesdesign/ChimpLink/internal/testutil/containers"
)

func TestRedisStoreSuite(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		return NewRedisStoreFromClient(rc.Client, "test:"+t.Name())
	}})
}

func TestPostgresStoreSuite(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) Store {
		store, err := NewPostgresStoreFromDB(context.Background(), pc.DB)
		if err != nil {
			t.Fatalf("failed to build postgres store: %v", err)
		}
		if _, err := pc.DB.ExecContext(context.Background(), `TRUNCATE blobs`); err != nil {
			t.Fatalf("failed to reset blobs table: %v", err)
		}
		return store
	}})
}

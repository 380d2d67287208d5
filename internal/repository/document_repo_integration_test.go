//go:build integration

package repository

import (
	"context"
	"testing"

	"babyofficehours/internal/config"
	"babyofficehours/internal/database"
	"babyofficehours/internal/docstore"
	"babyofficehours/internal/docstore/docstoretest"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestDocumentRepositoryPostgres(t *testing.T) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("babyofficehours"),
		tcpostgres.WithUsername("boh"),
		tcpostgres.WithPassword("boh"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	cfg := &config.Config{DatabaseType: config.StoragePostgres, DatabaseURL: url}

	suite.Run(t, &docstoretest.StoreSuite{
		NewStore: func() docstore.Store {
			db, err := database.InitializeWithConfig(cfg)
			require.NoError(t, err)
			// Tests share one database
			_, err = db.ExecContext(ctx, "DELETE FROM documents")
			require.NoError(t, err)
			return NewDocumentRepository(db)
		},
	})
}

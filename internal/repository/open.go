package repository

import (
	"fmt"

	"babyofficehours/internal/config"
	"babyofficehours/internal/database"
	"babyofficehours/internal/docstore"

	log "github.com/sirupsen/logrus"
)

// OpenStore opens the document store selected by cfg.DatabaseType.
// collections are created up front by stores that need them.
func OpenStore(cfg *config.Config, collections ...string) (docstore.Store, error) {
	switch {
	case cfg.SQLBacked():
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return NewDocumentRepository(db), nil
	case cfg.DatabaseType == config.StorageBolt:
		store, err := docstore.NewBoltStore(cfg.BoltPath, collections...)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		log.WithField("path", cfg.BoltPath).Info("Bolt store ready")
		return store, nil
	case cfg.DatabaseType == config.StorageMemory:
		log.Warn("Using in-memory store, data is lost on restart")
		return docstore.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_TYPE: %s", cfg.DatabaseType)
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"babyofficehours/internal/docstore"

	log "github.com/sirupsen/logrus"
)

const backupVersion = "1.0"

// BackupData represents the complete document store backup structure
type BackupData struct {
	Version     string                   `json:"version"`
	ExportedAt  time.Time                `json:"exported_at"`
	Collections map[string][]DocumentRow `json:"collections"`
}

// DocumentRow is one stored document in a backup
type DocumentRow struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// BackupService handles document store backup and restore operations
type BackupService struct {
	store       docstore.Store
	collections []string
}

// NewBackupService creates a new backup service for the given collections
func NewBackupService(store docstore.Store, collections []string) *BackupService {
	return &BackupService{store: store, collections: collections}
}

// Export creates a complete backup of the store to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	log.Info("Starting document export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}

	log.WithField("path", outputPath).Info("Documents exported successfully")
	return nil
}

// ExportToWriter writes the backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup := &BackupData{
		Version:     backupVersion,
		ExportedAt:  time.Now().UTC(),
		Collections: make(map[string][]DocumentRow, len(s.collections)),
	}

	for _, collection := range s.collections {
		docs, err := s.store.List(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", collection, err)
		}
		rows := make([]DocumentRow, 0, len(docs))
		for _, doc := range docs {
			rows = append(rows, DocumentRow{ID: doc.ID, Data: json.RawMessage(doc.Data)})
		}
		backup.Collections[collection] = rows
		log.WithFields(log.Fields{
			"collection": collection,
			"documents":  len(rows),
		}).Debug("Exported collection")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Import restores documents from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clear bool) error {
	log.WithField("path", inputPath).Info("Starting document import...")

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clear)
}

// ImportFromReader restores documents in one transaction. Existing documents
// with the same id are replaced; clear removes everything else first.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader, clear bool) error {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.WithFields(log.Fields{
		"version":     backup.Version,
		"exported_at": backup.ExportedAt,
	}).Info("Restoring backup")

	imported := 0
	err := s.store.Update(ctx, func(tx docstore.Tx) error {
		if clear {
			if err := s.clear(ctx, tx); err != nil {
				return err
			}
		}
		for collection, rows := range backup.Collections {
			for _, row := range rows {
				if !json.Valid(row.Data) {
					return fmt.Errorf("document %s/%s is not valid JSON", collection, row.ID)
				}
				if err := tx.Put(ctx, collection, row.ID, row.Data); err != nil {
					return fmt.Errorf("failed to import %s/%s: %w", collection, row.ID, err)
				}
				imported++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithField("documents", imported).Info("Document import completed successfully")
	return nil
}

func (s *BackupService) clear(ctx context.Context, tx docstore.Tx) error {
	for _, collection := range s.collections {
		docs, err := tx.List(ctx, collection)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, doc := range docs {
			if err := tx.Delete(ctx, collection, doc.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", collection, err)
			}
		}
		log.WithField("collection", collection).Info("Cleared collection")
	}
	return nil
}

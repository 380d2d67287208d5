package service_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"babyofficehours/internal/docstore"
	"babyofficehours/internal/remote"
	"babyofficehours/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService_RoundTrip(t *testing.T) {
	b := newBackend(t)
	s := b.newSession(t, "Sam")
	emma, err := s.CreateBaby(t.Context(), "Emma")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, service.NewBackupService(b.store, remote.Collections).ExportToWriter(t.Context(), &buf))

	var backup service.BackupData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &backup))
	assert.Equal(t, "1.0", backup.Version)
	require.Len(t, backup.Collections[remote.CollectionBabies], 1)
	assert.Equal(t, emma.ID.String(), backup.Collections[remote.CollectionBabies][0].ID)
	assert.Len(t, backup.Collections[remote.CollectionUsers], 1)

	target := docstore.NewMemoryStore()
	require.NoError(t, service.NewBackupService(target, remote.Collections).ImportFromReader(t.Context(), &buf, false))

	restored, err := remote.New(target, b.notifier).FetchBaby(t.Context(), emma.ID)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Emma", restored.Name)
}

func TestBackupService_ImportClear(t *testing.T) {
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Put(t.Context(), remote.CollectionBabies, "stale", []byte(`{}`)))

	backup := `{"version":"1.0","exported_at":"2026-03-01T08:00:00Z","collections":{"users":[{"id":"u1","data":{"babies":[]}}]}}`
	require.NoError(t, service.NewBackupService(store, remote.Collections).ImportFromReader(t.Context(), strings.NewReader(backup), true))

	_, err := store.Get(t.Context(), remote.CollectionBabies, "stale")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	got, err := store.Get(t.Context(), remote.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"babies":[]}`, string(got))
}

func TestBackupService_ImportRejects(t *testing.T) {
	tests := []struct {
		name   string
		backup string
	}{
		{name: "not json", backup: `{`},
		{name: "unknown version", backup: `{"version":"9","collections":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := docstore.NewMemoryStore()
			err := service.NewBackupService(store, remote.Collections).ImportFromReader(t.Context(), strings.NewReader(tt.backup), false)
			assert.Error(t, err)
		})
	}
}

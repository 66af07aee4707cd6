package reliability

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	testutil "github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/testing"
)

func TestMaintenanceJob_RunsBackup(t *testing.T) {
	store := newMemoryObjectStore()
	db, cleanup := testutil.NewTestDB(t, "audit")
	defer cleanup()

	svc := NewBackupService(store, writeStateFile(t), db, "p", nil, zerolog.Nop())
	job := NewMaintenanceJob(svc, db, t.TempDir(), 30, zerolog.Nop())
	job.freeBytes = func(string) (uint64, error) { return 10 << 30, nil }

	require.NoError(t, job.Run())
	assert.Equal(t, "maintenance", job.Name())
	assert.Len(t, store.keys(), 1)
}

func TestMaintenanceJob_DiskSpace(t *testing.T) {
	tests := []struct {
		name    string
		free    uint64
		statErr error
		wantErr bool
	}{
		{"plenty", 10 << 30, nil, false},
		{"low", 500 << 20, nil, false},
		{"critical", 50 << 20, nil, true},
		{"stat failure is not fatal", 0, errors.New("no fs"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryObjectStore()
			svc := NewBackupService(store, writeStateFile(t), nil, "", nil, zerolog.Nop())
			job := NewMaintenanceJob(svc, nil, t.TempDir(), 30, zerolog.Nop())
			job.freeBytes = func(string) (uint64, error) { return tt.free, tt.statErr }

			err := job.Run()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, store.keys(), "no backup after a critical disk check")
				return
			}
			assert.NoError(t, err)
			assert.Len(t, store.keys(), 1)
		})
	}
}

func TestMaintenanceJob_WithoutBackups(t *testing.T) {
	job := NewMaintenanceJob(nil, nil, t.TempDir(), 30, zerolog.Nop())
	job.freeBytes = func(string) (uint64, error) { return 10 << 30, nil }
	assert.NoError(t, job.Run())
}

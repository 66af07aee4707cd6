package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	testutil "github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/testing"
)

// memoryObjectStore keeps objects in a map
type memoryObjectStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte)}
}

func (m *memoryObjectStore) Upload(_ context.Context, key string, body io.Reader, size int64) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: got %d want %d", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjectStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, SizeBytes: int64(len(v))})
		}
	}
	return out, nil
}

func (m *memoryObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryObjectStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeStateFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "agent_memory.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"version":3}`), 0o600))
	return p
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = body
	}
	return files
}

func TestCreateAndUploadBackup_StateOnly(t *testing.T) {
	store := newMemoryObjectStore()
	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(4)
	defer unsubscribe()

	svc := NewBackupService(store, writeStateFile(t), nil, "/agent-backups/", events.NewManager(bus, zerolog.Nop()), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	key, err := svc.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent-backups/agent-backup-2026-03-04-050607.tar.gz", key)
	require.Equal(t, []string{key}, store.keys())

	files := readArchive(t, store.objects[key])
	assert.Equal(t, `{"version":3}`, string(files[stateArchiveKey]))
	assert.NotContains(t, files, auditArchiveKey)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	require.Len(t, meta.Files, 1)
	assert.Equal(t, stateArchiveKey, meta.Files[0].Filename)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(files[stateArchiveKey])), meta.Files[0].Checksum)

	require.Len(t, ch, 1)
	ev := <-ch
	assert.Equal(t, events.BackupCompleted, ev.Type)
	assert.Equal(t, key, ev.Data["key"])
}

func TestCreateAndUploadBackup_IncludesAuditSnapshot(t *testing.T) {
	store := newMemoryObjectStore()
	db, cleanup := testutil.NewTestDB(t, "audit")
	defer cleanup()
	_, err := db.Conn().Exec(`INSERT INTO cycles (run_id, started_at, duration_ms, steps, last_action, dry_run, observation_failures, reflection)
		VALUES ('run-1', 0, 10, 1, 'noop', 1, 0, 'ok')`)
	require.NoError(t, err)

	svc := NewBackupService(store, writeStateFile(t), db, "", nil, zerolog.Nop())

	key, err := svc.CreateAndUploadBackup(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, archivePrefix))

	files := readArchive(t, store.objects[key])
	require.Contains(t, files, auditArchiveKey)
	assert.True(t, bytes.HasPrefix(files[auditArchiveKey], []byte("SQLite format 3")))

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[metadataFile], &meta))
	assert.Len(t, meta.Files, 2)
}

func TestCreateAndUploadBackup_Errors(t *testing.T) {
	t.Run("missing state file", func(t *testing.T) {
		svc := NewBackupService(newMemoryObjectStore(), filepath.Join(t.TempDir(), "nope.json"), nil, "", nil, zerolog.Nop())
		_, err := svc.CreateAndUploadBackup(context.Background())
		assert.ErrorContains(t, err, "stage state document")
	})

	t.Run("upload failure", func(t *testing.T) {
		store := newMemoryObjectStore()
		store.uploadErr = errors.New("bucket gone")
		svc := NewBackupService(store, writeStateFile(t), nil, "", nil, zerolog.Nop())
		_, err := svc.CreateAndUploadBackup(context.Background())
		assert.ErrorContains(t, err, "bucket gone")
		assert.Empty(t, store.keys())
	})
}

func seedBackups(store *memoryObjectStore, prefix string, stamps ...time.Time) {
	for _, ts := range stamps {
		store.objects[prefix+"/"+archivePrefix+ts.Format(archiveTimeFmt)+archiveSuffix] = []byte("x")
	}
}

func TestListBackups_NewestFirstIgnoresForeignKeys(t *testing.T) {
	store := newMemoryObjectStore()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seedBackups(store, "p", now.AddDate(0, 0, -2), now.AddDate(0, 0, -1))
	store.objects["p/agent-backup-garbage.tar.gz"] = []byte("x")
	store.objects["p/agent-backup-notes.txt"] = []byte("x")

	svc := NewBackupService(store, "", nil, "p", nil, zerolog.Nop())
	svc.now = func() time.Time { return now }

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.True(t, backups[0].Timestamp.After(backups[1].Timestamp))
	assert.Equal(t, int64(24), backups[0].AgeHours)
}

func TestRotateOldBackups(t *testing.T) {
	now := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		ages          []int
		retentionDays int
		wantDeleted   int
	}{
		{"disabled", []int{40, 50, 60, 70}, 0, 0},
		{"keeps minimum even when all expired", []int{40, 50, 60}, 30, 0},
		{"deletes expired beyond minimum", []int{1, 40, 50, 60, 70}, 30, 2},
		{"nothing expired", []int{1, 2, 3, 4, 5}, 30, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryObjectStore()
			var stamps []time.Time
			for _, age := range tt.ages {
				stamps = append(stamps, now.AddDate(0, 0, -age))
			}
			seedBackups(store, "p", stamps...)

			svc := NewBackupService(store, "", nil, "p", nil, zerolog.Nop())
			svc.now = func() time.Time { return now }

			deleted, err := svc.RotateOldBackups(context.Background(), tt.retentionDays)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, deleted)
			assert.Len(t, store.keys(), len(tt.ages)-tt.wantDeleted)
		})
	}
}

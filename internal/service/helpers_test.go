package service

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bigkaa/datashare/internal/repository/memrepo"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// testLogger возвращает логгер, выводящий только ошибки.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeClock — управляемые часы для проверки сроков действия.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyBlobs — BlobStore, у которого удаление указанных blob-ов завершается ошибкой.
type flakyBlobs struct {
	BlobStore

	mu       sync.Mutex
	failures map[string]bool
}

func (b *flakyBlobs) failDelete(name string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[name] = fail
}

func (b *flakyBlobs) Delete(storedName string) error {
	b.mu.Lock()
	fail := b.failures[storedName]
	b.mu.Unlock()
	if fail {
		return errors.New("диск недоступен")
	}
	return b.BlobStore.Delete(storedName)
}

// testEnv — сервисы поверх in-memory метаданных и in-memory файловой системы.
type testEnv struct {
	db      *memrepo.DB
	fs      afero.Fs
	store   *blobstore.Store
	blobs   *flakyBlobs
	clock   *fakeClock
	files   *FilesService
	shares  *SharesService
	sweeper *Sweeper
}

// defaultPolicy — политика тестов: 3 дня по умолчанию, максимум 7, лимит 1 KiB.
func defaultPolicy() UploadPolicy {
	return UploadPolicy{
		DefaultDays:         3,
		MaxDays:             7,
		ForbiddenExtensions: []string{"exe", "msi", "bat", "cmd", "ps1", "vbs", "js", "jar", "com", "scr", "dll", "sys"},
		MaxFileSize:         1024,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, defaultPolicy(), SweeperConfig{
		Interval:    time.Hour,
		BatchSize:   100,
		Concurrency: 4,
		OrphanScan:  true,
		OrphanGrace: time.Hour,
	})
}

func newTestEnvWith(t *testing.T, policy UploadPolicy, sweepCfg SweeperConfig) *testEnv {
	t.Helper()

	fs := afero.NewMemMapFs()
	store, err := blobstore.New(fs, "/data")
	if err != nil {
		t.Fatalf("Ошибка создания хранилища: %v", err)
	}
	blobs := &flakyBlobs{BlobStore: store, failures: make(map[string]bool)}

	db := memrepo.New()
	clock := newFakeClock()
	logger := testLogger()

	files := NewFilesService(policy, db.Files(), db.Shares(), db.Registrar(), blobs, logger)
	files.now = clock.Now
	shares := NewSharesService(db.Files(), db.Shares(), blobs, logger)
	shares.now = clock.Now
	sweeper := NewSweeper(db.Files(), blobs, sweepCfg, logger)
	sweeper.now = clock.Now

	return &testEnv{
		db:      db,
		fs:      fs,
		store:   store,
		blobs:   blobs,
		clock:   clock,
		files:   files,
		shares:  shares,
		sweeper: sweeper,
	}
}

// blobCount возвращает количество blob-ов в хранилище.
func (e *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	blobs, err := e.store.List()
	if err != nil {
		t.Fatalf("Ошибка List: %v", err)
	}
	return len(blobs)
}

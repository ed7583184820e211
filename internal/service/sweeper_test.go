package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/bigkaa/datashare/internal/domain/model"
	"github.com/bigkaa/datashare/internal/repository"
)

func TestSweeperRunOnce_NothingToDo(t *testing.T) {
	e := newTestEnv(t)
	upload(t, e, "alice", "a.txt", "data")

	result, err := e.sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if result.Deleted != 0 || result.Errors != 0 || result.OrphansDeleted != 0 {
		t.Errorf("хотели пустой результат, получили %+v", result)
	}
	if n := e.blobCount(t); n != 1 {
		t.Errorf("blob-ов: хотели 1, получили %d", n)
	}
}

func TestSweeperRunOnce_Pages(t *testing.T) {
	e := newTestEnvWith(t, defaultPolicy(), SweeperConfig{
		Interval:    time.Hour,
		BatchSize:   2,
		Concurrency: 3,
	})
	ctx := context.Background()

	one := 1
	for i := range 5 {
		_, err := e.files.Upload(ctx, UploadParams{
			OwnerID:        "alice",
			FileName:       fmt.Sprintf("old-%d.txt", i),
			Reader:         strings.NewReader("data"),
			ExpirationDays: &one,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	e.clock.Advance(48 * time.Hour)
	alive := upload(t, e, "alice", "fresh.txt", "data")

	result, err := e.sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if result.Deleted != 5 {
		t.Errorf("Deleted: хотели 5, получили %d", result.Deleted)
	}

	list, _ := e.files.List(ctx, "alice")
	if len(list) != 1 || list[0].FileID != alive.FileID {
		t.Errorf("должен остаться только свежий файл, получили %+v", list)
	}
	if n := e.blobCount(t); n != 1 {
		t.Errorf("blob-ов: хотели 1, получили %d", n)
	}
}

func TestSweeperRunOnce_BlobFailureKeepsRecord(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	one := 1
	res, err := e.files.Upload(ctx, UploadParams{
		OwnerID:        "alice",
		FileName:       "a.txt",
		Reader:         strings.NewReader("data"),
		ExpirationDays: &one,
	})
	if err != nil {
		t.Fatal(err)
	}
	f, err := e.db.Files().GetByID(ctx, res.FileID)
	if err != nil {
		t.Fatal(err)
	}

	e.clock.Advance(48 * time.Hour)
	e.blobs.failDelete(f.StoredName, true)

	result, err := e.sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if result.Errors != 1 || result.Deleted != 0 {
		t.Errorf("хотели Errors=1 Deleted=0, получили %+v", result)
	}
	if _, err := e.db.Files().GetByID(ctx, res.FileID); err != nil {
		t.Errorf("запись должна остаться до следующего запуска: %v", err)
	}

	// Следующий запуск после восстановления диска
	e.blobs.failDelete(f.StoredName, false)
	result, err = e.sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted: хотели 1, получили %d", result.Deleted)
	}
}

func TestSweeperRunOnce_Orphans(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	kept := upload(t, e, "alice", "kept.txt", "data")

	oldOrphan, err := e.store.Store(strings.NewReader("orphan"), "old.txt")
	if err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(2 * time.Hour)

	// Свежий blob без записи: загрузка может быть ещё в процессе
	freshOrphan, err := e.store.Store(strings.NewReader("orphan"), "fresh.txt")
	if err != nil {
		t.Fatal(err)
	}
	freshTime := e.clock.Now().Add(-time.Minute)
	if err := e.fs.Chtimes(e.store.Root()+"/"+freshOrphan.StoredName, freshTime, freshTime); err != nil {
		t.Fatal(err)
	}

	result, err := e.sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() ошибка: %v", err)
	}
	if result.OrphansDeleted != 1 {
		t.Errorf("OrphansDeleted: хотели 1, получили %d", result.OrphansDeleted)
	}
	if ok, _ := afero.Exists(e.fs, e.store.Root()+"/"+oldOrphan.StoredName); ok {
		t.Error("старый blob без записи не удалён")
	}
	if ok, _ := afero.Exists(e.fs, e.store.Root()+"/"+freshOrphan.StoredName); !ok {
		t.Error("свежий blob без записи удалён")
	}
	if _, err := e.shares.Metadata(ctx, kept.ShareToken); err != nil {
		t.Errorf("файл с записью должен остаться: %v", err)
	}
}

func TestSweeperRunOnce_OrphanScanDisabled(t *testing.T) {
	e := newTestEnvWith(t, defaultPolicy(), SweeperConfig{Interval: time.Hour, OrphanScan: false})
	if _, err := e.store.Store(strings.NewReader("orphan"), "old.txt"); err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(48 * time.Hour)

	result, err := e.sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.OrphansDeleted != 0 || e.blobCount(t) != 1 {
		t.Errorf("при выключенном сканировании blob должен остаться, получили %+v", result)
	}
}

// blockingFiles — FileRepository, блокирующий первую выборку просроченных до release.
type blockingFiles struct {
	repository.FileRepository

	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFiles) ListExpiredBefore(ctx context.Context, before time.Time, afterID string, limit int) ([]*model.FileRecord, error) {
	b.calls.Add(1)
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.FileRepository.ListExpiredBefore(ctx, before, afterID, limit)
}

func TestSweeperRunOnce_SingleFlight(t *testing.T) {
	e := newTestEnv(t)
	files := &blockingFiles{
		FileRepository: e.db.Files(),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	sw := NewSweeper(files, e.blobs, SweeperConfig{Interval: time.Hour, BatchSize: 10, Concurrency: 1}, testLogger())

	ctx := context.Background()
	results := make(chan *SweepResult, 2)

	go func() {
		r, _ := sw.RunOnce(ctx)
		results <- r
	}()
	<-files.entered

	go func() {
		r, _ := sw.RunOnce(ctx)
		results <- r
	}()
	// Второй вызов должен успеть присоединиться к первому
	time.Sleep(100 * time.Millisecond)
	close(files.release)

	r1, r2 := <-results, <-results
	if r1 != r2 {
		t.Error("параллельные вызовы должны получить один и тот же результат")
	}
	if n := files.calls.Load(); n != 1 {
		t.Errorf("выборок: хотели 1, получили %d", n)
	}
}

func TestSweeperStartStop(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	one := 1
	res, err := e.files.Upload(ctx, UploadParams{
		OwnerID:        "alice",
		FileName:       "a.txt",
		Reader:         strings.NewReader("data"),
		ExpirationDays: &one,
	})
	if err != nil {
		t.Fatal(err)
	}
	e.clock.Advance(48 * time.Hour)

	e.sweeper.Start(ctx)
	defer e.sweeper.Stop()

	// Первый проход выполняется сразу после старта
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := e.db.Files().GetByID(ctx, res.FileID); err != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := e.db.Files().GetByID(ctx, res.FileID); err == nil {
		t.Fatal("просроченный файл не удалён первым проходом")
	}

	e.sweeper.Stop()
	// Повторная остановка безопасна
	e.sweeper.Stop()
}

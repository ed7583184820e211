// sweeper.go — фоновая очистка файлов с истёкшим сроком действия.
//
// Очистка выполняет две задачи:
//  1. Удаляет просроченные файлы: сначала blob, затем запись (ссылка — каскадно)
//  2. Удаляет blob-ы без записи в реестре старше DS_ORPHAN_GRACE (опционально)
//
// Запускается как горутина с периодическим тикером (DS_SWEEP_INTERVAL).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/datashare/internal/domain/model"
	"github.com/bigkaa/datashare/internal/repository"
	"github.com/bigkaa/datashare/internal/storage/blobstore"
)

// Prometheus метрики очистки
var (
	// sweepRunsTotal — количество запусков очистки.
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_sweep_runs_total",
		Help: "Общее количество запусков очистки",
	})

	// sweepFilesDeletedTotal — количество удалённых просроченных файлов.
	sweepFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_sweep_files_deleted_total",
		Help: "Общее количество просроченных файлов, удалённых очисткой",
	})

	// sweepOrphansDeletedTotal — количество удалённых blob-ов без записи.
	sweepOrphansDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_sweep_orphans_deleted_total",
		Help: "Общее количество blob-ов без записи, удалённых очисткой",
	})

	// sweepErrorsTotal — количество ошибок обработки.
	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ds_sweep_errors_total",
		Help: "Общее количество ошибок при очистке",
	})

	// sweepDurationSeconds — длительность выполнения очистки.
	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ds_sweep_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})

	// storageBlobs / storageBytes — состояние директории данных после
	// последнего сканирования blob-ов.
	storageBlobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ds_storage_blobs",
		Help: "Количество blob-ов в директории данных",
	})
	storageBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ds_storage_bytes",
		Help: "Суммарный размер blob-ов в директории данных в байтах",
	})
)

// SweeperConfig — параметры очистки.
type SweeperConfig struct {
	// Interval — период запуска
	Interval time.Duration
	// BatchSize — размер страницы выборки просроченных записей
	BatchSize int
	// Concurrency — количество параллельных удалений внутри страницы
	Concurrency int
	// OrphanScan — удалять blob-ы без записи
	OrphanScan bool
	// OrphanGrace — минимальный возраст blob-а без записи
	OrphanGrace time.Duration
}

// SweepResult — результат одного запуска очистки.
type SweepResult struct {
	// Deleted — количество удалённых просроченных файлов
	Deleted int
	// Skipped — записи, уже удалённые параллельно (гонка с владельцем)
	Skipped int
	// Errors — количество ошибок; такие записи остаются до следующего запуска
	Errors int
	// OrphansDeleted — количество удалённых blob-ов без записи
	OrphansDeleted int
	// Duration — длительность выполнения
	Duration time.Duration
}

// itemOutcome — результат обработки одного файла.
type itemOutcome int

const (
	outcomeDeleted itemOutcome = iota
	outcomeSkipped
	outcomeError
)

// Sweeper — сервис очистки просроченных файлов.
type Sweeper struct {
	files  repository.FileRepository
	blobs  BlobStore
	cfg    SweeperConfig
	logger *slog.Logger
	now    func() time.Time

	flight singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper создаёт сервис очистки.
func NewSweeper(
	files repository.FileRepository,
	blobs BlobStore,
	cfg SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		files:  files,
		blobs:  blobs,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "sweeper")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start запускает фоновую горутину очистки с периодическим тикером.
// Повторный вызов без Stop игнорируется.
func (sw *Sweeper) Start(ctx context.Context) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	sw.cancel = cancel
	sw.done = make(chan struct{})

	go sw.run(runCtx, sw.done)

	sw.logger.Info("Очистка запущена",
		slog.String("interval", sw.cfg.Interval.String()),
		slog.Int("batch_size", sw.cfg.BatchSize),
		slog.Int("concurrency", sw.cfg.Concurrency),
	)
}

// Stop останавливает фоновый процесс и дожидается завершения текущего прохода.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	cancel, done := sw.cancel, sw.done
	sw.cancel, sw.done = nil, nil
	sw.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	sw.logger.Info("Очистка остановлена")
}

// run — основной цикл фоновой горутины.
func (sw *Sweeper) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	// Первый запуск — сразу после старта
	sw.runLogged(ctx)

	ticker := time.NewTicker(sw.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.runLogged(ctx)
		}
	}
}

func (sw *Sweeper) runLogged(ctx context.Context) {
	if _, err := sw.RunOnce(ctx); err != nil && ctx.Err() == nil {
		sw.logger.Error("Ошибка очистки", slog.String("error", err.Error()))
	}
}

// RunOnce выполняет один проход очистки. Параллельные вызовы
// присоединяются к уже идущему проходу и получают его результат.
func (sw *Sweeper) RunOnce(ctx context.Context) (*SweepResult, error) {
	v, err, shared := sw.flight.Do("sweep", func() (any, error) {
		return sw.sweep(ctx)
	})
	if shared {
		sw.logger.Debug("Присоединение к выполняющейся очистке")
	}
	res, _ := v.(*SweepResult)
	return res, err
}

// sweep — один проход: просроченные файлы, затем blob-ы без записи.
func (sw *Sweeper) sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	now := sw.now()
	result := &SweepResult{}

	sw.logger.Debug("Очистка начата", slog.Time("before", now))

	err := sw.purgeExpired(ctx, now, result)
	if err == nil && sw.cfg.OrphanScan {
		err = sw.purgeOrphans(ctx, now, result)
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepFilesDeletedTotal.Add(float64(result.Deleted))
	sweepOrphansDeletedTotal.Add(float64(result.OrphansDeleted))
	sweepErrorsTotal.Add(float64(result.Errors))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	sw.logger.Info("Очистка завершена",
		slog.Int("deleted", result.Deleted),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
		slog.Int("orphans_deleted", result.OrphansDeleted),
		slog.Duration("duration", result.Duration),
	)

	return result, err
}

// purgeExpired обходит просроченные записи страницами (keyset по id)
// и удаляет их пулом из cfg.Concurrency воркеров.
func (sw *Sweeper) purgeExpired(ctx context.Context, now time.Time, result *SweepResult) error {
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := sw.files.ListExpiredBefore(ctx, now, after, sw.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("ошибка выборки просроченных файлов: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		var deleted, skipped, failed atomic.Int64

		var g errgroup.Group
		g.SetLimit(sw.cfg.Concurrency)
		for _, f := range page {
			g.Go(func() error {
				switch sw.purgeFile(ctx, f) {
				case outcomeDeleted:
					deleted.Add(1)
				case outcomeSkipped:
					skipped.Add(1)
				default:
					failed.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		result.Deleted += int(deleted.Load())
		result.Skipped += int(skipped.Load())
		result.Errors += int(failed.Load())

		if len(page) < sw.cfg.BatchSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// purgeFile удаляет blob и запись одного файла.
// Ошибка удаления blob-а оставляет запись до следующего запуска.
func (sw *Sweeper) purgeFile(ctx context.Context, f *model.FileRecord) itemOutcome {
	if err := sw.blobs.Delete(f.StoredName); err != nil {
		sw.logger.Error("Ошибка удаления blob-а просроченного файла",
			slog.String("file_id", f.ID),
			slog.String("stored_name", f.StoredName),
			slog.String("error", err.Error()),
		)
		return outcomeError
	}

	if err := sw.files.Delete(ctx, f.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			sw.logger.Debug("Файл уже удалён",
				slog.String("file_id", f.ID),
			)
			return outcomeSkipped
		}
		sw.logger.Error("Ошибка удаления записи просроченного файла",
			slog.String("file_id", f.ID),
			slog.String("error", err.Error()),
		)
		return outcomeError
	}

	sw.logger.Debug("Просроченный файл удалён",
		slog.String("file_id", f.ID),
		slog.String("filename", f.OriginalName),
		slog.Time("expires_at", f.ExpiresAt),
	)
	return outcomeDeleted
}

// purgeOrphans удаляет blob-ы, для которых нет записи в реестре.
// Свежие blob-ы (моложе OrphanGrace) пропускаются: запись может
// ещё создаваться параллельной загрузкой.
func (sw *Sweeper) purgeOrphans(ctx context.Context, now time.Time, result *SweepResult) error {
	blobs, err := sw.blobs.List()
	if err != nil {
		return fmt.Errorf("ошибка получения списка blob-ов: %w", err)
	}

	var keptBlobs, keptBytes int64
	keep := func(b blobstore.BlobInfo) {
		keptBlobs++
		keptBytes += b.Size
	}

	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if now.Sub(b.ModTime) < sw.cfg.OrphanGrace {
			keep(b)
			continue
		}

		_, err := sw.files.GetByStoredName(ctx, b.Name)
		if err == nil {
			keep(b)
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			sw.logger.Error("Ошибка проверки blob-а",
				slog.String("stored_name", b.Name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			keep(b)
			continue
		}

		if err := sw.blobs.Delete(b.Name); err != nil {
			sw.logger.Error("Ошибка удаления blob-а без записи",
				slog.String("stored_name", b.Name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			keep(b)
			continue
		}

		sw.logger.Info("Удалён blob без записи",
			slog.String("stored_name", b.Name),
			slog.Time("mod_time", b.ModTime),
		)
		result.OrphansDeleted++
	}

	storageBlobs.Set(float64(keptBlobs))
	storageBytes.Set(float64(keptBytes))
	return nil
}

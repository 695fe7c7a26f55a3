package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pickup/internal/config"
	"pickup/internal/firestore"
	"pickup/internal/logging"
	"pickup/internal/metrics"
	"pickup/internal/notion"
	"pickup/internal/queue"
	"pickup/internal/roster"
	"pickup/internal/store"
)

// The worker drains the sync queue and pushes roster changes into the Notion
// and Firestore mirrors. Postgres stays authoritative; a mirror failure
// requeues the job with a bumped attempt count until the retry budget runs
// out.
func main() {
	cfg := config.Load()

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer lg.Closer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		lg.Base.Info("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		lg.Base.Fatal("db connect failed", zap.Error(err))
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "pickup:sync")
	}

	var notionClient *notion.Client
	if cfg.NotionEnabled() {
		notionClient = notion.New(cfg.NotionAPIKey)
		lg.Base.Info("notion mirror connected", zap.String("database", cfg.NotionDatabaseID))
	} else {
		lg.Base.Info("notion mirror disabled")
	}

	mirror, err := firestore.New(ctx, cfg.FirebaseServiceAccount, cfg.FirebaseServiceAccountFile)
	if err != nil {
		lg.Base.Warn("firestore mirror init failed, continuing without it", zap.Error(err))
		mirror = nil
	}
	if mirror.Enabled() {
		lg.Base.Info("firestore mirror connected")
		defer mirror.Close()
	} else {
		lg.Base.Info("firestore mirror disabled")
	}

	w := &worker{
		cfg:    cfg,
		log:    lg.Base,
		repo:   roster.NewRepository(db.Client),
		queue:  q,
		notion: notionClient,
		mirror: mirror,
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		lg.Base.Fatal("queue consume init failed", zap.Error(err))
	}

	lg.Base.Info("worker started, waiting for sync jobs")
	for msg := range messages {
		if msg.Type != "sync" {
			continue
		}
		job, err := roster.DecodeSyncJob(msg.Body)
		if err != nil {
			lg.Base.Warn("discarding undecodable sync job", zap.Error(err))
			continue
		}
		w.process(ctx, job)
		time.Sleep(10 * time.Millisecond)
	}

	lg.Base.Info("worker stopped")
}

type worker struct {
	cfg    config.App
	log    *zap.Logger
	repo   *roster.Repository
	queue  queue.Queue
	notion *notion.Client
	mirror *firestore.Mirror
}

// process applies one job to both mirrors. Each target fails or succeeds on
// its own so a Notion outage does not starve Firestore.
func (w *worker) process(ctx context.Context, job roster.SyncJob) {
	var failed bool

	if w.notion.Enabled() {
		metrics.SyncAttempts.WithLabelValues("notion").Inc()
		if err := w.applyNotion(ctx, job); err != nil {
			metrics.SyncFailures.WithLabelValues("notion").Inc()
			w.log.Warn("notion sync failed",
				zap.String("kind", job.Kind),
				zap.String("student", job.StudentID),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
			failed = true
		}
	}

	if w.mirror.Enabled() {
		metrics.SyncAttempts.WithLabelValues("firestore").Inc()
		if err := w.applyFirestore(ctx, job); err != nil {
			metrics.SyncFailures.WithLabelValues("firestore").Inc()
			w.log.Warn("firestore sync failed",
				zap.String("kind", job.Kind),
				zap.String("student", job.StudentID),
				zap.Int("attempts", job.Attempts),
				zap.Error(err))
			failed = true
		}
	}

	if failed {
		w.requeue(ctx, job)
	}
}

func (w *worker) requeue(ctx context.Context, job roster.SyncJob) {
	job.Attempts++
	if job.Attempts >= w.cfg.SyncMaxAttempts {
		w.log.Error("dropping sync job, retry budget exhausted",
			zap.String("kind", job.Kind),
			zap.String("student", job.StudentID),
			zap.Int("attempts", job.Attempts))
		return
	}
	msg, err := job.Message()
	if err != nil {
		return
	}
	if err := w.queue.Publish(ctx, msg); err != nil {
		w.log.Error("requeue failed", zap.String("student", job.StudentID), zap.Error(err))
	}
}

func (w *worker) applyNotion(ctx context.Context, job roster.SyncJob) error {
	switch job.Kind {
	case roster.SyncDelete:
		if job.NotionPageID == "" {
			return nil
		}
		return w.notion.ArchivePage(ctx, job.NotionPageID)

	case roster.SyncClassInfo:
		if w.cfg.NotionClassDatabaseID == "" {
			return nil
		}
		slots, err := w.repo.ListClassSlots(ctx)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			slots = roster.DefaultClassSlots()
		}
		return w.notion.ReplaceClassSlots(ctx, w.cfg.NotionClassDatabaseID, slots)

	case roster.SyncStatus, roster.SyncUpsert:
		st, err := w.repo.GetStudent(ctx, job.StudentID)
		if errors.Is(err, roster.ErrNotFound) {
			// Deleted between enqueue and processing; the delete job cleans up.
			return nil
		}
		if err != nil {
			return err
		}
		pageID, err := w.notion.UpsertStudent(ctx, w.cfg.NotionDatabaseID, st)
		if err != nil {
			return err
		}
		if pageID != "" && pageID != st.NotionPageID {
			_, err = w.repo.UpdateStudent(ctx, st.ID, roster.StudentPatch{NotionPageID: &pageID})
		}
		return err
	}
	return nil
}

func (w *worker) applyFirestore(ctx context.Context, job roster.SyncJob) error {
	switch job.Kind {
	case roster.SyncDelete:
		return w.mirror.DeleteStudent(ctx, job.StudentID)

	case roster.SyncClassInfo:
		slots, err := w.repo.ListClassSlots(ctx)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			slots = roster.DefaultClassSlots()
		}
		return w.mirror.SetClassInfo(ctx, slots)

	case roster.SyncStatus, roster.SyncUpsert:
		st, err := w.repo.GetStudent(ctx, job.StudentID)
		if errors.Is(err, roster.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return w.mirror.SetStudent(ctx, st)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LLM-Dev-Ops/copilot-agents/internal/canonical"
	"github.com/LLM-Dev-Ops/copilot-agents/internal/contracts"
)

// Publisher is the small subset of Kafka publisher behavior the streamer needs.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte) (publishedAt time.Time, err error)
	Close() error
}

// StreamerConfig configures the durable DB-first record streamer.
type StreamerConfig struct {
	// How many records to claim per poll.
	BatchSize int

	// PollInterval when there is no work (or after a batch).
	PollInterval time.Duration

	// MaxConcurrency bounds concurrent processing of claimed records.
	MaxConcurrency int
}

// Streamer is a durable DB-first egress pump for decision records:
//   - claims pending rows via SELECT ... FOR UPDATE SKIP LOCKED
//   - publishes a canonical envelope to Kafka
//   - archives the canonical JSON to S3
//   - marks each row streamed/failed so the DB drives retries
//
// Persistence at the executor boundary stays best-effort; the streamer only
// gives durably stored records a downstream path.
type Streamer struct {
	store     *PGStore
	publisher Publisher
	archiver  Archiver
	cfg       StreamerConfig

	wg sync.WaitGroup
}

// NewStreamer constructs a streamer with sensible defaults for zero fields.
func NewStreamer(store *PGStore, publisher Publisher, archiver Archiver, cfg StreamerConfig) *Streamer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Streamer{
		store:     store,
		publisher: publisher,
		archiver:  archiver,
		cfg:       cfg,
	}
}

// Run starts the streamer loop and blocks until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	log.Printf("[store.streamer] starting (batch=%d, concurrency=%d)", s.cfg.BatchSize, s.cfg.MaxConcurrency)
	defer log.Printf("[store.streamer] stopped")

	sem := make(chan struct{}, s.cfg.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			if s.publisher != nil {
				_ = s.publisher.Close()
			}
			return ctx.Err()
		default:
		}

		records, err := s.store.FetchPendingRecords(ctx, s.cfg.BatchSize)
		if err != nil {
			log.Printf("[store.streamer] fetch pending: %v", err)
			time.Sleep(s.cfg.PollInterval)
			continue
		}
		if len(records) == 0 {
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		for i := range records {
			rec := records[i]
			sem <- struct{}{}
			s.wg.Add(1)
			go func() {
				defer func() {
					<-sem
					s.wg.Done()
				}()
				if err := s.processRecord(ctx, &rec); err != nil {
					log.Printf("[store.streamer] record %s: %v", rec.RecordID, err)
				}
			}()
		}

		// Drain the batch before claiming more so retries stay bounded.
		s.wg.Wait()
	}
}

// processRecord performs publish -> archive for one record and marks the
// result in Postgres.
func (s *Streamer) processRecord(parentCtx context.Context, rec *contracts.DecisionRecord) error {
	ctx, cancel := context.WithTimeout(parentCtx, 30*time.Second)
	defer cancel()

	canonBytes, err := canonical.Marshal(recordEnvelope(rec))
	if err != nil {
		s.markFailed(parentCtx, rec.RecordID, fmt.Sprintf("canonicalize envelope: %v", err))
		return fmt.Errorf("canonicalize envelope: %w", err)
	}

	publishedAt, err := s.publisher.Publish(ctx, []byte(rec.RecordID), canonBytes)
	if err != nil {
		s.markFailed(parentCtx, rec.RecordID, fmt.Sprintf("kafka publish: %v", err))
		return fmt.Errorf("kafka publish: %w", err)
	}

	var archivedKey sql.NullString
	if s3Arch, ok := s.archiver.(*S3Archiver); ok {
		key, err := s3Arch.ArchiveRecordAndReturnKey(ctx, rec)
		if err != nil {
			s.markFailed(parentCtx, rec.RecordID, fmt.Sprintf("s3 archive: %v", err))
			return fmt.Errorf("s3 archive: %w", err)
		}
		archivedKey = sql.NullString{String: key, Valid: true}
	} else if s.archiver != nil {
		if err := s.archiver.ArchiveRecord(ctx, rec); err != nil {
			s.markFailed(parentCtx, rec.RecordID, fmt.Sprintf("archive: %v", err))
			return fmt.Errorf("archive: %w", err)
		}
	}

	if err := s.store.MarkStreamResult(parentCtx, rec.RecordID, archivedKey, true, sql.NullString{}); err != nil {
		return fmt.Errorf("mark stream success: %w", err)
	}

	log.Printf("[store.streamer] record %s streamed: published_at=%s archived_key=%v",
		rec.RecordID, publishedAt.Format(time.RFC3339Nano), archivedKey.String)
	return nil
}

func (s *Streamer) markFailed(ctx context.Context, id, msg string) {
	errMsg := sql.NullString{String: msg, Valid: true}
	_ = s.store.MarkStreamResult(ctx, id, sql.NullString{}, false, errMsg)
}

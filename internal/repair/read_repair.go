package repair

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"docstore/internal/document"
	"docstore/internal/metrics"
)

// Merger pushes a merged body to one replica.
type Merger interface {
	Merge(ctx context.Context, body document.Body) error
}

// ReadRepairer performs asynchronous read repair to converge stale replicas.
type ReadRepairer struct {
	// mergerFor returns a merger for a given node address
	mergerFor func(addr string) (Merger, error)
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewReadRepairer creates a new read repairer.
func NewReadRepairer(mergerFor func(addr string) (Merger, error), timeout time.Duration, logger *slog.Logger) *ReadRepairer {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadRepairer{
		mergerFor: mergerFor,
		timeout:   timeout,
		logger:    logger,
	}
}

// Repair asynchronously pushes winner to the stale replicas.
// This is fire-and-forget: it logs errors but does not block or retry.
// The repair runs on a context detached from ctx's cancellation.
func (r *ReadRepairer) Repair(ctx context.Context, winner document.Body, stale map[string]document.Body, replicaAddrs map[string]string) {
	if len(stale) == 0 || winner == nil {
		return
	}

	id := winner.ID()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				r.logger.Error("read repair panic", "doc_id", id, "panic", err)
			}
		}()

		repairCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		rev, _ := winner.Rev()
		r.logger.Info("read repair triggered", "doc_id", id, "rev", rev.String(), "stale", len(stale))

		repaired, failed := 0, 0
		for replicaID := range stale {
			addr, ok := replicaAddrs[replicaID]
			if !ok {
				r.logger.Debug("read repair skipping replica without address", "doc_id", id, "replica", replicaID)
				metrics.RecordReadRepair("skipped")
				continue
			}

			if err := r.repairReplica(repairCtx, addr, winner); err != nil {
				r.logger.Warn("read repair failed", "doc_id", id, "replica", replicaID, "error", err)
				metrics.RecordReadRepair("failed")
				failed++
				continue
			}
			metrics.RecordReadRepair("repaired")
			repaired++
		}

		r.logger.Info("read repair completed", "doc_id", id, "repaired", repaired, "failed", failed)
	}()
}

// Wait blocks until all started repairs have finished.
func (r *ReadRepairer) Wait() {
	r.wg.Wait()
}

func (r *ReadRepairer) repairReplica(ctx context.Context, addr string, winner document.Body) error {
	merger, err := r.mergerFor(addr)
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}
	if err := merger.Merge(ctx, winner.Clone()); err != nil {
		return fmt.Errorf("replica merge failed: %w", err)
	}
	return nil
}

package application

import (
	"context"
	"log/slog"
	"time"

	"orderflow/internal/order/domain"
)

// Reaper cancels orders stuck in Pending past the reservation TTL, covering
// the case where the catalog never answered. A Pending cancel publishes
// nothing: no stock was committed.
type Reaper struct {
	log      *slog.Logger
	repo     Repository
	svc      *Service
	ttl      time.Duration
	interval time.Duration
}

func NewReaper(log *slog.Logger, repo Repository, svc *Service, ttl time.Duration) *Reaper {
	return &Reaper{
		log:      log,
		repo:     repo,
		svc:      svc,
		ttl:      ttl,
		interval: 30 * time.Second,
	}
}

func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopping")
			return nil
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.ttl)
	ids, err := r.repo.StalePendingIDs(ctx, cutoff, 100)
	if err != nil {
		r.log.Error("reaper query failed", "err", err)
		return
	}
	for _, id := range ids {
		expired, err := r.svc.ExpirePending(ctx, id, "stock reservation timed out")
		if domain.IsStateError(err) {
			// The outcome arrived between the load and the save.
			continue
		}
		if err != nil {
			r.log.Error("reaper cancel failed", "order_id", id, "err", err)
			continue
		}
		if expired {
			r.log.Warn("pending order timed out", "order_id", id, "ttl", r.ttl.String())
		}
	}
}

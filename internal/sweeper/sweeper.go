package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	ordersvc "github.com/Additional-Code/orderdesk/internal/service/order"
)

var sweepTracer = otel.Tracer("github.com/Additional-Code/orderdesk/sweeper")

// Sweeper advances orders from pending to completed on a fixed
// interval. It is a single writer running outside any request context
// and never surfaces errors externally; a failed tick logs and waits
// for the next one.
type Sweeper struct {
	repo      *repo.Repository
	logger    *zap.Logger
	publisher messaging.Client
	interval  time.Duration
	enabled   bool
	publish   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Repository *repo.Repository
	Logger     *zap.Logger
	Publisher  messaging.Client
	Config     config.Config
}

// New constructs the Sweeper from configuration.
func New(p Params) *Sweeper {
	return &Sweeper{
		repo:      p.Repository,
		logger:    p.Logger,
		publisher: p.Publisher,
		interval:  p.Config.Sweep.Interval,
		enabled:   p.Config.Sweep.Enabled,
		publish:   p.Config.Messaging.Enabled,
	}
}

// Module wires the sweeper into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, s *Sweeper) {
		lc.Append(fx.Hook{
			OnStart: s.start,
			OnStop:  s.stop,
		})
	}),
)

func (s *Sweeper) start(context.Context) error {
	if !s.enabled {
		s.logger.Info("order sweeper disabled")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(runCtx); err != nil {
					s.logger.Error("sweep aborted", zap.Error(err))
				}
			}
		}
	}()

	s.logger.Info("order sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		s.logger.Info("order sweeper stopped")
		return nil
	}
}

// Sweep performs one pass: fetch sweepable orders in a single read,
// then advance each one sequentially with two separate commits
// (pending -> processing, processing -> completed). An error aborts the
// remainder of the pass; orders already committed stay committed and
// the rest are retried next tick. Returns the number of orders fully
// completed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ctx, span := sweepTracer.Start(ctx, "Sweeper.Sweep")
	defer span.End()

	staleBefore := time.Now().UTC().Add(-s.interval)
	orders, err := s.repo.ListSweepable(ctx, staleBefore)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return 0, err
	}

	if len(orders) == 0 {
		s.logger.Debug("no pending orders to process")
		return 0, nil
	}

	s.logger.Info("processing pending orders", zap.Int("count", len(orders)))

	completed := 0
	for i := range orders {
		order := &orders[i]
		if err := s.advance(ctx, order); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "advance failed")
			span.SetAttributes(attribute.Int("sweep.completed", completed))
			return completed, fmt.Errorf("advance order %d: %w", order.ID, err)
		}
		completed++
	}

	span.SetAttributes(attribute.Int("sweep.completed", completed))
	s.logger.Info("processed pending orders", zap.Int("count", completed))
	return completed, nil
}

func (s *Sweeper) advance(ctx context.Context, order *entity.Order) error {
	if order.Status == entity.StatusPending {
		if err := s.repo.UpdateStatus(ctx, order.ID, entity.StatusPending, entity.StatusProcessing); err != nil {
			// A concurrent cancel is not a failure; skip the order.
			if errors.Is(err, repo.ErrStale) {
				s.logger.Info("order no longer pending; skipping", zap.Int64("id", order.ID))
				return nil
			}
			return err
		}
		s.logger.Info("order processing",
			zap.Int64("id", order.ID),
			zap.String("product", order.ProductName),
		)
	}

	if err := s.repo.UpdateStatus(ctx, order.ID, entity.StatusProcessing, entity.StatusCompleted); err != nil {
		if errors.Is(err, repo.ErrStale) {
			s.logger.Info("order left processing concurrently; skipping", zap.Int64("id", order.ID))
			return nil
		}
		return err
	}
	s.logger.Info("order completed",
		zap.Int64("id", order.ID),
		zap.String("product", order.ProductName),
	)

	s.publishCompleted(ctx, order)
	return nil
}

func (s *Sweeper) publishCompleted(ctx context.Context, order *entity.Order) {
	if !s.publish || s.publisher == nil {
		return
	}
	event := ordersvc.LifecycleEvent{
		ID:          order.ID,
		UserID:      order.UserID,
		ProductName: order.ProductName,
		Status:      entity.StatusCompleted,
		OccurredAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event", zap.Error(err))
	}
}

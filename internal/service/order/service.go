package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/entity"
	"github.com/Additional-Code/orderdesk/internal/messaging"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderdesk/service/order")

// Service enforces the order lifecycle state machine and its
// authorization gate. Orders move pending -> processing -> completed,
// or pending -> cancelled; terminal states are immutable.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    p.Logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
	}
}

// Create opens a new order for the owner in the pending state. The
// owner is always the authenticated caller; transports must never take
// it from the request body.
func (s *Service) Create(ctx context.Context, owner *entity.User, productName string, amount float64) (*entity.Order, error) {
	if owner == nil {
		return nil, errorbank.Unauthenticated("could not validate credentials")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("order.user_id", owner.ID)))
	defer span.End()

	now := time.Now().UTC()
	order := &entity.Order{
		UserID:      owner.ID,
		ProductName: productName,
		Amount:      amount,
		Status:      entity.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.logger.Info("order created",
		zap.Int64("id", order.ID),
		zap.Int64("user_id", owner.ID),
		zap.String("product", productName),
	)
	s.publishEvent(ctx, order)
	return order, nil
}

// ListForOwner returns all of the owner's orders, newest first. The
// owner filter is applied server-side; there is nothing to authorize
// beyond the identity match.
func (s *Service) ListForOwner(ctx context.Context, owner *entity.User) ([]entity.Order, error) {
	if owner == nil {
		return nil, errorbank.Unauthenticated("could not validate credentials")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.ListForOwner", trace.WithAttributes(attribute.Int64("order.user_id", owner.ID)))
	defer span.End()

	orders, err := s.repo.ListByUser(ctx, owner.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// Cancel transitions a pending order to cancelled on behalf of its
// owner. The ownership check runs before the status check so non-owners
// never learn an order's state. The write is conditional on the status
// still being pending, which makes racing cancels safe; the loser is
// re-read and reported as an invalid state.
func (s *Service) Cancel(ctx context.Context, id int64, requester *entity.User) (*entity.Order, error) {
	if requester == nil {
		return nil, errorbank.Unauthenticated("could not validate credentials")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if order.UserID != requester.ID {
		s.logger.Warn("cancel denied",
			zap.Int64("order_id", id),
			zap.Int64("owner_id", order.UserID),
			zap.Int64("requester_id", requester.ID),
		)
		return nil, errorbank.Forbidden("you can only cancel your own orders")
	}

	if order.Status != entity.StatusPending {
		return nil, invalidStateErr(order.Status)
	}

	err = s.repo.UpdateStatus(ctx, id, entity.StatusPending, entity.StatusCancelled)
	if errors.Is(err, repo.ErrStale) {
		// Lost the race; report whatever status won.
		fresh, readErr := s.repo.GetByID(ctx, id)
		if readErr != nil {
			return nil, errorbank.Internal("failed to reload order", errorbank.WithCause(readErr))
		}
		return nil, invalidStateErr(fresh.Status)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to cancel order", errorbank.WithCause(err))
	}

	if err := s.dropFromCache(ctx, id); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err = s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errorbank.Internal("failed to reload order", errorbank.WithCause(err))
	}

	s.logger.Info("order cancelled", zap.Int64("id", id), zap.Int64("user_id", requester.ID))
	s.publishEvent(ctx, order)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

func invalidStateErr(status entity.Status) *errorbank.AppError {
	return errorbank.InvalidState(
		fmt.Sprintf("cannot cancel order with status: %s", status),
		errorbank.WithDetail("status", string(status)),
	)
}

func (s *Service) publishEvent(ctx context.Context, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := LifecycleEvent{
		ID:          order.ID,
		UserID:      order.UserID,
		ProductName: order.ProductName,
		Status:      order.Status,
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

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}

func (s *Service) dropFromCache(ctx context.Context, id int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, s.cacheKey(id))
}

// LifecycleEvent is emitted whenever an order changes state.
type LifecycleEvent struct {
	ID          int64         `json:"id"`
	UserID      int64         `json:"user_id"`
	ProductName string        `json:"product_name"`
	Status      entity.Status `json:"status"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/auth"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	hasher *auth.Hasher
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, cfg config.Config, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     conns.Writer,
		hasher: auth.NewHasher(cfg.Auth.BcryptCost),
		logger: logger,
	}
}

// Demo seeds a demo account with a couple of orders if missing.
func (s *Seeder) Demo(ctx context.Context) error {
	now := time.Now().UTC()

	hash, err := s.hasher.Hash("secret1")
	if err != nil {
		return err
	}

	user := &entity.User{
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if _, err := s.db.NewInsert().Model(user).
		On("CONFLICT (email) DO NOTHING").
		Exec(ctx); err != nil {
		return err
	}

	if user.ID == 0 {
		// Already seeded; pick up the existing id for the orders below.
		if err := s.db.NewSelect().Model(user).Where("email = ?", user.Email).Scan(ctx); err != nil {
			return err
		}
	}

	samples := []entity.Order{
		{UserID: user.ID, ProductName: "Widget", Amount: 9.99, Status: entity.StatusPending, CreatedAt: now, UpdatedAt: now},
		{UserID: user.ID, ProductName: "Gadget", Amount: 24.50, Status: entity.StatusCompleted, CreatedAt: now, UpdatedAt: now},
	}

	for _, sample := range samples {
		order := sample
		exists, err := s.db.NewSelect().Model((*entity.Order)(nil)).
			Where("user_id = ? AND product_name = ?", order.UserID, order.ProductName).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := s.db.NewInsert().Model(&order).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded demo data", zap.String("email", user.Email), zap.Int("orders", len(samples)))
	}
	return nil
}

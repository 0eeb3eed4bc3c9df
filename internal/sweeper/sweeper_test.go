package sweeper

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/database"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/order"
)

func newTestSweeper(t *testing.T) (*Sweeper, *database.Connections) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*entity.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*entity.Order)(nil)).Exec(ctx)
	require.NoError(t, err)

	conns := &database.Connections{Writer: db, Reader: db}

	cfg := config.Config{}
	cfg.Sweep.Enabled = true
	cfg.Sweep.Interval = time.Minute

	sw := New(Params{
		Repository: repo.NewRepository(conns),
		Logger:     zap.NewNop(),
		Config:     cfg,
	})
	return sw, conns
}

func seedOrder(t *testing.T, conns *database.Connections, status entity.Status, updatedAt time.Time) *entity.Order {
	t.Helper()

	order := &entity.Order{
		UserID:      1,
		ProductName: "Widget",
		Amount:      9.99,
		Status:      status,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	}
	_, err := conns.Writer.NewInsert().Model(order).Exec(context.Background())
	require.NoError(t, err)
	return order
}

func fetchStatus(t *testing.T, conns *database.Connections, id int64) entity.Status {
	t.Helper()

	order := new(entity.Order)
	err := conns.Reader.NewSelect().Model(order).Where("id = ?", id).Scan(context.Background())
	require.NoError(t, err)
	return order.Status
}

func TestSweepCompletesPendingOrders(t *testing.T) {
	sw, conns := newTestSweeper(t)
	now := time.Now().UTC()

	first := seedOrder(t, conns, entity.StatusPending, now)
	second := seedOrder(t, conns, entity.StatusPending, now)

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, entity.StatusCompleted, fetchStatus(t, conns, first.ID))
	assert.Equal(t, entity.StatusCompleted, fetchStatus(t, conns, second.ID))
}

func TestSweepLeavesTerminalOrdersAlone(t *testing.T) {
	sw, conns := newTestSweeper(t)
	old := time.Now().UTC().Add(-time.Hour)

	completed := seedOrder(t, conns, entity.StatusCompleted, old)
	cancelled := seedOrder(t, conns, entity.StatusCancelled, old)

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Equal(t, entity.StatusCompleted, fetchStatus(t, conns, completed.ID))
	assert.Equal(t, entity.StatusCancelled, fetchStatus(t, conns, cancelled.ID))
}

func TestSweepRecoversStaleProcessingOrders(t *testing.T) {
	sw, conns := newTestSweeper(t)

	// A row stuck in processing since before the previous tick is
	// picked up again; a fresh one is left for its own tick.
	stale := seedOrder(t, conns, entity.StatusProcessing, time.Now().UTC().Add(-time.Hour))
	fresh := seedOrder(t, conns, entity.StatusProcessing, time.Now().UTC())

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, entity.StatusCompleted, fetchStatus(t, conns, stale.ID))
	assert.Equal(t, entity.StatusProcessing, fetchStatus(t, conns, fresh.ID))
}

func TestSweepEmptyTableIsNoop(t *testing.T) {
	sw, _ := newTestSweeper(t)

	count, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSweepSkipsConcurrentlyCancelledOrder(t *testing.T) {
	sw, conns := newTestSweeper(t)

	order := seedOrder(t, conns, entity.StatusPending, time.Now().UTC())

	// Simulate a cancel landing between the scan and the advance by
	// flipping the row before the sweep runs on a stale snapshot.
	snapshot := *order
	repository := repo.NewRepository(conns)
	require.NoError(t, repository.UpdateStatus(context.Background(), order.ID, entity.StatusPending, entity.StatusCancelled))

	require.NoError(t, sw.advance(context.Background(), &snapshot))
	assert.Equal(t, entity.StatusCancelled, fetchStatus(t, conns, order.ID))
}

package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"menuvista-session/internal/db"
	"menuvista-session/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	name := regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_") + "_" + uuid.NewString()[:8]
	return openSQLiteStore(t, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}

// newFileSQLiteStore opens a file database whose transactions take the
// write lock up front, so concurrent writers queue instead of failing.
func newFileSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	path := filepath.Join(t.TempDir(), "orders.db")
	return openSQLiteStore(t, path+"?_busy_timeout=10000&_txlock=immediate")
}

func openSQLiteStore(t *testing.T, dsn string) (Store, *gorm.DB) {
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return NewGormStore(gormDB, 24*time.Hour), gormDB
}

func strPtr(s string) *string { return &s }

func TestGormStore_Session_NotFound(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "menu_sessions" WHERE token = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"token", "short_code", "device_id"}))

	_, err := s.Session(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Session_DatabaseError(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "menu_sessions" WHERE token = $1`)).
		WillReturnError(errors.New("connection reset"))

	_, err := s.Session(context.Background(), "tok", time.Now())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGormStore_Session_Expired(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, time.Hour)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "menu_sessions" WHERE token = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"token", "short_code", "device_id", "created_at", "last_seen_at", "expires_at"}).
			AddRow("tok", "ABC1", "dev", now.Add(-48*time.Hour), now.Add(-48*time.Hour), now.Add(-time.Minute)))

	_, err := s.Session(context.Background(), "tok", now)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestGormStore_Negotiate(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	t.Run("issues a new session", func(t *testing.T) {
		s, _ := newSQLiteStore(t)
		sess, err := s.Negotiate(context.Background(), "ABC1", nil, "dev-1", now)
		require.NoError(t, err)
		assert.Len(t, sess.Token, 32)
		assert.Equal(t, now.Add(24*time.Hour), sess.ExpiresAt)
	})

	t.Run("honours a valid client token", func(t *testing.T) {
		s, _ := newSQLiteStore(t)
		first, err := s.Negotiate(context.Background(), "ABC1", nil, "dev-1", now)
		require.NoError(t, err)

		again, err := s.Negotiate(context.Background(), "ABC1", strPtr(first.Token), "dev-2", now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, first.Token, again.Token)
		assert.Equal(t, now.Add(25*time.Hour), again.ExpiresAt, "negotiation extends the session")
	})

	t.Run("reuses the device session when the token is stale", func(t *testing.T) {
		s, _ := newSQLiteStore(t)
		first, err := s.Negotiate(context.Background(), "ABC1", nil, "dev-1", now)
		require.NoError(t, err)

		again, err := s.Negotiate(context.Background(), "ABC1", strPtr("not-a-token"), "dev-1", now)
		require.NoError(t, err)
		assert.Equal(t, first.Token, again.Token)
	})

	t.Run("does not reuse a token of another menu", func(t *testing.T) {
		s, _ := newSQLiteStore(t)
		other, err := s.Negotiate(context.Background(), "XYZ9", nil, "dev-1", now)
		require.NoError(t, err)

		sess, err := s.Negotiate(context.Background(), "ABC1", strPtr(other.Token), "dev-1", now)
		require.NoError(t, err)
		assert.NotEqual(t, other.Token, sess.Token)
		assert.Equal(t, "ABC1", sess.ShortCode)
	})

	t.Run("replaces an expired session", func(t *testing.T) {
		s, _ := newSQLiteStore(t)
		old, err := s.Negotiate(context.Background(), "ABC1", nil, "dev-1", now)
		require.NoError(t, err)

		later := now.Add(48 * time.Hour)
		sess, err := s.Negotiate(context.Background(), "ABC1", strPtr(old.Token), "dev-1", later)
		require.NoError(t, err)
		assert.NotEqual(t, old.Token, sess.Token)
	})
}

func TestGormStore_PlaceOrderAndLifecycle(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	sess, err := s.Negotiate(ctx, "abc1", nil, "dev-1", now)
	require.NoError(t, err)

	req := model.PlaceOrderRequest{
		Items: []model.OrderLineItem{
			{ID: 1, Name: "Kottu", Quantity: 2, Price: 1000, Variation: &model.Variation{Name: "Cheese", Price: 250}},
			{ID: 2, Name: "Faluda", Quantity: 1, Price: 600},
		},
		Currency: "lkr",
		Notes:    "  table by the window ",
	}
	first, err := s.PlaceOrder(ctx, sess, req, now)
	require.NoError(t, err)
	assert.Equal(t, "ABC1-0001", first.OrderNumber)
	assert.Equal(t, 3100.0, first.Total)
	assert.Equal(t, "LKR", first.Currency)
	require.NotNil(t, first.Notes)
	assert.Equal(t, "table by the window", *first.Notes)

	second, err := s.PlaceOrder(ctx, sess, req, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "ABC1-0002", second.OrderNumber)

	_, _, err = s.UpdateOrderStatus(ctx, first.ID, model.StatusPreparing, now.Add(2*time.Minute))
	require.NoError(t, err)
	_, _, err = s.UpdateOrderStatus(ctx, first.ID, model.StatusReady, now.Add(3*time.Minute))
	require.NoError(t, err)
	delivered, prev, err := s.UpdateOrderStatus(ctx, first.ID, model.StatusDelivered, now.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusReady, prev)
	require.NotNil(t, delivered.DeliveredAt)

	_, _, err = s.UpdateOrderStatus(ctx, first.ID, model.StatusPending, now.Add(5*time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, _, err = s.UpdateOrderStatus(ctx, 9999, model.StatusReady, now)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	active, done, err := s.SessionOrders(ctx, sess.Token)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	require.Len(t, done, 1)

	summary := done[0].Summary()
	assert.Equal(t, model.StatusDelivered, summary.Status)
	assert.False(t, summary.IsActive)
	require.NotNil(t, summary.PreparingAt)
	require.NotNil(t, summary.ReadyAt)
	assert.Len(t, summary.Items, 2)
}

func TestGormStore_PlaceOrder_CaseVariantCodesShareSequence(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	items := []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: 1, Price: 150}}

	lower, err := s.Negotiate(ctx, "abc1", nil, "dev-1", now)
	require.NoError(t, err)
	upper, err := s.Negotiate(ctx, "ABC1", nil, "dev-2", now)
	require.NoError(t, err)

	first, err := s.PlaceOrder(ctx, lower, model.PlaceOrderRequest{Items: items}, now)
	require.NoError(t, err)
	second, err := s.PlaceOrder(ctx, upper, model.PlaceOrderRequest{Items: items}, now)
	require.NoError(t, err)

	assert.Equal(t, "ABC1-0001", first.OrderNumber)
	assert.Equal(t, "ABC1-0002", second.OrderNumber)
}

func TestGormStore_PlaceOrder_NumbersSkipDeletedOrders(t *testing.T) {
	s, gormDB := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	req := model.PlaceOrderRequest{Items: []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: 1, Price: 150}}}

	sess, err := s.Negotiate(ctx, "ABC1", nil, "dev-1", now)
	require.NoError(t, err)
	first, err := s.PlaceOrder(ctx, sess, req, now)
	require.NoError(t, err)
	_, err = s.PlaceOrder(ctx, sess, req, now)
	require.NoError(t, err)

	require.NoError(t, gormDB.Delete(&model.DinerOrder{}, first.ID).Error)

	third, err := s.PlaceOrder(ctx, sess, req, now)
	require.NoError(t, err)
	assert.Equal(t, "ABC1-0003", third.OrderNumber)
}

func TestGormStore_PlaceOrder_Concurrent(t *testing.T) {
	s, _ := newFileSQLiteStore(t)
	ctx := context.Background()
	now := time.Now()
	req := model.PlaceOrderRequest{Items: []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: 1, Price: 150}}}

	const diners = 8
	sessions := make([]*model.MenuSession, diners)
	for i := range sessions {
		sess, err := s.Negotiate(ctx, "ABC1", nil, fmt.Sprintf("dev-%d", i), now)
		require.NoError(t, err)
		sessions[i] = sess
	}

	var wg sync.WaitGroup
	numbers := make([]string, diners)
	errs := make([]error, diners)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := s.PlaceOrder(ctx, sessions[i], req, now)
			errs[i] = err
			if err == nil {
				numbers[i] = order.OrderNumber
			}
		}(i)
	}
	wg.Wait()

	want := make([]string, diners)
	for i := range want {
		require.NoError(t, errs[i])
		want[i] = OrderNumber("ABC1", int64(i+1))
	}
	assert.ElementsMatch(t, want, numbers)
}

// The counter row is bumped with an upsert so postgres serialises
// concurrent placements on the row lock.
func TestGormStore_PlaceOrder_SequenceUpsert(t *testing.T) {
	gormDB, mock := newMockDB(t)
	s := NewGormStore(gormDB, time.Hour)
	sess := &model.MenuSession{Token: "tok", ShortCode: "abc1"}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "menu_sequences" .* ON CONFLICT \("short_code"\) DO UPDATE SET "seq"=menu_sequences\.seq \+ 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "menu_sequences" WHERE short_code = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"short_code", "seq"}).AddRow("ABC1", 7))
	mock.ExpectQuery(`INSERT INTO "diner_orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	order, err := s.PlaceOrder(context.Background(), sess, model.PlaceOrderRequest{
		Items: []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: 1, Price: 150}},
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "ABC1-0007", order.OrderNumber)
	assert.EqualValues(t, 42, order.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_PlaceOrder_Invalid(t *testing.T) {
	s, _ := newSQLiteStore(t)
	sess := &model.MenuSession{Token: "tok", ShortCode: "ABC1"}

	_, err := s.PlaceOrder(context.Background(), sess, model.PlaceOrderRequest{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = s.PlaceOrder(context.Background(), sess, model.PlaceOrderRequest{
		Items: []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: 0, Price: 100}},
	}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestCanTransition(t *testing.T) {
	testCases := []struct {
		from, to model.OrderStatus
		ok       bool
	}{
		{model.StatusPending, model.StatusPreparing, true},
		{model.StatusPending, model.StatusReady, true},
		{model.StatusReady, model.StatusDelivered, true},
		{model.StatusDelivered, model.StatusCompleted, true},
		{model.StatusPreparing, model.StatusPending, false},
		{model.StatusReady, model.StatusCancelled, true},
		{model.StatusDelivered, model.StatusCancelled, false},
		{model.StatusCancelled, model.StatusPreparing, false},
		{model.StatusPending, "bogus", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrderNumber(t *testing.T) {
	assert.Equal(t, "ABC1-0042", OrderNumber("abc1", 42))
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"storefront/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectCartPrepares(mock sqlmock.Sqlmock) {
	mock.ExpectPrepare(regexp.QuoteMeta(getCartQuery))
	mock.ExpectPrepare(regexp.QuoteMeta(putCartQuery))
	mock.ExpectPrepare(regexp.QuoteMeta(deleteCartQuery))
}

func newMockCartRepository(t *testing.T) (*CartRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	expectCartPrepares(mock)
	repo, err := NewCartRepository(db)
	require.NoError(t, err)
	return repo, mock
}

func TestNewCartRepository(t *testing.T) {
	t.Run("fails_when_prepare_put_fails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectPrepare(regexp.QuoteMeta(getCartQuery))
		mock.ExpectPrepare(regexp.QuoteMeta(putCartQuery)).WillReturnError(errors.New("prepare failed"))

		repo, err := NewCartRepository(db)
		require.Error(t, err)
		assert.Nil(t, repo)
		assert.Contains(t, err.Error(), "failed to prepare put cart statement")
	})
}

func TestCartRepository_Get(t *testing.T) {
	t.Run("returns_stored_cart", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		items := `[{"productId":"p1","productName":"Mug","unitPrice":50,"quantity":2,"inventoryCount":5,"totalPrice":100,"addedAt":"2025-01-01T00:00:00Z"}]`
		mock.ExpectQuery(regexp.QuoteMeta(getCartQuery)).
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"items", "currency"}).AddRow([]byte(items), "ZAR"))

		cart, err := repo.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, "p1", cart.Items[0].ProductID)
		assert.Equal(t, 2, cart.Items[0].Quantity)
		assert.Equal(t, 5, cart.Items[0].InventoryCap)
		assert.Equal(t, 100.0, cart.Items[0].LineTotal)
		assert.Equal(t, "ZAR", cart.Currency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_row_is_empty_cart", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(getCartQuery)).
			WithArgs("user-2").
			WillReturnRows(sqlmock.NewRows([]string{"items", "currency"}))

		cart, err := repo.Get(context.Background(), "user-2")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
		assert.Equal(t, domain.DefaultCurrency, cart.Currency)
	})

	t.Run("database_error", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		mock.ExpectQuery(regexp.QuoteMeta(getCartQuery)).
			WithArgs("user-3").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.Get(context.Background(), "user-3")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get cart")
	})
}

func TestCartRepository_Put(t *testing.T) {
	t.Run("upserts_items_as_json", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(putCartQuery)).
			WithArgs("user-1", sqlmock.AnyArg(), "ZAR").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Put(context.Background(), "user-1", domain.Cart{
			Items:    []domain.CartLine{{ProductID: "p1", Quantity: 1}},
			Currency: "ZAR",
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nil_items_are_stored_as_empty_array", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(putCartQuery)).
			WithArgs("user-1", "[]", "ZAR").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Put(context.Background(), "user-1", domain.Cart{Currency: "ZAR"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database_error", func(t *testing.T) {
		repo, mock := newMockCartRepository(t)

		mock.ExpectExec(regexp.QuoteMeta(putCartQuery)).
			WillReturnError(errors.New("disk full"))

		err := repo.Put(context.Background(), "user-1", domain.EmptyCart())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to put cart")
	})
}

func TestCartRepository_Delete(t *testing.T) {
	repo, mock := newMockCartRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(deleteCartQuery)).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

const (
	getCartQuery = `
		SELECT items, currency
		FROM carts
		WHERE subject_id = $1
	`
	putCartQuery = `
		INSERT INTO carts (subject_id, items, currency, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (subject_id)
		DO UPDATE SET items = EXCLUDED.items, currency = EXCLUDED.currency, updated_at = NOW()
	`
	deleteCartQuery = `DELETE FROM carts WHERE subject_id = $1`
)

// CartRepository stores each subject's cart as one JSONB row.
type CartRepository struct {
	db         *sql.DB
	getStmt    *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewCartRepository prepares the cart statements.
func NewCartRepository(db *sql.DB) (*CartRepository, error) {
	repo := &CartRepository{db: db}

	var err error
	repo.getStmt, err = db.Prepare(getCartQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get cart statement: %w", err)
	}

	repo.putStmt, err = db.Prepare(putCartQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare put cart statement: %w", err)
	}

	repo.deleteStmt, err = db.Prepare(deleteCartQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete cart statement: %w", err)
	}

	return repo, nil
}

func (r *CartRepository) Get(ctx context.Context, subjectID string) (domain.Cart, error) {
	var (
		raw  []byte
		cart domain.Cart
	)
	err := r.getStmt.QueryRowContext(ctx, subjectID).Scan(&raw, &cart.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyCart(), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}

	if err := json.Unmarshal(raw, &cart.Items); err != nil {
		return domain.Cart{}, fmt.Errorf("failed to decode cart items: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}
	return cart, nil
}

func (r *CartRepository) Put(ctx context.Context, subjectID string, cart domain.Cart) error {
	items := cart.Items
	if items == nil {
		items = []domain.CartLine{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode cart items: %w", err)
	}

	if _, err := r.putStmt.ExecContext(ctx, subjectID, string(raw), cart.Currency); err != nil {
		return fmt.Errorf("failed to put cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Delete(ctx context.Context, subjectID string) error {
	if _, err := r.deleteStmt.ExecContext(ctx, subjectID); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

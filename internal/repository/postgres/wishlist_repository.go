package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"storefront/internal/domain"
)

const (
	listWishlistQuery = `
		SELECT product_id, product_name, product_image, price, added_at
		FROM wishlist_entries
		WHERE subject_id = $1
		ORDER BY seq
	`
	insertWishlistEntryQuery = `
		INSERT INTO wishlist_entries (subject_id, product_id, product_name, product_image, price, added_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (subject_id, product_id) DO NOTHING
	`
	clearWishlistQuery       = `DELETE FROM wishlist_entries WHERE subject_id = $1`
	removeWishlistEntryQuery = `DELETE FROM wishlist_entries WHERE subject_id = $1 AND product_id = $2`
)

// WishlistRepository stores one row per wishlist entry.
type WishlistRepository struct {
	db         *sql.DB
	tx         *TxManager
	listStmt   *sql.Stmt
	insertStmt *sql.Stmt
	removeStmt *sql.Stmt
}

// NewWishlistRepository prepares the wishlist statements.
func NewWishlistRepository(db *sql.DB) (*WishlistRepository, error) {
	repo := &WishlistRepository{db: db, tx: NewTxManager(db)}

	var err error
	repo.listStmt, err = db.Prepare(listWishlistQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare list wishlist statement: %w", err)
	}

	repo.insertStmt, err = db.Prepare(insertWishlistEntryQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert wishlist statement: %w", err)
	}

	repo.removeStmt, err = db.Prepare(removeWishlistEntryQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare remove wishlist statement: %w", err)
	}

	return repo, nil
}

func (r *WishlistRepository) Get(ctx context.Context, subjectID string) ([]domain.WishlistEntry, error) {
	rows, err := r.listStmt.QueryContext(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	entries := []domain.WishlistEntry{}
	for rows.Next() {
		var e domain.WishlistEntry
		if err := rows.Scan(&e.ProductID, &e.ProductName, &e.ProductImage, &e.Price, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wishlist: %w", err)
	}
	return entries, nil
}

// Replace swaps the whole wishlist in a single transaction.
func (r *WishlistRepository) Replace(ctx context.Context, subjectID string, entries []domain.WishlistEntry) error {
	return r.tx.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, clearWishlistQuery, subjectID); err != nil {
			return fmt.Errorf("failed to clear wishlist: %w", err)
		}

		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, insertWishlistEntryQuery, subjectID, e.ProductID, e.ProductName, e.ProductImage, e.Price, e.AddedAt); err != nil {
				return fmt.Errorf("failed to insert wishlist entry: %w", err)
			}
		}
		return nil
	})
}

func (r *WishlistRepository) Add(ctx context.Context, subjectID string, e domain.WishlistEntry) (bool, error) {
	result, err := r.insertStmt.ExecContext(ctx, subjectID, e.ProductID, e.ProductName, e.ProductImage, e.Price, e.AddedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add wishlist entry: %w", err)
	}
	return affectedOne(result)
}

func (r *WishlistRepository) Remove(ctx context.Context, subjectID, productID string) (bool, error) {
	result, err := r.removeStmt.ExecContext(ctx, subjectID, productID)
	if err != nil {
		return false, fmt.Errorf("failed to remove wishlist entry: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

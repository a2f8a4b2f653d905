package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/textnorm"
)

// productColumns is the shared select list for rows scanned by
// scanProduct.
const productColumns = `f.id, f.name, f.manufacturer, f.barcode, f.serving_size,
	f.calories, f.protein, f.fat, f.carbohydrate, f.sugar, f.sodium,
	f.created_at, f.updated_at`

// FindByID retrieves a single product by its id.
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.CanonicalProduct, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM foods f WHERE f.id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

// FindByBarcode retrieves the product holding barcode, if any.
func (s *Store) FindByBarcode(ctx context.Context, barcode string) (*domain.CanonicalProduct, error) {
	if barcode == "" {
		return nil, domain.ErrProductNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM foods f WHERE f.barcode = ?`, barcode)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by barcode: %w", err)
	}
	return p, nil
}

// FindByManufacturer retrieves products whose normalized manufacturer
// matches exactly, in stable id order.
func (s *Store) FindByManufacturer(ctx context.Context, manufacturerNorm string, limit int) ([]domain.CanonicalProduct, error) {
	if manufacturerNorm == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM foods f
		WHERE f.manufacturer_norm = ?
		ORDER BY f.id
		LIMIT ?`, manufacturerNorm, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query by manufacturer: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

// FindByTokenOverlap retrieves products sharing at least one token with
// the query, largest token sets first so the more specific entries
// survive when the limit truncates. The inverted food_tokens table keeps
// this a point lookup per token rather than a table scan.
func (s *Store) FindByTokenOverlap(ctx context.Context, tokens []string, limit int) ([]domain.CanonicalProduct, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(tokens)-1) + "?"
	args := make([]any, 0, len(tokens)+1)
	for _, t := range tokens {
		args = append(args, t)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+`
		FROM foods f
		JOIN food_tokens t ON t.food_id = f.id
		WHERE t.token IN (`+placeholders+`)
		GROUP BY f.id
		ORDER BY f.token_count DESC, f.id ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query by token overlap: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

// FindBySimilarity retrieves products whose normalized name exceeds the
// trigram Jaccard floor against nameNorm, most similar first. Shared
// trigram counts come from the inverted food_trigrams table; the
// Jaccard itself is computed from the stored per-product trigram count.
func (s *Store) FindBySimilarity(ctx context.Context, nameNorm string, floor float64, limit int) ([]domain.CanonicalProduct, error) {
	query := textnorm.Trigrams(nameNorm)
	if len(query) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(query)-1) + "?"
	args := make([]any, 0, len(query))
	for _, g := range query {
		args = append(args, g)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+productColumns+`, f.trigram_count, COUNT(*) AS shared
		FROM foods f
		JOIN food_trigrams g ON g.food_id = f.id
		WHERE g.trigram IN (`+placeholders+`)
		GROUP BY f.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		product domain.CanonicalProduct
		sim     float64
	}
	var matches []scored
	for rows.Next() {
		var trigramCount, shared int
		p, scanErr := scanProductExtra(rows, &trigramCount, &shared)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan product: %w", scanErr)
		}
		union := len(query) + trigramCount - shared
		if union <= 0 {
			continue
		}
		sim := float64(shared) / float64(union)
		if sim > floor {
			matches = append(matches, scored{*p, sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		return matches[i].product.ID < matches[j].product.ID
	})

	out := make([]domain.CanonicalProduct, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.product)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SetBarcodeIfAbsent attaches barcode to the product iff the product
// has no barcode yet and no other product holds this barcode. Both
// conditions live in the one UPDATE statement, so the check and the
// write cannot interleave with another writer. Returns whether the
// write happened.
func (s *Store) SetBarcodeIfAbsent(ctx context.Context, productID int64, barcode string) (bool, error) {
	if barcode == "" {
		return false, fmt.Errorf("%w: empty barcode", domain.ErrInvalidRequest)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE foods
		SET barcode = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		  AND barcode IS NULL
		  AND NOT EXISTS (SELECT 1 FROM foods WHERE barcode = ?)`,
		barcode, productID, barcode)
	if err != nil {
		// The UNIQUE index on barcode backstops the NOT EXISTS guard.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return false, nil
		}
		return false, fmt.Errorf("failed to set barcode: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish a missing product from a legitimate no-op.
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM foods WHERE id = ?`, productID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrProductNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to verify product %d: %w", productID, err)
	}
	return false, nil
}

// CreateProduct inserts a product together with its token and trigram
// index rows in one transaction. Derived fields are recomputed from the
// raw name and manufacturer before writing; callers never supply them.
func (s *Store) CreateProduct(ctx context.Context, product *domain.CanonicalProduct) error {
	if product == nil || product.Name == "" {
		return fmt.Errorf("%w: product name is required", domain.ErrInvalidRequest)
	}
	product.Normalize()
	trigrams := textnorm.Trigrams(product.NameNorm)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var barcode any
	if product.Barcode != "" {
		barcode = product.Barcode
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO foods (
			name, name_norm, manufacturer, manufacturer_norm, barcode, serving_size,
			calories, protein, fat, carbohydrate, sugar, sodium,
			token_count, trigram_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.Name, product.NameNorm,
		product.Manufacturer, product.ManufacturerNorm,
		barcode, product.ServingSize,
		product.Nutrition.Calories, product.Nutrition.Protein,
		product.Nutrition.Fat, product.Nutrition.Carbohydrate,
		product.Nutrition.Sugar, product.Nutrition.Sodium,
		len(product.Tokens), len(trigrams))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: barcode %s", domain.ErrBarcodeConflict, product.Barcode)
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read product id: %w", err)
	}

	for _, token := range product.Tokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO food_tokens (token, food_id) VALUES (?, ?)`, token, id); err != nil {
			return fmt.Errorf("failed to index token %q: %w", token, err)
		}
	}
	for _, trigram := range trigrams {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO food_trigrams (trigram, food_id) VALUES (?, ?)`, trigram, id); err != nil {
			return fmt.Errorf("failed to index trigram: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}

	product.ID = id
	return nil
}

// UpdateProduct rewrites a product's source fields and rebuilds its token
// and trigram index rows in one transaction. The barcode is left to
// SetBarcodeIfAbsent; updates never detach or move one.
func (s *Store) UpdateProduct(ctx context.Context, product *domain.CanonicalProduct) error {
	if product == nil || product.ID == 0 {
		return fmt.Errorf("%w: product id is required", domain.ErrInvalidRequest)
	}
	if product.Name == "" {
		return fmt.Errorf("%w: product name is required", domain.ErrInvalidRequest)
	}
	product.Normalize()
	trigrams := textnorm.Trigrams(product.NameNorm)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE foods
		SET name = ?, name_norm = ?, manufacturer = ?, manufacturer_norm = ?,
			serving_size = ?,
			calories = ?, protein = ?, fat = ?, carbohydrate = ?, sugar = ?, sodium = ?,
			token_count = ?, trigram_count = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		product.Name, product.NameNorm,
		product.Manufacturer, product.ManufacturerNorm,
		product.ServingSize,
		product.Nutrition.Calories, product.Nutrition.Protein,
		product.Nutrition.Fat, product.Nutrition.Carbohydrate,
		product.Nutrition.Sugar, product.Nutrition.Sodium,
		len(product.Tokens), len(trigrams),
		product.ID)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", product.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM food_tokens WHERE food_id = ?`, product.ID); err != nil {
		return fmt.Errorf("failed to clear token index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM food_trigrams WHERE food_id = ?`, product.ID); err != nil {
		return fmt.Errorf("failed to clear trigram index: %w", err)
	}
	for _, token := range product.Tokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO food_tokens (token, food_id) VALUES (?, ?)`, token, product.ID); err != nil {
			return fmt.Errorf("failed to index token %q: %w", token, err)
		}
	}
	for _, trigram := range trigrams {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO food_trigrams (trigram, food_id) VALUES (?, ?)`, trigram, product.ID); err != nil {
			return fmt.Errorf("failed to index trigram: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product update: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.CanonicalProduct, error) {
	return scanProductExtra(row)
}

// scanProductExtra scans the productColumns select list plus any
// trailing expression columns into extra.
func scanProductExtra(row rowScanner, extra ...any) (*domain.CanonicalProduct, error) {
	var (
		p         domain.CanonicalProduct
		barcode   sql.NullString
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	dest := []any{
		&p.ID, &p.Name, &p.Manufacturer, &barcode, &p.ServingSize,
		&p.Nutrition.Calories, &p.Nutrition.Protein, &p.Nutrition.Fat,
		&p.Nutrition.Carbohydrate, &p.Nutrition.Sugar, &p.Nutrition.Sodium,
		&createdAt, &updatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	p.Barcode = barcode.String
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	p.Normalize()
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]domain.CanonicalProduct, error) {
	var out []domain.CanonicalProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

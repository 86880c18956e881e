package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/coffee-shop/models"
	"github.com/upb/coffee-shop/repositories"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations
const uniqueViolation = "23505"

// DrinkRepository implements repositories.DrinkRepository
type DrinkRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDrinkRepository creates a new drink repository
func NewDrinkRepository(db *DB, logger *zap.Logger) *DrinkRepository {
	return &DrinkRepository{
		db:     db,
		logger: logger,
	}
}

// List returns every drink ordered by ID
func (r *DrinkRepository) List(ctx context.Context) ([]*models.Drink, error) {
	query := `SELECT id, title, recipe FROM drinks ORDER BY id`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list drinks: %w", err)
	}
	defer rows.Close()

	drinks := make([]*models.Drink, 0)
	for rows.Next() {
		drink := &models.Drink{}
		if err := rows.Scan(&drink.ID, &drink.Title, &drink.Recipe); err != nil {
			return nil, fmt.Errorf("failed to scan drink: %w", err)
		}
		drinks = append(drinks, drink)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating drink rows: %w", err)
	}

	return drinks, nil
}

// GetByID retrieves a drink by ID
func (r *DrinkRepository) GetByID(ctx context.Context, id int64) (*models.Drink, error) {
	query := `SELECT id, title, recipe FROM drinks WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *DrinkRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Drink, error) {
	drink := &models.Drink{}
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, arg).Scan(
		&drink.ID,
		&drink.Title,
		&drink.Recipe,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: drink %v", repositories.ErrNotFound, arg)
		}
		return nil, fmt.Errorf("failed to get drink: %w", err)
	}

	return drink, nil
}

// Create inserts a drink and sets its generated ID
func (r *DrinkRepository) Create(ctx context.Context, drink *models.Drink) error {
	query := `
		INSERT INTO drinks (title, recipe)
		VALUES ($1, $2)
		RETURNING id
	`

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, drink.Title, drink.Recipe).Scan(&drink.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: drink title %q", repositories.ErrDuplicate, drink.Title)
		}
		return fmt.Errorf("failed to create drink: %w", err)
	}

	r.logger.Debug("drink created", zap.Int64("id", drink.ID), zap.String("title", drink.Title))
	return nil
}

// Update overwrites the title and recipe of an existing drink
func (r *DrinkRepository) Update(ctx context.Context, drink *models.Drink) error {
	query := `
		UPDATE drinks
		SET title = $2,
		    recipe = $3
		WHERE id = $1
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, drink.ID, drink.Title, drink.Recipe)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: drink title %q", repositories.ErrDuplicate, drink.Title)
		}
		return fmt.Errorf("failed to update drink: %w", err)
	}

	if err := requireRowsAffected(result, drink.ID); err != nil {
		return err
	}

	r.logger.Debug("drink updated", zap.Int64("id", drink.ID))
	return nil
}

// Delete removes a drink by ID
func (r *DrinkRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM drinks WHERE id = $1`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete drink: %w", err)
	}

	if err := requireRowsAffected(result, id); err != nil {
		return err
	}

	r.logger.Debug("drink deleted", zap.Int64("id", id))
	return nil
}

func requireRowsAffected(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: drink %d", repositories.ErrNotFound, id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

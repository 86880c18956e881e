package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/coffee-shop/models"
	"github.com/upb/coffee-shop/repositories"
)

// CreateDrinkInput is the data needed to add a drink to the menu
type CreateDrinkInput struct {
	Title  string
	Recipe models.Recipe
}

// UpdateDrinkInput is a partial update. Nil fields are left unchanged.
type UpdateDrinkInput struct {
	Title  *string
	Recipe models.Recipe
}

// IsEmpty reports whether the update changes nothing
func (in UpdateDrinkInput) IsEmpty() bool {
	return in.Title == nil && in.Recipe == nil
}

// DrinkService implements the menu operations on top of the drink repository
type DrinkService struct {
	drinks repositories.DrinkRepository
	txMgr  repositories.TransactionManager
	logger *zap.Logger
}

// NewDrinkService creates a new drink service
func NewDrinkService(drinks repositories.DrinkRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *DrinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DrinkService{
		drinks: drinks,
		txMgr:  txMgr,
		logger: logger,
	}
}

// ListShort returns every drink in its public representation
func (s *DrinkService) ListShort(ctx context.Context) ([]models.DrinkShort, error) {
	drinks, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	short := make([]models.DrinkShort, 0, len(drinks))
	for _, drink := range drinks {
		short = append(short, drink.Short())
	}
	return short, nil
}

// ListLong returns every drink including ingredient names
func (s *DrinkService) ListLong(ctx context.Context) ([]*models.Drink, error) {
	drinks, err := s.list(ctx)
	if err != nil {
		return nil, err
	}

	long := make([]*models.Drink, 0, len(drinks))
	for _, drink := range drinks {
		long = append(long, drink.Long())
	}
	return long, nil
}

func (s *DrinkService) list(ctx context.Context) ([]*models.Drink, error) {
	drinks, err := s.drinks.List(ctx)
	if err != nil {
		s.logger.Error("failed to list drinks", zap.Error(err))
		return nil, ErrDatabaseError.Wrap(err)
	}
	return drinks, nil
}

// Create validates and stores a new drink
func (s *DrinkService) Create(ctx context.Context, input CreateDrinkInput) (*models.Drink, error) {
	drink := models.NewDrink(input.Title, input.Recipe)
	if err := drink.Validate(); err != nil {
		return nil, ErrInvalidDrinkData.Wrap(err)
	}

	if err := s.drinks.Create(ctx, drink); err != nil {
		return nil, s.mapRepositoryError(err, "create", zap.String("title", drink.Title))
	}

	s.logger.Info("drink created",
		zap.Int64("drink_id", drink.ID),
		zap.String("title", drink.Title),
	)
	return drink, nil
}

// Update applies a partial update to an existing drink
func (s *DrinkService) Update(ctx context.Context, id int64, input UpdateDrinkInput) (*models.Drink, error) {
	if input.IsEmpty() {
		return nil, ErrNothingToUpdate
	}

	return WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) (*models.Drink, error) {
		drink, err := s.drinks.GetByID(ctx, id)
		if err != nil {
			return nil, s.mapRepositoryError(err, "load", zap.Int64("drink_id", id))
		}

		if input.Title != nil {
			drink.Title = strings.TrimSpace(*input.Title)
		}
		if input.Recipe != nil {
			drink.Recipe = input.Recipe
		}

		if err := drink.Validate(); err != nil {
			return nil, ErrInvalidDrinkData.Wrap(err)
		}

		if err := s.drinks.Update(ctx, drink); err != nil {
			return nil, s.mapRepositoryError(err, "update", zap.Int64("drink_id", id))
		}

		s.logger.Info("drink updated", zap.Int64("drink_id", id))
		return drink, nil
	})
}

// Delete removes a drink and returns its id
func (s *DrinkService) Delete(ctx context.Context, id int64) (int64, error) {
	if err := s.drinks.Delete(ctx, id); err != nil {
		return 0, s.mapRepositoryError(err, "delete", zap.Int64("drink_id", id))
	}

	s.logger.Info("drink deleted", zap.Int64("drink_id", id))
	return id, nil
}

func (s *DrinkService) mapRepositoryError(err error, op string, fields ...zap.Field) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return ErrDrinkNotFound.Wrap(err)
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrDuplicateTitle.Wrap(err)
	default:
		s.logger.Error("drink "+op+" failed", append(fields, zap.Error(err))...)
		return ErrDatabaseError.Wrap(err)
	}
}

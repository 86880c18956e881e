package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/coffee-shop/models"
	"github.com/upb/coffee-shop/repositories"
)

// MockDrinkRepository is a mock implementation of DrinkRepository
type MockDrinkRepository struct {
	mock.Mock
}

func (m *MockDrinkRepository) List(ctx context.Context) ([]*models.Drink, error) {
	args := m.Called(ctx)
	if drinks := args.Get(0); drinks != nil {
		return drinks.([]*models.Drink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDrinkRepository) GetByID(ctx context.Context, id int64) (*models.Drink, error) {
	args := m.Called(ctx, id)
	if drink := args.Get(0); drink != nil {
		return drink.(*models.Drink), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDrinkRepository) Create(ctx context.Context, drink *models.Drink) error {
	return m.Called(ctx, drink).Error(0)
}

func (m *MockDrinkRepository) Update(ctx context.Context, drink *models.Drink) error {
	return m.Called(ctx, drink).Error(0)
}

func (m *MockDrinkRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func blueWater() models.Recipe {
	return models.Recipe{{Name: "water", Color: "blue", Parts: 1}}
}

func newDrinkServiceFixture(t *testing.T) (*DrinkService, *MockDrinkRepository, *MockTransactionManager) {
	repo := new(MockDrinkRepository)
	txMgr := new(MockTransactionManager)
	return NewDrinkService(repo, txMgr, zaptest.NewLogger(t)), repo, txMgr
}

func expectTransaction(txMgr *MockTransactionManager, ctx context.Context, committed bool) *MockTransaction {
	tx := newMockTransaction(ctx)
	txMgr.On("Begin", ctx).Return(tx, nil)
	if committed {
		tx.On("Commit").Return(nil)
	} else {
		tx.On("Rollback").Return(nil)
	}
	return tx
}

func TestDrinkService_ListShort(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("List", ctx).Return([]*models.Drink{
		{ID: 1, Title: "water", Recipe: blueWater()},
		{ID: 2, Title: "latte", Recipe: models.Recipe{
			{Name: "espresso", Color: "brown", Parts: 1},
			{Name: "milk", Color: "white", Parts: 3},
		}},
	}, nil)

	drinks, err := svc.ListShort(ctx)
	require.NoError(t, err)
	require.Len(t, drinks, 2)
	assert.Equal(t, "latte", drinks[1].Title)
	assert.Equal(t, []models.ShortIngredient{{Color: "brown", Parts: 1}, {Color: "white", Parts: 3}}, drinks[1].Recipe)
	repo.AssertExpectations(t)
}

func TestDrinkService_ListLong(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("List", ctx).Return([]*models.Drink{{ID: 1, Title: "water", Recipe: blueWater()}}, nil)

	drinks, err := svc.ListLong(ctx)
	require.NoError(t, err)
	require.Len(t, drinks, 1)
	assert.Equal(t, "water", drinks[0].Recipe[0].Name)
}

func TestDrinkService_ListEmpty(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("List", ctx).Return([]*models.Drink{}, nil)

	short, err := svc.ListShort(ctx)
	require.NoError(t, err)
	assert.NotNil(t, short)
	assert.Empty(t, short)
}

func TestDrinkService_ListDatabaseError(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("List", ctx).Return(nil, errors.New("connection refused"))

	_, err := svc.ListLong(ctx)
	assert.ErrorIs(t, err, ErrDatabaseError)
	assert.True(t, IsInternalError(err))
}

func TestDrinkService_Create(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(d *models.Drink) bool {
		return d.Title == "water"
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.Drink).ID = 5
	}).Return(nil)

	drink, err := svc.Create(ctx, CreateDrinkInput{Title: "  water ", Recipe: blueWater()})
	require.NoError(t, err)
	assert.Equal(t, int64(5), drink.ID)
	assert.Equal(t, "water", drink.Title)
	repo.AssertExpectations(t)
}

func TestDrinkService_CreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateDrinkInput
	}{
		{"blank title", CreateDrinkInput{Title: "   ", Recipe: blueWater()}},
		{"no recipe", CreateDrinkInput{Title: "water"}},
		{"zero parts", CreateDrinkInput{Title: "water", Recipe: models.Recipe{{Name: "water", Color: "blue"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newDrinkServiceFixture(t)

			_, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrInvalidDrinkData)
			assert.ErrorIs(t, err, models.ErrInvalidDrink)
			assert.True(t, IsValidationError(err))
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestDrinkService_CreateDuplicate(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(repositories.ErrDuplicate)

	_, err := svc.Create(ctx, CreateDrinkInput{Title: "water", Recipe: blueWater()})
	assert.ErrorIs(t, err, ErrDuplicateTitle)
	assert.True(t, IsConflictError(err))
}

func TestDrinkService_UpdateTitleOnly(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)
	ctx := context.Background()
	tx := expectTransaction(txMgr, ctx, true)

	repo.On("GetByID", tx.Context(), int64(1)).Return(&models.Drink{ID: 1, Title: "water", Recipe: blueWater()}, nil)
	repo.On("Update", tx.Context(), mock.MatchedBy(func(d *models.Drink) bool {
		return d.Title == "sparkling water" && d.Recipe[0].Name == "water"
	})).Return(nil)

	title := " sparkling water "
	drink, err := svc.Update(ctx, 1, UpdateDrinkInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "sparkling water", drink.Title)
	assert.Equal(t, blueWater(), drink.Recipe)
	assert.True(t, tx.committed)
	repo.AssertExpectations(t)
}

func TestDrinkService_UpdateRecipeOnly(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)
	ctx := context.Background()
	tx := expectTransaction(txMgr, ctx, true)

	recipe := models.Recipe{{Name: "matcha", Color: "green", Parts: 2}}
	repo.On("GetByID", tx.Context(), int64(1)).Return(&models.Drink{ID: 1, Title: "water", Recipe: blueWater()}, nil)
	repo.On("Update", tx.Context(), mock.Anything).Return(nil)

	drink, err := svc.Update(ctx, 1, UpdateDrinkInput{Recipe: recipe})
	require.NoError(t, err)
	assert.Equal(t, "water", drink.Title)
	assert.Equal(t, recipe, drink.Recipe)
}

func TestDrinkService_UpdateNothing(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)

	_, err := svc.Update(context.Background(), 1, UpdateDrinkInput{})
	assert.ErrorIs(t, err, ErrNothingToUpdate)
	txMgr.AssertNotCalled(t, "Begin", mock.Anything)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestDrinkService_UpdateNotFound(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)
	ctx := context.Background()
	tx := expectTransaction(txMgr, ctx, false)

	repo.On("GetByID", tx.Context(), int64(99)).Return(nil, repositories.ErrNotFound)

	title := "latte"
	_, err := svc.Update(ctx, 99, UpdateDrinkInput{Title: &title})
	assert.ErrorIs(t, err, ErrDrinkNotFound)
	assert.True(t, IsNotFoundError(err))
	assert.True(t, tx.rolledback)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDrinkService_UpdateInvalid(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)
	ctx := context.Background()
	tx := expectTransaction(txMgr, ctx, false)

	repo.On("GetByID", tx.Context(), int64(1)).Return(&models.Drink{ID: 1, Title: "water", Recipe: blueWater()}, nil)

	blank := ""
	_, err := svc.Update(ctx, 1, UpdateDrinkInput{Title: &blank})
	assert.ErrorIs(t, err, ErrInvalidDrinkData)
	assert.True(t, tx.rolledback)
}

func TestDrinkService_UpdateDuplicateTitle(t *testing.T) {
	svc, repo, txMgr := newDrinkServiceFixture(t)
	ctx := context.Background()
	tx := expectTransaction(txMgr, ctx, false)

	repo.On("GetByID", tx.Context(), int64(2)).Return(&models.Drink{ID: 2, Title: "latte", Recipe: blueWater()}, nil)
	repo.On("Update", tx.Context(), mock.Anything).Return(repositories.ErrDuplicate)

	title := "water"
	_, err := svc.Update(ctx, 2, UpdateDrinkInput{Title: &title})
	assert.ErrorIs(t, err, ErrDuplicateTitle)
}

func TestDrinkService_Delete(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("Delete", ctx, int64(3)).Return(nil)

	id, err := svc.Delete(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestDrinkService_DeleteNotFound(t *testing.T) {
	svc, repo, _ := newDrinkServiceFixture(t)
	ctx := context.Background()

	repo.On("Delete", ctx, int64(3)).Return(repositories.ErrNotFound)

	id, err := svc.Delete(ctx, 3)
	assert.Zero(t, id)
	assert.ErrorIs(t, err, ErrDrinkNotFound)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/coffee-shop/auth"
	"github.com/upb/coffee-shop/middleware"
	"github.com/upb/coffee-shop/models"
	"github.com/upb/coffee-shop/services"
	"github.com/upb/coffee-shop/utils"
)

// DrinkService is the subset of services.DrinkService used by the handlers
type DrinkService interface {
	ListShort(ctx context.Context) ([]models.DrinkShort, error)
	ListLong(ctx context.Context) ([]*models.Drink, error)
	Create(ctx context.Context, input services.CreateDrinkInput) (*models.Drink, error)
	Update(ctx context.Context, id int64, input services.UpdateDrinkInput) (*models.Drink, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// DrinksResponse is the body of every endpoint returning drinks
type DrinksResponse struct {
	Success bool        `json:"success"`
	Drinks  interface{} `json:"drinks"`
}

// DeleteResponse is the body of DELETE /drinks/{id}
type DeleteResponse struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}

// CreateDrinkRequest is the body of POST /drinks
type CreateDrinkRequest struct {
	Title  string        `json:"title" validate:"required,notblank,max=80"`
	Recipe models.Recipe `json:"recipe" validate:"required,min=1,dive"`
}

// UpdateDrinkRequest is the body of PATCH /drinks/{id}. Omitted fields are kept.
type UpdateDrinkRequest struct {
	Title  *string       `json:"title" validate:"omitempty,notblank,max=80"`
	Recipe models.Recipe `json:"recipe" validate:"omitempty,min=1,dive"`
}

// DrinkHandler serves the drink menu
type DrinkHandler struct {
	drinks DrinkService
	logger *zap.Logger
}

// NewDrinkHandler creates a new DrinkHandler
func NewDrinkHandler(drinks DrinkService, logger *zap.Logger) *DrinkHandler {
	return &DrinkHandler{
		drinks: drinks,
		logger: logger,
	}
}

// HandleListDrinks handles GET /drinks
// Public endpoint returning the short representation
func (h *DrinkHandler) HandleListDrinks(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.drinks.ListShort(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.writeDrinks(w, drinks)
}

// HandleListDrinkDetails handles GET /drinks-detail. It is mounted behind
// AuthGuard.RequirePermission, which leaves the verified claims in the context.
func (h *DrinkHandler) HandleListDrinkDetails(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.drinks.ListLong(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil {
		h.logger.Debug("drink details listed", zap.String("subject", claims.Subject))
	}
	h.writeDrinks(w, drinks)
}

// HandleCreateDrink handles POST /drinks
func (h *DrinkHandler) HandleCreateDrink(claims *auth.Claims, w http.ResponseWriter, r *http.Request) {
	var req CreateDrinkRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	drink, err := h.drinks.Create(r.Context(), services.CreateDrinkInput{
		Title:  req.Title,
		Recipe: req.Recipe,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Debug("drink created",
		zap.String("subject", claims.Subject),
		zap.Int64("drink_id", drink.ID))
	h.writeDrinks(w, []*models.Drink{drink})
}

// HandleUpdateDrink handles PATCH /drinks/{id}
func (h *DrinkHandler) HandleUpdateDrink(claims *auth.Claims, w http.ResponseWriter, r *http.Request) {
	id, ok := h.drinkID(w, r)
	if !ok {
		return
	}

	var req UpdateDrinkRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		HandleDecodeError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	drink, err := h.drinks.Update(r.Context(), id, services.UpdateDrinkInput{
		Title:  req.Title,
		Recipe: req.Recipe,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.writeDrinks(w, []*models.Drink{drink})
}

// HandleDeleteDrink handles DELETE /drinks/{id}
func (h *DrinkHandler) HandleDeleteDrink(claims *auth.Claims, w http.ResponseWriter, r *http.Request) {
	id, ok := h.drinkID(w, r)
	if !ok {
		return
	}

	deleted, err := h.drinks.Delete(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteJSON(w, http.StatusOK, DeleteResponse{Success: true, Delete: deleted}); err != nil {
		h.logger.Error("failed to write delete response", zap.Error(err))
	}
}

func (h *DrinkHandler) drinkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := utils.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		// an id that is not a positive integer cannot name a drink
		if writeErr := utils.WriteNotFound(w, "resource not found"); writeErr != nil {
			h.logger.Error("failed to write not found response", zap.Error(writeErr))
		}
		return 0, false
	}
	return id, true
}

func (h *DrinkHandler) writeDrinks(w http.ResponseWriter, drinks interface{}) {
	if err := utils.WriteJSON(w, http.StatusOK, DrinksResponse{Success: true, Drinks: drinks}); err != nil {
		h.logger.Error("failed to write drinks response", zap.Error(err))
	}
}

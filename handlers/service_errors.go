package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/coffee-shop/models"
	"github.com/upb/coffee-shop/services"
	"github.com/upb/coffee-shop/utils"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, domainMessage(err))

	case services.IsValidationError(err):
		if details == nil {
			details = validationDetails(err)
		}
		writeErr = utils.WriteUnprocessable(w, domainMessage(err), details)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, domainMessage(err), details)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleDecodeError answers a request whose body could not be read as JSON
func HandleDecodeError(w http.ResponseWriter, err error, logger *zap.Logger) {
	message := "Invalid JSON body"
	if errors.Is(err, utils.ErrEmptyBody) {
		message = "Request body is required"
	}
	if writeErr := utils.WriteBadRequest(w, message, nil); writeErr != nil {
		logger.Error("failed to write bad request response", zap.Error(writeErr))
	}
}

// HandleValidationError answers a request whose body failed struct validation
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if writeErr := utils.WriteUnprocessable(w, "unprocessable", validationDetails(err)); writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}

func validationDetails(err error) map[string]interface{} {
	if utils.IsValidationError(err) {
		return utils.FieldsAsDetails(utils.GetValidationFields(err))
	}
	if errors.Is(err, models.ErrInvalidDrink) {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) && domainErr.Err != nil {
			return map[string]interface{}{"reason": domainErr.Err.Error()}
		}
	}
	return nil
}

func domainMessage(err error) string {
	var domainErr *services.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}

package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkops/daypass/internal/booking"
	"github.com/parkops/daypass/internal/captcha"
	"github.com/parkops/daypass/internal/repository"
	"github.com/parkops/daypass/internal/utils"
)

// writeError maps engine and repository errors onto HTTP responses.
// The body carries a stable error code so clients can distinguish
// "sold out" (capacity_exceeded) from "try again" (facility_busy)
// without parsing messages.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity_exceeded"})
	case errors.Is(err, repository.ErrBusy):
		return c.JSON(http.StatusConflict, echo.Map{"error": "facility_busy"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition"})
	case errors.Is(err, repository.ErrNegativeCapacity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "negative_capacity"})
	case errors.Is(err, repository.ErrParkNotFound),
		errors.Is(err, repository.ErrFacilityNotFound),
		errors.Is(err, repository.ErrRecordNotFound),
		errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrPassNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, utils.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_hold_token"})
	case errors.Is(err, captcha.ErrProofInvalid), errors.Is(err, captcha.ErrProofUsed):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidGuestCount),
		errors.Is(err, booking.ErrInvalidModifier),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, booking.ErrInvalidSlots):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parkops/daypass/internal/booking"
	"github.com/parkops/daypass/internal/model"
)

// AdminHandler exposes operator-only operations: live capacity
// adjustments, slot shape changes and facility status toggles. Routes
// using this handler sit behind JWT auth and the PARK_OPERATOR role.
type AdminHandler struct {
	Engine *booking.Engine
}

// NewAdminHandler constructs an AdminHandler. The engine must be non-nil.
func NewAdminHandler(engine *booking.Engine) *AdminHandler {
	if engine == nil {
		panic("nil engine passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: engine}
}

// ApplyCapacityModifier handles POST /v1/admin/capacity. The signed
// change is applied to one slot's capacity modifier through the same
// guarded ledger path as bookings, without taking the facility lock.
// Shrinking below what is already consumed yields 400 with
// negative_capacity and leaves the state untouched.
func (h *AdminHandler) ApplyCapacityModifier(c echo.Context) error {
	var body struct {
		ParkID       string `json:"park_id"`
		FacilityName string `json:"facility_name"`
		Date         string `json:"date"`
		SlotCode     string `json:"slot_code"`
		Change       int    `json:"change"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ParkID == "" || body.FacilityName == "" || body.Date == "" || body.SlotCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "park_id, facility_name, date and slot_code are required"})
	}
	state, err := h.Engine.ApplyCapacityModifier(c.Request().Context(),
		body.ParkID, body.FacilityName, body.Date, body.SlotCode, body.Change)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"slot_code":         state.Code,
		"base_capacity":     state.BaseCapacity,
		"capacity_modifier": state.CapacityModifier,
		"available_passes":  state.AvailablePasses,
	})
}

// UpdateSlots handles PUT /v1/admin/facilities/:park/:facility/slots.
// The facility lock serializes shape changes; a concurrent admin edit
// yields 409 with facility_busy and the caller should retry later.
func (h *AdminHandler) UpdateSlots(c echo.Context) error {
	parkID := c.Param("park")
	facility := c.Param("facility")
	var body struct {
		Slots []struct {
			Code        string `json:"code"`
			MaxCapacity int    `json:"max_capacity"`
		} `json:"slots"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	slots := make([]model.SlotConfig, 0, len(body.Slots))
	for i, s := range body.Slots {
		slots = append(slots, model.SlotConfig{Code: s.Code, MaxCapacity: s.MaxCapacity, Position: i})
	}
	fac, err := h.Engine.UpdateFacilitySlots(c.Request().Context(), parkID, facility, slots)
	if err != nil {
		return writeError(c, err)
	}
	out := make([]echo.Map, 0, len(fac.Slots))
	for _, s := range fac.Slots {
		out = append(out, echo.Map{"code": s.Code, "max_capacity": s.MaxCapacity})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"park_id":       fac.ParkID,
		"facility_name": fac.Name,
		"slots":         out,
	})
}

// SetFacilityStatus handles PUT /v1/admin/facilities/:park/:facility/status.
// Only "open" and "closed" are accepted. Records already derived keep
// their frozen passes_required value; the toggle affects future dates.
func (h *AdminHandler) SetFacilityStatus(c echo.Context) error {
	parkID := c.Param("park")
	facility := c.Param("facility")
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Engine.SetFacilityStatus(c.Request().Context(), parkID, facility, body.Status); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"park_id":       parkID,
		"facility_name": facility,
		"status":        body.Status,
	})
}

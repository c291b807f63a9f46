package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/parkops/daypass/internal/booking"
	"github.com/parkops/daypass/internal/model"
)

// BookingHandler exposes the public reservation operations backed by
// the booking engine. Captcha and rate limiting are enforced before
// these handlers run; capacity correctness does not rely on either.
type BookingHandler struct {
	Engine *booking.Engine
}

// NewBookingHandler constructs a BookingHandler. The engine must be non-nil.
func NewBookingHandler(engine *booking.Engine) *BookingHandler {
	if engine == nil {
		panic("nil engine passed to NewBookingHandler")
	}
	return &BookingHandler{Engine: engine}
}

// passView is the JSON shape returned for a pass, audit trail included.
type passView struct {
	ParkID             string      `json:"park_id"`
	RegistrationNumber string      `json:"registration_number"`
	FacilityName       string      `json:"facility_name"`
	Date               string      `json:"date"`
	SlotCode           string      `json:"slot_code"`
	GuestCount         int         `json:"guest_count"`
	Status             string      `json:"status"`
	HoldExpiresAt      *string     `json:"hold_expires_at,omitempty"`
	Audit              []auditView `json:"audit"`
}

type auditView struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	At     string `json:"at"`
}

func toPassView(p *model.Pass) passView {
	v := passView{
		ParkID:             p.ParkID,
		RegistrationNumber: p.RegistrationNumber,
		FacilityName:       p.FacilityName,
		Date:               p.Date,
		SlotCode:           p.SlotCode,
		GuestCount:         p.GuestCount,
		Status:             p.Status,
		Audit:              make([]auditView, 0, len(p.Audit)),
	}
	if p.HoldExpiresAt != nil {
		iso := p.HoldExpiresAt.UTC().Format(time.RFC3339)
		v.HoldExpiresAt = &iso
	}
	for _, e := range p.Audit {
		v.Audit = append(v.Audit, auditView{
			Status: e.Status,
			Actor:  e.Actor,
			At:     e.At.UTC().Format(time.RFC3339),
		})
	}
	return v
}

// Availability handles GET /v1/parks/:park/facilities/:facility/availability.
// It returns the capacity state for the requested date without creating
// the reservation record, so browsing never allocates state.
func (h *BookingHandler) Availability(c echo.Context) error {
	parkID := c.Param("park")
	facility := c.Param("facility")
	date := c.QueryParam("date")
	if parkID == "" || facility == "" || date == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "park, facility and date are required"})
	}
	rec, err := h.Engine.Availability(c.Request().Context(), parkID, facility, date)
	if err != nil {
		return writeError(c, err)
	}
	slots := make([]echo.Map, 0, len(rec.Slots))
	for _, s := range rec.Slots {
		slots = append(slots, echo.Map{
			"slot_code":        s.Code,
			"capacity":         s.BaseCapacity + s.CapacityModifier,
			"available_passes": s.AvailablePasses,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"park_id":         rec.ParkID,
		"facility_name":   rec.FacilityName,
		"date":            rec.Date,
		"passes_required": rec.PassesRequired,
		"slots":           slots,
	})
}

// CreateHold handles POST /v1/passes/hold. The request body carries the
// booking target, guest count and the challenge-response proof. On
// success it returns 201 with the hold token and expiry; when the slot
// is full it returns 409 with capacity_exceeded.
func (h *BookingHandler) CreateHold(c echo.Context) error {
	var body struct {
		ParkID       string `json:"park_id"`
		FacilityName string `json:"facility_name"`
		Date         string `json:"date"`
		SlotCode     string `json:"slot_code"`
		GuestCount   int    `json:"guest_count"`
		Proof        string `json:"proof"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ParkID == "" || body.FacilityName == "" || body.Date == "" || body.SlotCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "park_id, facility_name, date and slot_code are required"})
	}
	res, err := h.Engine.CreateHold(c.Request().Context(), booking.HoldRequest{
		ParkID:       body.ParkID,
		FacilityName: body.FacilityName,
		Date:         body.Date,
		SlotCode:     body.SlotCode,
		GuestCount:   body.GuestCount,
		Proof:        body.Proof,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"pass":       toPassView(res.Pass),
		"hold_token": res.Token.Token,
		"expires_at": res.Token.Exp.UTC().Format(time.RFC3339),
	})
}

// CommitHold handles POST /v1/passes/commit. The body carries only the
// hold token; the token encodes the pass key. An expired or forged
// token yields 401, a hold already resolved by another actor yields
// 409 with invalid_transition.
func (h *BookingHandler) CommitHold(c echo.Context) error {
	var body struct {
		HoldToken string `json:"hold_token"`
	}
	if err := c.Bind(&body); err != nil || body.HoldToken == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hold_token is required"})
	}
	pass, err := h.Engine.CommitHold(c.Request().Context(), body.HoldToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pass": toPassView(pass)})
}

// CancelPass handles POST /v1/passes/cancel. A pass in hold or
// reserved state is cancelled and its capacity released; cancelling an
// already-terminal pass yields 409.
func (h *BookingHandler) CancelPass(c echo.Context) error {
	var body struct {
		ParkID             string `json:"park_id"`
		RegistrationNumber string `json:"registration_number"`
	}
	if err := c.Bind(&body); err != nil || body.ParkID == "" || body.RegistrationNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "park_id and registration_number are required"})
	}
	pass, err := h.Engine.CancelPass(c.Request().Context(), body.ParkID, body.RegistrationNumber, model.ActorUser)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pass": toPassView(pass)})
}

// GetPass handles GET /v1/passes/:park/:reg. It returns the pass with
// its full audit trail.
func (h *BookingHandler) GetPass(c echo.Context) error {
	parkID := c.Param("park")
	registration := c.Param("reg")
	if parkID == "" || registration == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid pass key"})
	}
	pass, err := h.Engine.GetPass(c.Request().Context(), parkID, registration)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pass": toPassView(pass)})
}

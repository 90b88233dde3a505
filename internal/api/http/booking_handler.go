package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/service"
)

type BookingHandler struct {
	svc      service.BookingService
	validate *validator.Validate
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	return &BookingHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

type createBookingRequest struct {
	ProviderCompanyID int32     `json:"provider_company_id" validate:"required"`
	VehicleListingID  *int32    `json:"vehicle_listing_id"`
	DriverListingID   *int32    `json:"driver_listing_id"`
	StartDate         time.Time `json:"start_date" validate:"required"`
	EndDate           time.Time `json:"end_date" validate:"required"`
	ProviderRateCents int64     `json:"provider_rate_cents" validate:"gte=0"`
}

type declineRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type proposeTermsRequest struct {
	StartDate         *time.Time `json:"start_date"`
	EndDate           *time.Time `json:"end_date"`
	ProviderRateCents *int64     `json:"provider_rate_cents" validate:"omitempty,gte=0"`
}

type disputeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type resolveRequest struct {
	Target string `json:"target" validate:"required,oneof=ACTIVE CANCELLED CLOSED"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	var req createBookingRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.svc.Create(r.Context(), service.CreateBookingRequest{
		RenterCompanyID:   identity.CompanyID,
		ProviderCompanyID: req.ProviderCompanyID,
		VehicleListingID:  req.VehicleListingID,
		DriverListingID:   req.DriverListingID,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		ProviderRateCents: req.ProviderRateCents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	status := r.URL.Query().Get("status")
	page := queryInt32(r, "page", 1)
	pageSize := queryInt32(r, "page_size", 20)

	bookings, total, err := h.svc.List(r.Context(), identity.CompanyID, status, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"total":    total,
	})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.svc.Get(r.Context(), id, identity.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Accept(r.Context(), id, actor)
	})
}

func (h *BookingHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req declineRequest
	if err := h.decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Decline(r.Context(), id, actor, req.Reason)
	})
}

func (h *BookingHandler) ProposeTerms(w http.ResponseWriter, r *http.Request) {
	var req proposeTermsRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.ProposeTerms(r.Context(), id, actor, domain.TermsProposal{
			ProposedBy:        actor,
			StartDate:         req.StartDate,
			EndDate:           req.EndDate,
			ProviderRateCents: req.ProviderRateCents,
		})
	})
}

func (h *BookingHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Activate(r.Context(), id, actor)
	})
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Complete(r.Context(), id, actor)
	})
}

func (h *BookingHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Close(r.Context(), id, actor)
	})
}

func (h *BookingHandler) Dispute(w http.ResponseWriter, r *http.Request) {
	var req disputeRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.respond(w, r, func(id, actor int32) (*domain.Booking, error) {
		return h.svc.Dispute(r.Context(), id, actor, req.Reason)
	})
}

func (h *BookingHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	identity := IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req resolveRequest
	if err := h.decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	booking, err := h.svc.Resolve(r.Context(), id, identity, domain.BookingStatus(req.Target))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// respond runs a booking operation for the authenticated actor and writes
// the standard result.
func (h *BookingHandler) respond(w http.ResponseWriter, r *http.Request, op func(id, actor int32) (*domain.Booking, error)) {
	identity := IdentityFromContext(r.Context())
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	booking, err := op(id, identity.CompanyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// decode parses and validates a required JSON body.
func (h *BookingHandler) decode(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("malformed request body: %w", apperrors.ErrValidation)
	}
	if err := h.validate.Struct(dest); err != nil {
		return fmt.Errorf("%v: %w", err, apperrors.ErrValidation)
	}
	return nil
}

// decodeOptional tolerates an empty body.
func (h *BookingHandler) decodeOptional(r *http.Request, dest interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return h.decode(r, dest)
}

func pathID(r *http.Request) (int32, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid booking id %q: %w", raw, apperrors.ErrValidation)
	}
	return int32(id), nil
}

func queryInt32(r *http.Request, key string, fallback int32) int32 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || v < 1 {
		return fallback
	}
	return int32(v)
}

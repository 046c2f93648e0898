/*
handlers.go - HTTP API handlers for the reservation engine

PURPOSE:
  Exposes the admission controller via REST. Handles HTTP
  request/response, JSON serialization, and delegates every decision to
  the engine.

ENDPOINTS:
  Resources:
    GET    /api/resources                     List catalog
    POST   /api/resources                     Create/update resource (admin)
    GET    /api/resources/{id}                Get resource
    GET    /api/resources/{id}/availability   Advisory availability check

  Reservations:
    POST   /api/reservations                  Create bundle
    GET    /api/reservations                  List all (admin, ?status=)
    GET    /api/reservations/mine             List own
    GET    /api/reservations/{id}             Get (owner or admin)
    POST   /api/reservations/{id}/approve     Approve (admin)
    POST   /api/reservations/{id}/reject      Reject (admin)
    POST   /api/reservations/{id}/cancel      Cancel (owner/admin)
    POST   /api/reservations/{id}/return      Mark returned (admin)

IDENTITY:
  Authentication is a collaborator concern. The handlers read the opaque
  actor from X-Actor-ID / X-Actor-Admin headers, which an auth proxy or
  middleware is expected to set after verifying credentials.

ERROR HANDLING:
  Engine error kinds map to HTTP status:
  - 400: validation failures
  - 403: not authorized
  - 404: unknown resource/reservation
  - 409: capacity exceeded, invalid transition
  - 503: transient storage failure (retryable)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atelier/reservation-engine/reservation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Controller *reservation.Controller
	Resources  reservation.ResourceStore
}

// NewHandler creates a new handler around the admission controller.
func NewHandler(controller *reservation.Controller, resources reservation.ResourceStore) *Handler {
	return &Handler{Controller: controller, Resources: resources}
}

// actorFrom extracts the opaque actor reference set by the auth layer.
func actorFrom(r *http.Request) reservation.ActorRef {
	return reservation.ActorRef{
		ID:      r.Header.Get("X-Actor-ID"),
		IsAdmin: r.Header.Get("X-Actor-Admin") == "true",
	}
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.Resources.ListResources(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ResourceDTO, 0, len(resources))
	for _, res := range resources {
		out = append(out, toResourceDTO(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id := reservation.ResourceID(chi.URLParam(r, "id"))
	res, err := h.Resources.GetResource(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if res == nil {
		writeError(w, &reservation.NotFoundError{Kind: "resource", ID: string(id)})
		return
	}
	writeJSON(w, http.StatusOK, toResourceDTO(*res))
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.IsAdmin {
		writeError(w, reservation.ErrNotAuthorized)
		return
	}

	var req CreateResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reservation.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, &reservation.ValidationError{Field: "resource", Message: "id and name are required"})
		return
	}
	if req.Capacity < 1 {
		writeError(w, &reservation.ValidationError{Field: "capacity", Message: "must be at least 1"})
		return
	}

	price := decimal.Zero
	if req.PricePerDay != "" {
		parsed, err := decimal.NewFromString(req.PricePerDay)
		if err != nil {
			writeError(w, &reservation.ValidationError{Field: "pricePerDay", Message: "must be a decimal number"})
			return
		}
		price = parsed
	}

	kind := reservation.ResourceKind(req.Kind)
	if kind == "" {
		kind = reservation.KindRental
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	res := reservation.Resource{
		ID:          reservation.ResourceID(req.ID),
		Name:        req.Name,
		Kind:        kind,
		Capacity:    req.Capacity,
		PricePerDay: price,
		Active:      active,
		CreatedAt:   h.Controller.Clock.Now(),
	}
	if err := h.Resources.SaveResource(r.Context(), res); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResourceDTO(res))
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	id := reservation.ResourceID(chi.URLParam(r, "id"))

	start, err1 := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	end, err2 := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err1 != nil || err2 != nil {
		writeError(w, &reservation.ValidationError{Field: "window", Message: "start and end must be RFC3339 timestamps"})
		return
	}
	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, &reservation.ValidationError{Field: "quantity", Message: "must be an integer"})
			return
		}
		quantity = n
	}

	avail, err := h.Controller.CheckAvailability(r.Context(), id, reservation.NewWindow(start, end), quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{Available: avail.Available, Remaining: avail.Remaining})
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &reservation.ValidationError{Field: "body", Message: "invalid JSON"})
		return
	}

	items := make([]reservation.BundleItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, reservation.BundleItem{
			ResourceID: reservation.ResourceID(item.ResourceID),
			Quantity:   item.Quantity,
			Window:     reservation.NewWindow(item.StartDate, item.EndDate),
		})
	}

	created, err := h.Controller.CreateReservations(r.Context(), actorFrom(r), items, req.PhoneNumber, req.WalkInName)
	recordDecision("create", err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTOs(created))
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	status := reservation.Status(r.URL.Query().Get("status"))
	out, err := h.Controller.ListAll(r.Context(), actorFrom(r), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(out))
}

func (h *Handler) ListMyReservations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Controller.ListByRequester(r.Context(), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(out))
}

func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := reservation.ReservationID(chi.URLParam(r, "id"))
	res, err := h.Controller.GetReservation(r.Context(), id, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

func (h *Handler) ApproveReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve", h.Controller.Approve)
}

func (h *Handler) RejectReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reject", h.Controller.Reject)
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.Controller.Cancel)
}

func (h *Handler) ReturnReservation(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "return", h.Controller.MarkReturned)
}

type transitionFunc func(ctx context.Context, id reservation.ReservationID, actor reservation.ActorRef) (*reservation.Reservation, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, operation string, fn transitionFunc) {
	id := reservation.ReservationID(chi.URLParam(r, "id"))
	res, err := fn(r.Context(), id, actorFrom(r))
	recordDecision(operation, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(*res))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps engine error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error()}

	var capErr *reservation.CapacityError
	if errors.As(err, &capErr) {
		remaining := capErr.Remaining
		resp.Remaining = &remaining
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reservation.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, reservation.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, reservation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reservation.ErrCapacityExceeded),
		errors.Is(err, reservation.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, reservation.ErrTransientFailure):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}

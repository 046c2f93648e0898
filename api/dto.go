/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Structural validation (required fields, date parsing) happens in the
  handlers; business validation (capacity, windows, guards) is the
  engine's job and surfaces through the error mapping in handlers.go.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/atelier/reservation-engine/reservation"
)

// =============================================================================
// RESOURCE TYPES
// =============================================================================

// ResourceDTO represents a resource in API responses.
type ResourceDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Capacity    int    `json:"capacity"`
	PricePerDay string `json:"pricePerDay"`
	Active      bool   `json:"active"`
}

// CreateResourceRequest creates or updates a catalog entry.
type CreateResourceRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Capacity    int    `json:"capacity"`
	PricePerDay string `json:"pricePerDay"`
	Active      *bool  `json:"active"`
}

func toResourceDTO(r reservation.Resource) ResourceDTO {
	return ResourceDTO{
		ID:          string(r.ID),
		Name:        r.Name,
		Kind:        string(r.Kind),
		Capacity:    r.Capacity,
		PricePerDay: r.PricePerDay.String(),
		Active:      r.Active,
	}
}

// =============================================================================
// AVAILABILITY TYPES
// =============================================================================

// AvailabilityDTO is the advisory availability answer.
type AvailabilityDTO struct {
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
}

// =============================================================================
// RESERVATION TYPES
// =============================================================================

// BundleItemRequest is one resource claim in a create request.
type BundleItemRequest struct {
	ResourceID string    `json:"resourceId"`
	Quantity   int       `json:"quantity"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
}

// CreateReservationRequest admits a bundle of claims.
type CreateReservationRequest struct {
	Items       []BundleItemRequest `json:"items"`
	PhoneNumber string              `json:"phoneNumber"`
	WalkInName  string              `json:"walkInName,omitempty"`
}

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID          string     `json:"id"`
	BundleID    string     `json:"bundleId"`
	ResourceID  string     `json:"resourceId"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     time.Time  `json:"endDate"`
	Quantity    int        `json:"quantity"`
	Status      string     `json:"status"`
	RequesterID string     `json:"requesterId,omitempty"`
	WalkInName  string     `json:"walkInName,omitempty"`
	PhoneNumber string     `json:"phoneNumber,omitempty"`
	TotalPrice  string     `json:"totalPrice"`
	DecidedBy   string     `json:"decidedBy,omitempty"`
	DecidedAt   *time.Time `json:"decidedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toReservationDTO(r reservation.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:          string(r.ID),
		BundleID:    string(r.BundleID),
		ResourceID:  string(r.ResourceID),
		StartDate:   r.Window.Start,
		EndDate:     r.Window.End,
		Quantity:    r.Quantity,
		Status:      string(r.Status),
		RequesterID: r.RequesterID,
		WalkInName:  r.WalkInName,
		PhoneNumber: r.PhoneNumber,
		TotalPrice:  r.TotalPrice.String(),
		DecidedBy:   r.DecidedBy,
		DecidedAt:   r.DecidedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func toReservationDTOs(rs []reservation.Reservation) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r))
	}
	return out
}

// =============================================================================
// ERROR RESPONSE
// =============================================================================

type errorResponse struct {
	Error     string `json:"error"`
	Remaining *int   `json:"remaining,omitempty"`
}

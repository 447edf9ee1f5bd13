package api

import (
	"encoding/json"
	"net/http"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	"fleetbook/internal/service"

	"github.com/gorilla/mux"
)

type BookingHandler struct {
	Engine *service.BookingService
	Fleet  *service.FleetService
}

func NewBookingHandler(engine *service.BookingService, fleet *service.FleetService) *BookingHandler {
	return &BookingHandler{Engine: engine, Fleet: fleet}
}

func (h *BookingHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req entities.AvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.Engine.CheckAvailability(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req entities.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	booking, err := h.Engine.Create(claims, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(booking))
}

func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	bookings, err := h.Engine.ListMine(claims)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]entities.BookingResponse, 0, len(bookings))
	for i := range bookings {
		resp = append(resp, *toBookingResponse(&bookings[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	booking, err := h.Engine.Get(claims, mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(claims *auth.Claims, code string) (*db.Booking, error) {
		return h.Engine.Cancel(claims, code)
	})
}

type startRequest struct {
	StartMileage int `json:"start_mileage"`
}

func (h *BookingHandler) StartBooking(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.transition(w, r, func(claims *auth.Claims, code string) (*db.Booking, error) {
		return h.Engine.Start(claims, code, req.StartMileage)
	})
}

type completeRequest struct {
	EndMileage int `json:"end_mileage"`
}

func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.transition(w, r, func(claims *auth.Claims, code string) (*db.Booking, error) {
		return h.Engine.Complete(claims, code, req.EndMileage)
	})
}

func (h *BookingHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	vehicles, err := h.Fleet.List(claims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *BookingHandler) ListVehicleTypes(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	types, err := h.Fleet.ListTypes(claims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, fn func(*auth.Claims, string) (*db.Booking, error)) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	booking, err := fn(claims, mux.Vars(r)["code"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(booking))
}

func toBookingResponse(b *db.Booking) *entities.BookingResponse {
	return &entities.BookingResponse{
		ID:           b.ID,
		Code:         b.Code,
		VehicleID:    b.VehicleID,
		UserID:       b.UserID,
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Purpose:      b.Purpose,
		Destination:  b.Destination,
		Status:       b.Status,
		StartMileage: b.StartMileage,
		EndMileage:   b.EndMileage,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

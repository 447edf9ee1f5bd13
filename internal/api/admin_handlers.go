package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	"fleetbook/internal/service"

	"github.com/gorilla/mux"
)

type AdminHandler struct {
	Engine *service.BookingService
	Fleet  *service.FleetService
	Auth   *service.AuthService
}

func NewAdminHandler(engine *service.BookingService, fleet *service.FleetService, authSvc *service.AuthService) *AdminHandler {
	return &AdminHandler{Engine: engine, Fleet: fleet, Auth: authSvc}
}

func (h *AdminHandler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingTransition(w, r, h.Engine.Approve)
}

func (h *AdminHandler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingTransition(w, r, h.Engine.Reject)
}

func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	filter := entities.BookingFilter{
		Date:        r.URL.Query().Get("date"),
		VehicleType: r.URL.Query().Get("vehicle_type"),
		Status:      r.URL.Query().Get("status"),
	}
	bookings, err := h.Engine.ListAll(claims, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

type vehicleRequest struct {
	Name          string `json:"name"`
	Plate         string `json:"plate"`
	VehicleTypeID int    `json:"vehicle_type_id"`
	Capacity      int    `json:"capacity"`
}

func (h *AdminHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.Fleet.Create(claims, &db.Vehicle{
		Name:          req.Name,
		Plate:         req.Plate,
		VehicleTypeID: req.VehicleTypeID,
		Capacity:      req.Capacity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"vehicle_id": id})
}

func (h *AdminHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	err = h.Fleet.Update(claims, &db.Vehicle{
		ID:            id,
		Name:          req.Name,
		Plate:         req.Plate,
		VehicleTypeID: req.VehicleTypeID,
		Capacity:      req.Capacity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Vehicle updated"})
}

func (h *AdminHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Maintenance bool `json:"maintenance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Fleet.SetMaintenance(claims, id, req.Maintenance); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Vehicle maintenance updated"})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	users, err := h.Auth.ListUsers(claims)
	if err != nil {
		writeError(w, err)
		return
	}
	type userView struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Department string `json:"department"`
		Role       string `json:"role"`
		Active     bool   `json:"active"`
	}
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{
			ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone,
			Department: u.Department, Role: u.Role, Active: u.Active,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Auth.ResetPassword(claims, id, req.Password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset"})
}

func (h *AdminHandler) DisableUser(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	if err := h.Auth.Disable(claims, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User disabled"})
}

func (h *AdminHandler) bookingTransition(w http.ResponseWriter, r *http.Request, fn func(*auth.Claims, string) (*db.Booking, error)) {
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

package entities

import "time"

// BookingRequest is what a user submits to reserve a vehicle.
type BookingRequest struct {
	VehicleID   int       `json:"vehicle_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Purpose     string    `json:"purpose"`
	Destination string    `json:"destination"`
}

type BookingResponse struct {
	ID           int       `json:"id"`
	Code         string    `json:"code"`
	VehicleID    int       `json:"vehicle_id"`
	VehicleName  string    `json:"vehicle_name,omitempty"`
	UserID       int       `json:"user_id"`
	UserName     string    `json:"user_name,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Purpose      string    `json:"purpose"`
	Destination  string    `json:"destination"`
	Status       string    `json:"status"`
	StartMileage *int      `json:"start_mileage,omitempty"`
	EndMileage   *int      `json:"end_mileage,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BookingFilter narrows admin booking listings. Zero values mean "any".
type BookingFilter struct {
	Date        string
	VehicleType string
	Status      string
}

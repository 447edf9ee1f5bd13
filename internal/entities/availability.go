package entities

import "time"

type AvailabilityRequest struct {
	VehicleID int       `json:"vehicle_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type AvailabilityResponse struct {
	VehicleID          int       `json:"vehicle_id"`
	RequestedStartTime time.Time `json:"requested_start_time"`
	RequestedEndTime   time.Time `json:"requested_end_time"`
	Available          bool      `json:"available"`
	BlockingBookingIDs []int     `json:"blocking_booking_ids,omitempty"`
	Message            string    `json:"message,omitempty"`
}

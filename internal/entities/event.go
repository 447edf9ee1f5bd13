package entities

// StatusChangeEvent is emitted on every booking status transition. Delivery
// is fire-and-forget; a failed dispatch never fails the transition.
type StatusChangeEvent struct {
	BookingID   int    `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	VehicleID   int    `json:"vehicle_id"`
	RequesterID int    `json:"requester_id"`
	Status      string `json:"status"`
}

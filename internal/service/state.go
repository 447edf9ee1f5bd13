package service

import "fleetbook/internal/db"

// Booking statuses, persisted as strings.
const (
	StatusPending    = "pending"
	StatusApproved   = "approved"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusRejected   = "rejected"
)

// allowedTransitions is the booking state machine as a directed graph.
// completed, cancelled and rejected are terminal.
var allowedTransitions = map[string][]string{
	StatusPending:    {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusRejected:   {},
}

// canTransition reports whether from -> to is an edge of the state machine.
// Repeating the current status is not an edge: a second cancel must fail.
func canTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// activeStatuses are the statuses that participate in conflict detection.
var activeStatuses = []string{StatusPending, StatusApproved, StatusInProgress}

// committedStatuses are the statuses that drive derived vehicle status and
// that an approval must re-check against.
var committedStatuses = []string{StatusApproved, StatusInProgress}

// deriveVehicleStatus computes a vehicle's status from the bookings whose
// window contains the current instant. The maintenance override is handled
// by callers; it never reaches this function.
func deriveVehicleStatus(current []db.Booking) string {
	status := db.VehicleAvailable
	for _, b := range current {
		switch b.Status {
		case StatusInProgress:
			return db.VehicleInUse
		case StatusApproved:
			status = db.VehicleReserved
		}
	}
	return status
}

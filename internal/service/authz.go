package service

import "fleetbook/internal/db"

// Action names every privileged operation the services gate.
type Action string

const (
	ActionCreateBooking   Action = "booking.create"
	ActionReadBooking     Action = "booking.read"
	ActionCancelBooking   Action = "booking.cancel"
	ActionStartBooking    Action = "booking.start"
	ActionCompleteBooking Action = "booking.complete"
	ActionApproveBooking  Action = "booking.approve"
	ActionRejectBooking   Action = "booking.reject"
	ActionReadFleet       Action = "fleet.read"
	ActionManageFleet     Action = "fleet.manage"
	ActionManageUsers     Action = "users.manage"
)

// CanPerform is the whole authorization policy: administrators may do
// anything; regular users act only on bookings they own and may read the
// fleet. It is a pure function of the decoded token and the resource owner.
func CanPerform(actorRole string, actorID int, action Action, resourceOwnerID int) bool {
	if actorRole == db.RoleAdmin {
		return true
	}
	switch action {
	case ActionCreateBooking, ActionReadBooking, ActionCancelBooking,
		ActionStartBooking, ActionCompleteBooking:
		return actorID == resourceOwnerID
	case ActionReadFleet:
		return true
	default:
		return false
	}
}

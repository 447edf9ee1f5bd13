package service

import (
	"sync"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"

	"github.com/google/uuid"
)

const (
	// createBooking accepts a start slightly in the past so a request
	// composed just before submission is not rejected.
	startGrace = 5 * time.Minute
	// bookings may not reach further into the future than this.
	bookingHorizon = 90 * 24 * time.Hour
)

// Notifier receives a status-change event after every booking transition.
// Implementations must not block; the engine calls it outside any lock.
type Notifier interface {
	BookingStatusChanged(event entities.StatusChangeEvent)
}

// BookingService is the reservation engine. It owns every booking lifecycle
// mutation and keeps derived vehicle status consistent with the booking set.
// The conflict check and the following write are serialized per vehicle.
type BookingService struct {
	bookings repository.BookingStore
	vehicles repository.VehicleStore
	notifier Notifier
	now      func() time.Time

	mu           sync.Mutex
	vehicleLocks map[int]*sync.Mutex
}

func NewBookingService(bookings repository.BookingStore, vehicles repository.VehicleStore, notifier Notifier) *BookingService {
	return &BookingService{
		bookings:     bookings,
		vehicles:     vehicles,
		notifier:     notifier,
		now:          func() time.Time { return time.Now().UTC() },
		vehicleLocks: make(map[int]*sync.Mutex),
	}
}

// SetClock replaces the engine's time source. Used by tests and by nothing
// else.
func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// lockVehicle returns the mutex guarding the check-and-write section for one
// vehicle, creating it on first use. Operations on different vehicles never
// contend.
func (s *BookingService) lockVehicle(vehicleID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.vehicleLocks[vehicleID]
	if !ok {
		l = &sync.Mutex{}
		s.vehicleLocks[vehicleID] = l
	}
	return l
}

// storageErr passes through core error kinds and wraps anything else as
// StorageUnavailable.
func storageErr(err error) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.Storage(err)
}

// CheckAvailability reports whether the window is free on the vehicle and,
// if not, which bookings block it. Read-only, so no lock is taken.
func (s *BookingService) CheckAvailability(req entities.AvailabilityRequest) (*entities.AvailabilityResponse, error) {
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if !end.After(start) {
		return nil, apperrors.New(apperrors.KindInvalidTimeRange, "end_time must be after start_time")
	}
	conflicts, err := s.bookings.FindActive(req.VehicleID, start, end, activeStatuses)
	if err != nil {
		return nil, storageErr(err)
	}
	resp := &entities.AvailabilityResponse{
		VehicleID:          req.VehicleID,
		RequestedStartTime: start,
		RequestedEndTime:   end,
		Available:          len(conflicts) == 0,
	}
	if len(conflicts) > 0 {
		resp.BlockingBookingIDs = bookingIDs(conflicts)
		resp.Message = "requested window overlaps existing bookings"
	}
	return resp, nil
}

// Create validates the window, runs conflict detection and inserts a pending
// booking. The requester is always the actor; regular users cannot book on
// behalf of someone else.
func (s *BookingService) Create(actor *auth.Claims, req entities.BookingRequest) (*db.Booking, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionCreateBooking, actor.UserID) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to create bookings")
	}

	now := s.now()
	start, end := req.StartTime.UTC(), req.EndTime.UTC()
	if !end.After(start) {
		return nil, apperrors.New(apperrors.KindInvalidTimeRange, "end_time must be after start_time")
	}
	if start.Before(now.Add(-startGrace)) {
		return nil, apperrors.New(apperrors.KindInvalidTimeRange, "start_time is in the past")
	}
	if end.After(now.Add(bookingHorizon)) {
		return nil, apperrors.New(apperrors.KindInvalidTimeRange, "end_time is beyond the booking horizon")
	}

	vehicle, err := s.vehicles.GetVehicle(req.VehicleID)
	if err != nil {
		return nil, storageErr(err)
	}
	if vehicle.Status == db.VehicleMaintenance {
		return nil, apperrors.New(apperrors.KindVehicleUnavailable, "vehicle %d is under maintenance", vehicle.ID)
	}

	booking := &db.Booking{
		Code:        uuid.NewString(),
		VehicleID:   req.VehicleID,
		UserID:      actor.UserID,
		StartTime:   start,
		EndTime:     end,
		Purpose:     req.Purpose,
		Destination: req.Destination,
		Status:      StatusPending,
	}

	lock := s.lockVehicle(req.VehicleID)
	lock.Lock()
	conflicts, err := s.bookings.FindActive(req.VehicleID, start, end, activeStatuses)
	if err != nil {
		lock.Unlock()
		return nil, storageErr(err)
	}
	if len(conflicts) > 0 {
		lock.Unlock()
		return nil, apperrors.Conflict(bookingIDs(conflicts))
	}
	if err := s.bookings.Insert(booking); err != nil {
		lock.Unlock()
		return nil, storageErr(err)
	}
	lock.Unlock()

	s.emit(booking)
	return booking, nil
}

// Approve moves a pending booking to approved. The overlap check runs again
// here against committed bookings: two pending requests for the same slot
// may both exist, but only the first approval wins.
func (s *BookingService) Approve(actor *auth.Claims, code string) (*db.Booking, error) {
	return s.transition(actor, code, StatusApproved, ActionApproveBooking, nil)
}

// Reject is the administrator's terminal refusal of a pending booking.
func (s *BookingService) Reject(actor *auth.Claims, code string) (*db.Booking, error) {
	return s.transition(actor, code, StatusRejected, ActionRejectBooking, nil)
}

// Start moves an approved booking to in-progress once its window has opened
// and records the departure odometer reading.
func (s *BookingService) Start(actor *auth.Claims, code string, startMileage int) (*db.Booking, error) {
	if startMileage < 0 {
		return nil, apperrors.New(apperrors.KindInvalidMileage, "start_mileage must not be negative")
	}
	return s.transition(actor, code, StatusInProgress, ActionStartBooking, &startMileage)
}

// Complete closes an in-progress booking with the return odometer reading.
func (s *BookingService) Complete(actor *auth.Claims, code string, endMileage int) (*db.Booking, error) {
	return s.transition(actor, code, StatusCompleted, ActionCompleteBooking, &endMileage)
}

// Cancel withdraws a pending or approved booking.
func (s *BookingService) Cancel(actor *auth.Claims, code string) (*db.Booking, error) {
	return s.transition(actor, code, StatusCancelled, ActionCancelBooking, nil)
}

// transition drives every status change through the state machine, holding
// the vehicle lock across the check and the write. The record is re-read
// under the lock so a concurrent transition on the same booking cannot slip
// past the edge check against a stale status. The notification fires after
// the lock is released.
func (s *BookingService) transition(actor *auth.Claims, code, target string, action Action, mileage *int) (*db.Booking, error) {
	// The first read only resolves which vehicle to lock; a booking never
	// changes vehicle, so the lock stays correct across the re-read.
	booking, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, storageErr(err)
	}

	lock := s.lockVehicle(booking.VehicleID)
	lock.Lock()
	booking, err = s.bookings.GetByCode(code)
	if err != nil {
		lock.Unlock()
		return nil, storageErr(err)
	}
	if !CanPerform(actor.Role, actor.UserID, action, booking.UserID) {
		lock.Unlock()
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to %s booking %s", action, code)
	}
	err = s.applyTransition(booking, target, mileage)
	lock.Unlock()
	if err != nil {
		return nil, err
	}

	s.emit(booking)
	return booking, nil
}

// applyTransition validates and persists a single status change. Callers
// hold the vehicle lock. On any failure the record is left untouched.
func (s *BookingService) applyTransition(booking *db.Booking, target string, mileage *int) error {
	if !canTransition(booking.Status, target) {
		return apperrors.New(apperrors.KindInvalidTransition,
			"booking %s cannot move from %s to %s", booking.Code, booking.Status, target)
	}

	now := s.now()
	var startMileage, endMileage *int

	switch target {
	case StatusApproved:
		// Close the race between two pending requests for one slot.
		conflicts, err := s.bookings.FindActive(booking.VehicleID, booking.StartTime, booking.EndTime, committedStatuses)
		if err != nil {
			return storageErr(err)
		}
		if len(conflicts) > 0 {
			return apperrors.Conflict(bookingIDs(conflicts))
		}
		vehicle, err := s.vehicles.GetVehicle(booking.VehicleID)
		if err != nil {
			return storageErr(err)
		}
		if vehicle.Status == db.VehicleMaintenance {
			return apperrors.New(apperrors.KindVehicleUnavailable, "vehicle %d is under maintenance", vehicle.ID)
		}
	case StatusInProgress:
		if now.Before(booking.StartTime) {
			return apperrors.New(apperrors.KindInvalidTransition,
				"booking %s cannot start before its window opens", booking.Code)
		}
		startMileage = mileage
	case StatusCompleted:
		endMileage = mileage
		if endMileage != nil && booking.StartMileage != nil && *endMileage < *booking.StartMileage {
			return apperrors.New(apperrors.KindInvalidMileage,
				"end_mileage %d is lower than start_mileage %d", *endMileage, *booking.StartMileage)
		}
	}

	if err := s.bookings.UpdateStatus(booking.ID, target, startMileage, endMileage); err != nil {
		return storageErr(err)
	}
	booking.Status = target
	if startMileage != nil {
		booking.StartMileage = startMileage
	}
	if endMileage != nil {
		booking.EndMileage = endMileage
	}

	return s.syncVehicleStatus(booking.VehicleID)
}

// syncVehicleStatus recomputes the derived vehicle status from the bookings
// whose window contains the current instant. The maintenance override always
// wins. Callers hold the vehicle lock.
func (s *BookingService) syncVehicleStatus(vehicleID int) error {
	vehicle, err := s.vehicles.GetVehicle(vehicleID)
	if err != nil {
		return storageErr(err)
	}
	if vehicle.Status == db.VehicleMaintenance {
		return nil
	}

	now := s.now()
	current, err := s.bookings.FindActive(vehicleID, now, now.Add(time.Nanosecond), committedStatuses)
	if err != nil {
		return storageErr(err)
	}
	status := deriveVehicleStatus(current)
	if status == vehicle.Status {
		return nil
	}
	if err := s.vehicles.SetStatus(vehicleID, status); err != nil {
		return storageErr(err)
	}
	return nil
}

// RefreshVehicleStatus recomputes one vehicle's derived status under its
// lock. The periodic sweep uses it to flip reserved back to available when
// a window lapses with no explicit transition.
func (s *BookingService) RefreshVehicleStatus(vehicleID int) error {
	lock := s.lockVehicle(vehicleID)
	lock.Lock()
	defer lock.Unlock()
	return s.syncVehicleStatus(vehicleID)
}

// SetMaintenance applies or lifts the administrator override. The write and
// the recomputation that follows a lift happen under the vehicle lock, so a
// concurrent transition's status sync never interleaves with the change.
func (s *BookingService) SetMaintenance(vehicleID int, on bool) error {
	lock := s.lockVehicle(vehicleID)
	lock.Lock()
	defer lock.Unlock()
	if on {
		if err := s.vehicles.SetStatus(vehicleID, db.VehicleMaintenance); err != nil {
			return storageErr(err)
		}
		return nil
	}
	if err := s.vehicles.SetStatus(vehicleID, db.VehicleAvailable); err != nil {
		return storageErr(err)
	}
	return s.syncVehicleStatus(vehicleID)
}

// Get returns one booking; regular users only see their own.
func (s *BookingService) Get(actor *auth.Claims, code string) (*db.Booking, error) {
	booking, err := s.bookings.GetByCode(code)
	if err != nil {
		return nil, storageErr(err)
	}
	if !CanPerform(actor.Role, actor.UserID, ActionReadBooking, booking.UserID) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to read booking %s", code)
	}
	return booking, nil
}

// ListMine returns the actor's own bookings, newest first.
func (s *BookingService) ListMine(actor *auth.Claims) ([]db.Booking, error) {
	bookings, err := s.bookings.FindByUser(actor.UserID)
	if err != nil {
		return nil, storageErr(err)
	}
	return bookings, nil
}

// ListAll is the admin listing with optional date, vehicle-type and status
// filters.
func (s *BookingService) ListAll(actor *auth.Claims, filter entities.BookingFilter) ([]entities.BookingResponse, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionManageFleet, 0) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to list all bookings")
	}
	bookings, err := s.bookings.List(filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return bookings, nil
}

func (s *BookingService) emit(booking *db.Booking) {
	if s.notifier == nil {
		return
	}
	s.notifier.BookingStatusChanged(entities.StatusChangeEvent{
		BookingID:   booking.ID,
		BookingCode: booking.Code,
		VehicleID:   booking.VehicleID,
		RequesterID: booking.UserID,
		Status:      booking.Status,
	})
}

func bookingIDs(bookings []db.Booking) []int {
	ids := make([]int, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

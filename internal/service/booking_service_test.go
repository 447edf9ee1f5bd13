package service

import (
	"sync"
	"testing"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	apperrors "fleetbook/internal/errors"

	"github.com/stretchr/testify/require"
)

var (
	adminActor = &auth.Claims{UserID: 1, Role: db.RoleAdmin}
	userA      = &auth.Claims{UserID: 2, Role: db.RoleRegular}
	userB      = &auth.Claims{UserID: 3, Role: db.RoleRegular}

	// 2024-06-01 08:00 UTC; the booking windows in these tests start an
	// hour later.
	baseTime = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
)

func newTestEngine(t *testing.T) (*BookingService, *fakeBookingStore, *fakeVehicleStore, *recorderNotifier) {
	t.Helper()
	bookings := newFakeBookingStore()
	vehicles := newFakeVehicleStore(db.Vehicle{ID: 1, Name: "Van 1", Plate: "AB-123", VehicleTypeID: 1, Status: db.VehicleAvailable})
	notifier := &recorderNotifier{}
	engine := NewBookingService(bookings, vehicles, notifier)
	engine.SetClock(func() time.Time { return baseTime })
	return engine, bookings, vehicles, notifier
}

func window(startHour, endHour int) (time.Time, time.Time) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(startHour) * time.Hour), day.Add(time.Duration(endHour) * time.Hour)
}

func mustCreate(t *testing.T, engine *BookingService, actor *auth.Claims, startHour, endHour int) *db.Booking {
	t.Helper()
	start, end := window(startHour, endHour)
	booking, err := engine.Create(actor, entities.BookingRequest{
		VehicleID: 1, StartTime: start, EndTime: end,
		Purpose: "site visit", Destination: "warehouse",
	})
	require.NoError(t, err)
	return booking
}

func TestCreateBooking(t *testing.T) {
	engine, bookings, vehicles, _ := newTestEngine(t)

	booking := mustCreate(t, engine, userA, 9, 12)
	require.Equal(t, StatusPending, booking.Status)
	require.Equal(t, userA.UserID, booking.UserID)
	require.NotEmpty(t, booking.Code)
	require.Equal(t, StatusPending, bookings.get(booking.ID).Status)

	// a pending booking never drives vehicle status
	require.Equal(t, db.VehicleAvailable, vehicles.status(1))
}

func TestCreateBookingInvalidTimeRange(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	cases := []struct {
		name       string
		start, end time.Time
	}{
		{"end before start", baseTime.Add(3 * time.Hour), baseTime.Add(1 * time.Hour)},
		{"end equals start", baseTime.Add(time.Hour), baseTime.Add(time.Hour)},
		{"start in the past", baseTime.Add(-2 * time.Hour), baseTime.Add(time.Hour)},
		{"beyond horizon", baseTime.Add(100 * 24 * time.Hour), baseTime.Add(101 * 24 * time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Create(userA, entities.BookingRequest{VehicleID: 1, StartTime: tc.start, EndTime: tc.end})
			require.Equal(t, apperrors.KindInvalidTimeRange, apperrors.KindOf(err))
		})
	}
}

func TestCreateBookingConflict(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	first := mustCreate(t, engine, userA, 9, 12)

	start, end := window(11, 13)
	_, err := engine.Create(userB, entities.BookingRequest{VehicleID: 1, StartTime: start, EndTime: end})
	require.Equal(t, apperrors.KindSchedulingConflict, apperrors.KindOf(err))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, []int{first.ID}, appErr.ConflictIDs)
}

func TestCreateBookingAdjacentWindowsDoNotConflict(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)

	mustCreate(t, engine, userA, 9, 12)
	// [9,12) and [12,14) share only the boundary instant
	mustCreate(t, engine, userB, 12, 14)
}

func TestCreateBookingMaintenanceVehicle(t *testing.T) {
	engine, _, vehicles, _ := newTestEngine(t)
	require.NoError(t, vehicles.SetStatus(1, db.VehicleMaintenance))

	start, end := window(9, 12)
	_, err := engine.Create(userA, entities.BookingRequest{VehicleID: 1, StartTime: start, EndTime: end})
	require.Equal(t, apperrors.KindVehicleUnavailable, apperrors.KindOf(err))
}

func TestApprove(t *testing.T) {
	engine, bookings, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	approved, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, StatusApproved, bookings.get(booking.ID).Status)

	// now (08:00) is outside [09:00, 12:00): the vehicle stays available
	require.Equal(t, db.VehicleAvailable, vehicles.status(1))

	// once now enters the window the sweep flips it to reserved
	engine.SetClock(func() time.Time { return baseTime.Add(2 * time.Hour) })
	require.NoError(t, engine.RefreshVehicleStatus(1))
	require.Equal(t, db.VehicleReserved, vehicles.status(1))
}

func TestApproveInsideWindowReservesImmediately(t *testing.T) {
	engine, _, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	engine.SetClock(func() time.Time { return baseTime.Add(90 * time.Minute) }) // 09:30
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	require.Equal(t, db.VehicleReserved, vehicles.status(1))
}

func TestApproveRechecksOverlap(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)

	first := mustCreate(t, engine, userA, 9, 12)

	// a second pending booking for the same slot, as left behind by two
	// requests racing past the creation-time check
	start, end := window(10, 11)
	second := &db.Booking{
		Code: "racing-booking", VehicleID: 1, UserID: userB.UserID,
		StartTime: start, EndTime: end, Status: StatusPending,
	}
	require.NoError(t, bookings.Insert(second))

	_, err := engine.Approve(adminActor, first.Code)
	require.NoError(t, err)

	// the second approval loses the race
	_, err = engine.Approve(adminActor, second.Code)
	require.Equal(t, apperrors.KindSchedulingConflict, apperrors.KindOf(err))
	require.Equal(t, StatusPending, bookings.get(second.ID).Status)
}

func TestApproveForbiddenForRegularUser(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	_, err := engine.Approve(userA, booking.Code)
	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	require.Equal(t, StatusPending, bookings.get(booking.ID).Status)
}

func TestReject(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	rejected, err := engine.Reject(adminActor, booking.Code)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	// terminal: nothing moves a rejected booking
	_, err = engine.Approve(adminActor, booking.Code)
	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	require.Equal(t, StatusRejected, bookings.get(booking.ID).Status)
}

func TestStart(t *testing.T) {
	engine, bookings, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)

	// window has not opened yet
	_, err = engine.Start(userA, booking.Code, 50)
	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	require.Equal(t, StatusApproved, bookings.get(booking.ID).Status)

	engine.SetClock(func() time.Time { return baseTime.Add(time.Hour) }) // 09:00
	started, err := engine.Start(userA, booking.Code, 50)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)
	require.NotNil(t, started.StartMileage)
	require.Equal(t, 50, *started.StartMileage)
	require.Equal(t, db.VehicleInUse, vehicles.status(1))
}

func TestStartRequiresApproval(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	engine.SetClock(func() time.Time { return baseTime.Add(2 * time.Hour) })
	_, err := engine.Start(userA, booking.Code, 50)
	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
}

func TestComplete(t *testing.T) {
	engine, bookings, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return baseTime.Add(time.Hour) })
	_, err = engine.Start(userA, booking.Code, 50)
	require.NoError(t, err)

	// odometer cannot go backwards
	_, err = engine.Complete(userA, booking.Code, 49)
	require.Equal(t, apperrors.KindInvalidMileage, apperrors.KindOf(err))
	require.Equal(t, StatusInProgress, bookings.get(booking.ID).Status)

	completed, err := engine.Complete(userA, booking.Code, 105)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
	require.Equal(t, 105, *completed.EndMileage)

	// no other active booking: the vehicle is available again
	require.Equal(t, db.VehicleAvailable, vehicles.status(1))
}

func TestCancelIsNotIdempotent(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	cancelled, err := engine.Cancel(userA, booking.Code)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// the second cancel fails rather than silently re-firing recomputes
	_, err = engine.Cancel(userA, booking.Code)
	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	require.Equal(t, StatusCancelled, bookings.get(booking.ID).Status)
}

func TestCancelForbiddenForOtherUser(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	_, err := engine.Cancel(userB, booking.Code)
	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	require.Equal(t, StatusPending, bookings.get(booking.ID).Status)
}

func TestCancelInProgressNotAllowed(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return baseTime.Add(time.Hour) })
	_, err = engine.Start(userA, booking.Code, 10)
	require.NoError(t, err)

	_, err = engine.Cancel(userA, booking.Code)
	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
}

func TestCancelApprovedFreesVehicle(t *testing.T) {
	engine, _, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	engine.SetClock(func() time.Time { return baseTime.Add(2 * time.Hour) })
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	require.Equal(t, db.VehicleReserved, vehicles.status(1))

	_, err = engine.Cancel(adminActor, booking.Code)
	require.NoError(t, err)
	require.Equal(t, db.VehicleAvailable, vehicles.status(1))
}

func TestConcurrentCreateExactlyOneWins(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	bookings.findDelay = 10 * time.Millisecond

	start, end := window(9, 12)
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, actor := range []*auth.Claims{userA, userB} {
		wg.Add(1)
		go func(actor *auth.Claims) {
			defer wg.Done()
			_, err := engine.Create(actor, entities.BookingRequest{VehicleID: 1, StartTime: start, EndTime: end})
			results <- err
		}(actor)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.KindOf(err) == apperrors.KindSchedulingConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, conflicts)
}

func TestNoStoredOverlapInvariant(t *testing.T) {
	engine, bookings, _, _ := newTestEngine(t)
	bookings.findDelay = time.Millisecond

	// hammer one vehicle with overlapping windows from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start, end := window(9+i%3, 12+i%3)
			_, _ = engine.Create(userA, entities.BookingRequest{VehicleID: 1, StartTime: start, EndTime: end})
		}(i)
	}
	wg.Wait()

	stored, err := bookings.FindActive(1, baseTime, baseTime.Add(24*time.Hour), activeStatuses)
	require.NoError(t, err)
	for i := range stored {
		for j := i + 1; j < len(stored); j++ {
			a, b := stored[i], stored[j]
			overlap := a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime)
			require.False(t, overlap, "bookings %d and %d overlap", a.ID, b.ID)
		}
	}
}

func TestConcurrentTransitionsCannotReviveTerminalState(t *testing.T) {
	engine, bookings, _, notifier := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	// Pause the approve after its pre-lock read so the reject commits a
	// terminal state in between. The token gates the first read only.
	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	paused := make(chan struct{})
	release := make(chan struct{})
	bookings.getHook = func() {
		select {
		case <-gate:
			close(paused)
			<-release
		default:
		}
	}

	approveErr := make(chan error, 1)
	go func() {
		_, err := engine.Approve(adminActor, booking.Code)
		approveErr <- err
	}()

	<-paused
	_, err := engine.Reject(adminActor, booking.Code)
	require.NoError(t, err)
	close(release)

	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(<-approveErr))
	require.Equal(t, StatusRejected, bookings.get(booking.ID).Status)
	require.Equal(t, []string{StatusPending, StatusRejected}, notifier.statuses())
}

func TestConcurrentCancelOnlyOneSucceeds(t *testing.T) {
	engine, bookings, _, notifier := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	paused := make(chan struct{})
	release := make(chan struct{})
	bookings.getHook = func() {
		select {
		case <-gate:
			close(paused)
			<-release
		default:
		}
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := engine.Cancel(userA, booking.Code)
		firstErr <- err
	}()

	<-paused
	_, err := engine.Cancel(userA, booking.Code)
	require.NoError(t, err)
	close(release)

	require.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(<-firstErr))
	require.Equal(t, StatusCancelled, bookings.get(booking.ID).Status)
	require.Equal(t, []string{StatusPending, StatusCancelled}, notifier.statuses())
}

func TestLiftMaintenanceWaitsForVehicleLock(t *testing.T) {
	engine, bookings, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	require.NoError(t, vehicles.SetStatus(1, db.VehicleMaintenance))

	// Pause the approve inside the vehicle lock, at its overlap check, so
	// the maintenance lift has to queue behind it.
	gate := make(chan struct{}, 1)
	gate <- struct{}{}
	paused := make(chan struct{})
	release := make(chan struct{})
	bookings.findHook = func() {
		select {
		case <-gate:
			close(paused)
			<-release
		default:
		}
	}

	approveErr := make(chan error, 1)
	go func() {
		_, err := engine.Approve(adminActor, booking.Code)
		approveErr <- err
	}()
	<-paused

	liftErr := make(chan error, 1)
	go func() {
		liftErr <- engine.SetMaintenance(1, false)
	}()

	select {
	case <-liftErr:
		t.Fatal("maintenance lift ran while a transition held the vehicle lock")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(t, db.VehicleMaintenance, vehicles.status(1))

	close(release)
	require.Equal(t, apperrors.KindVehicleUnavailable, apperrors.KindOf(<-approveErr))
	require.NoError(t, <-liftErr)
	require.Equal(t, db.VehicleAvailable, vehicles.status(1))
}

func TestLifecycleEmitsEvents(t *testing.T) {
	engine, _, _, notifier := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)
	engine.SetClock(func() time.Time { return baseTime.Add(time.Hour) })
	_, err = engine.Start(userA, booking.Code, 50)
	require.NoError(t, err)
	_, err = engine.Complete(userA, booking.Code, 105)
	require.NoError(t, err)

	require.Equal(t, []string{StatusPending, StatusApproved, StatusInProgress, StatusCompleted}, notifier.statuses())
	require.Equal(t, booking.ID, notifier.events[0].BookingID)
	require.Equal(t, userA.UserID, notifier.events[0].RequesterID)
}

func TestFailedTransitionEmitsNothing(t *testing.T) {
	engine, _, _, notifier := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	_, err := engine.Start(userA, booking.Code, 10)
	require.Error(t, err)
	require.Equal(t, []string{StatusPending}, notifier.statuses())
}

func TestCheckAvailability(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	start, end := window(11, 13)
	resp, err := engine.CheckAvailability(entities.AvailabilityRequest{VehicleID: 1, StartTime: start, EndTime: end})
	require.NoError(t, err)
	require.False(t, resp.Available)
	require.Equal(t, []int{booking.ID}, resp.BlockingBookingIDs)

	start, end = window(13, 15)
	resp, err = engine.CheckAvailability(entities.AvailabilityRequest{VehicleID: 1, StartTime: start, EndTime: end})
	require.NoError(t, err)
	require.True(t, resp.Available)
}

func TestGetEnforcesOwnership(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)

	_, err := engine.Get(userB, booking.Code)
	require.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	got, err := engine.Get(userA, booking.Code)
	require.NoError(t, err)
	require.Equal(t, booking.ID, got.ID)

	_, err = engine.Get(adminActor, booking.Code)
	require.NoError(t, err)
}

func TestMaintenanceOverrideSurvivesSweep(t *testing.T) {
	engine, _, vehicles, _ := newTestEngine(t)
	booking := mustCreate(t, engine, userA, 9, 12)
	_, err := engine.Approve(adminActor, booking.Code)
	require.NoError(t, err)

	require.NoError(t, vehicles.SetStatus(1, db.VehicleMaintenance))
	engine.SetClock(func() time.Time { return baseTime.Add(2 * time.Hour) })
	require.NoError(t, engine.RefreshVehicleStatus(1))
	require.Equal(t, db.VehicleMaintenance, vehicles.status(1))
}

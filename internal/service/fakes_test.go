package service

import (
	"sync"
	"time"

	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	apperrors "fleetbook/internal/errors"
)

// fakeBookingStore is an in-memory BookingStore. findDelay widens the race
// window between the conflict check and the insert so the concurrency test
// would catch a missing vehicle lock. getHook and findHook, when set before
// any goroutine starts, run after GetByCode and FindActive respectively,
// outside the store mutex; tests use them to pause a caller at a chosen
// point.
type fakeBookingStore struct {
	mu        sync.Mutex
	nextID    int
	bookings  map[int]*db.Booking
	findDelay time.Duration
	getHook   func()
	findHook  func()
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: make(map[int]*db.Booking)}
}

func (f *fakeBookingStore) FindActive(vehicleID int, windowStart, windowEnd time.Time, statuses []string) ([]db.Booking, error) {
	f.mu.Lock()
	var out []db.Booking
	for _, b := range f.bookings {
		if b.VehicleID != vehicleID || !statusIn(b.Status, statuses) {
			continue
		}
		if b.StartTime.Before(windowEnd) && b.EndTime.After(windowStart) {
			out = append(out, *b)
		}
	}
	f.mu.Unlock()
	if f.findDelay > 0 {
		time.Sleep(f.findDelay)
	}
	if f.findHook != nil {
		f.findHook()
	}
	return out, nil
}

func (f *fakeBookingStore) Insert(booking *db.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	booking.ID = f.nextID
	booking.CreatedAt = time.Now().UTC()
	booking.UpdatedAt = booking.CreatedAt
	stored := *booking
	f.bookings[booking.ID] = &stored
	return nil
}

func (f *fakeBookingStore) UpdateStatus(id int, status string, startMileage, endMileage *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "booking %d not found", id)
	}
	b.Status = status
	if startMileage != nil {
		b.StartMileage = startMileage
	}
	if endMileage != nil {
		b.EndMileage = endMileage
	}
	b.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeBookingStore) GetByCode(code string) (*db.Booking, error) {
	f.mu.Lock()
	var found *db.Booking
	for _, b := range f.bookings {
		if b.Code == code {
			copied := *b
			found = &copied
			break
		}
	}
	f.mu.Unlock()
	if f.getHook != nil {
		f.getHook()
	}
	if found == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "booking with code '%s' not found", code)
	}
	return found, nil
}

func (f *fakeBookingStore) FindByUser(userID int) ([]db.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) List(filter entities.BookingFilter) ([]entities.BookingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entities.BookingResponse
	for _, b := range f.bookings {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		out = append(out, entities.BookingResponse{
			ID: b.ID, Code: b.Code, VehicleID: b.VehicleID, UserID: b.UserID,
			StartTime: b.StartTime, EndTime: b.EndTime, Status: b.Status,
		})
	}
	return out, nil
}

// get returns the stored record, bypassing the interface, for assertions.
func (f *fakeBookingStore) get(id int) db.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bookings[id]
}

func statusIn(status string, statuses []string) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeVehicleStore struct {
	mu       sync.Mutex
	vehicles map[int]*db.Vehicle
}

func newFakeVehicleStore(vehicles ...db.Vehicle) *fakeVehicleStore {
	f := &fakeVehicleStore{vehicles: make(map[int]*db.Vehicle)}
	for _, v := range vehicles {
		stored := v
		f.vehicles[v.ID] = &stored
	}
	return f
}

func (f *fakeVehicleStore) GetVehicle(id int) (*db.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return nil, apperrors.New(apperrors.KindNotFound, "vehicle %d not found", id)
	}
	copied := *v
	return &copied, nil
}

func (f *fakeVehicleStore) List() ([]db.Vehicle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Vehicle
	for _, v := range f.vehicles {
		out = append(out, *v)
	}
	return out, nil
}

func (f *fakeVehicleStore) ListTypes() ([]db.VehicleType, error) {
	return []db.VehicleType{{ID: 1, Name: "sedan"}}, nil
}

func (f *fakeVehicleStore) Insert(vehicle *db.Vehicle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := len(f.vehicles) + 1
	vehicle.ID = id
	stored := *vehicle
	f.vehicles[id] = &stored
	return id, nil
}

func (f *fakeVehicleStore) Update(vehicle *db.Vehicle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[vehicle.ID]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "vehicle %d not found", vehicle.ID)
	}
	v.Name, v.Plate, v.VehicleTypeID, v.Capacity = vehicle.Name, vehicle.Plate, vehicle.VehicleTypeID, vehicle.Capacity
	return nil
}

func (f *fakeVehicleStore) SetStatus(id int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vehicles[id]
	if !ok {
		return apperrors.New(apperrors.KindNotFound, "vehicle %d not found", id)
	}
	v.Status = status
	return nil
}

func (f *fakeVehicleStore) status(id int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vehicles[id].Status
}

// recorderNotifier collects emitted events synchronously.
type recorderNotifier struct {
	mu     sync.Mutex
	events []entities.StatusChangeEvent
}

func (r *recorderNotifier) BookingStatusChanged(event entities.StatusChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorderNotifier) statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Status)
	}
	return out
}

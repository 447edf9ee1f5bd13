package db

import "time"

// Roles a user account can hold.
const (
	RoleRegular = "regular"
	RoleAdmin   = "admin"
)

// Vehicle statuses. "maintenance" is an administrator override; the others
// are derived from the vehicle's active bookings.
const (
	VehicleAvailable   = "available"
	VehicleReserved    = "reserved"
	VehicleInUse       = "in_use"
	VehicleMaintenance = "maintenance"
)

type User struct {
	ID           int
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Department   string
	Role         string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type VehicleType struct {
	ID   int
	Name string
}

type Vehicle struct {
	ID            int
	Name          string
	Plate         string
	VehicleTypeID int
	Capacity      int
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Booking struct {
	ID           int
	Code         string
	VehicleID    int
	UserID       int
	StartTime    time.Time
	EndTime      time.Time
	Purpose      string
	Destination  string
	Status       string
	StartMileage *int
	EndMileage   *int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

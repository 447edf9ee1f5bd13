package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"fleetbook/internal/db"
	"fleetbook/internal/entities"
	apperrors "fleetbook/internal/errors"

	"github.com/lib/pq"
)

// BookingStore is the persisted booking collection consumed by the
// reservation engine. FindActive and Insert form the engine's critical
// section; the engine serializes them per vehicle.
type BookingStore interface {
	FindActive(vehicleID int, windowStart, windowEnd time.Time, statuses []string) ([]db.Booking, error)
	Insert(booking *db.Booking) error
	UpdateStatus(id int, status string, startMileage, endMileage *int) error
	GetByCode(code string) (*db.Booking, error)
	FindByUser(userID int) ([]db.Booking, error)
	List(filter entities.BookingFilter) ([]entities.BookingResponse, error)
}

type bookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(database *sql.DB) BookingStore {
	return &bookingRepository{db: database}
}

const bookingColumns = `id, code, vehicle_id, user_id, start_time, end_time, purpose, destination, status, start_mileage, end_mileage, created_at, updated_at`

// FindActive returns bookings for the vehicle in any of the given statuses
// whose [start, end) interval overlaps the requested window.
func (r *bookingRepository) FindActive(vehicleID int, windowStart, windowEnd time.Time, statuses []string) ([]db.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE vehicle_id = $1
		  AND status = ANY($2)
		  AND start_time < $3
		  AND end_time > $4
		ORDER BY start_time`
	rows, err := r.db.Query(query, vehicleID, pq.Array(statuses), windowEnd, windowStart)
	if err != nil {
		return nil, fmt.Errorf("error querying active bookings: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *bookingRepository) Insert(booking *db.Booking) error {
	query := `
		INSERT INTO bookings
		(code, vehicle_id, user_id, start_time, end_time, purpose, destination, status, start_mileage, end_mileage, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(query,
		booking.Code,
		booking.VehicleID,
		booking.UserID,
		booking.StartTime,
		booking.EndTime,
		booking.Purpose,
		booking.Destination,
		booking.Status,
		booking.StartMileage,
		booking.EndMileage,
	).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
}

func (r *bookingRepository) UpdateStatus(id int, status string, startMileage, endMileage *int) error {
	result, err := r.db.Exec(`
		UPDATE bookings
		SET status = $1,
		    start_mileage = COALESCE($2, start_mileage),
		    end_mileage = COALESCE($3, end_mileage),
		    updated_at = NOW()
		WHERE id = $4`, status, startMileage, endMileage, id)
	if err != nil {
		return fmt.Errorf("error updating booking status: %w", err)
	}
	return requireRow(result, "booking", id)
}

func (r *bookingRepository) GetByCode(code string) (*db.Booking, error) {
	var b db.Booking
	err := r.db.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE code = $1`, code).Scan(
		&b.ID, &b.Code, &b.VehicleID, &b.UserID, &b.StartTime, &b.EndTime,
		&b.Purpose, &b.Destination, &b.Status, &b.StartMileage, &b.EndMileage,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "booking with code '%s' not found", code)
		}
		return nil, fmt.Errorf("error querying booking: %w", err)
	}
	return &b, nil
}

func (r *bookingRepository) FindByUser(userID int) ([]db.Booking, error) {
	rows, err := r.db.Query(`
		SELECT `+bookingColumns+`
		FROM bookings WHERE user_id = $1
		ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying bookings by user: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (r *bookingRepository) List(filter entities.BookingFilter) ([]entities.BookingResponse, error) {
	query := `
	SELECT
		b.id, b.code, b.vehicle_id, v.name, b.user_id, u.name,
		b.start_time, b.end_time, b.purpose, b.destination, b.status,
		b.start_mileage, b.end_mileage, b.created_at, b.updated_at
	FROM bookings b
	JOIN vehicles v ON v.id = b.vehicle_id
	JOIN vehicle_types vt ON vt.id = v.vehicle_type_id
	JOIN users u ON u.id = b.user_id
	WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if filter.Date != "" {
		query += " AND DATE(b.start_time) = $" + strconv.Itoa(idx)
		args = append(args, filter.Date)
		idx++
	}
	if filter.VehicleType != "" {
		query += " AND vt.name = $" + strconv.Itoa(idx)
		args = append(args, filter.VehicleType)
		idx++
	}
	if filter.Status != "" {
		query += " AND b.status = $" + strconv.Itoa(idx)
		args = append(args, filter.Status)
		idx++
	}
	query += " ORDER BY b.start_time DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing bookings: %w", err)
	}
	defer rows.Close()

	var bookings []entities.BookingResponse
	for rows.Next() {
		var b entities.BookingResponse
		err := rows.Scan(
			&b.ID, &b.Code, &b.VehicleID, &b.VehicleName, &b.UserID, &b.UserName,
			&b.StartTime, &b.EndTime, &b.Purpose, &b.Destination, &b.Status,
			&b.StartMileage, &b.EndMileage, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBookings(rows *sql.Rows) ([]db.Booking, error) {
	var bookings []db.Booking
	for rows.Next() {
		var b db.Booking
		err := rows.Scan(
			&b.ID, &b.Code, &b.VehicleID, &b.UserID, &b.StartTime, &b.EndTime,
			&b.Purpose, &b.Destination, &b.Status, &b.StartMileage, &b.EndMileage,
			&b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

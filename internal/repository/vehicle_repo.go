package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
)

// VehicleStore is the fleet registry consumed by the reservation engine.
type VehicleStore interface {
	GetVehicle(id int) (*db.Vehicle, error)
	List() ([]db.Vehicle, error)
	ListTypes() ([]db.VehicleType, error)
	Insert(vehicle *db.Vehicle) (int, error)
	Update(vehicle *db.Vehicle) error
	SetStatus(id int, status string) error
}

type vehicleRepository struct {
	db *sql.DB
}

func NewVehicleRepository(database *sql.DB) VehicleStore {
	return &vehicleRepository{db: database}
}

func (r *vehicleRepository) GetVehicle(id int) (*db.Vehicle, error) {
	var v db.Vehicle
	err := r.db.QueryRow(`
		SELECT id, name, plate, vehicle_type_id, capacity, status, created_at, updated_at
		FROM vehicles WHERE id = $1`, id).
		Scan(&v.ID, &v.Name, &v.Plate, &v.VehicleTypeID, &v.Capacity, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.New(apperrors.KindNotFound, "vehicle %d not found", id)
		}
		return nil, fmt.Errorf("error querying vehicle: %w", err)
	}
	return &v, nil
}

func (r *vehicleRepository) List() ([]db.Vehicle, error) {
	rows, err := r.db.Query(`
		SELECT id, name, plate, vehicle_type_id, capacity, status, created_at, updated_at
		FROM vehicles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error listing vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []db.Vehicle
	for rows.Next() {
		var v db.Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Plate, &v.VehicleTypeID, &v.Capacity, &v.Status, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (r *vehicleRepository) ListTypes() ([]db.VehicleType, error) {
	rows, err := r.db.Query(`SELECT id, name FROM vehicle_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error listing vehicle types: %w", err)
	}
	defer rows.Close()

	var types []db.VehicleType
	for rows.Next() {
		var vt db.VehicleType
		if err := rows.Scan(&vt.ID, &vt.Name); err != nil {
			return nil, fmt.Errorf("error scanning vehicle type: %w", err)
		}
		types = append(types, vt)
	}
	return types, rows.Err()
}

func (r *vehicleRepository) Insert(vehicle *db.Vehicle) (int, error) {
	query := `
		INSERT INTO vehicles (name, plate, vehicle_type_id, capacity, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id`
	var id int
	err := r.db.QueryRow(query, vehicle.Name, vehicle.Plate, vehicle.VehicleTypeID, vehicle.Capacity, vehicle.Status).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting vehicle: %w", err)
	}
	return id, nil
}

func (r *vehicleRepository) Update(vehicle *db.Vehicle) error {
	result, err := r.db.Exec(`
		UPDATE vehicles
		SET name = $1, plate = $2, vehicle_type_id = $3, capacity = $4, updated_at = NOW()
		WHERE id = $5`,
		vehicle.Name, vehicle.Plate, vehicle.VehicleTypeID, vehicle.Capacity, vehicle.ID)
	if err != nil {
		return fmt.Errorf("error updating vehicle: %w", err)
	}
	return requireRow(result, "vehicle", vehicle.ID)
}

func (r *vehicleRepository) SetStatus(id int, status string) error {
	result, err := r.db.Exec(`UPDATE vehicles SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("error updating vehicle status: %w", err)
	}
	return requireRow(result, "vehicle", id)
}

package service

import (
	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"
)

// FleetService manages vehicle records. Writes are admin-only; every
// authenticated user may read the fleet.
type FleetService struct {
	vehicles repository.VehicleStore
	engine   *BookingService
}

func NewFleetService(vehicles repository.VehicleStore, engine *BookingService) *FleetService {
	return &FleetService{vehicles: vehicles, engine: engine}
}

func (s *FleetService) List(actor *auth.Claims) ([]db.Vehicle, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionReadFleet, 0) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to read the fleet")
	}
	vehicles, err := s.vehicles.List()
	if err != nil {
		return nil, storageErr(err)
	}
	return vehicles, nil
}

func (s *FleetService) ListTypes(actor *auth.Claims) ([]db.VehicleType, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionReadFleet, 0) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to read the fleet")
	}
	types, err := s.vehicles.ListTypes()
	if err != nil {
		return nil, storageErr(err)
	}
	return types, nil
}

func (s *FleetService) Create(actor *auth.Claims, vehicle *db.Vehicle) (int, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionManageFleet, 0) {
		return 0, apperrors.New(apperrors.KindForbidden, "not allowed to manage the fleet")
	}
	vehicle.Status = db.VehicleAvailable
	id, err := s.vehicles.Insert(vehicle)
	if err != nil {
		return 0, storageErr(err)
	}
	return id, nil
}

func (s *FleetService) Update(actor *auth.Claims, vehicle *db.Vehicle) error {
	if !CanPerform(actor.Role, actor.UserID, ActionManageFleet, 0) {
		return apperrors.New(apperrors.KindForbidden, "not allowed to manage the fleet")
	}
	if err := s.vehicles.Update(vehicle); err != nil {
		return storageErr(err)
	}
	return nil
}

// SetMaintenance flips the administrator override. Turning it on parks the
// vehicle regardless of bookings; turning it off hands the status back to
// the derived computation.
func (s *FleetService) SetMaintenance(actor *auth.Claims, vehicleID int, on bool) error {
	if !CanPerform(actor.Role, actor.UserID, ActionManageFleet, 0) {
		return apperrors.New(apperrors.KindForbidden, "not allowed to manage the fleet")
	}
	return s.engine.SetMaintenance(vehicleID, on)
}

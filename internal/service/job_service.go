package service

import (
	"fmt"
	"log"

	"fleetbook/internal/db"
	"fleetbook/internal/repository"
)

// JobService hosts the periodic sweep. The sweep is a freshness mechanism,
// not a correctness one: it only flips derived vehicle statuses when time
// passes with no explicit transition (a reserved window lapsing, a window
// opening on an approved booking).
type JobService struct {
	vehicles repository.VehicleStore
	engine   *BookingService
}

func NewJobService(vehicles repository.VehicleStore, engine *BookingService) *JobService {
	return &JobService{vehicles: vehicles, engine: engine}
}

// SyncVehicleStatuses recomputes the derived status of every vehicle that
// is not under the maintenance override.
func (s *JobService) SyncVehicleStatuses() error {
	vehicles, err := s.vehicles.List()
	if err != nil {
		return fmt.Errorf("sweep: failed to list vehicles: %w", err)
	}

	var failed int
	for _, v := range vehicles {
		if v.Status == db.VehicleMaintenance {
			continue
		}
		if err := s.engine.RefreshVehicleStatus(v.ID); err != nil {
			failed++
			log.Printf("sweep: failed to refresh vehicle %d: %v", v.ID, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("sweep: %d vehicle(s) failed to refresh", failed)
	}
	return nil
}

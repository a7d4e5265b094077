package backend

import (
	"familyledger/internal/repository"
	"familyledger/internal/services"
)

// Services bundles the application services over one store.
type Services struct {
	Transactions  *services.TransactionService
	Periods       *services.PeriodService
	BloodPressure *services.BloodPressureService
	Reports       *services.ReportService
}

// NewServices wires every service to store. publisher may be nil.
func NewServices(store repository.Store, publisher services.ChangePublisher) *Services {
	return &Services{
		Transactions:  services.NewTransactionService(store, publisher),
		Periods:       services.NewPeriodService(store, publisher),
		BloodPressure: services.NewBloodPressureService(store, publisher),
		Reports:       services.NewReportService(store, store),
	}
}

package services

import (
	"context"
	"fmt"
	"strings"

	"familyledger/internal/amqp"
	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/months"
	"familyledger/internal/repository"
)

// PeriodService manages stored accounting months.
type PeriodService struct {
	store     repository.PeriodStore
	publisher ChangePublisher
}

func NewPeriodService(store repository.PeriodStore, publisher ChangePublisher) *PeriodService {
	return &PeriodService{store: store, publisher: publisher}
}

func validatePeriod(p core.Period) error {
	if err := p.Validate(); err != nil {
		return invalid(err)
	}
	if _, ok := months.NameToOrdinal(p.Month); !ok {
		return invalid(fmt.Errorf("%w: %q", fiscal.ErrUnknownMonth, p.Month))
	}
	return nil
}

func (s *PeriodService) Create(ctx context.Context, p core.Period) (core.Period, error) {
	p.Month = strings.TrimSpace(p.Month)
	if err := validatePeriod(p); err != nil {
		return core.Period{}, err
	}
	created, err := s.store.CreatePeriod(ctx, p)
	if err != nil {
		return core.Period{}, storeErr("create period", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionPeriods, created.ID, amqp.OpUpsert, 0, created.Year))
	return created, nil
}

func (s *PeriodService) Update(ctx context.Context, p core.Period) (core.Period, error) {
	p.Month = strings.TrimSpace(p.Month)
	if err := validatePeriod(p); err != nil {
		return core.Period{}, err
	}
	old, err := s.store.GetPeriod(ctx, p.ID)
	if err != nil {
		return core.Period{}, storeErr("get period", err)
	}
	updated, err := s.store.UpdatePeriod(ctx, p)
	if err != nil {
		return core.Period{}, storeErr("update period", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionPeriods, updated.ID, amqp.OpUpsert, 0, updated.Year))
	if old.Year != updated.Year {
		notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionPeriods, updated.ID, amqp.OpUpsert, 0, old.Year))
	}
	return updated, nil
}

func (s *PeriodService) Delete(ctx context.Context, id string) error {
	old, err := s.store.GetPeriod(ctx, id)
	if err != nil {
		return storeErr("get period", err)
	}
	if err := s.store.DeletePeriod(ctx, id); err != nil {
		return storeErr("delete period", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionPeriods, id, amqp.OpDelete, 0, old.Year))
	return nil
}

func (s *PeriodService) Get(ctx context.Context, id string) (core.Period, error) {
	p, err := s.store.GetPeriod(ctx, id)
	if err != nil {
		return core.Period{}, storeErr("get period", err)
	}
	return p, nil
}

// List returns every period, latest start first.
func (s *PeriodService) List(ctx context.Context) ([]core.Period, error) {
	periods, err := s.store.ListPeriods(ctx)
	if err != nil {
		return nil, storeErr("list periods", err)
	}
	return periods, nil
}

// Suggest proposes the default 13th-to-12th window for a new period. The
// result is not stored.
func (s *PeriodService) Suggest(label string, displayYear int) (core.Period, error) {
	year, err := calendarYear(displayYear)
	if err != nil {
		return core.Period{}, err
	}
	w, err := fiscal.WindowForLabel(label, year)
	if err != nil {
		return core.Period{}, invalid(err)
	}
	return core.Period{Month: strings.TrimSpace(label), Year: year, Start: w.Start, End: w.End}, nil
}

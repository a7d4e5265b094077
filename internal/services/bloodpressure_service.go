package services

import (
	"context"

	"cloud.google.com/go/civil"

	"familyledger/internal/amqp"
	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository"
)

type BloodPressureService struct {
	store     repository.BloodPressureStore
	publisher ChangePublisher
}

func NewBloodPressureService(store repository.BloodPressureStore, publisher ChangePublisher) *BloodPressureService {
	return &BloodPressureService{store: store, publisher: publisher}
}

func (s *BloodPressureService) Create(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	if err := b.Validate(); err != nil {
		return core.BloodPressure{}, invalid(err)
	}
	created, err := s.store.CreateBloodPressure(ctx, b)
	if err != nil {
		return core.BloodPressure{}, storeErr("create blood pressure", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionBloodPressure, created.ID, amqp.OpUpsert, 0, 0))
	return created, nil
}

func (s *BloodPressureService) Update(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	if err := b.Validate(); err != nil {
		return core.BloodPressure{}, invalid(err)
	}
	updated, err := s.store.UpdateBloodPressure(ctx, b)
	if err != nil {
		return core.BloodPressure{}, storeErr("update blood pressure", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionBloodPressure, updated.ID, amqp.OpUpsert, 0, 0))
	return updated, nil
}

func (s *BloodPressureService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteBloodPressure(ctx, id); err != nil {
		return storeErr("delete blood pressure", err)
	}
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(amqp.CollectionBloodPressure, id, amqp.OpDelete, 0, 0))
	return nil
}

func (s *BloodPressureService) Get(ctx context.Context, id string) (core.BloodPressure, error) {
	b, err := s.store.GetBloodPressure(ctx, id)
	if err != nil {
		return core.BloodPressure{}, storeErr("get blood pressure", err)
	}
	return b, nil
}

func (s *BloodPressureService) List(ctx context.Context) ([]core.BloodPressure, error) {
	out, err := s.store.ListBloodPressure(ctx)
	if err != nil {
		return nil, storeErr("list blood pressure", err)
	}
	return out, nil
}

// Range returns the readings between start and end, both included.
func (s *BloodPressureService) Range(ctx context.Context, start, end civil.Date) ([]core.BloodPressure, error) {
	w, err := fiscal.NewWindow(start, end)
	if err != nil {
		return nil, invalid(err)
	}
	out, err := s.store.BloodPressureByDateRange(ctx, w)
	if err != nil {
		return nil, storeErr("blood pressure range", err)
	}
	return out, nil
}

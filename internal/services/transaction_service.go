package services

import (
	"context"
	"log/slog"

	"familyledger/internal/amqp"
	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository"
)

// TransactionService validates and stores account and credit records, then
// announces each write.
type TransactionService struct {
	store     repository.TransactionStore
	publisher ChangePublisher
}

func NewTransactionService(store repository.TransactionStore, publisher ChangePublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher}
}

// summaryYear is the accounting year a transaction date counts toward.
func summaryYear(tx core.Transaction) int {
	_, year := fiscal.PeriodOf(tx.Date)
	return year
}

func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	created, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, storeErr("create transaction", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"domain", created.Domain,
		"id", created.ID,
		"date", created.Date.String())

	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(created.Domain.String(), created.ID, amqp.OpUpsert, created.Version, summaryYear(created)))
	return created, nil
}

// Update replaces a record. When the date moves to another accounting year
// both years are announced so each summary is refreshed.
func (s *TransactionService) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		return core.Transaction{}, invalid(ErrMissingID)
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, invalid(err)
	}
	old, err := s.store.GetTransaction(ctx, tx.Domain, tx.ID)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	updated, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, storeErr("update transaction", err)
	}

	collection := updated.Domain.String()
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(collection, updated.ID, amqp.OpUpsert, updated.Version, summaryYear(updated)))
	if prev := summaryYear(old); prev != summaryYear(updated) {
		notify(ctx, s.publisher, amqp.NewRecordChangeMessage(collection, updated.ID, amqp.OpUpsert, updated.Version, prev))
	}
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, domain core.Domain, id string) error {
	if !domain.IsValid() {
		return invalid(core.ErrInvalidDomain)
	}
	old, err := s.store.GetTransaction(ctx, domain, id)
	if err != nil {
		return storeErr("get transaction", err)
	}
	if err := s.store.DeleteTransaction(ctx, domain, id); err != nil {
		return storeErr("delete transaction", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "domain", domain, "id", id)
	notify(ctx, s.publisher, amqp.NewRecordChangeMessage(domain.String(), id, amqp.OpDelete, old.Version, summaryYear(old)))
	return nil
}

func (s *TransactionService) Get(ctx context.Context, domain core.Domain, id string) (core.Transaction, error) {
	if !domain.IsValid() {
		return core.Transaction{}, invalid(core.ErrInvalidDomain)
	}
	tx, err := s.store.GetTransaction(ctx, domain, id)
	if err != nil {
		return core.Transaction{}, storeErr("get transaction", err)
	}
	return tx, nil
}

// List returns every record of a domain, newest first.
func (s *TransactionService) List(ctx context.Context, domain core.Domain) ([]core.Transaction, error) {
	if !domain.IsValid() {
		return nil, invalid(core.ErrInvalidDomain)
	}
	txs, err := s.store.ListTransactions(ctx, domain)
	if err != nil {
		return nil, storeErr("list transactions", err)
	}
	return txs, nil
}

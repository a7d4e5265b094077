package backend

import (
	"context"

	"familyledger/internal/amqp"
	"familyledger/internal/repository"
	"familyledger/internal/services"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult holds the selected store, its optional change publisher and
// the services built on top of them.
type BackendResult struct {
	Store     repository.Store
	Publisher services.ChangePublisher // nil when AMQP is not configured
	AMQP      *amqp.Client
	Services  *Services
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory specific; empty means no seed files
	SeedDir string

	// Optional change publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Package store defines the persistence interface for cap tables, saved
// scenarios, and their payouts. Implementations include PostgreSQL (source
// of truth), Redis (read-through cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Cap tables ---

	// CreateCapTable persists a new cap table.
	CreateCapTable(ctx context.Context, ct *model.CapTable) error

	// GetCapTable retrieves a cap table by its ID.
	GetCapTable(ctx context.Context, id string) (*model.CapTable, error)

	// ListCapTables returns all cap tables.
	ListCapTables(ctx context.Context) ([]model.CapTable, error)

	// --- Scenarios ---

	// SaveScenario inserts or updates a scenario.
	SaveScenario(ctx context.Context, sc *model.Scenario) error

	// GetScenario retrieves a scenario by its ID.
	GetScenario(ctx context.Context, id string) (*model.Scenario, error)

	// ListScenariosByCapTable returns all saved scenarios for a cap table.
	ListScenariosByCapTable(ctx context.Context, capTableID string) ([]model.Scenario, error)

	// --- Payouts ---

	// ReplacePayouts replaces the payout set for a scenario. Payouts are
	// recomputed wholesale on every save, never patched.
	ReplacePayouts(ctx context.Context, scenarioID string, payouts []model.Payout) error

	// GetPayoutsByScenario returns the stored payouts for a scenario.
	GetPayoutsByScenario(ctx context.Context, scenarioID string) ([]model.Payout, error)
}

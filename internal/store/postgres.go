package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/antiwork/flexile-sub003/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Equity structures are stored as JSONB documents; monetary values are
// stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateCapTable(ctx context.Context, ct *model.CapTable) error {
	structure, err := json.Marshal(ct.Structure)
	if err != nil {
		return fmt.Errorf("marshal cap table structure: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO cap_tables (id, name, structure, created_at)
		 VALUES ($1, $2, $3::JSONB, $4)`,
		ct.ID, ct.Name, structure, ct.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetCapTable(ctx context.Context, id string) (*model.CapTable, error) {
	var ct model.CapTable
	var structure []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, structure, created_at FROM cap_tables WHERE id = $1`, id).
		Scan(&ct.ID, &ct.Name, &structure, &ct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("cap table %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cap table %s: %w", id, err)
	}

	if err := json.Unmarshal(structure, &ct.Structure); err != nil {
		return nil, fmt.Errorf("unmarshal cap table %s structure: %w", id, err)
	}
	return &ct, nil
}

func (s *PostgresStore) ListCapTables(ctx context.Context) ([]model.CapTable, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, structure, created_at FROM cap_tables ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.CapTable
	for rows.Next() {
		var ct model.CapTable
		var structure []byte
		if err := rows.Scan(&ct.ID, &ct.Name, &structure, &ct.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(structure, &ct.Structure); err != nil {
			return nil, fmt.Errorf("unmarshal cap table %s structure: %w", ct.ID, err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveScenario(ctx context.Context, sc *model.Scenario) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scenarios (id, cap_table_id, name, description, exit_amount_cents, exit_date, status, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   description = EXCLUDED.description,
		   exit_amount_cents = EXCLUDED.exit_amount_cents,
		   exit_date = EXCLUDED.exit_date,
		   status = EXCLUDED.status`,
		sc.ID, sc.CapTableID, sc.Name, sc.Description,
		sc.ExitAmountCents.String(), sc.ExitDate, sc.Status, sc.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetScenario(ctx context.Context, id string) (*model.Scenario, error) {
	var sc model.Scenario
	var exitAmount string

	err := s.pool.QueryRow(ctx,
		`SELECT id, cap_table_id, name, description,
		        exit_amount_cents::TEXT, exit_date, status, created_at
		 FROM scenarios WHERE id = $1`, id).
		Scan(&sc.ID, &sc.CapTableID, &sc.Name, &sc.Description,
			&exitAmount, &sc.ExitDate, &sc.Status, &sc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scenario %s: %w", id, err)
	}

	sc.ExitAmountCents, _ = decimal.NewFromString(exitAmount)
	return &sc, nil
}

func (s *PostgresStore) ListScenariosByCapTable(ctx context.Context, capTableID string) ([]model.Scenario, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, cap_table_id, name, description,
		        exit_amount_cents::TEXT, exit_date, status, created_at
		 FROM scenarios WHERE cap_table_id = $1 ORDER BY created_at`, capTableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Scenario
	for rows.Next() {
		var sc model.Scenario
		var exitAmount string
		if err := rows.Scan(&sc.ID, &sc.CapTableID, &sc.Name, &sc.Description,
			&exitAmount, &sc.ExitDate, &sc.Status, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.ExitAmountCents, _ = decimal.NewFromString(exitAmount)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ReplacePayouts swaps the payout set for a scenario atomically: payouts are
// recomputed wholesale on every save, so partial updates never make sense.
func (s *PostgresStore) ReplacePayouts(ctx context.Context, scenarioID string, payouts []model.Payout) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM payouts WHERE scenario_id = $1`, scenarioID); err != nil {
		return err
	}

	for _, p := range payouts {
		if _, err := tx.Exec(ctx,
			`INSERT INTO payouts (scenario_id, investor_id, share_class_id, share_class_name,
			                      number_of_shares, liquidation_preference_cents,
			                      participation_cents, common_proceeds_cents, total_cents)
			 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9::NUMERIC)`,
			scenarioID, p.InvestorID, p.ShareClassID, p.ShareClassName,
			p.NumberOfShares.String(), p.LiquidationPreferenceCents.String(),
			p.ParticipationCents.String(), p.CommonProceedsCents.String(),
			p.TotalCents.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetPayoutsByScenario(ctx context.Context, scenarioID string) ([]model.Payout, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT investor_id, share_class_id, share_class_name,
		        number_of_shares::TEXT, liquidation_preference_cents::TEXT,
		        participation_cents::TEXT, common_proceeds_cents::TEXT, total_cents::TEXT
		 FROM payouts WHERE scenario_id = $1 ORDER BY total_cents DESC, investor_id, share_class_id`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Payout
	for rows.Next() {
		var p model.Payout
		var shares, pref, part, common, total string
		if err := rows.Scan(&p.InvestorID, &p.ShareClassID, &p.ShareClassName,
			&shares, &pref, &part, &common, &total); err != nil {
			return nil, err
		}
		p.NumberOfShares, _ = decimal.NewFromString(shares)
		p.LiquidationPreferenceCents, _ = decimal.NewFromString(pref)
		p.ParticipationCents, _ = decimal.NewFromString(part)
		p.CommonProceedsCents, _ = decimal.NewFromString(common)
		p.TotalCents, _ = decimal.NewFromString(total)
		out = append(out, p)
	}
	return out, rows.Err()
}

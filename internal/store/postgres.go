package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/perpsignal/crashwatch/internal/engine"
)

// History is the Postgres append-only evaluation log.
type History struct {
	db *sqlx.DB
}

// OpenHistory connects to Postgres and ensures the schema exists.
func OpenHistory(dsn string) (*History, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting postgres: %w", err)
	}
	h := &History{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// NewHistory wraps an existing connection, used by tests.
func NewHistory(db *sqlx.DB) *History {
	return &History{db: db}
}

// Close releases the connection pool.
func (h *History) Close() error { return h.db.Close() }

const historySchema = `
CREATE TABLE IF NOT EXISTS risk_history (
	id                BIGSERIAL PRIMARY KEY,
	symbol            TEXT        NOT NULL,
	ts                TIMESTAMPTZ NOT NULL,
	price             DOUBLE PRECISION NOT NULL,
	crash_probability DOUBLE PRECISION NOT NULL,
	regime            TEXT        NOT NULL,
	trend_strength    DOUBLE PRECISION NOT NULL,
	market_strength   DOUBLE PRECISION NOT NULL,
	funding_stress    DOUBLE PRECISION NOT NULL,
	entry_signal      BOOLEAN     NOT NULL,
	exit_signal       BOOLEAN     NOT NULL,
	position_size     DOUBLE PRECISION NOT NULL,
	stop_loss_pct     DOUBLE PRECISION NOT NULL,
	UNIQUE (symbol, ts)
);
CREATE INDEX IF NOT EXISTS risk_history_symbol_ts ON risk_history (symbol, ts DESC);
`

func (h *History) migrate() error {
	if _, err := h.db.Exec(historySchema); err != nil {
		return fmt.Errorf("store: migrating schema: %w", err)
	}
	return nil
}

const insertHistory = `
INSERT INTO risk_history (
	symbol, ts, price, crash_probability, regime,
	trend_strength, market_strength, funding_stress,
	entry_signal, exit_signal, position_size, stop_loss_pct
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (symbol, ts) DO NOTHING`

// Append records one snapshot. Re-running a cycle over the same bar is
// a no-op thanks to the (symbol, ts) uniqueness.
func (h *History) Append(ctx context.Context, snap engine.Snapshot) error {
	_, err := h.db.ExecContext(ctx, insertHistory,
		snap.Symbol, snap.Timestamp, snap.Price, snap.CrashProbability, string(snap.Regime),
		snap.TrendStrength, snap.MarketStrength, snap.FundingStress,
		snap.Entry, snap.Exit, snap.PositionSize, snap.StopLossPct,
	)
	if err != nil {
		return fmt.Errorf("store: appending %s: %w", snap.Symbol, err)
	}
	return nil
}

// HistoryRow is one persisted evaluation.
type HistoryRow struct {
	Symbol           string    `db:"symbol"`
	Timestamp        time.Time `db:"ts"`
	Price            float64   `db:"price"`
	CrashProbability float64   `db:"crash_probability"`
	Regime           string    `db:"regime"`
	TrendStrength    float64   `db:"trend_strength"`
	MarketStrength   float64   `db:"market_strength"`
	FundingStress    float64   `db:"funding_stress"`
	Entry            bool      `db:"entry_signal"`
	Exit             bool      `db:"exit_signal"`
	PositionSize     float64   `db:"position_size"`
	StopLossPct      float64   `db:"stop_loss_pct"`
}

const selectRecent = `
SELECT symbol, ts, price, crash_probability, regime,
       trend_strength, market_strength, funding_stress,
       entry_signal, exit_signal, position_size, stop_loss_pct
FROM risk_history
WHERE symbol = $1
ORDER BY ts DESC
LIMIT $2`

// Recent returns the latest limit rows for symbol, newest first.
func (h *History) Recent(ctx context.Context, symbol string, limit int) ([]HistoryRow, error) {
	rows := []HistoryRow{}
	if err := h.db.SelectContext(ctx, &rows, selectRecent, symbol, limit); err != nil {
		return nil, fmt.Errorf("store: reading history for %s: %w", symbol, err)
	}
	return rows, nil
}

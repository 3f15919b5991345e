package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/budget-bot/internal/budget"
	"github.com/Proton-105/budget-bot/internal/database"
	"github.com/Proton-105/budget-bot/internal/domain"
)

// RecordRepository persists budget records in PostgreSQL or SQLite.
type RecordRepository struct {
	db     *sql.DB
	driver database.Driver
	log    *slog.Logger
}

var _ budget.Store = (*RecordRepository)(nil)

// NewRecordRepository creates a SQL-backed record repository for driver.
func NewRecordRepository(db *sql.DB, driver database.Driver, log *slog.Logger) *RecordRepository {
	if log == nil {
		log = slog.Default()
	}

	return &RecordRepository{
		db:     db,
		driver: driver,
		log:    log,
	}
}

// Get loads the record of userID or returns budget.ErrRecordNotFound.
func (r *RecordRepository) Get(ctx context.Context, userID int64) (*domain.Record, error) {
	query := r.driver.Rebind(`
		SELECT user_id, total_amount, days, start_date, purchases, timezone_offset, phase
		FROM budget_records
		WHERE user_id = ?
	`)

	var (
		rec       domain.Record
		startDate timestampValue
		purchases []byte
		phase     string
	)

	if err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID,
		&rec.TotalAmount,
		&rec.Days,
		&startDate,
		&purchases,
		&rec.TimezoneOffset,
		&phase,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, budget.ErrRecordNotFound
		}

		r.log.Error("failed to fetch budget record", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, fmt.Errorf("select budget record: %w", err)
	}

	rec.StartDate = startDate.Time
	rec.Phase = domain.Phase(phase)

	if err := json.Unmarshal(purchases, &rec.Purchases); err != nil {
		return nil, fmt.Errorf("decode purchases of user %d: %w", userID, err)
	}
	if rec.Purchases == nil {
		rec.Purchases = []decimal.Decimal{}
	}

	return &rec, nil
}

// Put inserts or fully replaces the record.
func (r *RecordRepository) Put(ctx context.Context, rec *domain.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}

	purchases := rec.Purchases
	if purchases == nil {
		purchases = []decimal.Decimal{}
	}
	encoded, err := json.Marshal(purchases)
	if err != nil {
		return fmt.Errorf("encode purchases: %w", err)
	}

	query := r.driver.Rebind(`
		INSERT INTO budget_records
			(user_id, total_amount, days, start_date, purchases, timezone_offset, phase, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			total_amount = excluded.total_amount,
			days = excluded.days,
			start_date = excluded.start_date,
			purchases = excluded.purchases,
			timezone_offset = excluded.timezone_offset,
			phase = excluded.phase,
			updated_at = excluded.updated_at
	`)

	if _, err := r.db.ExecContext(
		ctx,
		query,
		rec.UserID,
		rec.TotalAmount.String(),
		rec.Days,
		r.timeArg(rec.StartDate),
		string(encoded),
		rec.TimezoneOffset,
		string(rec.Phase),
		r.timeArg(time.Now()),
	); err != nil {
		r.log.Error("failed to save budget record", slog.Int64("user_id", rec.UserID), slog.Any("error", err))
		return fmt.Errorf("upsert budget record: %w", err)
	}

	return nil
}

// Delete removes the record; deleting a missing record is not an error.
func (r *RecordRepository) Delete(ctx context.Context, userID int64) error {
	query := r.driver.Rebind(`DELETE FROM budget_records WHERE user_id = ?`)

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		r.log.Error("failed to delete budget record", slog.Int64("user_id", userID), slog.Any("error", err))
		return fmt.Errorf("delete budget record: %w", err)
	}

	return nil
}

// CountByPhase returns the number of records per stored phase. Legacy rows
// without a phase are reported under the phase derived from their sentinels.
func (r *RecordRepository) CountByPhase(ctx context.Context) (map[domain.Phase]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT total_amount, days, phase FROM budget_records`)
	if err != nil {
		return nil, fmt.Errorf("select phases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.Phase]int)
	for rows.Next() {
		var (
			total decimal.Decimal
			days  int
			phase string
		)
		if err := rows.Scan(&total, &days, &phase); err != nil {
			return nil, fmt.Errorf("scan phase: %w", err)
		}

		rec := domain.Record{TotalAmount: total, Days: days, Phase: domain.Phase(phase)}
		counts[rec.CurrentPhase()]++
	}

	return counts, rows.Err()
}

// HealthCheck pings the database.
func (r *RecordRepository) HealthCheck(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// timeArg formats timestamps for the driver: postgres takes time.Time,
// sqlite stores RFC 3339 text.
func (r *RecordRepository) timeArg(t time.Time) any {
	if r.driver == database.DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

// timestampValue scans timestamps stored natively or as text.
type timestampValue struct {
	Time time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (v *timestampValue) Scan(src any) error {
	switch value := src.(type) {
	case time.Time:
		v.Time = value.UTC()
		return nil
	case string:
		return v.parse(value)
	case []byte:
		return v.parse(string(value))
	case nil:
		v.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (v *timestampValue) parse(text string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			v.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", text)
}

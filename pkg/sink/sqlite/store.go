// Package sqlite is a local append-only row sink backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fitglue/healthsync/pkg/dailymetrics"
)

// Store appends one row per record. Rows for the same date accumulate.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the database file and migrates the schema. Use
// ":memory:" for a throwaway database.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS daily_metrics (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	date                   TEXT NOT NULL,
	steps                  INTEGER,
	resting_heart_rate     INTEGER,
	bed_time               TEXT,
	wake_time              TEXT,
	total_sleep_hours      TEXT,
	total_wake_minutes     INTEGER NOT NULL,
	light_sleep_minutes    INTEGER NOT NULL,
	deep_sleep_minutes     INTEGER NOT NULL,
	rem_sleep_minutes      INTEGER NOT NULL,
	breathing_rate         REAL,
	heart_rate_variability REAL,
	skin_temperature_delta REAL,
	spo2_average           REAL,
	very_active_minutes    INTEGER NOT NULL,
	fairly_active_minutes  INTEGER NOT NULL,
	lightly_active_minutes INTEGER NOT NULL,
	sedentary_minutes      INTEGER NOT NULL,
	appended_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_daily_metrics_date ON daily_metrics (date, id);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const columns = `date, steps, resting_heart_rate, bed_time, wake_time, total_sleep_hours,
	total_wake_minutes, light_sleep_minutes, deep_sleep_minutes, rem_sleep_minutes,
	breathing_rate, heart_rate_variability, skin_temperature_delta, spo2_average,
	very_active_minutes, fairly_active_minutes, lightly_active_minutes, sedentary_minutes`

// AppendRow inserts rec as a new row.
func (s *Store) AppendRow(ctx context.Context, rec *dailymetrics.Record) error {
	query := `INSERT INTO daily_metrics (` + columns + `, appended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Date, nullInt(rec.Steps), nullInt(rec.RestingHeartRate),
		nullString(rec.BedTime), nullString(rec.WakeTime), nullString(rec.TotalSleepHours),
		rec.TotalWakeMinutes, rec.LightSleepMinutes, rec.DeepSleepMinutes, rec.RemSleepMinutes,
		nullFloat(rec.BreathingRate), nullFloat(rec.HeartRateVariability),
		nullFloat(rec.SkinTemperatureDelta), nullFloat(rec.SpO2Average),
		rec.VeryActiveMinutes, rec.FairlyActiveMinutes, rec.LightlyActiveMinutes, rec.SedentaryMinutes,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert daily metrics for %s: %w", rec.Date, err)
	}
	return nil
}

// Rows returns every row for date in insertion order. An empty date returns
// all rows.
func (s *Store) Rows(ctx context.Context, date string) ([]*dailymetrics.Record, error) {
	query := `SELECT ` + columns + ` FROM daily_metrics`
	var args []interface{}
	if date != "" {
		query += ` WHERE date = ?`
		args = append(args, date)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily metrics: %w", err)
	}
	defer rows.Close()

	var out []*dailymetrics.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Reset deletes every row.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM daily_metrics`); err != nil {
		return fmt.Errorf("failed to reset daily metrics: %w", err)
	}
	return nil
}

func scanRecord(rows *sql.Rows) (*dailymetrics.Record, error) {
	var (
		rec                       dailymetrics.Record
		steps, resting            sql.NullInt64
		bed, wake, hours          sql.NullString
		breathing, hrv, temp, spo sql.NullFloat64
	)
	err := rows.Scan(&rec.Date, &steps, &resting, &bed, &wake, &hours,
		&rec.TotalWakeMinutes, &rec.LightSleepMinutes, &rec.DeepSleepMinutes, &rec.RemSleepMinutes,
		&breathing, &hrv, &temp, &spo,
		&rec.VeryActiveMinutes, &rec.FairlyActiveMinutes, &rec.LightlyActiveMinutes, &rec.SedentaryMinutes)
	if err != nil {
		return nil, fmt.Errorf("failed to scan daily metrics: %w", err)
	}
	rec.Steps = intPtr(steps)
	rec.RestingHeartRate = intPtr(resting)
	rec.BedTime = stringPtr(bed)
	rec.WakeTime = stringPtr(wake)
	rec.TotalSleepHours = stringPtr(hours)
	rec.BreathingRate = floatPtr(breathing)
	rec.HeartRateVariability = floatPtr(hrv)
	rec.SkinTemperatureDelta = floatPtr(temp)
	rec.SpO2Average = floatPtr(spo)
	return &rec, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package journal stores one entry per transaction submitted during a run, so that fees and
// outcomes of a run can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hashicorp/go-uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ledger-labs/hedera-scenarios/ledger/services/logging"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

var logger = logging.MustGetLogger()

const (
	SQLite   = "sqlite"
	Postgres = "postgres"

	DefaultTable = "journal"
)

// Entry is one submitted transaction or paid query.
type Entry struct {
	ID            string
	RunID         string
	Scenario      string
	Kind          string
	TransactionID string
	Payer         string
	Status        string
	Fee           int64
	Duration      time.Duration
	Error         string
	StoredAt      time.Time
}

// NewRunID returns a fresh identifier grouping the entries of one run.
func NewRunID() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", errors.Wrap(err, "failed generating run id")
	}
	return id, nil
}

type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// Open connects to the journal database. driver is either sqlite or postgres.
func Open(driver, dataSource string) (*Store, error) {
	var driverName string
	switch driver {
	case SQLite:
		driverName = "sqlite"
	case Postgres:
		driverName = "pgx"
	default:
		return nil, errors.Errorf("unknown journal driver [%s], expected %s or %s", driver, SQLite, Postgres)
	}
	db, err := sql.Open(driverName, dataSource)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening %s journal", driver)
	}
	if driver == SQLite {
		// a single writer avoids SQLITE_BUSY under concurrent scenarios
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed connecting to %s journal", driver)
	}
	logger.Debugf("opened %s journal", driver)
	return NewStore(db, DefaultTable), nil
}

func NewStore(db *sql.DB, table string) *Store {
	return &Store{db: db, table: table, now: time.Now}
}

func (s *Store) CreateSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT NOT NULL PRIMARY KEY,
			run_id TEXT NOT NULL,
			scenario TEXT NOT NULL,
			kind TEXT NOT NULL,
			tx_id TEXT NOT NULL,
			payer TEXT NOT NULL,
			status TEXT NOT NULL,
			fee BIGINT NOT NULL,
			duration_ns BIGINT NOT NULL,
			error TEXT NOT NULL,
			stored_at BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_run_%[1]s ON %[1]s ( run_id );`, s.table)
	logger.Debug(schema)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrapf(err, "failed creating journal schema")
	}
	return nil
}

// Append stores e. An empty ID is filled with a fresh uuid.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if len(e.RunID) == 0 {
		return errors.New("journal entry without run id")
	}
	if len(e.ID) == 0 {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return errors.Wrap(err, "failed generating entry id")
		}
		e.ID = id
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = s.now()
	}
	query := fmt.Sprintf("INSERT INTO %s (id, run_id, scenario, kind, tx_id, payer, status, fee, duration_ns, error, stored_at) "+
		"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)", s.table)
	logger.Debug(query, e.ID, e.RunID, e.Kind, e.TransactionID)

	span := trace.SpanFromContext(ctx)
	span.AddEvent("journal_append", trace.WithAttributes(attribute.String("tx_id", e.TransactionID)))
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.Scenario, e.Kind, e.TransactionID, e.Payer, e.Status,
		e.Fee, e.Duration.Nanoseconds(), e.Error, e.StoredAt.UnixNano())
	if err != nil {
		return errors.Wrapf(err, "failed storing journal entry for [%s]", e.TransactionID)
	}
	return nil
}

// Query returns the entries of a run in insertion order.
func (s *Store) Query(ctx context.Context, runID string) ([]Entry, error) {
	query := fmt.Sprintf("SELECT id, run_id, scenario, kind, tx_id, payer, status, fee, duration_ns, error, stored_at "+
		"FROM %s WHERE run_id = $1 ORDER BY stored_at, id", s.table)
	logger.Debug(query, runID)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed querying journal of run [%s]", runID)
	}
	defer closeQuietly(rows)

	var res []Entry
	for rows.Next() {
		var (
			e        Entry
			duration int64
			storedAt int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Scenario, &e.Kind, &e.TransactionID, &e.Payer, &e.Status,
			&e.Fee, &duration, &e.Error, &storedAt); err != nil {
			return res, errors.Wrapf(err, "failed scanning journal entry")
		}
		e.Duration = time.Duration(duration)
		e.StoredAt = time.Unix(0, storedAt)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return res, errors.Wrapf(err, "failed iterating journal of run [%s]", runID)
	}
	trace.SpanFromContext(ctx).AddEvent("journal_query", trace.WithAttributes(attribute.Int("result_rows", len(res))))
	return res, nil
}

// Totals aggregates a run.
type Totals struct {
	Entries  int
	Failures int
	Fees     int64
}

func (s *Store) Totals(ctx context.Context, runID string) (Totals, error) {
	query := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(CASE WHEN status <> 'SUCCESS' THEN 1 ELSE 0 END), 0), COALESCE(SUM(fee), 0) "+
		"FROM %s WHERE run_id = $1", s.table)
	logger.Debug(query, runID)

	var t Totals
	if err := s.db.QueryRowContext(ctx, query, runID).Scan(&t.Entries, &t.Failures, &t.Fees); err != nil {
		return Totals{}, errors.Wrapf(err, "failed counting journal of run [%s]", runID)
	}
	return t, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type closer interface {
	Close() error
}

func closeQuietly(c closer) {
	if err := c.Close(); err != nil {
		logger.Errorf("failed closing rows: %s", err)
	}
}

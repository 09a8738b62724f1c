/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteJournal(t *testing.T) {
	ctx := context.Background()
	store, err := Open(SQLite, "file:"+filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer func() { assert.NoError(t, store.Close()) }()
	require.NoError(t, store.CreateSchema(ctx))
	require.NoError(t, store.CreateSchema(ctx))

	runID, err := NewRunID()
	require.NoError(t, err)
	otherRun, err := NewRunID()
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0)
	entries := []Entry{
		{RunID: runID, Scenario: "Create a mintable token", Kind: "TokenCreate", TransactionID: "0.0.5613562@1.1", Payer: "0.0.5613562", Status: "SUCCESS", Fee: 50_000_000, Duration: 3 * time.Second, StoredAt: base},
		{RunID: runID, Scenario: "Create a mintable token", Kind: "TokenMint", TransactionID: "0.0.5613562@1.2", Payer: "0.0.5613562", Status: "TOKEN_HAS_NO_SUPPLY_KEY", Fee: 100_000, Error: "mint refused", StoredAt: base.Add(time.Second)},
		{RunID: otherRun, Kind: "ConsensusCreateTopic", TransactionID: "0.0.5613563@1.3", Payer: "0.0.5613563", Status: "SUCCESS", Fee: 1_000_000},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	got, err := store.Query(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "TokenCreate", got[0].Kind)
	assert.Equal(t, 3*time.Second, got[0].Duration)
	assert.True(t, base.Equal(got[0].StoredAt))
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "mint refused", got[1].Error)

	totals, err := store.Totals(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, Totals{Entries: 2, Failures: 1, Fees: 50_100_000}, totals)

	totals, err = store.Totals(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, totals)
}

func TestAppendRequiresRun(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	assert.Error(t, NewStore(db, DefaultTable).Append(context.Background(), Entry{Kind: "TokenMint"}))
}

func TestAppendStatement(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	store := NewStore(db, "JOURNAL")
	at := time.Unix(0, 42)

	mockDB.ExpectExec("INSERT INTO JOURNAL \\(id, run_id, scenario, kind, tx_id, payer, status, fee, duration_ns, error, stored_at\\) "+
		"VALUES \\(\\$1, \\$2, \\$3, \\$4, \\$5, \\$6, \\$7, \\$8, \\$9, \\$10, \\$11\\)").
		WithArgs("e1", "r1", "s", "CryptoTransfer", "tx", "0.0.1", "SUCCESS", int64(7), int64(5), "", int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.Append(context.Background(), Entry{
		ID: "e1", RunID: "r1", Scenario: "s", Kind: "CryptoTransfer", TransactionID: "tx", Payer: "0.0.1",
		Status: "SUCCESS", Fee: 7, Duration: 5, StoredAt: at,
	}))
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestQueryError(t *testing.T) {
	db, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	mockDB.ExpectQuery("SELECT .* FROM journal WHERE run_id = \\$1").
		WithArgs("r1").
		WillReturnError(errors.New("connection reset"))

	_, err = NewStore(db, DefaultTable).Query(context.Background(), "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mongo", "")
	assert.Error(t, err)
}

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		native   string
		maxLen   int
		wantCat  schema.Category
		wantSize int
	}{
		{"integer", 0, schema.CategoryInteger, 0},
		{"character varying", 255, schema.CategoryVarchar, 255},
		{"text", 0, schema.CategoryText, 0},
		{"uuid", 0, schema.CategoryGUID, 0},
		{"bytea", 0, schema.CategoryBinary, 0},
		{"frobnicate", 0, schema.CategoryUnknown, 0},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			got := ParseType(tt.native, tt.maxLen, 0, 0)
			assert.Equal(t, tt.wantCat, got.Category)
			assert.Equal(t, tt.wantSize, got.Size)
		})
	}
}

func TestReservedWords(t *testing.T) {
	assert.True(t, (&Adapter{}).ReservedWords("SELECT"))
	assert.True(t, (&Adapter{}).ReservedWords("order"))
	assert.False(t, (&Adapter{}).ReservedWords("widget_id"))
}

func TestIsTransient(t *testing.T) {
	a := &Adapter{}
	assert.True(t, a.IsTransient(errors.New("pq: deadlock detected")))
	assert.False(t, a.IsTransient(errors.New("pq: column \"x\" does not exist")))
	assert.False(t, a.IsTransient(nil))
}

// newMockAdapter wires a sqlmock connection directly into an Adapter's
// unexported db field, bypassing Connect/sql.Open since no live Postgres
// server is available in this test environment.
func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := &Adapter{db: db, retry: provider.RetryPolicy{Attempts: 3, Interval: time.Millisecond}}
	return a, mock
}

func TestQuery_RetriesTransientFailureThenSucceeds(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(".*").WillReturnError(errors.New("pq: deadlock detected"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))

	rows, err := a.Query(context.Background(), "SELECT table_name FROM information_schema.tables")
	require.NoError(t, err)
	defer rows.Close()

	require.True(t, rows.Next())
	var name string
	require.NoError(t, rows.Scan(&name))
	assert.Equal(t, "users", name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuery_NonTransientErrorNotRetried(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(".*").WillReturnError(errors.New("pq: syntax error"))

	_, err := a.Query(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectTables_UsesQueryForEachTable(t *testing.T) {
	a, mock := newMockAdapter(t)
	a.cfg.Database = "appdb"

	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
		AddRow("public", "users"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{
		"column_name", "data_type", "is_nullable", "column_default", "character_maximum_length", "numeric_precision", "numeric_scale",
	}).AddRow("id", "integer", "NO", nil, 0, 0, 0))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "constraint_type"}))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"relname", "indisunique", "cols_csv"}))

	tables, err := a.introspectTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "users", tables[0].Name)
}

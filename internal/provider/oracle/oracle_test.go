package oracle

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
		native    string
		precision int
		scale     int
		wantCat   schema.Category
	}{
		{"NUMBER", 10, 0, schema.CategoryInteger},
		{"NUMBER", 10, 2, schema.CategoryDecimal},
		{"VARCHAR2", 0, 0, schema.CategoryVarchar},
		{"CLOB", 0, 0, schema.CategoryText},
		{"XMLTYPE", 0, 0, schema.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			got := ParseType(tt.native, 0, tt.precision, tt.scale)
			assert.Equal(t, tt.wantCat, got.Category)
		})
	}
}

func TestReservedWords(t *testing.T) {
	assert.True(t, (&Adapter{}).ReservedWords("SESSION"))
	assert.False(t, (&Adapter{}).ReservedWords("order_id"))
}

func TestIsTransient(t *testing.T) {
	a := &Adapter{}
	assert.True(t, a.IsTransient(errors.New("ORA-00060: deadlock detected while waiting for resource")))
	assert.True(t, a.IsTransient(errors.New("ORA-00054: resource busy and acquire with NOWAIT specified")))
	assert.False(t, a.IsTransient(errors.New("ORA-00942: table or view does not exist")))
	assert.False(t, a.IsTransient(nil))
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := &Adapter{db: db, retry: provider.RetryPolicy{Attempts: 3, Interval: time.Millisecond}}
	a.cfg.SchemaNamespace = "APPOWNER"
	return a, mock
}

func TestQuery_RetriesTransientFailureThenSucceeds(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(".*").WillReturnError(errors.New("ORA-00060: deadlock detected"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("WIDGETS"))

	rows, err := a.Query(context.Background(), "SELECT table_name FROM all_tables WHERE owner = :1", a.owner())
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
}

func TestIntrospectTables_WiresThroughQuery(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("WIDGETS"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{
		"column_name", "data_type", "nullable", "data_default", "data_length", "data_precision", "data_scale", "identity_column",
	}).AddRow("ID", "NUMBER", "N", nil, 0, 10, 0, "YES"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{
		"constraint_name", "constraint_type", "r_owner", "r_constraint_name", "delete_rule", "search_condition",
	}))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"index_name", "uniqueness", "column_name"}))

	tables, err := a.introspectTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "WIDGETS", tables[0].Name)
	require.Len(t, tables[0].Columns, 1)
	assert.True(t, tables[0].Columns[0].Identity)
}

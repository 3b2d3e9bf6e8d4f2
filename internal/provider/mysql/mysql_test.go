package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		native  string
		wantCat schema.Category
	}{
		{"int", schema.CategoryInteger},
		{"varchar", schema.CategoryVarchar},
		{"longtext", schema.CategoryText},
		{"varbinary", schema.CategoryBinary},
		{"enum", schema.CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			got := ParseType(tt.native, 0, 0, 0)
			assert.Equal(t, tt.wantCat, got.Category)
		})
	}
}

func TestReservedWords(t *testing.T) {
	assert.True(t, (&Adapter{}).ReservedWords("GROUP"))
	assert.False(t, (&Adapter{}).ReservedWords("order_total"))
}

func TestIsTransient(t *testing.T) {
	a := &Adapter{}
	assert.True(t, a.IsTransient(&driver.MySQLError{Number: 1213, Message: "Deadlock found"}))
	assert.True(t, a.IsTransient(&driver.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}))
	assert.False(t, a.IsTransient(&driver.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.False(t, a.IsTransient(nil))
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	a := &Adapter{db: db, retry: provider.RetryPolicy{Attempts: 3, Interval: time.Millisecond}}
	a.cfg.Database = "appdb"
	return a, mock
}

func TestQuery_RetriesTransientFailureThenSucceeds(t *testing.T) {
	a, mock := newMockAdapter(t)
	mock.ExpectQuery(".*").WillReturnError(errors.New("Error 1213: Deadlock found when trying to get lock"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))

	rows, err := a.Query(context.Background(), "SELECT table_name FROM information_schema.tables WHERE table_schema = ?", "appdb")
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
}

func TestIntrospectTables_WiresThroughQuery(t *testing.T) {
	a, mock := newMockAdapter(t)

	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name"}).
		AddRow("appdb", "widgets"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{
		"column_name", "data_type", "is_nullable", "column_default", "character_maximum_length", "numeric_precision", "numeric_scale", "extra",
	}).AddRow("id", "int", "NO", nil, 0, 0, 0, "auto_increment"))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "constraint_type"}))
	mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"index_name", "non_unique", "column_name"}))

	tables, err := a.introspectTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "widgets", tables[0].Name)
	require.Len(t, tables[0].Columns, 1)
	assert.True(t, tables[0].Columns[0].Identity)
}

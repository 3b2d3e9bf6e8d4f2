package backup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestQuarantineRename_Table(t *testing.T) {
	c := &schema.SchemaChange{Operation: schema.OpDrop, Object: schema.ObjectTable, Name: "dbo.Orders", Namespace: "dbo"}
	stmt, newName := QuarantineRename(schema.ProviderPostgres, c)

	assert.True(t, strings.HasPrefix(newName, "delete_table_"))
	assert.Contains(t, stmt, "RENAME TO")
	assert.Contains(t, stmt, newName)
}

func TestQuarantineRename_Column(t *testing.T) {
	c := &schema.SchemaChange{Operation: schema.OpDrop, Object: schema.ObjectColumn, Name: "dbo.Orders.legacy_flag", Namespace: "dbo"}
	stmt, newName := QuarantineRename(schema.ProviderMySQL, c)

	assert.True(t, strings.HasPrefix(newName, "delete_column_"))
	assert.Contains(t, stmt, "RENAME COLUMN")
	assert.Contains(t, stmt, newName)
}

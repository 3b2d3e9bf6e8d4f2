package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

func noReserved(string) bool { return false }

func newCfg() *config.Config {
	c := &config.Config{Provider: schema.ProviderPostgres, Env: config.EnvDev}
	c.Normalize()
	return c
}

// E1 — new table.
func TestDiff_NewTable(t *testing.T) {
	current := &schema.DatabaseSchema{}
	target := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{
				Name: "users", Namespace: "public",
				Columns: []*schema.SchemaColumn{
					{Name: "id", Type: schema.NormalizedType{Category: schema.CategoryInteger}, PrimaryKey: true},
					{Name: "name", Type: schema.NormalizedType{Category: schema.CategoryVarchar, Size: 50}},
				},
				Constraints: []*schema.SchemaConstraint{
					{Name: "pk_users", Kind: schema.ConstraintPK, Table: "users", Namespace: "public", Columns: []string{"id"}},
				},
			},
		},
	}

	result := Diff(current, target, newCfg(), noReserved)
	require.True(t, result.IsValid())

	var tableCreates int
	for _, c := range result.Changes {
		if c.Object == schema.ObjectTable && c.Operation == schema.OpCreate {
			tableCreates++
			assert.Equal(t, schema.RiskSafe, c.Risk)
		}
	}
	assert.Equal(t, 1, tableCreates)
}

// E2 — risky drop.
func TestDiff_DropTable(t *testing.T) {
	current := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{{Name: "orders", Namespace: "public"}},
	}
	target := &schema.DatabaseSchema{}

	result := Diff(current, target, newCfg(), noReserved)
	require.True(t, result.IsValid())

	require.Len(t, result.Changes, 1)
	assert.Equal(t, schema.OpDrop, result.Changes[0].Operation)
	assert.Equal(t, schema.RiskRisky, result.Changes[0].Risk)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "TABLE_DROP", result.Warnings[0].Code)
}

// E3 — column widen is Safe.
func TestDiff_ColumnWiden(t *testing.T) {
	current := schemaWithVarcharColumn(50)
	target := schemaWithVarcharColumn(100)

	result := Diff(current, target, newCfg(), noReserved)
	require.True(t, result.IsValid())
	require.Len(t, result.Changes, 1)
	assert.Equal(t, schema.RiskSafe, result.Changes[0].Risk)
	assert.Empty(t, result.Warnings)
}

// E4 — column narrow flags potential data loss and is Risky.
func TestDiff_ColumnNarrow(t *testing.T) {
	current := schemaWithVarcharColumn(200)
	target := schemaWithVarcharColumn(50)

	result := Diff(current, target, newCfg(), noReserved)
	require.True(t, result.IsValid())
	require.Len(t, result.Changes, 1)
	assert.Equal(t, schema.RiskRisky, result.Changes[0].Risk)
	assert.True(t, result.Changes[0].HasProperty(schema.PropPotentialDataLoss))

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "COLUMN_LENGTH_REDUCTION", result.Warnings[0].Code)
}

// E5 — FK references a table missing from the target schema.
func TestDiff_MissingReferencedTable(t *testing.T) {
	current := &schema.DatabaseSchema{}
	target := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{
				Name: "orders", Namespace: "public",
				Columns: []*schema.SchemaColumn{{Name: "user_id", Type: schema.NormalizedType{Category: schema.CategoryInteger}}},
				Constraints: []*schema.SchemaConstraint{
					{
						Name: "fk_orders_users", Kind: schema.ConstraintFK, Table: "orders", Namespace: "public",
						Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"},
					},
				},
			},
		},
	}

	result := Diff(current, target, newCfg(), noReserved)
	require.False(t, result.IsValid())

	var found bool
	for _, e := range result.Errors {
		if e.Code == "MISSING_REFERENCED_TABLE" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDiff_PrimaryKeyColumnDropBlocks(t *testing.T) {
	current := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{
				Name: "users", Namespace: "public",
				Columns:     []*schema.SchemaColumn{{Name: "id", Type: schema.NormalizedType{Category: schema.CategoryInteger}, PrimaryKey: true}},
				Constraints: []*schema.SchemaConstraint{{Name: "pk_users", Kind: schema.ConstraintPK, Table: "users", Namespace: "public", Columns: []string{"id"}}},
			},
		},
	}
	target := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{
				Name: "users", Namespace: "public",
				Constraints: []*schema.SchemaConstraint{{Name: "pk_users", Kind: schema.ConstraintPK, Table: "users", Namespace: "public", Columns: []string{"id"}}},
			},
		},
	}

	result := Diff(current, target, newCfg(), noReserved)
	require.False(t, result.IsValid())

	var found bool
	for _, e := range result.Errors {
		if e.Code == "PRIMARY_KEY_COLUMN_DROP" {
			found = true
		}
	}
	assert.True(t, found)
}

// Property 6 — a cycle in change.dependencies is detected and invalidates the diff.
func TestDiff_CircularDependency(t *testing.T) {
	current := &schema.DatabaseSchema{}
	target := &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{Name: "a", Namespace: "public"},
			{Name: "b", Namespace: "public"},
		},
	}

	result := Diff(current, target, newCfg(), noReserved)
	require.Len(t, result.Changes, 2)
	// Force a cycle by hand: a depends on b, b depends on a.
	result.Changes[0].Dependencies = []string{result.Changes[1].Name}
	result.Changes[1].Dependencies = []string{result.Changes[0].Name}

	d := &differ{result: result}
	d.checkCycles()
	require.False(t, result.IsValid())

	var found bool
	for _, e := range result.Errors {
		if e.Code == "CIRCULAR_DEPENDENCY" {
			found = true
		}
	}
	assert.True(t, found)
}

func schemaWithVarcharColumn(size int) *schema.DatabaseSchema {
	return &schema.DatabaseSchema{
		Tables: []*schema.SchemaTable{
			{
				Name: "users", Namespace: "public",
				Columns: []*schema.SchemaColumn{
					{Name: "name", Type: schema.NormalizedType{Category: schema.CategoryVarchar, Size: size}, MaxLength: size},
				},
			},
		},
	}
}

// Package emitter renders SchemaChanges into provider-specific SQL
// (spec.md §4.5). Pure function of change+provider: no I/O, no
// database connection. Grounded on helpers/sqltemplates's quoting
// registry, extended here with the column/constraint/index DDL
// fragments spec.md's five engines need.
package emitter

import (
	"fmt"
	"strings"

	"github.com/schemabounce/schemadeploy/helpers/sqltemplates"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Emit fills in c.SQL and, where computable, c.RollbackSQL for the given
// provider. Changes are mutated in place and also returned for
// convenience chaining.
func Emit(provider schema.Provider, c *schema.SchemaChange) *schema.SchemaChange {
	e := &emitter{provider: string(provider)}
	switch c.Object {
	case schema.ObjectTable:
		e.emitTable(c)
	case schema.ObjectColumn:
		e.emitColumn(c)
	case schema.ObjectConstraint:
		e.emitConstraint(c)
	case schema.ObjectIndex:
		e.emitIndex(c)
	case schema.ObjectView:
		e.emitNamedDefinition(c, "VIEW")
	case schema.ObjectProcedure:
		e.emitNamedDefinition(c, "PROCEDURE")
	case schema.ObjectFunction:
		e.emitNamedDefinition(c, "FUNCTION")
	case schema.ObjectCustomScript:
		// Custom scripts already carry their own SQL from the ingestor;
		// the emitter never rewrites user-authored script content.
	}
	return c
}

type emitter struct {
	provider string
}

func (e *emitter) quote(namespace, name string) string {
	return sqltemplates.QuoteQualified(e.provider, namespace, name)
}

func splitQualified(name string) (namespace, table, column string) {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return "", parts[0], parts[1]
	default:
		return "", "", name
	}
}

// --- Tables ---

func (e *emitter) emitTable(c *schema.SchemaChange) {
	_, _, name := splitQualified(c.Name) // "ns.table" or bare "table"
	switch c.Operation {
	case schema.OpCreate:
		// The differ emits table CREATE as a standalone change; column
		// definitions arrive as separate ALTER/ADD changes the planner
		// places in the same or a later phase. The forward SQL here is
		// the bare CREATE TABLE shell; columns attach via ALTER in
		// phase 16 the way a live migration would.
		c.SQL = fmt.Sprintf("CREATE TABLE %s ()", e.quote(c.Namespace, name))
		c.RollbackSQL = fmt.Sprintf("DROP TABLE %s", e.quote(c.Namespace, name))
	case schema.OpDrop:
		c.SQL = fmt.Sprintf("DROP TABLE %s", e.quote(c.Namespace, name))
		// No automatic rollback for table drops (spec.md §4.5): the
		// data is gone, only a restore from backup can recover it.
	}
}

// --- Columns ---

func (e *emitter) emitColumn(c *schema.SchemaChange) {
	namespace, table, column := splitQualified(c.Name)
	if namespace == "" {
		namespace = c.Namespace
	}
	tableRef := e.quote(namespace, table)
	colRef := sqltemplates.QuoteIdentifier(e.provider, column)

	switch c.Operation {
	case schema.OpDrop:
		c.SQL = fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tableRef, colRef)
		// Column drops have no automatic rollback: the type/constraints
		// of the dropped column aren't retained by the change itself.
		return
	}

	kind, _ := c.Properties["alter_kind"].(string)
	switch kind {
	case "nullability":
		c.SQL = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", tableRef, colRef)
		// No automatic rollback: the prior nullable state's default
		// isn't captured in this change.
	case "type_change":
		nativeType, _ := c.Properties[schema.PropColumnNativeType].(string)
		c.SQL = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", tableRef, colRef, nativeType)
		// No automatic rollback: the prior type isn't retained by the
		// change (spec.md §4.5).
	case "default":
		hasDefault, _ := c.Properties[schema.PropColumnHasDefault].(bool)
		if hasDefault {
			def, _ := c.Properties[schema.PropColumnDefault].(string)
			c.SQL = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", tableRef, colRef, def)
		} else {
			c.SQL = fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", tableRef, colRef)
		}
		// No automatic rollback: the prior default isn't retained by
		// the change.
	default:
		// ADD COLUMN: the only column-level change with a clean
		// inverse.
		nativeType, _ := c.Properties[schema.PropColumnNativeType].(string)
		nullable, _ := c.Properties[schema.PropColumnNullable].(bool)
		null := "NOT NULL"
		if nullable {
			null = "NULL"
		}
		def := ""
		if hasDefault, _ := c.Properties[schema.PropColumnHasDefault].(bool); hasDefault {
			d, _ := c.Properties[schema.PropColumnDefault].(string)
			def = " DEFAULT " + d
		}
		c.SQL = fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s %s%s", tableRef, colRef, nativeType, null, def)
		c.RollbackSQL = fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tableRef, colRef)
	}
}

// --- Constraints ---

func (e *emitter) emitConstraint(c *schema.SchemaChange) {
	namespace, table, name := splitQualified(c.Name)
	if namespace == "" {
		namespace = c.Namespace
	}
	tableRef := e.quote(namespace, table)
	constraintRef := sqltemplates.QuoteIdentifier(e.provider, name)
	kind, _ := c.Properties[schema.PropConstraintType].(string)

	switch c.Operation {
	case schema.OpCreate:
		c.SQL = fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", tableRef, constraintRef, e.constraintDefinition(c, kind))
		c.RollbackSQL = e.dropConstraintSQL(tableRef, constraintRef, kind)
	case schema.OpDrop:
		c.SQL = e.dropConstraintSQL(tableRef, constraintRef, kind)
		// No automatic rollback: re-adding a dropped constraint
		// requires its original definition, which the DROP change
		// doesn't retain.
	}
}

func (e *emitter) constraintDefinition(c *schema.SchemaChange, kind string) string {
	cols, _ := c.Properties[schema.PropConstraintColumns].([]string)
	colList := quoteColumnList(e.provider, cols)

	switch kind {
	case string(schema.ConstraintPK):
		return fmt.Sprintf("PRIMARY KEY (%s)", colList)
	case string(schema.ConstraintUQ):
		return fmt.Sprintf("UNIQUE (%s)", colList)
	case string(schema.ConstraintCK):
		expr, _ := c.Properties[schema.PropConstraintCheckExpr].(string)
		return fmt.Sprintf("CHECK (%s)", expr)
	case string(schema.ConstraintFK):
		refTable, _ := c.Properties[schema.PropConstraintRefTable].(string)
		refSchema, _ := c.Properties[schema.PropConstraintRefSchema].(string)
		refCols, _ := c.Properties[schema.PropConstraintRefColumns].([]string)
		onDelete, _ := c.Properties[schema.PropConstraintOnDelete].(string)
		onUpdate, _ := c.Properties[schema.PropConstraintOnUpdate].(string)
		ref := e.quote(refSchema, refTable)
		def := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)", colList, ref, quoteColumnList(e.provider, refCols))
		if onDelete != "" {
			def += " ON DELETE " + onDelete
		}
		if onUpdate != "" {
			def += " ON UPDATE " + onUpdate
		}
		return def
	default:
		return ""
	}
}

func quoteColumnList(provider string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = sqltemplates.QuoteIdentifier(provider, c)
	}
	return strings.Join(quoted, ", ")
}

func (e *emitter) dropConstraintSQL(tableRef, constraintRef, kind string) string {
	if e.provider == string(schema.ProviderMySQL) {
		switch kind {
		case string(schema.ConstraintFK):
			return fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", tableRef, constraintRef)
		case string(schema.ConstraintPK):
			return fmt.Sprintf("ALTER TABLE %s DROP PRIMARY KEY", tableRef)
		}
	}
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", tableRef, constraintRef)
}

// --- Indexes ---

func (e *emitter) emitIndex(c *schema.SchemaChange) {
	namespace, table, name := splitQualified(c.Name)
	if namespace == "" {
		namespace = c.Namespace
	}
	indexRef := sqltemplates.QuoteIdentifier(e.provider, name)
	tableRef := e.quote(namespace, table)

	switch c.Operation {
	case schema.OpCreate:
		unique := ""
		if v, _ := c.Properties[schema.PropIsUnique].(bool); v {
			unique = "UNIQUE "
		}
		cols, _ := c.Properties[schema.PropIndexColumns].([]string)
		where := ""
		if filter, _ := c.Properties[schema.PropIndexFilter].(string); filter != "" {
			where = " WHERE " + filter
		}
		c.SQL = fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)%s", unique, indexRef, tableRef, quoteColumnList(e.provider, cols), where)
		c.RollbackSQL = e.dropIndexSQL(indexRef, tableRef)
	case schema.OpDrop:
		c.SQL = e.dropIndexSQL(indexRef, tableRef)
		// No automatic rollback: recreating a dropped index needs its
		// original column list, which a DROP change doesn't retain.
	}
}

func (e *emitter) dropIndexSQL(indexRef, tableRef string) string {
	switch e.provider {
	case string(schema.ProviderSQLServer):
		return fmt.Sprintf("DROP INDEX %s ON %s", indexRef, tableRef)
	case string(schema.ProviderMySQL):
		return fmt.Sprintf("DROP INDEX %s ON %s", indexRef, tableRef)
	default:
		return fmt.Sprintf("DROP INDEX %s", indexRef)
	}
}

// --- Views / Procedures / Functions ---

func (e *emitter) emitNamedDefinition(c *schema.SchemaChange, kw string) {
	_, _, name := splitQualified(c.Name) // "ns.name" or bare "name"
	ref := e.quote(c.Namespace, name)
	def, _ := c.Properties[schema.PropDefinition].(string)
	switch c.Operation {
	case schema.OpCreate:
		c.SQL = fmt.Sprintf("CREATE %s %s AS %s", kw, ref, def)
		c.RollbackSQL = fmt.Sprintf("DROP %s %s", kw, ref)
	case schema.OpDrop:
		c.SQL = fmt.Sprintf("DROP %s %s", kw, ref)
		// No automatic rollback: recreating requires the original
		// definition text, not retained by a DROP change.
	case schema.OpAlter:
		c.SQL = fmt.Sprintf("CREATE OR REPLACE %s %s AS %s", kw, ref, def)
		if e.provider == string(schema.ProviderSQLServer) {
			c.SQL = fmt.Sprintf("ALTER %s %s AS %s", kw, ref, def)
		}
		// No automatic rollback: the prior definition isn't retained.
	}
}

// SQLServerBackupStatement renders the native BACKUP DATABASE statement
// spec.md §4.5 requires for SQL Server (the backup subsystem calls out
// to external tools for every other provider, see §4.7).
func SQLServerBackupStatement(database, path string) string {
	return fmt.Sprintf(
		"BACKUP DATABASE %s TO DISK = '%s' WITH COMPRESSION, CHECKSUM, STATS = 10",
		sqltemplates.QuoteIdentifier(string(schema.ProviderSQLServer), database), path,
	)
}

// SQLServerRestoreStatement renders the matching native RESTORE.
func SQLServerRestoreStatement(database, path string) string {
	return fmt.Sprintf(
		"RESTORE DATABASE %s FROM DISK = '%s' WITH CHECKSUM, STATS = 10",
		sqltemplates.QuoteIdentifier(string(schema.ProviderSQLServer), database), path,
	)
}

// SQLServerVerifyRestoreStatement renders RESTORE VERIFYONLY, the backup
// subsystem's SQL Server verification step (spec.md §4.7).
func SQLServerVerifyRestoreStatement(path string) string {
	return fmt.Sprintf("RESTORE VERIFYONLY FROM DISK = '%s'", path)
}

// RenameTableStatement renders the provider-specific table rename used by
// the backup subsystem's pre-drop quarantine path (SPEC_FULL.md, optional):
// the object is renamed instead of dropped, and the quarantine name is
// recorded so a later manual DROP/RESTORE can recover it.
func RenameTableStatement(provider schema.Provider, namespace, oldName, newName string) string {
	qualifiedOld := sqltemplates.QuoteQualified(string(provider), namespace, oldName)
	switch provider {
	case schema.ProviderSQLServer:
		return fmt.Sprintf("EXEC sp_rename '%s', '%s'", oldName, newName)
	case schema.ProviderMySQL:
		return fmt.Sprintf("RENAME TABLE %s TO %s", qualifiedOld, sqltemplates.QuoteQualified(string(provider), namespace, newName))
	default:
		return fmt.Sprintf("ALTER TABLE %s RENAME TO %s", qualifiedOld, sqltemplates.QuoteIdentifier(string(provider), newName))
	}
}

// RenameColumnStatement renders the provider-specific column rename, the
// other half of the pre-drop quarantine path.
func RenameColumnStatement(provider schema.Provider, namespace, table, oldName, newName string) string {
	qualifiedTable := sqltemplates.QuoteQualified(string(provider), namespace, table)
	switch provider {
	case schema.ProviderSQLServer:
		return fmt.Sprintf("EXEC sp_rename '%s.%s', '%s', 'COLUMN'", table, oldName, newName)
	default:
		return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", qualifiedTable,
			sqltemplates.QuoteIdentifier(string(provider), oldName), sqltemplates.QuoteIdentifier(string(provider), newName))
	}
}

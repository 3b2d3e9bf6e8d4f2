package backup

import (
	"github.com/schemabounce/schemadeploy/helpers/quarantine"
	"github.com/schemabounce/schemadeploy/internal/emitter"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// QuarantineRename computes the rename statement and new object name for
// the pre-drop quarantine path (SPEC_FULL.md, optional, config
// Safety.QuarantineBeforeDrop): instead of dropping a table or column
// outright, the executor renames it to a deterministic quarantine name so
// a later manual DROP or RESTORE can recover it. Grounded on
// helpers/quarantine.BuildName for the name itself.
func QuarantineRename(provider schema.Provider, c *schema.SchemaChange) (stmt, newName string) {
	namespace, table, column := splitQualifiedName(c.Name)
	if c.Object == schema.ObjectTable && column != "" {
		// A table change is named "ns.table", not "table.column".
		namespace, table, column = table, column, ""
	}

	opts := quarantine.NameOptions{
		Kind:   strKind(c.Object),
		Schema: namespace,
	}
	if column != "" {
		opts.Name = column
		newName = quarantine.BuildName(opts)
		stmt = emitter.RenameColumnStatement(provider, namespace, table, column, newName)
		return stmt, newName
	}

	opts.Name = table
	newName = quarantine.BuildName(opts)
	stmt = emitter.RenameTableStatement(provider, namespace, table, newName)
	return stmt, newName
}

func strKind(k schema.ObjectKind) string {
	switch k {
	case schema.ObjectTable:
		return "table"
	case schema.ObjectColumn:
		return "column"
	default:
		return "object"
	}
}

// splitQualifiedName mirrors emitter's splitQualified without importing its
// unexported helper: "ns.table.column" / "table.column" / "table".
func splitQualifiedName(name string) (namespace, table, column string) {
	parts := splitDot(name)
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return "", parts[0], parts[1]
	default:
		return "", name, ""
	}
}

func splitDot(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

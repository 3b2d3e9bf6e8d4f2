// Package schema defines the structural data model compared by the differ,
// ordered by the planner, and rendered by the emitter: a point-in-time
// snapshot of a relational database schema plus the change list produced
// by diffing two snapshots.
package schema

import "time"

// Provider identifies one of the five supported database engines.
type Provider string

const (
	ProviderSQLServer Provider = "sqlserver"
	ProviderPostgres  Provider = "postgresql"
	ProviderMySQL     Provider = "mysql"
	ProviderOracle    Provider = "oracle"
	ProviderSQLite    Provider = "sqlite"
)

// DatabaseSchema is an immutable snapshot of a database's structure,
// either the live "current" schema produced by a Provider Adapter's
// Introspect, or the "target" schema produced by the entity-discovery
// pipeline. Tables/Views/Indexes/Constraints/Procedures/Functions are
// parallel ordered collections; names within each collection are unique
// when qualified by (Namespace, Name), case-insensitively.
type DatabaseSchema struct {
	Provider       Provider
	DatabaseName   string
	AnalyzedAt     time.Time
	Tables         []*SchemaTable
	Views          []*SchemaView
	Indexes        []*SchemaIndex
	Constraints    []*SchemaConstraint
	Procedures     []*SchemaProcedure
	Functions      []*SchemaFunction
}

// QualifiedName is the case-insensitive comparison key used throughout
// the differ and planner: (schema-namespace, name).
type QualifiedName struct {
	Namespace string
	Name      string
}

// Key returns the lower-cased comparison key for q.
func (q QualifiedName) Key() string {
	return lower(q.Namespace) + "." + lower(q.Name)
}

func (q QualifiedName) String() string {
	if q.Namespace == "" {
		return q.Name
	}
	return q.Namespace + "." + q.Name
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// SchemaTable is a table plus its owned columns, indexes, and constraints.
// Invariant: at most one PK constraint among Constraints; column names are
// unique within Columns (case-insensitively).
type SchemaTable struct {
	Name        string
	Namespace   string
	Columns     []*SchemaColumn
	Indexes     []*SchemaIndex
	Constraints []*SchemaConstraint
}

// Qualified returns the table's comparison key.
func (t *SchemaTable) Qualified() QualifiedName {
	return QualifiedName{Namespace: t.Namespace, Name: t.Name}
}

// PrimaryKey returns the table's PK constraint, or nil.
func (t *SchemaTable) PrimaryKey() *SchemaConstraint {
	for _, c := range t.Constraints {
		if c.Kind == ConstraintPK {
			return c
		}
	}
	return nil
}

// Column looks up a column by case-insensitive name.
func (t *SchemaTable) Column(name string) *SchemaColumn {
	for _, c := range t.Columns {
		if lower(c.Name) == lower(name) {
			return c
		}
	}
	return nil
}

// SchemaColumn describes one column of one table.
type SchemaColumn struct {
	Name         string
	Type         NormalizedType
	NativeType   string // provider's raw type string, for SQL emission
	Nullable     bool
	PrimaryKey   bool
	Identity     bool
	MaxLength    int
	Precision    int
	Scale        int
	DefaultValue string // empty means no default
	HasDefault   bool
}

// ConstraintKind enumerates the four constraint kinds the model supports.
type ConstraintKind string

const (
	ConstraintPK ConstraintKind = "PK"
	ConstraintUQ ConstraintKind = "UQ"
	ConstraintFK ConstraintKind = "FK"
	ConstraintCK ConstraintKind = "CK"
)

// ReferentialAction enumerates ON DELETE / ON UPDATE actions for FKs.
type ReferentialAction string

const (
	ActionNoAction   ReferentialAction = "NO ACTION"
	ActionCascade    ReferentialAction = "CASCADE"
	ActionSetNull    ReferentialAction = "SET NULL"
	ActionSetDefault ReferentialAction = "SET DEFAULT"
	ActionRestrict   ReferentialAction = "RESTRICT"
)

// SchemaConstraint models a PK, UQ, FK, or CK constraint. FK-only fields
// (ReferencedTable/ReferencedColumns/OnDelete/OnUpdate) and the CK-only
// field (CheckExpression) are zero-valued when not applicable.
type SchemaConstraint struct {
	Name              string
	Kind              ConstraintKind
	Table             string
	Namespace         string
	Columns           []string
	ReferencedTable   string
	ReferencedSchema  string
	ReferencedColumns []string
	OnDelete          ReferentialAction
	OnUpdate          ReferentialAction
	CheckExpression   string
}

// Qualified returns the constraint's owning-table comparison key: its
// String() form is "ns.table.constraint".
func (c *SchemaConstraint) Qualified() QualifiedName {
	return QualifiedName{Namespace: c.Namespace, Name: c.Table + "." + c.Name}
}

// SchemaIndex models an index owned by a table.
type SchemaIndex struct {
	Name      string
	Table     string
	Namespace string
	Columns   []string
	Unique    bool
	Clustered bool
	Filter    string // optional filtered-index predicate
}

func (i *SchemaIndex) Qualified() QualifiedName {
	return QualifiedName{Namespace: i.Namespace, Name: i.Table + "." + i.Name}
}

// SchemaView is a named, textually-defined view.
type SchemaView struct {
	Name       string
	Namespace  string
	Definition string
}

func (v *SchemaView) Qualified() QualifiedName { return QualifiedName{Namespace: v.Namespace, Name: v.Name} }

// SchemaProcedure is a stored procedure.
type SchemaProcedure struct {
	Name       string
	Namespace  string
	Definition string
}

func (p *SchemaProcedure) Qualified() QualifiedName {
	return QualifiedName{Namespace: p.Namespace, Name: p.Name}
}

// Parameter describes one function parameter.
type Parameter struct {
	Name string
	Type string
}

// SchemaFunction is a stored function; adds a return type and parameters
// over SchemaProcedure.
type SchemaFunction struct {
	Name       string
	Namespace  string
	Definition string
	ReturnType string
	Parameters []Parameter
}

func (f *SchemaFunction) Qualified() QualifiedName {
	return QualifiedName{Namespace: f.Namespace, Name: f.Name}
}

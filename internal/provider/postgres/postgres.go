// Package postgres implements the PostgreSQL provider adapter (spec.md
// §4.1). Grounded on state/backends/postgres.go's connection-string
// building and sql.Open/PingContext sequencing, generalized from that
// backend's fixed two-table state store into a full schema introspection
// walk over information_schema / pg_catalog.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Adapter implements provider.Adapter for PostgreSQL.
type Adapter struct {
	cfg   config.Connection
	retry provider.RetryPolicy
	db    *sql.DB
}

// New constructs an Adapter from connection settings and the retry
// policy Connect/Query/Execute share (spec.md §4.1). Connect must be
// called before any other method.
func New(cfg config.Connection, retry provider.RetryPolicy) *Adapter {
	return &Adapter{cfg: cfg, retry: retry}
}

func (a *Adapter) Provider() schema.Provider { return schema.ProviderPostgres }

func (a *Adapter) connString() string {
	sslmode := a.cfg.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}
	parts := []string{
		fmt.Sprintf("host=%s", a.cfg.Server),
		fmt.Sprintf("port=%d", a.cfg.Port),
		fmt.Sprintf("dbname=%s", a.cfg.Database),
		fmt.Sprintf("user=%s", a.cfg.Username),
		fmt.Sprintf("password=%s", a.cfg.Password),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if a.cfg.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", a.cfg.ApplicationName))
	}
	return strings.Join(parts, " ")
}

// Connect opens the connection pool and verifies it with a ping, retried
// under the shared linear-backoff policy (spec.md §4.1/§7: connection
// creation failures are retried internally before surfacing).
func (a *Adapter) Connect(ctx context.Context) error {
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		db, err := sql.Open("postgres", a.connString())
		if err != nil {
			return fmt.Errorf("postgres: open connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("postgres: connect: %w", err)
		}
		a.db = db
		return nil
	})
	return err
}

func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) Execute(ctx context.Context, stmt string) error {
	_, err := a.db.ExecContext(ctx, stmt)
	return err
}

// Query runs a SELECT under the same retry policy Connect uses
// (spec.md §4.1). Introspection is the adapter's own heaviest Query
// consumer: every introspect* helper below issues its SELECT through
// this method rather than calling a.db directly.
func (a *Adapter) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		r, err := a.db.QueryContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		rows = r
		return nil
	})
	return rows, err
}

func (a *Adapter) Begin(ctx context.Context) (provider.Tx, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &provider.SQLTx{Underlying: tx}, nil
}

// reservedWords is the subset of the PostgreSQL reserved-keyword list most
// likely to collide with user-chosen table/column names.
var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
	"case": true, "cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "current_date": true, "current_role": true,
	"current_time": true, "current_timestamp": true, "current_user": true,
	"default": true, "deferrable": true, "desc": true, "distinct": true, "do": true,
	"else": true, "end": true, "except": true, "false": true, "for": true,
	"foreign": true, "from": true, "grant": true, "group": true, "having": true,
	"in": true, "initially": true, "intersect": true, "into": true, "leading": true,
	"limit": true, "localtime": true, "localtimestamp": true, "new": true,
	"not": true, "null": true, "off": true, "offset": true, "old": true, "on": true,
	"only": true, "or": true, "order": true, "placing": true, "primary": true,
	"references": true, "select": true, "session_user": true, "some": true,
	"symmetric": true, "table": true, "then": true, "to": true, "trailing": true,
	"true": true, "union": true, "unique": true, "user": true, "using": true,
	"when": true, "where": true,
}

func (a *Adapter) ReservedWords(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

func (a *Adapter) IsTransient(err error) bool {
	var pqErr *pq.Error
	if ok := asPQError(err, &pqErr); ok {
		switch pqErr.Code {
		case "40P01", "40001":
			return true
		}
	}
	return postgresTransientBySubstring(err)
}

func asPQError(err error, target **pq.Error) bool {
	if pe, ok := err.(*pq.Error); ok {
		*target = pe
		return true
	}
	return false
}

func postgresTransientBySubstring(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"deadlock detected", "could not serialize access", "connection reset", "connection refused"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (a *Adapter) Introspect(ctx context.Context) (*schema.DatabaseSchema, error) {
	out := &schema.DatabaseSchema{Provider: schema.ProviderPostgres, DatabaseName: a.cfg.Database}

	tables, err := a.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: introspect tables: %w", err)
	}
	out.Tables = tables

	views, err := a.introspectViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: introspect views: %w", err)
	}
	out.Views = views

	return out, nil
}

func (a *Adapter) introspectTables(ctx context.Context) ([]*schema.SchemaTable, error) {
	rows, err := a.Query(ctx, `
		SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []*schema.SchemaTable
	for rows.Next() {
		var ns, name string
		if err := rows.Scan(&ns, &name); err != nil {
			return nil, err
		}
		t := &schema.SchemaTable{Namespace: ns, Name: name}
		if t.Columns, err = a.introspectColumns(ctx, ns, name); err != nil {
			return nil, err
		}
		if t.Constraints, err = a.introspectConstraints(ctx, ns, name); err != nil {
			return nil, err
		}
		if t.Indexes, err = a.introspectIndexes(ctx, ns, name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (a *Adapter) introspectColumns(ctx context.Context, ns, table string) ([]*schema.SchemaColumn, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name, data_type, is_nullable, column_default,
		       COALESCE(character_maximum_length, 0), COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0)
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, ns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*schema.SchemaColumn
	for rows.Next() {
		var name, dataType, nullable string
		var def sql.NullString
		var maxLen, precision, scale int
		if err := rows.Scan(&name, &dataType, &nullable, &def, &maxLen, &precision, &scale); err != nil {
			return nil, err
		}
		c := &schema.SchemaColumn{
			Name:       name,
			NativeType: dataType,
			Type:       ParseType(dataType, maxLen, precision, scale),
			Nullable:   nullable == "YES",
			MaxLength:  maxLen,
			Precision:  precision,
			Scale:      scale,
			HasDefault: def.Valid,
			DefaultValue: def.String,
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (a *Adapter) introspectConstraints(ctx context.Context, ns, table string) ([]*schema.SchemaConstraint, error) {
	rows, err := a.Query(ctx, `
		SELECT tc.constraint_name, tc.constraint_type
		FROM information_schema.table_constraints tc
		WHERE tc.table_schema = $1 AND tc.table_name = $2`, ns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cons []*schema.SchemaConstraint
	for rows.Next() {
		var name, ctype string
		if err := rows.Scan(&name, &ctype); err != nil {
			return nil, err
		}
		kind, ok := constraintKind(ctype)
		if !ok {
			continue
		}
		c := &schema.SchemaConstraint{Name: name, Kind: kind, Table: table, Namespace: ns}
		if c.Columns, err = a.constraintColumns(ctx, ns, name); err != nil {
			return nil, err
		}
		if kind == schema.ConstraintFK {
			if err := a.fillForeignKey(ctx, ns, name, c); err != nil {
				return nil, err
			}
		}
		cons = append(cons, c)
	}
	return cons, rows.Err()
}

func constraintKind(pgType string) (schema.ConstraintKind, bool) {
	switch pgType {
	case "PRIMARY KEY":
		return schema.ConstraintPK, true
	case "UNIQUE":
		return schema.ConstraintUQ, true
	case "FOREIGN KEY":
		return schema.ConstraintFK, true
	case "CHECK":
		return schema.ConstraintCK, true
	default:
		return "", false
	}
}

func (a *Adapter) constraintColumns(ctx context.Context, ns, constraintName string) ([]string, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name FROM information_schema.key_column_usage
		WHERE constraint_schema = $1 AND constraint_name = $2
		ORDER BY ordinal_position`, ns, constraintName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (a *Adapter) fillForeignKey(ctx context.Context, ns, constraintName string, c *schema.SchemaConstraint) error {
	row := a.db.QueryRowContext(ctx, `
		SELECT ccu.table_schema, ccu.table_name,
		       rc.update_rule, rc.delete_rule
		FROM information_schema.referential_constraints rc
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = rc.unique_constraint_name AND ccu.constraint_schema = rc.unique_constraint_schema
		WHERE rc.constraint_schema = $1 AND rc.constraint_name = $2
		LIMIT 1`, ns, constraintName)

	var refSchema, refTable, onUpdate, onDelete string
	if err := row.Scan(&refSchema, &refTable, &onUpdate, &onDelete); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	c.ReferencedSchema = refSchema
	c.ReferencedTable = refTable
	c.OnUpdate = schema.ReferentialAction(onUpdate)
	c.OnDelete = schema.ReferentialAction(onDelete)

	refCols, err := a.constraintColumns(ctx, refSchema, constraintName)
	if err == nil {
		c.ReferencedColumns = refCols
	}
	return nil
}

func (a *Adapter) introspectIndexes(ctx context.Context, ns, table string) ([]*schema.SchemaIndex, error) {
	rows, err := a.Query(ctx, `
		SELECT i.relname, ix.indisunique, array_to_string(array_agg(a.attname ORDER BY x.ord), ',')
		FROM pg_class t
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_index ix ON ix.indrelid = t.oid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN unnest(ix.indkey) WITH ORDINALITY AS x(attnum, ord) ON true
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = x.attnum
		WHERE n.nspname = $1 AND t.relname = $2 AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique`, ns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idx []*schema.SchemaIndex
	for rows.Next() {
		var name string
		var unique bool
		var colsCSV string
		if err := rows.Scan(&name, &unique, &colsCSV); err != nil {
			return nil, err
		}
		idx = append(idx, &schema.SchemaIndex{
			Name: name, Table: table, Namespace: ns, Unique: unique,
			Columns: strings.Split(colsCSV, ","),
		})
	}
	return idx, rows.Err()
}

// ParseType implements schema.TypeParser for PostgreSQL's
// information_schema.columns.data_type vocabulary.
func ParseType(nativeType string, maxLen, precision, scale int) schema.NormalizedType {
	switch strings.ToLower(nativeType) {
	case "smallint", "integer", "bigint", "serial", "bigserial", "smallserial":
		return schema.NormalizedType{Category: schema.CategoryInteger, Size: maxLen}
	case "numeric", "decimal":
		return schema.NormalizedType{Category: schema.CategoryDecimal, Precision: precision, Scale: scale}
	case "real", "double precision":
		return schema.NormalizedType{Category: schema.CategoryFloat, Precision: precision}
	case "boolean":
		return schema.NormalizedType{Category: schema.CategoryBoolean}
	case "date":
		return schema.NormalizedType{Category: schema.CategoryDate}
	case "time", "time without time zone", "time with time zone":
		return schema.NormalizedType{Category: schema.CategoryTime}
	case "timestamp", "timestamp without time zone", "timestamp with time zone":
		return schema.NormalizedType{Category: schema.CategoryDateTime}
	case "character":
		return schema.NormalizedType{Category: schema.CategoryChar, Size: maxLen}
	case "character varying":
		return schema.NormalizedType{Category: schema.CategoryVarchar, Size: maxLen}
	case "text":
		return schema.NormalizedType{Category: schema.CategoryText}
	case "bytea":
		return schema.NormalizedType{Category: schema.CategoryBinary, Size: maxLen}
	case "uuid":
		return schema.NormalizedType{Category: schema.CategoryGUID}
	default:
		return schema.NormalizedType{Category: schema.CategoryUnknown}
	}
}

func (a *Adapter) introspectViews(ctx context.Context) ([]*schema.SchemaView, error) {
	rows, err := a.Query(ctx, `
		SELECT table_schema, table_name, view_definition FROM information_schema.views
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []*schema.SchemaView
	for rows.Next() {
		var ns, name, def string
		if err := rows.Scan(&ns, &name, &def); err != nil {
			return nil, err
		}
		views = append(views, &schema.SchemaView{Namespace: ns, Name: name, Definition: def})
	}
	return views, rows.Err()
}

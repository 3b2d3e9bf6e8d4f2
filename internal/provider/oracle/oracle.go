// Package oracle implements the Oracle provider adapter (spec.md §4.1).
// No pack repo touches Oracle; wired per DESIGN.md's out-of-pack rule to
// github.com/sijms/go-ora/v2, the standard pure-Go Oracle driver, since
// spec.md mandates Oracle as one of the five engines.
package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

type Adapter struct {
	cfg   config.Connection
	retry provider.RetryPolicy
	db    *sql.DB
}

func New(cfg config.Connection, retry provider.RetryPolicy) *Adapter {
	return &Adapter{cfg: cfg, retry: retry}
}

func (a *Adapter) Provider() schema.Provider { return schema.ProviderOracle }

func (a *Adapter) dsn() string {
	urlOpts := map[string]string{}
	if a.cfg.ServiceName != "" {
		urlOpts["SERVICE_NAME"] = a.cfg.ServiceName
	}
	return go_ora.BuildUrl(a.cfg.Server, a.cfg.Port, a.cfg.ServiceName, a.cfg.Username, a.cfg.Password, urlOpts)
}

// Connect opens the connection pool and verifies it with a ping, retried
// under the shared linear-backoff policy (spec.md §4.1/§7: connection
// creation failures are retried internally before surfacing).
func (a *Adapter) Connect(ctx context.Context) error {
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		db, err := sql.Open("oracle", a.dsn())
		if err != nil {
			return fmt.Errorf("oracle: open connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("oracle: connect: %w", err)
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

func (a *Adapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *Adapter) Execute(ctx context.Context, stmt string) error {
	_, err := a.db.ExecContext(ctx, stmt)
	return err
}

// Query runs a SELECT under the same retry policy Connect uses
// (spec.md §4.1); every introspect* helper below issues its SELECT
// through this method instead of calling a.db directly.
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

var reservedWords = map[string]bool{
	"access": true, "add": true, "all": true, "alter": true, "and": true,
	"any": true, "as": true, "asc": true, "audit": true, "between": true,
	"by": true, "char": true, "check": true, "cluster": true, "column": true,
	"comment": true, "compress": true, "connect": true, "create": true,
	"current": true, "date": true, "decimal": true, "default": true,
	"delete": true, "desc": true, "distinct": true, "drop": true, "else": true,
	"exclusive": true, "exists": true, "file": true, "float": true, "for": true,
	"from": true, "grant": true, "group": true, "having": true, "identified": true,
	"immediate": true, "in": true, "increment": true, "index": true,
	"initial": true, "insert": true, "integer": true, "intersect": true,
	"into": true, "is": true, "level": true, "like": true, "lock": true,
	"long": true, "maxextents": true, "minus": true, "mlslabel": true,
	"mode": true, "modify": true, "noaudit": true, "nocompress": true,
	"not": true, "nowait": true, "null": true, "number": true, "of": true,
	"offline": true, "on": true, "online": true, "option": true, "or": true,
	"order": true, "pctfree": true, "prior": true, "privileges": true,
	"public": true, "raw": true, "rename": true, "resource": true,
	"revoke": true, "row": true, "rowid": true, "rownum": true, "rows": true,
	"select": true, "session": true, "set": true, "share": true, "size": true,
	"smallint": true, "start": true, "successful": true, "synonym": true,
	"sysdate": true, "table": true, "then": true, "to": true, "trigger": true,
	"uid": true, "union": true, "unique": true, "update": true, "user": true,
	"validate": true, "values": true, "varchar": true, "varchar2": true,
	"view": true, "whenever": true, "where": true, "with": true,
}

func (a *Adapter) ReservedWords(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

// IsTransient classifies Oracle's deadlock (ORA-00060) and resource-busy
// (ORA-00054) errors as retryable by message substring, since go-ora
// doesn't expose a typed error with a numeric code field.
func (a *Adapter) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"ora-00060", "ora-00054", "ora-03113", "ora-03135"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (a *Adapter) Introspect(ctx context.Context) (*schema.DatabaseSchema, error) {
	out := &schema.DatabaseSchema{Provider: schema.ProviderOracle, DatabaseName: a.cfg.ServiceName}

	tables, err := a.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: introspect tables: %w", err)
	}
	out.Tables = tables

	views, err := a.introspectViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle: introspect views: %w", err)
	}
	out.Views = views
	return out, nil
}

func (a *Adapter) owner() string {
	return strings.ToUpper(a.cfg.SchemaNamespace)
}

func (a *Adapter) introspectTables(ctx context.Context) ([]*schema.SchemaTable, error) {
	rows, err := a.Query(ctx, `
		SELECT table_name FROM all_tables WHERE owner = :1 ORDER BY table_name`, a.owner())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tables []*schema.SchemaTable
	for _, name := range names {
		t := &schema.SchemaTable{Namespace: a.owner(), Name: name}
		if t.Columns, err = a.introspectColumns(ctx, name); err != nil {
			return nil, err
		}
		if t.Constraints, err = a.introspectConstraints(ctx, name); err != nil {
			return nil, err
		}
		if t.Indexes, err = a.introspectIndexes(ctx, name); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (a *Adapter) introspectColumns(ctx context.Context, table string) ([]*schema.SchemaColumn, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name, data_type, nullable, data_default,
		       COALESCE(data_length, 0), COALESCE(data_precision, 0), COALESCE(data_scale, 0),
		       COALESCE(identity_column, 'NO')
		FROM all_tab_columns
		WHERE owner = :1 AND table_name = :2
		ORDER BY column_id`, a.owner(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*schema.SchemaColumn
	for rows.Next() {
		var name, dataType, nullable, identity string
		var def sql.NullString
		var maxLen, precision, scale int
		if err := rows.Scan(&name, &dataType, &nullable, &def, &maxLen, &precision, &scale, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, &schema.SchemaColumn{
			Name: name, NativeType: dataType, Type: ParseType(dataType, maxLen, precision, scale),
			Nullable: nullable == "Y", MaxLength: maxLen, Precision: precision, Scale: scale,
			HasDefault: def.Valid && strings.TrimSpace(def.String) != "", DefaultValue: strings.TrimSpace(def.String),
			Identity: identity == "YES",
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) introspectConstraints(ctx context.Context, table string) ([]*schema.SchemaConstraint, error) {
	rows, err := a.Query(ctx, `
		SELECT constraint_name, constraint_type, r_owner, r_constraint_name,
		       delete_rule, search_condition
		FROM all_constraints
		WHERE owner = :1 AND table_name = :2 AND constraint_type IN ('P','U','R','C')`, a.owner(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cons []*schema.SchemaConstraint
	for rows.Next() {
		var name, ctype string
		var rOwner, rConstraint, deleteRule, checkCond sql.NullString
		if err := rows.Scan(&name, &ctype, &rOwner, &rConstraint, &deleteRule, &checkCond); err != nil {
			return nil, err
		}
		kind, ok := constraintKind(ctype)
		if !ok {
			continue
		}
		c := &schema.SchemaConstraint{
			Name: name, Kind: kind, Table: table, Namespace: a.owner(),
			CheckExpression: checkCond.String, OnDelete: schema.ReferentialAction(oracleDeleteRule(deleteRule.String)),
		}
		if c.Columns, err = a.constraintColumns(ctx, name); err != nil {
			return nil, err
		}
		if kind == schema.ConstraintFK && rConstraint.Valid {
			refTable, refCols, err := a.resolveReferencedConstraint(ctx, rOwner.String, rConstraint.String)
			if err == nil {
				c.ReferencedSchema = rOwner.String
				c.ReferencedTable = refTable
				c.ReferencedColumns = refCols
			}
		}
		cons = append(cons, c)
	}
	return cons, rows.Err()
}

func oracleDeleteRule(rule string) string {
	if rule == "" {
		return string(schema.ActionNoAction)
	}
	return rule
}

func constraintKind(t string) (schema.ConstraintKind, bool) {
	switch t {
	case "P":
		return schema.ConstraintPK, true
	case "U":
		return schema.ConstraintUQ, true
	case "R":
		return schema.ConstraintFK, true
	case "C":
		return schema.ConstraintCK, true
	default:
		return "", false
	}
}

func (a *Adapter) constraintColumns(ctx context.Context, name string) ([]string, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name FROM all_cons_columns
		WHERE owner = :1 AND constraint_name = :2 ORDER BY position`, a.owner(), name)
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

func (a *Adapter) resolveReferencedConstraint(ctx context.Context, owner, constraintName string) (string, []string, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT table_name FROM all_constraints WHERE owner = :1 AND constraint_name = :2`, owner, constraintName)
	var table string
	if err := row.Scan(&table); err != nil {
		return "", nil, err
	}
	rows, err := a.Query(ctx, `
		SELECT column_name FROM all_cons_columns
		WHERE owner = :1 AND constraint_name = :2 ORDER BY position`, owner, constraintName)
	if err != nil {
		return table, nil, err
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return table, cols, err
		}
		cols = append(cols, c)
	}
	return table, cols, rows.Err()
}

func (a *Adapter) introspectIndexes(ctx context.Context, table string) ([]*schema.SchemaIndex, error) {
	rows, err := a.Query(ctx, `
		SELECT i.index_name, i.uniqueness, ic.column_name
		FROM all_indexes i
		JOIN all_ind_columns ic ON ic.index_name = i.index_name AND ic.index_owner = i.owner
		WHERE i.table_owner = :1 AND i.table_name = :2
		  AND i.index_name NOT IN (
		    SELECT constraint_name FROM all_constraints
		    WHERE owner = :1 AND table_name = :2 AND constraint_type = 'P')
		ORDER BY i.index_name, ic.column_position`, a.owner(), table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*schema.SchemaIndex{}
	var order []string
	for rows.Next() {
		var name, uniqueness, col string
		if err := rows.Scan(&name, &uniqueness, &col); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &schema.SchemaIndex{Name: name, Table: table, Namespace: a.owner(), Unique: uniqueness == "UNIQUE"}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, col)
	}
	var out []*schema.SchemaIndex
	for _, n := range order {
		out = append(out, byName[n])
	}
	return out, rows.Err()
}

func (a *Adapter) introspectViews(ctx context.Context) ([]*schema.SchemaView, error) {
	rows, err := a.Query(ctx, `
		SELECT view_name, text FROM all_views WHERE owner = :1`, a.owner())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var views []*schema.SchemaView
	for rows.Next() {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return nil, err
		}
		views = append(views, &schema.SchemaView{Namespace: a.owner(), Name: name, Definition: def})
	}
	return views, rows.Err()
}

// ParseType implements schema.TypeParser for Oracle's
// all_tab_columns.data_type vocabulary.
func ParseType(nativeType string, maxLen, precision, scale int) schema.NormalizedType {
	switch strings.ToUpper(nativeType) {
	case "NUMBER":
		if scale == 0 && precision > 0 {
			return schema.NormalizedType{Category: schema.CategoryInteger, Size: precision}
		}
		return schema.NormalizedType{Category: schema.CategoryDecimal, Precision: precision, Scale: scale}
	case "FLOAT", "BINARY_FLOAT", "BINARY_DOUBLE":
		return schema.NormalizedType{Category: schema.CategoryFloat, Precision: precision}
	case "DATE":
		return schema.NormalizedType{Category: schema.CategoryDate}
	case "TIMESTAMP":
		return schema.NormalizedType{Category: schema.CategoryDateTime}
	case "CHAR", "NCHAR":
		return schema.NormalizedType{Category: schema.CategoryChar, Size: maxLen}
	case "VARCHAR2", "NVARCHAR2":
		return schema.NormalizedType{Category: schema.CategoryVarchar, Size: maxLen}
	case "CLOB", "LONG", "NCLOB":
		return schema.NormalizedType{Category: schema.CategoryText}
	case "BLOB", "RAW", "LONG RAW":
		return schema.NormalizedType{Category: schema.CategoryBinary, Size: maxLen}
	default:
		return schema.NormalizedType{Category: schema.CategoryUnknown}
	}
}

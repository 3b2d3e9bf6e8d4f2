// Package mysql implements the MySQL/MariaDB provider adapter, grounded
// on nethalo-dbsafe and Pieczasz-smf, both of which import
// go-sql-driver/mysql as their connectivity layer.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

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

func (a *Adapter) Provider() schema.Provider { return schema.ProviderMySQL }

func (a *Adapter) dsn() string {
	c := mysql.NewConfig()
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", a.cfg.Server, a.cfg.Port)
	c.User = a.cfg.Username
	c.Passwd = a.cfg.Password
	c.DBName = a.cfg.Database
	c.ParseTime = true
	if a.cfg.Charset != "" {
		c.Params = map[string]string{"charset": a.cfg.Charset}
	}
	if strings.EqualFold(a.cfg.MySQLSSLMode, "required") {
		c.TLSConfig = "true"
	}
	return c.FormatDSN()
}

// Connect opens the connection pool and verifies it with a ping, retried
// under the shared linear-backoff policy (spec.md §4.1/§7: connection
// creation failures are retried internally before surfacing).
func (a *Adapter) Connect(ctx context.Context) error {
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		db, err := sql.Open("mysql", a.dsn())
		if err != nil {
			return fmt.Errorf("mysql: open connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("mysql: connect: %w", err)
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
	"add": true, "all": true, "alter": true, "and": true, "as": true, "asc": true,
	"before": true, "between": true, "by": true, "call": true, "cascade": true,
	"case": true, "change": true, "check": true, "column": true, "condition": true,
	"constraint": true, "create": true, "cross": true, "current_date": true,
	"current_time": true, "current_timestamp": true, "current_user": true,
	"database": true, "default": true, "delete": true, "desc": true, "distinct": true,
	"drop": true, "else": true, "exists": true, "explain": true, "false": true,
	"foreign": true, "from": true, "group": true, "having": true, "if": true,
	"in": true, "index": true, "inner": true, "insert": true, "interval": true,
	"into": true, "is": true, "join": true, "key": true, "left": true, "like": true,
	"limit": true, "match": true, "not": true, "null": true, "on": true, "or": true,
	"order": true, "outer": true, "primary": true, "references": true, "rename": true,
	"right": true, "select": true, "set": true, "table": true, "then": true,
	"to": true, "trigger": true, "true": true, "union": true, "unique": true,
	"update": true, "use": true, "using": true, "values": true, "when": true,
	"where": true, "with": true,
}

func (a *Adapter) ReservedWords(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

func (a *Adapter) IsTransient(err error) bool {
	var mysqlErr *mysql.MySQLError
	if ok := asMySQLError(err, &mysqlErr); ok {
		switch mysqlErr.Number {
		case 1213, 1205:
			return true
		}
	}
	msg := strings.ToLower(fmt.Sprint(err))
	for _, s := range []string{"deadlock found", "lock wait timeout exceeded", "try restarting transaction"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func asMySQLError(err error, target **mysql.MySQLError) bool {
	if me, ok := err.(*mysql.MySQLError); ok {
		*target = me
		return true
	}
	return false
}

func (a *Adapter) Introspect(ctx context.Context) (*schema.DatabaseSchema, error) {
	out := &schema.DatabaseSchema{Provider: schema.ProviderMySQL, DatabaseName: a.cfg.Database}

	tables, err := a.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("mysql: introspect tables: %w", err)
	}
	out.Tables = tables

	views, err := a.introspectViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("mysql: introspect views: %w", err)
	}
	out.Views = views
	return out, nil
}

func (a *Adapter) introspectTables(ctx context.Context) ([]*schema.SchemaTable, error) {
	rows, err := a.Query(ctx, `
		SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, a.cfg.Database)
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
	return tables, rows.Err()
}

func (a *Adapter) introspectColumns(ctx context.Context, table string) ([]*schema.SchemaColumn, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name, data_type, is_nullable, column_default,
		       COALESCE(character_maximum_length, 0), COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0),
		       extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, a.cfg.Database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*schema.SchemaColumn
	for rows.Next() {
		var name, dataType, nullable, extra string
		var def sql.NullString
		var maxLen, precision, scale int
		if err := rows.Scan(&name, &dataType, &nullable, &def, &maxLen, &precision, &scale, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, &schema.SchemaColumn{
			Name: name, NativeType: dataType, Type: ParseType(dataType, maxLen, precision, scale),
			Nullable: nullable == "YES", MaxLength: maxLen, Precision: precision, Scale: scale,
			HasDefault: def.Valid, DefaultValue: def.String,
			Identity: strings.Contains(extra, "auto_increment"),
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) introspectConstraints(ctx context.Context, table string) ([]*schema.SchemaConstraint, error) {
	rows, err := a.Query(ctx, `
		SELECT constraint_name, constraint_type FROM information_schema.table_constraints
		WHERE table_schema = ? AND table_name = ?`, a.cfg.Database, table)
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
		c := &schema.SchemaConstraint{Name: name, Kind: kind, Table: table, Namespace: a.cfg.Database}
		if c.Columns, err = a.constraintColumns(ctx, name); err != nil {
			return nil, err
		}
		if kind == schema.ConstraintFK {
			if err := a.fillForeignKey(ctx, name, c); err != nil {
				return nil, err
			}
		}
		cons = append(cons, c)
	}
	return cons, rows.Err()
}

func constraintKind(t string) (schema.ConstraintKind, bool) {
	switch t {
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

func (a *Adapter) constraintColumns(ctx context.Context, name string) ([]string, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = ? ORDER BY ordinal_position`, a.cfg.Database, name)
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

func (a *Adapter) fillForeignKey(ctx context.Context, name string, c *schema.SchemaConstraint) error {
	row := a.db.QueryRowContext(ctx, `
		SELECT referenced_table_name, update_rule, delete_rule
		FROM information_schema.referential_constraints
		WHERE constraint_schema = ? AND constraint_name = ? LIMIT 1`, a.cfg.Database, name)
	var refTable, onUpdate, onDelete string
	if err := row.Scan(&refTable, &onUpdate, &onDelete); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	c.ReferencedTable = refTable
	c.ReferencedSchema = a.cfg.Database
	c.OnUpdate = schema.ReferentialAction(onUpdate)
	c.OnDelete = schema.ReferentialAction(onDelete)

	rows, err := a.Query(ctx, `
		SELECT referenced_column_name FROM information_schema.key_column_usage
		WHERE table_schema = ? AND constraint_name = ? AND referenced_column_name IS NOT NULL
		ORDER BY ordinal_position`, a.cfg.Database, name)
	if err != nil {
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var col string
		if rows.Scan(&col) == nil {
			c.ReferencedColumns = append(c.ReferencedColumns, col)
		}
	}
	return nil
}

func (a *Adapter) introspectIndexes(ctx context.Context, table string) ([]*schema.SchemaIndex, error) {
	rows, err := a.Query(ctx, `
		SELECT index_name, non_unique, column_name FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ? AND index_name != 'PRIMARY'
		ORDER BY index_name, seq_in_index`, a.cfg.Database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*schema.SchemaIndex{}
	var order []string
	for rows.Next() {
		var name string
		var nonUnique int
		var col string
		if err := rows.Scan(&name, &nonUnique, &col); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &schema.SchemaIndex{Name: name, Table: table, Namespace: a.cfg.Database, Unique: nonUnique == 0}
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
		SELECT table_name, view_definition FROM information_schema.views WHERE table_schema = ?`, a.cfg.Database)
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
		views = append(views, &schema.SchemaView{Namespace: a.cfg.Database, Name: name, Definition: def})
	}
	return views, rows.Err()
}

// ParseType implements schema.TypeParser for MySQL's
// information_schema.columns.data_type vocabulary.
func ParseType(nativeType string, maxLen, precision, scale int) schema.NormalizedType {
	switch strings.ToLower(nativeType) {
	case "tinyint", "smallint", "mediumint", "int", "integer", "bigint":
		return schema.NormalizedType{Category: schema.CategoryInteger, Size: maxLen}
	case "decimal", "numeric":
		return schema.NormalizedType{Category: schema.CategoryDecimal, Precision: precision, Scale: scale}
	case "float", "double":
		return schema.NormalizedType{Category: schema.CategoryFloat, Precision: precision}
	case "bool", "boolean":
		return schema.NormalizedType{Category: schema.CategoryBoolean}
	case "date":
		return schema.NormalizedType{Category: schema.CategoryDate}
	case "time":
		return schema.NormalizedType{Category: schema.CategoryTime}
	case "datetime", "timestamp":
		return schema.NormalizedType{Category: schema.CategoryDateTime}
	case "char":
		return schema.NormalizedType{Category: schema.CategoryChar, Size: maxLen}
	case "varchar":
		return schema.NormalizedType{Category: schema.CategoryVarchar, Size: maxLen}
	case "text", "tinytext", "mediumtext", "longtext":
		return schema.NormalizedType{Category: schema.CategoryText}
	case "blob", "tinyblob", "mediumblob", "longblob", "binary", "varbinary":
		return schema.NormalizedType{Category: schema.CategoryBinary, Size: maxLen}
	default:
		return schema.NormalizedType{Category: schema.CategoryUnknown}
	}
}

// Package sqlserver implements the SQL Server provider adapter (spec.md
// §4.1). No pack repo imports a SQL Server driver; wired per DESIGN.md's
// out-of-pack rule to github.com/microsoft/go-mssqldb, the maintained
// pure-Go driver, since spec.md mandates SQL Server as one of the five
// engines.
package sqlserver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

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

func (a *Adapter) Provider() schema.Provider { return schema.ProviderSQLServer }

func (a *Adapter) dsn() string {
	var b strings.Builder
	server := a.cfg.Server
	if a.cfg.Instance != "" {
		server += "\\" + a.cfg.Instance
	}
	fmt.Fprintf(&b, "server=%s;port=%d;database=%s;", server, a.cfg.Port, a.cfg.Database)
	if a.cfg.IntegratedAuth {
		b.WriteString("integrated security=sspi;")
	} else {
		fmt.Fprintf(&b, "user id=%s;password=%s;", a.cfg.Username, a.cfg.Password)
	}
	fmt.Fprintf(&b, "encrypt=%t;trustservercertificate=%t;", a.cfg.Encrypt, a.cfg.TrustServerCert)
	if a.cfg.ApplicationName != "" {
		fmt.Fprintf(&b, "app name=%s;", a.cfg.ApplicationName)
	}
	return b.String()
}

// Connect opens the connection pool and verifies it with a ping, retried
// under the shared linear-backoff policy (spec.md §4.1/§7: connection
// creation failures are retried internally before surfacing).
func (a *Adapter) Connect(ctx context.Context) error {
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		db, err := sql.Open("sqlserver", a.dsn())
		if err != nil {
			return fmt.Errorf("sqlserver: open connection: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("sqlserver: connect: %w", err)
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
	"add": true, "all": true, "alter": true, "and": true, "any": true, "as": true,
	"asc": true, "authorization": true, "backup": true, "begin": true,
	"between": true, "break": true, "browse": true, "bulk": true, "by": true,
	"cascade": true, "case": true, "check": true, "checkpoint": true, "close": true,
	"clustered": true, "coalesce": true, "collate": true, "column": true,
	"commit": true, "compute": true, "constraint": true, "contains": true,
	"continue": true, "create": true, "cross": true, "current": true,
	"current_date": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "cursor": true, "database": true, "dbcc": true,
	"deallocate": true, "declare": true, "default": true, "delete": true,
	"deny": true, "desc": true, "disk": true, "distinct": true, "distributed": true,
	"double": true, "drop": true, "dump": true, "else": true, "end": true,
	"errlvl": true, "escape": true, "except": true, "exec": true, "execute": true,
	"exists": true, "exit": true, "external": true, "fetch": true, "file": true,
	"fillfactor": true, "for": true, "foreign": true, "freetext": true,
	"from": true, "full": true, "function": true, "goto": true, "grant": true,
	"group": true, "having": true, "holdlock": true, "identity": true,
	"identity_insert": true, "identitycol": true, "if": true, "in": true,
	"index": true, "inner": true, "insert": true, "intersect": true,
	"into": true, "is": true, "join": true, "key": true, "kill": true,
	"left": true, "like": true, "lineno": true, "load": true, "merge": true,
	"national": true, "nocheck": true, "nonclustered": true, "not": true,
	"null": true, "nullif": true, "of": true, "off": true, "offsets": true,
	"on": true, "open": true, "opendatasource": true, "openquery": true,
	"openrowset": true, "openxml": true, "option": true, "or": true,
	"order": true, "outer": true, "over": true, "percent": true, "pivot": true,
	"plan": true, "precision": true, "primary": true, "print": true,
	"proc": true, "procedure": true, "public": true, "raiserror": true,
	"read": true, "readtext": true, "reconfigure": true, "references": true,
	"replication": true, "restore": true, "restrict": true, "return": true,
	"revert": true, "revoke": true, "right": true, "rollback": true,
	"rowcount": true, "rowguidcol": true, "rule": true, "save": true,
	"schema": true, "securityaudit": true, "select": true, "semantickeyphrasetable": true,
	"semanticsimilaritydetailstable": true, "semanticsimilaritytable": true,
	"session_user": true, "set": true, "setuser": true, "shutdown": true,
	"some": true, "statistics": true, "system_user": true, "table": true,
	"tablesample": true, "textsize": true, "then": true, "to": true, "top": true,
	"tran": true, "transaction": true, "trigger": true, "truncate": true,
	"try_convert": true, "tsequal": true, "union": true, "unique": true,
	"unpivot": true, "update": true, "updatetext": true, "use": true,
	"user": true, "values": true, "varying": true, "view": true, "waitfor": true,
	"when": true, "where": true, "while": true, "with": true, "within group": true,
	"writetext": true,
}

func (a *Adapter) ReservedWords(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

// IsTransient classifies errors by SQL Server's numeric error-number codes
// (spec.md §4.6): 1205 deadlock victim, 1222 lock request timeout, 8645
// resource pool timeout, 8651 low memory condition.
func (a *Adapter) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var mssqlErr mssql.Error
	if asMSSQLError(err, &mssqlErr) {
		if provider.SQLServerTransientErrorNumbers[mssqlErr.Number] {
			return true
		}
	}
	return false
}

func asMSSQLError(err error, target *mssql.Error) bool {
	if me, ok := err.(mssql.Error); ok {
		*target = me
		return true
	}
	return false
}

func (a *Adapter) Introspect(ctx context.Context) (*schema.DatabaseSchema, error) {
	out := &schema.DatabaseSchema{Provider: schema.ProviderSQLServer, DatabaseName: a.cfg.Database}

	tables, err := a.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlserver: introspect tables: %w", err)
	}
	out.Tables = tables

	views, err := a.introspectViews(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlserver: introspect views: %w", err)
	}
	out.Views = views
	return out, nil
}

func (a *Adapter) introspectTables(ctx context.Context) ([]*schema.SchemaTable, error) {
	rows, err := a.Query(ctx, `
		SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_type = 'BASE TABLE' ORDER BY table_name`)
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
		SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
		       COALESCE(c.character_maximum_length, 0), COALESCE(c.numeric_precision, 0), COALESCE(c.numeric_scale, 0),
		       COLUMNPROPERTY(OBJECT_ID(c.table_schema + '.' + c.table_name), c.column_name, 'IsIdentity')
		FROM information_schema.columns c
		WHERE c.table_schema = @p1 AND c.table_name = @p2
		ORDER BY c.ordinal_position`, ns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*schema.SchemaColumn
	for rows.Next() {
		var name, dataType, nullable string
		var def sql.NullString
		var maxLen, precision, scale, identity int
		if err := rows.Scan(&name, &dataType, &nullable, &def, &maxLen, &precision, &scale, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, &schema.SchemaColumn{
			Name: name, NativeType: dataType, Type: ParseType(dataType, maxLen, precision, scale),
			Nullable: nullable == "YES", MaxLength: maxLen, Precision: precision, Scale: scale,
			HasDefault: def.Valid, DefaultValue: def.String, Identity: identity == 1,
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) introspectConstraints(ctx context.Context, ns, table string) ([]*schema.SchemaConstraint, error) {
	rows, err := a.Query(ctx, `
		SELECT constraint_name, constraint_type FROM information_schema.table_constraints
		WHERE table_schema = @p1 AND table_name = @p2`, ns, table)
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
		if kind == schema.ConstraintCK {
			row := a.db.QueryRowContext(ctx, `
				SELECT check_clause FROM information_schema.check_constraints
				WHERE constraint_schema = @p1 AND constraint_name = @p2`, ns, name)
			_ = row.Scan(&c.CheckExpression)
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

func (a *Adapter) constraintColumns(ctx context.Context, ns, name string) ([]string, error) {
	rows, err := a.Query(ctx, `
		SELECT column_name FROM information_schema.key_column_usage
		WHERE table_schema = @p1 AND constraint_name = @p2 ORDER BY ordinal_position`, ns, name)
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

func (a *Adapter) fillForeignKey(ctx context.Context, ns, name string, c *schema.SchemaConstraint) error {
	row := a.db.QueryRowContext(ctx, `
		SELECT kcu2.table_schema, kcu2.table_name, rc.update_rule, rc.delete_rule
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu2
		  ON kcu2.constraint_name = rc.unique_constraint_name AND kcu2.ordinal_position = 1
		WHERE rc.constraint_schema = @p1 AND rc.constraint_name = @p2`, ns, name)
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
	return nil
}

func (a *Adapter) introspectIndexes(ctx context.Context, ns, table string) ([]*schema.SchemaIndex, error) {
	rows, err := a.Query(ctx, `
		SELECT i.name, i.is_unique, ic.key_ordinal, c.name, i.filter_definition, i.type_desc
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.objects o ON o.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE s.name = @p1 AND o.name = @p2 AND i.is_primary_key = 0 AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal`, ns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*schema.SchemaIndex{}
	var order []string
	for rows.Next() {
		var name string
		var unique bool
		var ordinal int
		var col string
		var filter sql.NullString
		var typeDesc string
		if err := rows.Scan(&name, &unique, &ordinal, &col, &filter, &typeDesc); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &schema.SchemaIndex{
				Name: name, Table: table, Namespace: ns, Unique: unique,
				Clustered: typeDesc == "CLUSTERED", Filter: filter.String,
			}
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
		SELECT table_schema, table_name, view_definition FROM information_schema.views`)
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

// ParseType implements schema.TypeParser for SQL Server's
// information_schema.columns.data_type vocabulary.
func ParseType(nativeType string, maxLen, precision, scale int) schema.NormalizedType {
	switch strings.ToLower(nativeType) {
	case "tinyint", "smallint", "int", "bigint":
		return schema.NormalizedType{Category: schema.CategoryInteger, Size: maxLen}
	case "decimal", "numeric", "money", "smallmoney":
		return schema.NormalizedType{Category: schema.CategoryDecimal, Precision: precision, Scale: scale}
	case "float", "real":
		return schema.NormalizedType{Category: schema.CategoryFloat, Precision: precision}
	case "bit":
		return schema.NormalizedType{Category: schema.CategoryBoolean}
	case "date":
		return schema.NormalizedType{Category: schema.CategoryDate}
	case "time":
		return schema.NormalizedType{Category: schema.CategoryTime}
	case "datetime", "datetime2", "smalldatetime", "datetimeoffset":
		return schema.NormalizedType{Category: schema.CategoryDateTime}
	case "char", "nchar":
		return schema.NormalizedType{Category: schema.CategoryChar, Size: maxLen}
	case "varchar", "nvarchar":
		return schema.NormalizedType{Category: schema.CategoryVarchar, Size: maxLen}
	case "text", "ntext":
		return schema.NormalizedType{Category: schema.CategoryText}
	case "binary", "varbinary", "image":
		return schema.NormalizedType{Category: schema.CategoryBinary, Size: maxLen}
	case "uniqueidentifier":
		return schema.NormalizedType{Category: schema.CategoryGUID}
	default:
		return schema.NormalizedType{Category: schema.CategoryUnknown}
	}
}

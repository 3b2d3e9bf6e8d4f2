// Package sqlite implements the SQLite provider adapter (spec.md §4.1).
// Out-of-pack: no repo in the retrieval pack touches SQLite, so this wires
// modernc.org/sqlite directly, chosen over mattn/go-sqlite3 because it is
// pure Go and needs no cgo toolchain, matching the rest of this module's
// driver set.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

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

func (a *Adapter) Provider() schema.Provider { return schema.ProviderSQLite }

func (a *Adapter) dsn() string {
	dsn := a.cfg.FilePath
	params := []string{}
	if a.cfg.JournalMode != "" {
		params = append(params, "_pragma=journal_mode("+a.cfg.JournalMode+")")
	}
	if a.cfg.Synchronous != "" {
		params = append(params, "_pragma=synchronous("+a.cfg.Synchronous+")")
	}
	params = append(params, "_pragma=foreign_keys(1)")
	if len(params) > 0 {
		dsn += "?" + strings.Join(params, "&")
	}
	return dsn
}

// Connect opens the connection pool and verifies it with a ping, retried
// under the shared linear-backoff policy (spec.md §4.1/§7: connection
// creation failures are retried internally before surfacing).
func (a *Adapter) Connect(ctx context.Context) error {
	_, err := a.retry.Do(ctx, a.IsTransient, nil, func(ctx context.Context) error {
		db, err := sql.Open("sqlite", a.dsn())
		if err != nil {
			return fmt.Errorf("sqlite: open connection: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return fmt.Errorf("sqlite: connect: %w", err)
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
	"abort": true, "action": true, "add": true, "after": true, "all": true,
	"alter": true, "analyze": true, "and": true, "as": true, "asc": true,
	"attach": true, "autoincrement": true, "before": true, "begin": true,
	"between": true, "by": true, "cascade": true, "case": true, "cast": true,
	"check": true, "collate": true, "column": true, "commit": true,
	"conflict": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_time": true, "current_timestamp": true,
	"database": true, "default": true, "deferrable": true, "deferred": true,
	"delete": true, "desc": true, "detach": true, "distinct": true, "drop": true,
	"each": true, "else": true, "end": true, "escape": true, "except": true,
	"exclusive": true, "exists": true, "explain": true, "fail": true,
	"for": true, "foreign": true, "from": true, "full": true, "glob": true,
	"group": true, "having": true, "if": true, "ignore": true, "immediate": true,
	"in": true, "index": true, "indexed": true, "initially": true, "inner": true,
	"insert": true, "instead": true, "intersect": true, "into": true, "is": true,
	"isnull": true, "join": true, "key": true, "left": true, "like": true,
	"limit": true, "match": true, "natural": true, "no": true, "not": true,
	"notnull": true, "null": true, "of": true, "offset": true, "on": true,
	"or": true, "order": true, "outer": true, "plan": true, "pragma": true,
	"primary": true, "query": true, "raise": true, "recursive": true,
	"references": true, "regexp": true, "reindex": true, "release": true,
	"rename": true, "replace": true, "restrict": true, "right": true,
	"rollback": true, "row": true, "savepoint": true, "select": true,
	"set": true, "table": true, "temp": true, "temporary": true, "then": true,
	"to": true, "transaction": true, "trigger": true, "union": true,
	"unique": true, "update": true, "using": true, "vacuum": true, "values": true,
	"view": true, "virtual": true, "when": true, "where": true, "with": true,
	"without": true,
}

func (a *Adapter) ReservedWords(name string) bool {
	return reservedWords[strings.ToLower(name)]
}

// IsTransient classifies SQLITE_BUSY/SQLITE_LOCKED as retryable: SQLite
// serializes writers at the file level, so lock contention under concurrent
// access is the only transient failure mode this engine has.
func (a *Adapter) IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

func (a *Adapter) Introspect(ctx context.Context) (*schema.DatabaseSchema, error) {
	out := &schema.DatabaseSchema{Provider: schema.ProviderSQLite, DatabaseName: a.cfg.FilePath}

	tables, err := a.introspectTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: introspect tables: %w", err)
	}
	out.Tables = tables
	return out, nil
}

func (a *Adapter) introspectTables(ctx context.Context) ([]*schema.SchemaTable, error) {
	rows, err := a.Query(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
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
		t := &schema.SchemaTable{Namespace: "main", Name: name}
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
	rows, err := a.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []*schema.SchemaColumn
	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, &schema.SchemaColumn{
			Name: name, NativeType: ctype, Type: ParseType(ctype, 0, 0, 0),
			Nullable: notNull == 0, HasDefault: dflt.Valid, DefaultValue: dflt.String,
			Identity: pk == 1 && strings.EqualFold(ctype, "integer"),
		})
	}
	return cols, rows.Err()
}

func (a *Adapter) introspectConstraints(ctx context.Context, table string) ([]*schema.SchemaConstraint, error) {
	var cons []*schema.SchemaConstraint

	pkRows, err := a.Query(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	var pkCols []string
	for pkRows.Next() {
		var cid int
		var name, ctype string
		var notNull, pk int
		var dflt sql.NullString
		if err := pkRows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			pkRows.Close()
			return nil, err
		}
		if pk > 0 {
			pkCols = append(pkCols, name)
		}
	}
	pkRows.Close()
	if len(pkCols) > 0 {
		cons = append(cons, &schema.SchemaConstraint{
			Name: table + "_pkey", Kind: schema.ConstraintPK, Table: table, Namespace: "main", Columns: pkCols,
		})
	}

	fkRows, err := a.Query(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()
	byID := map[int]*schema.SchemaConstraint{}
	var order []int
	for fkRows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		c, ok := byID[id]
		if !ok {
			c = &schema.SchemaConstraint{
				Name: fmt.Sprintf("%s_fk_%d", table, id), Kind: schema.ConstraintFK,
				Table: table, Namespace: "main", ReferencedTable: refTable, ReferencedSchema: "main",
				OnUpdate: schema.ReferentialAction(onUpdate), OnDelete: schema.ReferentialAction(onDelete),
			}
			byID[id] = c
			order = append(order, id)
		}
		c.Columns = append(c.Columns, from)
		c.ReferencedColumns = append(c.ReferencedColumns, to)
	}
	for _, id := range order {
		cons = append(cons, byID[id])
	}
	return cons, fkRows.Err()
}

func (a *Adapter) introspectIndexes(ctx context.Context, table string) ([]*schema.SchemaIndex, error) {
	rows, err := a.Query(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
	}
	var metas []idxMeta
	for rows.Next() {
		var seq int
		var name string
		var unique, partial int
		var origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}
		if origin == "pk" {
			continue
		}
		metas = append(metas, idxMeta{name: name, unique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []*schema.SchemaIndex
	for _, m := range metas {
		colRows, err := a.Query(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(m.name)))
		if err != nil {
			return nil, err
		}
		idx := &schema.SchemaIndex{Name: m.name, Table: table, Namespace: "main", Unique: m.unique}
		for colRows.Next() {
			var seqno, cid int
			var colName string
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			idx.Columns = append(idx.Columns, colName)
		}
		colRows.Close()
		out = append(out, idx)
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ParseType implements schema.TypeParser against SQLite's type-affinity
// rules: declared types are free text, so matching follows the affinity
// algorithm (substring rules) rather than an exact-name table.
func ParseType(nativeType string, maxLen, precision, scale int) schema.NormalizedType {
	t := strings.ToUpper(nativeType)
	switch {
	case strings.Contains(t, "INT"):
		return schema.NormalizedType{Category: schema.CategoryInteger}
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"):
		return schema.NormalizedType{Category: schema.CategoryVarchar, Size: maxLen}
	case strings.Contains(t, "TEXT"):
		return schema.NormalizedType{Category: schema.CategoryText}
	case strings.Contains(t, "BLOB"), t == "":
		return schema.NormalizedType{Category: schema.CategoryBinary}
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return schema.NormalizedType{Category: schema.CategoryFloat}
	case strings.Contains(t, "DECIMAL"), strings.Contains(t, "NUMERIC"):
		return schema.NormalizedType{Category: schema.CategoryDecimal, Precision: precision, Scale: scale}
	case strings.Contains(t, "BOOL"):
		return schema.NormalizedType{Category: schema.CategoryBoolean}
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return schema.NormalizedType{Category: schema.CategoryDateTime}
	case strings.Contains(t, "DATE"):
		return schema.NormalizedType{Category: schema.CategoryDate}
	default:
		return schema.NormalizedType{Category: schema.CategoryUnknown}
	}
}

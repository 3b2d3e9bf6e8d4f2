package scripts

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

var (
	reTableRef     = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE|REFERENCES)\s+([a-zA-Z_][\w.$]*)`)
	reProcedureRef = regexp.MustCompile(`(?i)\bEXEC(?:UTE)?\s+([a-zA-Z_][\w.$]*)`)
)

// ExtractDependencies finds the table and procedure names a script
// references (spec.md §4.8): FROM|JOIN|INTO|UPDATE|REFERENCES for tables,
// EXEC(UTE)? for procedures, on comment/string-stripped content. For
// content the TiDB parser can parse as MySQL DDL, CREATE TABLE's own name
// and its foreign-key targets are added too — the AST walk that
// Pieczasz-smf's internal/parser/mysql does for table definitions,
// reused here as the accurate path for the DDL case the regex pass can
// only approximate.
func ExtractDependencies(content string) []string {
	clean := stripCommentsAndStrings(content)
	set := map[string]bool{}

	for _, m := range reTableRef.FindAllStringSubmatch(clean, -1) {
		set[normalizeRef(m[1])] = true
	}
	for _, m := range reProcedureRef.FindAllStringSubmatch(clean, -1) {
		set[normalizeRef(m[1])] = true
	}
	for _, name := range tidbCreateTableRefs(content) {
		set[normalizeRef(name)] = true
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeRef(s string) string {
	return strings.Trim(s, `"'`+"`")
}

// tidbCreateTableRefs best-effort parses content as MySQL DDL and
// returns every table name it touches: the table being created, plus
// any foreign-key referenced tables. Non-MySQL dialects (SQL Server,
// Oracle, ...) simply fail to parse and yield no names; the regex pass
// above is what covers those.
func tidbCreateTableRefs(content string) (names []string) {
	defer func() {
		if recover() != nil {
			names = nil
		}
	}()

	p := parser.New()
	stmtNodes, _, err := p.Parse(content, "", "")
	if err != nil {
		return nil
	}

	for _, stmt := range stmtNodes {
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok {
			continue
		}
		names = append(names, create.Table.Name.O)
		for _, col := range create.Cols {
			for _, opt := range col.Options {
				if opt.Tp == ast.ColumnOptionReference && opt.Refer != nil {
					names = append(names, opt.Refer.Table.Name.O)
				}
			}
		}
		for _, c := range create.Constraints {
			if c.Tp == ast.ConstraintForeignKey && c.Refer != nil {
				names = append(names, c.Refer.Table.Name.O)
			}
		}
	}
	return names
}

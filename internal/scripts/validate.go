package scripts

import (
	"regexp"
	"sort"
	"strings"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

var forbiddenConstructs = []struct {
	pattern *regexp.Regexp
	code    string
}{
	{regexp.MustCompile(`(?i)\bDROP\s+DATABASE\b`), "FORBIDDEN_DROP_DATABASE"},
	{regexp.MustCompile(`(?i)\bSHUTDOWN\b`), "FORBIDDEN_SHUTDOWN"},
	{regexp.MustCompile(`(?i)\bxp_cmdshell\b`), "FORBIDDEN_XP_CMDSHELL"},
	{regexp.MustCompile(`(?i)\bFORMAT\b`), "FORBIDDEN_FORMAT"},
	{regexp.MustCompile(`(?i)\bOPENROWSET\b`), "FORBIDDEN_OPENROWSET"},
	{regexp.MustCompile(`(?i)\bBULK\s+INSERT\b`), "FORBIDDEN_BULK_INSERT"},
}

// providerBlacklist names syntax substrings that belong to a different
// engine's dialect and cannot run against the named provider (spec.md
// §4.8's "provider incompatibilities" per-provider blacklist).
var providerBlacklist = map[schema.Provider][]string{
	schema.ProviderSQLServer: {"AUTO_INCREMENT", "SERIAL", "DBMS_OUTPUT", "ROWNUM", "::"},
	schema.ProviderPostgres:  {"AUTO_INCREMENT", "IDENTITY(", "DBMS_OUTPUT", "ROWNUM", "TOP ("},
	schema.ProviderMySQL:     {"SERIAL PRIMARY KEY", "IDENTITY(", "DBMS_OUTPUT", "ROWNUM", "TOP ("},
	schema.ProviderOracle:    {"AUTO_INCREMENT", "SERIAL", "IDENTITY(", "LIMIT ", "TOP ("},
	schema.ProviderSQLite:    {"DBMS_OUTPUT", "ROWNUM", "IDENTITY("},
}

// Validate runs the ingestor's validation phase over the full ingested
// set (spec.md §4.8): balanced parentheses/quotes, forbidden constructs,
// per-provider incompatibilities, and a cross-script circular dependency
// check.
func Validate(scripts []*schema.CustomScript, p schema.Provider) ([]schema.ValidationError, []schema.ValidationWarning) {
	var errs []schema.ValidationError
	var warnings []schema.ValidationWarning

	for _, s := range scripts {
		if !balancedParens(s.Content) {
			errs = append(errs, schema.ValidationError{
				Code: "UNBALANCED_PARENTHESES", Message: "unbalanced parentheses in " + s.FilePath, Object: s.FilePath,
			})
		}
		if !balancedQuotes(s.Content) {
			errs = append(errs, schema.ValidationError{
				Code: "UNBALANCED_QUOTES", Message: "unbalanced single quotes in " + s.FilePath, Object: s.FilePath,
			})
		}

		clean := stripCommentsAndStrings(s.Content)
		for _, f := range forbiddenConstructs {
			if f.pattern.MatchString(clean) {
				errs = append(errs, schema.ValidationError{
					Code: f.code, Message: "forbidden construct in " + s.FilePath, Object: s.FilePath,
				})
			}
		}

		upper := strings.ToUpper(clean)
		for _, term := range providerBlacklist[p] {
			if strings.Contains(upper, term) {
				warnings = append(warnings, schema.ValidationWarning{
					Code: "PROVIDER_INCOMPATIBLE_SYNTAX", Message: s.FilePath + " contains syntax not supported by " + string(p), Object: s.FilePath,
				})
				break
			}
		}
	}

	if cyclePath := scriptDependencyCycle(scripts); cyclePath != "" {
		risk := schema.RiskRisky
		errs = append(errs, schema.ValidationError{
			Code: "CIRCULAR_DEPENDENCY", Message: "circular dependency among scripts: " + cyclePath, Object: cyclePath, RiskLevel: &risk,
		})
	}

	return errs, warnings
}

func balancedParens(s string) bool {
	clean := stripCommentsAndStrings(s)
	depth := 0
	for _, c := range clean {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth < 0 {
			return false
		}
	}
	return depth == 0
}

func balancedQuotes(s string) bool {
	// stripCommentsAndStrings already consumes matched quote pairs; an
	// odd/unterminated literal leaves a dangling quote that the comment
	// stripper's scan only detects as "ran off the end". Re-derive that
	// here by counting raw single quotes outside of comments: a
	// correctly paired script always has an even count once comments
	// (which may contain apostrophes) are removed.
	withoutComments := stripSQLComments(s)
	count := strings.Count(withoutComments, "'") - 2*strings.Count(withoutComments, "''")
	return count%2 == 0
}

// stripSQLComments removes -- and /* */ comments but leaves string
// literals intact, for balancedQuotes' raw quote count.
func stripSQLComments(s string) string {
	var b strings.Builder
	runes := []rune(s)
	n := len(runes)
	for i := 0; i < n; i++ {
		c := runes[i]
		if c == '-' && i+1 < n && runes[i+1] == '-' {
			for i < n && runes[i] != '\n' {
				i++
			}
			continue
		}
		if c == '/' && i+1 < n && runes[i+1] == '*' {
			i += 2
			for i+1 < n && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// scriptDependencyCycle builds an adjacency map from each script's
// Dependencies (restricted to other scripts' Name) and runs DFS with a
// recursion stack, the same shape internal/differ's checkCycles uses
// (state/dependencies.go's dfsForCycles), generalized across script
// files instead of schema changes.
func scriptDependencyCycle(scripts []*schema.CustomScript) string {
	names := map[string]bool{}
	for _, s := range scripts {
		names[s.Name] = true
	}
	adj := map[string][]string{}
	for _, s := range scripts {
		for _, dep := range s.Dependencies {
			if names[dep] {
				adj[s.Name] = append(adj[s.Name], dep)
			}
		}
	}

	visited := map[string]bool{}
	recStack := map[string]bool{}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !visited[k] {
			if path := dfsScriptCycle(k, adj, visited, recStack, nil); len(path) > 0 {
				return strings.Join(path, " -> ")
			}
		}
	}
	return ""
}

func dfsScriptCycle(node string, adj map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, next := range adj[node] {
		if !visited[next] {
			if p := dfsScriptCycle(next, adj, visited, recStack, path); len(p) > 0 {
				return p
			}
		} else if recStack[next] {
			for i, n := range path {
				if n == next {
					return path[i:]
				}
			}
		}
	}

	recStack[node] = false
	return nil
}

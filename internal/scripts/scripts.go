// Package scripts implements the custom-script ingestor (spec.md §4.8):
// it reads every *.sql file under a scripts directory, classifies each
// one, risk-rates it, extracts its dependencies and header metadata, and
// validates the set before the planner merges it into the deployment
// plan as CUSTOM_SCRIPT operations. Classification matches word-boundary
// keyword patterns on the raw content; risk rating and dependency
// extraction match them over comment-and-string-stripped content (spec.md
// §9's flagged ambiguity: "implementer should tokenize instead of
// substring-match"), since scripts here are arbitrary multi-provider
// SQL. Dependency extraction also runs a
// TiDB parser AST walk, grounded on Pieczasz-smf's internal/parser/mysql,
// which adds CREATE TABLE names and foreign-key targets for content that
// parses as MySQL DDL.
package scripts

import (
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// DefaultDirNames are the directory names the ingestor probes, in order,
// when the caller does not supply an explicit scripts path (spec.md §4.8).
var DefaultDirNames = []string{
	"SqlScripts", "Scripts", "sql", "database", "db", "migrations", "Database/Scripts",
}

// Result is the ingestor's complete output for one scripts directory.
type Result struct {
	Scripts  []*schema.CustomScript
	Errors   []schema.ValidationError
	Warnings []schema.ValidationWarning
}

// IsValid reports whether the ingest produced no blocking errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

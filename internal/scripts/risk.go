package scripts

import (
	"regexp"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// riskyTokens are unconditionally Risky per spec.md §4.8's risky set,
// minus ALTER/DELETE/UPDATE which get their own nuanced rules below
// (spec.md §9 flags the source regex as ambiguous on this point; this
// ingestor tokenizes on word boundaries over stripped content instead of
// raw substring matching, and resolves the set/pattern overlap as:
// always-risky tokens, then DELETE/UPDATE judged by WHERE presence, then
// ALTER/GRANT/REVOKE as Warning).
var riskyTokens = regexp.MustCompile(`(?i)\b(DROP|TRUNCATE|EXEC|EXECUTE|BULK|OPENROWSET|OPENDATASOURCE|SHUTDOWN|RESTORE|BACKUP|DBCC|KILL|WAITFOR)\b|\b(xp_|sp_)\w*`)

var warningTokens = regexp.MustCompile(`(?i)\b(ALTER|GRANT|REVOKE)\b`)

var (
	reDelete = regexp.MustCompile(`(?i)\bDELETE\b`)
	reUpdate = regexp.MustCompile(`(?i)\bUPDATE\b`)
	reWhere  = regexp.MustCompile(`(?i)\bWHERE\b`)
)

// RiskRate classifies a script's risk level from its SQL content
// (spec.md §4.8).
func RiskRate(content string) schema.RiskLevel {
	clean := stripCommentsAndStrings(content)

	if riskyTokens.MatchString(clean) {
		return schema.RiskRisky
	}

	hasDelete := reDelete.MatchString(clean)
	hasUpdate := reUpdate.MatchString(clean)
	if hasDelete || hasUpdate {
		if !reWhere.MatchString(clean) {
			return schema.RiskRisky
		}
		return schema.RiskWarning
	}

	if warningTokens.MatchString(clean) {
		return schema.RiskWarning
	}

	return schema.RiskSafe
}

var reRetryable = regexp.MustCompile(`(?i)\bIF\s+(NOT\s+)?EXISTS\b|\bMERGE\b|\bUPSERT\b`)

// Retryable reports whether a script is safe to retry on transient
// failure: only when it guards itself with IF [NOT] EXISTS, MERGE, or
// UPSERT (spec.md §4.8).
func Retryable(content string) bool {
	return reRetryable.MatchString(stripCommentsAndStrings(content))
}

var reNoTransaction = regexp.MustCompile(`(?i)\bCREATE\s+(UNIQUE\s+|CLUSTERED\s+|NONCLUSTERED\s+)*INDEX\b|\bDROP\s+INDEX\b|\bBACKUP\b|\bRESTORE\b|\bDBCC\b|\bCHECKPOINT\b`)

var reStatementSeparator = regexp.MustCompile(`;\s*\S`)

// Transactional reports whether a script should run inside a transaction
// (spec.md §4.8): false when it contains CREATE/DROP INDEX, BACKUP,
// RESTORE, DBCC, or CHECKPOINT; true otherwise, and always true for
// multi-statement scripts or ones that modify data or structure.
func Transactional(content string, kind schema.ScriptKind) bool {
	clean := stripCommentsAndStrings(content)
	if reNoTransaction.MatchString(clean) {
		return false
	}
	if reStatementSeparator.MatchString(clean) {
		return true
	}
	switch kind {
	case schema.ScriptDDL, schema.ScriptDML, schema.ScriptData, schema.ScriptMigration:
		return true
	default:
		return true
	}
}

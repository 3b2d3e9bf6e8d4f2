package scripts

import (
	"regexp"
	"strings"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// filenameKeywords maps a lower-cased filename substring to the script
// kind it implies, checked before any content pattern (spec.md §4.8:
// "classify by filename keywords first").
var filenameKeywords = []struct {
	substr string
	kind   schema.ScriptKind
}{
	{"procedure", schema.ScriptProcedure},
	{"sproc", schema.ScriptProcedure},
	{"function", schema.ScriptFunction},
	{"func_", schema.ScriptFunction},
	{"view", schema.ScriptView},
	{"index", schema.ScriptIndex},
	{"trigger", schema.ScriptTrigger},
	{"data", schema.ScriptData},
	{"seed", schema.ScriptData},
	{"migration", schema.ScriptMigration},
	{"migrate", schema.ScriptMigration},
}

var (
	reCreateProcedure = regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+|OR\s+ALTER\s+)?PROC(EDURE)?\b`)
	reCreateFunction  = regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+|OR\s+ALTER\s+)?FUNCTION\b`)
	reCreateView      = regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+|OR\s+ALTER\s+)?VIEW\b`)
	reCreateIndex     = regexp.MustCompile(`(?i)\bCREATE\s+(UNIQUE\s+|CLUSTERED\s+|NONCLUSTERED\s+)*INDEX\b`)
	reCreateTrigger   = regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+)?TRIGGER\b`)

	reDDL = regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP)\b`)
	reDML = regexp.MustCompile(`(?i)\b(INSERT|UPDATE|DELETE|MERGE)\b`)
)

// Classify determines a script's kind from its filename and content,
// per spec.md §4.8: filename keywords first, then content patterns,
// falling back to DDL/DML detection.
func Classify(filename, content string) schema.ScriptKind {
	lower := strings.ToLower(filename)
	for _, fk := range filenameKeywords {
		if strings.Contains(lower, fk.substr) {
			return fk.kind
		}
	}

	switch {
	case reCreateProcedure.MatchString(content):
		return schema.ScriptProcedure
	case reCreateFunction.MatchString(content):
		return schema.ScriptFunction
	case reCreateView.MatchString(content):
		return schema.ScriptView
	case reCreateTrigger.MatchString(content):
		return schema.ScriptTrigger
	case reCreateIndex.MatchString(content):
		return schema.ScriptIndex
	}

	switch {
	case reDDL.MatchString(content):
		return schema.ScriptDDL
	case reDML.MatchString(content):
		return schema.ScriptDML
	default:
		return schema.ScriptCustom
	}
}

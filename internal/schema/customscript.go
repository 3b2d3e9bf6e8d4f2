package schema

// ScriptKind classifies a custom SQL script by what it does, driving
// both risk-rating and default phase placement (spec.md §4.8).
type ScriptKind string

const (
	ScriptDDL       ScriptKind = "DDL"
	ScriptDML       ScriptKind = "DML"
	ScriptProcedure ScriptKind = "PROCEDURE"
	ScriptFunction  ScriptKind = "FUNCTION"
	ScriptView      ScriptKind = "VIEW"
	ScriptIndex     ScriptKind = "INDEX"
	ScriptTrigger   ScriptKind = "TRIGGER"
	ScriptData      ScriptKind = "DATA"
	ScriptMigration ScriptKind = "MIGRATION"
	ScriptCustom    ScriptKind = "CUSTOM"
)

// CustomScript is one ingested *.sql file (spec.md §3, §4.8).
type CustomScript struct {
	FilePath        string
	Name            string
	Kind            ScriptKind
	Content         string
	Risk            RiskLevel
	ExecutionOrder  int
	Transactional   bool
	Retryable       bool
	Dependencies    []string
	RollbackScript  string // empty when none declared/found
	Namespace       string

	PinnedPhase int // 0 = no pin; otherwise 1-29 per header directive
}

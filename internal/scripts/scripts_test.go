package scripts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestClassify_FilenameKeywordWins(t *testing.T) {
	assert.Equal(t, schema.ScriptProcedure, Classify("010_create_procedure_refresh.sql", "SELECT 1;"))
	assert.Equal(t, schema.ScriptView, Classify("05_view_active_users.sql", "DELETE FROM users;"))
}

func TestClassify_ContentFallback(t *testing.T) {
	assert.Equal(t, schema.ScriptProcedure, Classify("010_misc.sql", "CREATE PROCEDURE dbo.Foo AS SELECT 1"))
	assert.Equal(t, schema.ScriptDDL, Classify("misc.sql", "ALTER TABLE orders ADD COLUMN total INT"))
	assert.Equal(t, schema.ScriptDML, Classify("misc.sql", "INSERT INTO orders(id) VALUES (1)"))
	assert.Equal(t, schema.ScriptCustom, Classify("misc.sql", "SELECT 1"))
}

func TestRiskRate(t *testing.T) {
	assert.Equal(t, schema.RiskSafe, RiskRate("INSERT INTO users(id,name) VALUES (1,'a');"))
	assert.Equal(t, schema.RiskWarning, RiskRate("UPDATE users SET name='a' WHERE id=1;"))
	assert.Equal(t, schema.RiskRisky, RiskRate("UPDATE users SET name='a';"))
	assert.Equal(t, schema.RiskRisky, RiskRate("DELETE FROM users;"))
	assert.Equal(t, schema.RiskRisky, RiskRate("DROP TABLE users;"))
	assert.Equal(t, schema.RiskRisky, RiskRate("EXEC xp_cmdshell 'dir';"))
	assert.Equal(t, schema.RiskWarning, RiskRate("GRANT SELECT ON users TO app_role;"))
	// a comment mentioning DROP must not trip the risky classifier
	assert.Equal(t, schema.RiskSafe, RiskRate("-- DROP semantics discussed in runbook\nSELECT 1;"))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable("IF NOT EXISTS (SELECT 1 FROM sys.tables WHERE name='x') CREATE TABLE x (id INT);"))
	assert.True(t, Retryable("MERGE INTO target t USING source s ON t.id=s.id WHEN MATCHED THEN UPDATE SET t.v=s.v;"))
	assert.False(t, Retryable("INSERT INTO users(id) VALUES (1);"))
}

func TestTransactional(t *testing.T) {
	assert.False(t, Transactional("CREATE INDEX ix_users_name ON users(name);", schema.ScriptIndex))
	assert.True(t, Transactional("INSERT INTO users(id) VALUES (1);", schema.ScriptData))
}

func TestExtractDependencies(t *testing.T) {
	deps := ExtractDependencies("INSERT INTO users(id) SELECT id FROM staging_users su JOIN accounts a ON a.user_id = su.id; EXEC dbo.RefreshStats;")
	assert.Contains(t, deps, "users")
	assert.Contains(t, deps, "staging_users")
	assert.Contains(t, deps, "accounts")
	assert.Contains(t, deps, "dbo.RefreshStats")
}

func TestExtractDependencies_CreateTableForeignKey(t *testing.T) {
	deps := ExtractDependencies("CREATE TABLE orders (id INT PRIMARY KEY, user_id INT, FOREIGN KEY (user_id) REFERENCES users(id));")
	assert.Contains(t, deps, "orders")
	assert.Contains(t, deps, "users")
}

func TestParseHeader_OrderAndRollback(t *testing.T) {
	content := "-- Description: seed initial users\n-- Order: 50\n-- Rollback: 010_seed_down.sql\nINSERT INTO users(id,name) VALUES(1,'a');"
	h := ParseHeader(content)
	require.NotNil(t, h.Order)
	assert.Equal(t, 50, *h.Order)
	assert.Equal(t, "010_seed_down.sql", h.Rollback)
	assert.Equal(t, "seed initial users", h.Description)
}

func TestResolveOrder_HeaderOverridesFilenamePrefix(t *testing.T) {
	h := ParseHeader("-- Order: 50\nINSERT INTO users(id) VALUES(1);")
	order := ResolveOrder("010_seed.sql", h, schema.ScriptData)
	assert.Equal(t, 50, order)
}

func TestResolveOrder_FilenamePrefixWhenNoHeader(t *testing.T) {
	order := ResolveOrder("010_seed.sql", Header{}, schema.ScriptData)
	assert.Equal(t, 10, order)
}

// E6 — custom script header (spec.md §8): a file with an Order header and
// sibling rollback script classifies as DATA, Safe, execution_order 50,
// rollback loaded, transactional, non-retryable.
func TestIngest_E6CustomScriptHeader(t *testing.T) {
	dir := t.TempDir()
	scriptsDir := filepath.Join(dir, "SqlScripts")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))

	main := "-- Order: 50\n-- Rollback: 010_seed_down.sql\nINSERT INTO users(id,name) VALUES(1,'a');\n"
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "010_seed.sql"), []byte(main), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "010_seed_down.sql"), []byte("DELETE FROM users WHERE id=1;\n"), 0o644))

	res, err := Ingest(dir, "", schema.ProviderPostgres, "public")
	require.NoError(t, err)
	require.True(t, res.IsValid())

	var seed *schema.CustomScript
	for _, s := range res.Scripts {
		if s.Name == "010_seed" {
			seed = s
		}
	}
	require.NotNil(t, seed)
	assert.Equal(t, schema.ScriptData, seed.Kind)
	assert.Equal(t, schema.RiskSafe, seed.Risk)
	assert.Equal(t, 50, seed.ExecutionOrder)
	assert.Contains(t, seed.RollbackScript, "DELETE FROM users")
	assert.True(t, seed.Transactional)
	assert.False(t, seed.Retryable)
}

func TestIngest_OversizedScriptRecordedAsError(t *testing.T) {
	dir := t.TempDir()
	scriptsDir := filepath.Join(dir, "SqlScripts")
	require.NoError(t, os.MkdirAll(scriptsDir, 0o755))

	huge := make([]byte, maxScriptSize+1)
	for i := range huge {
		huge[i] = ' '
	}
	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "010_huge.sql"), huge, 0o644))

	res, err := Ingest(dir, "", schema.ProviderPostgres, "public")
	require.NoError(t, err)
	require.Len(t, res.Scripts, 0)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "SCRIPT_UNREADABLE", res.Errors[0].Code)
	assert.False(t, res.IsValid())
}

func TestValidate_ForbiddenConstructsAndCircularDependency(t *testing.T) {
	bad := &schema.CustomScript{FilePath: "bad.sql", Name: "bad", Content: "DROP DATABASE production;"}
	a := &schema.CustomScript{FilePath: "a.sql", Name: "a", Dependencies: []string{"b"}}
	b := &schema.CustomScript{FilePath: "b.sql", Name: "b", Dependencies: []string{"a"}}

	errs, _ := Validate([]*schema.CustomScript{bad, a, b}, schema.ProviderPostgres)

	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, "FORBIDDEN_DROP_DATABASE")
	assert.Contains(t, codes, "CIRCULAR_DEPENDENCY")
}

func TestValidate_UnbalancedParens(t *testing.T) {
	s := &schema.CustomScript{FilePath: "x.sql", Name: "x", Content: "SELECT * FROM foo WHERE (a = 1;"}
	errs, _ := Validate([]*schema.CustomScript{s}, schema.ProviderPostgres)
	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, "UNBALANCED_PARENTHESES")
}

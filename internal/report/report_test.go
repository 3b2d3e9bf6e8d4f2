package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestWriteAll_CreatesAllNamedFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Provider: schema.ProviderPostgres, Env: config.EnvDev}
	cfg.Connection.Database = "appdb"
	cfg.Normalize()

	b := &Bundle{
		Config:      cfg,
		Diff:        &schema.DiffResult{},
		Assessment:  &schema.RiskAssessment{OverallRiskLevel: schema.RiskSafe},
		Plan:        &schema.DeploymentPlan{},
		CompiledSQL: "CREATE TABLE x (id INT);",
		RollbackSQL: "DROP TABLE x;",
		TagPatterns: []string{"v*.*.*"},
	}

	require.NoError(t, WriteAll(dir, b))

	for _, name := range []string{
		"schema-analysis.json", "deployment-plan.json", "validation-report.json",
		"compiled-deployment.sql", "rollback-script.sql", "tag-patterns.json",
		"approval-request.json", "DEPLOYMENT_SUMMARY.md", "pipeline-tools.log",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(&schema.RiskAssessment{OverallRiskLevel: schema.RiskSafe}, false))
	assert.Equal(t, 1, ExitCode(&schema.RiskAssessment{OverallRiskLevel: schema.RiskWarning}, false))
	assert.Equal(t, 2, ExitCode(&schema.RiskAssessment{OverallRiskLevel: schema.RiskRisky}, false))
	assert.Equal(t, ExitDeploymentExecutionFailure, ExitCode(&schema.RiskAssessment{OverallRiskLevel: schema.RiskSafe}, true))
}

package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

func devConfig() *config.Config {
	c := &config.Config{Provider: schema.ProviderPostgres, Env: config.EnvDev}
	c.Normalize()
	return c
}

func TestAssess_AllSafeIsSafe(t *testing.T) {
	diff := &schema.DiffResult{
		Changes: []*schema.SchemaChange{
			{Operation: schema.OpCreate, Object: schema.ObjectTable, Name: "public.users", Risk: schema.RiskSafe},
		},
	}

	a := Assess(diff, devConfig())
	assert.Equal(t, schema.RiskSafe, a.OverallRiskLevel)
	assert.False(t, a.RequiresApproval)
	assert.False(t, a.RequiresDualApproval)
}

// E2 — dropping a table in prod is Risky and requires dual approval.
func TestAssess_TableDropInProdIsRiskyDualApproval(t *testing.T) {
	diff := &schema.DiffResult{
		Changes: []*schema.SchemaChange{
			{Operation: schema.OpDrop, Object: schema.ObjectTable, Name: "public.orders", Risk: schema.RiskRisky},
		},
	}
	cfg := &config.Config{Provider: schema.ProviderPostgres, Env: config.EnvProd}
	cfg.Normalize()

	a := Assess(diff, cfg)
	assert.Equal(t, schema.RiskRisky, a.OverallRiskLevel)
	assert.True(t, a.RequiresApproval)
	assert.True(t, a.RequiresDualApproval)

	var hasDropFactor, hasProdFactor bool
	for _, f := range a.Factors {
		if f.Name == "Table Drop Operation" {
			hasDropFactor = true
			assert.True(t, f.DataLoss)
			assert.False(t, f.Reversible)
		}
		if f.Name == "Production Environment Deployment" {
			hasProdFactor = true
		}
	}
	assert.True(t, hasDropFactor)
	assert.True(t, hasProdFactor)
}

func TestAssess_ValidationErrorsAreDeploymentBlocking(t *testing.T) {
	diff := &schema.DiffResult{
		Errors: []schema.ValidationError{{Code: "MISSING_REFERENCED_TABLE", Message: "missing"}},
	}

	a := Assess(diff, devConfig())
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "Schema Validation Errors", a.Factors[0].Name)
	assert.True(t, a.Factors[0].DeploymentBlocking)
	assert.Equal(t, schema.RiskRisky, a.OverallRiskLevel)
}

// Property 3 — risk monotonicity: adding a Risky change never lowers overall risk.
func TestAssess_RiskMonotonicity(t *testing.T) {
	base := &schema.DiffResult{
		Changes: []*schema.SchemaChange{
			{Operation: schema.OpCreate, Object: schema.ObjectIndex, Name: "public.idx1", Risk: schema.RiskWarning},
		},
	}
	withRisky := &schema.DiffResult{
		Changes: append(append([]*schema.SchemaChange{}, base.Changes...),
			&schema.SchemaChange{Operation: schema.OpDrop, Object: schema.ObjectTable, Name: "public.t", Risk: schema.RiskRisky}),
	}

	cfg := devConfig()
	before := Assess(base, cfg)
	after := Assess(withRisky, cfg)

	assert.LessOrEqual(t, int(before.OverallRiskLevel), int(after.OverallRiskLevel))
	if before.RequiresApproval {
		assert.True(t, after.RequiresApproval)
	}
}

func TestAssess_BetaMissingVertical(t *testing.T) {
	cfg := &config.Config{Provider: schema.ProviderPostgres, Env: config.EnvBeta}
	cfg.Normalize()

	a := Assess(&schema.DiffResult{}, cfg)
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "Beta Deployment Missing Vertical", a.Factors[0].Name)
}

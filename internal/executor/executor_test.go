package executor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// fakeTx records statements executed against it; Commit/Rollback are
// no-ops tracked by the owning fakeAdapter.
type fakeTx struct {
	adapter *fakeAdapter
	stmts   []string
}

func (t *fakeTx) Execute(_ context.Context, stmt string) error {
	if err := t.adapter.failOn(stmt); err != nil {
		return err
	}
	t.stmts = append(t.stmts, stmt)
	return nil
}
func (t *fakeTx) Commit() error   { t.adapter.committed = append(t.adapter.committed, t.stmts...); return nil }
func (t *fakeTx) Rollback() error { return nil }

// fakeAdapter implements provider.Adapter for executor tests without a
// real database connection.
type fakeAdapter struct {
	pingErr      error
	failStmts    map[string]int // statement -> failures remaining before success
	committed    []string
	executed     []string
	transientErr bool

	mockDB *sql.DB
	mock   sqlmock.Sqlmock
}

func (a *fakeAdapter) Provider() schema.Provider                     { return schema.ProviderPostgres }
func (a *fakeAdapter) Connect(context.Context) error                 { return nil }
func (a *fakeAdapter) Close() error                                  { return nil }
func (a *fakeAdapter) Ping(context.Context) error                    { return a.pingErr }
func (a *fakeAdapter) Introspect(context.Context) (*schema.DatabaseSchema, error) {
	return &schema.DatabaseSchema{}, nil
}
func (a *fakeAdapter) ReservedWords(string) bool { return false }
func (a *fakeAdapter) IsTransient(error) bool    { return a.transientErr }

// Query backs defaultPostValidate's table-count sanity query with a
// go-sqlmock connection instead of a real database: the mock is created
// lazily on first use and set to match any statement, since these tests
// care whether post-deployment validation ran, not what SQL it issued.
func (a *fakeAdapter) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	if a.mockDB == nil {
		db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
		if err != nil {
			return nil, err
		}
		mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		a.mockDB, a.mock = db, mock
	}
	return a.mockDB.QueryContext(ctx, stmt, args...)
}

func (a *fakeAdapter) failOn(stmt string) error {
	if a.failStmts == nil {
		return nil
	}
	if remaining, ok := a.failStmts[stmt]; ok && remaining > 0 {
		a.failStmts[stmt]--
		return errors.New("simulated transient failure: " + stmt)
	}
	return nil
}

func (a *fakeAdapter) Execute(_ context.Context, stmt string) error {
	if err := a.failOn(stmt); err != nil {
		return err
	}
	a.executed = append(a.executed, stmt)
	a.committed = append(a.committed, stmt)
	return nil
}

func (a *fakeAdapter) Begin(context.Context) (provider.Tx, error) {
	return &fakeTx{adapter: a}, nil
}

func baseConfig() *config.Config {
	cfg := &config.Config{
		Provider:   schema.ProviderPostgres,
		Connection: config.Connection{Database: "appdb"},
		Mode:       config.ModeExecute,
		Env:        config.EnvDev,
	}
	cfg.Normalize()
	return cfg
}

func planWithChange(c *schema.SchemaChange) *schema.DeploymentPlan {
	return &schema.DeploymentPlan{Phases: []*schema.DeploymentPhase{
		{Number: 15, Name: "Create Tables", Operations: []*schema.SchemaChange{c}, RiskLevel: c.Risk, CanRollback: c.RollbackSQL != ""},
	}}
}

func TestDeploy_CommitsSuccessfulPhase(t *testing.T) {
	adapter := &fakeAdapter{}
	c := &schema.SchemaChange{Name: "public.users", SQL: "CREATE TABLE users (id int)", RollbackSQL: "DROP TABLE users", Risk: schema.RiskSafe}
	ex := &Executor{Adapter: adapter, Config: baseConfig()}

	result, err := ex.Deploy(context.Background(), planWithChange(c))

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.PostValidationOK)
	assert.Contains(t, adapter.committed, c.SQL)
}

func TestDeploy_RetriesTransientFailureThenSucceeds(t *testing.T) {
	adapter := &fakeAdapter{
		transientErr: true,
		failStmts:    map[string]int{"CREATE TABLE users (id int)": 1},
	}
	cfg := baseConfig()
	cfg.RetryAttempts = 3
	cfg.RetryIntervalSec = 0

	c := &schema.SchemaChange{Name: "public.users", SQL: "CREATE TABLE users (id int)", Risk: schema.RiskSafe}
	ex := &Executor{Adapter: adapter, Config: cfg}

	result, err := ex.Deploy(context.Background(), planWithChange(c))

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Phases, 1)
	require.Len(t, result.Phases[0].Ops, 1)
	assert.Equal(t, 2, result.Phases[0].Ops[0].Attempts)
}

func TestDeploy_RiskyOpGetsOneAttemptOnly(t *testing.T) {
	adapter := &fakeAdapter{
		transientErr: true,
		failStmts:    map[string]int{"DROP TABLE users": 5},
	}
	cfg := baseConfig()
	cfg.RetryAttempts = 3
	cfg.RetryIntervalSec = 0

	c := &schema.SchemaChange{Name: "public.users", SQL: "DROP TABLE users", Risk: schema.RiskRisky}
	ex := &Executor{Adapter: adapter, Config: cfg}

	result, err := ex.Deploy(context.Background(), planWithChange(c))

	require.Error(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Phases[0].Ops, 1)
	assert.Equal(t, 1, result.Phases[0].Ops[0].Attempts)
}

func TestDeploy_RollsBackPriorPhasesOnLaterFailure(t *testing.T) {
	adapter := &fakeAdapter{
		failStmts: map[string]int{"CREATE TABLE orders (id int)": 99},
	}
	cfg := baseConfig()
	cfg.RetryAttempts = 1

	phase1 := &schema.DeploymentPhase{
		Number: 15, Name: "Create Tables", CanRollback: true,
		Operations: []*schema.SchemaChange{{Name: "public.users", SQL: "CREATE TABLE users (id int)", RollbackSQL: "DROP TABLE users", Risk: schema.RiskSafe}},
	}
	phase2 := &schema.DeploymentPhase{
		Number: 16, Name: "Add Columns", CanRollback: false,
		Operations: []*schema.SchemaChange{{Name: "public.orders", SQL: "CREATE TABLE orders (id int)", Risk: schema.RiskSafe}},
	}
	plan := &schema.DeploymentPlan{Phases: []*schema.DeploymentPhase{phase1, phase2}}

	ex := &Executor{Adapter: adapter, Config: cfg}
	result, err := ex.Deploy(context.Background(), plan)

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 16, result.FailedPhase)

	var sawRollback bool
	for _, pr := range result.Phases {
		if pr.Number == 15 && pr.Status == PhaseRolledBack {
			sawRollback = true
		}
	}
	assert.True(t, sawRollback, "phase 15 should have been rolled back after phase 16 failed")
}

func TestDeploy_RefusesUnapprovedRiskyPhase(t *testing.T) {
	adapter := &fakeAdapter{}
	cfg := baseConfig()
	cfg.Env = config.EnvProd
	cfg.Vertical = "billing"
	cfg.BypassApproval = false
	cfg.Normalize()

	c := &schema.SchemaChange{Name: "public.users", SQL: "DROP TABLE users", Risk: schema.RiskRisky}
	plan := &schema.DeploymentPlan{Phases: []*schema.DeploymentPhase{
		{Number: 14, Name: "Drop Tables", Operations: []*schema.SchemaChange{c}, RiskLevel: schema.RiskRisky, RequiresApproval: true},
	}}

	ex := &Executor{Adapter: adapter, Config: cfg}
	result, err := ex.Deploy(context.Background(), plan)

	require.Error(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, adapter.executed)
}

func TestDeploy_FailsPrerequisiteValidationWithoutVertical(t *testing.T) {
	adapter := &fakeAdapter{}
	cfg := baseConfig()
	cfg.Env = config.EnvProd
	cfg.Vertical = ""

	ex := &Executor{Adapter: adapter, Config: cfg}
	_, err := ex.Deploy(context.Background(), &schema.DeploymentPlan{})

	require.Error(t, err)
}

func TestDeploy_UsesSingleStatementAutocommitForSpecialPhase(t *testing.T) {
	adapter := &fakeAdapter{}
	cfg := baseConfig()

	c := &schema.SchemaChange{Name: "synthetic.validate", SQL: "SELECT 1", Risk: schema.RiskSafe}
	plan := &schema.DeploymentPlan{Phases: []*schema.DeploymentPhase{
		{Number: 1, Name: "Pre-deployment Validation", Operations: []*schema.SchemaChange{c}},
	}}

	ex := &Executor{Adapter: adapter, Config: cfg}
	result, err := ex.Deploy(context.Background(), plan)

	require.NoError(t, err)
	assert.False(t, result.Phases[0].UsedTx)
	assert.Contains(t, adapter.executed, "SELECT 1")
}

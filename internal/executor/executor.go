// Package executor runs a DeploymentPlan against a connected provider
// adapter (spec.md §4.6): prerequisite validation, connection test,
// per-phase transaction scoping with linear-backoff retry, automatic
// rollback on failure, and post-deployment validation. Grounded on
// runtimehelpers/sqlrunner's retry-with-backoff loop (generalized here to
// operate over provider.Adapter/provider.Tx instead of a raw *sql.DB) and
// enterprise_safety/backup_framework.go's invoke-backup-before-phase-1 +
// rollback bookkeeping shape.
package executor

import (
	"context"

	"github.com/schemabounce/schemadeploy/runtimehelpers/telemetry"

	"github.com/schemabounce/schemadeploy/internal/backup"
	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/errs"
	"github.com/schemabounce/schemadeploy/internal/provider"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// BackupCreator is invoked by the executor before phase 1 (spec.md §4.6
// step 3, "Backup is invoked by the executor before phase 1"). Kept as a
// narrow interface local to this package rather than the concrete
// backup.Service, so executor tests can supply a fake without running the
// real backup subsystem's external tools.
type BackupCreator interface {
	CreateBackup(ctx context.Context) (path string, err error)
}

// OpStatus is the terminal/transient state of one operation's execution
// (spec.md §4.6 "State machine (per operation)").
type OpStatus string

const (
	OpCommitted   OpStatus = "Committed"
	OpFailed      OpStatus = "Failed"
	OpRolledBack  OpStatus = "RolledBack"
)

// OpResult records one operation's execution outcome.
type OpResult struct {
	Name     string
	Status   OpStatus
	Attempts int
	Err      error
}

// PhaseStatus is one phase's overall outcome.
type PhaseStatus string

const (
	PhaseSkippedEmpty    PhaseStatus = "skipped_empty"
	PhaseSkippedApproval PhaseStatus = "skipped_approval_refused"
	PhaseCommitted       PhaseStatus = "committed"
	PhaseFailed          PhaseStatus = "failed"
	PhaseRolledBack      PhaseStatus = "rolled_back"
)

// PhaseResult records one phase's execution outcome.
type PhaseResult struct {
	Number      int
	Name        string
	Status      PhaseStatus
	UsedTx      bool
	Ops         []OpResult
}

// Result is the executor's complete structured deployment result.
type Result struct {
	BackupPath       string
	Phases           []PhaseResult
	Success          bool
	FailedPhase      int
	PostValidationOK bool
	Err              error
}

// Executor runs one DeploymentPlan to completion or failure.
type Executor struct {
	Adapter provider.Adapter
	Config  *config.Config
	Backup  BackupCreator // optional; nil means spec.md's skip_backup path
	Logger  telemetry.Logger

	// PostValidate runs the provider-specific sanity query (spec.md §4.6
	// step 4, "count tables in the namespace"). Optional; when nil,
	// defaultPostValidate's table-count query is used instead.
	PostValidate func(ctx context.Context, adapter provider.Adapter) error
}

// postValidationQuery is the provider-specific sanity query defaultPostValidate
// runs after deployment (spec.md §4.6 step 4): a cheap count against the
// connected namespace's table catalog, proving the connection and catalog
// metadata are still queryable once the plan has committed.
var postValidationQuery = map[schema.Provider]string{
	schema.ProviderPostgres:  "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema()",
	schema.ProviderMySQL:     "SELECT count(*) FROM information_schema.tables WHERE table_schema = database()",
	schema.ProviderSQLServer: "SELECT count(*) FROM information_schema.tables",
	schema.ProviderOracle:    "SELECT count(*) FROM user_tables",
	schema.ProviderSQLite:    "SELECT count(*) FROM sqlite_master WHERE type = 'table'",
}

// defaultPostValidate runs adapter.Provider()'s table-count sanity query
// through the same Query method introspection uses. Providers with no
// entry in postValidationQuery (none currently) skip the sanity query
// rather than fail the deployment over a missing mapping.
func defaultPostValidate(ctx context.Context, adapter provider.Adapter) error {
	q, ok := postValidationQuery[adapter.Provider()]
	if !ok {
		return nil
	}
	rows, err := adapter.Query(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

// specialPhases are the phase numbers spec.md §4.6 step 3c exempts from
// mandatory transaction scoping when they have a single op and are not
// Risky: backup, validation, and index create/drop (SQL Server's
// BACKUP/RESTORE/DBCC/CHECKPOINT also fall in this set, but those arrive
// as custom-script ops rather than named phases).
var specialPhases = map[int]bool{
	1: true, 2: true, 9: true, 10: true, 24: true, 25: true, 23: true, 29: true,
}

// Deploy executes plan in ascending phase order, per spec.md §4.6.
func (e *Executor) Deploy(ctx context.Context, plan *schema.DeploymentPlan) (*Result, error) {
	result := &Result{}

	if err := e.validatePrerequisites(); err != nil {
		result.Err = err
		return result, err
	}

	if err := e.pingWithRetry(ctx); err != nil {
		err = errs.Wrap(errs.KindConnectivity, "connect_failed", "connection test failed", err)
		result.Err = err
		return result, err
	}

	if e.Config.Backup.BeforeDeployment && !e.Config.SkipBackup && e.Backup != nil {
		path, err := e.Backup.CreateBackup(ctx)
		if err != nil {
			err = errs.Wrap(errs.KindBackup, "backup_failed", "pre-deployment backup failed", err)
			result.Err = err
			return result, err
		}
		result.BackupPath = path
	}

	var committed []*schema.DeploymentPhase

	for _, phase := range plan.Phases {
		if len(phase.Operations) == 0 {
			result.Phases = append(result.Phases, PhaseResult{Number: phase.Number, Name: phase.Name, Status: PhaseSkippedEmpty})
			continue
		}

		if phase.RequiresApproval && !e.Config.BypassApproval {
			result.Phases = append(result.Phases, PhaseResult{Number: phase.Number, Name: phase.Name, Status: PhaseSkippedApproval})
			err := errs.New(errs.KindRiskPolicy, "approval_required", "phase "+phase.Name+" requires approval and bypass is not enabled")
			result.Err = err
			result.FailedPhase = phase.Number
			return result, err
		}

		useTx := len(phase.Operations) >= 2 || phase.RiskLevel == schema.RiskRisky || !specialPhases[phase.Number]
		pr := e.runPhase(ctx, phase, useTx)
		result.Phases = append(result.Phases, pr)

		if pr.Status == PhaseFailed {
			result.FailedPhase = phase.Number
			result.Err = errs.New(errs.KindRollback, "phase_failed", "phase "+phase.Name+" failed")
			e.rollbackCommittedPhases(ctx, committed, &result.Phases)
			return result, result.Err
		}

		committed = append(committed, phase)
	}

	result.Success = true
	if err := e.postDeploymentValidate(ctx); err != nil {
		result.PostValidationOK = false
		result.Err = errs.Wrap(errs.KindValidation, "post_validation_failed", "post-deployment validation failed", err)
		return result, result.Err
	}
	result.PostValidationOK = true
	return result, nil
}

func (e *Executor) validatePrerequisites() error {
	if e.Config.Connection.Database == "" && e.Config.Provider != schema.ProviderSQLite {
		return errs.New(errs.KindConfiguration, "missing_database", "database name is required")
	}
	if (e.Config.Env == config.EnvBeta || e.Config.Env == config.EnvProd) && e.Config.Vertical == "" {
		return errs.New(errs.KindConfiguration, "missing_vertical", "vertical is required for beta/prod environments")
	}
	if e.Config.Mode == config.ModeExecute && (e.Config.NoOp) {
		return errs.New(errs.KindConfiguration, "mode_conflict", "execute mode cannot be combined with no-op")
	}
	return nil
}

// runPhase executes one phase's operations sequentially, per spec.md
// §4.6 step 3d/3e.
func (e *Executor) runPhase(ctx context.Context, phase *schema.DeploymentPhase, useTx bool) PhaseResult {
	pr := PhaseResult{Number: phase.Number, Name: phase.Name, UsedTx: useTx}

	var tx provider.Tx
	if useTx {
		var err error
		tx, err = e.Adapter.Begin(ctx)
		if err != nil {
			pr.Status = PhaseFailed
			pr.Ops = []OpResult{{Status: OpFailed, Err: err}}
			return pr
		}
	}

	exec := func(ctx context.Context, stmt string) error {
		if useTx {
			return tx.Execute(ctx, stmt)
		}
		return e.Adapter.Execute(ctx, stmt)
	}

	for _, op := range phase.Operations {
		e.applyQuarantine(op)
		opResult := e.runOp(ctx, exec, op)
		pr.Ops = append(pr.Ops, opResult)
		if opResult.Status == OpFailed {
			if useTx {
				_ = tx.Rollback()
			}
			pr.Status = PhaseFailed
			return pr
		}
	}

	if useTx {
		if err := tx.Commit(); err != nil {
			pr.Status = PhaseFailed
			pr.Ops = append(pr.Ops, OpResult{Status: OpFailed, Err: err})
			return pr
		}
	}

	pr.Status = PhaseCommitted
	return pr
}

// applyQuarantine rewrites a DROP TABLE/COLUMN op's SQL to a rename
// instead, when Safety.QuarantineBeforeDrop is enabled (SPEC_FULL.md,
// optional). Disabled by default; DROP's risk classification and phase
// placement are unaffected either way.
func (e *Executor) applyQuarantine(op *schema.SchemaChange) {
	if !e.Config.Safety.QuarantineBeforeDrop {
		return
	}
	if op.Operation != schema.OpDrop || (op.Object != schema.ObjectTable && op.Object != schema.ObjectColumn) {
		return
	}
	stmt, newName := backup.QuarantineRename(e.Config.Provider, op)
	op.SQL = stmt
	op.SetProperty("quarantined", true)
	op.SetProperty("quarantine_name", newName)
}

// runOp executes a single operation with retry (spec.md §4.6 step 3d):
// attempts = retry_attempts for Safe ops, 1 otherwise; backoff grows
// linearly (retry_interval_sec * attempt). Delegates the actual
// loop/backoff to provider.RetryPolicy, the same one Connect/Ping use.
func (e *Executor) runOp(ctx context.Context, exec func(context.Context, string) error, op *schema.SchemaChange) OpResult {
	attempts := 1
	if op.Risk == schema.RiskSafe {
		attempts = e.Config.RetryAttempts
	}
	policy := provider.RetryPolicy{Attempts: attempts, Interval: e.Config.RetryInterval()}

	n, err := policy.Do(ctx, e.Adapter.IsTransient,
		func(attempt int, rerr error) {
			if e.Logger != nil {
				e.Logger.Warn(ctx, "executor.op_retry", telemetry.Fields{"op": op.Name, "attempt": attempt, "error": rerr.Error()})
			}
		},
		func(ctx context.Context) error {
			cmdCtx, cancel := context.WithTimeout(ctx, e.Config.CommandTimeout())
			defer cancel()
			return exec(cmdCtx, op.SQL)
		})

	if err == nil {
		return OpResult{Name: op.Name, Status: OpCommitted, Attempts: n}
	}
	return OpResult{Name: op.Name, Status: OpFailed, Attempts: n, Err: err}
}

// rollbackCommittedPhases attempts automatic rollback of every previously
// committed phase, in reverse order, each in its own transaction (spec.md
// §4.6 step 3e). A phase is skipped when it can't roll back; an error
// rolling back one phase is logged and the sweep continues regardless
// (Open Question 3: rollback-during-rollback never aborts the sweep).
func (e *Executor) rollbackCommittedPhases(ctx context.Context, committed []*schema.DeploymentPhase, results *[]PhaseResult) {
	for i := len(committed) - 1; i >= 0; i-- {
		phase := committed[i]
		if !phase.CanRollback {
			continue
		}

		tx, err := e.Adapter.Begin(ctx)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Error(ctx, "executor.rollback_begin_failed", err, telemetry.Fields{"phase": phase.Name})
			}
			continue
		}

		ok := true
		for j := len(phase.Operations) - 1; j >= 0; j-- {
			op := phase.Operations[j]
			if op.RollbackSQL == "" {
				ok = false
				break
			}
			if err := tx.Execute(ctx, op.RollbackSQL); err != nil {
				if e.Logger != nil {
					e.Logger.Error(ctx, "executor.rollback_op_failed", err, telemetry.Fields{"phase": phase.Name, "op": op.Name})
				}
				ok = false
				break
			}
		}

		if ok {
			if err := tx.Commit(); err != nil {
				if e.Logger != nil {
					e.Logger.Error(ctx, "executor.rollback_commit_failed", err, telemetry.Fields{"phase": phase.Name})
				}
				continue
			}
			*results = append(*results, PhaseResult{Number: phase.Number, Name: phase.Name, Status: PhaseRolledBack})
		} else {
			_ = tx.Rollback()
		}
	}
}

// pingWithRetry wraps Ping in the same linear-backoff policy runOp/Connect
// use (spec.md §4.1/§7: connectivity failures are retried internally
// before surfacing).
func (e *Executor) pingWithRetry(ctx context.Context) error {
	policy := provider.RetryPolicy{Attempts: e.Config.RetryAttempts, Interval: e.Config.RetryInterval()}
	_, err := policy.Do(ctx, e.Adapter.IsTransient,
		func(attempt int, rerr error) {
			if e.Logger != nil {
				e.Logger.Warn(ctx, "executor.ping_retry", telemetry.Fields{"attempt": attempt, "error": rerr.Error()})
			}
		},
		func(ctx context.Context) error { return e.Adapter.Ping(ctx) })
	return err
}

// postDeploymentValidate re-tests connectivity, retried the same way, then
// runs the provider-specific sanity query (spec.md §4.6 step 4): the
// caller-supplied PostValidate when set, otherwise defaultPostValidate.
func (e *Executor) postDeploymentValidate(ctx context.Context) error {
	if err := e.pingWithRetry(ctx); err != nil {
		return err
	}
	validate := e.PostValidate
	if validate == nil {
		validate = defaultPostValidate
	}
	return validate(ctx, e.Adapter)
}

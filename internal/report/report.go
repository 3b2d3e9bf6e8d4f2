// Package report writes the engine's fixed file-output contract
// (spec.md §6) and maps a deployment's outcome to its process exit code.
// Grounded on metadata/collector.go's JSON-assembly interface shape
// (generalized from provider metadata to deployment artifacts);
// DEPLOYMENT_SUMMARY.md is built with a plain strings.Builder. Stdlib only:
// no pack repo renders the specific nine-file contract this package
// writes, and encoding/json plus plain string building covers it without
// needing a templating library.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/errs"
	"github.com/schemabounce/schemadeploy/internal/executor"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Bundle is everything the pipeline stages produce, threaded through to
// the file-output writer in one pass.
type Bundle struct {
	Config       *config.Config
	Diff         *schema.DiffResult
	Assessment   *schema.RiskAssessment
	Plan         *schema.DeploymentPlan
	CompiledSQL  string
	RollbackSQL  string
	TagPatterns  []string
	ExecResult   *executor.Result // nil in validate/no-op mode
	ToolLog      []string         // lines logged by external-tool invocations (pg_dump, mysqldump, ...)
	GeneratedAt  time.Time
}

// WriteAll writes every file spec.md §6 names into dir, creating it if
// necessary.
func WriteAll(dir string, b *Bundle) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindConfiguration, "report_mkdir_failed", "could not create report directory", err)
	}

	writers := []func(string, *Bundle) error{
		writeSchemaAnalysis,
		writeDeploymentPlan,
		writeValidationReport,
		writeCompiledSQL,
		writeRollbackSQL,
		writeTagPatterns,
		writeApprovalRequest,
		writeDeploymentSummary,
		writePipelineToolsLog,
	}
	for _, w := range writers {
		if err := w(dir, b); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindConfiguration, "report_marshal_failed", "could not marshal "+filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.KindConfiguration, "report_write_failed", "could not write "+filepath.Base(path), err)
	}
	return nil
}

func writeSchemaAnalysis(dir string, b *Bundle) error {
	type analysis struct {
		Provider  schema.Provider       `json:"provider"`
		Database  string                `json:"database"`
		Changes   []*schema.SchemaChange `json:"changes"`
		SafeCount int                   `json:"safe_count"`
		WarnCount int                   `json:"warning_count"`
		RiskCount int                   `json:"risky_count"`
	}
	a := analysis{
		Provider:  b.Config.Provider,
		Database:  b.Config.Connection.Database,
		Changes:   b.Diff.Changes,
		SafeCount: b.Assessment.SafeCount,
		WarnCount: b.Assessment.WarningCount,
		RiskCount: b.Assessment.RiskyCount,
	}
	return writeJSON(filepath.Join(dir, "schema-analysis.json"), a)
}

func writeDeploymentPlan(dir string, b *Bundle) error {
	return writeJSON(filepath.Join(dir, "deployment-plan.json"), b.Plan)
}

func writeValidationReport(dir string, b *Bundle) error {
	type report struct {
		IsValid  bool                       `json:"is_valid"`
		Errors   []schema.ValidationError   `json:"errors"`
		Warnings []schema.ValidationWarning `json:"warnings"`
	}
	return writeJSON(filepath.Join(dir, "validation-report.json"), report{
		IsValid:  b.Diff.IsValid(),
		Errors:   b.Diff.Errors,
		Warnings: b.Diff.Warnings,
	})
}

func writeCompiledSQL(dir string, b *Bundle) error {
	return os.WriteFile(filepath.Join(dir, "compiled-deployment.sql"), []byte(b.CompiledSQL), 0o644)
}

func writeRollbackSQL(dir string, b *Bundle) error {
	return os.WriteFile(filepath.Join(dir, "rollback-script.sql"), []byte(b.RollbackSQL), 0o644)
}

func writeTagPatterns(dir string, b *Bundle) error {
	return writeJSON(filepath.Join(dir, "tag-patterns.json"), b.TagPatterns)
}

func writeApprovalRequest(dir string, b *Bundle) error {
	type request struct {
		RequiresApproval     bool             `json:"requires_approval"`
		RequiresDualApproval bool             `json:"requires_dual_approval"`
		OverallRiskLevel     string           `json:"overall_risk_level"`
		Factors              []schema.RiskFactor `json:"factors"`
		Environment          config.Environment  `json:"environment"`
		Vertical             string              `json:"vertical"`
	}
	return writeJSON(filepath.Join(dir, "approval-request.json"), request{
		RequiresApproval:     b.Assessment.RequiresApproval,
		RequiresDualApproval: b.Assessment.RequiresDualApproval,
		OverallRiskLevel:     b.Assessment.OverallRiskLevel.String(),
		Factors:              b.Assessment.Factors,
		Environment:          b.Config.Env,
		Vertical:             b.Config.Vertical,
	})
}

func writeDeploymentSummary(dir string, b *Bundle) error {
	return os.WriteFile(filepath.Join(dir, "DEPLOYMENT_SUMMARY.md"), []byte(buildSummary(b)), 0o644)
}

func buildSummary(b *Bundle) string {
	var s strings.Builder
	s.WriteString("# Deployment Summary\n\n")
	fmt.Fprintf(&s, "- Provider: %s\n", b.Config.Provider)
	fmt.Fprintf(&s, "- Database: %s\n", b.Config.Connection.Database)
	fmt.Fprintf(&s, "- Environment: %s\n", b.Config.Env)
	fmt.Fprintf(&s, "- Mode: %s\n", b.Config.Mode)
	fmt.Fprintf(&s, "- Overall risk: %s\n", b.Assessment.OverallRiskLevel)
	fmt.Fprintf(&s, "- Requires approval: %t\n", b.Assessment.RequiresApproval)
	fmt.Fprintf(&s, "- Requires dual approval: %t\n", b.Assessment.RequiresDualApproval)
	fmt.Fprintf(&s, "- Safe / Warning / Risky changes: %d / %d / %d\n\n",
		b.Assessment.SafeCount, b.Assessment.WarningCount, b.Assessment.RiskyCount)

	if len(b.Assessment.Factors) > 0 {
		s.WriteString("## Risk Factors\n\n")
		for _, f := range b.Assessment.Factors {
			fmt.Fprintf(&s, "- **%s** (%s): %s\n", f.Name, f.Level, f.Description)
		}
		s.WriteString("\n")
	}

	s.WriteString("## Phases\n\n")
	for _, p := range b.Plan.Phases {
		if len(p.Operations) == 0 {
			continue
		}
		fmt.Fprintf(&s, "- Phase %d — %s: %d operation(s), risk %s, approval required: %t\n",
			p.Number, p.Name, len(p.Operations), p.RiskLevel, p.RequiresApproval)
	}

	if b.ExecResult != nil {
		s.WriteString("\n## Execution\n\n")
		fmt.Fprintf(&s, "- Success: %t\n", b.ExecResult.Success)
		if b.ExecResult.BackupPath != "" {
			fmt.Fprintf(&s, "- Backup: %s\n", b.ExecResult.BackupPath)
		}
		if !b.ExecResult.Success {
			fmt.Fprintf(&s, "- Failed phase: %d\n", b.ExecResult.FailedPhase)
			if b.ExecResult.Err != nil {
				fmt.Fprintf(&s, "- Error: %s\n", b.ExecResult.Err.Error())
			}
		}
	}
	return s.String()
}

func writePipelineToolsLog(dir string, b *Bundle) error {
	content := strings.Join(b.ToolLog, "\n")
	if content != "" {
		content += "\n"
	}
	return os.WriteFile(filepath.Join(dir, "pipeline-tools.log"), []byte(content), 0o644)
}

// ExitCode maps spec.md §6's exit-code table: 0/1/2 from the risk
// assessment on success; 3 is reserved for license unavailability
// (out-of-scope, §1), 4-11 for the various failure classes the caller
// (cmd/schemadeploy) identifies from which pipeline stage errored.
func ExitCode(assessment *schema.RiskAssessment, deploymentFailed bool) int {
	if deploymentFailed {
		return ExitDeploymentExecutionFailure
	}
	switch assessment.OverallRiskLevel {
	case schema.RiskSafe:
		return 0
	case schema.RiskWarning:
		return 1
	case schema.RiskRisky:
		return 2
	default:
		return 0
	}
}

// Stage exit codes for failures occurring before a risk verdict exists
// (spec.md §6's "4-11=various failures").
const (
	ExitLicenseUnavailable         = 3
	ExitEntityDiscoveryFailure     = 4
	ExitSchemaValidationFailure    = 5
	ExitDBConnectionFailure        = 6
	ExitDeploymentExecutionFailure = 7
	ExitAuthFailure                = 8
	ExitGitFailure                 = 9
	ExitInvalidConfig              = 10
)

// Package risk assesses a validated change list against its deployment
// configuration, rolling up per-change risk into a single
// schema.RiskAssessment. Grounded on enterprise_safety/types.go's
// RiskAssessment/RiskFactor field shapes and
// enterprise_safety/base_provider.go's CreateRiskAssessment default
// pattern, generalized from a generic multi-cloud operation-risk model
// into a fixed relational-schema rule set.
package risk

import (
	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Assess computes the RiskAssessment for diff against cfg.
func Assess(diff *schema.DiffResult, cfg *config.Config) *schema.RiskAssessment {
	a := &schema.RiskAssessment{}

	var dataTypeChanges, tableOps, indexOps, fkChanges int
	var potentialDataLoss int
	var nonNullableNoDefault int

	for _, c := range diff.Changes {
		switch c.Risk {
		case schema.RiskSafe:
			a.SafeCount++
		case schema.RiskWarning:
			a.WarningCount++
		case schema.RiskRisky:
			a.RiskyCount++
		}

		if c.Object == schema.ObjectTable {
			tableOps++
		}
		if c.Object == schema.ObjectIndex {
			indexOps++
		}
		if c.Object == schema.ObjectConstraint && c.Properties[schema.PropConstraintType] == string(schema.ConstraintFK) {
			fkChanges++
		}
		if c.Object == schema.ObjectColumn && c.Operation == schema.OpAlter && c.HasProperty(schema.PropPotentialDataLoss) {
			dataTypeChanges++
			potentialDataLoss++
		}
		if c.Object == schema.ObjectColumn && c.Operation == schema.OpAlter && c.Properties["add_kind"] == "non_nullable_no_default" {
			nonNullableNoDefault++
		}

		if c.Object == schema.ObjectTable && c.Operation == schema.OpDrop {
			a.Factors = append(a.Factors, schema.RiskFactor{
				Name: "Table Drop Operation", Category: "destructive", Level: schema.RiskRisky,
				AffectedObjects: []string{c.Name}, DataLoss: true, Reversible: false,
			})
		}
		if c.Object == schema.ObjectIndex && c.Operation == schema.OpCreate && boolProp(c, schema.PropIsClustered) {
			a.Factors = append(a.Factors, schema.RiskFactor{
				Name: "Clustered Index Creation", Category: "index", Level: schema.RiskWarning,
				AffectedObjects: []string{c.Name},
			})
		}
		if c.Object == schema.ObjectConstraint && c.Operation == schema.OpDrop && c.Properties[schema.PropConstraintType] == string(schema.ConstraintPK) {
			a.Factors = append(a.Factors, schema.RiskFactor{
				Name: "Primary Key Constraint Drop", Category: "constraint", Level: schema.RiskWarning,
				AffectedObjects: []string{c.Name},
			})
		}
		if (c.Object == schema.ObjectView || c.Object == schema.ObjectProcedure || c.Object == schema.ObjectFunction) && c.Operation == schema.OpDrop {
			a.Factors = append(a.Factors, schema.RiskFactor{
				Name: "Dependent Object Drops", Category: "dependent", Level: schema.RiskWarning,
				AffectedObjects: []string{c.Name},
			})
		}
	}

	if a.RiskyCount > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High-Risk Operations", Category: "overview", Level: schema.RiskRisky,
		})
	}
	if a.WarningCount > 5 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High Volume Warning Operations", Category: "volume", Level: schema.RiskWarning,
		})
	}
	if dataTypeChanges > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Data Type Change with Potential Loss", Category: "data_type", Level: schema.RiskRisky,
			DataLoss: true,
		})
	}
	if len(diff.Errors) > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Schema Validation Errors", Category: "validation", Level: schema.RiskRisky,
			DeploymentBlocking: true,
		})
	}
	if hasRiskyWarning(diff) {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High-Risk Validation Warnings", Category: "validation", Level: schema.RiskWarning,
		})
	}
	if cfg.Env == config.EnvProd {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Production Environment Deployment", Category: "environment", Level: schema.RiskWarning,
		})
		if cfg.SkipBackup {
			a.Factors = append(a.Factors, schema.RiskFactor{
				Name: "Production Deployment Without Backup", Category: "environment", Level: schema.RiskRisky,
			})
		}
	}
	if cfg.Env == config.EnvBeta && cfg.Vertical == "" {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Beta Deployment Missing Vertical", Category: "environment", Level: schema.RiskWarning,
		})
	}
	if potentialDataLoss > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Potential Data Loss Operations", Category: "data_type", Level: schema.RiskRisky,
		})
	}
	if nonNullableNoDefault > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Non-Nullable Columns Without Defaults", Category: "column", Level: schema.RiskWarning,
		})
	}
	if tableOps > 10 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High Volume Table Operations", Category: "volume", Level: schema.RiskWarning,
		})
	}
	if indexOps > 20 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High Volume Index Operations", Category: "volume", Level: schema.RiskWarning,
		})
	}
	if dataTypeChanges > 5 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "High Volume Data Type Changes", Category: "volume", Level: schema.RiskWarning,
		})
	}
	if fkChanges > 0 {
		a.Factors = append(a.Factors, schema.RiskFactor{
			Name: "Foreign Key Constraint Changes", Category: "constraint", Level: schema.RiskWarning,
		})
	}

	a.OverallRiskLevel = overallRiskLevel(a)
	if a.OverallRiskLevel == schema.RiskRisky {
		a.RequiresApproval = true
		a.RequiresDualApproval = true
	} else if a.OverallRiskLevel == schema.RiskWarning {
		a.RequiresApproval = true
	}
	return a
}

func overallRiskLevel(a *schema.RiskAssessment) schema.RiskLevel {
	if a.RiskyCount > 0 {
		return schema.RiskRisky
	}
	for _, f := range a.Factors {
		if f.Level == schema.RiskRisky {
			return schema.RiskRisky
		}
	}
	if a.WarningCount > 0 {
		return schema.RiskWarning
	}
	for _, f := range a.Factors {
		if f.Level == schema.RiskWarning {
			return schema.RiskWarning
		}
	}
	return schema.RiskSafe
}

func boolProp(c *schema.SchemaChange, key string) bool {
	v, ok := c.Properties[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

func hasRiskyWarning(diff *schema.DiffResult) bool {
	for _, w := range diff.Warnings {
		if w.RiskLevel != nil && *w.RiskLevel == schema.RiskRisky {
			return true
		}
	}
	return false
}

// Package planner assembles the fixed 29-phase deployment pipeline
// (spec.md §4.4, §6) from a validated change list and the custom
// scripts the ingestor produced. Grounded on state/dependencies.go's
// dfsForCycles + topologicalSort (adjacency-map DFS with a recursion
// set, lexicographic tie-break) and enterprise_safety/cascade_framework.go
// for the phase-risk rollup idea.
package planner

import "github.com/schemabounce/schemadeploy/internal/schema"

// PhaseNumber is a 1-indexed phase position in the fixed 29-phase
// sequence defined by spec.md §6.
type PhaseNumber int

const (
	PhasePreDeploymentValidation    PhaseNumber = 1
	PhaseDatabaseBackup             PhaseNumber = 2
	PhaseDropViews                  PhaseNumber = 3
	PhaseDropProcedures             PhaseNumber = 4
	PhaseDropFunctions              PhaseNumber = 5
	PhaseDropForeignKeys            PhaseNumber = 6
	PhaseDropCheckConstraints       PhaseNumber = 7
	PhaseDropUniqueConstraints      PhaseNumber = 8
	PhaseDropNonClusteredIndexes    PhaseNumber = 9
	PhaseDropClusteredIndexes       PhaseNumber = 10
	PhaseDropPrimaryKeys            PhaseNumber = 11
	PhaseDropTriggers               PhaseNumber = 12
	PhaseDropColumns                PhaseNumber = 13
	PhaseDropTables                 PhaseNumber = 14
	PhaseCreateTables               PhaseNumber = 15
	PhaseAddColumns                 PhaseNumber = 16
	PhaseAlterColumnTypes           PhaseNumber = 17
	PhaseAlterNullability           PhaseNumber = 18
	PhaseAlterDefaults              PhaseNumber = 19
	PhaseCreatePrimaryKeys          PhaseNumber = 20
	PhaseCreateUniqueConstraints    PhaseNumber = 21
	PhaseCreateCheckConstraints     PhaseNumber = 22
	PhaseCreateClusteredIndexes     PhaseNumber = 23
	PhaseCreateNonClusteredIndexes  PhaseNumber = 24
	PhaseCreateUniqueIndexes        PhaseNumber = 25
	PhaseCreateForeignKeys          PhaseNumber = 26
	PhaseCreateViews                PhaseNumber = 27
	PhaseCreateProceduresFunctions  PhaseNumber = 28
	PhasePostDeploymentValidation   PhaseNumber = 29

	phaseCount = 29
)

var phaseNames = map[PhaseNumber]string{
	PhasePreDeploymentValidation:   "Pre-deployment Validation",
	PhaseDatabaseBackup:            "Database Backup",
	PhaseDropViews:                 "Drop Views",
	PhaseDropProcedures:            "Drop Procedures",
	PhaseDropFunctions:             "Drop Functions",
	PhaseDropForeignKeys:           "Drop Foreign Keys",
	PhaseDropCheckConstraints:      "Drop Check Constraints",
	PhaseDropUniqueConstraints:     "Drop Unique Constraints",
	PhaseDropNonClusteredIndexes:   "Drop Non-Clustered Indexes",
	PhaseDropClusteredIndexes:      "Drop Clustered Indexes",
	PhaseDropPrimaryKeys:           "Drop Primary Keys",
	PhaseDropTriggers:              "Drop Triggers",
	PhaseDropColumns:               "Drop Columns",
	PhaseDropTables:                "Drop Tables",
	PhaseCreateTables:              "Create Tables",
	PhaseAddColumns:                "Add Columns",
	PhaseAlterColumnTypes:          "Alter Column Types",
	PhaseAlterNullability:          "Alter Nullability",
	PhaseAlterDefaults:             "Alter Defaults",
	PhaseCreatePrimaryKeys:         "Create Primary Keys",
	PhaseCreateUniqueConstraints:   "Create Unique Constraints",
	PhaseCreateCheckConstraints:    "Create Check Constraints",
	PhaseCreateClusteredIndexes:    "Create Clustered Indexes",
	PhaseCreateNonClusteredIndexes: "Create Non-Clustered Indexes",
	PhaseCreateUniqueIndexes:       "Create Unique Indexes",
	PhaseCreateForeignKeys:         "Create Foreign Keys",
	PhaseCreateViews:               "Create Views",
	PhaseCreateProceduresFunctions: "Create Procedures & Functions",
	PhasePostDeploymentValidation:  "Post-deployment Validation",
}

// phaseFor classifies one SchemaChange into its fixed phase, per spec.md
// §6's filter column. Synthetic ops (pre/post validation, backup) are
// injected separately by Assemble and never reach this function.
func phaseFor(c *schema.SchemaChange) PhaseNumber {
	switch c.Object {
	case schema.ObjectView:
		if c.Operation == schema.OpDrop {
			return PhaseDropViews
		}
		return PhaseCreateViews
	case schema.ObjectProcedure:
		if c.Operation == schema.OpDrop {
			return PhaseDropProcedures
		}
		return PhaseCreateProceduresFunctions
	case schema.ObjectFunction:
		if c.Operation == schema.OpDrop {
			return PhaseDropFunctions
		}
		return PhaseCreateProceduresFunctions
	case schema.ObjectTrigger:
		return PhaseDropTriggers
	case schema.ObjectTable:
		if c.Operation == schema.OpDrop {
			return PhaseDropTables
		}
		return PhaseCreateTables
	case schema.ObjectColumn:
		return columnPhase(c)
	case schema.ObjectConstraint:
		return constraintPhase(c)
	case schema.ObjectIndex:
		return indexPhase(c)
	default:
		return PhaseCreateTables
	}
}

func columnPhase(c *schema.SchemaChange) PhaseNumber {
	if c.Operation == schema.OpDrop {
		return PhaseDropColumns
	}
	switch c.Properties["alter_kind"] {
	case "type_change":
		return PhaseAlterColumnTypes
	case "nullability":
		return PhaseAlterNullability
	case "default":
		return PhaseAlterDefaults
	}
	// Heuristics for changes that didn't set alter_kind explicitly
	// (the differ always sets it; changes built elsewhere may not).
	if c.HasProperty(schema.PropPotentialDataLoss) {
		return PhaseAlterColumnTypes
	}
	return PhaseAddColumns
}

func constraintPhase(c *schema.SchemaChange) PhaseNumber {
	kind, _ := c.Properties[schema.PropConstraintType].(string)
	drop := c.Operation == schema.OpDrop
	switch schema.ConstraintKind(kind) {
	case schema.ConstraintFK:
		if drop {
			return PhaseDropForeignKeys
		}
		return PhaseCreateForeignKeys
	case schema.ConstraintCK:
		if drop {
			return PhaseDropCheckConstraints
		}
		return PhaseCreateCheckConstraints
	case schema.ConstraintUQ:
		if drop {
			return PhaseDropUniqueConstraints
		}
		return PhaseCreateUniqueConstraints
	case schema.ConstraintPK:
		if drop {
			return PhaseDropPrimaryKeys
		}
		return PhaseCreatePrimaryKeys
	default:
		if drop {
			return PhaseDropUniqueConstraints
		}
		return PhaseCreateUniqueConstraints
	}
}

func indexPhase(c *schema.SchemaChange) PhaseNumber {
	clustered := boolProp(c, schema.PropIsClustered)
	unique := boolProp(c, schema.PropIsUnique)
	drop := c.Operation == schema.OpDrop
	if drop {
		if clustered {
			return PhaseDropClusteredIndexes
		}
		return PhaseDropNonClusteredIndexes
	}
	if clustered {
		return PhaseCreateClusteredIndexes
	}
	if unique {
		return PhaseCreateUniqueIndexes
	}
	return PhaseCreateNonClusteredIndexes
}

func boolProp(c *schema.SchemaChange, key string) bool {
	v, ok := c.Properties[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

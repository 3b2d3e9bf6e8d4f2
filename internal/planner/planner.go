package planner

import (
	"sort"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

// defaultScriptPhase maps a custom script's kind to its default phase
// when no header directive pins it (spec.md §4.4): DDL->16, DML->22,
// DATA->24, MIGRATION->28, others by kind.
func defaultScriptPhase(kind schema.ScriptKind) PhaseNumber {
	switch kind {
	case schema.ScriptDDL:
		return PhaseAddColumns
	case schema.ScriptDML:
		return PhaseCreateCheckConstraints
	case schema.ScriptData:
		return PhaseCreateNonClusteredIndexes
	case schema.ScriptMigration:
		return PhaseCreateProceduresFunctions
	case schema.ScriptProcedure, schema.ScriptFunction:
		return PhaseCreateProceduresFunctions
	case schema.ScriptView:
		return PhaseCreateViews
	case schema.ScriptIndex:
		return PhaseCreateNonClusteredIndexes
	case schema.ScriptTrigger:
		return PhaseDropTriggers
	default:
		return PhaseCreateProceduresFunctions
	}
}

// Assemble builds the fixed 29-phase DeploymentPlan from changes and
// scripts. Phases with no operations are retained, empty, for
// observability (spec.md §4.4); the executor skips them.
func Assemble(changes []*schema.SchemaChange, scripts []*schema.CustomScript) *schema.DeploymentPlan {
	buckets := make(map[PhaseNumber][]*schema.SchemaChange, phaseCount)

	for _, c := range changes {
		ph := phaseFor(c)
		buckets[ph] = append(buckets[ph], c)
	}

	for _, s := range scripts {
		ph := PhaseNumber(s.PinnedPhase)
		if ph < 1 || ph > phaseCount {
			ph = defaultScriptPhase(s.Kind)
		}
		buckets[ph] = append(buckets[ph], scriptAsChange(s))
	}

	plan := &schema.DeploymentPlan{}
	for n := PhaseNumber(1); n <= phaseCount; n++ {
		ops := orderPhaseOps(buckets[n])
		plan.Phases = append(plan.Phases, &schema.DeploymentPhase{
			Number:           int(n),
			Name:             phaseNames[n],
			Operations:       ops,
			RiskLevel:        aggregateRisk(ops),
			RequiresApproval: requiresApproval(ops),
			CanRollback:      canRollback(ops),
		})
	}
	return plan
}

func scriptAsChange(s *schema.CustomScript) *schema.SchemaChange {
	return &schema.SchemaChange{
		Operation:    schema.OpCreate,
		Object:       schema.ObjectCustomScript,
		Name:         s.Name,
		Namespace:    s.Namespace,
		Description:  "execute custom script " + s.Name,
		Risk:         s.Risk,
		SQL:          s.Content,
		RollbackSQL:  s.RollbackScript,
		Dependencies: append([]string{}, s.Dependencies...),
	}
}

// orderPhaseOps builds a dependency graph restricted to this phase's own
// operations, topologically sorts it, and breaks ties lexicographically
// by object name (spec.md §4.4 step 2). Grounded on
// state/dependencies.go's dfsForCycles/topologicalSort adjacency-map
// approach.
func orderPhaseOps(ops []*schema.SchemaChange) []*schema.SchemaChange {
	if len(ops) == 0 {
		return nil
	}

	byName := make(map[string]*schema.SchemaChange, len(ops))
	for _, op := range ops {
		byName[op.Name] = op
	}

	adj := make(map[string][]string, len(ops))
	inDegree := make(map[string]int, len(ops))
	for _, op := range ops {
		inDegree[op.Name] = 0
	}
	for _, op := range ops {
		for _, dep := range op.Dependencies {
			if _, ok := byName[dep]; ok {
				adj[dep] = append(adj[dep], op.Name)
				inDegree[op.Name]++
			}
		}
	}

	var ordered []*schema.SchemaChange
	remaining := inDegree
	for len(ordered) < len(ops) {
		var ready []string
		for name, deg := range remaining {
			if deg == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// Cycle within a phase: differ's dependency cycle check
			// should already have rejected this upstream; fall back to
			// lexicographic order over whatever remains rather than
			// stalling the plan.
			for name := range remaining {
				ready = append(ready, name)
			}
			sort.Strings(ready)
			for _, name := range ready {
				ordered = append(ordered, byName[name])
				delete(remaining, name)
			}
			break
		}
		sort.Strings(ready)
		for _, name := range ready {
			ordered = append(ordered, byName[name])
			delete(remaining, name)
			for _, next := range adj[name] {
				if _, ok := remaining[next]; ok {
					remaining[next]--
				}
			}
		}
	}
	return ordered
}

func aggregateRisk(ops []*schema.SchemaChange) schema.RiskLevel {
	risk := schema.RiskSafe
	for _, op := range ops {
		risk = schema.MaxRisk(risk, op.Risk)
	}
	return risk
}

func requiresApproval(ops []*schema.SchemaChange) bool {
	risk := aggregateRisk(ops)
	if risk >= schema.RiskWarning {
		return true
	}
	for _, op := range ops {
		if op.Operation == schema.OpDrop {
			return true
		}
	}
	return false
}

func canRollback(ops []*schema.SchemaChange) bool {
	if len(ops) == 0 {
		return true
	}
	for _, op := range ops {
		if op.RollbackSQL == "" {
			return false
		}
	}
	return true
}

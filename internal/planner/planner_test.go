package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemabounce/schemadeploy/internal/schema"
)

func TestAssemble_HasAllTwentyNinePhases(t *testing.T) {
	plan := Assemble(nil, nil)
	require.Len(t, plan.Phases, 29)
	for i, p := range plan.Phases {
		assert.Equal(t, i+1, p.Number)
		assert.NotEmpty(t, p.Name)
	}
}

// E1 — a CREATE TABLE change lands in phase 15.
func TestAssemble_CreateTableLandsInPhase15(t *testing.T) {
	changes := []*schema.SchemaChange{
		{Operation: schema.OpCreate, Object: schema.ObjectTable, Name: "public.users", Risk: schema.RiskSafe},
	}
	plan := Assemble(changes, nil)

	require.Len(t, plan.Phases[PhaseCreateTables-1].Operations, 1)
	assert.Equal(t, schema.RiskSafe, plan.Phases[PhaseCreateTables-1].RiskLevel)
}

// E3 — a column type widen ALTER lands in phase 17.
func TestAssemble_TypeChangeLandsInPhase17(t *testing.T) {
	chg := &schema.SchemaChange{Operation: schema.OpAlter, Object: schema.ObjectColumn, Name: "public.users.name", Risk: schema.RiskSafe}
	chg.SetProperty("alter_kind", "type_change")

	plan := Assemble([]*schema.SchemaChange{chg}, nil)
	require.Len(t, plan.Phases[PhaseAlterColumnTypes-1].Operations, 1)
}

// Phase partition (spec.md §8 property 4): every change appears in
// exactly one phase.
func TestAssemble_PhasePartition(t *testing.T) {
	changes := []*schema.SchemaChange{
		{Operation: schema.OpCreate, Object: schema.ObjectTable, Name: "public.a"},
		{Operation: schema.OpDrop, Object: schema.ObjectTable, Name: "public.b"},
		{Operation: schema.OpCreate, Object: schema.ObjectIndex, Name: "public.idx_a"},
	}
	plan := Assemble(changes, nil)

	seen := map[string]int{}
	for _, p := range plan.Phases {
		for _, op := range p.Operations {
			seen[op.Name]++
		}
	}
	require.Len(t, seen, len(changes))
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

// Ordering (spec.md §8 property 5): within a phase, dependent ops sort
// after their dependencies.
func TestAssemble_TopologicalOrderingWithinPhase(t *testing.T) {
	a := &schema.SchemaChange{Operation: schema.OpCreate, Object: schema.ObjectIndex, Name: "public.idx_b"}
	b := &schema.SchemaChange{Operation: schema.OpCreate, Object: schema.ObjectIndex, Name: "public.idx_a", Dependencies: []string{"public.idx_b"}}

	plan := Assemble([]*schema.SchemaChange{a, b}, nil)
	ops := plan.Phases[PhaseCreateNonClusteredIndexes-1].Operations
	require.Len(t, ops, 2)
	assert.Equal(t, "public.idx_b", ops[0].Name)
	assert.Equal(t, "public.idx_a", ops[1].Name)
}

func TestAssemble_CanRollbackFalseWhenAnyOpLacksRollback(t *testing.T) {
	withRollback := &schema.SchemaChange{Operation: schema.OpCreate, Object: schema.ObjectTable, Name: "public.a", RollbackSQL: "DROP TABLE a"}
	withoutRollback := &schema.SchemaChange{Operation: schema.OpCreate, Object: schema.ObjectTable, Name: "public.b"}

	plan := Assemble([]*schema.SchemaChange{withRollback, withoutRollback}, nil)
	assert.False(t, plan.Phases[PhaseCreateTables-1].CanRollback)
}

// E6 — a DATA custom script with no pin directive lands in phase 24.
func TestAssemble_CustomScriptDefaultPlacement(t *testing.T) {
	script := &schema.CustomScript{
		FilePath: "010_seed.sql", Name: "010_seed.sql", Kind: schema.ScriptData,
		Content: "INSERT INTO users(id,name) VALUES(1,'a');", Risk: schema.RiskSafe,
		ExecutionOrder: 50, Transactional: true, Retryable: false,
	}
	plan := Assemble(nil, []*schema.CustomScript{script})
	require.Len(t, plan.Phases[PhaseCreateNonClusteredIndexes-1].Operations, 1)
	assert.Equal(t, schema.ObjectCustomScript, plan.Phases[PhaseCreateNonClusteredIndexes-1].Operations[0].Object)
}

func TestAssemble_CustomScriptHeaderPin(t *testing.T) {
	script := &schema.CustomScript{
		Name: "020_special.sql", Kind: schema.ScriptData, PinnedPhase: 22,
	}
	plan := Assemble(nil, []*schema.CustomScript{script})
	require.Len(t, plan.Phases[PhaseCreateCheckConstraints-1].Operations, 1)
}

func TestAssemble_RequiresApprovalOnDestructiveOp(t *testing.T) {
	drop := &schema.SchemaChange{Operation: schema.OpDrop, Object: schema.ObjectTable, Name: "public.t", Risk: schema.RiskRisky}
	plan := Assemble([]*schema.SchemaChange{drop}, nil)
	assert.True(t, plan.Phases[PhaseDropTables-1].RequiresApproval)
}

// Package differ compares a current DatabaseSchema against a target one
// and produces an ordered SchemaChange list plus validation errors and
// warnings. Comparison is a pure function of its two inputs: identical
// inputs always produce identical, identically-ordered output, which is
// why every collection here is sorted before being walked instead of
// iterated in map order.
package differ

import (
	"sort"
	"strings"

	"github.com/schemabounce/schemadeploy/internal/config"
	"github.com/schemabounce/schemadeploy/internal/schema"
)

// Diff compares current against target and returns the ordered change
// list, validation errors, and warnings.
func Diff(current, target *schema.DatabaseSchema, cfg *config.Config, reserved ReservedWords) *schema.DiffResult {
	d := &differ{
		current:  current,
		target:   target,
		cfg:      cfg,
		reserved: reserved,
		result:   &schema.DiffResult{},
	}
	d.diffTables()
	d.diffViews()
	d.diffProcedures()
	d.diffFunctions()
	d.checkCycles()
	return d.result
}

type differ struct {
	current  *schema.DatabaseSchema
	target   *schema.DatabaseSchema
	cfg      *config.Config
	reserved ReservedWords
	result   *schema.DiffResult
}

// ReservedWords reports whether name is a reserved word for a provider,
// case-insensitively. Each Provider Adapter supplies its own set.
type ReservedWords func(name string) bool

func (d *differ) addError(code, message, object string, risk *schema.RiskLevel) {
	d.result.Errors = append(d.result.Errors, schema.ValidationError{
		Code: code, Message: message, Object: object, RiskLevel: risk,
	})
}

func (d *differ) addWarning(code, message, object string, risk *schema.RiskLevel) {
	d.result.Warnings = append(d.result.Warnings, schema.ValidationWarning{
		Code: code, Message: message, Object: object, RiskLevel: risk,
	})
}

func riskPtr(r schema.RiskLevel) *schema.RiskLevel { return &r }

// sortedKeys returns m's keys in lexicographic order, so walking a map
// through it is deterministic.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Tables ---

func (d *differ) diffTables() {
	curByKey := make(map[string]*schema.SchemaTable, len(d.current.Tables))
	for _, t := range d.current.Tables {
		curByKey[t.Qualified().Key()] = t
	}
	tgtByKey := make(map[string]*schema.SchemaTable, len(d.target.Tables))
	for _, t := range d.target.Tables {
		tgtByKey[t.Qualified().Key()] = t
	}

	allKeys := map[string]bool{}
	for k := range curByKey {
		allKeys[k] = true
	}
	for k := range tgtByKey {
		allKeys[k] = true
	}

	for _, key := range sortedKeys(allKeys) {
		curT, hasCur := curByKey[key]
		tgtT, hasTgt := tgtByKey[key]

		switch {
		case hasTgt && !hasCur:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpCreate, Object: schema.ObjectTable,
				Name: tgtT.Qualified().String(), Namespace: tgtT.Namespace,
				Description: "create table " + tgtT.Qualified().String(),
				Risk:        schema.RiskSafe,
			})
			d.checkReservedName(tgtT.Name, tgtT.Qualified().String())
			d.diffColumns(nil, tgtT)
			d.diffConstraints(nil, tgtT)
			d.diffIndexes(nil, tgtT)

		case hasCur && !hasTgt:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectTable,
				Name: curT.Qualified().String(), Namespace: curT.Namespace,
				Description: "drop table " + curT.Qualified().String(),
				Risk:        schema.RiskRisky,
			})
			d.addWarning("TABLE_DROP", "table "+curT.Qualified().String()+" will be dropped",
				curT.Qualified().String(), riskPtr(schema.RiskRisky))

		default:
			d.diffColumns(curT, tgtT)
			d.diffConstraints(curT, tgtT)
			d.diffIndexes(curT, tgtT)
		}
	}
}

func (d *differ) checkReservedName(name, object string) {
	if d.reserved != nil && d.reserved(name) {
		d.addWarning("RESERVED_WORD_"+strings.ToUpper(name), name+" is a reserved word", object, riskPtr(schema.RiskWarning))
	}
}

// --- Columns ---

func (d *differ) diffColumns(curT, tgtT *schema.SchemaTable) {
	var curCols, tgtCols []*schema.SchemaColumn
	var tableName string
	if curT != nil {
		curCols = curT.Columns
		tableName = curT.Qualified().String()
	}
	if tgtT != nil {
		tgtCols = tgtT.Columns
		tableName = tgtT.Qualified().String()
	}

	curByName := colsByLowerName(curCols)
	tgtByName := colsByLowerName(tgtCols)

	allNames := map[string]bool{}
	for k := range curByName {
		allNames[k] = true
	}
	for k := range tgtByName {
		allNames[k] = true
	}

	for _, lname := range sortedKeys(allNames) {
		curC, hasCur := curByName[lname]
		tgtC, hasTgt := tgtByName[lname]

		switch {
		case hasTgt && !hasCur:
			risk := schema.RiskSafe
			if !tgtC.Nullable && !tgtC.HasDefault {
				risk = schema.RiskWarning
			}
			chg := &schema.SchemaChange{
				Operation: schema.OpAlter, Object: schema.ObjectColumn,
				Name: tableName + "." + tgtC.Name, Namespace: tgtT.Namespace,
				Description: "add column " + tgtC.Name + " to " + tableName,
				Risk:        risk,
			}
			chg.SetProperty(schema.PropColumnNativeType, tgtC.NativeType)
			chg.SetProperty(schema.PropColumnNullable, tgtC.Nullable)
			chg.SetProperty(schema.PropColumnHasDefault, tgtC.HasDefault)
			chg.SetProperty(schema.PropColumnDefault, tgtC.DefaultValue)
			chg.SetProperty(schema.PropColumnIdentity, tgtC.Identity)
			if risk == schema.RiskWarning {
				chg.SetProperty("add_kind", "non_nullable_no_default")
				d.addWarning("NON_NULLABLE_COLUMN_WITHOUT_DEFAULT",
					"column "+tgtC.Name+" is non-nullable without a default", chg.Name, riskPtr(schema.RiskWarning))
			}
			d.result.Changes = append(d.result.Changes, chg)
			d.checkReservedName(tgtC.Name, chg.Name)

		case hasCur && !hasTgt:
			risk := schema.RiskRisky
			chg := &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectColumn,
				Name: tableName + "." + curC.Name, Namespace: curT.Namespace,
				Description: "drop column " + curC.Name + " from " + tableName,
				Risk:        risk,
			}
			d.result.Changes = append(d.result.Changes, chg)
			if curT.PrimaryKey() != nil && containsFold(curT.PrimaryKey().Columns, curC.Name) {
				d.addError("PRIMARY_KEY_COLUMN_DROP",
					"column "+curC.Name+" cannot be dropped: it is part of the primary key", chg.Name, riskPtr(schema.RiskRisky))
			}

		default:
			d.diffColumnPair(tableName, tgtT, curC, tgtC)
		}
	}
}

func colsByLowerName(cols []*schema.SchemaColumn) map[string]*schema.SchemaColumn {
	m := make(map[string]*schema.SchemaColumn, len(cols))
	for _, c := range cols {
		m[strings.ToLower(c.Name)] = c
	}
	return m
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (d *differ) diffColumnPair(tableName string, tgtT *schema.SchemaTable, curC, tgtC *schema.SchemaColumn) {
	objName := tableName + "." + tgtC.Name

	if !curC.Type.Equal(tgtC.Type) {
		risk, warnCode := typeChangeRisk(curC.Type, tgtC.Type)
		chg := &schema.SchemaChange{
			Operation: schema.OpAlter, Object: schema.ObjectColumn,
			Name: objName, Namespace: tgtT.Namespace,
			Description: "change type of " + objName + " from " + string(curC.Type.Category) + " to " + string(tgtC.Type.Category),
			Risk:        risk,
		}
		chg.SetProperty("alter_kind", "type_change")
		if curC.Type.Shrunk(tgtC.Type) {
			chg.SetProperty(schema.PropPotentialDataLoss, true)
			risk = schema.RiskRisky
			chg.Risk = risk
			warnCode = "COLUMN_LENGTH_REDUCTION"
		}
		d.result.Changes = append(d.result.Changes, chg)
		if warnCode != "" {
			d.addWarning(warnCode, "type change on "+objName+" may lose data", objName, riskPtr(risk))
		}
	}

	if curC.Nullable && !tgtC.Nullable {
		chg := &schema.SchemaChange{
			Operation: schema.OpAlter, Object: schema.ObjectColumn,
			Name: objName, Namespace: tgtT.Namespace,
			Description: "make " + objName + " not nullable",
			Risk:        schema.RiskWarning,
		}
		chg.SetProperty("alter_kind", "nullability")
		d.result.Changes = append(d.result.Changes, chg)
		if !tgtC.HasDefault {
			d.addWarning("NULLABLE_TO_NOT_NULL_WITHOUT_DEFAULT",
				objName+" becomes not nullable without a default", objName, riskPtr(schema.RiskWarning))
		} else {
			d.addWarning("NULLABLE_TO_NOT_NULL", objName+" becomes not nullable", objName, riskPtr(schema.RiskWarning))
		}
	}

	if curC.HasDefault != tgtC.HasDefault || curC.DefaultValue != tgtC.DefaultValue {
		chg := &schema.SchemaChange{
			Operation: schema.OpAlter, Object: schema.ObjectColumn,
			Name: objName, Namespace: tgtT.Namespace,
			Description: "change default of " + objName,
			Risk:        schema.RiskSafe,
		}
		chg.SetProperty("alter_kind", "default")
		d.result.Changes = append(d.result.Changes, chg)
	}
}

// typeChangeRisk applies the cross-category compatibility matrix
// (spec.md §4.2). Returns the risk level and, for Warning/Risky
// results, the warning code to emit (empty for Safe).
func typeChangeRisk(from, to schema.NormalizedType) (schema.RiskLevel, string) {
	if from.Category == to.Category {
		if to.Size >= from.Size {
			return schema.RiskSafe, ""
		}
		return schema.RiskRisky, "COLUMN_LENGTH_REDUCTION"
	}

	safe := map[[2]schema.Category]bool{
		{schema.CategoryInteger, schema.CategoryInteger}: true,
		{schema.CategoryInteger, schema.CategoryDecimal}: true,
		{schema.CategoryInteger, schema.CategoryFloat}:   true,
		{schema.CategoryChar, schema.CategoryVarchar}:    true,
		{schema.CategoryVarchar, schema.CategoryText}:    true,
		{schema.CategoryDate, schema.CategoryDateTime}:   true,
		{schema.CategoryTime, schema.CategoryDateTime}:   true,
	}
	warn := map[[2]schema.Category]bool{
		{schema.CategoryDecimal, schema.CategoryInteger}: true,
		{schema.CategoryFloat, schema.CategoryInteger}:   true,
		{schema.CategoryFloat, schema.CategoryDecimal}:   true,
		{schema.CategoryVarchar, schema.CategoryChar}:    true,
		{schema.CategoryText, schema.CategoryVarchar}:    true,
		{schema.CategoryDateTime, schema.CategoryDate}:   true,
		{schema.CategoryDateTime, schema.CategoryTime}:   true,
		{schema.CategoryBoolean, schema.CategoryInteger}: true,
	}
	key := [2]schema.Category{from.Category, to.Category}
	if safe[key] {
		return schema.RiskSafe, ""
	}
	if warn[key] {
		return schema.RiskWarning, "TYPE_CHANGE_WARNING"
	}
	// text<->char, binary<->text, guid<->text, integer->boolean, and any
	// unlisted pair default to Risky per spec.md's "absence -> Risky" rule.
	return schema.RiskRisky, "TYPE_CHANGE_RISKY"
}

// --- Constraints ---

func (d *differ) diffConstraints(curT, tgtT *schema.SchemaTable) {
	var curCons, tgtCons []*schema.SchemaConstraint
	var namespace string
	if curT != nil {
		curCons = curT.Constraints
		namespace = curT.Namespace
	}
	if tgtT != nil {
		tgtCons = tgtT.Constraints
		namespace = tgtT.Namespace
	}

	curByKey := consByKey(curCons)
	tgtByKey := consByKey(tgtCons)

	allKeys := map[string]bool{}
	for k := range curByKey {
		allKeys[k] = true
	}
	for k := range tgtByKey {
		allKeys[k] = true
	}

	for _, key := range sortedKeys(allKeys) {
		curC, hasCur := curByKey[key]
		tgtC, hasTgt := tgtByKey[key]

		switch {
		case hasTgt && !hasCur:
			d.createConstraint(tgtC, namespace)
		case hasCur && !hasTgt:
			d.dropConstraint(curC, namespace)
		default:
			if !constraintEqual(curC, tgtC) {
				d.dropConstraint(curC, namespace)
				d.createConstraint(tgtC, namespace)
			}
		}
	}
}

func consByKey(cons []*schema.SchemaConstraint) map[string]*schema.SchemaConstraint {
	m := make(map[string]*schema.SchemaConstraint, len(cons))
	for _, c := range cons {
		m[c.Qualified().Key()] = c
	}
	return m
}

func constraintEqual(a, b *schema.SchemaConstraint) bool {
	if a.Kind != b.Kind || !stringsEqualFold(a.Columns, b.Columns) {
		return false
	}
	if a.Kind == schema.ConstraintFK {
		return strings.EqualFold(a.ReferencedTable, b.ReferencedTable) &&
			strings.EqualFold(a.ReferencedSchema, b.ReferencedSchema) &&
			stringsEqualFold(a.ReferencedColumns, b.ReferencedColumns) &&
			a.OnDelete == b.OnDelete && a.OnUpdate == b.OnUpdate
	}
	if a.Kind == schema.ConstraintCK {
		return strings.TrimSpace(strings.ToLower(a.CheckExpression)) == strings.TrimSpace(strings.ToLower(b.CheckExpression))
	}
	return true
}

func stringsEqualFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func (d *differ) createConstraint(c *schema.SchemaConstraint, namespace string) {
	risk := schema.RiskWarning
	if c.Kind == schema.ConstraintPK {
		risk = schema.RiskSafe
	}
	chg := &schema.SchemaChange{
		Operation: schema.OpCreate, Object: schema.ObjectConstraint,
		Name: c.Qualified().String(), Namespace: namespace,
		Description: "create " + string(c.Kind) + " constraint " + c.Name,
		Risk:        risk,
	}
	chg.SetProperty(schema.PropConstraintType, string(c.Kind))
	chg.SetProperty(schema.PropConstraintColumns, append([]string{}, c.Columns...))
	if c.Kind == schema.ConstraintFK {
		chg.SetProperty(schema.PropConstraintRefTable, c.ReferencedTable)
		chg.SetProperty(schema.PropConstraintRefSchema, c.ReferencedSchema)
		chg.SetProperty(schema.PropConstraintRefColumns, append([]string{}, c.ReferencedColumns...))
		chg.SetProperty(schema.PropConstraintOnDelete, string(c.OnDelete))
		chg.SetProperty(schema.PropConstraintOnUpdate, string(c.OnUpdate))
	}
	if c.Kind == schema.ConstraintCK {
		chg.SetProperty(schema.PropConstraintCheckExpr, c.CheckExpression)
	}
	d.result.Changes = append(d.result.Changes, chg)

	if c.Kind == schema.ConstraintFK {
		if !d.cfg.CrossSchemaReferenceEnabled && c.ReferencedSchema != "" && !strings.EqualFold(c.ReferencedSchema, namespace) {
			d.addWarning("CROSS_SCHEMA_REFERENCE_DISABLED",
				"foreign key "+c.Name+" crosses schema namespaces", chg.Name, riskPtr(schema.RiskWarning))
		}
		d.checkFKTarget(c, chg.Name)
	}
}

func (d *differ) checkFKTarget(c *schema.SchemaConstraint, objName string) {
	refNS := c.ReferencedSchema
	if refNS == "" {
		refNS = c.Namespace
	}
	var refTable *schema.SchemaTable
	for _, t := range d.target.Tables {
		if strings.EqualFold(t.Namespace, refNS) && strings.EqualFold(t.Name, c.ReferencedTable) {
			refTable = t
			break
		}
	}
	if refTable == nil {
		d.addError("MISSING_REFERENCED_TABLE",
			"foreign key "+c.Name+" references nonexistent table "+c.ReferencedTable, objName, riskPtr(schema.RiskRisky))
		return
	}
	for _, col := range c.ReferencedColumns {
		if refTable.Column(col) == nil {
			d.addError("MISSING_REFERENCED_COLUMN",
				"foreign key "+c.Name+" references nonexistent column "+c.ReferencedTable+"."+col, objName, riskPtr(schema.RiskRisky))
		}
	}
}

func (d *differ) dropConstraint(c *schema.SchemaConstraint, namespace string) {
	risk := schema.RiskSafe
	switch c.Kind {
	case schema.ConstraintPK:
		risk = schema.RiskRisky
	case schema.ConstraintUQ:
		risk = schema.RiskWarning
	}
	chg := &schema.SchemaChange{
		Operation: schema.OpDrop, Object: schema.ObjectConstraint,
		Name: c.Qualified().String(), Namespace: namespace,
		Description: "drop " + string(c.Kind) + " constraint " + c.Name,
		Risk:        risk,
	}
	chg.SetProperty(schema.PropConstraintType, string(c.Kind))
	d.result.Changes = append(d.result.Changes, chg)
	if c.Kind == schema.ConstraintPK {
		d.addWarning("PRIMARY_KEY_DROP", "primary key "+c.Name+" will be dropped", chg.Name, riskPtr(schema.RiskRisky))
	}
}

// --- Indexes ---

func (d *differ) diffIndexes(curT, tgtT *schema.SchemaTable) {
	var curIdx, tgtIdx []*schema.SchemaIndex
	var namespace string
	if curT != nil {
		curIdx = curT.Indexes
		namespace = curT.Namespace
	}
	if tgtT != nil {
		tgtIdx = tgtT.Indexes
		namespace = tgtT.Namespace
	}

	curByKey := idxByKey(curIdx)
	tgtByKey := idxByKey(tgtIdx)

	allKeys := map[string]bool{}
	for k := range curByKey {
		allKeys[k] = true
	}
	for k := range tgtByKey {
		allKeys[k] = true
	}

	for _, key := range sortedKeys(allKeys) {
		curI, hasCur := curByKey[key]
		tgtI, hasTgt := tgtByKey[key]

		switch {
		case hasTgt && !hasCur:
			risk := schema.RiskSafe
			chg := &schema.SchemaChange{
				Operation: schema.OpCreate, Object: schema.ObjectIndex,
				Name: tgtI.Qualified().String(), Namespace: namespace,
				Description: "create index " + tgtI.Name,
				Risk:        risk,
			}
			chg.SetProperty(schema.PropIsClustered, tgtI.Clustered)
			chg.SetProperty(schema.PropIsUnique, tgtI.Unique)
			chg.SetProperty(schema.PropIndexColumns, append([]string{}, tgtI.Columns...))
			chg.SetProperty(schema.PropIndexFilter, tgtI.Filter)
			d.result.Changes = append(d.result.Changes, chg)
			if tgtI.Clustered {
				d.addWarning("CLUSTERED_INDEX_CREATE", "index "+tgtI.Name+" is clustered", chg.Name, riskPtr(schema.RiskWarning))
			}

		case hasCur && !hasTgt:
			chg := &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectIndex,
				Name: curI.Qualified().String(), Namespace: namespace,
				Description: "drop index " + curI.Name,
				Risk:        schema.RiskSafe,
			}
			chg.SetProperty(schema.PropIsClustered, curI.Clustered)
			d.result.Changes = append(d.result.Changes, chg)
			if curI.Clustered {
				d.addWarning("CLUSTERED_INDEX_DROP", "index "+curI.Name+" is clustered", chg.Name, riskPtr(schema.RiskWarning))
			}

		default:
			if !indexEqual(curI, tgtI) {
				dropChg := &schema.SchemaChange{Operation: schema.OpDrop, Object: schema.ObjectIndex,
					Name: curI.Qualified().String(), Namespace: namespace, Description: "drop index " + curI.Name, Risk: schema.RiskSafe}
				createChg := &schema.SchemaChange{Operation: schema.OpCreate, Object: schema.ObjectIndex,
					Name: tgtI.Qualified().String(), Namespace: namespace, Description: "recreate index " + tgtI.Name, Risk: schema.RiskSafe}
				d.result.Changes = append(d.result.Changes, dropChg, createChg)
			}
		}
	}
}

func idxByKey(idx []*schema.SchemaIndex) map[string]*schema.SchemaIndex {
	m := make(map[string]*schema.SchemaIndex, len(idx))
	for _, i := range idx {
		m[i.Qualified().Key()] = i
	}
	return m
}

func indexEqual(a, b *schema.SchemaIndex) bool {
	return a.Unique == b.Unique && a.Clustered == b.Clustered &&
		stringsEqualFold(a.Columns, b.Columns) &&
		strings.EqualFold(a.Filter, b.Filter)
}

// --- Views / Procedures / Functions ---

func (d *differ) diffViews() {
	curByKey := map[string]*schema.SchemaView{}
	for _, v := range d.current.Views {
		curByKey[v.Qualified().Key()] = v
	}
	tgtByKey := map[string]*schema.SchemaView{}
	for _, v := range d.target.Views {
		tgtByKey[v.Qualified().Key()] = v
	}
	allKeys := unionKeys(curByKey, tgtByKey)

	for _, key := range allKeys {
		curV, hasCur := curByKey[key]
		tgtV, hasTgt := tgtByKey[key]
		switch {
		case hasTgt && !hasCur:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpCreate, Object: schema.ObjectView, Name: tgtV.Qualified().String(),
				Namespace: tgtV.Namespace, Description: "create view " + tgtV.Name, Risk: schema.RiskSafe,
				Properties: map[string]any{schema.PropDefinition: tgtV.Definition},
			})
		case hasCur && !hasTgt:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectView, Name: curV.Qualified().String(),
				Namespace: curV.Namespace, Description: "drop view " + curV.Name, Risk: schema.RiskSafe,
			})
		default:
			if !definitionEqual(curV.Definition, tgtV.Definition) {
				d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
					Operation: schema.OpAlter, Object: schema.ObjectView, Name: tgtV.Qualified().String(),
					Namespace: tgtV.Namespace, Description: "alter view " + tgtV.Name, Risk: schema.RiskSafe,
					Properties: map[string]any{schema.PropDefinition: tgtV.Definition},
				})
			}
		}
	}
}

func (d *differ) diffProcedures() {
	curByKey := map[string]*schema.SchemaProcedure{}
	for _, p := range d.current.Procedures {
		curByKey[p.Qualified().Key()] = p
	}
	tgtByKey := map[string]*schema.SchemaProcedure{}
	for _, p := range d.target.Procedures {
		tgtByKey[p.Qualified().Key()] = p
	}
	allKeys := unionKeys(curByKey, tgtByKey)

	for _, key := range allKeys {
		curP, hasCur := curByKey[key]
		tgtP, hasTgt := tgtByKey[key]
		switch {
		case hasTgt && !hasCur:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpCreate, Object: schema.ObjectProcedure, Name: tgtP.Qualified().String(),
				Namespace: tgtP.Namespace, Description: "create procedure " + tgtP.Name, Risk: schema.RiskSafe,
				Properties: map[string]any{schema.PropDefinition: tgtP.Definition},
			})
		case hasCur && !hasTgt:
			chg := &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectProcedure, Name: curP.Qualified().String(),
				Namespace: curP.Namespace, Description: "drop procedure " + curP.Name, Risk: schema.RiskSafe,
			}
			d.result.Changes = append(d.result.Changes, chg)
			d.addWarning("PROCEDURE_DROP", "procedure "+curP.Name+" will be dropped", chg.Name, riskPtr(schema.RiskSafe))
		default:
			if !definitionEqual(curP.Definition, tgtP.Definition) {
				d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
					Operation: schema.OpAlter, Object: schema.ObjectProcedure, Name: tgtP.Qualified().String(),
					Namespace: tgtP.Namespace, Description: "alter procedure " + tgtP.Name, Risk: schema.RiskSafe,
					Properties: map[string]any{schema.PropDefinition: tgtP.Definition},
				})
			}
		}
	}
}

func (d *differ) diffFunctions() {
	curByKey := map[string]*schema.SchemaFunction{}
	for _, f := range d.current.Functions {
		curByKey[f.Qualified().Key()] = f
	}
	tgtByKey := map[string]*schema.SchemaFunction{}
	for _, f := range d.target.Functions {
		tgtByKey[f.Qualified().Key()] = f
	}
	allKeys := unionKeys(curByKey, tgtByKey)

	for _, key := range allKeys {
		curF, hasCur := curByKey[key]
		tgtF, hasTgt := tgtByKey[key]
		switch {
		case hasTgt && !hasCur:
			d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
				Operation: schema.OpCreate, Object: schema.ObjectFunction, Name: tgtF.Qualified().String(),
				Namespace: tgtF.Namespace, Description: "create function " + tgtF.Name, Risk: schema.RiskSafe,
				Properties: map[string]any{schema.PropDefinition: tgtF.Definition},
			})
		case hasCur && !hasTgt:
			chg := &schema.SchemaChange{
				Operation: schema.OpDrop, Object: schema.ObjectFunction, Name: curF.Qualified().String(),
				Namespace: curF.Namespace, Description: "drop function " + curF.Name, Risk: schema.RiskSafe,
			}
			d.result.Changes = append(d.result.Changes, chg)
			d.addWarning("FUNCTION_DROP", "function "+curF.Name+" will be dropped", chg.Name, riskPtr(schema.RiskSafe))
		default:
			if !definitionEqual(curF.Definition, tgtF.Definition) {
				d.result.Changes = append(d.result.Changes, &schema.SchemaChange{
					Operation: schema.OpAlter, Object: schema.ObjectFunction, Name: tgtF.Qualified().String(),
					Namespace: tgtF.Namespace, Description: "alter function " + tgtF.Name, Risk: schema.RiskSafe,
					Properties: map[string]any{schema.PropDefinition: tgtF.Definition},
				})
			}
		}
	}
}

func definitionEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func unionKeys[T any](a, b map[string]T) []string {
	set := map[string]bool{}
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	return sortedKeys(set)
}

// --- Dependency cycle check ---

// checkCycles builds an adjacency map from each change's Dependencies
// (by change Name) and runs DFS with a recursion stack, grounded on
// state/dependencies.go's dfsForCycles. Any cycle produces a single
// CIRCULAR_DEPENDENCY error listing the involved objects.
func (d *differ) checkCycles() {
	adj := make(map[string][]string, len(d.result.Changes))
	names := make(map[string]bool, len(d.result.Changes))
	for _, c := range d.result.Changes {
		names[c.Name] = true
	}
	for _, c := range d.result.Changes {
		for _, dep := range c.Dependencies {
			if names[dep] {
				adj[c.Name] = append(adj[c.Name], dep)
			}
		}
	}

	visited := map[string]bool{}
	recStack := map[string]bool{}
	for _, key := range sortedKeys(names) {
		if !visited[key] {
			if cyclePath := dfsForCycles(key, adj, visited, recStack, nil); len(cyclePath) > 0 {
				d.addError("CIRCULAR_DEPENDENCY",
					"circular dependency: "+strings.Join(cyclePath, " -> "), strings.Join(cyclePath, ","), riskPtr(schema.RiskRisky))
			}
		}
	}
}

func dfsForCycles(node string, adj map[string][]string, visited, recStack map[string]bool, path []string) []string {
	visited[node] = true
	recStack[node] = true
	path = append(path, node)

	for _, neighbor := range adj[node] {
		if !visited[neighbor] {
			if cyclePath := dfsForCycles(neighbor, adj, visited, recStack, path); len(cyclePath) > 0 {
				return cyclePath
			}
		} else if recStack[neighbor] {
			for i, n := range path {
				if n == neighbor {
					return path[i:]
				}
			}
		}
	}

	recStack[node] = false
	return nil
}

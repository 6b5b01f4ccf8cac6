package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/BodieCoding/databridge/pkg/apperrors"
	"github.com/BodieCoding/databridge/pkg/models"
)

// OptimizedQuery is the output of query generation: the SQL text, the
// positional arguments matching its placeholders, the plan it was rendered
// from, and a text visualization of that plan. Plan and Visualization are
// empty when the fallback path produced the SQL.
type OptimizedQuery struct {
	SQL           string
	Args          []any
	Plan          *models.QueryPlan
	Visualization string
}

// QueryBuilder renders optimized SELECT statements from query plans. When
// plan generation fails it falls back to a straightforward relationship
// walk, so a caller always receives runnable SQL.
type QueryBuilder struct {
	schema     *models.Schema
	schemaName string // catalog schema the statistics are keyed under
	planner    *Planner
	logger     *zap.Logger
}

// NewQueryBuilder creates a query builder over a schema graph. schemaName is
// the catalog schema statistics are keyed under (for example "dbo" or
// "public"). If logger is nil, a no-op logger is used.
func NewQueryBuilder(schema *models.Schema, schemaName string, planner *Planner, logger *zap.Logger) *QueryBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryBuilder{schema: schema, schemaName: schemaName, planner: planner, logger: logger}
}

// GenerateOptimizedSelect produces a SELECT over the filter's tables and
// their directly related tables. Filters become `= ?` placeholders in
// plan-determined predicate order. Optimizer failures downgrade to the
// fallback renderer instead of failing the call, with one exception: a
// disconnected join graph under the "error" policy is returned to the
// caller, since the fallback would guess the very join the policy forbids.
func (b *QueryBuilder) GenerateOptimizedSelect(ctx context.Context, filter FilterSpec) (*OptimizedQuery, error) {
	if !filter.IsEmpty() {
		if err := filter.Validate(b.schema); err != nil {
			return nil, fmt.Errorf("validate filter: %w", err)
		}
	}

	tables := b.relatedTables(filter)
	if len(tables) == 0 {
		return &OptimizedQuery{SQL: "-- no tables to query"}, nil
	}

	if !b.planner.cfg.Enabled {
		sql, args := b.renderFallback(tables, filter)
		return &OptimizedQuery{SQL: sql, Args: args}, nil
	}

	plan, err := b.planner.GeneratePlan(ctx, b.schemaName, tables, b.schema.Relationships, filter.ColumnsByTable())
	if err != nil {
		if errors.Is(err, apperrors.ErrDisconnectedJoinGraph) {
			// The policy forbids guessed joins, and the fallback renderer
			// would emit exactly one. Surface the rejection instead.
			return nil, fmt.Errorf("generate plan: %w", err)
		}
		b.logger.Warn("plan generation failed, using fallback query", zap.Error(err))
		sql, args := b.renderFallback(tables, filter)
		return &OptimizedQuery{SQL: sql, Args: args}, nil
	}

	sql, args := b.RenderSQL(plan, filter, "")
	return &OptimizedQuery{
		SQL:           sql,
		Args:          args,
		Plan:          plan,
		Visualization: VisualizePlan(plan),
	}, nil
}

// RenderSQL renders a plan as SQL text. The root table is rootOverride when
// given and part of the plan, otherwise the first join step's parent,
// otherwise the plan's first table. Aliases are T1..Tn assigned root-first
// in join-step order, every aliased table except the root gets exactly one
// LEFT JOIN clause, and filter predicates render as `alias.column = ?` with
// args in the same order. Output is byte-identical for identical inputs.
func (b *QueryBuilder) RenderSQL(plan *models.QueryPlan, filter FilterSpec, rootOverride string) (string, []any) {
	if len(plan.Tables) == 0 {
		return "-- no tables to query", nil
	}

	root := ""
	if rootOverride != "" && containsTable(plan.Tables, rootOverride) {
		root = rootOverride
	} else if len(plan.JoinOrder) > 0 {
		root = plan.JoinOrder[0].Parent
	} else {
		root = plan.Tables[0]
	}

	aliases, aliasOrder := assignAliases(root, plan.Tables, plan.JoinOrder)

	var sb strings.Builder
	sb.WriteString("-- Optimized query based on index analysis\n")
	fmt.Fprintf(&sb, "-- Estimated cost: %.0f\n", plan.EstimatedCost)

	sb.WriteString("SELECT\n")
	sb.WriteString(strings.Join(b.selectColumns(aliases, aliasOrder), ",\n"))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "FROM %s %s\n", root, aliases[root])

	// Each LEFT JOIN must introduce exactly one new table onto the joined
	// set. A step can point either way relative to the render root, and
	// re-rooting may defer a step until one of its endpoints has joined.
	joined := map[string]bool{root: true}
	pending := plan.JoinOrder
	for {
		var deferred []models.JoinStep
		for _, step := range pending {
			table, anchor := step.Child, step.Parent
			if joined[table] {
				if joined[anchor] {
					continue
				}
				table, anchor = anchor, table
			} else if !joined[anchor] {
				deferred = append(deferred, step)
				continue
			}
			joined[table] = true
			sb.WriteString(b.joinClause(table, anchor, aliases))
			sb.WriteString("\n")
		}
		if len(deferred) == 0 || len(deferred) == len(pending) {
			break
		}
		pending = deferred
	}

	// A table no step reached still needs a join so every selected alias is
	// bound. joinClause guesses the condition when no relationship exists.
	for _, table := range aliasOrder {
		if !joined[table] {
			joined[table] = true
			sb.WriteString(b.joinClause(table, root, aliases))
			sb.WriteString("\n")
		}
	}

	where, args := b.whereClause(plan.PredicateOrder, filter, aliases)
	if where != "" {
		sb.WriteString(where)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n"), args
}

func containsTable(tables []string, table string) bool {
	for _, t := range tables {
		if t == table {
			return true
		}
	}
	return false
}

// relatedTables returns the filter's tables expanded one relationship hop in
// both directions, sorted. An empty filter selects every schema table.
func (b *QueryBuilder) relatedTables(filter FilterSpec) []string {
	include := make(map[string]bool)

	if filter.IsEmpty() {
		for name := range b.schema.Tables {
			include[name] = true
		}
	} else {
		for _, table := range filter.Tables() {
			include[table] = true
			for _, rel := range b.schema.Relationships[table] {
				include[rel.ToTable] = true
			}
			for child, rels := range b.schema.Relationships {
				for _, rel := range rels {
					if rel.ToTable == table {
						include[child] = true
					}
				}
			}
		}
	}

	tables := make([]string, 0, len(include))
	for name := range include {
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables
}

// assignAliases maps tables to T1..Tn: root first, then each join step's
// newly introduced table, then any table no step reached, in plan order.
func assignAliases(root string, tables []string, joinOrder []models.JoinStep) (map[string]string, []string) {
	aliases := make(map[string]string, len(tables))
	var order []string

	assign := func(table string) {
		if _, ok := aliases[table]; !ok {
			aliases[table] = fmt.Sprintf("T%d", len(order)+1)
			order = append(order, table)
		}
	}

	assign(root)
	for _, step := range joinOrder {
		assign(step.Parent)
		assign(step.Child)
	}
	for _, table := range tables {
		assign(table)
	}

	return aliases, order
}

// selectColumns lists every column of every aliased table as
// `alias.col AS alias_col`, table by table in alias order. Tables missing
// from the schema graph select `alias.*`.
func (b *QueryBuilder) selectColumns(aliases map[string]string, aliasOrder []string) []string {
	var cols []string
	for _, table := range aliasOrder {
		alias := aliases[table]
		tbl := b.schema.Tables[table]
		if tbl == nil || len(tbl.Columns) == 0 {
			cols = append(cols, fmt.Sprintf("    %s.*", alias))
			continue
		}
		for _, col := range tbl.Columns {
			cols = append(cols, fmt.Sprintf("    %s.%s AS %s_%s", alias, col.Name, alias, col.Name))
		}
	}
	return cols
}

// joinClause renders one LEFT JOIN attaching table onto the already-joined
// anchor. The relationship is looked up in both directions; when neither
// exists the foreign key is guessed from the anchor's singular name and the
// clause says so.
func (b *QueryBuilder) joinClause(table, anchor string, aliases map[string]string) string {
	tableAlias := aliases[table]
	anchorAlias := aliases[anchor]

	if rel := b.schema.RelationshipBetween(table, anchor); rel != nil {
		return fmt.Sprintf("LEFT JOIN %s %s ON %s",
			table, tableAlias, joinCondition(rel, tableAlias, anchorAlias))
	}
	if rel := b.schema.RelationshipBetween(anchor, table); rel != nil {
		// The relationship points the other way: the anchor carries the
		// foreign key.
		return fmt.Sprintf("LEFT JOIN %s %s ON %s",
			table, tableAlias, joinCondition(rel, anchorAlias, tableAlias))
	}

	guessedFK := inflection.Singular(anchor) + "_id"
	return fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.id -- guessed join: no relationship between %s and %s",
		table, tableAlias, tableAlias, guessedFK, anchorAlias, anchor, table)
}

// joinCondition renders the equality conjunction of a relationship's column
// pairs. fkAlias is the side holding the foreign key columns.
func joinCondition(rel *models.Relationship, fkAlias, refAlias string) string {
	conditions := make([]string, len(rel.Columns))
	for i, pair := range rel.Columns {
		conditions[i] = fmt.Sprintf("%s.%s = %s.%s", fkAlias, pair.FromColumn, refAlias, pair.ToColumn)
	}
	return strings.Join(conditions, " AND ")
}

// whereClause renders the plan's predicate order as `alias.column = ?`
// conditions, collecting bound values (when the filter carried them) in the
// same order.
func (b *QueryBuilder) whereClause(predicates []models.PredicateStep, filter FilterSpec, aliases map[string]string) (string, []any) {
	var conditions []string
	var args []any

	for _, step := range predicates {
		alias, ok := aliases[step.Table]
		if !ok || !filter.Contains(step.Table, step.Column) {
			continue
		}
		conditions = append(conditions, fmt.Sprintf("%s.%s = ?", alias, step.Column))
		if v, bound := filter.Value(step.Table, step.Column); bound {
			args = append(args, v)
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, "\n  AND "), args
}

// renderFallback produces SQL without a plan: a depth-first walk of the
// parent-to-child relationship graph restricted to the given tables, with
// filters in input order. Used when the optimizer cannot produce a plan.
func (b *QueryBuilder) renderFallback(tables []string, filter FilterSpec) (string, []any) {
	if len(tables) == 0 {
		return "-- no tables to query", nil
	}

	steps := b.fallbackJoinOrder(tables)
	plan := &models.QueryPlan{Tables: tables, JoinOrder: steps}
	for _, table := range filter.Tables() {
		for _, column := range filter.Columns(table) {
			plan.PredicateOrder = append(plan.PredicateOrder, models.PredicateStep{Table: table, Column: column})
		}
	}

	sql, args := b.RenderSQL(plan, filter, "")
	sql = strings.Replace(sql,
		"-- Optimized query based on index analysis\n-- Estimated cost: 0\n",
		"-- Fallback query (no plan available)\n", 1)
	return sql, args
}

// fallbackJoinOrder walks parent-to-child relationship edges depth-first
// from the first root it finds, then attaches any unreached table to the
// walk's first table. Child relationship keys are visited sorted, so the
// order is stable.
func (b *QueryBuilder) fallbackJoinOrder(tables []string) []models.JoinStep {
	if len(tables) < 2 {
		return nil
	}

	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	// parent -> children, restricted to the table set, children sorted.
	children := make(map[string][]string)
	hasParent := make(map[string]bool)
	sortedChildren := make([]string, 0, len(b.schema.Relationships))
	for child := range b.schema.Relationships {
		sortedChildren = append(sortedChildren, child)
	}
	sort.Strings(sortedChildren)
	for _, child := range sortedChildren {
		if !inSet[child] {
			continue
		}
		for _, rel := range b.schema.Relationships[child] {
			if inSet[rel.ToTable] {
				children[rel.ToTable] = append(children[rel.ToTable], child)
				hasParent[child] = true
			}
		}
	}
	for parent := range children {
		sort.Strings(children[parent])
	}

	root := tables[0]
	for _, t := range tables {
		if !hasParent[t] {
			root = t
			break
		}
	}

	var steps []models.JoinStep
	visited := map[string]bool{root: true}
	var walk func(parent string)
	walk = func(parent string) {
		for _, child := range children[parent] {
			if visited[child] {
				continue
			}
			visited[child] = true
			steps = append(steps, models.JoinStep{Parent: parent, Child: child})
			walk(child)
		}
	}
	walk(root)

	for _, t := range tables {
		if !visited[t] {
			visited[t] = true
			steps = append(steps, models.JoinStep{Parent: root, Child: t, Degenerate: true})
			walk(t)
		}
	}

	return steps
}

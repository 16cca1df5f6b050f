// Package optimizer rewrites a logical.Plan before it is lowered to a
// physical plan (C6). It is grounded on original_source's
// include/optimization/optimizer.h for the Optimizer-holds-a-rule-list
// shape and on grafana-loki's planner/physical/optimizer.go for
// expressing each rule as a function from Plan to (Plan, error).
package optimizer

import "github.com/dr0pdb/toyquery/internal/logical"

// Rule rewrites plan, returning either a new plan or an error. Rules never
// mutate the plan they are given; logical plans are immutable per spec.md
// §5.
type Rule func(plan logical.Plan) (logical.Plan, error)

// Optimizer applies a fixed sequence of Rules in a single pass, per
// spec.md §4.5 ("a list of rules applied in sequence").
type Optimizer struct {
	rules []Rule
}

// New returns the default Optimizer, registering spec.md §4.5's single
// rule (Projection Push-Down).
func New() *Optimizer {
	return &Optimizer{rules: []Rule{ProjectionPushDown}}
}

// Optimize runs every registered rule over plan in order, threading the
// rewritten plan from one rule into the next.
func (o *Optimizer) Optimize(plan logical.Plan) (logical.Plan, error) {
	var err error
	for _, rule := range o.rules {
		plan, err = rule(plan)
		if err != nil {
			return nil, err
		}
	}
	return plan, nil
}

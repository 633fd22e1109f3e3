package rbac

import "strings"

type ruleKey struct {
	role     Role
	resource string
	action   Action
}

// Evaluator answers permission checks against an immutable rule table. The
// table is built once and never mutated afterwards, so concurrent reads need
// no synchronisation.
type Evaluator struct {
	rules map[ruleKey]struct{}
}

// NewEvaluator builds an Evaluator over the default grant table.
func NewEvaluator() *Evaluator {
	return NewEvaluatorWithGrants(DefaultGrants())
}

// NewEvaluatorWithGrants builds an Evaluator over an explicit grant list.
// Grants referencing unknown roles are dropped rather than stored, keeping the
// deny-by-default invariant intact.
func NewEvaluatorWithGrants(grants []Grant) *Evaluator {
	rules := make(map[ruleKey]struct{}, len(grants))
	for _, g := range grants {
		role, ok := ParseRole(string(g.Role))
		if !ok {
			continue
		}
		resource := normalizeResource(g.Resource)
		if resource == "" || g.Action == "" {
			continue
		}
		rules[ruleKey{role: role, resource: resource, action: g.Action}] = struct{}{}
	}
	return &Evaluator{rules: rules}
}

// HasPermission reports whether role may perform action on resource. It is a
// pure lookup: unknown roles, resources or actions resolve to deny and no
// error is ever raised, so render paths can call it without guarding.
func (e *Evaluator) HasPermission(role Role, resource string, action Action) bool {
	if e == nil || len(e.rules) == 0 {
		return false
	}
	parsed, ok := ParseRole(string(role))
	if !ok {
		return false
	}
	_, allowed := e.rules[ruleKey{role: parsed, resource: normalizeResource(resource), action: action}]
	return allowed
}

// Matrix returns the full resource/action map for one role. Used by the
// permissions endpoint so the front end can hide controls it may not trigger.
func (e *Evaluator) Matrix(role Role) map[string]map[Action]bool {
	matrix := make(map[string]map[Action]bool, len(Resources()))
	for _, resource := range Resources() {
		actions := make(map[Action]bool, len(Actions()))
		for _, action := range Actions() {
			actions[action] = e.HasPermission(role, resource, action)
		}
		matrix[resource] = actions
	}
	return matrix
}

func normalizeResource(resource string) string {
	return strings.ToLower(strings.TrimSpace(resource))
}

package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/logx"
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
)

// Matcher decides whether trigger and condition nodes match an event.
// Operators and value types always come from the live catalog; the
// snapshot stored in a block is never consulted.
type Matcher struct {
	registry   *catalog.Registry
	predicates *PredicateEvaluator
}

func NewMatcher(registry *catalog.Registry, predicates *PredicateEvaluator) *Matcher {
	return &Matcher{
		registry:   registry,
		predicates: predicates,
	}
}

// MatchNode evaluates the node's blocks as a conjunction in list order.
// A block that cannot be evaluated is logged and counts as a non-match.
func (m *Matcher) MatchNode(workflowID kernel.WorkflowID, node workflow.Node, ev Event) bool {
	for _, b := range node.Config.Blocks {
		ok, err := m.MatchBlock(node.Kind, b, ev)
		if err != nil {
			merr := &MatchError{WorkflowID: workflowID, NodeID: node.ID, BlockKey: b.Key, Err: err}
			logx.Error("Block treated as non-matching: %v", merr)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// MatchBlock evaluates one block. Every configured field must match;
// unconfigured fields are ignored.
func (m *Matcher) MatchBlock(kind catalog.NodeKind, b workflow.BlockInstance, ev Event) (bool, error) {
	entry, fields, err := b.Resolve(m.registry)
	if err != nil {
		return false, err
	}
	if !entry.AllowedOn(kind) {
		return false, ErrMatchFailed().
			WithDetail("reason", "block not allowed on node kind").
			WithDetail("kind", string(kind))
	}

	if entry.EventMatch != "" {
		ok, err := m.predicates.Evaluate(entry.EventMatch, ev.Env())
		if err != nil {
			return false, errx.Wrap(err, "event match predicate failed", errx.TypeInternal)
		}
		if !ok {
			return false, nil
		}
	}

	for _, f := range fields {
		if !f.Value.Configured() || !f.Spec.Comparable() {
			continue
		}
		if f.Value.Operator == "" {
			return false, ErrMatchFailed().
				WithDetail("reason", "operator missing").
				WithDetail("field", f.Spec.Key)
		}

		actual, ok := ev.Attribute(f.Spec.Attribute)
		if !ok {
			return false, ErrMatchFailed().
				WithDetail("reason", "unknown event attribute").
				WithDetail("attribute", string(f.Spec.Attribute))
		}

		matched, err := Compare(f.Spec.ValueType, f.Value.Operator, actual, f.Value.Value)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

// ============================================================================
// Operators
// ============================================================================

// Compare applies op to the event value and the configured value. Numbers
// and dates that do not parse never match.
func Compare(vt catalog.ValueType, op catalog.Operator, actual, expected string) (bool, error) {
	switch op {
	case catalog.OpIs:
		return equal(vt, actual, expected), nil
	case catalog.OpIsNot:
		return !equal(vt, actual, expected), nil
	case catalog.OpContains:
		if !vt.IsFreeText() {
			return false, ErrMatchFailed().
				WithDetail("reason", "contains applies to text only").
				WithDetail("value_type", string(vt))
		}
		return strings.Contains(strings.ToLower(actual), strings.ToLower(strings.TrimSpace(expected))), nil
	case catalog.OpGte, catalog.OpLte:
		if !vt.IsOrdered() {
			return false, ErrMatchFailed().
				WithDetail("reason", "ordered comparison on unordered type").
				WithDetail("value_type", string(vt))
		}
		cmp, ok := order(vt, actual, expected)
		if !ok {
			return false, nil
		}
		if op == catalog.OpGte {
			return cmp >= 0, nil
		}
		return cmp <= 0, nil
	}

	return false, ErrMatchFailed().WithDetail("reason", "unknown operator").WithDetail("operator", string(op))
}

func equal(vt catalog.ValueType, actual, expected string) bool {
	expected = strings.TrimSpace(expected)

	switch {
	case vt.IsFreeText():
		return strings.EqualFold(strings.TrimSpace(actual), expected)
	case vt == catalog.ValueNumber:
		a, errA := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		e, errE := strconv.ParseFloat(expected, 64)
		return errA == nil && errE == nil && a == e
	case vt == catalog.ValueDate:
		a, e, dateOnly, ok := parseDates(actual, expected)
		if !ok {
			return false
		}
		if dateOnly {
			return a.UTC().Format(time.DateOnly) == e.Format(time.DateOnly)
		}
		return a.Equal(e)
	default:
		return actual == expected
	}
}

// order returns -1, 0 or 1 comparing actual to expected. A date-only
// expected value is compared at day granularity.
func order(vt catalog.ValueType, actual, expected string) (int, bool) {
	if vt == catalog.ValueNumber {
		a, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return 0, false
		}
		e, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
		if err != nil {
			return 0, false
		}
		switch {
		case a < e:
			return -1, true
		case a > e:
			return 1, true
		}
		return 0, true
	}

	a, e, dateOnly, ok := parseDates(actual, expected)
	if !ok {
		return 0, false
	}
	if dateOnly {
		day := a.UTC().Truncate(24 * time.Hour)
		return day.Compare(e), true
	}
	return a.Compare(e), true
}

func parseDates(actual, expected string) (time.Time, time.Time, bool, bool) {
	expected = strings.TrimSpace(expected)
	a, err := workflow.ParseDate(strings.TrimSpace(actual))
	if err != nil {
		return time.Time{}, time.Time{}, false, false
	}
	e, err := workflow.ParseDate(expected)
	if err != nil {
		return time.Time{}, time.Time{}, false, false
	}
	return a, e, len(expected) == len(time.DateOnly), true
}

package workflow

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
)

// Validate checks the graph against the live catalog and returns a
// *ValidationError listing every violation, or nil
func (w *Workflow) Validate(reg *catalog.Registry) error {
	var v []string
	add := func(format string, args ...any) {
		v = append(v, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(w.Name) == "" {
		add("name is required")
	}
	if w.ExceptCase != "" && !w.ExceptCase.IsValid() {
		add("except case %q must be one of sample, move, ignore", w.ExceptCase)
	}

	ids := make(map[string]bool, len(w.Nodes))
	for i, n := range w.Nodes {
		if n.ID == "" {
			add("node #%d has no id", i)
		} else if ids[n.ID] {
			add("duplicate node id %q", n.ID)
		}
		ids[n.ID] = true

		if !n.Kind.IsValid() {
			add("node %q has unknown type %q", n.ID, n.Kind)
			continue
		}
		if n.Kind == catalog.KindEnd && len(n.Config.Blocks) > 0 {
			add("node %q: end nodes carry no blocks", n.ID)
		}

		for j, b := range n.Config.Blocks {
			for _, msg := range validateBlock(reg, n, b) {
				add("node %q block #%d: %s", n.ID, j, msg)
			}
		}
	}

	edgeIDs := make(map[string]bool, len(w.Edges))
	pairs := make(map[[2]string]bool, len(w.Edges))
	for i, e := range w.Edges {
		name := e.ID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		} else if edgeIDs[e.ID] {
			add("duplicate edge id %q", e.ID)
		}
		edgeIDs[e.ID] = true

		if !ids[e.From] {
			add("edge %s: unknown source node %q", name, e.From)
		}
		if !ids[e.To] {
			add("edge %s: unknown target node %q", name, e.To)
		}

		pair := [2]string{e.From, e.To}
		if pairs[pair] {
			add("edge %s: duplicate edge from %q to %q", name, e.From, e.To)
		}
		pairs[pair] = true
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

func validateBlock(reg *catalog.Registry, n Node, b BlockInstance) []string {
	entry, subKey, err := reg.Lookup(b.Key)
	if err != nil {
		return []string{fmt.Sprintf("unknown catalog key %q", b.Key)}
	}

	var v []string
	if !entry.AllowedOn(n.Kind) {
		v = append(v, fmt.Sprintf("%q is not allowed on %s nodes", b.Key, n.Kind))
	}

	matching := n.Kind == catalog.KindTrigger || n.Kind == catalog.KindCondition
	for i, fv := range b.Settings.Fields {
		spec, ok := fieldFor(entry, subKey, fv)
		if !ok {
			v = append(v, fmt.Sprintf("field #%d does not exist on %q", i, b.Key))
			continue
		}

		if fv.Operator != "" && !spec.AllowsOperator(fv.Operator) {
			v = append(v, fmt.Sprintf("operator %q is not allowed on %s", fv.Operator, spec.Key))
		}
		if matching && spec.Comparable() && fv.Configured() && fv.Operator == "" {
			v = append(v, fmt.Sprintf("field %s needs an operator", spec.Key))
		}
		if msg := checkValue(spec, fv); msg != "" {
			v = append(v, msg)
		}
	}

	return v
}

func checkValue(spec catalog.FieldSpec, fv FieldValue) string {
	value := strings.TrimSpace(fv.Value)
	if value == "" {
		return ""
	}

	switch spec.ValueType {
	case catalog.ValueNumber:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("field %s: %q is not a number", spec.Key, fv.Value)
		}
	case catalog.ValueDate:
		if _, err := ParseDate(value); err != nil {
			return fmt.Sprintf("field %s: %q is not a date", spec.Key, fv.Value)
		}
	}

	if spec.Format == catalog.FormatStatic {
		if !slices.ContainsFunc(spec.StaticOptions, func(o catalog.Option) bool { return o.Value == value }) {
			return fmt.Sprintf("field %s: %q is not one of the allowed options", spec.Key, fv.Value)
		}
	}

	return ""
}

// ============================================================================
// Normalization
// ============================================================================

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseDate accepts RFC3339 timestamps and date-only values
func ParseDate(value string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NormalizeBlocks trims text values, rewrites numbers in canonical form and
// dates in ISO 8601, and fills missing snapshots and function info from the
// live catalog. Values that do not parse are left for Validate to report.
func (w *Workflow) NormalizeBlocks(reg *catalog.Registry) {
	w.Name = strings.TrimSpace(w.Name)

	for i := range w.Nodes {
		blocks := w.Nodes[i].Config.Blocks
		for j := range blocks {
			normalizeBlock(reg, &blocks[j])
		}
	}
}

func normalizeBlock(reg *catalog.Registry, b *BlockInstance) {
	b.Key = strings.TrimSpace(b.Key)

	entry, subKey, err := reg.Lookup(b.Key)
	if err != nil {
		return
	}

	if b.Item.Key == "" {
		b.Item = entry.Snapshot()
	}
	if b.Settings.FunctionInfo.Key == "" {
		b.Settings.FunctionInfo = FunctionInfo{Key: entry.Key, SubKey: subKey, Label: entry.Label}
	}

	for i := range b.Settings.Fields {
		fv := &b.Settings.Fields[i]
		spec, ok := fieldFor(entry, subKey, *fv)
		if !ok {
			continue
		}
		fv.Value = NormalizeValue(spec.ValueType, fv.Value)

		if b.Settings.FunctionInfo.Operator == "" && fv.Operator != "" {
			b.Settings.FunctionInfo.Operator = fv.Operator
		}
	}
}

// NormalizeValue returns the canonical form of a value of the given type
func NormalizeValue(vt catalog.ValueType, raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}

	switch vt {
	case catalog.ValueNumber:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case catalog.ValueDate:
		if t, err := ParseDate(value); err == nil {
			if len(value) == len(time.DateOnly) {
				return t.Format(time.DateOnly)
			}
			return t.UTC().Format(time.RFC3339)
		}
	case catalog.ValueTextarea:
		// Multi-line text keeps its inner layout
		return strings.TrimSpace(raw)
	}

	return value
}

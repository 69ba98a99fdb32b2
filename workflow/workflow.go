package workflow

import (
	"slices"
	"strings"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
)

// ============================================================================
// Enums
// ============================================================================

// ExceptCase is the policy applied when no workflow acts on an event
type ExceptCase string

const (
	ExceptSample ExceptCase = "sample"
	ExceptMove   ExceptCase = "move"
	ExceptIgnore ExceptCase = "ignore"
)

func (e ExceptCase) IsValid() bool {
	switch e {
	case ExceptSample, ExceptMove, ExceptIgnore:
		return true
	}
	return false
}

// RunStatus is the outcome of the last evaluation run of a workflow
type RunStatus string

const (
	StatusSuccess RunStatus = "Success"
	StatusFailed  RunStatus = "Failed"
)

// ============================================================================
// Graph
// ============================================================================

// Workflow is a tenant-authored graph of nodes and edges
type Workflow struct {
	ID         kernel.WorkflowID `json:"id"`
	TenantID   kernel.TenantID   `json:"tenant_id"`
	Name       string            `json:"name"`
	Status     RunStatus         `json:"status"`
	Enabled    bool              `json:"enabled"`
	ExceptCase ExceptCase        `json:"except_case"`
	Nodes      []Node            `json:"nodes"`
	Edges      []Edge            `json:"edges"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Node is one step of a workflow
type Node struct {
	ID          string           `json:"id"`
	Kind        catalog.NodeKind `json:"type"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	X           float64          `json:"x"`
	Y           float64          `json:"y"`
	Config      NodeConfig       `json:"config"`
}

// NodeConfig holds the ordered blocks of a node
type NodeConfig struct {
	Blocks []BlockInstance `json:"blocks"`
}

// Edge connects two nodes of the same workflow
type Edge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Clone returns a deep copy of the workflow graph
func (w Workflow) Clone() Workflow {
	out := w
	out.Edges = slices.Clone(w.Edges)
	if w.Nodes != nil {
		out.Nodes = make([]Node, len(w.Nodes))
		for i, n := range w.Nodes {
			out.Nodes[i] = n.clone()
		}
	}
	return out
}

func (n Node) clone() Node {
	if n.Config.Blocks == nil {
		return n
	}
	blocks := make([]BlockInstance, len(n.Config.Blocks))
	for i, b := range n.Config.Blocks {
		if b.Settings.Fields != nil {
			fields := make([]FieldValue, len(b.Settings.Fields))
			for j, f := range b.Settings.Fields {
				f.Files = slices.Clone(f.Files)
				fields[j] = f
			}
			b.Settings.Fields = fields
		}
		blocks[i] = b
	}
	n.Config.Blocks = blocks
	return n
}

// ============================================================================
// Blocks
// ============================================================================

// BlockInstance is one configured occurrence of a catalog block
type BlockInstance struct {
	Key      string           `json:"key"`
	Item     catalog.Snapshot `json:"item"`
	Settings BlockSettings    `json:"settings"`
}

// BlockSettings holds the configured values of a block
type BlockSettings struct {
	Fields       []FieldValue `json:"fields"`
	FunctionInfo FunctionInfo `json:"function_info"`
}

// FunctionInfo records which catalog key, sub-key and operator produced a
// block so the editor can render it without consulting the catalog
type FunctionInfo struct {
	Key      string           `json:"key"`
	SubKey   string           `json:"sub_key,omitempty"`
	Operator catalog.Operator `json:"operator,omitempty"`
	Label    string           `json:"label,omitempty"`
}

// FieldValue is the configuration of one field. Fields of composite blocks
// are addressed by SubKey, fields of simple blocks by Index.
type FieldValue struct {
	Index    int              `json:"index"`
	SubKey   string           `json:"sub_key,omitempty"`
	Operator catalog.Operator `json:"operator,omitempty"`
	Value    string           `json:"value"`
	Files    []FileRef        `json:"files,omitempty"`
}

// Configured reports whether the field carries a value
func (f FieldValue) Configured() bool {
	return strings.TrimSpace(f.Value) != "" || len(f.Files) > 0
}

// FileRef points to an attachment held by the blob store. An empty Ref
// marks an attachment still waiting to be uploaded.
type FileRef struct {
	Name        string `json:"name"`
	Ref         string `json:"ref"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// Pending reports whether the file has not been uploaded yet
func (f FileRef) Pending() bool {
	return f.Ref == ""
}

// ============================================================================
// Field resolution
// ============================================================================

// ResolvedField pairs a configured value with its live catalog spec
type ResolvedField struct {
	Spec  catalog.FieldSpec
	Value FieldValue
}

// Resolve looks up the block's live catalog entry and binds each configured
// value to its field spec
func (b BlockInstance) Resolve(reg *catalog.Registry) (catalog.Entry, []ResolvedField, error) {
	entry, subKey, err := reg.Lookup(b.Key)
	if err != nil {
		return catalog.Entry{}, nil, err
	}

	resolved := make([]ResolvedField, 0, len(b.Settings.Fields))
	for i, fv := range b.Settings.Fields {
		spec, ok := fieldFor(entry, subKey, fv)
		if !ok {
			return entry, nil, ErrInvalidField().
				WithDetail("key", b.Key).
				WithDetail("position", i).
				WithDetail("reason", "field does not exist")
		}
		if fv.Operator != "" && !spec.AllowsOperator(fv.Operator) {
			return entry, nil, ErrInvalidField().
				WithDetail("key", b.Key).
				WithDetail("field", spec.Key).
				WithDetail("operator", string(fv.Operator)).
				WithDetail("reason", "operator not allowed")
		}
		resolved = append(resolved, ResolvedField{Spec: spec, Value: fv})
	}

	return entry, resolved, nil
}

// Value returns the raw configured value of the field named key
func (b BlockInstance) Value(reg *catalog.Registry, key string) (FieldValue, bool) {
	_, fields, err := b.Resolve(reg)
	if err != nil {
		return FieldValue{}, false
	}
	for _, f := range fields {
		if f.Spec.Key == key {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

func fieldFor(entry catalog.Entry, subKey string, fv FieldValue) (catalog.FieldSpec, bool) {
	switch {
	case subKey != "":
		if fv.SubKey != "" && fv.SubKey != subKey {
			return catalog.FieldSpec{}, false
		}
		return entry.Field(subKey)
	case fv.SubKey != "":
		return entry.Field(fv.SubKey)
	default:
		return entry.FieldAt(fv.Index)
	}
}

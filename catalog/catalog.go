package catalog

import (
	"slices"
	"strings"
)

// ============================================================================
// Enums
// ============================================================================

// NodeKind is the category of a workflow node
type NodeKind string

const (
	KindTrigger   NodeKind = "trigger"
	KindAction    NodeKind = "action"
	KindCondition NodeKind = "condition"
	KindDelay     NodeKind = "delay"
	KindEnd       NodeKind = "end"
)

func (k NodeKind) IsValid() bool {
	switch k {
	case KindTrigger, KindAction, KindCondition, KindDelay, KindEnd:
		return true
	}
	return false
}

// Format tells the editor where a field value comes from
type Format string

const (
	FormatInput      Format = "input"
	FormatStatic     Format = "static"
	FormatCallingAPI Format = "calling_api"
	FormatAuto       Format = "auto"
)

// ValueType is the type of a configured field value
type ValueType string

const (
	ValueText      ValueType = "text"
	ValueNumber    ValueType = "number"
	ValueDate      ValueType = "date"
	ValueTextarea  ValueType = "textarea"
	ValueSelect    ValueType = "select"
	ValueMultifile ValueType = "multifile"
)

// IsFreeText reports whether comparisons on this type ignore case
func (v ValueType) IsFreeText() bool {
	return v == ValueText || v == ValueTextarea
}

// IsOrdered reports whether gte/lte comparisons make sense for this type
func (v ValueType) IsOrdered() bool {
	return v == ValueNumber || v == ValueDate
}

// Operator is a comparison operator selectable on a field
type Operator string

const (
	OpIs       Operator = "is"
	OpIsNot    Operator = "is not"
	OpContains Operator = "contains"
	OpGte      Operator = "is gte"
	OpLte      Operator = "is lte"
)

func (o Operator) IsValid() bool {
	switch o {
	case OpIs, OpIsNot, OpContains, OpGte, OpLte:
		return true
	}
	return false
}

// Attribute names the event attribute a comparable field is tested against
type Attribute string

const (
	AttrText                     Attribute = "text"
	AttrMessageType              Attribute = "message_type"
	AttrPlatform                 Attribute = "platform"
	AttrIntegratedPhoneNumber    Attribute = "integrated_phone_number"
	AttrCustomerPhoneNumber      Attribute = "customer_phone_number"
	AttrConversationMessageCount Attribute = "conversation_message_count"
	AttrConversationStartedAt    Attribute = "conversation_started_at"
)

// ============================================================================
// Field specs and shapes
// ============================================================================

// Option is one choice of a static field
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldSpec describes one configurable field of a block
type FieldSpec struct {
	Key           string     `json:"key"`
	Label         string     `json:"label"`
	Format        Format     `json:"format"`
	ValueType     ValueType  `json:"value_type"`
	Operators     []Operator `json:"operators,omitempty"`
	StaticOptions []Option   `json:"static_options,omitempty"`
	RemoteSource  string     `json:"remote_source,omitempty"`
	Attribute     Attribute  `json:"attribute,omitempty"`
}

// Comparable reports whether the field carries operators
func (f FieldSpec) Comparable() bool {
	return len(f.Operators) > 0
}

// AllowsOperator reports whether op is in the field's allowed set
func (f FieldSpec) AllowsOperator(op Operator) bool {
	return slices.Contains(f.Operators, op)
}

// Shape is either a SimpleShape or a CompositeShape
type Shape interface {
	shape()
	fields() []FieldSpec
}

// SimpleShape is a flat ordered list of fields addressed by index
type SimpleShape struct {
	Fields []FieldSpec
}

// CompositeShape is a group of independently configurable sub-fields
// addressed by sub-key (the "blockKey.subKey" form)
type CompositeShape struct {
	SubFields []FieldSpec
}

func (SimpleShape) shape()                   {}
func (s SimpleShape) fields() []FieldSpec    { return s.Fields }
func (CompositeShape) shape()                {}
func (c CompositeShape) fields() []FieldSpec { return c.SubFields }

// ============================================================================
// Entry
// ============================================================================

// Entry is one block type of the catalog
type Entry struct {
	Key          string
	Label        string
	EnabledKinds []NodeKind
	Shape        Shape

	// EventMatch is an expression over the event evaluated for blocks that
	// select an event category instead of comparing fields
	EventMatch string
}

// AllowedOn reports whether the block can attach to a node of kind k
func (e Entry) AllowedOn(k NodeKind) bool {
	return slices.Contains(e.EnabledKinds, k)
}

// IsComposite reports whether the entry exposes named sub-fields
func (e Entry) IsComposite() bool {
	_, ok := e.Shape.(CompositeShape)
	return ok
}

// Fields returns the entry fields in declaration order
func (e Entry) Fields() []FieldSpec {
	if e.Shape == nil {
		return nil
	}
	return e.Shape.fields()
}

// Field resolves a field by sub-key (composite) or key (simple)
func (e Entry) Field(key string) (FieldSpec, bool) {
	for _, f := range e.Fields() {
		if f.Key == key {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldAt resolves a field by position
func (e Entry) FieldAt(index int) (FieldSpec, bool) {
	fields := e.Fields()
	if index < 0 || index >= len(fields) {
		return FieldSpec{}, false
	}
	return fields[index], true
}

// HasOperators reports whether at least one field is comparable
func (e Entry) HasOperators() bool {
	for _, f := range e.Fields() {
		if f.Comparable() {
			return true
		}
	}
	return false
}

// IsEventMatch reports whether the entry is a pure event-match trigger
func (e Entry) IsEventMatch() bool {
	return e.EventMatch != "" && len(e.Fields()) == 0
}

// Snapshot returns the denormalized copy stored inside persisted blocks
func (e Entry) Snapshot() Snapshot {
	return Snapshot{
		Key:          e.Key,
		Label:        e.Label,
		EnabledKinds: slices.Clone(e.EnabledKinds),
		Composite:    e.IsComposite(),
		Fields:       slices.Clone(e.Fields()),
	}
}

// Snapshot is the display copy of a catalog entry embedded in a block
// instance. It is never authoritative for evaluation.
type Snapshot struct {
	Key          string      `json:"key"`
	Label        string      `json:"label"`
	EnabledKinds []NodeKind  `json:"enabled_kinds"`
	Composite    bool        `json:"composite,omitempty"`
	Fields       []FieldSpec `json:"fields"`
}

// ============================================================================
// Catalog keys
// ============================================================================

// SplitKey splits "blockKey.subKey" into its parts
func SplitKey(catalogKey string) (blockKey, subKey string) {
	blockKey, subKey, _ = strings.Cut(catalogKey, ".")
	return blockKey, subKey
}

// JoinKey builds a dotted catalog key
func JoinKey(blockKey, subKey string) string {
	if subKey == "" {
		return blockKey
	}
	return blockKey + "." + subKey
}

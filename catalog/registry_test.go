package catalog

import (
	"testing"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	r, err := NewRegistry(BuiltinEntries()...)
	require.NoError(t, err)
	assert.Len(t, r.All(), len(BuiltinEntries()))
}

func TestLookup(t *testing.T) {
	r := Default()

	tests := []struct {
		name       string
		key        string
		wantBlock  string
		wantSubKey string
		wantErr    bool
	}{
		{name: "plain key", key: "send_message", wantBlock: BlockSendMessage},
		{name: "composite without sub-key", key: "message_filter", wantBlock: BlockMessageFilter},
		{name: "composite with sub-key", key: "message_filter.text", wantBlock: BlockMessageFilter, wantSubKey: "text"},
		{name: "unknown block", key: "teleport", wantErr: true},
		{name: "unknown sub-key", key: "message_filter.color", wantErr: true},
		{name: "sub-key on simple block", key: "send_message.text", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, subKey, err := r.Lookup(tt.key)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errx.IsType(err, errx.TypeNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBlock, entry.Key)
			assert.Equal(t, tt.wantSubKey, subKey)
		})
	}
}

func TestListFor(t *testing.T) {
	r := Default()

	keys := func(entries []Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Key)
		}
		return out
	}

	assert.Equal(t,
		[]string{BlockFirstMessage, BlockIncomingMessage, BlockMessageFilter, BlockMessageCount, BlockPlatform, BlockIntegratedNumber},
		keys(r.ListFor(KindTrigger)))
	assert.Equal(t,
		[]string{BlockSendMessage, BlockAIReply, BlockSendEmail},
		keys(r.ListFor(KindAction)))
	assert.Equal(t, []string{BlockDelay}, keys(r.ListFor(KindDelay)))
	assert.Empty(t, r.ListFor(KindEnd))

	for _, e := range r.ListFor(KindCondition) {
		assert.True(t, e.HasOperators(), "condition block %s needs operators", e.Key)
	}
}

func TestNewRegistryRejectsBrokenEntries(t *testing.T) {
	comparable := FieldSpec{Key: "v", Format: FormatInput, ValueType: ValueText, Operators: []Operator{OpIs}, Attribute: AttrText}

	tests := []struct {
		name  string
		entry Entry
	}{
		{
			name:  "condition without operators",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindCondition}, Shape: SimpleShape{Fields: []FieldSpec{{Key: "v", Format: FormatInput, ValueType: ValueText}}}},
		},
		{
			name:  "trigger without fields or event match",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindTrigger}, Shape: SimpleShape{}},
		},
		{
			name:  "static without options",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindAction}, Shape: SimpleShape{Fields: []FieldSpec{{Key: "v", Format: FormatStatic, ValueType: ValueSelect}}}},
		},
		{
			name:  "calling_api without source",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindAction}, Shape: SimpleShape{Fields: []FieldSpec{{Key: "v", Format: FormatCallingAPI, ValueType: ValueSelect}}}},
		},
		{
			name:  "duplicate sub-keys",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindCondition}, Shape: CompositeShape{SubFields: []FieldSpec{comparable, comparable}}},
		},
		{
			name:  "contains on number",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindCondition}, Shape: SimpleShape{Fields: []FieldSpec{{Key: "v", Format: FormatInput, ValueType: ValueNumber, Operators: []Operator{OpContains}, Attribute: AttrConversationMessageCount}}}},
		},
		{
			name:  "dotted key",
			entry: Entry{Key: "a.b", EnabledKinds: []NodeKind{KindCondition}, Shape: SimpleShape{Fields: []FieldSpec{comparable}}},
		},
		{
			name:  "comparable field without attribute",
			entry: Entry{Key: "x", EnabledKinds: []NodeKind{KindCondition}, Shape: SimpleShape{Fields: []FieldSpec{{Key: "v", Format: FormatInput, ValueType: ValueText, Operators: []Operator{OpIs}}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entry)
			require.Error(t, err)
			assert.True(t, errx.IsType(err, errx.TypeValidation))
		})
	}
}

func TestNewRegistryRejectsDuplicateKeys(t *testing.T) {
	e := Entry{Key: "first", EnabledKinds: []NodeKind{KindTrigger}, Shape: SimpleShape{}, EventMatch: "true"}
	_, err := NewRegistry(e, e)
	require.Error(t, err)
}

func TestSnapshotCopiesEntry(t *testing.T) {
	entry, _, err := Default().Lookup(BlockMessageFilter)
	require.NoError(t, err)

	snap := entry.Snapshot()
	assert.Equal(t, BlockMessageFilter, snap.Key)
	assert.True(t, snap.Composite)
	require.Len(t, snap.Fields, 2)
	assert.Equal(t, "text", snap.Fields[0].Key)

	snap.Fields[0].Key = "changed"
	f, ok := entry.Field("text")
	assert.True(t, ok)
	assert.Equal(t, "text", f.Key)
}

func TestSplitJoinKey(t *testing.T) {
	b, s := SplitKey("message_filter.type")
	assert.Equal(t, "message_filter", b)
	assert.Equal(t, "type", s)
	assert.Equal(t, "message_filter.type", JoinKey(b, s))
	assert.Equal(t, "delay", JoinKey("delay", ""))
}

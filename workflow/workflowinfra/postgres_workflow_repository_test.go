package workflowinfra

import (
	"testing"
	"time"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(reg *catalog.Registry, key string, fields ...workflow.FieldValue) workflow.BlockInstance {
	entry, subKey, err := reg.Lookup(key)
	if err != nil {
		panic(err)
	}
	info := workflow.FunctionInfo{Key: entry.Key, SubKey: subKey, Label: entry.Label}
	if len(fields) > 0 {
		info.Operator = fields[0].Operator
	}
	return workflow.BlockInstance{
		Key:  key,
		Item: entry.Snapshot(),
		Settings: workflow.BlockSettings{
			Fields:       fields,
			FunctionInfo: info,
		},
	}
}

// everyShapeWorkflow exercises every field format and value type
func everyShapeWorkflow() workflow.Workflow {
	reg := catalog.Default()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	return workflow.Workflow{
		ID:         "wf-1",
		TenantID:   "tenant-1",
		Name:       "Everything",
		Status:     workflow.StatusFailed,
		Enabled:    true,
		ExceptCase: workflow.ExceptMove,
		Nodes: []workflow.Node{
			{
				ID: "t1", Kind: catalog.KindTrigger, Label: "Start", Description: "first contact", X: 10, Y: 20.5,
				Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
					block(reg, catalog.BlockFirstMessage),
					block(reg, catalog.BlockIntegratedNumber, workflow.FieldValue{Index: 0, Operator: catalog.OpIs, Value: "+5491100000000"}),
				}},
			},
			{
				ID: "c1", Kind: catalog.KindCondition, Label: "Filter", X: 200, Y: 20,
				Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
					block(reg, "message_filter.text", workflow.FieldValue{SubKey: "text", Operator: catalog.OpContains, Value: "refund"}),
					block(reg, catalog.BlockMessageFilter,
						workflow.FieldValue{SubKey: "type", Operator: catalog.OpIs, Value: "image"},
						workflow.FieldValue{SubKey: "text", Operator: catalog.OpIsNot, Value: "spam"},
					),
					block(reg, catalog.BlockMessageCount, workflow.FieldValue{Index: 0, Operator: catalog.OpGte, Value: "3"}),
					block(reg, catalog.BlockConversationStart, workflow.FieldValue{Index: 0, Operator: catalog.OpLte, Value: "2024-05-01"}),
				}},
			},
			{
				ID: "a1", Kind: catalog.KindAction, Label: "Reply", X: 400, Y: 20,
				Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
					block(reg, catalog.BlockSendMessage,
						workflow.FieldValue{Index: 0, Value: "Line one\nLine two"},
						workflow.FieldValue{Index: 1, Files: []workflow.FileRef{
							{Name: "invoice.pdf", Ref: "tenants/tenant-1/workflows/wf-1/u-invoice.pdf", ContentType: "application/pdf", Size: 1024},
							{Name: "logo.png", Ref: "tenants/tenant-1/workflows/wf-1/u-logo.png", ContentType: "image/png", Size: 2048},
						}},
					),
					block(reg, catalog.BlockAIReply, workflow.FieldValue{Index: 0, Value: "Be brief"}),
				}},
			},
			{
				ID: "d1", Kind: catalog.KindDelay, X: 600, Y: 20,
				Config: workflow.NodeConfig{Blocks: []workflow.BlockInstance{
					block(reg, catalog.BlockDelay,
						workflow.FieldValue{Index: 0, Value: "5"},
						workflow.FieldValue{Index: 1, Value: catalog.UnitMinutes},
					),
				}},
			},
			{ID: "end", Kind: catalog.KindEnd, X: 800, Y: 20},
		},
		Edges: []workflow.Edge{
			{ID: "e1", From: "t1", To: "c1", Label: "next"},
			{ID: "e2", From: "c1", To: "a1"},
			{ID: "e3", From: "a1", To: "d1"},
			{ID: "e4", From: "d1", To: "end"},
		},
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
	}
}

func TestRoundTripPreservesEveryField(t *testing.T) {
	wf := everyShapeWorkflow()

	formats := map[catalog.Format]bool{}
	valueTypes := map[catalog.ValueType]bool{}
	for _, n := range wf.Nodes {
		for _, b := range n.Config.Blocks {
			for _, f := range b.Item.Fields {
				formats[f.Format] = true
				valueTypes[f.ValueType] = true
			}
		}
	}
	require.Len(t, formats, 4, "fixture must cover every format")
	require.Len(t, valueTypes, 6, "fixture must cover every value type")

	dbWf, err := toDBWorkflow(wf)
	require.NoError(t, err)

	loaded, err := toDomainWorkflow(dbWf)
	require.NoError(t, err)
	assert.Equal(t, wf, *loaded)
}

func TestRoundTripEmptyGraph(t *testing.T) {
	wf := workflow.Workflow{ID: "wf-2", TenantID: kernel.TenantID("t"), Name: "empty", ExceptCase: workflow.ExceptIgnore}

	dbWf, err := toDBWorkflow(wf)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(dbWf.Nodes))
	assert.False(t, dbWf.Status.Valid)

	loaded, err := toDomainWorkflow(dbWf)
	require.NoError(t, err)
	assert.Empty(t, loaded.Nodes)
	assert.Empty(t, loaded.Edges)
	assert.Equal(t, workflow.RunStatus(""), loaded.Status)
}

func TestPersistedJSONShape(t *testing.T) {
	wf := everyShapeWorkflow()
	dbWf, err := toDBWorkflow(wf)
	require.NoError(t, err)

	raw := string(dbWf.Nodes)
	for _, key := range []string{`"id":"t1"`, `"type":"trigger"`, `"x":10`, `"y":20.5`, `"config":{"blocks":[`, `"item":{`, `"settings":{`, `"function_info":{`, `"key":"message_filter.text"`} {
		assert.Contains(t, raw, key)
	}
}

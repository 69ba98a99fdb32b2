package workflowinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/jmoiron/sqlx"
)

type PostgresWorkflowRepository struct {
	db *sqlx.DB
}

var _ workflow.WorkflowRepository = (*PostgresWorkflowRepository)(nil)

func NewPostgresWorkflowRepository(db *sqlx.DB) *PostgresWorkflowRepository {
	return &PostgresWorkflowRepository{db: db}
}

// dbWorkflow is an intermediate struct for database operations
type dbWorkflow struct {
	ID         string          `db:"id"`
	TenantID   string          `db:"tenant_id"`
	Name       string          `db:"name"`
	Status     sql.NullString  `db:"status"`
	Enabled    bool            `db:"enabled"`
	ExceptCase string          `db:"except_case"`
	Nodes      json.RawMessage `db:"nodes"`
	Edges      json.RawMessage `db:"edges"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

const selectColumns = `
	id, tenant_id, name, status, enabled, except_case,
	nodes, edges, created_at, updated_at`

// toDBWorkflow converts domain Workflow to dbWorkflow
func toDBWorkflow(wf workflow.Workflow) (*dbWorkflow, error) {
	nodes := wf.Nodes
	if nodes == nil {
		nodes = []workflow.Node{}
	}
	nodesJSON, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal nodes: %w", err)
	}

	edges := wf.Edges
	if edges == nil {
		edges = []workflow.Edge{}
	}
	edgesJSON, err := json.Marshal(edges)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal edges: %w", err)
	}

	return &dbWorkflow{
		ID:         wf.ID.String(),
		TenantID:   wf.TenantID.String(),
		Name:       wf.Name,
		Status:     sql.NullString{String: string(wf.Status), Valid: wf.Status != ""},
		Enabled:    wf.Enabled,
		ExceptCase: string(wf.ExceptCase),
		Nodes:      nodesJSON,
		Edges:      edgesJSON,
		CreatedAt:  wf.CreatedAt,
		UpdatedAt:  wf.UpdatedAt,
	}, nil
}

// toDomainWorkflow converts dbWorkflow to domain Workflow
func toDomainWorkflow(dbWf *dbWorkflow) (*workflow.Workflow, error) {
	var nodes []workflow.Node
	if len(dbWf.Nodes) > 0 && string(dbWf.Nodes) != "null" {
		if err := json.Unmarshal(dbWf.Nodes, &nodes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	var edges []workflow.Edge
	if len(dbWf.Edges) > 0 && string(dbWf.Edges) != "null" {
		if err := json.Unmarshal(dbWf.Edges, &edges); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edges: %w", err)
		}
	}

	return &workflow.Workflow{
		ID:         kernel.WorkflowID(dbWf.ID),
		TenantID:   kernel.TenantID(dbWf.TenantID),
		Name:       dbWf.Name,
		Status:     workflow.RunStatus(dbWf.Status.String),
		Enabled:    dbWf.Enabled,
		ExceptCase: workflow.ExceptCase(dbWf.ExceptCase),
		Nodes:      nodes,
		Edges:      edges,
		CreatedAt:  dbWf.CreatedAt,
		UpdatedAt:  dbWf.UpdatedAt,
	}, nil
}

// Save inserts or replaces the whole graph body of a workflow
func (r *PostgresWorkflowRepository) Save(ctx context.Context, wf workflow.Workflow) error {
	dbWf, err := toDBWorkflow(wf)
	if err != nil {
		return errx.Wrap(err, "failed to convert workflow", errx.TypeInternal).
			WithDetail("workflow_id", wf.ID.String())
	}

	query := `
		INSERT INTO workflows (
			id, tenant_id, name, status, enabled, except_case,
			nodes, edges, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :name, :status, :enabled, :except_case,
			:nodes, :edges, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			except_case = EXCLUDED.except_case,
			nodes = EXCLUDED.nodes,
			edges = EXCLUDED.edges,
			updated_at = EXCLUDED.updated_at
		WHERE workflows.tenant_id = EXCLUDED.tenant_id`

	result, err := r.db.NamedExecContext(ctx, query, dbWf)
	if err != nil {
		return errx.Wrap(err, "failed to save workflow", errx.TypeInternal).
			WithDetail("workflow_id", wf.ID.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	// A conflicting id owned by another tenant updates nothing
	if rowsAffected == 0 {
		return workflow.ErrWorkflowNotFound().WithDetail("workflow_id", wf.ID.String())
	}

	return nil
}

func (r *PostgresWorkflowRepository) FindByID(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) (*workflow.Workflow, error) {
	query := `SELECT` + selectColumns + `
		FROM workflows
		WHERE id = $1 AND tenant_id = $2`

	var dbWf dbWorkflow
	err := r.db.GetContext(ctx, &dbWf, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, workflow.ErrWorkflowNotFound().WithDetail("workflow_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find workflow by id", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	return toDomainWorkflow(&dbWf)
}

func (r *PostgresWorkflowRepository) Delete(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID) error {
	query := `DELETE FROM workflows WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete workflow", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	return r.expectOne(result, id)
}

func (r *PostgresWorkflowRepository) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	query := `SELECT` + selectColumns + `
		FROM workflows
		WHERE tenant_id = $1
		ORDER BY created_at ASC, id ASC`

	return r.selectWorkflows(ctx, query, tenantID)
}

func (r *PostgresWorkflowRepository) FindEnabled(ctx context.Context, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	query := `SELECT` + selectColumns + `
		FROM workflows
		WHERE tenant_id = $1 AND enabled = true
		ORDER BY created_at ASC, id ASC`

	return r.selectWorkflows(ctx, query, tenantID)
}

func (r *PostgresWorkflowRepository) UpdateEnabled(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID, enabled bool) error {
	query := `UPDATE workflows SET enabled = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`

	result, err := r.db.ExecContext(ctx, query, enabled, id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to update workflow enabled flag", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	return r.expectOne(result, id)
}

func (r *PostgresWorkflowRepository) UpdateExceptCase(ctx context.Context, id kernel.WorkflowID, tenantID kernel.TenantID, exceptCase workflow.ExceptCase) error {
	query := `UPDATE workflows SET except_case = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3`

	result, err := r.db.ExecContext(ctx, query, string(exceptCase), id.String(), tenantID.String())
	if err != nil {
		return errx.Wrap(err, "failed to update workflow except case", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	return r.expectOne(result, id)
}

func (r *PostgresWorkflowRepository) UpdateStatus(ctx context.Context, id kernel.WorkflowID, status workflow.RunStatus) error {
	query := `UPDATE workflows SET status = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, string(status), id.String())
	if err != nil {
		return errx.Wrap(err, "failed to update workflow status", errx.TypeInternal).
			WithDetail("workflow_id", id.String())
	}

	return r.expectOne(result, id)
}

// ============================================================================
// Helpers
// ============================================================================

func (r *PostgresWorkflowRepository) selectWorkflows(ctx context.Context, query string, tenantID kernel.TenantID) ([]*workflow.Workflow, error) {
	var dbWorkflows []dbWorkflow
	err := r.db.SelectContext(ctx, &dbWorkflows, query, tenantID.String())
	if err != nil {
		return nil, errx.Wrap(err, "failed to find workflows", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}

	result := make([]*workflow.Workflow, 0, len(dbWorkflows))
	for i := range dbWorkflows {
		wf, err := toDomainWorkflow(&dbWorkflows[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert workflow", errx.TypeInternal)
		}
		result = append(result, wf)
	}

	return result, nil
}

func (r *PostgresWorkflowRepository) expectOne(result sql.Result, id kernel.WorkflowID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return workflow.ErrWorkflowNotFound().WithDetail("workflow_id", id.String())
	}

	return nil
}

package workflowapi

import (
	"encoding/json"
	"mime/multipart"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/iam"
	"github.com/Abraxas-365/supportflow/iam/auth"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/Abraxas-365/supportflow/workflow/workflowsrv"
	"github.com/gofiber/fiber/v2"
)

// WorkflowHandler exposes the workflow service to the dashboard editor
type WorkflowHandler struct {
	service *workflowsrv.WorkflowService
}

func NewWorkflowHandler(service *workflowsrv.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

// RegisterRoutes mounts the workflow endpoints under /api/workflows
func (h *WorkflowHandler) RegisterRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	group := router.Group("/workflows", authMiddleware)
	group.Get("/", h.List)
	group.Post("/", h.Create)
	group.Get("/:id", h.Get)
	group.Put("/:id", h.Update)
	group.Delete("/:id", h.Delete)
	group.Patch("/:id/enabled", h.SetEnabled)
	group.Patch("/:id/except-case", h.SetExceptCase)
	group.Delete("/:id/nodes/:nodeId", h.DeleteNode)
}

// List GET /api/workflows
func (h *WorkflowHandler) List(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	workflows, err := h.service.ListByTenant(c.Context(), tenantID)
	if err != nil {
		return err
	}

	return c.JSON(WorkflowListResponse{Workflows: workflows, Total: len(workflows)})
}

// Get GET /api/workflows/:id
func (h *WorkflowHandler) Get(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	wf, err := h.service.Load(c.Context(), tenantID, kernel.NewWorkflowID(c.Params("id")))
	if err != nil {
		return err
	}

	return c.JSON(wf)
}

// Create POST /api/workflows (JSON, or multipart with a "workflow" part and file parts)
func (h *WorkflowHandler) Create(c *fiber.Ctx) error {
	return h.save(c, "", fiber.StatusCreated)
}

// Update PUT /api/workflows/:id
func (h *WorkflowHandler) Update(c *fiber.Ctx) error {
	return h.save(c, kernel.NewWorkflowID(c.Params("id")), fiber.StatusOK)
}

func (h *WorkflowHandler) save(c *fiber.Ctx, id kernel.WorkflowID, status int) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	req, files, cleanup, err := parseSaveRequest(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := validate.Struct(req); err != nil {
		return workflow.ErrInvalidWorkflow().WithDetail("violations", validationMessages(err))
	}

	wf := req.toDomain()
	wf.ID = id

	saved, err := h.service.Save(c.Context(), tenantID, wf, files)
	if err != nil {
		return err
	}

	return c.Status(status).JSON(saved)
}

// Delete DELETE /api/workflows/:id
func (h *WorkflowHandler) Delete(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.Context(), tenantID, kernel.NewWorkflowID(c.Params("id"))); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SetEnabled PATCH /api/workflows/:id/enabled
func (h *WorkflowHandler) SetEnabled(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	var req SetEnabledRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if err := validate.Struct(req); err != nil {
		return errx.New("enabled is required", errx.TypeValidation).
			WithDetail("violations", validationMessages(err))
	}

	id := kernel.NewWorkflowID(c.Params("id"))
	if err := h.service.SetEnabled(c.Context(), tenantID, id, *req.Enabled); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"id": id, "enabled": *req.Enabled})
}

// SetExceptCase PATCH /api/workflows/:id/except-case
func (h *WorkflowHandler) SetExceptCase(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	var req SetExceptCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.New("invalid request body", errx.TypeValidation)
	}
	if err := validate.Struct(req); err != nil {
		return workflow.ErrInvalidExceptCase().WithDetail("violations", validationMessages(err))
	}

	id := kernel.NewWorkflowID(c.Params("id"))
	ec := workflow.ExceptCase(req.ExceptCase)
	if err := h.service.SetExceptCase(c.Context(), tenantID, id, ec); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"id": id, "except_case": ec})
}

// DeleteNode DELETE /api/workflows/:id/nodes/:nodeId
func (h *WorkflowHandler) DeleteNode(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}

	wf, removed, err := h.service.DeleteNode(c.Context(), tenantID, kernel.NewWorkflowID(c.Params("id")), c.Params("nodeId"))
	if err != nil {
		return err
	}

	return c.JSON(DeleteNodeResponse{Workflow: wf, Removed: removed})
}

// ============================================================================
// Helpers
// ============================================================================

func tenantOf(c *fiber.Ctx) (kernel.TenantID, error) {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return "", iam.ErrUnauthorized()
	}
	return authContext.TenantID, nil
}

// parseSaveRequest reads a JSON body, or a multipart form whose "workflow"
// field holds the JSON body and whose file parts carry attachment bytes
// keyed by file name
func parseSaveRequest(c *fiber.Ctx) (SaveWorkflowRequest, map[string]workflow.Attachment, func(), error) {
	var req SaveWorkflowRequest
	noop := func() {}

	form, err := c.MultipartForm()
	if err != nil {
		if err := c.BodyParser(&req); err != nil {
			return req, nil, noop, errx.New("invalid request body", errx.TypeValidation)
		}
		return req, nil, noop, nil
	}

	values := form.Value["workflow"]
	if len(values) == 0 {
		return req, nil, noop, errx.New("multipart request needs a workflow field", errx.TypeValidation)
	}
	if err := json.Unmarshal([]byte(values[0]), &req); err != nil {
		return req, nil, noop, errx.New("invalid workflow field", errx.TypeValidation).
			WithDetail("error", err.Error())
	}

	files := make(map[string]workflow.Attachment)
	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				cleanup()
				return req, nil, noop, errx.Wrap(err, "failed to open uploaded file", errx.TypeInternal).
					WithDetail("file", fh.Filename)
			}
			opened = append(opened, f)
			files[fh.Filename] = workflow.Attachment{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Body:        f,
			}
		}
	}

	return req, files, cleanup, nil
}

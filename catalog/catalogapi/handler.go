package catalogapi

import (
	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/iam"
	"github.com/Abraxas-365/supportflow/iam/auth"
	"github.com/gofiber/fiber/v2"
)

// EditorSessionHeader identifies one open editor; candidate lists are
// cached for its lifetime
const EditorSessionHeader = "X-Editor-Session"

// CatalogHandler exposes the block catalog to the workflow editor
type CatalogHandler struct {
	registry *catalog.Registry
	resolver *catalog.CandidateResolver
}

func NewCatalogHandler(registry *catalog.Registry, resolver *catalog.CandidateResolver) *CatalogHandler {
	return &CatalogHandler{
		registry: registry,
		resolver: resolver,
	}
}

// RegisterRoutes mounts the catalog endpoints under /api/catalog
func (h *CatalogHandler) RegisterRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	group := router.Group("/catalog", authMiddleware)
	group.Get("/", h.List)
	group.Get("/:key/candidates", h.Candidates)
	group.Delete("/sessions/current", h.EndSession)
}

// List returns the catalog, optionally filtered by node kind
// GET /api/catalog?kind=condition
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	var entries []catalog.Entry
	if kind := catalog.NodeKind(c.Query("kind")); kind != "" {
		if !kind.IsValid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid node kind",
				"kind":  kind,
			})
		}
		entries = h.registry.ListFor(kind)
	} else {
		entries = h.registry.All()
	}

	snapshots := make([]catalog.Snapshot, 0, len(entries))
	for _, e := range entries {
		snapshots = append(snapshots, e.Snapshot())
	}

	return c.JSON(fiber.Map{
		"entries": snapshots,
		"total":   len(snapshots),
	})
}

// Candidates resolves the remote options of a calling_api field
// GET /api/catalog/:key/candidates
func (h *CatalogHandler) Candidates(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	options, err := h.resolver.Candidates(
		c.Context(),
		authContext.TenantID,
		editorSession(c),
		c.Params("key"),
	)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"key":        c.Params("key"),
		"candidates": options,
	})
}

// EndSession drops cached candidates of the caller's editor session
// DELETE /api/catalog/sessions/current
func (h *CatalogHandler) EndSession(c *fiber.Ctx) error {
	authContext, ok := auth.GetAuthContext(c)
	if !ok {
		return iam.ErrUnauthorized()
	}

	h.resolver.EndSession(authContext.TenantID, editorSession(c))
	return c.SendStatus(fiber.StatusNoContent)
}

func editorSession(c *fiber.Ctx) string {
	if s := c.Get(EditorSessionHeader); s != "" {
		return s
	}
	return "default"
}

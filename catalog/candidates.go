package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/supportflow/pkg/kernel"
	c "github.com/patrickmn/go-cache"
)

// CandidateResolver fetches the selectable values of calling_api fields.
// Results are cached per editor session; they are only used while a
// workflow is being configured.
type CandidateResolver struct {
	registry   *Registry
	baseURL    string
	httpClient *http.Client
	cache      *c.Cache
	ttl        time.Duration
}

// NewCandidateResolver creates a resolver. baseURL prefixes relative
// remote sources.
func NewCandidateResolver(registry *Registry, baseURL string, ttl, timeout time.Duration) *CandidateResolver {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CandidateResolver{
		registry:   registry,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      c.New(ttl, 10*time.Minute),
		ttl:        ttl,
	}
}

// Candidates returns the remote options of the first calling_api field
// addressed by catalogKey
func (r *CandidateResolver) Candidates(
	ctx context.Context,
	tenantID kernel.TenantID,
	editorSessionID string,
	catalogKey string,
) ([]Option, error) {
	field, err := r.remoteField(catalogKey)
	if err != nil {
		return nil, err
	}

	cacheKey := fmt.Sprintf("%s|%s|%s", tenantID, editorSessionID, catalogKey)
	if cached, found := r.cache.Get(cacheKey); found {
		return cached.([]Option), nil
	}

	options, err := r.fetch(ctx, tenantID, field.RemoteSource)
	if err != nil {
		return nil, err
	}

	r.cache.Set(cacheKey, options, r.ttl)
	return options, nil
}

// EndSession drops every cached candidate list of an editor session
func (r *CandidateResolver) EndSession(tenantID kernel.TenantID, editorSessionID string) {
	prefix := fmt.Sprintf("%s|%s|", tenantID, editorSessionID)
	for key := range r.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			r.cache.Delete(key)
		}
	}
}

func (r *CandidateResolver) remoteField(catalogKey string) (FieldSpec, error) {
	entry, subKey, err := r.registry.Lookup(catalogKey)
	if err != nil {
		return FieldSpec{}, err
	}

	if subKey != "" {
		f, _ := entry.Field(subKey)
		if f.Format != FormatCallingAPI {
			return FieldSpec{}, ErrNoRemoteSource().WithDetail("key", catalogKey)
		}
		return f, nil
	}

	for _, f := range entry.Fields() {
		if f.Format == FormatCallingAPI {
			return f, nil
		}
	}
	return FieldSpec{}, ErrNoRemoteSource().WithDetail("key", catalogKey)
}

func (r *CandidateResolver) fetch(ctx context.Context, tenantID kernel.TenantID, source string) ([]Option, error) {
	url := source
	if strings.HasPrefix(source, "/") {
		url = r.baseURL + source
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to create candidates request", errx.TypeInternal)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, ErrCandidatesUnavailable().WithDetail("source", source).WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Candidate source %s returned %d: %s", url, resp.StatusCode, string(body))
		return nil, ErrCandidatesUnavailable().
			WithDetail("source", source).
			WithDetail("status", resp.StatusCode)
	}

	var options []Option
	if err := json.Unmarshal(body, &options); err != nil {
		var wrapped struct {
			Data []Option `json:"data"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, ErrCandidatesUnavailable().
				WithDetail("source", source).
				WithDetail("reason", "malformed candidate list").
				WithCause(err)
		}
		options = wrapped.Data
	}

	for i := range options {
		if options[i].Label == "" {
			options[i].Label = options[i].Value
		}
	}

	return options, nil
}

package permissions

import (
	"context"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/observability"
	"github.com/platinummonkey/helpdesk/pkg/validation"
)

const (
	defaultCacheSize = 1024
	cacheType        = "permission_matrix"
)

// Service resolves and edits role permission matrices. Resolved matrices
// are cached per (company, role) and evicted whenever they are saved.
type Service struct {
	store   *Store
	catalog *Catalog
	cache   *lru.LRU[string, Matrix]
	metrics *observability.Metrics
}

// NewService creates a permission service. A zero ttl disables expiry;
// metrics may be nil.
func NewService(store *Store, catalog *Catalog, ttl time.Duration, metrics *observability.Metrics) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Service{
		store:   store,
		catalog: catalog,
		cache:   lru.NewLRU[string, Matrix](defaultCacheSize, nil, ttl),
		metrics: metrics,
	}
}

// Catalog returns the applicability table the service validates against.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

func cacheKey(companyID, roleID int64) string {
	return strconv.FormatInt(companyID, 10) + ":" + strconv.FormatInt(roleID, 10)
}

// Matrix returns the normalized matrix for the pair. A pair with no saved
// matrix resolves to all zeros.
func (s *Service) Matrix(ctx context.Context, companyID, roleID int64) (Matrix, error) {
	key := cacheKey(companyID, roleID)
	if m, ok := s.cache.Get(key); ok {
		s.observeCache(true)
		return m.Clone(), nil
	}
	s.observeCache(false)

	stored, err := s.store.GetMatrix(ctx, companyID, roleID)
	if err != nil {
		return nil, err
	}
	m := stored.Normalize(s.catalog)
	s.cache.Add(key, m)
	return m.Clone(), nil
}

func (s *Service) observeCache(hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		return
	}
	s.metrics.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// Save validates and normalizes req, persists it and evicts the cached
// entry. The role must belong to the selected company.
func (s *Service) Save(ctx context.Context, req SaveRequest) (Matrix, error) {
	if err := req.Validate(s.catalog); err != nil {
		return nil, err
	}

	role, err := s.store.GetRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}
	if role.CompanyID != req.CompanyID {
		return nil, apperr.Validation("Role %q does not belong to the selected company", role.Name)
	}

	before, err := s.Matrix(ctx, req.CompanyID, req.RoleID)
	if err != nil {
		return nil, err
	}

	m := req.Permissions.Normalize(s.catalog)
	if err := s.store.SaveMatrix(ctx, req.CompanyID, req.RoleID, m, auth.ActorID(ctx)); err != nil {
		return nil, err
	}
	s.cache.Remove(cacheKey(req.CompanyID, req.RoleID))

	audit.Record(ctx, audit.EventTypeAuthzPermissionsUpdate, audit.ResourceTypeRole,
		strconv.FormatInt(req.RoleID, 10), "permissions updated for role "+role.Name,
		&audit.ChangeDetails{
			Before: map[string]interface{}{"granted": before.Granted()},
			After:  map[string]interface{}{"granted": m.Granted()},
		})
	return m, nil
}

// ListRoles returns every role.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

// CreateRole creates a role owned by req.CompanyID.
func (s *Service) CreateRole(ctx context.Context, req CreateRoleRequest) (*Role, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	role := &Role{Name: req.Name, CompanyID: req.CompanyID}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	audit.Record(ctx, audit.EventTypeAuthzRoleCreate, audit.ResourceTypeRole,
		strconv.FormatInt(role.ID, 10), "role created: "+role.Name, nil)
	return role, nil
}

// UpdateRole renames a role.
func (s *Service) UpdateRole(ctx context.Context, req UpdateRoleRequest) error {
	if err := validation.Struct(req); err != nil {
		return err
	}
	if err := s.store.UpdateRole(ctx, req.ID, req.Name); err != nil {
		return err
	}
	audit.Record(ctx, audit.EventTypeAuthzRoleUpdate, audit.ResourceTypeRole,
		strconv.FormatInt(req.ID, 10), "role renamed to "+req.Name, nil)
	return nil
}

// DeleteRole deletes a role and evicts its cached matrix. It returns the
// deleted role so callers can name it.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) (*Role, error) {
	role, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return nil, err
	}
	s.cache.Remove(cacheKey(role.CompanyID, role.ID))

	audit.Record(ctx, audit.EventTypeAuthzRoleDelete, audit.ResourceTypeRole,
		strconv.FormatInt(roleID, 10), "role deleted: "+role.Name, nil)
	return role, nil
}

package privacy

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/rhubarb/objectset"
	"github.com/syssam/rhubarb/schema/field"
)

// Viewer represents the authenticated user making a request.
// This interface should be implemented by application-specific user types.
type Viewer interface {
	// GetID returns the viewer's unique identifier.
	GetID() string
	// GetRoles returns the viewer's roles.
	GetRoles() []string
	// GetTenantID returns the viewer's tenant identifier for multi-tenancy.
	// Returns empty string if not applicable.
	GetTenantID() string
}

// viewerCtxKey is the context key for storing the viewer.
type viewerCtxKey struct{}

// WithViewer returns a new context with the viewer attached.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext retrieves the viewer from the context.
// Returns nil if no viewer is present.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a basic implementation of the Viewer interface.
// Use this for testing or simple use cases.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

// GetID returns the user ID.
func (v *SimpleViewer) GetID() string {
	return v.UserID
}

// GetRoles returns the user's roles.
func (v *SimpleViewer) GetRoles() []string {
	return v.Roles
}

// GetTenantID returns the tenant ID.
func (v *SimpleViewer) GetTenantID() string {
	return v.TenantID
}

// DenyIfNoViewer returns a rule that denies access if no viewer is present in the context.
// This is typically used as the first rule in a policy to require authentication.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func DenyIfNoViewer() QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole returns a rule that allows access if the viewer has the specified role.
// Skips if the viewer doesn't have the role (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasRole(role string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		if slices.Contains(viewer.GetRoles(), role) {
			return Allow
		}
		return Skip
	})
}

// HasAnyRole returns a rule that allows access if the viewer has any of the specified roles.
// Skips if the viewer doesn't have any of the roles (allows next rule to evaluate).
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasAnyRole("admin", "moderator"),
//	    privacy.AlwaysDenyRule(),
//	)
func HasAnyRole(roles ...string) QueryMutationRule {
	return ContextQueryMutationRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		viewerRoles := viewer.GetRoles()
		for _, role := range roles {
			if slices.Contains(viewerRoles, role) {
				return Allow
			}
		}
		return Skip
	})
}

// IsOwner returns a mutation rule that allows commands on the rows the
// viewer owns, the rows whose field holds the viewer ID.
//
// Inserts are allowed when every inserted row is owned by the viewer.
// Updates and deletes are narrowed to the owned rows and allowed, unless
// an update gives the rows another owner. The rule skips otherwise.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.IsOwner("user_id"),
//	    privacy.AlwaysDenyRule(),
//	)
func IsOwner(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m objectset.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		values := m.Values(field)
		for _, v := range values {
			if !matches(v, viewer.GetID()) {
				return Skip
			}
		}
		if m.Op().Is(objectset.OpUpdate | objectset.OpDelete) {
			m.WhereP(equals(m.Model(), field, viewer.GetID()))
			return Allow
		}
		if len(values) == 0 {
			return Skip
		}
		return Allow
	})
}

// OwnerQueryRule returns a query rule that narrows queries to the rows
// whose field holds the viewer ID. It denies queries without viewer and
// skips otherwise, leaving the decision to the next rules.
//
// Example:
//
//	policy.Query(
//	    privacy.OwnerQueryRule("user_id"),
//	)
func OwnerQueryRule(field string) QueryRule {
	return queryRuleFunc(func(ctx context.Context, q objectset.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("privacy: viewer required for owner-filtered query")
		}
		q.WhereP(equals(q.Model(), field, viewer.GetID()))
		return Skip
	})
}

// TenantRule returns a mutation rule isolating the tenants of a
// multi-tenant table. Updates and deletes are narrowed to the rows of
// the viewer tenant. Commands writing the field are allowed when every
// value is the viewer tenant, and denied otherwise.
//
// Example:
//
//	policy.Mutation(
//	    privacy.DenyIfNoViewer(),
//	    privacy.TenantRule("tenant_id"),
//	    privacy.AlwaysDenyRule(),
//	)
func TenantRule(field string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m objectset.Mutation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		tenant := viewer.GetTenantID()
		if tenant == "" {
			return Skip
		}
		if m.Op().Is(objectset.OpUpdate | objectset.OpDelete) {
			m.WhereP(equals(m.Model(), field, tenant))
		}
		values := m.Values(field)
		if len(values) == 0 {
			return Skip
		}
		for _, v := range values {
			if !matches(v, tenant) {
				return Denyf("privacy: tenant mismatch")
			}
		}
		return Allow
	})
}

// TenantQueryRule returns a query rule narrowing queries to the rows of
// the viewer tenant. It denies queries without viewer or tenant.
//
// Example:
//
//	policy.Query(
//	    privacy.TenantQueryRule("tenant_id"),
//	)
func TenantQueryRule(field string) QueryRule {
	return queryRuleFunc(func(ctx context.Context, q objectset.Query) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Denyf("privacy: viewer required for tenant-filtered query")
		}
		if viewer.GetTenantID() == "" {
			return Denyf("privacy: tenant required")
		}
		q.WhereP(equals(q.Model(), field, viewer.GetTenantID()))
		return Skip
	})
}

// matches reports if a written value is the given identifier.
func matches(v any, id string) bool {
	switch v := v.(type) {
	case string:
		return v == id
	case []byte:
		return string(v) == id
	case int64:
		return strconv.FormatInt(v, 10) == id
	case int:
		return strconv.Itoa(v) == id
	case nil, objectset.Selector:
		return false
	default:
		return fmt.Sprint(v) == id
	}
}

// equals returns the predicate comparing the field to an identifier,
// converted to the type of the column.
func equals(m *objectset.Model, field, id string) objectset.Predicate {
	var v any = id
	if m != nil {
		if col, ok := m.Column(field); ok {
			v = typed(col.SQLType(), id)
		}
	}
	return func(s *objectset.ModelSelector) objectset.Selector {
		return objectset.EQ(s.F(field), v)
	}
}

func typed(t field.Type, id string) any {
	switch {
	case t == field.TypeUUID:
		if u, err := uuid.Parse(id); err == nil {
			return u
		}
	case strings.Contains(string(t), "INT"):
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			return n
		}
	}
	return id
}

// AllowMutationOperationRule returns a rule allowing specified mutation operation.
func AllowMutationOperationRule(op objectset.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, _ objectset.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// queryRuleFunc is a function adapter for QueryRule.
type queryRuleFunc func(context.Context, objectset.Query) error

func (f queryRuleFunc) EvalQuery(ctx context.Context, q objectset.Query) error {
	return f(ctx, q)
}

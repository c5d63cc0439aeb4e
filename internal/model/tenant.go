package model

// RoleAdmin grants cross-tenant visibility. Every other role is confined to
// its own company.
const RoleAdmin = "admin"

// TenantContext carries the verified identity claims a request operates
// under. It is passed explicitly into every core operation rather than being
// read from ambient request state, so tests can construct one directly.
type TenantContext struct {
	CompanyID string
	UserID    string
	Role      string
}

// IsAdmin reports whether the caller holds the administrative capability.
func (t TenantContext) IsAdmin() bool {
	return t.Role == RoleAdmin
}

package types

// Principal is the authenticated identity attached to a request after the
// credential middleware verifies the bearer token. It lives only for the
// duration of the request.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// User roles.
const (
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// HasRole reports whether the principal's role is one of the allowed set.
// Replaces inline []string{"admin", "superadmin"} checks scattered per route.
func (p Principal) HasRole(allowed ...string) bool {
	for _, role := range allowed {
		if p.Role == role {
			return true
		}
	}
	return false
}

package constants

const (
	Superadmin = "superadmin"
	Admin      = "admin"
	Member     = "member"
)

// ValidRoles is the set of roles the identity service may put in a session.
var ValidRoles = []string{Member, Admin, Superadmin}

// IsValidRole returns true if role is one of the allowed enum values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

package model

// Principal is the authenticated caller produced by the identity collaborator.
type Principal struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"` // user, moderator, admin
}

// HasRole reports whether the principal holds role. Admins hold every role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return p.Role == role || p.Role == "admin"
}

package domain

type Company struct {
	ID        int32  `json:"id"`
	Name      string `json:"name"`
	Region    string `json:"region"`
	Verified  bool   `json:"verified"`
	CreatedOn string `json:"created_on"`
}

// Identity is the authenticated principal behind an API request or a
// realtime connection.
type Identity struct {
	CompanyID int32    `json:"company_id"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// IsAdmin reports whether the principal carries the platform admin role.
func (i *Identity) IsAdmin() bool {
	for _, r := range i.Roles {
		if r == "ADMIN" {
			return true
		}
	}
	return false
}

package entities

// User is an operator account for the dashboard and approval endpoints.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	OrgID        string `json:"org_id"`
}

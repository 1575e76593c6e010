package models

// User is the authenticated identity carried in a bearer token. Users are
// managed by the upstream site; this service only verifies tokens it issued.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

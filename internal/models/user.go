package models

// Caller is the resolved identity of the requester, supplied by the auth
// collaborator (JWT claims). The service layer trusts this value and never
// verifies credentials itself.
type Caller struct {
	ID      string
	IsAdmin bool
}

package models

// MIdentity is the authenticated caller as reported by token introspection.
type MIdentity struct {
	Subject string   `json:"subject"`
	Roles   []string `json:"roles"`
	Active  bool     `json:"active"`
}

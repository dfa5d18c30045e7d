// Package identity carries the role taxonomy consumed by the record state
// machine and issues short-lived actor tokens for collaborators.
package identity

import "fmt"

// Role classifies an actor for transition authorization.
type Role string

const (
	// RoleAgent is the data-entry role: drafts, edits and submits records.
	RoleAgent Role = "AGENT"
	// RoleValidator is the authority role: signs and delivers records.
	RoleValidator Role = "VALIDATOR"
	// RoleAdministrator administers the registry. No record transition is
	// granted to it by default.
	RoleAdministrator Role = "ADMINISTRATOR"
	// RoleManager supervises offices. No record transition is granted to it
	// by default.
	RoleManager Role = "MANAGER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAgent, RoleValidator, RoleAdministrator, RoleManager:
		return true
	}
	return false
}

// Actor is an authenticated caller requesting a record transition.
// Resolution of the identity itself happens outside the trust core.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Validate checks that the actor is well-formed enough to be attributed.
func (a Actor) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("identity: actor ID is required")
	}
	if !a.Role.Valid() {
		return fmt.Errorf("identity: unknown role %q", a.Role)
	}
	return nil
}

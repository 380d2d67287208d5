package models

import "fmt"

// Role is the membership an invite grants on a baby
type Role string

const (
	RoleParent     Role = "parent"
	RoleSubscriber Role = "subscriber"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleSubscriber
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a stored or submitted role name into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

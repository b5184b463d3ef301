package shared

import "strings"

// Role is the operator's permission level. Higher levels include lower ones.
type Role string

const (
	RoleNormal  Role = "NORMAL"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleNormal:  1,
	RoleManager: 2,
	RoleAdmin:   3,
}

// ParseRole normalises a stored role name.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := roleRank[r]
	return r, ok
}

// AtLeast reports whether r meets the min threshold.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}

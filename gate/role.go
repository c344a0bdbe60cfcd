package gate

import "strings"

// Role classifies a staff member. It is the only input of navigation access.
type Role int

const (
	RoleNone Role = iota
	RoleMedecin
	RoleInfirmier
	RoleChef
	RoleCaissiere
)

// ParseRole normalizes a "poste" value. Matching is case-insensitive and
// ignores surrounding spaces; "infirmier" and "infirmiere" are one role.
// Anything else, including the empty string, is RoleNone.
func ParseRole(poste string) Role {
	switch strings.ToLower(strings.TrimSpace(poste)) {
	case "medecin":
		return RoleMedecin
	case "infirmier", "infirmiere":
		return RoleInfirmier
	case "chef":
		return RoleChef
	case "caissiere":
		return RoleCaissiere
	default:
		return RoleNone
	}
}

func (r Role) String() string {
	switch r {
	case RoleMedecin:
		return "medecin"
	case RoleInfirmier:
		return "infirmier"
	case RoleChef:
		return "chef"
	case RoleCaissiere:
		return "caissiere"
	default:
		return ""
	}
}

// Known reports whether r grants any access at all.
func (r Role) Known() bool { return r != RoleNone }

// Can reports whether r may see link l.
func (r Role) Can(l Link) bool { return AccessibleLinks(r).Has(l) }

// Roles lists every recognised role.
func Roles() []Role {
	return []Role{RoleMedecin, RoleInfirmier, RoleChef, RoleCaissiere}
}

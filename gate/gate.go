// Package gate decides which dashboard sections a staff role may see.
//
// The mapping is a closed table: every Role has exactly one LinkSet and an
// unknown or absent role has none. The navigation shell renders the links of
// Navigation in shell order, followed by the logout action.
package gate

// AccessibleLinks returns the links visible to role r.
func AccessibleLinks(r Role) LinkSet {
	switch r {
	case RoleMedecin:
		return NewLinkSet(LinkDashbord, LinkPatient, LinkAgenda, LinkProfil)
	case RoleInfirmier:
		return NewLinkSet(LinkDashbord, LinkPatient, LinkChambre, LinkProfil)
	case RoleChef:
		return NewLinkSet(LinkDashbord, LinkPatient, LinkAgenda, LinkCaisse, LinkMedecin, LinkChambre, LinkProfil)
	case RoleCaissiere:
		return NewLinkSet(LinkDashbord, LinkCaisse, LinkProfil)
	default:
		return 0
	}
}

// AccessibleLinksFor parses a raw "poste" value then resolves its links.
func AccessibleLinksFor(poste string) LinkSet {
	return AccessibleLinks(ParseRole(poste))
}

// Authorize returns nil when r may open l.
// Returns ErrUnknownRole for RoleNone and ErrUnauthorized when l is not
// part of the role's links.
func Authorize(r Role, l Link) error {
	if !r.Known() {
		return ErrUnknownRole
	}
	if !AccessibleLinks(r).Has(l) {
		return ErrUnauthorized
	}
	return nil
}

// LogoutPath is the route of the logout action appended to every menu.
const LogoutPath = "/logout"

// NavItem is one rendered entry of the navigation shell.
type NavItem struct {
	Link      Link
	ID        string
	Path      string
	LabelCode string
	Logout    bool
}

// Navigation lists the menu of role r: permitted links in shell order, then
// the logout action, which is always present.
func Navigation(r Role) []NavItem {
	allowed := AccessibleLinks(r)
	items := make([]NavItem, 0, len(orderedLinks)+1)
	for _, l := range orderedLinks {
		if !allowed.Has(l) {
			continue
		}
		items = append(items, NavItem{Link: l, ID: l.ID(), Path: l.Path(), LabelCode: l.LabelCode()})
	}
	return append(items, NavItem{ID: "logout", Path: LogoutPath, LabelCode: "logout", Logout: true})
}

// Landing returns the first link r may open, if any.
func Landing(r Role) (Link, bool) {
	links := AccessibleLinks(r).Slice()
	if len(links) == 0 {
		return 0, false
	}
	return links[0], true
}

package gate

import "strings"

// Link identifies a navigation destination of the dashboard shell.
type Link uint8

const (
	LinkDashbord Link = iota + 1
	LinkPatient
	LinkAgenda
	LinkCaisse
	LinkMedecin
	LinkChambre
	LinkProfil
)

// PathPrefix is the protected prefix every link lives under.
const PathPrefix = "/app/"

// orderedLinks is the fixed rendering order of the navigation shell.
var orderedLinks = [...]Link{
	LinkDashbord,
	LinkPatient,
	LinkAgenda,
	LinkCaisse,
	LinkMedecin,
	LinkChambre,
	LinkProfil,
}

// Links returns every link in shell order.
func Links() []Link {
	out := make([]Link, len(orderedLinks))
	copy(out, orderedLinks[:])
	return out
}

// ID is the stable identifier of the link ("dashbord", "caisse", ...).
func (l Link) ID() string {
	switch l {
	case LinkDashbord:
		return "dashbord"
	case LinkPatient:
		return "patient"
	case LinkAgenda:
		return "agenda"
	case LinkCaisse:
		return "caisse"
	case LinkMedecin:
		return "medecin"
	case LinkChambre:
		return "chambre"
	case LinkProfil:
		return "profil"
	default:
		return ""
	}
}

func (l Link) String() string { return l.ID() }

// Path is the protected route of the link.
func (l Link) Path() string { return PathPrefix + l.ID() }

// LabelCode is the i18n code of the link label.
func (l Link) LabelCode() string { return "nav_" + l.ID() }

// ParseLink resolves a link identifier, case-insensitively.
func ParseLink(id string) (Link, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, l := range orderedLinks {
		if l.ID() == id {
			return l, true
		}
	}
	return 0, false
}

// LinkSet is an ordered set of links.
type LinkSet uint16

// NewLinkSet builds a set from links.
func NewLinkSet(links ...Link) LinkSet {
	var s LinkSet
	for _, l := range links {
		if l.ID() == "" {
			continue
		}
		s |= 1 << l
	}
	return s
}

func (s LinkSet) Has(l Link) bool { return l.ID() != "" && s&(1<<l) != 0 }

func (s LinkSet) Empty() bool { return s == 0 }

func (s LinkSet) Len() int {
	n := 0
	for _, l := range orderedLinks {
		if s.Has(l) {
			n++
		}
	}
	return n
}

// Slice returns the members in shell order.
func (s LinkSet) Slice() []Link {
	out := make([]Link, 0, len(orderedLinks))
	for _, l := range orderedLinks {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

// IDs returns the member identifiers in shell order.
func (s LinkSet) IDs() []string {
	links := s.Slice()
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.ID()
	}
	return out
}

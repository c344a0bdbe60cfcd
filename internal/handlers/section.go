package handlers

import (
	"net/http"
	"time"

	"github.com/mboacare/dashboard/gate"
	"github.com/mboacare/dashboard/i18n"
	"github.com/mboacare/dashboard/view"
)

// SectionHandler renders the patient, agenda and profile sections and the
// sections that have no content yet.
type SectionHandler struct {
	spaces *Workspaces
	now    func() time.Time
}

func NewSectionHandler(spaces *Workspaces) *SectionHandler {
	return &SectionHandler{spaces: spaces, now: time.Now}
}

// Show returns the handler of section l.
func (h *SectionHandler) Show(l gate.Link) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := h.spaces.For(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		scope, err := Scope(r)
		if err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		data := map[string]any{"Heading": l.LabelCode()}
		ctx := r.Context()
		switch l {
		case gate.LinkPatient:
			st, err := settle(ctx, ws.Resources.Patients, scope)
			if err != nil {
				h.spaces.Unavailable(w, r, l.Path(), err)
				return
			}
			data["Patients"], data["Error"] = st.Data, st.Error
		case gate.LinkAgenda:
			st, err := settle(ctx, ws.Resources.Appointments, scope)
			if err != nil {
				h.spaces.Unavailable(w, r, l.Path(), err)
				return
			}
			data["Appointments"], data["Error"] = st.Data, st.Error
		case gate.LinkProfil:
			st := ws.Resources.Doctor.Snapshot()
			if st.Fresh(scope) {
				data["Doctor"] = st.Data
			}
			if ttl := sessionTTL(scope.Token, h.now()); ttl > 0 {
				data["SessionTTL"] = ttl.Round(time.Minute).String()
			}
		}
		data = h.spaces.page(r, ws, l.ID(), view.Title(i18n.T(i18n.LangFrom(ctx), l.LabelCode())), data)
		if role, ok := data["Role"].(gate.Role); ok {
			data["CanCaisse"] = role.Can(gate.LinkCaisse)
		}
		h.spaces.render(w, r, http.StatusOK, "section.html", data)
	}
}

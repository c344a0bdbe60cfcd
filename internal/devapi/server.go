package devapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mboacare/dashboard/httpx"
	"github.com/mboacare/dashboard/internal/models"
	"github.com/mboacare/dashboard/validation"
)

type callerKey struct{}

// Server exposes the Store over the REST endpoints of the remote API.
type Server struct {
	store  *Store
	tokens *Tokens
	log    zerolog.Logger
	mux    *http.ServeMux

	mu    sync.Mutex
	fails map[string]int // "METHOD /path" -> status of the next answer
}

// NewServer wires the routes.
func NewServer(store *Store, tokens *Tokens, log zerolog.Logger) *Server {
	s := &Server{store: store, tokens: tokens, log: log, mux: http.NewServeMux(), fails: map[string]int{}}
	s.mux.HandleFunc("POST /auth/login", s.login)
	s.mux.Handle("GET /medecins/{id}", s.authed(s.self(s.doctor)))
	s.mux.Handle("GET /patients/medecin/{id}", s.authed(s.self(s.patients)))
	s.mux.Handle("GET /consultations/medecin/{id}", s.authed(s.self(s.consultations)))
	s.mux.Handle("GET /rendez-vous/medecin/{id}/today", s.authed(s.self(s.appointments)))
	s.mux.Handle("GET /caisses/patient/{patientId}", s.authed(http.HandlerFunc(s.invoices)))
	s.mux.Handle("POST /caisses", s.authed(s.cashier(s.createInvoice)))
	s.mux.Handle("PUT /caisses/{id}", s.authed(s.cashier(s.updateInvoice)))
	s.mux.Handle("DELETE /caisses/{id}", s.authed(s.cashier(s.deleteInvoice)))
	return s
}

// Fail makes the next request to "METHOD /path" answer status.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	s.fails[method+" "+path] = status
	s.mu.Unlock()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	s.mu.Lock()
	status, ok := s.fails[key]
	delete(s.fails, key)
	s.mu.Unlock()
	if ok {
		httpx.JSON(w, status, map[string]any{"error": map[string]string{"message": http.StatusText(status)}})
		return
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) authed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httpx.BearerToken(r)
		if !ok {
			httpx.JSON(w, http.StatusUnauthorized, map[string]string{"msg": "jeton manquant"})
			return
		}
		id, err := s.tokens.Verify(token)
		if err != nil {
			httpx.JSON(w, http.StatusUnauthorized, map[string]string{"msg": err.Error()})
			return
		}
		st, err := s.store.Staff(r.Context(), id)
		if err != nil {
			httpx.JSON(w, http.StatusUnauthorized, map[string]string{"msg": "utilisateur inconnu"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, st)))
	})
}

func callerOf(r *http.Request) Staff {
	st, _ := r.Context().Value(callerKey{}).(Staff)
	return st
}

// self restricts per-user endpoints to the user themselves.
func (s *Server) self(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerOf(r).Profile.ID != r.PathValue("id") {
			httpx.JSON(w, http.StatusForbidden, map[string]string{"message": "accès refusé"})
			return
		}
		next(w, r)
	})
}

// cashier restricts invoice writes to the roles that hold the till.
func (s *Server) cashier(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch callerOf(r).Profile.Poste {
		case "chef", "caissiere":
			next(w, r)
		default:
			httpx.JSON(w, http.StatusForbidden, map[string]string{"message": "accès refusé"})
		}
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"message": "requête invalide"})
		return
	}
	st, err := s.store.Authenticate(r.Context(), strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.fail(w, err)
			return
		}
		httpx.JSON(w, http.StatusUnauthorized, map[string]string{"message": "Email ou mot de passe incorrect"})
		return
	}
	token, err := s.tokens.Issue(st.Profile.ID)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"access_token": token, "id": st.Profile.ID})
}

func (s *Server) doctor(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, callerOf(r).Profile)
}

func (s *Server) patients(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Patients(r.Context(), r.PathValue("id"))
	s.list(w, out, err)
}

func (s *Server) consultations(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Consultations(r.Context(), r.PathValue("id"))
	s.list(w, out, err)
}

func (s *Server) appointments(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.TodayAppointments(r.Context(), r.PathValue("id"))
	s.list(w, out, err)
}

func (s *Server) invoices(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.Invoices(r.Context(), r.PathValue("patientId"))
	s.list(w, out, err)
}

func (s *Server) list(w http.ResponseWriter, out any, err error) {
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// decodeInvoice validates a write body. Field problems are answered as a
// list of messages.
func (s *Server) decodeInvoice(w http.ResponseWriter, r *http.Request) (models.InvoiceInput, bool) {
	var in models.InvoiceInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSON(w, http.StatusBadRequest, map[string]string{"message": "requête invalide"})
		return in, false
	}
	v := make(validation.Violations)
	validation.MinLength("libelle", in.Libelle, 2, v)
	if !in.Type.Valid() {
		v["type"] = "invalid_choice"
	}
	validation.PositiveFloat("montant", in.Montant, v)
	validation.Required("patientId", in.PatientID, v)
	if v.Empty() {
		ok, err := s.store.patientExists(r.Context(), in.PatientID)
		if err != nil {
			s.fail(w, err)
			return in, false
		}
		if !ok {
			v["patientId"] = "not_found"
		}
	}
	if !v.Empty() {
		msgs := make([]string, 0, len(v))
		for _, f := range []string{"libelle", "type", "montant", "patientId"} {
			if code, ok := v[f]; ok {
				msgs = append(msgs, f+" "+code)
			}
		}
		httpx.JSON(w, http.StatusBadRequest, map[string]any{"message": msgs})
		return in, false
	}
	return in, true
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInvoice(w, r)
	if !ok {
		return
	}
	inv, err := s.store.CreateInvoice(r.Context(), in)
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (s *Server) updateInvoice(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInvoice(w, r)
	if !ok {
		return
	}
	inv, err := s.store.UpdateInvoice(r.Context(), r.PathValue("id"), in)
	if errors.Is(err, ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, map[string]string{"error": "Facture introuvable"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (s *Server) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteInvoice(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		httpx.JSON(w, http.StatusNotFound, map[string]string{"error": "Facture introuvable"})
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"msg": "Facture supprimée"})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Error().Err(err).Msg("devapi")
	httpx.JSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]string{"message": "erreur interne"}})
}

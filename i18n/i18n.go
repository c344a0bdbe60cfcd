// Package i18n holds the fr/en message catalog used by views, validation
// errors and remote-error phrases.
package i18n

import (
	"context"
	"strconv"
	"strings"
)

const DefaultLang = "fr"

type ctxKey struct{}

var catalog = map[string]map[string]string{
	"fr": {
		"required":          "Requis",
		"too_short":         "Trop court",
		"must_be_positive":  "Doit être un nombre positif",
		"not_a_number":      "Doit être un nombre",
		"invalid_choice":    "Choix invalide",
		"invalid_email":     "Adresse e-mail invalide",
		"login_failed":      "Connexion impossible",
		"login_title":       "Connexion",
		"logout":            "Déconnexion",
		"welcome":           "Bienvenue",
		"loading":           "Chargement…",
		"no_patient":        "Aucun patient sélectionné",
		"forbidden":         "Accès refusé",
		"network_error":     "Impossible de joindre le serveur. Vérifiez votre connexion.",
		"http_unknown":      "Une erreur inattendue est survenue",
		"http_400":          "Requête invalide",
		"http_401":          "Session expirée, veuillez vous reconnecter",
		"http_403":          "Accès refusé",
		"http_404":          "Ressource introuvable",
		"http_409":          "Conflit avec l'état actuel de la ressource",
		"http_422":          "Données invalides",
		"http_429":          "Trop de requêtes, réessayez plus tard",
		"http_500":          "Erreur interne du serveur",
		"http_502":          "Passerelle invalide",
		"http_503":          "Service indisponible",
		"http_504":          "Le serveur n'a pas répondu à temps",
		"invoice_created":   "Facture créée",
		"invoice_updated":   "Facture modifiée",
		"invoice_deleted":   "Facture supprimée",
		"invoice_unchanged": "Aucune modification à enregistrer",
		"invoice_failed":    "L'opération sur la facture a échoué",
		"delete_warning":    "Cette action est irréversible.",
		"print_blocked":     "Impression impossible : la fenêtre d'impression a été bloquée",
		"retry":             "Réessayer",
		"nav_dashbord":      "Tableau de bord",
		"nav_patient":       "Patients",
		"nav_agenda":        "Agenda",
		"nav_caisse":        "Caisse",
		"nav_medecin":       "Médecins",
		"nav_chambre":       "Chambres",
		"nav_profil":        "Profil",

		"today_appointments": "Rendez-vous du jour",
		"consultations":      "Consultations",
		"recent_patients":    "Patients récents",
		"empty":              "Aucun élément",
		"coming_soon":        "Section en préparation",
		"invoice_new":        "Nouvelle facture",
		"confirm_delete":     "Supprimer",
		"cancel":             "Annuler",
		"receipt":            "Reçu",
		"session_expires_in": "Session valable encore",
		"invoice_not_found":  "Facture introuvable",
		"operation_busy":     "Opération déjà en cours",
		"patient_unknown":    "Patient introuvable",
		"patient_mismatch":   "La facture ne correspond pas au patient sélectionné",
		"section_denied":     "Cette section n'est pas ouverte à votre rôle",
		"role_unresolved":    "Votre rôle n'a pas pu être déterminé",

		"type_hospitalisation": "Hospitalisation",
		"type_consultation":    "Consultation",
		"type_medicaments":     "Médicaments",
		"type_examens":         "Examens",
		"type_soins":           "Soins",
		"type_autres":          "Autres",
	},
	"en": {
		"required":          "Required",
		"too_short":         "Too short",
		"must_be_positive":  "Must be a positive number",
		"not_a_number":      "Must be a number",
		"invalid_choice":    "Invalid choice",
		"invalid_email":     "Invalid e-mail address",
		"login_failed":      "Unable to sign in",
		"login_title":       "Sign in",
		"logout":            "Sign out",
		"welcome":           "Welcome",
		"loading":           "Loading…",
		"no_patient":        "No patient selected",
		"forbidden":         "Access denied",
		"network_error":     "Cannot reach the server. Check your connection.",
		"http_unknown":      "An unexpected error occurred",
		"http_400":          "Bad request",
		"http_401":          "Session expired, please sign in again",
		"http_403":          "Access denied",
		"http_404":          "Resource not found",
		"http_409":          "Conflict with the current resource state",
		"http_422":          "Invalid data",
		"http_429":          "Too many requests, try again later",
		"http_500":          "Internal server error",
		"http_502":          "Bad gateway",
		"http_503":          "Service unavailable",
		"http_504":          "The server did not answer in time",
		"invoice_created":   "Invoice created",
		"invoice_updated":   "Invoice updated",
		"invoice_deleted":   "Invoice deleted",
		"invoice_unchanged": "Nothing to save",
		"invoice_failed":    "The invoice operation failed",
		"delete_warning":    "This action cannot be undone.",
		"print_blocked":     "Printing failed: the print window was blocked",
		"retry":             "Retry",
		"nav_dashbord":      "Dashboard",
		"nav_patient":       "Patients",
		"nav_agenda":        "Schedule",
		"nav_caisse":        "Billing",
		"nav_medecin":       "Doctors",
		"nav_chambre":       "Rooms",
		"nav_profil":        "Profile",

		"today_appointments": "Today's appointments",
		"consultations":      "Consultations",
		"recent_patients":    "Recent patients",
		"empty":              "Nothing here yet",
		"coming_soon":        "Section coming soon",
		"invoice_new":        "New invoice",
		"confirm_delete":     "Delete",
		"cancel":             "Cancel",
		"receipt":            "Receipt",
		"session_expires_in": "Session valid for",
		"invoice_not_found":  "Invoice not found",
		"operation_busy":     "Operation already in progress",
		"patient_unknown":    "Patient not found",
		"patient_mismatch":   "The invoice does not match the selected patient",
		"section_denied":     "This section is not open to your role",
		"role_unresolved":    "Your role could not be determined",

		"type_hospitalisation": "Hospitalisation",
		"type_consultation":    "Consultation",
		"type_medicaments":     "Medicines",
		"type_examens":         "Examinations",
		"type_soins":           "Care",
		"type_autres":          "Other",
	},
}

// T translates code for lang. Unknown languages fall back to French, unknown
// codes are returned as-is.
func T(lang, code string) string {
	if m, ok := catalog[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := catalog[DefaultLang][code]; ok {
		return s
	}
	return code
}

// Has reports whether code has a translation in the default catalog.
func Has(code string) bool {
	_, ok := catalog[DefaultLang][code]
	return ok
}

// StatusPhrase returns the phrase for an HTTP status, or the generic one.
func StatusPhrase(lang string, status int) string {
	code := "http_" + strconv.Itoa(status)
	if Has(code) {
		return T(lang, code)
	}
	return T(lang, "http_unknown")
}

// DetectLanguage picks "en" when the Accept-Language header leads with
// English, otherwise the French default.
func DetectLanguage(acceptLanguage string) string {
	first := strings.TrimSpace(strings.Split(acceptLanguage, ",")[0])
	first = strings.ToLower(strings.SplitN(first, ";", 2)[0])
	if strings.HasPrefix(first, "en") {
		return "en"
	}
	return DefaultLang
}

// Supported reports whether lang has a catalog.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// Langs lists the supported languages, default first.
func Langs() []string { return []string{DefaultLang, "en"} }

func WithLang(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKey{}, lang)
}

// LangFrom returns the request language stored by WithLang.
func LangFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultLang
}

package statusapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes serves the session's read-only status. t may be nil when no
// tournament is followed.
func SetupRoutes(s Session, t Tournaments) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/state", State(s))
	if t != nil {
		r.Get("/tournaments", ListTournaments(t))
		r.Get("/tournaments/{id}", GetTournament(t))
	}
	return r
}

package statusapi

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/DoyleJ11/pong-client/internal/channel"
	"github.com/DoyleJ11/pong-client/internal/match"
	"github.com/DoyleJ11/pong-client/internal/protocol"
	"github.com/DoyleJ11/pong-client/internal/render"
)

// Session is the running game session; *client.Client in production.
type Session interface {
	ChannelState() channel.State
	View() *match.View
	RenderStats() render.Stats
}

// Tournaments are the brackets being followed; *tournament.Hub in production.
type Tournaments interface {
	List() []string
	Bracket(id string) (*protocol.Bracket, bool)
}

type stateResponse struct {
	Channel  string          `json:"channel"`
	Phase    match.Phase     `json:"phase"`
	User     string          `json:"user,omitempty"`
	Role     match.Role      `json:"role,omitempty"`
	MatchID  protocol.ID     `json:"match_id,omitempty"`
	Status   protocol.Status `json:"status,omitempty"`
	Score    *protocol.Score `json:"score,omitempty"`
	WinnerID protocol.ID     `json:"winner_id,omitempty"`
	Frames   uint64          `json:"frames"`
	Skipped  uint64          `json:"skipped_frames"`
}

func State(s Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := stateResponse{Channel: s.ChannelState().String()}
		if v := s.View(); v != nil {
			resp.Phase = v.Phase
			resp.User = v.Identity.Username
			resp.Role = v.Role
			resp.MatchID = v.MatchID
			resp.WinnerID = v.WinnerID
			if v.Snapshot != nil {
				score := v.Snapshot.Score
				resp.Score = &score
				resp.Status = v.Snapshot.Status
			}
		}
		st := s.RenderStats()
		resp.Frames, resp.Skipped = st.Frames, st.Skipped
		writeJSON(w, http.StatusOK, resp)
	}
}

func ListTournaments(t Tournaments) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := t.List()
		if ids == nil {
			ids = []string{}
		}
		slices.Sort(ids)
		writeJSON(w, http.StatusOK, struct {
			Tournaments []string `json:"tournaments"`
		}{ids})
	}
}

func GetTournament(t Tournaments) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b, ok := t.Bracket(id)
		if !ok {
			http.Error(w, "tournament not watched", http.StatusNotFound)
			return
		}
		if b == nil {
			// watched, nothing received yet
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

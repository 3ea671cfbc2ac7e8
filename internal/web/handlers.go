package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// SessionResponse is the JSON form of a Session
type SessionResponse struct {
	ID          string  `json:"id"`
	TrackID     string  `json:"track_id,omitempty"`
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	Path        string  `json:"path,omitempty"`
	State       State   `json:"state"`
	StopReason  string  `json:"stop_reason,omitempty"`
	Error       string  `json:"error,omitempty"`
	PositionSec float64 `json:"position_sec"`
	DurationSec float64 `json:"duration_sec"`
	ExpectedSec float64 `json:"expected_sec,omitempty"`
	RecordedSec float64 `json:"recorded_sec,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	FinishedAt  *string `json:"finished_at,omitempty"`
}

// SummaryResponse counts sessions per state
type SummaryResponse struct {
	Total  int           `json:"total"`
	States map[State]int `json:"states"`
}

// LogResponse is the JSON form of a LogLine
type LogResponse struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	lines := s.sessions.Logs()
	responses := make([]LogResponse, len(lines))
	for i, l := range lines {
		responses[i] = LogResponse{
			Time:    l.Time.Format(time.DateTime),
			Level:   l.Level,
			Message: l.Message,
		}
	}
	writeJSON(w, responses)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := s.sessions.List()
	responses := make([]*SessionResponse, len(sessions))
	for i, session := range sessions {
		responses[i] = toResponse(session)
	}
	writeJSON(w, responses)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// /api/sessions/{id}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "Session ID required", http.StatusBadRequest)
		return
	}

	session, err := s.sessions.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, toResponse(session))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	counts := s.sessions.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, SummaryResponse{Total: total, States: counts})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func toResponse(session Session) *SessionResponse {
	resp := &SessionResponse{
		ID:          session.ID,
		TrackID:     session.TrackID,
		Title:       session.Title,
		Artist:      session.Artist,
		Album:       session.Album,
		Path:        session.Path,
		State:       session.State,
		StopReason:  session.StopReason,
		Error:       session.Error,
		PositionSec: session.Position.Seconds(),
		DurationSec: session.Duration.Seconds(),
		ExpectedSec: session.Expected.Seconds(),
		RecordedSec: session.Recorded.Seconds(),
		CreatedAt:   session.CreatedAt.Format(time.DateTime),
		UpdatedAt:   session.UpdatedAt.Format(time.DateTime),
	}

	if session.FinishedAt != nil {
		finished := session.FinishedAt.Format(time.DateTime)
		resp.FinishedAt = &finished
	}

	return resp
}

package web

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aurora/internal/finalize"
	"aurora/internal/metadata"
	"aurora/internal/recorder"
)

// State is where a capture session is in its lifecycle
type State string

const (
	StateArmed      State = "armed"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateSaved      State = "saved"
	StateDiscarded  State = "discarded"
	StateFailed     State = "failed"
	StateSkipped    State = "skipped"
)

// Finished reports whether no further updates are expected.
func (s State) Finished() bool {
	switch s {
	case StateSaved, StateDiscarded, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Session is one capture as seen by the monitor
type Session struct {
	ID         string
	TrackID    string
	Title      string
	Artist     string
	Album      string
	Path       string
	State      State
	StopReason string
	Error      string
	Position   time.Duration
	Duration   time.Duration
	Expected   time.Duration
	Recorded   time.Duration
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// LogLine is one mirrored log message
type LogLine struct {
	Time    time.Time
	Level   string
	Message string
}

// SessionManager keeps the sessions of the current run
type SessionManager struct {
	sessions  map[string]*Session
	logs      []LogLine
	mu        sync.RWMutex
	listeners []chan Session
	now       func() time.Time
}

const (
	sessionRetention = 1 * time.Hour
	maxLogLines      = 200
)

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// StartCleanup starts a background goroutine that forgets old finished
// sessions. Stops when ctx is cancelled.
func (sm *SessionManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.cleanup()
			}
		}
	}()
}

func (sm *SessionManager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().Add(-sessionRetention)
	for id, s := range sm.sessions {
		if s.FinishedAt != nil && s.FinishedAt.Before(cutoff) {
			delete(sm.sessions, id)
		}
	}
}

// Update creates or changes a session and notifies subscribers
func (sm *SessionManager) Update(id string, fn func(*Session)) Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	s, ok := sm.sessions[id]
	if !ok {
		s = &Session{ID: id, State: StateArmed, CreatedAt: now}
		sm.sessions[id] = s
	}

	old := s.State
	fn(s)
	s.UpdatedAt = now
	if s.State != old && s.State.Finished() && s.FinishedAt == nil {
		s.FinishedAt = &now
	}

	sm.notify(*s)
	return *s
}

// Get returns a copy of one session
func (sm *SessionManager) Get(id string) (Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	s, ok := sm.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session not found: %s", id)
	}
	return *s, nil
}

// List returns all sessions, oldest first
func (sm *SessionManager) List() []Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of sessions per state
func (sm *SessionManager) Counts() map[State]int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	counts := make(map[State]int)
	for _, s := range sm.sessions {
		counts[s.State]++
	}
	return counts
}

// AddLog keeps msg in a bounded buffer of recent log lines. It matches
// logger.Hook.
func (sm *SessionManager) AddLog(level, msg string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.logs = append(sm.logs, LogLine{Time: sm.now(), Level: level, Message: msg})
	if over := len(sm.logs) - maxLogLines; over > 0 {
		sm.logs = append(sm.logs[:0], sm.logs[over:]...)
	}
}

// Logs returns the recent log lines, oldest first
func (sm *SessionManager) Logs() []LogLine {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	out := make([]LogLine, len(sm.logs))
	copy(out, sm.logs)
	return out
}

// Subscribe returns a channel receiving every session update
func (sm *SessionManager) Subscribe() <-chan Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Session, 32)
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener
func (sm *SessionManager) Unsubscribe(ch <-chan Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notify sends an update to all listeners; slow listeners miss updates
func (sm *SessionManager) notify(s Session) {
	for _, ch := range sm.listeners {
		select {
		case ch <- s:
		default:
		}
	}
}

// RecorderHooks feeds recorder events into the manager.
func (sm *SessionManager) RecorderHooks() recorder.Hooks {
	return recorder.Hooks{
		OnSkipped: func(_ int, track metadata.TrackInfo, path string) {
			sm.Update(uuid.NewString(), func(s *Session) {
				setTrack(s, track)
				s.Path = path
				s.State = StateSkipped
			})
		},
		OnArmed: func(session string, track metadata.TrackInfo) {
			if track.ID == "" {
				sm.forgetIdle()
			}
			sm.Update(session, func(s *Session) {
				setTrack(s, track)
				s.State = StateArmed
			})
		},
		OnRecording: func(session string, track metadata.TrackInfo, path string, expected time.Duration) {
			sm.Update(session, func(s *Session) {
				setTrack(s, track)
				s.Path = path
				s.Expected = expected
				s.State = StateRecording
			})
		},
		OnProgress: func(session string, position, duration time.Duration) {
			sm.Update(session, func(s *Session) {
				s.Position = position
				if duration > 0 {
					s.Duration = duration
				}
			})
		},
		OnStopped: func(session string, _ metadata.TrackInfo, reason string) {
			sm.Update(session, func(s *Session) {
				s.StopReason = reason
				s.State = StateFinalizing
			})
		},
		OnFailed: func(session string, track metadata.TrackInfo, err error) {
			sm.Update(session, func(s *Session) {
				setTrack(s, track)
				s.Error = err.Error()
				s.State = StateFailed
			})
		},
	}
}

// FinalizeStarted marks a capture as picked up by the finalizer.
func (sm *SessionManager) FinalizeStarted(t finalize.Task) {
	if t.SessionID == "" {
		return
	}
	sm.Update(t.SessionID, func(s *Session) {
		s.Path = t.FinalPath
		s.StopReason = t.StopReason
		s.State = StateFinalizing
	})
}

// FinalizeResult records the outcome of a finalized capture.
func (sm *SessionManager) FinalizeResult(res finalize.Result) {
	if res.Task.SessionID == "" {
		return
	}
	sm.Update(res.Task.SessionID, func(s *Session) {
		s.Path = res.Path
		s.Recorded = res.Recorded
		switch res.Outcome {
		case finalize.Saved:
			s.State = StateSaved
		case finalize.Discarded:
			s.State = StateDiscarded
			s.Error = res.Reason
		default:
			s.State = StateFailed
			s.Error = res.Reason
		}
	})
}

// forgetIdle drops standby sessions that were never assigned a track. Only
// one standby capture is armed at a time, so a new one replaces the rest.
func (sm *SessionManager) forgetIdle() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, s := range sm.sessions {
		if s.State == StateArmed && s.TrackID == "" {
			delete(sm.sessions, id)
		}
	}
}

func setTrack(s *Session, track metadata.TrackInfo) {
	if track.ID == "" && track.Title == "" {
		return
	}
	d := track.WithDefaults()
	s.TrackID = track.ID
	s.Title = d.Title
	s.Artist = d.Artist
	s.Album = d.Album
	if track.Duration > 0 {
		s.Duration = track.Duration
	}
}

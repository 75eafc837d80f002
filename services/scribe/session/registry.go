package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/xilidan/roboscribe/services/scribe/entity"
)

var (
	ErrAlreadyActive = errors.New("session already has an active recording")
	ErrNotActive     = errors.New("session has no active recording")
)

// Registry holds at most one active recording per session id. Nothing is persisted:
// a restart drops every in-progress recording along with its voice connection.
type Registry struct {
	mu         sync.Mutex
	recordings map[string]*entity.SessionRecord
	log        *slog.Logger
}

func New(log *slog.Logger) *Registry {
	return &Registry{
		recordings: make(map[string]*entity.SessionRecord),
		log:        log,
	}
}

// Begin registers rec under sessionID. An existing record is left untouched.
func (r *Registry) Begin(sessionID string, rec *entity.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.recordings[sessionID]; exists {
		r.log.Warn("recording already active", slog.String("session_id", sessionID))
		return ErrAlreadyActive
	}

	r.recordings[sessionID] = rec
	r.log.Debug("recording registered",
		slog.String("session_id", sessionID),
		slog.Int("active_recordings", len(r.recordings)))
	return nil
}

// End removes and returns the record for sessionID.
func (r *Registry) End(sessionID string) (*entity.SessionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.recordings[sessionID]
	if !exists {
		r.log.Warn("no active recording", slog.String("session_id", sessionID))
		return nil, ErrNotActive
	}

	delete(r.recordings, sessionID)
	r.log.Debug("recording removed",
		slog.String("session_id", sessionID),
		slog.Int("active_recordings", len(r.recordings)))
	return rec, nil
}

func (r *Registry) Active(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.recordings[sessionID]
	return exists
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.recordings)
}

// Drain removes and returns every active record.
func (r *Registry) Drain() []*entity.SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := make([]*entity.SessionRecord, 0, len(r.recordings))
	for id, rec := range r.recordings {
		recs = append(recs, rec)
		delete(r.recordings, id)
	}
	return recs
}

package session

import (
	"sync"
	"time"

	"meal2list/internal/core/acquire"
	"meal2list/internal/core/review"
	"meal2list/internal/pkg/common"
)

// Generation status values
const (
	StatusIdle       = "idle"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// State a read-only snapshot of a session for API responses
type State struct {
	ID               string        `json:"id"`
	SelectedSource   string        `json:"selected_source,omitempty"`
	ContentReady     bool          `json:"content_ready"`
	GenerationStatus string        `json:"generation_status"`
	GenerationError  string        `json:"generation_error,omitempty"`
	GenerationID     string        `json:"generation_id,omitempty"`
	RecipeName       string        `json:"recipe_name,omitempty"`
	Items            []review.Item `json:"items"`
}

// Session one user's list-generation workflow. At most one content
// source is selected at a time; selecting a source discards whatever
// the previously selected source had produced.
type Session struct {
	ID     string
	UserID string

	mu         sync.Mutex
	createdAt  time.Time
	lastAccess time.Time

	selectedSource acquire.SourceType
	contentReady   bool
	recipeText     string

	status       string
	statusErr    error
	generationID string
	recipeName   string
	items        []review.Item
}

func newSession(userID string) *Session {
	now := time.Now()
	return &Session{
		ID:         common.GenerateUUID(),
		UserID:     userID,
		createdAt:  now,
		lastAccess: now,
		status:     StatusIdle,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

func (s *Session) expired(ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastAccess) > ttl
}

// SelectSource switches the active content source. Content, review
// items and generation state from the previous source are discarded
// so stale input can never feed a later generation.
func (s *Session) SelectSource(src acquire.SourceType) error {
	if !src.Valid() {
		return common.NewValidationError("unknown content source")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusGenerating {
		return common.ErrConflict.WithMessage("generation is in progress")
	}

	s.selectedSource = src
	s.contentReady = false
	s.recipeText = ""
	s.resetGenerationLocked()
	return nil
}

// SetContent reports canonical recipe text for the selected source.
// Content from a source that is not currently selected is rejected.
func (s *Session) SetContent(src acquire.SourceType, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedSource == "" {
		return common.NewValidationError("no content source selected")
	}
	if s.selectedSource != src {
		return common.ErrConflict.WithMessage("content source is no longer selected")
	}
	if s.status == StatusGenerating {
		return common.ErrConflict.WithMessage("generation is in progress")
	}

	s.recipeText = text
	s.contentReady = text != ""
	s.resetGenerationLocked()
	return nil
}

// CanGenerate reports whether the session holds generatable content
func (s *Session) CanGenerate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentReady && s.status != StatusGenerating
}

// BeginGeneration moves the session into the generating state and
// returns the canonical text to generate from. A second generation
// request while one is running is a conflict, not a second run.
func (s *Session) BeginGeneration() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.contentReady {
		return "", common.NewValidationError("no recipe content to generate from")
	}
	if s.status == StatusGenerating {
		return "", common.ErrConflict.WithMessage("generation is already in progress")
	}

	s.status = StatusGenerating
	s.statusErr = nil
	return s.recipeText, nil
}

// CompleteGeneration adopts a generation result into the session
func (s *Session) CompleteGeneration(generationID, recipeName string, items []review.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusCompleted
	s.statusErr = nil
	s.generationID = generationID
	s.recipeName = recipeName
	s.items = items
}

// FailGeneration records a failed run; the previous review snapshot,
// if any, is discarded
func (s *Session) FailGeneration(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.statusErr = err
	s.generationID = ""
	s.recipeName = ""
	s.items = nil
}

// Items returns the current review snapshot
func (s *Session) Items() []review.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items
}

// SetItems replaces the review snapshot. Used by review operations,
// which compute the next snapshot outside the session lock.
func (s *Session) SetItems(items []review.Item) {
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// GenerationID returns the id of the adopted generation run
func (s *Session) GenerationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generationID
}

// FinishCommit clears the review state after a successful commit so
// the session is ready for the next recipe
func (s *Session) FinishCommit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedSource = ""
	s.contentReady = false
	s.recipeText = ""
	s.resetGenerationLocked()
}

// Snapshot builds the API view of the session
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := State{
		ID:               s.ID,
		SelectedSource:   string(s.selectedSource),
		ContentReady:     s.contentReady,
		GenerationStatus: s.status,
		GenerationID:     s.generationID,
		RecipeName:       s.recipeName,
		Items:            s.items,
	}
	if s.statusErr != nil {
		state.GenerationError = s.statusErr.Error()
	}
	if state.Items == nil {
		state.Items = []review.Item{}
	}
	return state
}

func (s *Session) resetGenerationLocked() {
	s.status = StatusIdle
	s.statusErr = nil
	s.generationID = ""
	s.recipeName = ""
	s.items = nil
}

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// Generator produces device profiles for new and refreshed sessions
type Generator interface {
	Generate(ctx context.Context, strategy string) (types.DeviceProfile, error)
}

// CloseOutcome distinguishes a real close-all from one on an empty store
type CloseOutcome int

const (
	ClosedAll CloseOutcome = iota
	NothingToClose
)

// Store holds the ordered session list
type Store struct {
	mu        sync.RWMutex
	sessions  []types.Session // Protected by mu
	ids       *idSource
	generator Generator
	metrics   *monitoring.Metrics
}

// NewStore creates an empty store
func NewStore(generator Generator) *Store {
	return &Store{
		ids:       newIDSource(time.Now),
		generator: generator,
	}
}

// WithMetrics adds metrics tracking to the store
func (s *Store) WithMetrics(metrics *monitoring.Metrics) *Store {
	s.metrics = metrics
	return s
}

// WithClock replaces the clock backing session ids
func (s *Store) WithClock(now func() time.Time) *Store {
	s.ids = newIDSource(now)
	return s
}

// Len returns the number of sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Get returns a copy of the session at index
func (s *Store) Get(index int) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.sessions) {
		return types.Session{}, false
	}
	return s.sessions[index].Clone(), true
}

// Snapshot returns a deep copy of all sessions in order
func (s *Store) Snapshot() []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CloneSessions(s.sessions)
}

// Observe keeps future ids above id
func (s *Store) Observe(id int64) {
	s.ids.Observe(id)
}

// Replace swaps the whole collection (load and import). Ids in the new
// collection are observed so freshly created sessions never collide with them.
func (s *Store) Replace(sessions []types.Session) {
	next := types.CloneSessions(sessions)
	for _, sess := range next {
		s.ids.Observe(sess.ID)
	}

	s.mu.Lock()
	s.sessions = next
	count := len(s.sessions)
	s.mu.Unlock()

	s.recordCount(count)
}

// Create appends a new session with the given profile
func (s *Store) Create(ctx context.Context, profile types.DeviceProfile, defaultURL string) (types.Session, error) {
	if err := ctx.Err(); err != nil {
		return types.Session{}, err
	}

	sess := types.Session{
		ID:            s.ids.Next(),
		DeviceProfile: profile,
		URL:           defaultURL,
	}

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	count := len(s.sessions)
	s.mu.Unlock()

	s.recordCount(count)
	return sess.Clone(), nil
}

// Close removes the session at index. The caller always knows the list
// length, so an out-of-range index is a programming error and panics.
func (s *Store) Close(index int) types.Session {
	s.mu.Lock()
	if index < 0 || index >= len(s.sessions) {
		n := len(s.sessions)
		s.mu.Unlock()
		panic(fmt.Sprintf("session: close index %d out of range [0,%d)", index, n))
	}
	removed := s.sessions[index]
	s.sessions = append(s.sessions[:index:index], s.sessions[index+1:]...)
	count := len(s.sessions)
	s.mu.Unlock()

	s.recordCount(count)
	return removed
}

// CloseAll empties the store and reports how many sessions were closed
func (s *Store) CloseAll() (CloseOutcome, int) {
	s.mu.Lock()
	n := len(s.sessions)
	s.sessions = nil
	s.mu.Unlock()

	s.recordCount(0)
	if n == 0 {
		return NothingToClose, 0
	}
	return ClosedAll, n
}

// Navigate validates input and points the session at it. On failure the
// previous url is kept and the session error describes the problem.
func (s *Store) Navigate(index int, input string) error {
	s.mu.Lock()
	if err := s.checkIndex("session.navigate", index); err != nil {
		s.mu.Unlock()
		return err
	}
	id := s.sessions[index].ID
	s.sessions[index].IsLoading = true
	s.sessions[index].Error = nil
	s.mu.Unlock()

	normalized, navErr := NormalizeURL(input)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return apperr.NotFound("session.navigate", "window was closed during navigation")
	}
	sess := &s.sessions[i]
	sess.IsLoading = false
	if navErr != nil {
		msg := apperr.Message(navErr)
		sess.Error = &msg
		s.recordNavigation("invalid")
		return navErr
	}
	sess.URL = normalized
	sess.Error = nil
	s.recordNavigation("success")
	return nil
}

// NavigateAll points every session at the same url, or none when the url is
// invalid. It returns the normalized url.
func (s *Store) NavigateAll(input string) (string, error) {
	normalized, err := NormalizeURL(input)
	if err != nil {
		s.recordNavigation("invalid")
		return "", err
	}

	s.mu.Lock()
	for i := range s.sessions {
		s.sessions[i].URL = normalized
		s.sessions[i].Error = nil
	}
	s.mu.Unlock()

	s.recordNavigation("success")
	return normalized, nil
}

// RefreshFingerprint regenerates the device profile of one session in place.
// Id, url and position do not change.
func (s *Store) RefreshFingerprint(ctx context.Context, index int, strategy string) (types.Session, error) {
	s.mu.RLock()
	if err := s.checkIndex("session.refresh", index); err != nil {
		s.mu.RUnlock()
		return types.Session{}, err
	}
	id := s.sessions[index].ID
	s.mu.RUnlock()

	profile, err := s.generator.Generate(ctx, strategy)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to generate profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return types.Session{}, apperr.NotFound("session.refresh", "window was closed during refresh")
	}
	s.sessions[i].DeviceProfile = profile
	return s.sessions[i].Clone(), nil
}

// Reorder moves the session at from to position to. Everything else keeps
// its relative order.
func (s *Store) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex("session.reorder", from); err != nil {
		return err
	}
	if err := s.checkIndex("session.reorder", to); err != nil {
		return err
	}
	if from == to {
		return nil
	}

	moved := s.sessions[from]
	rest := append(s.sessions[:from:from], s.sessions[from+1:]...)
	out := make([]types.Session, 0, len(s.sessions))
	out = append(out, rest[:to]...)
	out = append(out, moved)
	out = append(out, rest[to:]...)
	s.sessions = out
	return nil
}

// Reload marks a session as reloading and returns its current state
func (s *Store) Reload(index int) (types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex("session.reload", index); err != nil {
		return types.Session{}, err
	}
	s.sessions[index].IsLoading = true
	s.sessions[index].Error = nil
	return s.sessions[index].Clone(), nil
}

// FrameLoaded clears the loading state once the renderer reports success
func (s *Store) FrameLoaded(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex("session.frame_loaded", index); err != nil {
		return err
	}
	s.sessions[index].IsLoading = false
	s.sessions[index].Error = nil
	return nil
}

// FrameError records a load failure reported by the renderer
func (s *Store) FrameError(index int, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIndex("session.frame_error", index); err != nil {
		return err
	}
	s.sessions[index].IsLoading = false
	s.sessions[index].Error = &message
	return nil
}

// checkIndex must be called with mu held
func (s *Store) checkIndex(op string, index int) error {
	if index < 0 || index >= len(s.sessions) {
		return apperr.NotFound(op, fmt.Sprintf("no window at index %d", index))
	}
	return nil
}

// indexOf must be called with mu held
func (s *Store) indexOf(id int64) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) recordCount(n int) {
	if s.metrics != nil {
		s.metrics.SetSessionsActive(n)
	}
}

func (s *Store) recordNavigation(result string) {
	if s.metrics != nil {
		s.metrics.RecordNavigation(result)
	}
}

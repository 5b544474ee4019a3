package viewstate

import (
	"fmt"
	"sync"
)

// Mode is the screen the session is currently on.
type Mode int

const (
	ModeProjectList Mode = iota
	ModeImageList
	ModeLabeling
	ModeConfirmed
)

var modeNames = map[Mode]string{
	ModeProjectList: "project_list",
	ModeImageList:   "image_list",
	ModeLabeling:    "labeling",
	ModeConfirmed:   "confirmed",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts a wire value into a Mode
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown view mode %q", s)
}

// pageKey keys page cursors. The review flag is only meaningful in labeling
// mode; other modes collapse onto review=false so their cursor is stable no
// matter how the flag was left.
type pageKey struct {
	mode   Mode
	review bool
}

func keyFor(mode Mode, review bool) pageKey {
	if mode != ModeLabeling {
		review = false
	}
	return pageKey{mode: mode, review: review}
}

// Session is one user's view state: current mode, review flag, active
// project, the ordered image-path list for the current filter, and an
// independent page cursor per (mode, review) pair. It must never be shared
// across sessions.
type Session struct {
	mu sync.Mutex

	mode       Mode
	reviewMode bool
	projectID  string
	images     []string
	pages      map[pageKey]int
}

func newSession() *Session {
	return &Session{
		mode:  ModeProjectList,
		pages: make(map[pageKey]int),
	}
}

// Mode returns the current mode and review flag
func (s *Session) Mode() (Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.reviewMode
}

// SetMode switches screens. Cursors of other views are untouched, so moving
// labeling → image_list → labeling lands back on the same page.
func (s *Session) SetMode(mode Mode, review bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.reviewMode = review
}

// ProjectID returns the active project
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// SetProjectID sets the active project
func (s *Session) SetProjectID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectID = id
}

// CurrentPage returns the cursor for the active (mode, review) view
func (s *Session) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[keyFor(s.mode, s.reviewMode)]
}

// SetCurrentPage stores the cursor for the active (mode, review) view
func (s *Session) SetCurrentPage(value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[keyFor(s.mode, s.reviewMode)] = value
}

// PageFor returns the cursor of an arbitrary view
func (s *Session) PageFor(mode Mode, review bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[keyFor(mode, review)]
}

// SetPageFor stores the cursor of an arbitrary view
func (s *Session) SetPageFor(mode Mode, review bool, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[keyFor(mode, review)] = value
}

// Images returns a copy of the active filtered image list
func (s *Session) Images() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.images))
	copy(out, s.images)
	return out
}

// SetImages replaces the active filtered image list and reconciles the
// cursor against the new length.
func (s *Session) SetImages(images []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = images
	s.reconcileLocked()
}

// Reconcile clamps the active cursor against the current list. It is
// idempotent and must run before any render that depends on the current
// image: empty list resets to 0, an out-of-range cursor clamps to the last
// page, a single remaining item forces 0.
func (s *Session) Reconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileLocked()
}

func (s *Session) reconcileLocked() {
	key := keyFor(s.mode, s.reviewMode)
	cursor := s.pages[key]
	length := len(s.images)

	switch {
	case length == 0:
		cursor = 0
	case length == 1:
		cursor = 0
	case cursor >= length:
		cursor = length - 1
	case cursor < 0:
		cursor = 0
	}
	s.pages[key] = cursor
}

// CurrentImage returns the storage path the active cursor points at
func (s *Session) CurrentImage() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileLocked()
	if len(s.images) == 0 {
		return "", false
	}
	return s.images[s.pages[keyFor(s.mode, s.reviewMode)]], true
}

// Manager hands out per-session state objects keyed by session id. Sessions
// are created on first use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Get returns the session for an id, creating it if absent
func (m *Manager) Get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = newSession()
		m.sessions[sessionID] = s
	}
	return s
}

// Drop discards a session's state
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Package session holds the reviewer's navigation and form state between
// requests: which row is selected, pending navigation, per-row drafts and
// per-file display toggles.
package session

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/er-ddx-review-server/internal/ledger"
	"github.com/er-ddx-review-server/pkg/ddxparse"
)

// Draft is the unsaved evaluation form of a row.
type Draft struct {
	PhysDDX string         `json:"phys_ddx"` // free text, one diagnosis per line or comma separated
	Scores  map[string]int `json:"scores,omitempty"`
	Comment string         `json:"comment"`
}

// Evaluation turns the draft into a ledger evaluation. Scores left unset
// take the default.
func (d Draft) Evaluation(rowID int, fileName, reviewer string) *ledger.Evaluation {
	e := ledger.NewEvaluation(rowID, fileName)
	e.Reviewer = reviewer
	e.PhysDDX = ddxparse.SplitPhysicianList(d.PhysDDX)
	e.Comment = d.Comment

	set := func(field string, dst *int) {
		if v, ok := d.Scores[field]; ok {
			*dst = v
		}
	}
	set("base_quality", &e.BaseQuality)
	set("base_comprehensiveness", &e.BaseComprehensiveness)
	set("base_appropriateness", &e.BaseAppropriateness)
	set("applied_quality", &e.AppliedQuality)
	set("applied_comprehensiveness", &e.AppliedComprehensiveness)
	set("applied_appropriateness", &e.AppliedAppropriateness)
	set("history_adequacy", &e.HistoryAdequacy)
	return e
}

// Snapshot is a read-only copy of the state.
type Snapshot struct {
	CurrentPick   *int   `json:"current_pick"`
	NavTarget     *int   `json:"nav_target,omitempty"`
	CurrentRowKey string `json:"current_row_key"`
	Reviewer      string `json:"reviewer"`
	AutoAdvance   bool   `json:"auto_advance"`
	Draft         *Draft `json:"draft,omitempty"`
}

// State is the single reviewer's session. All methods are safe for
// concurrent use.
type State struct {
	mu sync.Mutex

	currentPick   *int
	navTarget     *int
	currentRowKey string
	reviewer      string
	autoAdvance   bool

	drafts       map[string]Draft
	showModelDDX map[string]bool
}

// NewState returns an empty session with auto-advance enabled
func NewState() *State {
	return &State{
		autoAdvance:  true,
		drafts:       make(map[string]Draft),
		showModelDDX: make(map[string]bool),
	}
}

// RowKey names the per-row state of a row
func RowKey(rowID int) string {
	return fmt.Sprintf("row_%d", rowID)
}

// ToggleKey names the per-file "show model DDX" toggle
func ToggleKey(fileName string) string {
	sum := md5.Sum([]byte(fileName))
	return "SHOW_MODEL_DDX_" + hex.EncodeToString(sum[:])[:8]
}

// Reset forgets selection, navigation and drafts. Reviewer name, the
// auto-advance flag and display toggles survive a dataset reload.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentPick = nil
	s.navTarget = nil
	s.currentRowKey = ""
	s.drafts = make(map[string]Draft)
}

// Pick resolves the selected row among options. A pending navigation target
// is applied first; a pick no longer among options falls back to the first
// option. ok is false when options is empty.
func (s *State) Pick(options []int) (rowID int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(options) == 0 {
		return 0, false
	}
	if s.navTarget != nil {
		s.currentPick = s.navTarget
		s.navTarget = nil
	}
	pick := options[0]
	if s.currentPick != nil && indexOf(options, *s.currentPick) >= 0 {
		pick = *s.currentPick
	}
	s.selectLocked(pick)
	return pick, true
}

// Prev queues navigation to the option before the current pick
func (s *State) Prev(options []int) (rowID int, ok bool) {
	return s.step(options, -1)
}

// Next queues navigation to the option after the current pick
func (s *State) Next(options []int) (rowID int, ok bool) {
	return s.step(options, 1)
}

func (s *State) step(options []int, delta int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(options) == 0 {
		return 0, false
	}
	pos := 0
	if s.currentPick != nil {
		if i := indexOf(options, *s.currentPick); i >= 0 {
			pos = i
		}
	}
	target := pos + delta
	if target < 0 || target >= len(options) {
		return 0, false
	}
	id := options[target]
	s.navTarget = &id
	return id, true
}

// Navigate queues navigation to rowID; the next Pick applies it
func (s *State) Navigate(rowID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navTarget = &rowID
}

// Select makes rowID the current row. Switching rows discards the drafts of
// the previous row.
func (s *State) Select(rowID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(rowID)
}

func (s *State) selectLocked(rowID int) {
	s.currentPick = &rowID
	key := RowKey(rowID)
	if s.currentRowKey != key {
		if s.currentRowKey != "" {
			delete(s.drafts, s.currentRowKey)
		}
		s.currentRowKey = key
	}
}

// Current returns the selected row, if any
func (s *State) Current() (rowID int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentPick == nil {
		return 0, false
	}
	return *s.currentPick, true
}

// Draft returns the draft of a row, empty when none was stored
func (s *State) Draft(rowID int) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[RowKey(rowID)]
}

// SetDraft stores the draft of a row
func (s *State) SetDraft(rowID int, d Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[RowKey(rowID)] = d
}

// ClearDraft drops the draft of a row
func (s *State) ClearDraft(rowID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, RowKey(rowID))
}

// ToggleModelDDX flips the model-DDX visibility of a file and returns the new value
func (s *State) ToggleModelDDX(fileName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ToggleKey(fileName)
	s.showModelDDX[key] = !s.showModelDDX[key]
	return s.showModelDDX[key]
}

// ShowModelDDX reports whether model DDX lists are shown for a file
func (s *State) ShowModelDDX(fileName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showModelDDX[ToggleKey(fileName)]
}

// SetReviewer sets the reviewer name stamped on saved evaluations
func (s *State) SetReviewer(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviewer = name
}

// Reviewer returns the reviewer name
func (s *State) Reviewer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewer
}

// SetAutoAdvance toggles moving to the next unreviewed row after a save
func (s *State) SetAutoAdvance(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoAdvance = on
}

// AutoAdvance reports whether saves move to the next unreviewed row
func (s *State) AutoAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoAdvance
}

// Snapshot copies the state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		CurrentRowKey: s.currentRowKey,
		Reviewer:      s.reviewer,
		AutoAdvance:   s.autoAdvance,
	}
	if s.currentPick != nil {
		v := *s.currentPick
		snap.CurrentPick = &v
		if d, ok := s.drafts[s.currentRowKey]; ok {
			snap.Draft = &d
		}
	}
	if s.navTarget != nil {
		v := *s.navTarget
		snap.NavTarget = &v
	}
	return snap
}

func indexOf(options []int, id int) int {
	for i, o := range options {
		if o == id {
			return i
		}
	}
	return -1
}

// Package selection - The user's ingredient choices across one or more scans.
package selection

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/models/postprocess"
)

// DefaultLimit is the most ingredients a basket may hold.
const DefaultLimit = 10

var (
	// ErrSelectionLimitExceeded is returned when a merge or add would grow the basket past its limit.
	ErrSelectionLimitExceeded = errors.New("selection limit exceeded")
	// ErrNotDetected is returned when toggling a label the current scan did not find.
	ErrNotDetected = errors.New("label was not detected")
	// ErrStaleScan is returned when committing a scan that was superseded or abandoned.
	ErrStaleScan = errors.New("scan is no longer current")
)

// LimitError reports a rejected merge or add.
type LimitError struct {
	Limit     int
	Held      int
	Requested int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("selection limit exceeded: holding %d, adding %d, limit %d", e.Held, e.Requested, e.Limit)
}

// Is lets errors.Is match ErrSelectionLimitExceeded.
func (e *LimitError) Is(target error) bool {
	return target == ErrSelectionLimitExceeded
}

// Ticket identifies one scan started with Begin.
type Ticket uint64

// State holds the latest scan result, the labels the user removed from it, and the basket of
// ingredients accumulated across scans.
//
// The zero value is not usable; call New. A State is safe for concurrent use.
type State struct {
	mu      sync.RWMutex
	limit   int
	result  postprocess.DetectionResult
	removed map[string]struct{}
	basket  []string
	current Ticket
}

// New creates an empty state.
//
// Arguments:
//   - limit: The basket size limit. Non-positive values use DefaultLimit.
//
// Returns:
//   - *State: The state.
func New(limit int) *State {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &State{
		limit:   limit,
		removed: make(map[string]struct{}),
	}
}

// Limit returns the basket size limit.
func (s *State) Limit() int {
	return s.limit
}

// Begin starts a scan and returns its ticket. It supersedes any scan in flight.
func (s *State) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current
}

// Abandon invalidates the scan in flight, if any.
func (s *State) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
}

// Commit installs result as the current scan if ticket is still current.
//
// A committed scan replaces the previous result and clears the removed labels. The ticket is
// spent, so it cannot commit twice.
//
// Arguments:
//   - ticket: The ticket returned by Begin.
//   - result: The labels detected by the scan.
//
// Returns:
//   - error: ErrStaleScan if the scan was superseded or abandoned; the state is unchanged.
func (s *State) Commit(ticket Ticket, result postprocess.DetectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket == 0 || ticket != s.current {
		return errors.Wrapf(ErrStaleScan, "ticket %d, current %d", ticket, s.current)
	}
	s.current++
	s.result = result
	s.removed = make(map[string]struct{})
	return nil
}

// Result returns the current scan result.
func (s *State) Result() postprocess.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Toggle flips whether label is removed from the current result.
//
// Returns:
//   - bool: True if label is now selected.
//   - error: ErrNotDetected if the current result does not hold label.
func (s *State) Toggle(label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.result.Contains(label) {
		return false, errors.Wrapf(ErrNotDetected, "%q", label)
	}
	if _, ok := s.removed[label]; ok {
		delete(s.removed, label)
		return true, nil
	}
	s.removed[label] = struct{}{}
	return false, nil
}

// Removed returns the labels the user removed, in result order.
func (s *State) Removed() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.removedLocked()
}

func (s *State) removedLocked() []string {
	out := make([]string, 0, len(s.removed))
	for _, l := range s.result.Labels() {
		if _, ok := s.removed[l]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Selected returns the current result minus the removed labels, in result order.
func (s *State) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

func (s *State) selectedLocked() []string {
	labels := s.result.Labels()
	out := labels[:0]
	for _, l := range labels {
		if _, ok := s.removed[l]; !ok {
			out = append(out, l)
		}
	}
	return out
}

// Merge adds the selected labels of the current result to the basket.
func (s *State) Merge() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(s.selectedLocked())
}

// MergeResult adds every label of result to the basket.
//
// Labels already in the basket are skipped. If the basket would then hold more than the limit,
// nothing is added.
//
// Returns:
//   - []string: The basket after the merge.
//   - error: A *LimitError matching ErrSelectionLimitExceeded.
func (s *State) MergeResult(result postprocess.DetectionResult) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(result.Labels())
}

// Add adds one label to the basket, subject to the limit.
func (s *State) Add(label string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked([]string{label})
}

func (s *State) addLocked(labels []string) ([]string, error) {
	held := make(map[string]struct{}, len(s.basket))
	for _, l := range s.basket {
		held[l] = struct{}{}
	}

	fresh := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := held[l]; ok {
			continue
		}
		held[l] = struct{}{}
		fresh = append(fresh, l)
	}

	if len(s.basket)+len(fresh) > s.limit {
		return s.basketLocked(), &LimitError{Limit: s.limit, Held: len(s.basket), Requested: len(fresh)}
	}
	s.basket = append(s.basket, fresh...)
	return s.basketLocked(), nil
}

// Remove drops label from the basket. Removing a label that is not held is a no-op.
func (s *State) Remove(label string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.basket {
		if l == label {
			s.basket = append(s.basket[:i:i], s.basket[i+1:]...)
			break
		}
	}
	return s.basketLocked()
}

// Basket returns the accumulated ingredients in the order they were added.
func (s *State) Basket() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basketLocked()
}

// Clear empties the basket.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.basket = nil
}

func (s *State) basketLocked() []string {
	out := make([]string, len(s.basket))
	copy(out, s.basket)
	return out
}

// Snapshot is a consistent view of a State.
type Snapshot struct {
	Detected []string `json:"detected"`
	Selected []string `json:"selected"`
	Removed  []string `json:"removed"`
	Basket   []string `json:"basket"`
	Limit    int      `json:"limit"`
}

// Snapshot returns the state under one lock.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Snapshot{
		Detected: s.result.Labels(),
		Selected: s.selectedLocked(),
		Removed:  s.removedLocked(),
		Basket:   s.basketLocked(),
		Limit:    s.limit,
	}
}

package tasks

import (
	"slices"
	"sync"

	"github.com/desertthunder/shelfx/internal/models"
)

// Counts are the derived totals of a [Store].
type Counts struct {
	Pending     int
	InProgress  int
	NeedsReview int
	Complete    int
	Skipped     int
	Failed      int
	Completed   int // tasks that left the queue: needs_review, complete, skipped, failed
	Total       int
}

// Active is the number of tasks the remote queue still has to work on.
func (c Counts) Active() int {
	return c.Pending + c.InProgress
}

// Progress is Completed/Total in [0, 1].
func (c Counts) Progress() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Completed) / float64(c.Total)
}

// Snapshot is a copy of the store and orchestrator state at one point in time.
type Snapshot struct {
	Tasks    []models.Task
	Groups   map[models.TaskStatus][]models.Task
	Selected []string
	Counts   Counts

	Loading         bool
	Refreshing      bool
	Processing      bool
	UpdatesPending  bool
	BulkBusy        bool
	BulkTaskIDs     []string
	ActionsInFlight []string
}

// IsSelected reports whether id is in the selection.
func (s Snapshot) IsSelected(id string) bool {
	return slices.Contains(s.Selected, id)
}

// IsLocked reports whether per-task actions on id must be disabled.
func (s Snapshot) IsLocked(id string) bool {
	return (s.BulkBusy && slices.Contains(s.BulkTaskIDs, id)) || slices.Contains(s.ActionsInFlight, id)
}

// Store is the in-memory task collection.
//
// Tasks keep the order they were loaded in. Every mutation regroups tasks by status,
// recomputes [Counts] and drops selected ids that are no longer awaiting review.
type Store struct {
	mu       sync.RWMutex
	tasks    []models.Task
	index    map[string]int
	groups   map[models.TaskStatus][]int
	selected map[string]struct{}
	counts   Counts
	version  uint64 // bumped by ApplyTaskResult
}

func NewStore() *Store {
	s := &Store{selected: make(map[string]struct{})}
	s.recompute()
	return s
}

// ReplaceAll swaps the whole collection.
func (s *Store) ReplaceAll(tasks []models.Task) {
	cloned := make([]models.Task, len(tasks))
	for i, t := range tasks {
		cloned[i] = t.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = cloned
	s.recompute()
}

// ReplaceAllIfUnchanged swaps the whole collection unless a task result was applied after
// [Store.Version] returned version. It reports whether the swap happened.
func (s *Store) ReplaceAllIfUnchanged(tasks []models.Task, version uint64) bool {
	cloned := make([]models.Task, len(tasks))
	for i, t := range tasks {
		cloned[i] = t.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version {
		return false
	}
	s.tasks = cloned
	s.recompute()
	return true
}

// Version changes every time a task result is applied.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ApplyTaskResult upserts task by id and returns the status it had before.
func (s *Store) ApplyTaskResult(task models.Task) (prev models.TaskStatus, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[task.ID]; ok {
		prev = s.tasks[i].Status
		s.tasks[i] = task.Clone()
		existed = true
	} else {
		s.tasks = append(s.tasks, task.Clone())
	}
	s.version++
	s.recompute()
	return prev, existed
}

// ToggleSelected flips the selection of id and reports whether it is now selected.
// Ids that are not awaiting review are ignored.
func (s *Store) ToggleSelected(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.selectable(id) {
		return false
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll selects every task awaiting review.
func (s *Store) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.groups[models.StatusNeedsReview] {
		s.selected[s.tasks[i].ID] = struct{}{}
	}
}

// SetSelected replaces the selection with the selectable ids among ids and returns how many were kept.
func (s *Store) SetSelected(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.selected)
	for _, id := range ids {
		if s.selectable(id) {
			s.selected[id] = struct{}{}
		}
	}
	return len(s.selected)
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
}

// Selected returns the selected ids in collection order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedIDs()
}

// Task returns a copy of the task with id.
func (s *Store) Task(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Task{}, false
	}
	return s.tasks[i].Clone(), true
}

func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts
}

// Snapshot copies the collection, grouping, selection and counts.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Tasks:    make([]models.Task, len(s.tasks)),
		Groups:   make(map[models.TaskStatus][]models.Task, len(s.groups)),
		Selected: s.selectedIDs(),
		Counts:   s.counts,
	}
	for i, t := range s.tasks {
		snap.Tasks[i] = t.Clone()
	}
	for status, idx := range s.groups {
		group := make([]models.Task, len(idx))
		for j, i := range idx {
			group[j] = snap.Tasks[i]
		}
		snap.Groups[status] = group
	}
	return snap
}

func (s *Store) selectable(id string) bool {
	i, ok := s.index[id]
	return ok && s.tasks[i].Status == models.StatusNeedsReview
}

func (s *Store) selectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for _, i := range s.groups[models.StatusNeedsReview] {
		if _, ok := s.selected[s.tasks[i].ID]; ok {
			ids = append(ids, s.tasks[i].ID)
		}
	}
	return ids
}

// recompute rebuilds the index, groups and counts and prunes the selection. Callers hold mu.
func (s *Store) recompute() {
	s.index = make(map[string]int, len(s.tasks))
	s.groups = make(map[models.TaskStatus][]int, len(models.Statuses))

	var c Counts
	for i, t := range s.tasks {
		s.index[t.ID] = i
		s.groups[t.Status] = append(s.groups[t.Status], i)

		if !t.Status.IsQueued() {
			c.Completed++
		}
		switch t.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusInProgress:
			c.InProgress++
		case models.StatusNeedsReview:
			c.NeedsReview++
		case models.StatusComplete:
			c.Complete++
		case models.StatusSkipped:
			c.Skipped++
		case models.StatusFailed:
			c.Failed++
		}
	}
	c.Total = len(s.tasks)
	s.counts = c

	for id := range s.selected {
		if !s.selectable(id) {
			delete(s.selected, id)
		}
	}
}

package testing

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// MockService is an in-memory, goroutine-safe test double for [services.EnrichmentService].
//
// Without hooks it behaves like a tiny queue: ListTasks pages over the stored tasks using the
// offset as cursor, and the single-task actions move tasks through their status transitions.
// Set a hook to override one method; hooks run without the mock's lock held so they may block.
type MockService struct {
	mu       sync.Mutex
	tasks    []models.Task
	calls    map[string]int
	approved map[string][]models.FieldSelection

	Sources  map[string]*models.SourcesResponse // by work id
	Compares map[string]*models.CompareResponse // by [models.CompareKey.String]

	ListTasksFn     func(ctx context.Context, cursor string, limit int) (*models.TaskPage, error)
	ProcessTasksFn  func(ctx context.Context, limit int) (*models.ProcessResult, error)
	ApproveTaskFn   func(ctx context.Context, id string, selections []models.FieldSelection) (*models.Task, error)
	DismissTaskFn   func(ctx context.Context, id string) error
	RetryTaskFn     func(ctx context.Context, id string) (*models.Task, error)
	RetryTaskNowFn  func(ctx context.Context, id string) (*models.Task, error)
	ListSourcesFn   func(ctx context.Context, workID string, q models.SourceQuery) (*models.SourcesResponse, error)
	CompareSourceFn func(ctx context.Context, workID string, key models.CompareKey) (*models.CompareResponse, error)
}

// NewMockService creates a mock holding tasks.
func NewMockService(tasks ...models.Task) *MockService {
	return &MockService{
		tasks:    tasks,
		calls:    make(map[string]int),
		approved: make(map[string][]models.FieldSelection),
		Sources:  make(map[string]*models.SourcesResponse),
		Compares: make(map[string]*models.CompareResponse),
	}
}

// NewTask builds a task with the given id and status.
func NewTask(id string, status models.TaskStatus) models.Task {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Task{
		ID:            id,
		LibraryItemID: "item-" + id,
		WorkID:        "work-" + id,
		Status:        status,
		MissingFields: []string{"cover"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// SetTasks replaces the stored tasks.
func (m *MockService) SetTasks(tasks ...models.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = tasks
}

// Task returns the stored task with id.
func (m *MockService) Task(id string) (models.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Calls returns how many times method was invoked.
func (m *MockService) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Approved returns the selections of the last approve call for id.
func (m *MockService) Approved(id string) []models.FieldSelection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.approved[id]
}

func (m *MockService) record(method string) {
	m.mu.Lock()
	m.calls[method]++
	m.mu.Unlock()
}

func (m *MockService) ListTasks(ctx context.Context, cursor string, limit int) (*models.TaskPage, error) {
	m.record("ListTasks")
	if m.ListTasksFn != nil {
		return m.ListTasksFn(ctx, cursor, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor %q", shared.ErrInvalidArgument, cursor)
		}
		offset = n
	}
	if limit <= 0 {
		limit = len(m.tasks)
	}

	end := min(offset+limit, len(m.tasks))
	page := &models.TaskPage{}
	for _, t := range m.tasks[min(offset, end):end] {
		page.Items = append(page.Items, t.Clone())
	}
	if end < len(m.tasks) {
		next := strconv.Itoa(end)
		page.NextCursor = &next
	}
	return page, nil
}

func (m *MockService) ProcessTasks(ctx context.Context, limit int) (*models.ProcessResult, error) {
	m.record("ProcessTasks")
	if m.ProcessTasksFn != nil {
		return m.ProcessTasksFn(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := &models.ProcessResult{Limit: limit}
	for i := range m.tasks {
		if result.Processed >= limit {
			break
		}
		if m.tasks[i].Status != models.StatusPending {
			continue
		}
		m.tasks[i].Status = models.StatusNeedsReview
		result.Processed++
		result.NeedsReview++
	}
	return result, nil
}

func (m *MockService) ApproveTask(ctx context.Context, id string, selections []models.FieldSelection) (*models.Task, error) {
	m.record("ApproveTask")
	m.mu.Lock()
	m.approved[id] = selections
	m.mu.Unlock()

	if m.ApproveTaskFn != nil {
		return m.ApproveTaskFn(ctx, id, selections)
	}
	return m.move(id, models.StatusComplete, func(t *models.Task) {
		t.FieldsApplied = nil
		for _, s := range selections {
			t.FieldsApplied = append(t.FieldsApplied, s.FieldKey)
		}
	})
}

func (m *MockService) DismissTask(ctx context.Context, id string) error {
	m.record("DismissTask")
	if m.DismissTaskFn != nil {
		return m.DismissTaskFn(ctx, id)
	}
	_, err := m.move(id, models.StatusSkipped, nil)
	return err
}

func (m *MockService) RetryTask(ctx context.Context, id string) (*models.Task, error) {
	m.record("RetryTask")
	if m.RetryTaskFn != nil {
		return m.RetryTaskFn(ctx, id)
	}
	return m.move(id, models.StatusPending, func(t *models.Task) { t.LastError = nil })
}

func (m *MockService) RetryTaskNow(ctx context.Context, id string) (*models.Task, error) {
	m.record("RetryTaskNow")
	if m.RetryTaskNowFn != nil {
		return m.RetryTaskNowFn(ctx, id)
	}
	return m.move(id, models.StatusNeedsReview, func(t *models.Task) { t.LastError = nil })
}

func (m *MockService) ListSources(ctx context.Context, workID string, q models.SourceQuery) (*models.SourcesResponse, error) {
	m.record("ListSources")
	if m.ListSourcesFn != nil {
		return m.ListSourcesFn(ctx, workID, q)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.Sources[workID]; ok {
		return resp, nil
	}
	return &models.SourcesResponse{}, nil
}

func (m *MockService) CompareSource(ctx context.Context, workID string, key models.CompareKey) (*models.CompareResponse, error) {
	m.record("CompareSource")
	if m.CompareSourceFn != nil {
		return m.CompareSourceFn(ctx, workID, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if resp, ok := m.Compares[key.String()]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("%w: no comparison for %s", shared.ErrAPIRequest, key)
}

func (m *MockService) move(id string, to models.TaskStatus, mutate func(*models.Task)) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.tasks {
		if m.tasks[i].ID != id {
			continue
		}
		m.tasks[i].Status = to
		if mutate != nil {
			mutate(&m.tasks[i])
		}
		t := m.tasks[i].Clone()
		return &t, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
}

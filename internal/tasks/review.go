package tasks

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ReviewSession is the "choose match" flow for one task awaiting review: list sources, compare
// one of them against the current values, pick per-field choices and approve.
//
// Compare results are cached on the orchestrator. A result that resolves after the session moved
// to another source or was closed is cached but not applied, and [shared.ErrStaleResult] is returned.
type ReviewSession struct {
	o    *Orchestrator
	task models.Task

	mu      sync.Mutex
	sources []models.SourceTile
	tile    *models.SourceTile
	gen     uint64
	fields  []models.CompareField
	choices map[string]models.SelectionChoice
	closed  bool
}

// OpenReview lists the candidate sources of a task and loads any prefetched comparisons into the cache.
func (o *Orchestrator) OpenReview(ctx context.Context, taskID string, query models.SourceQuery) (*ReviewSession, error) {
	task, err := o.precheck(taskID, models.ActionApprove)
	if err != nil {
		return nil, err
	}

	resp, err := o.svc.ListSources(ctx, task.WorkID, query)
	if err != nil {
		o.publish(errorUpdate("list sources", err))
		return nil, err
	}
	if o.closed.Load() {
		return nil, shared.ErrClosed
	}

	n := o.cache.PutPrefetch(task.WorkID, resp.Items, resp.PrefetchCompare)
	o.logger.Debug("review opened", "task", taskID, "sources", len(resp.Items), "prefetched", n)

	return &ReviewSession{
		o:       o,
		task:    task,
		sources: slices.Clone(resp.Items),
		choices: make(map[string]models.SelectionChoice),
	}, nil
}

// Task returns the task under review as it was when the session opened.
func (s *ReviewSession) Task() models.Task { return s.task }

// Sources returns the candidate source tiles.
func (s *ReviewSession) Sources() []models.SourceTile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.sources)
}

// Current returns the selected tile, if any.
func (s *ReviewSession) Current() (models.SourceTile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tile == nil {
		return models.SourceTile{}, false
	}
	return *s.tile, true
}

// Select makes tile the current source and loads its comparison, from the cache when possible.
// Field choices are reset to their defaults.
func (s *ReviewSession) Select(ctx context.Context, tile models.SourceTile) ([]models.CompareField, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, shared.ErrClosed
	}
	s.gen++
	gen := s.gen
	s.tile = &tile
	s.fields = nil
	clear(s.choices)
	s.mu.Unlock()

	key := models.NewCompareKey(s.task.WorkID, tile)
	fields, ok := s.o.cache.Get(key)
	if !ok {
		resp, err := s.o.svc.CompareSource(ctx, s.task.WorkID, key)
		if err != nil {
			if s.stale(gen) {
				return nil, shared.ErrStaleResult
			}
			s.o.publish(errorUpdate("compare", err))
			return nil, err
		}
		fields = resp.Fields
		s.o.cache.Put(key, fields)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen {
		return nil, shared.ErrStaleResult
	}
	s.fields = fields
	for _, f := range fields {
		s.choices[f.FieldKey] = models.DefaultChoice(f)
	}
	return slices.Clone(fields), nil
}

func (s *ReviewSession) stale(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.gen != gen
}

// Fields returns the fields of the current comparison.
func (s *ReviewSession) Fields() []models.CompareField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fields)
}

// Choice returns the current choice for a field.
func (s *ReviewSession) Choice(fieldKey string) models.SelectionChoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.choices[fieldKey]
}

// Choose sets the choice for one field. Choosing a candidate that is not available fails.
func (s *ReviewSession) Choose(fieldKey string, choice models.SelectionChoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.fields, func(f models.CompareField) bool { return f.FieldKey == fieldKey })
	if i < 0 {
		return fmt.Errorf("%w: unknown field %q", shared.ErrInvalidArgument, fieldKey)
	}
	switch choice {
	case models.ChoiceCurrent:
	case models.ChoiceSelected:
		if !s.fields[i].CandidateAvailable {
			return fmt.Errorf("%w: no candidate value for %q", shared.ErrInvalidArgument, fieldKey)
		}
	default:
		return fmt.Errorf("%w: choice %q", shared.ErrInvalidArgument, choice)
	}
	s.choices[fieldKey] = choice
	return nil
}

// Selections returns the approve payload: every field set to selected whose candidate is available.
func (s *ReviewSession) Selections() []models.FieldSelection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tile == nil {
		return nil
	}

	var selections []models.FieldSelection
	for _, f := range s.fields {
		if s.choices[f.FieldKey] != models.ChoiceSelected || !f.CandidateAvailable {
			continue
		}
		provider := f.Provider
		if provider == "" {
			provider = s.tile.Provider
		}
		selections = append(selections, models.FieldSelection{
			FieldKey:   f.FieldKey,
			Provider:   provider,
			ProviderID: s.tile.SourceID,
			Value:      f.CandidateValue,
		})
	}
	return selections
}

// Apply approves the task with [ReviewSession.Selections] and closes the session on success.
func (s *ReviewSession) Apply(ctx context.Context) (*models.Task, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, shared.ErrClosed
	}

	task, err := s.o.Approve(ctx, s.task.ID, s.Selections())
	if err != nil {
		return nil, err
	}
	s.Close()
	return task, nil
}

// Close ends the session. Comparisons still in flight are cached but not applied.
func (s *ReviewSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
}

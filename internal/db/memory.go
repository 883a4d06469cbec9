package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reliefroute/backend/internal/models"
)

// MemoryStore keeps everything in process. It backs STORE=memory and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	responders  map[string]models.Responder
	requests    map[string]models.Request
	feedback    []models.FeedbackRecord
	weights     []models.WeightVector
	reliability map[string]models.ReliabilityEntry
	runs        []models.Run
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		responders:  map[string]models.Responder{},
		requests:    map[string]models.Request{},
		reliability: map[string]models.ReliabilityEntry{},
		now:         time.Now,
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) ListResponders(_ context.Context, activeOnly bool) ([]models.Responder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Responder, 0, len(m.responders))
	for _, r := range m.responders {
		if activeOnly && !r.Active {
			continue
		}
		out = append(out, cloneResponder(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertResponder(_ context.Context, r models.Responder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(r.Embedding) == 0 {
		if prev, ok := m.responders[r.ID]; ok {
			r.Embedding = prev.Embedding
		}
	}
	m.responders[r.ID] = cloneResponder(r)
	return nil
}

func (m *MemoryStore) ActiveAssignmentCounts(context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]int{}
	for _, r := range m.requests {
		if r.AssignedResponderID == nil {
			continue
		}
		if r.Status == models.StatusAssigned || r.Status == models.StatusInProgress {
			out[*r.AssignedResponderID]++
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertRequest(_ context.Context, r models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return ErrConflict
	}
	if r.ClientID != "" {
		for _, existing := range m.requests {
			if existing.ClientID == r.ClientID {
				return ErrConflict
			}
		}
	}
	m.requests[r.ID] = cloneRequest(r)
	return nil
}

func (m *MemoryStore) GetRequest(_ context.Context, id string) (models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return models.Request{}, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (m *MemoryStore) FindRequestByClientID(_ context.Context, clientID string) (models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if clientID != "" && r.ClientID == clientID {
			return cloneRequest(r), nil
		}
	}
	return models.Request{}, ErrNotFound
}

// sortedRequests returns requests newest first. Callers hold the lock.
func (m *MemoryStore) sortedRequests(keep func(models.Request) bool) []models.Request {
	out := make([]models.Request, 0, len(m.requests))
	for _, r := range m.requests {
		if keep == nil || keep(r) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryStore) ListRequests(_ context.Context, status string, limit, offset int) ([]models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.sortedRequests(func(r models.Request) bool { return status == "" || r.Status == status })
	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PendingRequests(context.Context) ([]models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.sortedRequests(func(r models.Request) bool { return r.Status == models.StatusNew })
	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (m *MemoryStore) RecentRequests(_ context.Context, limit int) ([]models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.sortedRequests(nil)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateRequestStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = m.now().UTC()
	m.requests[id] = r
	return nil
}

func (m *MemoryStore) CommitAssignment(_ context.Context, fb models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[fb.RequestID]
	if !ok {
		return ErrNotFound
	}
	if r.Status != models.StatusNew {
		return ErrConflict
	}
	responderID := fb.ResponderID
	r.Status = models.StatusAssigned
	r.AssignedResponderID = &responderID
	r.UpdatedAt = fb.AssignedAt
	m.requests[r.ID] = r

	fb.Outcome = models.OutcomePending
	fb.ResolvedAt = nil
	m.feedback = append(m.feedback, fb)
	return nil
}

func (m *MemoryStore) ResolveRequest(_ context.Context, requestID, status, outcome string, at time.Time) (*models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	m.requests[requestID] = r

	idx := -1
	for i, fb := range m.feedback {
		if fb.RequestID != requestID || fb.ResolvedAt != nil {
			continue
		}
		if idx < 0 || fb.AssignedAt.After(m.feedback[idx].AssignedAt) {
			idx = i
		}
	}
	if idx < 0 {
		return nil, nil
	}
	resolvedAt := at
	m.feedback[idx].Outcome = outcome
	m.feedback[idx].ResolvedAt = &resolvedAt
	out := m.feedback[idx]
	return &out, nil
}

func (m *MemoryStore) RecentFeedback(_ context.Context, limit int) ([]models.FeedbackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.FeedbackRecord(nil), m.feedback...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.After(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AllFeedback(context.Context) ([]models.FeedbackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.FeedbackRecord(nil), m.feedback...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].AssignedAt.Equal(out[j].AssignedAt) {
			return out[i].AssignedAt.Before(out[j].AssignedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) LatestWeights(context.Context) (models.WeightVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.weights) == 0 {
		return models.WeightVector{}, ErrNotFound
	}
	return m.weights[len(m.weights)-1], nil
}

func (m *MemoryStore) SaveWeights(_ context.Context, w models.WeightVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weights = append(m.weights, w)
	return nil
}

func (m *MemoryStore) ListReliability(context.Context) ([]models.ReliabilityEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ReliabilityEntry, 0, len(m.reliability))
	for _, e := range m.reliability {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResponderID < out[j].ResponderID })
	return out, nil
}

func (m *MemoryStore) ReplaceReliability(_ context.Context, entries []models.ReliabilityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reliability = make(map[string]models.ReliabilityEntry, len(entries))
	for _, e := range entries {
		m.reliability[e.ResponderID] = e
	}
	return nil
}

func (m *MemoryStore) CreateRun(_ context.Context, status string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run := models.Run{ID: uuid.NewString(), Status: status, StartedAt: m.now().UTC()}
	m.runs = append(m.runs, run)
	return run.ID, nil
}

func (m *MemoryStore) FinishRun(_ context.Context, runID, status string, summary []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID != runID {
			continue
		}
		finished := m.now().UTC()
		m.runs[i].Status = status
		m.runs[i].Summary = append([]byte(nil), summary...)
		m.runs[i].FinishedAt = &finished
		return nil
	}
	return ErrNotFound
}

func (m *MemoryStore) GetLatestRun(context.Context) (models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return models.Run{}, ErrNotFound
	}
	return m.runs[len(m.runs)-1], nil
}

func cloneResponder(r models.Responder) models.Responder {
	r.Capabilities = append([]string(nil), r.Capabilities...)
	if r.Location.Coords != nil {
		c := *r.Location.Coords
		r.Location.Coords = &c
	}
	r.Embedding = append([]float64(nil), r.Embedding...)
	return r
}

func cloneRequest(r models.Request) models.Request {
	if r.Location.Coords != nil {
		c := *r.Location.Coords
		r.Location.Coords = &c
	}
	if r.AssignedResponderID != nil {
		id := *r.AssignedResponderID
		r.AssignedResponderID = &id
	}
	if r.Classification != nil {
		c := *r.Classification
		r.Classification = &c
	}
	return r
}

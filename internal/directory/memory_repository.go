package directory

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu           sync.RWMutex
	tutors       map[string]TutorContact
	requirements map[string]Requirement
}

// NewMemoryRepository builds an in-memory directory for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		tutors:       make(map[string]TutorContact),
		requirements: make(map[string]Requirement),
	}
}

func (r *memoryRepository) TutorContact(_ context.Context, tutorID string) (TutorContact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.tutors[tutorID]
	if !ok {
		return TutorContact{}, ErrTutorNotFound
	}
	return c, nil
}

func (r *memoryRepository) Requirement(_ context.Context, id string) (Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requirements[id]
	if !ok {
		return Requirement{}, ErrRequirementNotFound
	}
	return req, nil
}

func (r *memoryRepository) SaveTutor(_ context.Context, c TutorContact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tutors[c.TutorID] = c
	return nil
}

func (r *memoryRepository) SaveRequirement(_ context.Context, req Requirement) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requirements[req.ID] = req
	return nil
}

func (r *memoryRepository) RequirementsByStudent(_ context.Context, studentID string) ([]Requirement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reqs := []Requirement{}
	for _, req := range r.requirements {
		if req.StudentID == studentID {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	if len(reqs) > maxStudentRequirements {
		reqs = reqs[:maxStudentRequirements]
	}
	return reqs, nil
}

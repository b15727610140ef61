package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/strrl/focus-signals/internal/returnctx"
)

type ReturnContexts struct {
	s *Store
}

func (r *ReturnContexts) FindSince(ctx context.Context, userID string, since time.Time) (*returnctx.ReturnContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("FindSince"); err != nil {
		return nil, err
	}

	var best *returnctx.ReturnContext
	for _, rc := range r.s.st.returns {
		if rc.UserID != userID || rc.AbsenceDetectedAt.Before(since) {
			continue
		}
		if best == nil || rc.AbsenceDetectedAt.After(best.AbsenceDetectedAt) {
			found := rc
			best = &found
		}
	}
	return best, nil
}

func (r *ReturnContexts) Get(ctx context.Context, userID, id string) (*returnctx.ReturnContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Get"); err != nil {
		return nil, err
	}

	rc, ok := r.s.st.returns[id]
	if !ok || rc.UserID != userID {
		return nil, returnctx.ErrNotFound
	}
	return &rc, nil
}

func (r *ReturnContexts) Insert(ctx context.Context, rc returnctx.ReturnContext) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Insert"); err != nil {
		return err
	}
	r.s.st.returns[rc.ID] = rc
	return nil
}

func (r *ReturnContexts) Update(ctx context.Context, rc returnctx.ReturnContext) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("Update"); err != nil {
		return err
	}
	if _, ok := r.s.st.returns[rc.ID]; !ok {
		return returnctx.ErrNotFound
	}
	r.s.st.returns[rc.ID] = rc
	return nil
}

func (r *ReturnContexts) ListByUser(ctx context.Context, userID string) ([]returnctx.ReturnContext, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("ListByUser"); err != nil {
		return nil, err
	}

	var out []returnctx.ReturnContext
	for _, rc := range r.s.st.returns {
		if rc.UserID == userID {
			out = append(out, rc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

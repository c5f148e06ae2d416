package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"orbe/pkg/types"
)

// memStore is an in-memory Store and Transactor. A failed unit of work is
// rolled back by restoring the snapshot taken when it began.
type memStore struct {
	mu sync.Mutex

	cases       map[string]types.Case
	attachments []types.Attachment
	events      []types.TimelineEvent
	flags       []types.ReviewFlag
	requests    map[string]types.DonationRequest

	failAppend error
}

func newMemStore() *memStore {
	return &memStore{
		cases:    map[string]types.Case{},
		requests: map[string]types.DonationRequest{},
	}
}

type memSnapshot struct {
	cases       map[string]types.Case
	attachments []types.Attachment
	events      []types.TimelineEvent
	flags       []types.ReviewFlag
	requests    map[string]types.DonationRequest
}

func (m *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		cases:       make(map[string]types.Case, len(m.cases)),
		attachments: append([]types.Attachment(nil), m.attachments...),
		events:      append([]types.TimelineEvent(nil), m.events...),
		flags:       append([]types.ReviewFlag(nil), m.flags...),
		requests:    make(map[string]types.DonationRequest, len(m.requests)),
	}
	for k, v := range m.cases {
		snap.cases[k] = v
	}
	for k, v := range m.requests {
		snap.requests[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.cases = snap.cases
	m.attachments = snap.attachments
	m.events = snap.events
	m.flags = snap.flags
	m.requests = snap.requests
}

func (m *memStore) run(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) Locked(ctx context.Context, caseID string, fn func(ctx context.Context, s Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cases[caseID]; !ok {
		return types.ErrCaseNotFound
	}
	return m.run(ctx, fn)
}

func (m *memStore) LockedDonationRequest(ctx context.Context, requestID string, fn func(ctx context.Context, s Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[requestID]; !ok {
		return types.ErrDonationRequestNotFound
	}
	return m.run(ctx, fn)
}

func (m *memStore) Atomic(ctx context.Context, fn func(ctx context.Context, s Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.run(ctx, fn)
}

func (m *memStore) Case(_ context.Context, caseID string) (*types.Case, error) {
	c, ok := m.cases[caseID]
	if !ok {
		return nil, types.ErrCaseNotFound
	}
	return &c, nil
}

func (m *memStore) Cases(_ context.Context, filter types.CaseFilter) ([]*types.Case, error) {
	var out []*types.Case
	for _, c := range m.cases {
		if filter.Matches(&c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) CreateCase(_ context.Context, c *types.Case) error {
	if _, ok := m.cases[c.ID]; ok {
		return errors.New("duplicate case id")
	}
	m.cases[c.ID] = *c
	return nil
}

func (m *memStore) UpdateCase(_ context.Context, c *types.Case) error {
	if _, ok := m.cases[c.ID]; !ok {
		return types.ErrCaseNotFound
	}
	m.cases[c.ID] = *c
	return nil
}

func (m *memStore) Attachment(_ context.Context, attachmentID string) (*types.Attachment, error) {
	for _, a := range m.attachments {
		if a.ID == attachmentID {
			return &a, nil
		}
	}
	return nil, types.ErrAttachmentNotFound
}

func (m *memStore) AttachmentsByCase(_ context.Context, caseID string) ([]*types.Attachment, error) {
	var out []*types.Attachment
	for _, a := range m.attachments {
		if a.CaseID == caseID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *memStore) HasAttachment(_ context.Context, caseID string, attachmentType types.AttachmentType) (bool, error) {
	for _, a := range m.attachments {
		if a.CaseID == caseID && a.Type == attachmentType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAttachment(_ context.Context, attachment *types.Attachment) error {
	m.attachments = append(m.attachments, *attachment)
	return nil
}

func (m *memStore) DeleteAttachment(_ context.Context, attachmentID string) error {
	for i, a := range m.attachments {
		if a.ID == attachmentID {
			m.attachments = append(m.attachments[:i:i], m.attachments[i+1:]...)
			return nil
		}
	}
	return types.ErrAttachmentNotFound
}

func (m *memStore) AppendEvent(_ context.Context, event *types.TimelineEvent) error {
	if m.failAppend != nil {
		return m.failAppend
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *memStore) DeleteEvents(_ context.Context, caseID string, filter types.EventFilter) (int64, error) {
	kept := make([]types.TimelineEvent, 0, len(m.events))
	var removed int64
	for _, e := range m.events {
		if e.CaseID == caseID && filter.Matches(&e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

func (m *memStore) EventsByCase(_ context.Context, caseID string) ([]*types.TimelineEvent, error) {
	var out []*types.TimelineEvent
	for _, e := range m.events {
		if e.CaseID == caseID {
			e := e
			out = append(out, &e)
		}
	}
	return out, nil
}

func (m *memStore) FlagForReview(_ context.Context, flag *types.ReviewFlag) error {
	m.flags = append(m.flags, *flag)
	return nil
}

func (m *memStore) DonationRequest(_ context.Context, requestID string) (*types.DonationRequest, error) {
	r, ok := m.requests[requestID]
	if !ok {
		return nil, types.ErrDonationRequestNotFound
	}
	return &r, nil
}

func (m *memStore) CreateDonationRequest(_ context.Context, request *types.DonationRequest) error {
	m.requests[request.ID] = *request
	return nil
}

func (m *memStore) UpdateDonationRequest(_ context.Context, request *types.DonationRequest) error {
	if _, ok := m.requests[request.ID]; !ok {
		return types.ErrDonationRequestNotFound
	}
	m.requests[request.ID] = *request
	return nil
}

// putCase writes a case directly, bypassing the workflow.
func (m *memStore) putCase(c types.Case) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c
}

func (m *memStore) reviewFlags() []types.ReviewFlag {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ReviewFlag(nil), m.flags...)
}

// stepClock advances by a minute on every reading so events order strictly.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

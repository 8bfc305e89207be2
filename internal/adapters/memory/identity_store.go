package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darrenapfel/theagnt-website-sub001/internal/domain/model"
	"github.com/darrenapfel/theagnt-website-sub001/internal/ports"
)

var (
	_ ports.AccountStore  = (*IdentityStore)(nil)
	_ ports.UserDirectory = (*IdentityStore)(nil)
	_ ports.WaitlistStore = (*IdentityStore)(nil)
)

// IdentityStore is an in-process stand-in for the relational identity store.
type IdentityStore struct {
	mu       sync.RWMutex
	users    map[string]model.User // keyed by normalized email
	waitlist map[string]model.WaitlistEntry
	now      func() time.Time
}

// NewIdentityStore creates an empty identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		users:    make(map[string]model.User),
		waitlist: make(map[string]model.WaitlistEntry),
		now:      time.Now,
	}
}

func (s *IdentityStore) EnsureUser(_ context.Context, req model.EnsureUserRequest) (model.User, error) {
	req.Normalize()
	if req.Email == "" {
		return model.User{}, errors.New("email is required and cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[req.Email]; ok {
		return u, nil
	}
	displayName := req.DisplayName
	if displayName == "" {
		displayName = model.DisplayNameFromEmail(req.Email)
	}
	u := model.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		DisplayName: displayName,
		Provider:    req.Provider,
		CreatedAt:   s.now().UTC(),
	}
	s.users[req.Email] = u
	return u, nil
}

func (s *IdentityStore) RecordSignIn(_ context.Context, email string, at time.Time) error {
	email = strings.ToLower(strings.TrimSpace(email))
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return errors.New("user not found")
	}
	ts := at.UTC()
	u.LastSignInAt = &ts
	s.users[email] = u
	return nil
}

func (s *IdentityStore) ListUsers(_ context.Context, opts model.UserListOptions) ([]model.User, error) {
	s.mu.RLock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		if matchesDomain(u.Email, opts.Domain) {
			out = append(out, u)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (s *IdentityStore) CountUsers(_ context.Context, domain string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if matchesDomain(u.Email, domain) {
			n++
		}
	}
	return n, nil
}

func (s *IdentityStore) AddToWaitlist(_ context.Context, email string) (model.WaitlistEntry, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return model.WaitlistEntry{}, errors.New("email is required and cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.waitlist[email]; ok {
		return e, nil
	}
	e := model.WaitlistEntry{ID: uuid.NewString(), Email: email, CreatedAt: s.now().UTC()}
	s.waitlist[email] = e
	return e, nil
}

func (s *IdentityStore) ListWaitlist(
	_ context.Context,
	opts model.WaitlistListOptions,
) ([]model.WaitlistEntry, error) {
	s.mu.RLock()
	out := make([]model.WaitlistEntry, 0, len(s.waitlist))
	for email, e := range s.waitlist {
		_, e.Converted = s.users[email]
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (s *IdentityStore) CountWaitlist(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	converted := 0
	for email := range s.waitlist {
		if _, ok := s.users[email]; ok {
			converted++
		}
	}
	return len(s.waitlist), converted, nil
}

func matchesDomain(email, domain string) bool {
	if domain == "" {
		return true
	}
	return strings.HasSuffix(email, "@"+strings.ToLower(domain))
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

package core

import (
	"sort"
	"sync"

	"provcore/pkg/domain"
)

// participantSet holds the authorization roster. The admin is seeded at
// construction with the admin role, is always authorized, and cannot be
// removed. There is no de-authorization operation anywhere in the set:
// once an identity is granted a role, both survive for the lifetime of
// the registry.
type participantSet struct {
	mu       sync.RWMutex
	admin    string
	byID     map[string]domain.Participant
	eventSeq uint64
}

func newParticipantSet(admin string) *participantSet {
	ps := &participantSet{
		admin: admin,
		byID:  make(map[string]domain.Participant),
	}
	ps.byID[admin] = domain.Participant{
		Identity:   admin,
		Role:       domain.RoleAdmin,
		Authorized: true,
	}
	return ps
}

// isAuthorized reports whether identity is on the roster. Unknown
// identities are simply unauthorized, never an error.
func (ps *participantSet) isAuthorized(identity string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.byID[identity]
	return ok && p.Authorized
}

// require returns ErrNotAuthorized unless identity is authorized.
func (ps *participantSet) require(identity string) error {
	if !ps.isAuthorized(identity) {
		return domain.ErrNotAuthorized{Identity: identity}
	}
	return nil
}

// roleOf returns the stored role for identity, or the empty string when
// the identity is unknown.
func (ps *participantSet) roleOf(identity string) string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.byID[identity].Role
}

func (ps *participantSet) find(identity string) (domain.Participant, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.byID[identity]
	return p, ok
}

// list returns the roster sorted by identity.
func (ps *participantSet) list() []domain.Participant {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]domain.Participant, 0, len(ps.byID))
	for _, p := range ps.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// grant validates an authorization request under the write lock and
// commits the new participant. The role is stored exactly as given. A
// non-nil emit runs before the lock is released, which keeps the
// participant event stream in commit order.
func (ps *participantSet) grant(caller, target, role string, emit func(p domain.Participant, seq uint64)) (domain.Participant, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if caller != ps.admin {
		return domain.Participant{}, domain.ErrUnauthorized{Identity: caller}
	}
	if target == "" {
		return domain.Participant{}, domain.ErrInvalidTarget{Identity: target}
	}
	if existing, ok := ps.byID[target]; ok && existing.Authorized {
		return domain.Participant{}, domain.ErrAlreadyAuthorized{Identity: target, Role: existing.Role}
	}
	p := domain.Participant{Identity: target, Role: role, Authorized: true}
	ps.byID[target] = p
	ps.eventSeq++
	if emit != nil {
		emit(p, ps.eventSeq)
	}
	return p, nil
}

func (ps *participantSet) snapshot() ([]domain.Participant, string, uint64) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]domain.Participant, 0, len(ps.byID))
	for _, p := range ps.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, ps.admin, ps.eventSeq
}

func (ps *participantSet) restore(participants []domain.Participant, eventSeq uint64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.byID = make(map[string]domain.Participant, len(participants)+1)
	for _, p := range participants {
		ps.byID[p.Identity] = p
	}
	if _, ok := ps.byID[ps.admin]; !ok {
		ps.byID[ps.admin] = domain.Participant{
			Identity:   ps.admin,
			Role:       domain.RoleAdmin,
			Authorized: true,
		}
	}
	ps.eventSeq = eventSeq
}

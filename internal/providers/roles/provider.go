// Package roles abstracts the external role directory the lifecycle engine
// grants and restores roles through. The chat-platform binding lives behind
// this interface; the in-memory directory backs local deployments and tests.
package roles

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var ErrMemberUnknown = errors.New("member_unknown")

type Provider interface {
	// MemberRoles returns the member's current role IDs.
	MemberRoles(ctx context.Context, orgID, memberID snowflake.ID) ([]int64, error)
	// GrantRole adds a role to the member. Granting a role the member
	// already holds is a no-op.
	GrantRole(ctx context.Context, orgID, memberID snowflake.ID, roleID int64) error
	// RevokeRole removes a role from the member. Revoking a role the
	// member does not hold is a no-op.
	RevokeRole(ctx context.Context, orgID, memberID snowflake.ID, roleID int64) error
}

type memberKey struct {
	orgID    snowflake.ID
	memberID snowflake.ID
}

// Directory is an in-memory role store.
type Directory struct {
	mu      sync.RWMutex
	members map[memberKey][]int64
}

func NewDirectory() *Directory {
	return &Directory{members: make(map[memberKey][]int64)}
}

func (d *Directory) MemberRoles(ctx context.Context, orgID, memberID snowflake.ID) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roles, ok := d.members[memberKey{orgID: orgID, memberID: memberID}]
	if !ok {
		return nil, ErrMemberUnknown
	}
	out := make([]int64, len(roles))
	copy(out, roles)
	return out, nil
}

func (d *Directory) GrantRole(ctx context.Context, orgID, memberID snowflake.ID, roleID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := memberKey{orgID: orgID, memberID: memberID}
	roles, ok := d.members[key]
	if !ok {
		return ErrMemberUnknown
	}
	for _, id := range roles {
		if id == roleID {
			return nil
		}
	}
	d.members[key] = append(roles, roleID)
	return nil
}

func (d *Directory) RevokeRole(ctx context.Context, orgID, memberID snowflake.ID, roleID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := memberKey{orgID: orgID, memberID: memberID}
	roles, ok := d.members[key]
	if !ok {
		return ErrMemberUnknown
	}
	kept := roles[:0]
	for _, id := range roles {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	d.members[key] = kept
	return nil
}

// SeedMember registers a member with an initial role set. Registration
// happens out of band in production; tests and local setups use this.
func (d *Directory) SeedMember(orgID, memberID snowflake.ID, roleIDs []int64) {
	stored := make([]int64, len(roleIDs))
	copy(stored, roleIDs)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[memberKey{orgID: orgID, memberID: memberID}] = stored
}

var _ Provider = (*Directory)(nil)

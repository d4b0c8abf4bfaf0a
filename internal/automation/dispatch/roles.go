package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role is the normalised staff role used to route copies.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleFrontDesk  Role = "front_desk"
	RoleDoctor     Role = "doctor"
	RoleNurse      Role = "nurse"
	RolePharmacist Role = "pharmacist"
	RoleAccountant Role = "accountant"
	RoleOther      Role = "other"
)

// EscalationRoles receive copies of escalated intents.
var EscalationRoles = []Role{RoleAdmin, RoleFrontDesk}

// RoleMap maps raw role names, lower-cased, to roles. Resolve is total:
// names that are not in the map become RoleOther.
type RoleMap map[string]Role

// DefaultRoleMap covers the role names clinics use in practice.
func DefaultRoleMap() RoleMap {
	return RoleMap{
		"admin":          RoleAdmin,
		"administrator":  RoleAdmin,
		"owner":          RoleAdmin,
		"clinic_manager": RoleAdmin,
		"manager":        RoleAdmin,
		"front_desk":     RoleFrontDesk,
		"frontdesk":      RoleFrontDesk,
		"receptionist":   RoleFrontDesk,
		"reception":      RoleFrontDesk,
		"doctor":         RoleDoctor,
		"physician":      RoleDoctor,
		"nurse":          RoleNurse,
		"pharmacist":     RolePharmacist,
		"pharmacy":       RolePharmacist,
		"accountant":     RoleAccountant,
		"billing":        RoleAccountant,
	}
}

// Resolve maps a raw role name.
func (m RoleMap) Resolve(raw string) Role {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	if role, ok := m[key]; ok {
		return role
	}
	return RoleOther
}

// StaffMember is the roster input from the record store.
type StaffMember struct {
	ID      uuid.UUID
	UserID  *uuid.UUID
	Name    string
	Email   string
	Phone   string
	RawRole string
}

// StaffDirectory lists a tenant's active staff.
type StaffDirectory interface {
	ListActiveStaff(ctx context.Context, tenantID *uuid.UUID) ([]StaffMember, error)
}

// Roster is a tenant's staff grouped by resolved role.
type Roster struct {
	byRole map[Role][]Recipient
}

// NewRoster resolves every member's role once.
func NewRoster(members []StaffMember, roles RoleMap) Roster {
	r := Roster{byRole: make(map[Role][]Recipient)}
	for _, m := range members {
		role := roles.Resolve(m.RawRole)
		r.byRole[role] = append(r.byRole[role], Recipient{
			ID:     m.ID,
			Kind:   RecipientStaff,
			Name:   m.Name,
			Phone:  m.Phone,
			Email:  m.Email,
			UserID: m.UserID,
		})
	}
	return r
}

// WithRoles returns the members holding any of the roles, without duplicates.
func (r Roster) WithRoles(roles ...Role) []Recipient {
	seen := make(map[uuid.UUID]struct{})
	out := make([]Recipient, 0)
	for _, role := range roles {
		for _, rec := range r.byRole[role] {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			out = append(out, rec)
		}
	}
	return out
}

type rosterEntry struct {
	roster  Roster
	expires time.Time
}

// RosterCache builds each tenant's roster once per TTL.
type RosterCache struct {
	dir   StaffDirectory
	roles RoleMap
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]rosterEntry
}

// NewRosterCache returns a cache over dir. A non-positive ttl disables caching.
func NewRosterCache(dir StaffDirectory, roles RoleMap, ttl time.Duration) *RosterCache {
	if roles == nil {
		roles = DefaultRoleMap()
	}
	return &RosterCache{
		dir:     dir,
		roles:   roles,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]rosterEntry),
	}
}

// Get returns the tenant roster, loading it when missing or expired.
func (c *RosterCache) Get(ctx context.Context, tenantID *uuid.UUID) (Roster, error) {
	key := "untenanted"
	if tenantID != nil {
		key = tenantID.String()
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return entry.roster, nil
	}

	members, err := c.dir.ListActiveStaff(ctx, tenantID)
	if err != nil {
		return Roster{}, err
	}
	roster := NewRoster(members, c.roles)

	if c.ttl > 0 {
		c.mu.Lock()
		c.entries[key] = rosterEntry{roster: roster, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return roster, nil
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/doorman-auth/doorman/internal/store"
)

// AccessStore implements store.AccessStore using in-memory storage.
// Roles and permissions are reference data; SeedRole stands in for the seed
// migration of the postgres store.
type AccessStore struct {
	mu sync.RWMutex

	nextRoleID int64
	nextPermID int64
	roles      map[string]int64            // role key -> role id
	perms      map[int64]string            // perm id -> perm key
	permIDs    map[string]int64            // perm key -> perm id
	rolePerms  map[int64]map[int64]struct{} // role id -> perm ids
	userRoles  map[int64]map[int64]struct{} // user id -> role ids
}

// NewAccessStore creates a new in-memory access store with no roles
// configured.
func NewAccessStore() *AccessStore {
	return &AccessStore{
		nextRoleID: 1,
		nextPermID: 1,
		roles:      make(map[string]int64),
		perms:      make(map[int64]string),
		permIDs:    make(map[string]int64),
		rolePerms:  make(map[int64]map[int64]struct{}),
		userRoles:  make(map[int64]map[int64]struct{}),
	}
}

// SeedRole registers a role and the permissions it grants. Repeated calls
// for the same role accumulate permissions.
func (s *AccessStore) SeedRole(roleKey string, permKeys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roleID, exists := s.roles[roleKey]
	if !exists {
		roleID = s.nextRoleID
		s.nextRoleID++
		s.roles[roleKey] = roleID
		s.rolePerms[roleID] = make(map[int64]struct{})
	}

	for _, permKey := range permKeys {
		permID, exists := s.permIDs[permKey]
		if !exists {
			permID = s.nextPermID
			s.nextPermID++
			s.permIDs[permKey] = permID
			s.perms[permID] = permKey
		}
		s.rolePerms[roleID][permID] = struct{}{}
	}
}

// RolesOf returns the user's distinct role keys, sorted.
func (s *AccessStore) RolesOf(ctx context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := []string{}
	for roleKey, roleID := range s.roles {
		if _, held := s.userRoles[userID][roleID]; held {
			keys = append(keys, roleKey)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// PermissionsOf returns the distinct permission keys granted by the user's
// roles, sorted. Always recomputed from the associations, never cached.
func (s *AccessStore) PermissionsOf(ctx context.Context, userID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]struct{})
	keys := []string{}
	for roleID := range s.userRoles[userID] {
		for permID := range s.rolePerms[roleID] {
			if _, dup := seen[permID]; dup {
				continue
			}
			seen[permID] = struct{}{}
			keys = append(keys, s.perms[permID])
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// RoleExists reports whether a role key is configured.
func (s *AccessStore) RoleExists(ctx context.Context, roleKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.roles[roleKey]
	return exists, nil
}

// AssignRole attaches a role to a user; unknown keys are skipped.
func (s *AccessStore) AssignRole(ctx context.Context, userID int64, roleKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roleID, exists := s.roles[roleKey]
	if !exists {
		return false, nil
	}

	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[int64]struct{})
	}
	s.userRoles[userID][roleID] = struct{}{}
	return true, nil
}

// ReplaceRoles swaps the user's assignments for the recognized subset of
// roleKeys. Unknown keys come back in skipped.
func (s *AccessStore) ReplaceRoles(ctx context.Context, userID int64, roleKeys []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[int64]struct{})
	skipped := []string{}
	for _, roleKey := range roleKeys {
		roleID, exists := s.roles[roleKey]
		if !exists {
			skipped = append(skipped, roleKey)
			continue
		}
		next[roleID] = struct{}{}
	}

	s.userRoles[userID] = next
	return skipped, nil
}

var _ store.AccessStore = (*AccessStore)(nil)

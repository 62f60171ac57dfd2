package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func userID(u core.User) string   { return u.ID }
func userName(u core.User) string { return u.Username }

// ListUsers returns the users in insertion order.
func (s *Store) ListUsers() []core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.snap.Users)
}

// FindUser looks a user up by exact, case-sensitive username.
func (s *Store) FindUser(username string) (core.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.snap.Users, userName, username)
	if i < 0 {
		return core.User{}, false
	}
	return s.snap.Users[i], true
}

// UpsertUser adds a user with a generated id. Users are never edited in
// place; a username that already exists fails with core.ErrDuplicateUsername.
func (s *Store) UpsertUser(ctx context.Context, user core.User) (saved core.User, err error) {
	defer func() { s.observe(ctx, EntityUser, log.OpCreate, cmp.Or(saved.ID, user.Username), err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.User{}, core.ErrClosed
	}

	user.Username = strings.TrimSpace(user.Username)
	if err := user.Validate(); err != nil {
		return core.User{}, err
	}
	if indexOf(s.snap.Users, userName, user.Username) >= 0 {
		return core.User{}, fmt.Errorf("%w: %q", core.ErrDuplicateUsername, user.Username)
	}

	user.ID = s.newID()
	next := s.snap
	next.Users = append(slices.Clone(s.snap.Users), user)
	if err := s.commit(ctx, next, storage.KeyUsers); err != nil {
		return core.User{}, err
	}
	return user, nil
}

// DeleteUser removes the user with id. The last admin cannot be removed.
// Deleting an unknown id is a no-op.
func (s *Store) DeleteUser(ctx context.Context, id string) (err error) {
	defer func() { s.observe(ctx, EntityUser, log.OpDelete, id, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return core.ErrClosed
	}

	i := indexOf(s.snap.Users, userID, id)
	if i < 0 {
		return nil
	}
	if s.snap.Users[i].IsAdmin() && countAdmins(s.snap.Users) == 1 {
		return core.ErrLastAdmin
	}

	users, _ := deleteByKey(s.snap.Users, userID, id)
	next := s.snap
	next.Users = users
	return s.commit(ctx, next, storage.KeyUsers)
}

func countAdmins(users []core.User) int {
	n := 0
	for _, u := range users {
		if u.IsAdmin() {
			n++
		}
	}
	return n
}

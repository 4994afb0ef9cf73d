package security

import (
	"fmt"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
)

// UserStore holds the users and groups known to the service. It is built
// once at startup and only read afterwards.
type UserStore struct {
	users  map[string]*model.User
	groups map[string]*model.Group
}

// NewUserStore validates and indexes users and groups. Duplicate names,
// missing or unexpanded passwords and references to undefined groups are
// configuration errors.
func NewUserStore(users []model.User, groups []model.Group) (*UserStore, error) {
	s := &UserStore{
		users:  make(map[string]*model.User, len(users)),
		groups: make(map[string]*model.Group, len(groups)),
	}

	for i := range groups {
		g := groups[i]
		if g.Name == "" {
			return nil, fmt.Errorf("userstore: group %d has no name", i)
		}
		if _, dup := s.groups[g.Name]; dup {
			return nil, fmt.Errorf("userstore: duplicate group %q", g.Name)
		}
		s.groups[g.Name] = &g
	}

	for i := range users {
		u := users[i]
		if u.Username == "" {
			return nil, fmt.Errorf("userstore: user %d has no username", i)
		}
		if _, dup := s.users[u.Username]; dup {
			return nil, fmt.Errorf("userstore: duplicate user %q", u.Username)
		}
		if u.Password == "" {
			return nil, fmt.Errorf("%w: user %q has no password", ErrMissingCredential, u.Username)
		}
		if config.HasEnvRef(u.Password) {
			return nil, fmt.Errorf("%w: password of user %q references an unset variable", ErrMissingCredential, u.Username)
		}
		for _, g := range u.Groups {
			if _, ok := s.groups[g]; !ok {
				return nil, fmt.Errorf("%w: user %q is in group %q (define the group under groups, even with no roles)", ErrUnknownGroup, u.Username, g)
			}
		}
		s.users[u.Username] = &u
	}
	return s, nil
}

// User looks up a user by name.
func (s *UserStore) User(username string) (*model.User, bool) {
	u, ok := s.users[username]
	return u, ok
}

// Group looks up a group by name.
func (s *UserStore) Group(name string) (*model.Group, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Len returns the number of users.
func (s *UserStore) Len() int {
	return len(s.users)
}

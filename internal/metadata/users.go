package metadata

import (
	"context"
	"errors"

	"github.com/arencloud/sitehost/internal/models"
)

// ErrUserExists is returned by Create when the username is already taken.
var ErrUserExists = errors.New("metadata: user already exists")

// Users is the account repository backed by users.json.
type Users struct {
	c *Client
}

func NewUsers(c *Client) *Users {
	return &Users{c: c}
}

// Get returns the user for username and whether it exists.
func (u *Users) Get(ctx context.Context, username string) (models.User, bool, error) {
	all, err := u.all(ctx)
	if err != nil {
		return models.User{}, false, err
	}
	user, ok := all[username]
	return user, ok, nil
}

// Create stores a new user. The whole collection is rewritten; concurrent
// registrations are last-writer-wins.
func (u *Users) Create(ctx context.Context, username string, user models.User) error {
	all, err := u.all(ctx)
	if err != nil {
		return err
	}
	if _, ok := all[username]; ok {
		return ErrUserExists
	}
	all[username] = user
	return u.c.save(ctx, usersObject, all)
}

func (u *Users) all(ctx context.Context) (map[string]models.User, error) {
	all := map[string]models.User{}
	if err := u.c.load(ctx, usersObject, &all); err != nil {
		return nil, err
	}
	return all, nil
}

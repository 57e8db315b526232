package memory

import (
	"context"

	"chatty/cmd/identity"
)

type userStore struct {
	st *state
}

func (s *userStore) find(match func(identity.User) bool) *identity.User {
	for _, u := range s.st.users {
		if match(u) {
			c := cloneUser(u)
			return &c
		}
	}
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*identity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := s.st.users[id]
	if !ok {
		return nil, nil
	}
	c := cloneUser(u)
	return &c, nil
}

func (s *userStore) GetByEmail(ctx context.Context, normalizedEmail string) (*identity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalizedEmail == "" {
		return nil, nil
	}
	return s.find(func(u identity.User) bool { return u.NormalizedEmail == normalizedEmail }), nil
}

func (s *userStore) GetByUserName(ctx context.Context, normalizedUserName string) (*identity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if normalizedUserName == "" {
		return nil, nil
	}
	return s.find(func(u identity.User) bool { return u.NormalizedUserName == normalizedUserName }), nil
}

func (s *userStore) IsEmailTaken(ctx context.Context, normalizedEmail string) (bool, error) {
	u, err := s.GetByEmail(ctx, normalizedEmail)
	return u != nil, err
}

func (s *userStore) IsUserNameTaken(ctx context.Context, normalizedUserName string) (bool, error) {
	u, err := s.GetByUserName(ctx, normalizedUserName)
	return u != nil, err
}

func (s *userStore) Add(ctx context.Context, u identity.User) error {
	const op = "identity.Add"

	if err := ctx.Err(); err != nil {
		return err
	}
	if u.ID == "" || u.NormalizedEmail == "" || u.NormalizedUserName == "" {
		return identity.OpError{Op: op, Kind: identity.ErrInvalidInput, Msg: "missing id or normalized keys"}
	}
	if _, ok := s.st.users[u.ID]; ok {
		return identity.ConflictError{Op: op, Field: "id"}
	}
	for _, existing := range s.st.users {
		if existing.NormalizedUserName == u.NormalizedUserName {
			return identity.ConflictError{Op: op, Field: identity.FieldUserName}
		}
		if existing.NormalizedEmail == u.NormalizedEmail {
			return identity.ConflictError{Op: op, Field: identity.FieldEmail}
		}
	}

	s.st.users[u.ID] = cloneUser(u)
	return nil
}

func (s *userStore) Update(ctx context.Context, u identity.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cur, ok := s.st.users[u.ID]
	if !ok {
		return identity.NotFoundError{Op: "identity.Update", Resource: "user"}
	}

	next := cloneUser(u)
	cur.PasswordHash = next.PasswordHash
	cur.DisplayName = next.DisplayName
	cur.UpdatedAt = next.UpdatedAt
	cur.IsDeleted = next.IsDeleted
	s.st.users[u.ID] = cur
	return nil
}

package services

import (
	"context"
	"strings"

	"ecoenzim-service/models"
)

// UserService manages the local points-holder rows.
type UserService struct {
	deps Deps
}

func NewUserService(deps Deps) *UserService {
	return &UserService{deps: deps.withDefaults()}
}

// Ensure creates the actor's row on first sight. Existing rows are returned untouched.
func (s *UserService) Ensure(ctx context.Context, actor Actor) (*models.User, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, Validation(CodeValidationFailed, "user id is required")
	}
	return s.deps.Store.EnsureUser(ctx, &models.User{ID: actor.ID, Role: actor.Role})
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.deps.Store.FindUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeUserNotFound, "user not found")
		}
		return nil, err
	}
	return u, nil
}

// Resolve finds a user by username. Only the user themself or an admin may look one up.
func (s *UserService) Resolve(ctx context.Context, actor Actor, username string) (*models.User, error) {
	u, err := s.deps.Store.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if isNotFound(err) {
			return nil, NotFound(CodeUserNotFound, "user not found")
		}
		return nil, err
	}
	if u.ID != actor.ID && !actor.IsAdmin() {
		return nil, Forbidden(CodeForbidden, "not allowed to view this user")
	}
	return u, nil
}

// Sync mirrors profile fields from the identity service.
func (s *UserService) Sync(ctx context.Context, users []models.User) error {
	return s.deps.Store.UpsertUsers(ctx, users)
}

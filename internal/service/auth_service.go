package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/reisinl/veg-shop/internal/entity"
	"github.com/reisinl/veg-shop/internal/repository"
	"github.com/reisinl/veg-shop/internal/session"
)

// AuthService logs people in and out and resolves session tokens.
type AuthService struct {
	store    repository.Store
	sessions session.Store
}

func NewAuthService(store repository.Store, sessions session.Store) *AuthService {
	return &AuthService{store: store, sessions: sessions}
}

// HashPassword is used when creating accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*session.Session, *entity.Person, error) {
	p, err := s.store.Repos().Persons.FindByUsername(ctx, username)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, nil, entity.ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load person: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		slog.Info("Rejected login", "username", username)
		return nil, nil, entity.ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Service: Logged in", "person_id", p.ID, "role", p.Role())
	return sess, p, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Resolve turns a session token into the actor it belongs to.
func (s *AuthService) Resolve(ctx context.Context, token string) (Actor, error) {
	if token == "" {
		return Actor{}, entity.ErrUnauthenticated
	}
	sess, err := s.sessions.Get(ctx, token)
	if errors.Is(err, session.ErrNoSession) {
		return Actor{}, entity.ErrUnauthenticated
	}
	if err != nil {
		return Actor{}, err
	}
	return Actor{PersonID: sess.PersonID, Username: sess.Username, Role: sess.Role}, nil
}

// Me returns the actor's own record, including the customer account.
func (s *AuthService) Me(ctx context.Context, actor Actor) (*entity.Person, error) {
	p, err := s.store.Repos().Persons.FindByID(ctx, actor.PersonID)
	if err != nil {
		return nil, fmt.Errorf("failed to load person %d: %w", actor.PersonID, err)
	}
	return p, nil
}

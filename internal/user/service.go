package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/core/events"
	"golang.org/x/crypto/bcrypt"
)

type Repository interface {
	GetByID(id int64) (*User, error)
	GetByEmail(email string) (*User, error)
	List() ([]*User, error)
	Create(u *User) error
	SetBanned(id int64, banned bool) error
}

// EventPublisher mirrors the access event bus; may be nil.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type Service struct {
	repo       Repository
	publisher  EventPublisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo Repository, publisher EventPublisher, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) GetByID(id int64) (*User, error) {
	u, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	if u == nil {
		return nil, internal.ErrUserNotFound
	}
	return u, nil
}

func (s *Service) List() ([]*User, error) {
	users, err := s.repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Create validates the request, rejects duplicate emails before insert, and
// persists with a bcrypt hash. Validation aborts before any mutation.
func (s *Service) Create(dto CreateUserDTO) (*User, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("user validation failed", "email", dto.Email, "error", err)
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	existing, err := s.repo.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		return nil, internal.NewConflictError(
			fmt.Sprintf("a user with email %s already exists", email), internal.ErrCodeDuplicateEmail)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	now := time.Now()
	u := &User{
		Name:         strings.TrimSpace(dto.Name),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(u); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// SetBanned flips the ban flag. The session guard picks the flag up on the
// next request from any live session of this account.
func (s *Service) SetBanned(ctx context.Context, id int64, banned bool) error {
	u, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if err := s.repo.SetBanned(u.ID, banned); err != nil {
		return fmt.Errorf("failed to update ban flag: %w", err)
	}

	if banned && s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewUserBannedEvent(u.ID)); err != nil {
			s.logger.Error("failed to publish ban event", "user_id", u.ID, "error", err)
		}
	}

	s.logger.Info("user ban flag updated", "user_id", u.ID, "banned", banned)
	return nil
}

// IsBanned reports the current ban flag; used by the session guard on every
// authenticated request.
func (s *Service) IsBanned(id int64) (bool, error) {
	u, err := s.repo.GetByID(id)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, internal.ErrUserNotFound
	}
	return u.IsBanned, nil
}

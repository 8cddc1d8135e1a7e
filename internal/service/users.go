package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/PaulBabatuyi/files-manager/internal/database"
	"github.com/PaulBabatuyi/files-manager/internal/models"
	"github.com/PaulBabatuyi/files-manager/internal/session"
)

type UserService struct {
	db       database.UserStore
	sessions *session.Store
	queue    Enqueuer
	logger   *zap.Logger
	cost     int
}

func NewUserService(db database.UserStore, sessions *session.Store, q Enqueuer, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		db:       db,
		sessions: sessions,
		queue:    q,
		logger:   logger.Named("users"),
		cost:     bcrypt.DefaultCost,
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *UserService) WithHashCost(cost int) *UserService {
	s.cost = cost
	return s
}

func (s *UserService) internal(op string, err error) error {
	s.logger.Error(op, zap.Error(err))
	return Internal(err)
}

// Register creates a user and schedules the welcome job.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" {
		return nil, BadRequest("Missing email")
	}
	if password == "" {
		return nil, BadRequest("Missing password")
	}

	_, err := s.db.FindUserByEmail(ctx, email)
	if err == nil {
		return nil, BadRequest("Already exist")
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, s.internal("lookup user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, s.internal("hash password", err)
	}

	user, err := s.db.CreateUser(ctx, &models.User{Email: email, PasswordHash: string(hash)})
	if errors.Is(err, database.ErrAlreadyExists) {
		// lost a race with a concurrent registration
		return nil, BadRequest("Already exist")
	}
	if err != nil {
		return nil, s.internal("create user", err)
	}

	if _, err := s.queue.Enqueue(ctx, models.TopicUser, models.WelcomePayload{UserID: user.ID}); err != nil {
		s.logger.Error("failed to enqueue welcome job",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return user, nil
}

// Authenticate checks the credentials and issues a new session token.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", Unauthorized()
	}

	user, err := s.db.FindUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", Unauthorized()
	}
	if err != nil {
		return "", s.internal("lookup user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", Unauthorized()
	}

	token, err := s.sessions.Issue(ctx, user.ID)
	if err != nil {
		return "", s.internal("issue session", err)
	}
	return token, nil
}

// ResolveToken maps a token to its user id.
func (s *UserService) ResolveToken(ctx context.Context, token string) (string, error) {
	userID, err := s.sessions.Validate(ctx, token)
	if errors.Is(err, session.ErrNotFound) {
		return "", Unauthorized()
	}
	if err != nil {
		return "", s.internal("validate session", err)
	}
	return userID, nil
}

// Deauthenticate revokes token. Only live tokens can be revoked.
func (s *UserService) Deauthenticate(ctx context.Context, token string) error {
	if _, err := s.ResolveToken(ctx, token); err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return s.internal("revoke session", err)
	}
	return nil
}

// CurrentUser returns the user bound to token.
func (s *UserService) CurrentUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.db.FindUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, Unauthorized()
	}
	if err != nil {
		return nil, s.internal("load user", err)
	}
	return user, nil
}

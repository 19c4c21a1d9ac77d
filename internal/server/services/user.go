// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and session verification.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/calbot/internal/common"
	"github.com/dmitrijs2005/calbot/internal/dbx"
	"github.com/dmitrijs2005/calbot/internal/logging"
	"github.com/dmitrijs2005/calbot/internal/server/auth"
	"github.com/dmitrijs2005/calbot/internal/server/identity"
	"github.com/dmitrijs2005/calbot/internal/server/models"
	"github.com/dmitrijs2005/calbot/internal/server/repositories/repomanager"
)

// Session is the result of a successful register or login.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// UserService provides authentication-related operations:
// - Register: create users keyed by their derived identity id
// - Login: verify credentials and mint a session token
// - Authenticate: verify a session token
type UserService struct {
	pool        dbx.Runner
	repomanager repomanager.RepositoryManager
	resolver    *identity.Resolver
	issuer      *auth.Issuer
	logger      logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService constructs a UserService.
func NewUserService(pool dbx.Runner, m repomanager.RepositoryManager, issuer *auth.Issuer, logger logging.Logger) *UserService {
	return &UserService{
		pool:        pool,
		repomanager: m,
		resolver:    identity.NewResolver(pool, m),
		issuer:      issuer,
		logger:      logger,
	}
}

// Register creates a user for email. An already registered email (in any
// casing or surrounding whitespace) yields common.ErrorAlreadyExists and
// writes nothing.
func (s *UserService) Register(ctx context.Context, email, password string) (*Session, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		return nil, err
	}
	if res.Exists {
		return nil, common.ErrorAlreadyExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	bag, err := models.EncodeUserBag(models.UserBag{Email: res.Email, PasswordHash: hash})
	if err != nil {
		return nil, err
	}

	var row *models.Row
	err = s.pool.Run(ctx, "users.Register", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		row, err = s.repomanager.Users(q).Insert(ctx, res.ID, res.ID, bag)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Registered", "uid", res.ID)
	return s.newSession(row)
}

// Login verifies email and password. Unknown users and wrong passwords are
// both reported as common.ErrorInvalidCredentials. A hash produced with
// outdated parameters is replaced on success.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, email)
	if err != nil {
		return nil, err
	}
	if !res.Exists {
		// keep timing close to the known-user path
		_, _ = auth.VerifyPassword(password, s.dummy())
		return nil, common.ErrorInvalidCredentials
	}

	bag, err := models.DecodeUserBag(res.Row.Bag)
	if err != nil {
		s.logger.Error(ctx, "corrupt user bag", "uid", res.ID, "error", err)
		return nil, common.ErrorInvalidCredentials
	}

	ok, err := auth.VerifyPassword(password, bag.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "unreadable password hash", "uid", res.ID, "error", err)
		return nil, common.ErrorInvalidCredentials
	}
	if !ok {
		return nil, common.ErrorInvalidCredentials
	}

	row := res.Row
	if auth.NeedsRehash(bag.PasswordHash) {
		if updated, err := s.rehash(ctx, res.ID, bag, password); err != nil {
			s.logger.Warn(ctx, "password rehash failed", "uid", res.ID, "error", err)
		} else {
			row = updated
		}
	}

	return s.newSession(row)
}

// Authenticate verifies a session token and returns its claims.
func (s *UserService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	return s.issuer.VerifyToken(token)
}

// Get returns the user with the given identity id or common.ErrorNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if !isID(id) {
		return nil, common.ErrorNotFound
	}

	var row *models.Row
	err := s.pool.Run(ctx, "users.Get", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		row, err = s.repomanager.Users(q).FetchOne(ctx, id, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return models.UserFromRow(row)
}

func (s *UserService) rehash(ctx context.Context, id string, bag models.UserBag, password string) (*models.Row, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	bag.PasswordHash = hash
	raw, err := models.EncodeUserBag(bag)
	if err != nil {
		return nil, err
	}

	var row *models.Row
	err = s.pool.Run(ctx, "users.Rehash", func(ctx context.Context, q dbx.DBTX) error {
		var err error
		row, err = s.repomanager.Users(q).Upsert(ctx, id, id, raw)
		return err
	})
	return row, err
}

func (s *UserService) newSession(row *models.Row) (*Session, error) {
	user, err := models.UserFromRow(row)
	if err != nil {
		return nil, err
	}
	token, err := s.issuer.IssueToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token, ExpiresAt: time.Now().Add(s.issuer.TTL())}, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := auth.HashPassword("calbot-unknown-user")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

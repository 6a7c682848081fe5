// Package session authenticates bidders and admins. Passwords are stored as
// bcrypt hashes; a successful login hands out a signed token that the
// transports pass back on every request.
package session

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/delta/auction-house-server/models"
	"github.com/delta/auction-house-server/utils"
)

const minPasswordLength = 8

// UserStore is the part of the ledger store sessions need
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userId uint32) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Session is an authenticated caller
type Session struct {
	Token     string
	UserId    uint32
	IsAdmin   bool
	ExpiresAt time.Time
}

type claims struct {
	UserId  uint32 `json:"uid"`
	IsAdmin bool   `json:"adm,omitempty"`
	jwt.StandardClaims
}

type Config struct {
	Secret    string
	TTL       time.Duration
	CacheSize int
	Clock     utils.Clock
}

type Manager struct {
	logger *logrus.Entry

	users  UserStore
	secret []byte
	ttl    time.Duration
	clock  utils.Clock
	parser *jwt.Parser

	// validated holds parsed sessions by token, revoked holds logged out token ids
	validated *lru.Cache
	revoked   *lru.Cache
}

func NewManager(users UserStore, config Config) (*Manager, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("session secret is not set")
	}
	if config.TTL <= 0 {
		config.TTL = 12 * time.Hour
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1000
	}
	if config.Clock == nil {
		config.Clock = utils.SystemClock
	}

	validated, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, err
	}
	revoked, err := lru.New(config.CacheSize)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger: utils.Logger.WithFields(logrus.Fields{
			"module": "session",
		}),
		users:  users,
		secret: []byte(config.Secret),
		ttl:    config.TTL,
		clock:  config.Clock,
		// expiry is checked against the injected clock instead
		parser: &jwt.Parser{
			ValidMethods:         []string{jwt.SigningMethodHS256.Alg()},
			SkipClaimsValidation: true,
		},
		validated: validated,
		revoked:   revoked,
	}, nil
}

// Register creates a bidder account
func (m *Manager) Register(ctx context.Context, email, name, phone, password string) (*models.User, error) {
	var l = m.logger.WithFields(logrus.Fields{
		"method":      "Register",
		"param_email": email,
	})

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, models.ValidationError{Field: "name", Reason: "is required"}
	}
	if len(password) < minPasswordLength {
		return nil, models.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		l.Errorf("Unable to hash password: %+v", err)
		return nil, err
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
	}
	if err := m.users.CreateUser(ctx, user); err != nil {
		l.Debugf("Rejected: %+v", err)
		return nil, err
	}

	l.Infof("Registered user %d", user.Id)
	return user, nil
}

// Login checks the credentials and starts a session. Unknown emails and
// wrong passwords both fail with models.UnauthorizedError.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, *models.User, error) {
	var l = m.logger.WithFields(logrus.Fields{
		"method":      "Login",
		"param_email": email,
	})

	user, err := m.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if models.IsNotFound(err) {
		l.Debugf("Unknown email")
		return nil, nil, models.UnauthorizedError
	}
	if err != nil {
		l.Errorf("Unable to load user: %+v", err)
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		l.Debugf("Wrong password for user %d", user.Id)
		return nil, nil, models.UnauthorizedError
	}

	sess, err := m.issue(user)
	if err != nil {
		l.Errorf("Unable to sign token: %+v", err)
		return nil, nil, err
	}

	l.Infof("User %d logged in", user.Id)
	return sess, user, nil
}

func (m *Manager) issue(user *models.User) (*Session, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		UserId:  user.Id,
		IsAdmin: user.IsAdmin,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			IssuedAt:  now.Unix(),
			ExpiresAt: expiresAt.Unix(),
			Subject:   user.Email,
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:     signed,
		UserId:    user.Id,
		IsAdmin:   user.IsAdmin,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// Validate resolves a token to its session
func (m *Manager) Validate(token string) (*Session, error) {
	if token == "" {
		return nil, models.UnauthorizedError
	}

	if cached, ok := m.validated.Get(token); ok {
		sess := cached.(*Session)
		if m.clock.Now().Before(sess.ExpiresAt) {
			return sess, nil
		}
		m.validated.Remove(token)
		return nil, models.UnauthorizedError
	}

	c := &claims{}
	if _, err := m.parser.ParseWithClaims(token, c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		m.logger.WithFields(logrus.Fields{
			"method": "Validate",
		}).Debugf("Rejected token: %+v", err)
		return nil, models.UnauthorizedError
	}

	if !c.VerifyExpiresAt(m.clock.Now().Unix(), true) || m.revoked.Contains(c.Id) {
		return nil, models.UnauthorizedError
	}

	sess := &Session{
		Token:     token,
		UserId:    c.UserId,
		IsAdmin:   c.IsAdmin,
		ExpiresAt: time.Unix(c.ExpiresAt, 0).UTC(),
	}
	m.validated.Add(token, sess)
	return sess, nil
}

// Logout ends a session before it expires
func (m *Manager) Logout(token string) {
	m.validated.Remove(token)

	c := &claims{}
	if _, _, err := m.parser.ParseUnverified(token, c); err == nil && c.Id != "" {
		m.revoked.Add(c.Id, struct{}{})
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by NewContext
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok
}

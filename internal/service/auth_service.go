package service

import (
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// AuthService is the authenticator: it registers accounts, verifies
// credentials, mints session tokens and validates them on incoming calls.
// Hashing and token validation touch no shared mutable state.
type AuthService struct {
	users    repository.UserStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(users repository.UserStore, secret []byte, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthService{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service's time source for tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// Register creates a regular, active account. The plaintext secret is never
// stored; bcrypt salts and hashes it.
func (s *AuthService) Register(name, email, phone, password, department string) (int, error) {
	if email == "" || password == "" {
		return 0, apperrors.New(apperrors.KindInvalidCredentials, "email and password cannot be empty")
	}
	existing, err := s.users.FindByEmail(email)
	if err != nil {
		return 0, storageErr(err)
	}
	if existing != nil {
		return 0, apperrors.New(apperrors.KindDuplicateIdentity, "email %s is already registered", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, err
	}
	id, err := s.users.Insert(&db.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
		Department:   department,
		Role:         db.RoleRegular,
		Active:       true,
	})
	if err != nil {
		return 0, storageErr(err)
	}
	return id, nil
}

// Login verifies the secret against the stored hash and issues a signed,
// time-bound session token. Unknown email, disabled account and hash
// mismatch are indistinguishable to the caller.
func (s *AuthService) Login(email, password string) (string, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		return "", storageErr(err)
	}
	if user == nil || !user.Active {
		return "", apperrors.New(apperrors.KindInvalidCredentials, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperrors.New(apperrors.KindInvalidCredentials, "invalid credentials")
	}
	return auth.SignToken(s.secret, user.ID, user.Role, s.tokenTTL, s.now())
}

// Validate decodes and verifies a presented token.
func (s *AuthService) Validate(token string) (*auth.Claims, error) {
	return auth.ParseToken(s.secret, token)
}

// ResetPassword re-hashes and overwrites a user's secret. Administrator
// only. Previously issued tokens stay valid until they expire.
func (s *AuthService) ResetPassword(actor *auth.Claims, userID int, newPassword string) error {
	if !CanPerform(actor.Role, actor.UserID, ActionManageUsers, userID) {
		return apperrors.New(apperrors.KindForbidden, "not allowed to reset passwords")
	}
	if newPassword == "" {
		return apperrors.New(apperrors.KindInvalidCredentials, "password cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(userID, string(hash)); err != nil {
		return storageErr(err)
	}
	return nil
}

// Disable soft-disables an account. The record stays, so booking history
// keeps its requester references; the account just cannot log in anymore.
func (s *AuthService) Disable(actor *auth.Claims, userID int) error {
	if !CanPerform(actor.Role, actor.UserID, ActionManageUsers, userID) {
		return apperrors.New(apperrors.KindForbidden, "not allowed to disable users")
	}
	if err := s.users.SetActive(userID, false); err != nil {
		return storageErr(err)
	}
	return nil
}

// ListUsers is the admin account listing.
func (s *AuthService) ListUsers(actor *auth.Claims) ([]db.User, error) {
	if !CanPerform(actor.Role, actor.UserID, ActionManageUsers, 0) {
		return nil, apperrors.New(apperrors.KindForbidden, "not allowed to list users")
	}
	users, err := s.users.List()
	if err != nil {
		return nil, storageErr(err)
	}
	return users, nil
}

package services

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Stable machine-readable failure codes carried by every identity operation.
const (
	CodeWrongPassword       = "auth/wrong-password"
	CodeUserNotFound        = "auth/user-not-found"
	CodeUserDisabled        = "auth/user-disabled"
	CodeTooManyRequests     = "auth/too-many-requests"
	CodeNetworkFailure      = "auth/network-request-failed"
	CodeInvalidCredential   = "auth/invalid-credential"
	CodeInvalidEmail        = "auth/invalid-email"
	CodeEmailAlreadyInUse   = "auth/email-already-in-use"
	CodeWeakPassword        = "auth/weak-password"
	CodeOperationNotAllowed = "auth/operation-not-allowed"
	CodePopupClosed         = "auth/popup-closed-by-user"
	CodePopupBlocked        = "auth/popup-blocked"
	CodeUnauthorizedDomain  = "auth/unauthorized-domain"
	CodeAccountExists       = "auth/account-exists-with-different-credential"
	CodeDomainConfigNeeded  = "auth/auth-domain-config-required"
)

// ProviderError is the failure contract of the identity provider: a stable
// code plus the provider's raw message.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func providerErr(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// AsProviderError unwraps err into a ProviderError if it carries one.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// minProviderPasswordLength is the provider-side floor below which account
// creation fails with auth/weak-password. The storefront's own registration
// policy is stricter and checked before the provider is ever called.
const minProviderPasswordLength = 6

// IdentityService implements the identity-provider contract over MySQL and
// bcrypt: password sign-in, account creation, profile updates, verification
// and reset emails, OAuth sign-in and auth-state change subscriptions.
type IdentityService struct {
	db     *sql.DB
	auth   *AuthService
	mailer Mailer
	oauth  OAuthExchanger
	logger zerolog.Logger

	mu        sync.Mutex
	listeners map[int]func(*models.User)
	nextSub   int
}

func NewIdentityService(db *sql.DB, auth *AuthService, mailer Mailer, oauth OAuthExchanger, logger zerolog.Logger) *IdentityService {
	return &IdentityService{
		db:        db,
		auth:      auth,
		mailer:    mailer,
		oauth:     oauth,
		logger:    logger,
		listeners: make(map[int]func(*models.User)),
	}
}

// OnAuthStateChanged registers fn to be called with the signed-in user after
// every sign-in and with nil after every sign-out. The returned function
// unsubscribes.
func (s *IdentityService) OnAuthStateChanged(fn func(*models.User)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *IdentityService) emit(user *models.User) {
	s.mu.Lock()
	fns := make([]func(*models.User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(user)
	}
}

// SignInWithPassword authenticates an email/password account. Failures carry
// provider codes: user-not-found, user-disabled, wrong-password, or
// network-request-failed when the store itself is unreachable.
func (s *IdentityService) SignInWithPassword(email, password string) (*models.User, error) {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return nil, err
	}
	if user.Disabled {
		return nil, providerErr(CodeUserDisabled, "this account has been disabled")
	}
	if user.Provider != string(models.ProviderPassword) || user.PasswordHash == "" {
		return nil, providerErr(CodeWrongPassword, "this account does not use password sign-in")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("email", email).Msg("Failed authentication attempt")
		return nil, providerErr(CodeWrongPassword, "the password is invalid")
	}

	s.logger.Info().Int("user_id", user.ID).Str("email", user.Email).Msg("User authenticated")
	s.emit(user)
	return user, nil
}

// CreateAccount registers a new email/password account. The provider applies
// only its own minimal checks (email syntax, six-character floor,
// uniqueness); the storefront's stricter registration policy runs locally
// before this is called.
func (s *IdentityService) CreateAccount(email, password string) (*models.User, error) {
	if !emailPattern.MatchString(email) {
		return nil, providerErr(CodeInvalidEmail, "the email address is badly formatted")
	}
	if len(password) < minProviderPasswordLength {
		return nil, providerErr(CodeWeakPassword, "password should be at least 6 characters")
	}

	var existingID int
	err := s.db.QueryRow("SELECT id FROM users WHERE email = ?", email).Scan(&existingID)
	if err == nil {
		return nil, providerErr(CodeEmailAlreadyInUse, "the email address is already in use by another account")
	} else if err != sql.ErrNoRows {
		s.logger.Error().Err(err).Msg("Error checking existing user")
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error hashing password")
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}

	result, err := s.db.Exec(
		"INSERT INTO users (email, password_hash, provider) VALUES (?, ?, ?)",
		email, string(hashedPassword), string(models.ProviderPassword),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating user")
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}

	user, err := s.GetUserByID(int(userID))
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("user_id", user.ID).Str("email", user.Email).Msg("Account created")
	s.emit(user)
	return user, nil
}

// UpdateDisplayName sets the profile display name on an account.
func (s *IdentityService) UpdateDisplayName(userID int, displayName string) error {
	_, err := s.db.Exec("UPDATE users SET display_name = ? WHERE id = ?", displayName, userID)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", userID).Msg("Error updating display name")
		return providerErr(CodeNetworkFailure, err.Error())
	}
	return nil
}

// SendEmailVerification mails a signed verification link to the account.
func (s *IdentityService) SendEmailVerification(user *models.User) error {
	token, err := s.auth.GenerateActionToken(user.ID, user.Email, PurposeVerifyEmail)
	if err != nil {
		return providerErr(CodeNetworkFailure, err.Error())
	}

	body := fmt.Sprintf("Welcome to ToyTopia! Verify your email: /api/v1/auth/verify-email?token=%s", token)
	if err := s.mailer.Send(user.Email, "Verify your ToyTopia email", body); err != nil {
		s.logger.Error().Err(err).Str("email", user.Email).Msg("Error sending verification email")
		return providerErr(CodeNetworkFailure, err.Error())
	}
	return nil
}

// ConfirmEmailVerification marks the account behind a verification link as
// verified.
func (s *IdentityService) ConfirmEmailVerification(token string) error {
	claims, err := s.auth.ValidateActionToken(token, PurposeVerifyEmail)
	if err != nil {
		return providerErr(CodeInvalidCredential, "the verification link is invalid or has expired")
	}

	_, err = s.db.Exec("UPDATE users SET email_verified = TRUE WHERE id = ?", claims.UserID)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", claims.UserID).Msg("Error marking email verified")
		return providerErr(CodeNetworkFailure, err.Error())
	}

	s.logger.Info().Int("user_id", claims.UserID).Msg("Email verified")
	return nil
}

// SendPasswordReset mails a signed reset link to the account with the given
// address. Fails with user-not-found when no such account exists.
func (s *IdentityService) SendPasswordReset(email string) error {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return err
	}

	token, err := s.auth.GenerateActionToken(user.ID, user.Email, PurposePasswordReset)
	if err != nil {
		return providerErr(CodeNetworkFailure, err.Error())
	}

	body := fmt.Sprintf("Reset your ToyTopia password: /api/v1/auth/reset-password?token=%s", token)
	if err := s.mailer.Send(user.Email, "Reset your ToyTopia password", body); err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Error sending password reset email")
		return providerErr(CodeNetworkFailure, err.Error())
	}

	s.logger.Info().Str("email", email).Msg("Password reset email sent")
	return nil
}

// ResetPassword sets a new password for the account behind a reset link.
func (s *IdentityService) ResetPassword(token, newPassword string) error {
	claims, err := s.auth.ValidateActionToken(token, PurposePasswordReset)
	if err != nil {
		return providerErr(CodeInvalidCredential, "the reset link is invalid or has expired")
	}
	if len(newPassword) < minProviderPasswordLength {
		return providerErr(CodeWeakPassword, "password should be at least 6 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return providerErr(CodeNetworkFailure, err.Error())
	}

	_, err = s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hashedPassword), claims.UserID)
	if err != nil {
		s.logger.Error().Err(err).Int("user_id", claims.UserID).Msg("Error resetting password")
		return providerErr(CodeNetworkFailure, err.Error())
	}
	return nil
}

// SignInWithOAuth exchanges a popup authorization code for a profile and
// signs the matching account in, creating it on first use. An account that
// already exists under a different sign-in method fails with
// account-exists-with-different-credential.
func (s *IdentityService) SignInWithOAuth(provider, code string) (*models.User, error) {
	profile, err := s.oauth.Exchange(provider, code)
	if err != nil {
		return nil, err
	}
	if profile.Email == "" {
		return nil, providerErr(CodeInvalidCredential, "the provider did not return an email address")
	}

	user, err := s.getUserByEmail(profile.Email)
	if err != nil {
		pe, ok := AsProviderError(err)
		if !ok || pe.Code != CodeUserNotFound {
			return nil, err
		}
		user, err = s.createOAuthAccount(profile)
		if err != nil {
			return nil, err
		}
	} else if user.Provider != string(profile.Provider) {
		return nil, providerErr(CodeAccountExists,
			"an account already exists with the same email address but different sign-in credentials")
	}

	if user.Disabled {
		return nil, providerErr(CodeUserDisabled, "this account has been disabled")
	}

	s.logger.Info().Int("user_id", user.ID).Str("provider", user.Provider).Msg("OAuth sign-in")
	s.emit(user)
	return user, nil
}

func (s *IdentityService) createOAuthAccount(profile *OAuthProfile) (*models.User, error) {
	result, err := s.db.Exec(
		"INSERT INTO users (display_name, email, email_verified, photo_url, provider) VALUES (?, ?, TRUE, ?, ?)",
		profile.DisplayName, profile.Email, profile.PhotoURL, string(profile.Provider),
	)
	if err != nil {
		s.logger.Error().Err(err).Str("email", profile.Email).Msg("Error creating OAuth account")
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}
	userID, err := result.LastInsertId()
	if err != nil {
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}
	return s.GetUserByID(int(userID))
}

// SignOut announces the end of the session to auth-state subscribers. The
// session token itself is discarded by the client.
func (s *IdentityService) SignOut() {
	s.emit(nil)
}

func (s *IdentityService) GetUserByID(userID int) (*models.User, error) {
	row := s.db.QueryRow(
		"SELECT id, display_name, email, email_verified, photo_url, password_hash, provider, disabled, created_at, updated_at FROM users WHERE id = ?",
		userID,
	)
	return s.scanUser(row)
}

func (s *IdentityService) getUserByEmail(email string) (*models.User, error) {
	row := s.db.QueryRow(
		"SELECT id, display_name, email, email_verified, photo_url, password_hash, provider, disabled, created_at, updated_at FROM users WHERE email = ?",
		email,
	)
	return s.scanUser(row)
}

func (s *IdentityService) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var displayName, photoURL, passwordHash sql.NullString

	err := row.Scan(
		&user.ID, &displayName, &user.Email, &user.EmailVerified, &photoURL,
		&passwordHash, &user.Provider, &user.Disabled, &user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, providerErr(CodeUserNotFound, "there is no user record corresponding to this identifier")
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Error querying user")
		return nil, providerErr(CodeNetworkFailure, err.Error())
	}

	user.DisplayName = displayName.String
	user.PhotoURL = photoURL.String
	user.PasswordHash = passwordHash.String
	return &user, nil
}

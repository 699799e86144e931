package services

import (
	"strings"
	"sync"
	"time"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
)

// SessionState tracks where the session machine is: Initializing until the
// first provider callback resolves, then Anonymous or Authenticated for the
// rest of the process lifetime.
type SessionState string

const (
	StateInitializing  SessionState = "initializing"
	StateAnonymous     SessionState = "anonymous"
	StateAuthenticated SessionState = "authenticated"
)

// Session is the snapshot consumers read synchronously.
type Session struct {
	State SessionState
	User  *models.User
}

// ErrorKind discriminates session failures so callers never have to match on
// message strings.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindEmailNotVerified ErrorKind = "email_not_verified"
	KindProvider         ErrorKind = "provider"
)

// SessionError is a normalized, user-facing failure.
type SessionError struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *SessionError) Error() string { return e.Message }

func validationErr(message string) *SessionError {
	return &SessionError{Kind: KindValidation, Message: message}
}

// Per-operation provider-code to message tables, with one fallback each.
// Unmapped codes fall back to the provider's raw message when it has one.
var signInMessages = map[string]string{
	CodeUserNotFound:      "No account found with this email. Please register first.",
	CodeWrongPassword:     "Incorrect password. Please try again.",
	CodeInvalidEmail:      "Please enter a valid email address.",
	CodeInvalidCredential: "Invalid login credentials. Please check your email and password.",
	CodeTooManyRequests:   "Too many failed attempts. Please try again later or reset your password.",
	CodeNetworkFailure:    "Network error. Please check your internet connection.",
	CodeUserDisabled:      "This account has been disabled. Please contact support.",
}

var registerMessages = map[string]string{
	CodeEmailAlreadyInUse:   "This email is already registered. Please use a different email or login.",
	CodeInvalidEmail:        "Please enter a valid email address.",
	CodeWeakPassword:        "Password is too weak. Please choose a stronger password.",
	CodeNetworkFailure:      "Network error. Please check your internet connection.",
	CodeOperationNotAllowed: "Email/password accounts are not enabled. Please contact support.",
}

var oauthMessages = map[string]string{
	CodePopupBlocked:       "Popup was blocked by your browser. Please allow popups for this site.",
	CodeUnauthorizedDomain: "This domain is not authorized for OAuth operations.",
	CodeAccountExists:      "An account already exists with the same email but different sign-in method. Please try signing in with your existing method.",
	CodeDomainConfigNeeded: "Authentication domain configuration required. Please contact support.",
	CodeNetworkFailure:     "Network error. Please check your internet connection.",
}

var resetMessages = map[string]string{
	CodeUserNotFound:        "No account found with this email address. Please check your email or create a new account.",
	CodeInvalidEmail:        "Please enter a valid email address.",
	CodeTooManyRequests:     "Too many attempts. Please try again later.",
	CodeNetworkFailure:      "Network error. Please check your internet connection.",
	CodeOperationNotAllowed: "Password reset is not enabled. Please contact support.",
}

func mapProviderError(table map[string]string, fallback string, err error) *SessionError {
	pe, ok := AsProviderError(err)
	if !ok {
		return &SessionError{Kind: KindProvider, Message: fallback}
	}
	if msg, found := table[pe.Code]; found {
		return &SessionError{Kind: KindProvider, Code: pe.Code, Message: msg}
	}
	if pe.Message != "" {
		return &SessionError{Kind: KindProvider, Code: pe.Code, Message: pe.Message}
	}
	return &SessionError{Kind: KindProvider, Code: pe.Code, Message: fallback}
}

// IdentityProvider is the slice of the identity service the session manager
// consumes.
type IdentityProvider interface {
	SignInWithPassword(email, password string) (*models.User, error)
	CreateAccount(email, password string) (*models.User, error)
	UpdateDisplayName(userID int, displayName string) error
	SendEmailVerification(user *models.User) error
	SendPasswordReset(email string) error
	SignInWithOAuth(provider, code string) (*models.User, error)
	SignOut()
	OnAuthStateChanged(fn func(*models.User)) func()
}

// redirectDelay is how long after a successful password-reset request the
// client is told to return to the sign-in view.
const redirectDelay = 5 * time.Second

// SessionService wraps the identity provider's asynchronous operations,
// normalizes provider failures into user-facing messages, and owns the
// observable current-user value consumed by the route guard and navigation.
type SessionService struct {
	identity IdentityProvider
	logger   zerolog.Logger

	mu          sync.RWMutex
	state       SessionState
	user        *models.User
	watchers    map[int]func(Session)
	nextWatcher int

	unsubscribe   func()
	redirectTimer *time.Timer
}

func NewSessionService(identity IdentityProvider, logger zerolog.Logger) *SessionService {
	s := &SessionService{
		identity: identity,
		logger:   logger,
		state:    StateInitializing,
		watchers: make(map[int]func(Session)),
	}
	s.unsubscribe = identity.OnAuthStateChanged(s.resolve)
	return s
}

// Start resolves the initial handshake. The provider keeps its persistence
// client-side (the session token), so a fresh process always resolves to
// Anonymous; sign-ins after that move the machine through resolve.
func (s *SessionService) Start() {
	s.mu.Lock()
	if s.state == StateInitializing {
		s.state = StateAnonymous
	}
	snapshot := s.snapshotLocked()
	watchers := s.watchersLocked()
	s.mu.Unlock()

	s.notify(watchers, snapshot)
}

// Close detaches from the provider and cancels any pending timers.
func (s *SessionService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	if s.redirectTimer != nil {
		s.redirectTimer.Stop()
		s.redirectTimer = nil
	}
	s.mu.Unlock()
}

// resolve is the single provider callback: nil means signed out.
func (s *SessionService) resolve(user *models.User) {
	s.mu.Lock()
	s.user = user
	if user != nil {
		s.state = StateAuthenticated
	} else {
		s.state = StateAnonymous
	}
	snapshot := s.snapshotLocked()
	watchers := s.watchersLocked()
	s.mu.Unlock()

	s.notify(watchers, snapshot)
}

func (s *SessionService) snapshotLocked() Session {
	return Session{State: s.state, User: s.user}
}

func (s *SessionService) watchersLocked() []func(Session) {
	fns := make([]func(Session), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	return fns
}

func (s *SessionService) notify(watchers []func(Session), snapshot Session) {
	for _, fn := range watchers {
		fn(snapshot)
	}
}

// Current returns the latest session snapshot.
func (s *SessionService) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for change notifications and returns an
// unsubscribe function.
func (s *SessionService) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

// SignIn authenticates an email/password account. A password-credential
// account with an unverified email gets exactly one verification resend and
// a KindEmailNotVerified failure instead of a completed sign-in.
func (s *SessionService) SignIn(req models.LoginRequest) (*models.User, *SessionError) {
	if req.Email == "" || req.Password == "" {
		return nil, validationErr("Please fill in all fields.")
	}

	user, err := s.identity.SignInWithPassword(req.Email, req.Password)
	if err != nil {
		return nil, mapProviderError(signInMessages, "Login failed. Please try again.", err)
	}

	if user.Provider == string(models.ProviderPassword) && !user.EmailVerified {
		if err := s.identity.SendEmailVerification(user); err != nil {
			s.logger.Error().Err(err).Str("email", user.Email).Msg("Verification resend failed")
		}
		s.identity.SignOut()
		return nil, &SessionError{
			Kind:    KindEmailNotVerified,
			Message: "Please verify your email before logging in. A new verification email has been sent to your inbox.",
		}
	}

	return user, nil
}

// RegisterResult carries the created user plus the transient notice shown
// after registration.
type RegisterResult struct {
	User   *models.User
	Notice string
}

// Register creates an email/password account. The five password
// requirements, the confirmation match and the terms agreement are checked
// locally; on local failure the provider is never called. A failed
// verification send is reported in the notice but does not roll back the
// account.
func (s *SessionService) Register(req models.RegisterRequest) (*RegisterResult, *SessionError) {
	if !CheckPasswordRequirements(req.Password).Valid() {
		return nil, validationErr("Please make sure your password meets all requirements.")
	}
	if req.Password != req.ConfirmPassword {
		return nil, validationErr("Passwords do not match.")
	}
	if !req.AgreeToTerms {
		return nil, validationErr("Please agree to the Terms of Service and Privacy Policy.")
	}

	user, err := s.identity.CreateAccount(req.Email, req.Password)
	if err != nil {
		return nil, mapProviderError(registerMessages, "Registration failed. Please try again.", err)
	}

	if err := s.identity.UpdateDisplayName(user.ID, req.FullName); err != nil {
		return nil, mapProviderError(registerMessages, "Registration failed. Please try again.", err)
	}
	user.DisplayName = req.FullName

	notice := "Verification email sent! Please check your inbox and verify your email before logging in."
	if err := s.identity.SendEmailVerification(user); err != nil {
		s.logger.Error().Err(err).Str("email", user.Email).Msg("Verification send failed after registration")
		notice = "Account created but failed to send verification email. Please try logging in to resend."
	}

	return &RegisterResult{User: user, Notice: notice}, nil
}

// OAuthSignIn completes a provider popup flow. A popup the shopper closed is
// a silent no-op: no session change and no error.
func (s *SessionService) OAuthSignIn(provider string, req models.OAuthRequest) (*models.User, *SessionError) {
	if req.Cancelled {
		return nil, nil
	}

	label := oauthLabel(provider)

	user, err := s.identity.SignInWithOAuth(provider, req.Code)
	if err != nil {
		if pe, ok := AsProviderError(err); ok {
			switch pe.Code {
			case CodePopupClosed:
				return nil, nil
			case CodeOperationNotAllowed:
				return nil, &SessionError{
					Kind:    KindProvider,
					Code:    pe.Code,
					Message: label + " sign-in is not enabled. Please contact support.",
				}
			}
		}
		return nil, mapProviderError(oauthMessages, label+" login failed. Please try again.", err)
	}

	return user, nil
}

func oauthLabel(provider string) string {
	switch provider {
	case "google":
		return "Google"
	case "github":
		return "GitHub"
	default:
		return provider
	}
}

// ResetResult signals that the reset email went out and when the client
// should return to the sign-in view.
type ResetResult struct {
	Message       string `json:"message"`
	RedirectTo    string `json:"redirectTo"`
	RedirectAfter int    `json:"redirectAfterSeconds"`
}

// RequestPasswordReset validates the address locally (no provider call on a
// malformed one), asks the provider to send the reset email, and schedules
// the sign-in redirect.
func (s *SessionService) RequestPasswordReset(req models.PasswordResetRequest) (*ResetResult, *SessionError) {
	if req.Email == "" {
		return nil, validationErr("Please enter your email address.")
	}
	if !emailPattern.MatchString(req.Email) {
		return nil, validationErr("Please enter a valid email address.")
	}

	if err := s.identity.SendPasswordReset(req.Email); err != nil {
		return nil, mapProviderError(resetMessages, "Failed to send reset email. Please try again.", err)
	}

	s.scheduleRedirect()

	return &ResetResult{
		Message:       "Password reset link sent. Please check your inbox and follow the instructions.",
		RedirectTo:    "/login",
		RedirectAfter: int(redirectDelay / time.Second),
	}, nil
}

func (s *SessionService) scheduleRedirect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redirectTimer != nil {
		s.redirectTimer.Stop()
	}
	s.redirectTimer = time.AfterFunc(redirectDelay, func() {
		s.logger.Debug().Msg("Password-reset redirect window elapsed")
	})
}

// SignOut clears the current user. The provider cannot fail here today, but
// failures would be surfaced and left retryable.
func (s *SessionService) SignOut() *SessionError {
	s.identity.SignOut()
	return nil
}

// CheckPasswordRequirements evaluates the five registration password rules.
func CheckPasswordRequirements(password string) models.PasswordRequirements {
	return models.PasswordRequirements{
		MinLength:      len(password) >= 8,
		HasUpperCase:   strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }),
		HasLowerCase:   strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }),
		HasNumber:      strings.ContainsFunc(password, func(r rune) bool { return r >= '0' && r <= '9' }),
		HasSpecialChar: strings.ContainsAny(password, `!@#$%^&*(),.?":{}|<>`),
	}
}

package services

import (
	"testing"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts every provider call so tests can assert that local
// validation failures never reach the network.
type fakeProvider struct {
	signInCalls       int
	createCalls       int
	displayNameCalls  int
	verificationSends int
	resetSends        int
	oauthCalls        int

	signInUser *models.User
	signInErr  error
	createUser *models.User
	createErr  error
	sendVerErr error
	resetErr   error
	oauthUser  *models.User
	oauthErr   error
	lastName   string
	listeners  []func(*models.User)
}

func (f *fakeProvider) SignInWithPassword(email, password string) (*models.User, error) {
	f.signInCalls++
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	f.notify(f.signInUser)
	return f.signInUser, nil
}

func (f *fakeProvider) CreateAccount(email, password string) (*models.User, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.notify(f.createUser)
	return f.createUser, nil
}

func (f *fakeProvider) UpdateDisplayName(userID int, displayName string) error {
	f.displayNameCalls++
	f.lastName = displayName
	return nil
}

func (f *fakeProvider) SendEmailVerification(user *models.User) error {
	f.verificationSends++
	return f.sendVerErr
}

func (f *fakeProvider) SendPasswordReset(email string) error {
	f.resetSends++
	return f.resetErr
}

func (f *fakeProvider) SignInWithOAuth(provider, code string) (*models.User, error) {
	f.oauthCalls++
	if f.oauthErr != nil {
		return nil, f.oauthErr
	}
	f.notify(f.oauthUser)
	return f.oauthUser, nil
}

func (f *fakeProvider) SignOut() {
	f.notify(nil)
}

func (f *fakeProvider) OnAuthStateChanged(fn func(*models.User)) func() {
	f.listeners = append(f.listeners, fn)
	return func() {}
}

func (f *fakeProvider) notify(user *models.User) {
	for _, fn := range f.listeners {
		fn(user)
	}
}

func verifiedUser() *models.User {
	return &models.User{
		ID:            1,
		Email:         "kid@example.com",
		EmailVerified: true,
		Provider:      string(models.ProviderPassword),
	}
}

func newTestSession(provider *fakeProvider) *SessionService {
	return NewSessionService(provider, zerolog.Nop())
}

func TestSessionStateMachine(t *testing.T) {
	provider := &fakeProvider{signInUser: verifiedUser()}
	s := newTestSession(provider)
	defer s.Close()

	assert.Equal(t, StateInitializing, s.Current().State)

	var transitions []SessionState
	unsubscribe := s.Subscribe(func(session Session) {
		transitions = append(transitions, session.State)
	})
	defer unsubscribe()

	s.Start()
	assert.Equal(t, StateAnonymous, s.Current().State)

	user, sessErr := s.SignIn(models.LoginRequest{Email: "kid@example.com", Password: "Sup3r$ecret"})
	require.Nil(t, sessErr)
	require.NotNil(t, user)
	assert.Equal(t, StateAuthenticated, s.Current().State)
	assert.Equal(t, 1, s.Current().User.ID)

	require.Nil(t, s.SignOut())
	assert.Equal(t, StateAnonymous, s.Current().State)
	assert.Nil(t, s.Current().User)

	assert.Equal(t, []SessionState{StateAnonymous, StateAuthenticated, StateAnonymous}, transitions)
}

func TestSignInRequiresEmailAndPassword(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.SignIn(models.LoginRequest{Email: "", Password: ""})
	require.NotNil(t, sessErr)
	assert.Equal(t, KindValidation, sessErr.Kind)
	assert.Equal(t, "Please fill in all fields.", sessErr.Message)
	assert.Zero(t, provider.signInCalls)
}

func TestSignInUnverifiedEmailResendsExactlyOnce(t *testing.T) {
	unverified := verifiedUser()
	unverified.EmailVerified = false
	provider := &fakeProvider{signInUser: unverified}
	s := newTestSession(provider)
	defer s.Close()
	s.Start()

	user, sessErr := s.SignIn(models.LoginRequest{Email: "kid@example.com", Password: "Sup3r$ecret"})
	assert.Nil(t, user)
	require.NotNil(t, sessErr)
	assert.Equal(t, KindEmailNotVerified, sessErr.Kind)
	assert.Equal(t, 1, provider.verificationSends)
	assert.Equal(t, StateAnonymous, s.Current().State)
}

func TestSignInUnverifiedOAuthAccountIsAllowed(t *testing.T) {
	oauthUser := verifiedUser()
	oauthUser.EmailVerified = false
	oauthUser.Provider = string(models.ProviderGoogle)
	provider := &fakeProvider{signInUser: oauthUser}
	s := newTestSession(provider)
	defer s.Close()

	user, sessErr := s.SignIn(models.LoginRequest{Email: "kid@example.com", Password: "Sup3r$ecret"})
	require.Nil(t, sessErr)
	assert.NotNil(t, user)
	assert.Zero(t, provider.verificationSends)
}

func TestSignInErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"user not found", providerErr(CodeUserNotFound, "raw"), "No account found with this email. Please register first."},
		{"wrong password", providerErr(CodeWrongPassword, "raw"), "Incorrect password. Please try again."},
		{"disabled", providerErr(CodeUserDisabled, "raw"), "This account has been disabled. Please contact support."},
		{"too many requests", providerErr(CodeTooManyRequests, "raw"), "Too many failed attempts. Please try again later or reset your password."},
		{"network", providerErr(CodeNetworkFailure, "raw"), "Network error. Please check your internet connection."},
		{"unmapped code falls back to raw message", providerErr("auth/unknown-thing", "something odd happened"), "something odd happened"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{signInErr: tt.err}
			s := newTestSession(provider)
			defer s.Close()

			_, sessErr := s.SignIn(models.LoginRequest{Email: "kid@example.com", Password: "nope"})
			require.NotNil(t, sessErr)
			assert.Equal(t, KindProvider, sessErr.Kind)
			assert.Equal(t, tt.message, sessErr.Message)
		})
	}
}

func TestRegisterBlocksWeakPasswordLocally(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	// All lowercase, no digit, no special character.
	_, sessErr := s.Register(models.RegisterRequest{
		FullName:        "Kid Tester",
		Email:           "kid@example.com",
		Password:        "abcdefgh",
		ConfirmPassword: "abcdefgh",
		AgreeToTerms:    true,
	})
	require.NotNil(t, sessErr)
	assert.Equal(t, KindValidation, sessErr.Kind)
	assert.Zero(t, provider.createCalls)
	assert.Zero(t, provider.verificationSends)
}

func TestRegisterBlocksMismatchedConfirmation(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.Register(models.RegisterRequest{
		Email:           "kid@example.com",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Different1!",
		AgreeToTerms:    true,
	})
	require.NotNil(t, sessErr)
	assert.Equal(t, "Passwords do not match.", sessErr.Message)
	assert.Zero(t, provider.createCalls)
}

func TestRegisterRequiresTermsAgreement(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.Register(models.RegisterRequest{
		Email:           "kid@example.com",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
		AgreeToTerms:    false,
	})
	require.NotNil(t, sessErr)
	assert.Equal(t, "Please agree to the Terms of Service and Privacy Policy.", sessErr.Message)
	assert.Zero(t, provider.createCalls)
}

func TestRegisterSuccessSetsNameAndSendsVerification(t *testing.T) {
	created := verifiedUser()
	created.EmailVerified = false
	provider := &fakeProvider{createUser: created}
	s := newTestSession(provider)
	defer s.Close()

	result, sessErr := s.Register(models.RegisterRequest{
		FullName:        "Kid Tester",
		Email:           "kid@example.com",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
		AgreeToTerms:    true,
	})
	require.Nil(t, sessErr)
	require.NotNil(t, result)
	assert.Equal(t, 1, provider.createCalls)
	assert.Equal(t, "Kid Tester", provider.lastName)
	assert.Equal(t, "Kid Tester", result.User.DisplayName)
	assert.Equal(t, 1, provider.verificationSends)
	assert.Contains(t, result.Notice, "Verification email sent")
}

func TestRegisterKeepsAccountWhenVerificationSendFails(t *testing.T) {
	created := verifiedUser()
	provider := &fakeProvider{
		createUser: created,
		sendVerErr: providerErr(CodeNetworkFailure, "smtp down"),
	}
	s := newTestSession(provider)
	defer s.Close()

	result, sessErr := s.Register(models.RegisterRequest{
		FullName:        "Kid Tester",
		Email:           "kid@example.com",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
		AgreeToTerms:    true,
	})
	require.Nil(t, sessErr)
	require.NotNil(t, result)
	assert.Contains(t, result.Notice, "failed to send verification email")
}

func TestRegisterErrorMapping(t *testing.T) {
	provider := &fakeProvider{createErr: providerErr(CodeEmailAlreadyInUse, "raw")}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.Register(models.RegisterRequest{
		Email:           "kid@example.com",
		Password:        "Sup3r$ecret",
		ConfirmPassword: "Sup3r$ecret",
		AgreeToTerms:    true,
	})
	require.NotNil(t, sessErr)
	assert.Equal(t, "This email is already registered. Please use a different email or login.", sessErr.Message)
}

func TestOAuthCancelledPopupIsSilentNoOp(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()
	s.Start()

	user, sessErr := s.OAuthSignIn("google", models.OAuthRequest{Cancelled: true})
	assert.Nil(t, user)
	assert.Nil(t, sessErr)
	assert.Zero(t, provider.oauthCalls)
	assert.Equal(t, StateAnonymous, s.Current().State)
}

func TestOAuthPopupClosedCodeIsSilentNoOp(t *testing.T) {
	provider := &fakeProvider{oauthErr: providerErr(CodePopupClosed, "closed")}
	s := newTestSession(provider)
	defer s.Close()
	s.Start()

	user, sessErr := s.OAuthSignIn("github", models.OAuthRequest{Code: "abc"})
	assert.Nil(t, user)
	assert.Nil(t, sessErr)
	assert.Equal(t, StateAnonymous, s.Current().State)
}

func TestOAuthErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"popup blocked", providerErr(CodePopupBlocked, "raw"), "Popup was blocked by your browser. Please allow popups for this site."},
		{"unauthorized domain", providerErr(CodeUnauthorizedDomain, "raw"), "This domain is not authorized for OAuth operations."},
		{"account exists", providerErr(CodeAccountExists, "raw"), "An account already exists with the same email but different sign-in method. Please try signing in with your existing method."},
		{"config required", providerErr(CodeDomainConfigNeeded, "raw"), "Authentication domain configuration required. Please contact support."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{oauthErr: tt.err}
			s := newTestSession(provider)
			defer s.Close()

			_, sessErr := s.OAuthSignIn("google", models.OAuthRequest{Code: "abc"})
			require.NotNil(t, sessErr)
			assert.Equal(t, tt.message, sessErr.Message)
		})
	}
}

func TestOAuthNotEnabledUsesProviderLabel(t *testing.T) {
	provider := &fakeProvider{oauthErr: providerErr(CodeOperationNotAllowed, "raw")}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.OAuthSignIn("github", models.OAuthRequest{Code: "abc"})
	require.NotNil(t, sessErr)
	assert.Equal(t, "GitHub sign-in is not enabled. Please contact support.", sessErr.Message)
}

func TestPasswordResetRejectsMalformedEmailLocally(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.RequestPasswordReset(models.PasswordResetRequest{Email: "not-an-email"})
	require.NotNil(t, sessErr)
	assert.Equal(t, KindValidation, sessErr.Kind)
	assert.Equal(t, "Please enter a valid email address.", sessErr.Message)
	assert.Zero(t, provider.resetSends)
}

func TestPasswordResetRequiresEmail(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.RequestPasswordReset(models.PasswordResetRequest{})
	require.NotNil(t, sessErr)
	assert.Equal(t, "Please enter your email address.", sessErr.Message)
	assert.Zero(t, provider.resetSends)
}

func TestPasswordResetSuccessSchedulesRedirect(t *testing.T) {
	provider := &fakeProvider{}
	s := newTestSession(provider)
	defer s.Close()

	result, sessErr := s.RequestPasswordReset(models.PasswordResetRequest{Email: "kid@example.com"})
	require.Nil(t, sessErr)
	require.NotNil(t, result)
	assert.Equal(t, 1, provider.resetSends)
	assert.Equal(t, "/login", result.RedirectTo)
	assert.Equal(t, 5, result.RedirectAfter)
}

func TestPasswordResetErrorMapping(t *testing.T) {
	provider := &fakeProvider{resetErr: providerErr(CodeUserNotFound, "raw")}
	s := newTestSession(provider)
	defer s.Close()

	_, sessErr := s.RequestPasswordReset(models.PasswordResetRequest{Email: "kid@example.com"})
	require.NotNil(t, sessErr)
	assert.Equal(t, "No account found with this email address. Please check your email or create a new account.", sessErr.Message)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	provider := &fakeProvider{signInUser: verifiedUser()}
	s := newTestSession(provider)
	defer s.Close()

	calls := 0
	unsubscribe := s.Subscribe(func(Session) { calls++ })

	s.Start()
	assert.Equal(t, 1, calls)

	unsubscribe()
	_, sessErr := s.SignIn(models.LoginRequest{Email: "kid@example.com", Password: "Sup3r$ecret"})
	require.Nil(t, sessErr)
	assert.Equal(t, 1, calls)
}

func TestCheckPasswordRequirements(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"Sup3r$ecret", true},
		{"abcdefgh", false},
		{"ABCDEFGH1!", false},
		{"Abcdef1!", true},
		{"Ab1!", false},
		{"Abcdefg1", false},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			assert.Equal(t, tt.valid, CheckPasswordRequirements(tt.password).Valid())
		})
	}
}

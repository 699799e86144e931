package models

import "time"

type User struct {
	ID            int       `json:"id"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	PasswordHash  string    `json:"-"`
	Provider      string    `json:"provider"`
	Disabled      bool      `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SignInProvider identifies how an account authenticates.
type SignInProvider string

const (
	ProviderPassword SignInProvider = "password"
	ProviderGoogle   SignInProvider = "google.com"
	ProviderGithub   SignInProvider = "github.com"
)

type RegisterRequest struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AgreeToTerms    bool   `json:"agreeToTerms"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

// OAuthRequest carries the outcome of a provider popup. Cancelled is set when
// the shopper closed the popup before completing the flow; the server treats
// that as a silent no-op rather than an error.
type OAuthRequest struct {
	Code      string `json:"code"`
	Cancelled bool   `json:"cancelled"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

// PasswordRequirements reports which of the five password strength rules a
// candidate password satisfies. Registration is blocked until all five hold.
type PasswordRequirements struct {
	MinLength      bool `json:"minLength"`
	HasUpperCase   bool `json:"hasUpperCase"`
	HasLowerCase   bool `json:"hasLowerCase"`
	HasNumber      bool `json:"hasNumber"`
	HasSpecialChar bool `json:"hasSpecialChar"`
}

// Valid reports whether every requirement is met.
func (p PasswordRequirements) Valid() bool {
	return p.MinLength && p.HasUpperCase && p.HasLowerCase && p.HasNumber && p.HasSpecialChar
}

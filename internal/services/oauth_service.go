package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"toytopia/internal/models"

	"github.com/rs/zerolog"
)

// OAuthProfile is the identity returned by an OAuth provider after a
// successful popup flow.
type OAuthProfile struct {
	Email       string
	DisplayName string
	PhotoURL    string
	Provider    models.SignInProvider
}

// OAuthExchanger turns the authorization code handed back by a provider
// popup into a verified profile.
type OAuthExchanger interface {
	Exchange(provider, code string) (*OAuthProfile, error)
}

// HTTPOAuthExchanger performs the code-for-token exchange against the real
// Google and GitHub endpoints. Client credentials come from the environment
// (GOOGLE_CLIENT_ID/SECRET, GITHUB_CLIENT_ID/SECRET).
type HTTPOAuthExchanger struct {
	client *http.Client
	logger zerolog.Logger
}

func NewHTTPOAuthExchanger(logger zerolog.Logger) *HTTPOAuthExchanger {
	return &HTTPOAuthExchanger{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (e *HTTPOAuthExchanger) Exchange(provider, code string) (*OAuthProfile, error) {
	switch provider {
	case "google":
		return e.exchangeGoogle(code)
	case "github":
		return e.exchangeGithub(code)
	default:
		return nil, providerErr(CodeOperationNotAllowed, fmt.Sprintf("OAuth provider %q is not enabled", provider))
	}
}

func (e *HTTPOAuthExchanger) exchangeGoogle(code string) (*OAuthProfile, error) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, providerErr(CodeDomainConfigNeeded, "Google OAuth credentials are not configured")
	}

	token, err := e.fetchToken("https://oauth2.googleapis.com/token", url.Values{
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {os.Getenv("GOOGLE_REDIRECT_URI")},
	})
	if err != nil {
		return nil, err
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := e.fetchJSON("https://openidconnect.googleapis.com/v1/userinfo", token, &info); err != nil {
		return nil, err
	}

	return &OAuthProfile{
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
		Provider:    models.ProviderGoogle,
	}, nil
}

func (e *HTTPOAuthExchanger) exchangeGithub(code string) (*OAuthProfile, error) {
	clientID := os.Getenv("GITHUB_CLIENT_ID")
	clientSecret := os.Getenv("GITHUB_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, providerErr(CodeDomainConfigNeeded, "GitHub OAuth credentials are not configured")
	}

	token, err := e.fetchToken("https://github.com/login/oauth/access_token", url.Values{
		"code":          {code},
		"client_id":     {clientID},
		"client_secret": {clientSecret},
	})
	if err != nil {
		return nil, err
	}

	var info struct {
		Email     string `json:"email"`
		Name      string `json:"name"`
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := e.fetchJSON("https://api.github.com/user", token, &info); err != nil {
		return nil, err
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}

	return &OAuthProfile{
		Email:       info.Email,
		DisplayName: name,
		PhotoURL:    info.AvatarURL,
		Provider:    models.ProviderGithub,
	}, nil
}

func (e *HTTPOAuthExchanger) fetchToken(endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", providerErr(CodeNetworkFailure, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error().Err(err).Str("endpoint", endpoint).Msg("OAuth token exchange failed")
		return "", providerErr(CodeNetworkFailure, err.Error())
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.AccessToken == "" {
		return "", providerErr(CodeInvalidCredential, "provider rejected the authorization code")
	}
	return payload.AccessToken, nil
}

func (e *HTTPOAuthExchanger) fetchJSON(endpoint, token string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return providerErr(CodeNetworkFailure, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error().Err(err).Str("endpoint", endpoint).Msg("OAuth profile fetch failed")
		return providerErr(CodeNetworkFailure, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return providerErr(CodeInvalidCredential, fmt.Sprintf("provider returned status %d", resp.StatusCode))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

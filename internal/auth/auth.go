package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"
	"golang.org/x/oauth2"

	"floorflow/backend/internal/actor"
	"floorflow/backend/internal/config"
	"floorflow/backend/internal/repository"
	"floorflow/backend/pkg/models"
)

// DevOperator is the identity used when authentication is bypassed.
const DevOperator = "dev@localhost"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth contains configuration and helpers for performing OpenID Connect
// authentication with an Okta tenant.
type Auth struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	apiVerifier  *oidc.IDTokenVerifier
	tenants      repository.TenantStore
	logger       Logger
	authBypass   bool
}

// New creates a new Auth object using values from the application
// configuration. Outside bypass mode it contacts the provider to prepare
// the ID and access token verifiers.
func New(ctx context.Context, cfg *config.Config, tenants repository.TenantStore, logger Logger) (*Auth, error) {
	shouldBypass := cfg.IsDev() && cfg.DevModeBypass

	a := &Auth{tenants: tenants, logger: logger, authBypass: shouldBypass}
	if shouldBypass {
		return a, nil
	}

	if cfg.Auth.OktaDomain == "" || cfg.Auth.ClientID == "" ||
		cfg.Auth.ClientSecret == "" || cfg.Auth.RedirectURL == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.OktaDomain)
	if err != nil {
		return nil, err
	}

	a.oauth2Config = &oauth2.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.Auth.RedirectURL,
		Scopes:       LoginScopes,
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.Auth.ClientID})
	// Access tokens carry the API audience rather than the client id.
	a.apiVerifier = provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return a, nil
}

// LoginHandler initiates the OAuth2 authorization code flow by redirecting the
// user to the Okta authorization endpoint. A random state value is stored in a
// cookie to mitigate CSRF attacks.
func (a *Auth) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		HttpOnly: true,
		Path:     "/",
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, a.oauth2Config.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the redirect back from Okta. It verifies the state
// parameter, exchanges the code for tokens, validates the ID token, and sets a
// session cookie containing the raw ID token.
func (a *Auth) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if a.authBypass {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	cookie, err := r.Cookie("oauthstate")
	if err != nil || r.URL.Query().Get("state") != cookie.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	token, err := a.oauth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "token exchange failed", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token in token response", http.StatusInternalServerError)
		return
	}

	if _, err := a.verifier.Verify(r.Context(), rawIDToken); err != nil {
		http.Error(w, "failed to verify id token", http.StatusUnauthorized)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "id_token",
		Value:    rawIDToken,
		HttpOnly: true,
		Path:     "/",
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RequireAuth is middleware that resolves the caller from a bearer token or
// the session cookie, maps the email domain to a tenant (provisioning it on
// first sight) and puts tenant and operator on the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := DevOperator
		if !a.authBypass {
			var ok bool
			if email, ok = a.authenticate(w, r); !ok {
				return
			}
		}

		_, domain, found := strings.Cut(email, "@")
		if !found || domain == "" || strings.Contains(domain, "@") {
			http.Error(w, "invalid email format in token", http.StatusUnauthorized)
			return
		}

		tenant, err := a.tenantFor(r.Context(), domain)
		if err != nil {
			if a.logger != nil {
				a.logger.Error("failed to resolve tenant", "domain", domain, "error", err)
			}
			http.Error(w, "failed to resolve tenant", http.StatusInternalServerError)
			return
		}

		ctx := actor.WithTenant(r.Context(), tenant.ID)
		ctx = actor.WithOperator(ctx, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate verifies the request's token and returns its email claim.
// On failure the response has been written.
func (a *Auth) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	var token *oidc.IDToken
	var err error

	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token, err = a.apiVerifier.Verify(r.Context(), strings.TrimPrefix(authHeader, "Bearer "))
	} else {
		cookie, cerr := r.Cookie("id_token")
		if cerr != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return "", false
		}
		token, err = a.verifier.Verify(r.Context(), cookie.Value)
	}
	if err != nil {
		http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
		return "", false
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := token.Claims(&claims); err != nil {
		http.Error(w, "failed to parse token claims", http.StatusUnauthorized)
		return "", false
	}
	return claims.Email, true
}

func (a *Auth) tenantFor(ctx context.Context, domain string) (*models.Tenant, error) {
	tenant, err := a.tenants.GetTenantByDomain(ctx, domain)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	tenant = &models.Tenant{Name: domain, Domain: domain}
	if err := a.tenants.CreateTenant(ctx, tenant); err != nil {
		// A concurrent request may have provisioned the domain first.
		if existing, getErr := a.tenants.GetTenantByDomain(ctx, domain); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	if a.logger != nil {
		a.logger.Info("tenant provisioned", "domain", domain, "tenant_id", tenant.ID)
	}
	return tenant, nil
}

// LogoutHandler clears the session cookie and redirects to the home page.
func (a *Auth) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   "id_token",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

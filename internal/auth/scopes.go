package auth

const (
	ScopeOpenID     = "openid"
	ScopeProfile    = "profile"
	ScopeEmail      = "email"
	ScopeFloorRead  = "floor:read"
	ScopeFloorWrite = "floor:write"
)

// LoginScopes are requested by the browser login flow.
var LoginScopes = []string{ScopeOpenID, ScopeProfile, ScopeEmail}

// AllScopes defines the full set of scopes offered by the Swagger UI
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeFloorRead,
	ScopeFloorWrite,
}

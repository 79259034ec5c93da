// Package auth turns session tokens into actors.
//
// # Tokens
//
// Sessions are HS256 JWTs signed with the configured jwt_secret. The "sub"
// claim holds the account id and "exp" the end of the session:
//
//	v := auth.NewJWTVerifier([]byte(secret))
//	token, err := v.Generate(account.ID, 24*time.Hour)
//	accountID, err := v.Verify(token)
//
// The same token is used as the HTTP session cookie, as a bearer token and
// as the CLI's persisted identity marker.
//
// # HTTP Middleware
//
// Middleware reads the bearer token or the session cookie, verifies it and
// re-loads the account through an AccountValidator on every request. A
// banned or deleted account is treated as anonymous, which keeps the server
// side of a session consistent with the identity store.
//
//	handler = auth.Middleware(identitySvc, verifier, "commons_session")(handler)
//
// RequireAuth and RequireAdminHTTP gate routes after Middleware has run.
// Handlers read the caller with ActorFromContext; nil means anonymous.
package auth

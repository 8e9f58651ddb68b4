// Package auth provides bearer-token authentication for the TechScore API.
//
// # Tokens
//
// API clients such as techscore-admin authenticate with HS256 JWTs whose
// "sub" claim is an account ID. Tokens are minted with "techscore token"
// and verified with the configured auth.jwt_secret:
//
//	verifier, err := auth.NewJWTVerifier(secret)
//	token, err := verifier.Generate(userID, 30*24*time.Hour)
//	userID, err := verifier.Verify(token)
//
// The same verifier signs outgoing update webhooks with Sign, so receivers
// can check them with the shared secret.
//
// # HTTP Middleware
//
// HTTPAuthMiddleware reads "Authorization: Bearer <token>", verifies it,
// loads the account and attaches an AuthContext:
//
//	mux.Handle("/api/", auth.HTTPAuthMiddleware(store, verifier)(api))
//
// Handlers read it back with FromContext and use IsAdmin to decide whether
// the caller is limited to the regattas it scores.
//
// Browser sessions for the scoring UI are handled by package webadmin.
package auth

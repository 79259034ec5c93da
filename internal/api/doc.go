// Package api serves the commons JSON API over HTTP.
//
// Every request passes through auth.Middleware, which resolves the caller
// from a bearer token or the session cookie and falls back to anonymous
// when the session no longer validates. Handlers then call the identity and
// content services with that actor; authorization is decided there, not in
// the routing table. Routes that need a caller are wrapped in
// auth.RequireAuth only so anonymous requests get a 401 before decoding.
//
// Errors are returned as {"error": "..."} with the status chosen by
// statusFor: duplicates, repeated likes and protected accounts are 409,
// missing rows 404, bad credentials 401, banned accounts and denied
// actions 403, validation failures 400 and a lost store 503.
package api

// Package httpapi exposes the profile sync service over HTTP with fiber.
//
// Every /api route requires a bearer token verified by the configured
// TokenVerifier. The websocket route also accepts the token as a `token`
// query parameter because browsers cannot set headers on upgrade requests.
// Failures are rendered as a JSON error body carrying the go-errors category,
// HTTP code and text code.
package httpapi

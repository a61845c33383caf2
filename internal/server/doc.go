// Package server exposes the storefront and admin HTTP API. Storefront
// routes are open and gate access per request; admin routes require the
// configured bearer token.
package server

// Package gate implements the authoritative access check for gated media.
//
// A package's media may be downloaded when the package is not expired and
// either does not require purchase, is complimentary, or has a succeeded
// purchase recorded for the requesting email. The decision is made server-side
// on every request so client state can never widen access.
package gate

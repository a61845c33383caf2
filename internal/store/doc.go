// Package store persists the media catalog in SQLite: packages keyed by
// access code, the media items they own, purchase records reconciled from
// payment webhooks, and append-only download telemetry.
//
// Timestamps are stored as RFC3339Nano TEXT in UTC. Purchase inserts are
// idempotent on the checkout session identifier so duplicate webhook
// deliveries collapse to a single row.
package store

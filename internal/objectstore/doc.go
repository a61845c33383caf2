// Package objectstore talks to the hosted object storage API. It issues
// signed download URLs with a short-lived cache, exposes the resumable
// upload endpoints used by the upload coordinator, and builds public URLs
// for preview assets.
package objectstore

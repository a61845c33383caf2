// Package services provides cross-cutting helpers shared by the domain
// services: sentinel error markers with HTTP status mapping, and context
// annotations carrying request identity through the call tree.
package services

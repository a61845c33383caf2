// Package notifications pushes operator-facing events to ntfy. Purchases,
// refunds, upload completions, and errors each have a config toggle; when no
// topic is configured the service is a noop.
package notifications

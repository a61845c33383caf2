// Package payments talks to the hosted payment provider. It creates prices
// and checkout sessions over the provider's form-encoded REST API and
// verifies the signatures on webhook deliveries.
package payments

// Package checkout bridges the catalog to the payment provider. It opens
// hosted checkout sessions for purchasable packages and turns webhook
// deliveries into purchase records.
package checkout

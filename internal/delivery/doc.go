// Package delivery hands out media to storefront visitors. Every grant goes
// through the access gate; denied viewers get watermarked previews instead
// of originals. Download tracking is best-effort and never blocks a grant.
package delivery

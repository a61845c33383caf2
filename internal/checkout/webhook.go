package checkout

import (
	"context"
	"fmt"

	"aeromedia/internal/logging"
	"aeromedia/internal/payments"
	"aeromedia/internal/store"
)

// Fulfiller processes verified webhook deliveries from the payment provider.
type Fulfiller struct {
	bridge   *Bridge
	verifier *payments.Verifier
}

// NewFulfiller creates a webhook processor backed by the bridge's store and
// notifier.
func NewFulfiller(bridge *Bridge, verifier *payments.Verifier) *Fulfiller {
	return &Fulfiller{bridge: bridge, verifier: verifier}
}

// HandleDelivery verifies and processes one webhook delivery. A signature
// failure is the only error returned; every other problem is logged and
// swallowed so the provider does not retry deliveries we cannot use.
func (f *Fulfiller) HandleDelivery(ctx context.Context, body []byte, signatureHeader string) error {
	b := f.bridge
	if f.verifier == nil {
		b.metrics.WebhookEvent("unknown", "rejected")
		return fmt.Errorf("%w: no webhook secret configured", payments.ErrInvalidSignature)
	}
	if err := f.verifier.Verify(body, signatureHeader); err != nil {
		b.metrics.WebhookEvent("unknown", "rejected")
		b.logger.Warn("webhook signature rejected", logging.Error(err))
		return err
	}

	event, err := payments.ParseEvent(body)
	if err != nil {
		b.metrics.WebhookEvent("unknown", "malformed")
		b.logger.Error("webhook body malformed", logging.Error(err))
		return nil
	}

	switch event.Type {
	case payments.EventCheckoutCompleted:
		f.handleCheckoutCompleted(ctx, event)
	case payments.EventPaymentFailed:
		f.handleStatusUpdate(ctx, event, store.PurchaseFailed)
	case payments.EventChargeRefunded:
		f.handleStatusUpdate(ctx, event, store.PurchaseRefunded)
	case payments.EventCheckoutExpired:
		b.metrics.WebhookEvent(event.Type, "ignored")
		b.logger.Debug("checkout session expired", logging.String("event_id", event.ID))
	default:
		b.metrics.WebhookEvent(event.Type, "ignored")
		b.logger.Debug("ignoring webhook event", logging.String("type", event.Type))
	}
	return nil
}

func (f *Fulfiller) handleCheckoutCompleted(ctx context.Context, event *payments.Event) {
	b := f.bridge
	session, err := event.Session()
	if err != nil {
		b.metrics.WebhookEvent(event.Type, "malformed")
		b.logger.Error("decode completed session", logging.Error(err))
		return
	}

	packageID := session.Metadata["package_id"]
	if packageID == "" || session.ID == "" {
		b.metrics.WebhookEvent(event.Type, "malformed")
		b.logger.Error("completed session missing identifiers",
			logging.String("session_id", session.ID),
			logging.String("package_id", packageID))
		return
	}

	email := normalizeEmail(session.CustomerEmail)
	if email == "" {
		email = normalizeEmail(session.Metadata["email"])
	}

	inserted, err := b.store.InsertPurchase(ctx, store.NewPurchaseParams{
		PackageID:         packageID,
		Email:             email,
		CheckoutSessionID: session.ID,
		PaymentIntentID:   session.PaymentIntent,
		AmountCents:       session.AmountTotal,
		Currency:          session.Currency,
	})
	if err != nil {
		b.metrics.WebhookEvent(event.Type, "failed")
		b.logger.Error("record purchase", logging.String("session_id", session.ID), logging.Error(err))
		return
	}
	if !inserted {
		b.metrics.WebhookEvent(event.Type, "duplicate")
		b.logger.Debug("duplicate purchase delivery", logging.String("session_id", session.ID))
		return
	}

	b.metrics.WebhookEvent(event.Type, "recorded")
	b.metrics.PurchaseRecorded()
	b.logger.Info("purchase recorded",
		logging.String("package_id", packageID),
		logging.String("session_id", session.ID))

	f.notifyPurchase(ctx, packageID, email, session.AmountTotal, session.Currency)
}

func (f *Fulfiller) handleStatusUpdate(ctx context.Context, event *payments.Event, status store.PurchaseStatus) {
	b := f.bridge
	intent, err := event.Intent()
	if err != nil {
		b.metrics.WebhookEvent(event.Type, "malformed")
		b.logger.Error("decode intent payload", logging.Error(err))
		return
	}

	intentID := intent.IntentID()
	if intentID == "" {
		b.metrics.WebhookEvent(event.Type, "malformed")
		b.logger.Error("intent event missing payment intent id", logging.String("event_id", event.ID))
		return
	}

	updated, err := b.store.UpdatePurchaseStatusByIntent(ctx, intentID, status)
	if err != nil {
		b.metrics.WebhookEvent(event.Type, "failed")
		b.logger.Error("update purchase status",
			logging.String("payment_intent", intentID),
			logging.Error(err))
		return
	}
	if !updated {
		b.metrics.WebhookEvent(event.Type, "unmatched")
		b.logger.Debug("no purchase for payment intent", logging.String("payment_intent", intentID))
		return
	}

	b.metrics.WebhookEvent(event.Type, "recorded")
	b.logger.Info("purchase status updated",
		logging.String("payment_intent", intentID),
		logging.String("status", string(status)))

	if status == store.PurchaseRefunded {
		f.notifyRefund(ctx, intentID)
	}
}

func (f *Fulfiller) notifyPurchase(ctx context.Context, packageID, email string, amountCents int64, currency string) {
	b := f.bridge
	if b.notifier == nil {
		return
	}
	title := packageID
	if pkg, err := b.store.GetPackage(ctx, packageID); err == nil && pkg != nil {
		title = pkg.Title
	}
	if err := b.notifier.NotifyPurchaseCompleted(ctx, title, email, amountCents, currency); err != nil {
		b.logger.Warn("purchase notification failed", logging.Error(err))
	}
}

func (f *Fulfiller) notifyRefund(ctx context.Context, intentID string) {
	b := f.bridge
	if b.notifier == nil {
		return
	}
	if err := b.notifier.NotifyRefund(ctx, "", intentID); err != nil {
		b.logger.Warn("refund notification failed", logging.Error(err))
	}
}

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"tarot-oracle-backend/internal/config"
	"tarot-oracle-backend/internal/db"
	"tarot-oracle-backend/internal/models"
)

// Billing errors surfaced to the handler layer. Purchase-flow failures
// always propagate; the core never grants entitlement on an indeterminate
// checkout. Activation is authoritative only via the webhook.
var (
	ErrBillingNotConfigured = errors.New("billing is not configured")
	ErrPlanNotFound         = errors.New("price ID not found")
	ErrStripeClient         = errors.New("stripe client operation failed")
	ErrWebhookSignature     = errors.New("stripe webhook signature verification failed")
	ErrWebhookProcessing    = errors.New("stripe webhook processing failed")
)

// EntitlementInvalidator lets the webhook drop a user's cached entitlement
// after writing the subscription record, so the next refresh observes it.
type EntitlementInvalidator interface {
	Invalidate(userID string)
}

type stripeBillingService struct {
	subs        db.SubscriptionRepository
	entitlement EntitlementInvalidator
	appConfig   *config.Config
	logger      *zap.Logger
}

// NewStripeBillingService creates the live BillingService. The Stripe secret
// key is installed globally, matching the SDK's client model.
func NewStripeBillingService(subs db.SubscriptionRepository, entitlement EntitlementInvalidator, appConfig *config.Config, logger *zap.Logger) BillingService {
	if appConfig.StripeSecretKey != "" {
		stripe.Key = appConfig.StripeSecretKey
	}
	return &stripeBillingService{
		subs:        subs,
		entitlement: entitlement,
		appConfig:   appConfig,
		logger:      logger,
	}
}

// CreateCheckoutSession creates a subscription-mode Checkout Session and
// returns its redirect URL. The user's UID rides along as
// client_reference_id and subscription metadata so webhook events map back
// to the user.
func (s *stripeBillingService) CreateCheckoutSession(ctx context.Context, userID, email, priceID string) (string, error) {
	if !s.appConfig.BillingConfigured() {
		return "", ErrBillingNotConfigured
	}
	if priceID == "" {
		priceID = s.appConfig.StripePriceID
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: no price ID supplied or configured", ErrPlanNotFound)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		ClientReferenceID:   stripe.String(userID),
		SuccessURL:          stripe.String(s.appConfig.CheckoutSuccessURL),
		CancelURL:           stripe.String(s.appConfig.CheckoutCancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"uid": userID},
		},
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStripeClient, err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies the event signature and applies the subscription
// lifecycle signals: checkout completed activates, subscription updates sync
// status/expiry, deletion deactivates.
func (s *stripeBillingService) HandleWebhook(ctx context.Context, signature string, payload []byte) error {
	event, err := webhook.ConstructEvent(payload, signature, s.appConfig.StripeWebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		return s.onCheckoutCompleted(ctx, event.Data.Raw)
	case "customer.subscription.updated":
		return s.onSubscriptionUpdated(ctx, event.Data.Raw)
	case "customer.subscription.deleted":
		return s.onSubscriptionDeleted(ctx, event.Data.Raw)
	default:
		s.logger.Info("Unhandled stripe event", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *stripeBillingService) onCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var sess struct {
		ClientReferenceID string `json:"client_reference_id"`
		Customer          string `json:"customer"`
		Subscription      string `json:"subscription"`
	}
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("%w: decoding checkout session: %v", ErrWebhookProcessing, err)
	}
	if sess.ClientReferenceID == "" {
		return fmt.Errorf("%w: checkout session missing client_reference_id", ErrWebhookProcessing)
	}

	record := &models.SubscriptionRecord{
		Active:               true,
		Status:               "active",
		StripeCustomerID:     sess.Customer,
		StripeSubscriptionID: sess.Subscription,
	}
	if err := s.subs.Put(ctx, sess.ClientReferenceID, record); err != nil {
		return fmt.Errorf("%w: activating subscription: %v", ErrWebhookProcessing, err)
	}
	s.entitlement.Invalidate(sess.ClientReferenceID)
	s.logger.Info("Subscription activated via checkout",
		zap.String("userID", sess.ClientReferenceID))
	return nil
}

type subscriptionEvent struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

func (s *stripeBillingService) onSubscriptionUpdated(ctx context.Context, raw json.RawMessage) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("%w: decoding subscription: %v", ErrWebhookProcessing, err)
	}
	userID := sub.Metadata["uid"]
	if userID == "" {
		// Not one of ours; acknowledge without acting.
		s.logger.Warn("Subscription event without uid metadata", zap.String("subscription", sub.ID))
		return nil
	}

	active := sub.Status == "active" || sub.Status == "trialing"
	record := &models.SubscriptionRecord{
		Active:               active,
		Status:               sub.Status,
		StripeCustomerID:     sub.Customer,
		StripeSubscriptionID: sub.ID,
	}
	if sub.CurrentPeriodEnd > 0 {
		record.ExpiresAt = sub.CurrentPeriodEnd * 1000
	}
	if err := s.subs.Put(ctx, userID, record); err != nil {
		return fmt.Errorf("%w: syncing subscription: %v", ErrWebhookProcessing, err)
	}
	s.entitlement.Invalidate(userID)
	return nil
}

func (s *stripeBillingService) onSubscriptionDeleted(ctx context.Context, raw json.RawMessage) error {
	var sub subscriptionEvent
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("%w: decoding subscription: %v", ErrWebhookProcessing, err)
	}
	userID := sub.Metadata["uid"]
	if userID == "" {
		s.logger.Warn("Subscription deletion without uid metadata", zap.String("subscription", sub.ID))
		return nil
	}

	record := &models.SubscriptionRecord{
		Active:               false,
		Status:               "canceled",
		StripeSubscriptionID: sub.ID,
	}
	if err := s.subs.Put(ctx, userID, record); err != nil {
		return fmt.Errorf("%w: deactivating subscription: %v", ErrWebhookProcessing, err)
	}
	s.entitlement.Invalidate(userID)
	s.logger.Info("Subscription deactivated", zap.String("userID", userID))
	return nil
}

// --- Simulated implementation ---

// simulatedBillingService serves simulated mode: checkout returns a canned
// redirect URL without activating anything (activation stays webhook- or
// test-path-only, never a side effect of opening checkout).
type simulatedBillingService struct {
	logger *zap.Logger
}

// NewSimulatedBillingService creates the BillingService for simulated mode.
func NewSimulatedBillingService(logger *zap.Logger) BillingService {
	return &simulatedBillingService{logger: logger}
}

func (s *simulatedBillingService) CreateCheckoutSession(_ context.Context, userID, _, _ string) (string, error) {
	s.logger.Info("Simulated checkout session", zap.String("userID", userID))
	return "https://checkout.simulated.local/session/" + userID, nil
}

func (s *simulatedBillingService) HandleWebhook(_ context.Context, _ string, _ []byte) error {
	return ErrBillingNotConfigured
}

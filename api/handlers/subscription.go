package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wanderlist/wanderlist-api/config"
	"github.com/wanderlist/wanderlist-api/models"
)

// CheckoutSessionRequest starts a subscription checkout
type CheckoutSessionRequest struct {
	UserID     primitive.ObjectID `json:"userId"`
	PriceID    string             `json:"priceId"`
	Plan       string             `json:"plan"`
	SuccessURL string             `json:"successUrl"`
	CancelURL  string             `json:"cancelUrl"`
}

// CreateCheckoutSessionHandler opens a stripe checkout session for a
// subscription purchase. The session carries the user id so verify can
// tie the subscription back to the account.
func (u User) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req CheckoutSessionRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.UserID.IsZero() || req.PriceID == "" {
		config.ErrorStatus("userId and priceId are required", http.StatusBadRequest, w, fmt.Errorf("userId and priceId are required"))
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": req.UserID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(req.UserID.Hex()),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}

	s, err := session.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Debugw("checkout session created", "user", req.UserID.Hex(), "session", s.ID)

	b, err := json.Marshal(map[string]string{"sessionId": s.ID, "url": s.URL})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// VerifySubscriptionRequest confirms a checkout finished
type VerifySubscriptionRequest struct {
	UserID    primitive.ObjectID `json:"userId"`
	SessionID string             `json:"sessionId"`
	Plan      string             `json:"plan"`
}

// VerifySubscriptionHandler confirms the checkout with stripe and
// provisions the paid entitlements: the subscription state on the user
// document, plus an ai_features flag grant that expires at the end of
// the current billing period. Renewal verification extends the grant.
func (u User) VerifySubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req VerifySubscriptionRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.UserID.IsZero() || req.SessionID == "" {
		config.ErrorStatus("userId and sessionId are required", http.StatusBadRequest, w, fmt.Errorf("userId and sessionId are required"))
		return
	}

	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("subscription")
	s, err := session.Get(req.SessionID, params)
	if err != nil {
		config.ErrorStatus("failed to get checkout session", http.StatusInternalServerError, w, err)
		return
	}

	sub := s.Subscription
	if sub == nil {
		config.ErrorStatus("checkout session has no subscription", http.StatusBadRequest, w, fmt.Errorf("session %s has no subscription", req.SessionID))
		return
	}
	if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
		config.ErrorStatus("subscription is not active", http.StatusPaymentRequired, w, fmt.Errorf("subscription status %s", sub.Status))
		return
	}

	// Period end lives on the subscription item, not the subscription.
	if len(sub.Items.Data) == 0 {
		config.ErrorStatus("subscription has no items", http.StatusInternalServerError, w, fmt.Errorf("subscription %s has no items", sub.ID))
		return
	}
	periodEnd := time.Unix(sub.Items.Data[0].CurrentPeriodEnd, 0)

	plan := req.Plan
	if plan == "" {
		plan = models.PlanVoyager
	}

	now := time.Now()
	subDoc := models.Subscription{
		ID:               sub.ID,
		Plan:             plan,
		Active:           true,
		CurrentPeriodEnd: &periodEnd,
		UpdatedAt:        now,
	}

	_, err = u.DB.UpdateOne(context.Background(), bson.M{"_id": req.UserID},
		bson.M{"$set": bson.M{"subscription": subDoc, "updatedAt": now}})
	if err != nil {
		config.ErrorStatus("failed to update user subscription", http.StatusInternalServerError, w, err)
		return
	}

	if err := u.grantFlag(req.UserID, models.FeatureFlag{
		Key:       models.FlagAIFeatures,
		Enabled:   true,
		ExpiresAt: &periodEnd,
		GrantedAt: now,
		Source:    "subscription",
	}); err != nil {
		config.ErrorStatus("failed to grant ai_features flag", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("subscription verified",
		"user", req.UserID.Hex(),
		"subscription", sub.ID,
		"periodEnd", periodEnd,
	)

	b, err := json.Marshal(subDoc)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UnsubscribeRequest cancels a user's subscription
type UnsubscribeRequest struct {
	UserID primitive.ObjectID `json:"userId"`
}

// UnsubscribeUserHandler cancels the stripe subscription and disables
// the ai_features grant. The grant is disabled rather than deleted so
// the grant history stays on the document.
func (u User) UnsubscribeUserHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req UnsubscribeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	user, err := u.DB.FindOne(context.Background(), bson.M{"_id": req.UserID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}
	if user.Subscription.ID == "" {
		config.ErrorStatus("user has no subscription", http.StatusBadRequest, w, fmt.Errorf("user %s has no subscription", req.UserID.Hex()))
		return
	}

	_, err = subscription.Cancel(user.Subscription.ID, nil)
	if err != nil {
		config.ErrorStatus("failed to cancel subscription", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now()
	_, err = u.DB.UpdateOne(context.Background(), bson.M{"_id": req.UserID},
		bson.M{"$set": bson.M{"subscription.active": false, "subscription.updatedAt": now, "updatedAt": now}})
	if err != nil {
		config.ErrorStatus("failed to update user subscription", http.StatusInternalServerError, w, err)
		return
	}

	_, err = u.DB.UpdateOne(context.Background(),
		bson.M{"_id": req.UserID, "featureFlags.key": models.FlagAIFeatures},
		bson.M{"$set": bson.M{"featureFlags.$.enabled": false}})
	if err != nil {
		config.ErrorStatus("failed to disable ai_features flag", http.StatusInternalServerError, w, err)
		return
	}
	u.invalidateFlagCache(req.UserID)

	zap.S().Infow("subscription canceled", "user", req.UserID.Hex(), "subscription", user.Subscription.ID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"canceled": true}`))
}

// grantFlag replaces any existing grant for the key so re-verification
// extends the expiry instead of stacking duplicate entries.
func (u User) grantFlag(userID primitive.ObjectID, flag models.FeatureFlag) error {
	_, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"featureFlags": bson.M{"key": flag.Key}}})
	if err != nil {
		return err
	}
	_, err = u.DB.UpdateOne(context.Background(), bson.M{"_id": userID},
		bson.M{"$push": bson.M{"featureFlags": flag}})
	if err != nil {
		return err
	}
	u.invalidateFlagCache(userID)
	return nil
}

func (u User) invalidateFlagCache(userID primitive.ObjectID) {
	if u.FlagCache != nil {
		u.FlagCache.Invalidate(userID.Hex())
	}
}

// handleSuccessRedirect lands the browser after a completed checkout.
// Provisioning happens in verify-subscription, not here.
func handleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<html><body><h2>Payment complete</h2><p>You can close this window and head back to Wanderlist.</p></body></html>`)
}

// handleCancelRedirect lands the browser after an abandoned checkout
func handleCancelRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<html><body><h2>Checkout canceled</h2><p>No charge was made. You can close this window.</p></body></html>`)
}

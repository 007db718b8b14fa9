package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devricklin/fanwatch-bridge/internal/biz/domain"
	"github.com/devricklin/fanwatch-bridge/internal/biz/repo"
)

const reviewTimeout = 10 * time.Second

// Notification kinds
const (
	NotifyAlert        = "alert"
	NotifyForward      = "forward"
	NotifyTip          = "tip"
	NotifySubscription = "subscription"
	NotifyPurchase     = "purchase"
	NotifyUnknown      = "unknown"
	NotifyStatus       = "status" // Session lifecycle
)

// Notification is what the router decided to tell the operator
type Notification struct {
	Kind string
	Text string
}

// EventRouter turns decoded events into operator notifications
type EventRouter struct {
	profiles   *ProfileStore
	limiter    *AlertLimiter
	reviewRepo repo.ReviewRepo // Optional

	classify func(text string, triggers []string) Classification
	now      func() time.Time
}

// NewEventRouter creates a new event router. reviewRepo may be nil.
func NewEventRouter(profiles *ProfileStore, limiter *AlertLimiter, reviewRepo repo.ReviewRepo) *EventRouter {
	return &EventRouter{
		profiles:   profiles,
		limiter:    limiter,
		reviewRepo: reviewRepo,
		classify:   Classify,
		now:        time.Now,
	}
}

// Route handles one event for the account. ok is false when nothing should be sent.
func (r *EventRouter) Route(ctx context.Context, account domain.Account, event domain.Event) (Notification, bool) {
	switch e := event.(type) {
	case domain.ChatMessage:
		return r.routeChat(ctx, account, e)
	case domain.Tip:
		return Notification{
			Kind: NotifyTip,
			Text: fmt.Sprintf("Tip from %s: %s", formatSender(e.Sender), formatAmount(e.Amount, e.Currency)),
		}, true
	case domain.Subscription:
		text := fmt.Sprintf("New subscriber %s: price %.2f", formatSender(e.Sender), e.Price)
		if e.Months > 0 {
			text += fmt.Sprintf(", %d month(s)", e.Months)
		}
		return Notification{Kind: NotifySubscription, Text: text}, true
	case domain.Purchase:
		text := fmt.Sprintf("Purchase by %s: %s", formatSender(e.Sender), formatAmount(e.Amount, e.Currency))
		if e.Item != "" {
			text += " for " + e.Item
		}
		return Notification{Kind: NotifyPurchase, Text: text}, true
	case domain.SystemNoise:
		return Notification{}, false
	case domain.Unknown:
		if !r.limiter.ShouldAlert(account.Key, e.EventType, r.now()) {
			return Notification{}, false
		}
		return Notification{
			Kind: NotifyUnknown,
			Text: fmt.Sprintf("Unrecognized event %q, keys %v\n%s", e.EventType, e.RawKeys, e.RawPayload),
		}, true
	default:
		fmt.Printf("[Router] Unhandled event type %T for %s\n", event, account.Key)
		return Notification{}, false
	}
}

func (r *EventRouter) routeChat(ctx context.Context, account domain.Account, msg domain.ChatMessage) (Notification, bool) {
	// Outbound content is the account's own; it neither updates the profile nor alerts
	if msg.Outbound {
		return Notification{}, false
	}

	if msg.Sender != nil {
		r.profiles.Set(account.Key, msg.Sender)
	}
	profile := r.profiles.Get(account.Key)

	if profile == nil || !profile.CanEarn {
		c := r.classify(msg.Text, account.Triggers.Effective())
		if !c.Empty() {
			return Notification{Kind: NotifyAlert, Text: r.alertText(ctx, msg.Text, profile, c)}, true
		}
	}

	if account.ForwardAll {
		return Notification{
			Kind: NotifyForward,
			Text: fmt.Sprintf("Message from %s: %s", formatSender(profile), msg.Text),
		}, true
	}
	return Notification{}, false
}

func (r *EventRouter) alertText(ctx context.Context, text string, profile *domain.SenderProfile, c Classification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TRIGGER! Time: %s\n", r.now().UTC().Format(time.RFC1123))
	fmt.Fprintf(&b, "From: %s\n", formatSender(profile))
	if len(c.Links) > 0 {
		fmt.Fprintf(&b, "Links: %s\n", strings.Join(c.Links, ", "))
	}
	if len(c.Payments) > 0 {
		fmt.Fprintf(&b, "Payments: %s\n", strings.Join(c.Payments, ", "))
	}
	if len(c.Triggers) > 0 {
		fmt.Fprintf(&b, "Triggers: %s\n", strings.Join(c.Triggers, ", "))
	}
	fmt.Fprintf(&b, "Message: %s", text)

	if r.reviewRepo != nil {
		reviewCtx, cancel := context.WithTimeout(ctx, reviewTimeout)
		defer cancel()
		verdict, err := r.reviewRepo.Review(reviewCtx, text, c.All())
		if err != nil {
			fmt.Printf("[Router] Review failed: %v\n", err)
		} else if verdict != "" {
			fmt.Fprintf(&b, "\nReview: %s", verdict)
		}
	}
	return b.String()
}

func formatSender(p *domain.SenderProfile) string {
	if p == nil {
		return "unknown sender"
	}
	parts := []string{p.DisplayName()}
	if p.ID != 0 {
		parts = append(parts, fmt.Sprintf("id %d", p.ID))
	}
	if p.Verified {
		parts = append(parts, "verified")
	}
	if p.SubscribePrice > 0 {
		parts = append(parts, fmt.Sprintf("subscription %d", p.SubscribePrice))
	}
	return strings.Join(parts, ", ")
}

func formatAmount(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

package services

import (
	"time"

	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// SubscriptionService is the state machine that tracks each account's plan,
// unlocked depth and billing-cycle validity.
//
// States: none -> active -> {past_due, canceled}; past_due -> active on
// recovery, past_due -> canceled after the grace period. Canceled is
// terminal: a re-subscription creates a fresh record so commission
// provenance stays clean.
type SubscriptionService interface {
	// InitForAccount creates the initial record: default lowest plan,
	// status none.
	InitForAccount(accountID string) (*models.Subscription, error)

	// Current returns the account's current subscription with lazy
	// billing-cycle expiry applied.
	Current(accountID string) (*models.Subscription, error)

	// Upgrade is the only mutator that changes plan and unlocked depth. It
	// must run before the commission engine settles any payment tied to the
	// transition, since depth gating reads the current state.
	Upgrade(accountID string, plan models.PlanCode, source models.BillingSource, cycleEnd *time.Time, externalSubID string) (*models.Subscription, error)

	MarkPastDue(accountID string) error
	Cancel(accountID string) error

	// UnlockedDepth resolves the commission depth the account's current plan
	// entitles it to earn from. Accounts without a record earn at the
	// default plan's depth; any other lookup failure is returned so callers
	// do not settle against a guessed depth.
	UnlockedDepth(accountID string) (int, error)

	// ExpireDue applies cycle-end transitions to every active subscription
	// whose cycle ran out: auto-renewing sources go past_due, wallet/manual
	// sources revert to none. Returns the number of subscriptions touched.
	ExpireDue(now time.Time) (int, error)

	// CancelLapsed cancels past_due subscriptions older than the grace
	// period.
	CancelLapsed(now time.Time, grace time.Duration) (int, error)
}

type subscriptionService struct {
	subscriptionRepo repositories.SubscriptionRepository
}

func NewSubscriptionService(subscriptionRepo repositories.SubscriptionRepository) SubscriptionService {
	return &subscriptionService{subscriptionRepo: subscriptionRepo}
}

func (s *subscriptionService) InitForAccount(accountID string) (*models.Subscription, error) {
	sub := &models.Subscription{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		AccountID: accountID,
		PlanCode:  models.DefaultPlan,
		Status:    models.SubscriptionStatusNone,
		Source:    models.BillingSourceNone,
	}
	if err := s.subscriptionRepo.Create(sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) Current(accountID string) (*models.Subscription, error) {
	sub, err := s.subscriptionRepo.FindCurrentByAccountID(accountID)
	if err != nil {
		return nil, err
	}
	return s.applyLazyExpiry(sub)
}

// applyLazyExpiry evaluates billing-cycle expiry on read, so state is
// correct even between sweep runs.
func (s *subscriptionService) applyLazyExpiry(sub *models.Subscription) (*models.Subscription, error) {
	if sub.Status != models.SubscriptionStatusActive || sub.CycleEnd == nil || sub.CycleEnd.After(time.Now()) {
		return sub, nil
	}
	if err := s.expireOne(sub, time.Now()); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *subscriptionService) expireOne(sub *models.Subscription, now time.Time) error {
	if sub.AutoRenew {
		// The gateway is expected to renew; until it does the account is
		// past due.
		since := now
		sub.Status = models.SubscriptionStatusPastDue
		sub.PastDueSince = &since
	} else {
		// Wallet/manual cycles never silently extend: back to none and the
		// default plan unless re-confirmed.
		sub.Status = models.SubscriptionStatusNone
		sub.PlanCode = models.DefaultPlan
		sub.Source = models.BillingSourceNone
		sub.CycleEnd = nil
	}
	return s.subscriptionRepo.Update(sub)
}

func (s *subscriptionService) Upgrade(accountID string, plan models.PlanCode, source models.BillingSource, cycleEnd *time.Time, externalSubID string) (*models.Subscription, error) {
	if _, ok := models.GetPlanSpec(plan); !ok {
		return nil, apperrors.ErrUnknownPlan
	}

	sub, err := s.subscriptionRepo.FindCurrentByAccountID(accountID)
	if err != nil && !apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
		return nil, err
	}

	if sub == nil || !sub.IsCurrent() {
		// No record, or the previous one is canceled (terminal): a fresh
		// subscription record is created rather than resurrecting the old
		// one.
		fresh := &models.Subscription{
			BaseModel: models.BaseModel{ID: uuid.NewString()},
			AccountID: accountID,
		}
		applyActivation(fresh, plan, source, cycleEnd, externalSubID)
		if err := s.subscriptionRepo.Create(fresh); err != nil {
			return nil, err
		}
		logger.Info("subscription created", "account_id", accountID, "plan", plan, "source", source)
		return fresh, nil
	}

	// none -> active, active -> active (plan change), past_due -> active
	// (recovery) all land here.
	applyActivation(sub, plan, source, cycleEnd, externalSubID)
	if err := s.subscriptionRepo.Update(sub); err != nil {
		return nil, err
	}
	logger.Info("subscription upgraded", "account_id", accountID, "plan", plan, "source", source)
	return sub, nil
}

func applyActivation(sub *models.Subscription, plan models.PlanCode, source models.BillingSource, cycleEnd *time.Time, externalSubID string) {
	sub.Status = models.SubscriptionStatusActive
	sub.PlanCode = plan
	sub.Source = source
	sub.CycleEnd = cycleEnd
	sub.AutoRenew = source == models.BillingSourceGateway
	sub.PastDueSince = nil
	if externalSubID != "" {
		sub.ExternalSubID = externalSubID
	}
}

func (s *subscriptionService) MarkPastDue(accountID string) error {
	sub, err := s.subscriptionRepo.FindCurrentByAccountID(accountID)
	if err != nil {
		return err
	}
	if sub.Status != models.SubscriptionStatusActive {
		return apperrors.ErrInvalidTransition
	}
	now := time.Now()
	sub.Status = models.SubscriptionStatusPastDue
	sub.PastDueSince = &now
	return s.subscriptionRepo.Update(sub)
}

func (s *subscriptionService) Cancel(accountID string) error {
	sub, err := s.subscriptionRepo.FindCurrentByAccountID(accountID)
	if err != nil {
		return err
	}
	if sub.Status != models.SubscriptionStatusActive && sub.Status != models.SubscriptionStatusPastDue {
		return apperrors.ErrInvalidTransition
	}
	now := time.Now()
	sub.Status = models.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.AutoRenew = false
	return s.subscriptionRepo.Update(sub)
}

func (s *subscriptionService) UnlockedDepth(accountID string) (int, error) {
	sub, err := s.Current(accountID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
			return models.UnlockedDepthFor(models.DefaultPlan), nil
		}
		return 0, err
	}
	return models.UnlockedDepthFor(sub.PlanCode), nil
}

func (s *subscriptionService) ExpireDue(now time.Time) (int, error) {
	due, err := s.subscriptionRepo.FindActiveDue(now)
	if err != nil {
		return 0, err
	}
	touched := 0
	for i := range due {
		if err := s.expireOne(&due[i], now); err != nil {
			logger.Error("failed to expire subscription", "subscription_id", due[i].ID, "error", err)
			continue
		}
		touched++
	}
	return touched, nil
}

func (s *subscriptionService) CancelLapsed(now time.Time, grace time.Duration) (int, error) {
	lapsed, err := s.subscriptionRepo.FindPastDueBefore(now.Add(-grace))
	if err != nil {
		return 0, err
	}
	touched := 0
	for i := range lapsed {
		sub := &lapsed[i]
		canceledAt := now
		sub.Status = models.SubscriptionStatusCanceled
		sub.CanceledAt = &canceledAt
		sub.AutoRenew = false
		if err := s.subscriptionRepo.Update(sub); err != nil {
			logger.Error("failed to cancel lapsed subscription", "subscription_id", sub.ID, "error", err)
			continue
		}
		touched++
	}
	return touched, nil
}

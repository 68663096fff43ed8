package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/email"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/monitoring"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/internal/services/payments"
	"afiliados_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// Gateway webhook event types the reconciliation layer understands.
const (
	GatewayEventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	GatewayEventPaymentCompleted      = "PAYMENT.SALE.COMPLETED"
	GatewayEventPaymentDenied         = "PAYMENT.SALE.DENIED"
	GatewayEventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
)

// ReconciliationService ingests payment events from the three rails and
// drives the subscription state machine. Every path follows the same fixed
// order: write the PaymentEvent (idempotent on the external reference),
// apply the subscription transition, then settle commissions. The
// PaymentEvent is the durable checkpoint: a crash between steps leaves a
// confirmed-but-unsettled row that the billing worker re-settles.
type ReconciliationService interface {
	CreateGatewaySubscription(accountID string, planCode models.PlanCode) (*dto.CreateGatewaySubscriptionResponse, error)
	ProcessGatewayWebhook(rawBody []byte, signature string) error

	CreateWalletOrder(accountID string, req *dto.CreateWalletOrderRequest) (*dto.CreateWalletOrderResponse, error)
	ConfirmWalletOrder(req *dto.WalletConfirmRequest, signature string) error

	ConfirmManualTransfer(req *dto.ManualConfirmRequest) error

	// ResettleUnsettled reprocesses confirmed payments whose commission pass
	// never committed. Safe to run repeatedly.
	ResettleUnsettled(limit int) (int, error)
}

type reconciliationService struct {
	paymentRepo         repositories.PaymentRepository
	subscriptionRepo    repositories.SubscriptionRepository
	accountRepo         repositories.AccountRepository
	subscriptionService SubscriptionService
	commissionService   CommissionService
	paypal              *payments.PayPalService
	culqi               *payments.CulqiService
	emailService        email.Provider
	billing             struct {
		currency  string
		cycleDays int
	}
}

func NewReconciliationService(
	cfg *config.Config,
	paymentRepo repositories.PaymentRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	accountRepo repositories.AccountRepository,
	subscriptionService SubscriptionService,
	commissionService CommissionService,
	paypal *payments.PayPalService,
	culqi *payments.CulqiService,
	emailService email.Provider,
) ReconciliationService {
	s := &reconciliationService{
		paymentRepo:         paymentRepo,
		subscriptionRepo:    subscriptionRepo,
		accountRepo:         accountRepo,
		subscriptionService: subscriptionService,
		commissionService:   commissionService,
		paypal:              paypal,
		culqi:               culqi,
		emailService:        emailService,
	}
	s.billing.currency = cfg.Billing.Currency
	s.billing.cycleDays = cfg.Billing.CycleDays
	return s
}

// --- Recurring gateway rail ---

func (s *reconciliationService) CreateGatewaySubscription(accountID string, planCode models.PlanCode) (*dto.CreateGatewaySubscriptionResponse, error) {
	if _, ok := models.GetPlanSpec(planCode); !ok {
		return nil, apperrors.ErrUnknownPlan
	}
	approvalURL, err := s.paypal.GenerateApprovalURL(planCode, accountID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExternalServiceError, "payment", "Failed to build approval URL", 503)
	}
	return &dto.CreateGatewaySubscriptionResponse{ApprovalURL: approvalURL}, nil
}

func (s *reconciliationService) ProcessGatewayWebhook(rawBody []byte, signature string) error {
	// Authenticity first; everything before this line is side-effect-free,
	// so the gateway may retry on any later failure.
	if !s.paypal.VerifyWebhookSignature(rawBody, signature) {
		return apperrors.ErrInvalidSignature
	}

	var event dto.GatewayWebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return apperrors.NewBadRequestError("Malformed webhook payload: " + err.Error())
	}
	if event.EventID == "" {
		return apperrors.NewBadRequestError("Webhook payload is missing event_id")
	}

	switch event.EventType {
	case GatewayEventSubscriptionActivated, GatewayEventPaymentCompleted:
		return s.processGatewayPayment(&event, rawBody)
	case GatewayEventPaymentDenied:
		return s.processGatewayFailure(&event, rawBody)
	case GatewayEventSubscriptionCancelled:
		return s.processGatewayCancellation(&event)
	default:
		// Unknown event types are acknowledged, not retried forever.
		logger.Warn("ignoring unknown gateway event type", "event_type", event.EventType, "event_id", event.EventID)
		return nil
	}
}

func (s *reconciliationService) processGatewayPayment(event *dto.GatewayWebhookEvent, rawBody []byte) error {
	accountID, err := s.resolveGatewayAccount(event)
	if err != nil {
		return err
	}

	plan := models.PlanCode(event.PlanCode)
	spec, ok := models.GetPlanSpec(plan)
	if !ok {
		return apperrors.ErrUnknownPlan
	}
	amount := event.Amount
	if amount == 0 {
		amount = spec.Price
	}

	now := time.Now()
	payment, created, err := s.paymentRepo.CreateOrGet(&models.PaymentEvent{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		AccountID:   accountID,
		Rail:        models.RailGatewayRecurring,
		ExternalRef: event.EventID,
		PlanCode:    plan,
		Amount:      amount,
		Currency:    s.billing.currency,
		Status:      models.PaymentStatusConfirmed,
		Checksum:    payloadChecksum(rawBody),
		ConfirmedAt: &now,
	})
	if err != nil {
		return err
	}
	if !created {
		// Redeliveries must carry the payload we recorded the first time;
		// a differing body under the same event id is flagged, never applied.
		if payment.Checksum != "" && payment.Checksum != payloadChecksum(rawBody) {
			logger.Warn("gateway redelivery payload differs from recorded event",
				"event_id", event.EventID, "payment_id", payment.ID)
			monitoring.PaymentsReconciled.WithLabelValues(string(models.RailGatewayRecurring), "replay_mismatch").Inc()
			return nil
		}
		if payment.CommissionSettledAt != nil {
			// Retried delivery of a fully processed event: idempotent no-op.
			monitoring.PaymentsReconciled.WithLabelValues(string(models.RailGatewayRecurring), "duplicate").Inc()
			return nil
		}
	}

	cycleEnd := event.CycleEnd
	if cycleEnd.IsZero() {
		cycleEnd = now.AddDate(0, 0, s.billing.cycleDays)
	}
	if _, err := s.subscriptionService.Upgrade(accountID, plan, models.BillingSourceGateway, &cycleEnd, event.SubscriptionID); err != nil {
		return err
	}

	return s.settleConfirmed(payment)
}

func (s *reconciliationService) processGatewayFailure(event *dto.GatewayWebhookEvent, rawBody []byte) error {
	accountID, err := s.resolveGatewayAccount(event)
	if err != nil {
		return err
	}

	_, _, err = s.paymentRepo.CreateOrGet(&models.PaymentEvent{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		AccountID:   accountID,
		Rail:        models.RailGatewayRecurring,
		ExternalRef: event.EventID,
		PlanCode:    models.PlanCode(event.PlanCode),
		Amount:      event.Amount,
		Currency:    s.billing.currency,
		Status:      models.PaymentStatusFailed,
		Checksum:    payloadChecksum(rawBody),
	})
	if err != nil {
		return err
	}

	err = s.subscriptionService.MarkPastDue(accountID)
	if apperrors.Is(err, apperrors.ErrInvalidTransition) {
		// Already past_due or canceled; the retried webhook is a no-op.
		return nil
	}
	monitoring.PaymentsReconciled.WithLabelValues(string(models.RailGatewayRecurring), "failed").Inc()
	return err
}

func (s *reconciliationService) processGatewayCancellation(event *dto.GatewayWebhookEvent) error {
	accountID, err := s.resolveGatewayAccount(event)
	if err != nil {
		return err
	}
	err = s.subscriptionService.Cancel(accountID)
	if apperrors.Is(err, apperrors.ErrInvalidTransition) {
		return nil
	}
	return err
}

func (s *reconciliationService) resolveGatewayAccount(event *dto.GatewayWebhookEvent) (string, error) {
	if event.AccountID != "" {
		return event.AccountID, nil
	}
	if event.SubscriptionID == "" {
		return "", apperrors.NewBadRequestError("Webhook payload has neither account_id nor subscription_id")
	}
	sub, err := s.subscriptionRepo.FindByExternalSubID(event.SubscriptionID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
			return "", apperrors.NewNotFoundError(err, "No subscription for gateway subscription id")
		}
		return "", err
	}
	return sub.AccountID, nil
}

// --- Wallet QR rail ---

func (s *reconciliationService) CreateWalletOrder(accountID string, req *dto.CreateWalletOrderRequest) (*dto.CreateWalletOrderResponse, error) {
	plan := models.PlanCode(req.Plan)
	spec, ok := models.GetPlanSpec(plan)
	if !ok {
		return nil, apperrors.ErrUnknownPlan
	}

	// Amount and plan are fixed at creation; the confirmation callback can
	// only confirm, never reprice.
	order := &models.PaymentEvent{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		AccountID:   accountID,
		Rail:        models.RailWalletQR,
		ExternalRef: s.culqi.NewOrderRef(),
		PlanCode:    plan,
		Amount:      spec.Price,
		Currency:    s.billing.currency,
		Status:      models.PaymentStatusPending,
	}
	if _, _, err := s.paymentRepo.CreateOrGet(order); err != nil {
		return nil, err
	}

	return &dto.CreateWalletOrderResponse{
		PublicKey:    s.culqi.PublicKey,
		Amount:       order.Amount,
		OrderID:      order.ID,
		CurrencyCode: order.Currency,
	}, nil
}

func (s *reconciliationService) ConfirmWalletOrder(req *dto.WalletConfirmRequest, signature string) error {
	if !s.culqi.VerifyCallbackSignature(req.OrderID, req.ExternalRef, signature) {
		return apperrors.ErrInvalidSignature
	}

	order, err := s.paymentRepo.FindByID(req.OrderID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrPaymentNotFound) {
			return apperrors.NewNotFoundError(err, "Wallet order not found")
		}
		return err
	}

	// The callback must confirm the exact order it claims to confirm; a
	// mismatch leaves the subscription untouched.
	if order.ExternalRef != req.ExternalRef {
		return apperrors.ErrMismatchedOrder
	}

	switch order.Status {
	case models.PaymentStatusConfirmed:
		if order.CommissionSettledAt != nil {
			return apperrors.ErrDuplicatePayment
		}
		// Confirmed but interrupted before settlement: resume below.
	case models.PaymentStatusPending:
		now := time.Now()
		order.Status = models.PaymentStatusConfirmed
		order.ConfirmedAt = &now
		if err := s.paymentRepo.Update(order); err != nil {
			return err
		}
	default:
		// failed/disputed are terminal.
		return apperrors.ErrInvalidTransition
	}

	// Wallet-funded subscriptions never auto-extend: the cycle end is set,
	// and the sweep reverts the subscription to none unless re-confirmed.
	cycleEnd := time.Now().AddDate(0, 0, s.billing.cycleDays)
	if _, err := s.subscriptionService.Upgrade(order.AccountID, order.PlanCode, models.BillingSourceWallet, &cycleEnd, ""); err != nil {
		return err
	}

	return s.settleConfirmed(order)
}

// --- Manual transfer rail ---

func (s *reconciliationService) ConfirmManualTransfer(req *dto.ManualConfirmRequest) error {
	plan := models.PlanCode(req.PlanCode)
	if _, ok := models.GetPlanSpec(plan); !ok {
		return apperrors.ErrUnknownPlan
	}
	if _, err := s.accountRepo.FindByID(req.AccountID); err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return apperrors.NewNotFoundError(err, "Account not found")
		}
		return err
	}

	// The operator action is the confirmation; the idempotency token is the
	// external reference that collapses resubmissions.
	now := time.Now()
	payment, created, err := s.paymentRepo.CreateOrGet(&models.PaymentEvent{
		BaseModel:   models.BaseModel{ID: uuid.NewString()},
		AccountID:   req.AccountID,
		Rail:        models.RailManualTransfer,
		ExternalRef: req.IdempotencyToken,
		PlanCode:    plan,
		Amount:      req.Amount,
		Currency:    s.billing.currency,
		Status:      models.PaymentStatusConfirmed,
		ConfirmedAt: &now,
	})
	if err != nil {
		return err
	}
	if !created && payment.CommissionSettledAt != nil {
		return apperrors.ErrDuplicatePayment
	}

	cycleEnd := now.AddDate(0, 0, s.billing.cycleDays)
	if _, err := s.subscriptionService.Upgrade(req.AccountID, plan, models.BillingSourceWallet, &cycleEnd, ""); err != nil {
		return err
	}

	return s.settleConfirmed(payment)
}

// --- Shared settlement tail ---

func (s *reconciliationService) settleConfirmed(payment *models.PaymentEvent) error {
	settled, err := s.commissionService.SettlePayment(payment)
	if err != nil {
		monitoring.PaymentsReconciled.WithLabelValues(string(payment.Rail), "settle_error").Inc()
		return err
	}
	if err := s.paymentRepo.MarkCommissionSettled(payment.ID, time.Now()); err != nil {
		return err
	}

	monitoring.PaymentsReconciled.WithLabelValues(string(payment.Rail), "confirmed").Inc()
	logger.Info("payment settled",
		"payment_id", payment.ID,
		"rail", payment.Rail,
		"account_id", payment.AccountID,
		"commissions", len(settled),
	)

	s.notifyPayer(payment)
	return nil
}

func (s *reconciliationService) notifyPayer(payment *models.PaymentEvent) {
	account, err := s.accountRepo.FindByID(payment.AccountID)
	if err != nil {
		return
	}
	spec, ok := models.GetPlanSpec(payment.PlanCode)
	if !ok {
		return
	}
	body := email.PaymentConfirmedBody(account.FullName, spec.Name, payment.Amount, payment.Currency)
	if err := s.emailService.Send(account.Email, "Pago confirmado", body); err != nil {
		logger.Warn("failed to send payment notification", "account_id", account.ID, "error", err)
	}
}

func (s *reconciliationService) ResettleUnsettled(limit int) (int, error) {
	pending, err := s.paymentRepo.FindConfirmedUnsettled(limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range pending {
		payment := &pending[i]
		// Replay the full fixed order, not just the settlement tail: a
		// crash may have hit between the PaymentEvent write and the
		// subscription transition, leaving the payer never activated.
		if err := s.replayUpgrade(payment); err != nil {
			logger.Error("resettlement upgrade replay failed", "payment_id", payment.ID, "error", err)
			continue
		}
		if err := s.settleConfirmed(payment); err != nil {
			logger.Error("resettlement failed", "payment_id", payment.ID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// replayUpgrade re-applies the subscription transition for a confirmed but
// unsettled payment. When the transition already landed (active on the paid
// plan) it leaves the subscription untouched so a gateway-supplied cycle end
// is not clobbered.
func (s *reconciliationService) replayUpgrade(payment *models.PaymentEvent) error {
	if sub, err := s.subscriptionService.Current(payment.AccountID); err == nil &&
		sub.Status == models.SubscriptionStatusActive && sub.PlanCode == payment.PlanCode {
		return nil
	}

	source := models.BillingSourceWallet
	if payment.Rail == models.RailGatewayRecurring {
		source = models.BillingSourceGateway
	}
	confirmedAt := time.Now()
	if payment.ConfirmedAt != nil {
		confirmedAt = *payment.ConfirmedAt
	}
	cycleEnd := confirmedAt.AddDate(0, 0, s.billing.cycleDays)
	_, err := s.subscriptionService.Upgrade(payment.AccountID, payment.PlanCode, source, &cycleEnd, "")
	return err
}

func payloadChecksum(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/services/payments"
	"afiliados_backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWebhookSecret  = "wh-secret"
	testCallbackSecret = "cb-secret"
)

type reconWorld struct {
	cfg            *config.Config
	accountRepo    *fakeAccountRepo
	paymentRepo    *fakePaymentRepo
	commissionRepo *fakeCommissionRepo
	subscriptions  SubscriptionService
	referrals      ReferralService
	recon          ReconciliationService
}

func newReconWorld() *reconWorld {
	cfg := &config.Config{}
	cfg.Billing.Currency = "PEN"
	cfg.Billing.CycleDays = 30
	cfg.PayPal.WebhookSecret = testWebhookSecret
	cfg.PayPal.BaseURL = "https://gateway.test/subscriptions"
	cfg.PayPal.ReturnURL = "https://app.test/ok"
	cfg.PayPal.CancelURL = "https://app.test/cancel"
	cfg.Culqi.PublicKey = "pk_test_123"
	cfg.Culqi.CallbackSecret = testCallbackSecret

	accountRepo := newFakeAccountRepo()
	subscriptionRepo := newFakeSubscriptionRepo()
	paymentRepo := newFakePaymentRepo()
	commissionRepo := newFakeCommissionRepo()
	emails := &recorderEmail{}

	referrals := NewReferralService(accountRepo)
	subscriptions := NewSubscriptionService(subscriptionRepo)
	commissions := NewCommissionService(referrals, subscriptions, commissionRepo, accountRepo, emails, "PEN")
	recon := NewReconciliationService(
		cfg,
		paymentRepo,
		subscriptionRepo,
		accountRepo,
		subscriptions,
		commissions,
		payments.NewPayPalService(cfg),
		payments.NewCulqiService(cfg),
		emails,
	)

	return &reconWorld{
		cfg:            cfg,
		accountRepo:    accountRepo,
		paymentRepo:    paymentRepo,
		commissionRepo: commissionRepo,
		subscriptions:  subscriptions,
		referrals:      referrals,
		recon:          recon,
	}
}

func (w *reconWorld) addAccount(t *testing.T, name, parentCode string) *models.Account {
	t.Helper()
	account := seedAccount(t, w.accountRepo, name, "USR_"+name)
	_, err := w.subscriptions.InitForAccount(account.ID)
	require.NoError(t, err)
	if parentCode != "" {
		require.NoError(t, w.referrals.Attach(account.ID, parentCode))
	}
	return account
}

func signHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func signCallback(orderID, externalRef string) string {
	mac := hmac.New(sha256.New, []byte(testCallbackSecret))
	fmt.Fprintf(mac, "%s:%s", orderID, externalRef)
	return hex.EncodeToString(mac.Sum(nil))
}

func gatewayEventBody(t *testing.T, event dto.GatewayWebhookEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestGatewayWebhook_RejectsInvalidSignature(t *testing.T) {
	w := newReconWorld()
	account := w.addAccount(t, "A", "")

	body := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:   "WH-1",
		EventType: GatewayEventPaymentCompleted,
		AccountID: account.ID,
		PlanCode:  string(models.PlanPro),
	})

	err := w.recon.ProcessGatewayWebhook(body, "deadbeef")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)

	// Verification failed before any side effect.
	unsettled, err := w.paymentRepo.FindConfirmedUnsettled(10)
	require.NoError(t, err)
	assert.Empty(t, unsettled)
}

func TestGatewayWebhook_PaymentActivatesAndSettles(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	body := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:        "WH-100",
		EventType:      GatewayEventSubscriptionActivated,
		SubscriptionID: "I-SUB100",
		AccountID:      payer.ID,
		PlanCode:       string(models.PlanElite),
		Amount:         99,
	})

	require.NoError(t, w.recon.ProcessGatewayWebhook(body, signHMAC(testWebhookSecret, body)))

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanElite, sub.PlanCode)
	assert.True(t, sub.AutoRenew)
	assert.Equal(t, "I-SUB100", sub.ExternalSubID)

	payment, err := w.paymentRepo.FindByExternalRef(models.RailGatewayRecurring, "WH-100")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, payment.Status)
	assert.NotNil(t, payment.CommissionSettledAt)

	events, err := w.commissionRepo.FindByPaymentEvent(payment.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, parent.ID, events[0].BeneficiaryID)
	assert.InDelta(t, 49.50, events[0].Amount, 0.001)
}

func TestGatewayWebhook_RedeliverySettlesOnce(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	body := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:   "WH-200",
		EventType: GatewayEventPaymentCompleted,
		AccountID: payer.ID,
		PlanCode:  string(models.PlanPro),
		Amount:    75,
	})
	sig := signHMAC(testWebhookSecret, body)

	require.NoError(t, w.recon.ProcessGatewayWebhook(body, sig))
	require.NoError(t, w.recon.ProcessGatewayWebhook(body, sig))
	require.NoError(t, w.recon.ProcessGatewayWebhook(body, sig))

	payment, err := w.paymentRepo.FindByExternalRef(models.RailGatewayRecurring, "WH-200")
	require.NoError(t, err)

	events, err := w.commissionRepo.FindByPaymentEvent(payment.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	total, err := w.commissionRepo.SumAllByBeneficiary(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 37.50, total, 0.001)
}

func TestGatewayWebhook_RedeliveryWithAlteredPayloadIsIgnored(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	body := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:   "WH-300",
		EventType: GatewayEventPaymentCompleted,
		AccountID: payer.ID,
		PlanCode:  string(models.PlanPro),
		Amount:    75,
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(body, signHMAC(testWebhookSecret, body)))

	// Same event id, different body: validly signed, but not the payload
	// the event was recorded with. It must not change anything.
	altered := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:   "WH-300",
		EventType: GatewayEventPaymentCompleted,
		AccountID: payer.ID,
		PlanCode:  string(models.PlanElite),
		Amount:    99,
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(altered, signHMAC(testWebhookSecret, altered)))

	payment, err := w.paymentRepo.FindByExternalRef(models.RailGatewayRecurring, "WH-300")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, payment.PlanCode)
	assert.InDelta(t, 75.0, payment.Amount, 0.001)

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, sub.PlanCode)

	events, err := w.commissionRepo.FindByPaymentEvent(payment.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestGatewayWebhook_PaymentDeniedMarksPastDue(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	activate := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:        "WH-300",
		EventType:      GatewayEventSubscriptionActivated,
		SubscriptionID: "I-SUB300",
		AccountID:      payer.ID,
		PlanCode:       string(models.PlanBasic),
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(activate, signHMAC(testWebhookSecret, activate)))

	// The denial carries only the gateway subscription id; the account is
	// resolved through it.
	denied := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:        "WH-301",
		EventType:      GatewayEventPaymentDenied,
		SubscriptionID: "I-SUB300",
		PlanCode:       string(models.PlanBasic),
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(denied, signHMAC(testWebhookSecret, denied)))

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestGatewayWebhook_CancellationCancels(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	activate := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:        "WH-400",
		EventType:      GatewayEventSubscriptionActivated,
		SubscriptionID: "I-SUB400",
		AccountID:      payer.ID,
		PlanCode:       string(models.PlanPro),
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(activate, signHMAC(testWebhookSecret, activate)))

	cancelled := gatewayEventBody(t, dto.GatewayWebhookEvent{
		EventID:        "WH-401",
		EventType:      GatewayEventSubscriptionCancelled,
		SubscriptionID: "I-SUB400",
	})
	require.NoError(t, w.recon.ProcessGatewayWebhook(cancelled, signHMAC(testWebhookSecret, cancelled)))

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)

	// A retried cancellation is acknowledged, not an error.
	require.NoError(t, w.recon.ProcessGatewayWebhook(cancelled, signHMAC(testWebhookSecret, cancelled)))
}

func TestCreateWalletOrder_FixesAmountFromCatalog(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	resp, err := w.recon.CreateWalletOrder(payer.ID, &dto.CreateWalletOrderRequest{
		Plan:          string(models.PlanPro),
		Phone:         "999888777",
		PaymentMethod: "yape",
	})
	require.NoError(t, err)

	assert.Equal(t, "pk_test_123", resp.PublicKey)
	assert.InDelta(t, 75, resp.Amount, 0.001)
	assert.Equal(t, "PEN", resp.CurrencyCode)
	assert.NotEmpty(t, resp.OrderID)

	order, err := w.paymentRepo.FindByID(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, order.Status)
	assert.Equal(t, models.RailWalletQR, order.Rail)
}

func TestConfirmWalletOrder_MismatchedReferenceLeavesStateUnchanged(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	resp, err := w.recon.CreateWalletOrder(payer.ID, &dto.CreateWalletOrderRequest{
		Plan:          string(models.PlanPro),
		Phone:         "999888777",
		PaymentMethod: "plin",
	})
	require.NoError(t, err)

	wrongRef := "culqi_ord_wrong"
	err = w.recon.ConfirmWalletOrder(&dto.WalletConfirmRequest{
		OrderID:     resp.OrderID,
		ExternalRef: wrongRef,
	}, signCallback(resp.OrderID, wrongRef))
	assert.ErrorIs(t, err, apperrors.ErrMismatchedOrder)

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusNone, sub.Status)

	order, err := w.paymentRepo.FindByID(resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, order.Status)
}

func TestConfirmWalletOrder_ActivatesAndRejectsDuplicate(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	resp, err := w.recon.CreateWalletOrder(payer.ID, &dto.CreateWalletOrderRequest{
		Plan:          string(models.PlanElite),
		Phone:         "999888777",
		PaymentMethod: "qr",
	})
	require.NoError(t, err)

	order, err := w.paymentRepo.FindByID(resp.OrderID)
	require.NoError(t, err)

	confirm := &dto.WalletConfirmRequest{OrderID: order.ID, ExternalRef: order.ExternalRef}
	sig := signCallback(order.ID, order.ExternalRef)

	require.NoError(t, w.recon.ConfirmWalletOrder(confirm, sig))

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanElite, sub.PlanCode)
	assert.False(t, sub.AutoRenew)
	require.NotNil(t, sub.CycleEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), *sub.CycleEnd, time.Minute)

	events, err := w.commissionRepo.FindByBeneficiary(parent.ID, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	err = w.recon.ConfirmWalletOrder(confirm, sig)
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)

	events, err = w.commissionRepo.FindByBeneficiary(parent.ID, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestConfirmWalletOrder_InvalidSignatureRejected(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	resp, err := w.recon.CreateWalletOrder(payer.ID, &dto.CreateWalletOrderRequest{
		Plan:          string(models.PlanBasic),
		Phone:         "999888777",
		PaymentMethod: "yape",
	})
	require.NoError(t, err)

	order, err := w.paymentRepo.FindByID(resp.OrderID)
	require.NoError(t, err)

	err = w.recon.ConfirmWalletOrder(&dto.WalletConfirmRequest{
		OrderID:     order.ID,
		ExternalRef: order.ExternalRef,
	}, "bad-signature")
	assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
}

func TestConfirmManualTransfer_IdempotencyToken(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	req := &dto.ManualConfirmRequest{
		AccountID:        payer.ID,
		PlanCode:         string(models.PlanPro),
		Amount:           75,
		IdempotencyToken: "transfer-2024-0001",
	}

	require.NoError(t, w.recon.ConfirmManualTransfer(req))

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanPro, sub.PlanCode)

	// The resubmitted confirmation collapses onto the same payment.
	err = w.recon.ConfirmManualTransfer(req)
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePayment)

	total, err := w.commissionRepo.SumAllByBeneficiary(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 37.50, total, 0.001)
}

func TestResettleUnsettled_CompletesInterruptedPass(t *testing.T) {
	w := newReconWorld()
	parent := w.addAccount(t, "PARENT", "")
	payer := w.addAccount(t, "PAYER", parent.ReferralCode)

	// Simulate a crash right after the payment write: the confirmed row
	// exists, but neither the upgrade nor the commission pass ever ran.
	payment := confirmedPayment(payer.ID, models.PlanElite, 99)
	_, created, err := w.paymentRepo.CreateOrGet(payment)
	require.NoError(t, err)
	require.True(t, created)

	processed, err := w.recon.ResettleUnsettled(10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	// The sweep replays the full order, so the payer ends up on the plan
	// they paid for, not just with closed commissions.
	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.PlanElite, sub.PlanCode)
	require.NotNil(t, sub.CycleEnd)
	assert.True(t, sub.CycleEnd.After(time.Now()))

	stored, err := w.paymentRepo.FindByID(payment.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CommissionSettledAt)

	total, err := w.commissionRepo.SumAllByBeneficiary(parent.ID)
	require.NoError(t, err)
	assert.InDelta(t, 49.50, total, 0.001)

	// A second sweep finds nothing left to do.
	processed, err = w.recon.ResettleUnsettled(10)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestResettleUnsettled_KeepsExistingCycleEnd(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	// Upgrade already applied with a gateway-supplied cycle end; the crash
	// hit between the upgrade and settlement.
	cycleEnd := time.Now().AddDate(0, 0, 90)
	_, err := w.subscriptions.Upgrade(payer.ID, models.PlanPro, models.BillingSourceGateway, &cycleEnd, "SUB-123")
	require.NoError(t, err)

	payment := confirmedPayment(payer.ID, models.PlanPro, 75)
	payment.Rail = models.RailGatewayRecurring
	_, created, err := w.paymentRepo.CreateOrGet(payment)
	require.NoError(t, err)
	require.True(t, created)

	processed, err := w.recon.ResettleUnsettled(10)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	sub, err := w.subscriptions.Current(payer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CycleEnd)
	assert.WithinDuration(t, cycleEnd, *sub.CycleEnd, time.Second)
}

func TestCreateGatewaySubscription_BuildsApprovalURL(t *testing.T) {
	w := newReconWorld()
	payer := w.addAccount(t, "PAYER", "")

	resp, err := w.recon.CreateGatewaySubscription(payer.ID, models.PlanElite)
	require.NoError(t, err)
	assert.Contains(t, resp.ApprovalURL, "https://gateway.test/subscriptions?")
	assert.Contains(t, resp.ApprovalURL, "plan_id=P-ELITE")
	assert.Contains(t, resp.ApprovalURL, "custom_id="+payer.ID)

	_, err = w.recon.CreateGatewaySubscription(payer.ID, models.PlanCode("vip"))
	assert.ErrorIs(t, err, apperrors.ErrUnknownPlan)
}

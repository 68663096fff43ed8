package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/models"
)

// PayPalService builds approval URLs for recurring subscriptions and
// verifies webhook authenticity.
type PayPalService struct {
	ClientID      string
	Secret        string
	WebhookSecret string
	BaseURL       string
	ReturnURL     string
	CancelURL     string
}

func NewPayPalService(cfg *config.Config) *PayPalService {
	return &PayPalService{
		ClientID:      cfg.PayPal.ClientID,
		Secret:        cfg.PayPal.Secret,
		WebhookSecret: cfg.PayPal.WebhookSecret,
		BaseURL:       cfg.PayPal.BaseURL,
		ReturnURL:     cfg.PayPal.ReturnURL,
		CancelURL:     cfg.PayPal.CancelURL,
	}
}

// PlanExternalID maps a plan code to the gateway's billing-plan id.
func (p *PayPalService) PlanExternalID(code models.PlanCode) string {
	return "P-" + strings.ToUpper(string(code))
}

// GenerateApprovalURL builds the URL the subscriber is redirected to for
// approving the recurring subscription.
func (p *PayPalService) GenerateApprovalURL(planCode models.PlanCode, accountID string) (string, error) {
	params := url.Values{}
	params.Set("plan_id", p.PlanExternalID(planCode))
	params.Set("custom_id", accountID)
	params.Set("return_url", p.ReturnURL)
	params.Set("cancel_url", p.CancelURL)

	return fmt.Sprintf("%s?%s", p.BaseURL, params.Encode()), nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 of the raw webhook body.
// Nothing before this check may have side effects.
func (p *PayPalService) VerifyWebhookSignature(rawBody []byte, receivedSig string) bool {
	mac := hmac.New(sha256.New, []byte(p.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(receivedSig)))
}

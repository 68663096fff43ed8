package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"afiliados_backend/internal/config"

	"github.com/google/uuid"
)

// CulqiService models the wallet-QR processor: orders are created with a
// fixed reference, and the asynchronous confirmation callback is
// authenticated with an HMAC over the order and reference ids.
type CulqiService struct {
	PublicKey      string
	SecretKey      string
	CallbackSecret string
}

func NewCulqiService(cfg *config.Config) *CulqiService {
	return &CulqiService{
		PublicKey:      cfg.Culqi.PublicKey,
		SecretKey:      cfg.Culqi.SecretKey,
		CallbackSecret: cfg.Culqi.CallbackSecret,
	}
}

// NewOrderRef issues the processor reference a wallet order is created
// under. The later confirmation callback must present it exactly.
func (c *CulqiService) NewOrderRef() string {
	return "culqi_ord_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// VerifyCallbackSignature authenticates the confirmation callback.
func (c *CulqiService) VerifyCallbackSignature(orderID, externalRef, receivedSig string) bool {
	mac := hmac.New(sha256.New, []byte(c.CallbackSecret))
	fmt.Fprintf(mac, "%s:%s", orderID, externalRef)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(receivedSig)))
}

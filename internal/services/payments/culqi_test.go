package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"afiliados_backend/internal/config"

	"github.com/stretchr/testify/assert"
)

func newTestCulqi() *CulqiService {
	cfg := &config.Config{}
	cfg.Culqi.PublicKey = "pk_test_123"
	cfg.Culqi.CallbackSecret = "cb-secret"
	return NewCulqiService(cfg)
}

func TestNewOrderRef(t *testing.T) {
	c := newTestCulqi()

	a := c.NewOrderRef()
	b := c.NewOrderRef()

	assert.True(t, strings.HasPrefix(a, "culqi_ord_"))
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestVerifyCallbackSignature(t *testing.T) {
	c := newTestCulqi()

	mac := hmac.New(sha256.New, []byte("cb-secret"))
	fmt.Fprintf(mac, "%s:%s", "order-1", "culqi_ord_abc")
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifyCallbackSignature("order-1", "culqi_ord_abc", sig))
	assert.True(t, c.VerifyCallbackSignature("order-1", "culqi_ord_abc", strings.ToUpper(sig)))

	// Signing a different order or reference must not validate.
	assert.False(t, c.VerifyCallbackSignature("order-2", "culqi_ord_abc", sig))
	assert.False(t, c.VerifyCallbackSignature("order-1", "culqi_ord_xyz", sig))
	assert.False(t, c.VerifyCallbackSignature("order-1", "culqi_ord_abc", ""))
}

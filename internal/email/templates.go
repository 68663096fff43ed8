package email

import (
	"fmt"
)

// CommissionEarnedBody renders the notification for a newly settled
// commission.
func CommissionEarnedBody(name string, level int, amount float64, currency string) string {
	return fmt.Sprintf(
		`<p>Hola %s,</p>
<p>Acabas de ganar una comisión de nivel %d por <b>%s %.2f</b>.</p>
<p>Revisa tu panel de afiliado para más detalles.</p>`,
		name, level, currency, amount,
	)
}

// PaymentConfirmedBody renders the notification for a confirmed subscription
// payment.
func PaymentConfirmedBody(name, planName string, amount float64, currency string) string {
	return fmt.Sprintf(
		`<p>Hola %s,</p>
<p>Tu pago de <b>%s %.2f</b> por el plan <b>%s</b> fue confirmado.</p>
<p>Gracias por tu suscripción.</p>`,
		name, currency, amount, planName,
	)
}

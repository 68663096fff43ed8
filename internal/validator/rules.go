package validator

import (
	"log"

	"afiliados_backend/internal/models"

	"github.com/go-playground/validator/v10"
)

// registerCustomRules registers the domain validation tags.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// A rule that fails to register is a startup-time configuration
			// error; the application must not run without it.
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("is-plan-code", validatePlanCode)
	mustRegister("is-payment-rail", validatePaymentRail)
}

func validatePlanCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // 'required' handles empties
	}
	_, ok := models.GetPlanSpec(models.PlanCode(value))
	return ok
}

func validatePaymentRail(fl validator.FieldLevel) bool {
	switch models.PaymentRail(fl.Field().String()) {
	case models.RailGatewayRecurring, models.RailWalletQR, models.RailManualTransfer:
		return true
	case "":
		return true
	default:
		return false
	}
}

package services

import (
	"math"

	"afiliados_backend/internal/email"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/monitoring"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"

	"github.com/google/uuid"
)

// CommissionService settles confirmed payments into CommissionEvents.
//
// For each ancestor of the payer at depth d, the ancestor earns only when d
// does not exceed the ancestor's OWN unlocked depth; the rate is keyed by
// the PAYER's plan and the level, since compensation reflects what tier of
// product was sold. Every write is idempotent on
// (payment_event_id, beneficiary_id, level), so a re-delivered confirmation
// or a crash-and-retry can never double-credit.
type CommissionService interface {
	SettlePayment(payment *models.PaymentEvent) ([]models.CommissionEvent, error)
}

type commissionService struct {
	referralService     ReferralService
	subscriptionService SubscriptionService
	commissionRepo      repositories.CommissionRepository
	accountRepo         repositories.AccountRepository
	emailService        email.Provider
	currency            string
}

func NewCommissionService(
	referralService ReferralService,
	subscriptionService SubscriptionService,
	commissionRepo repositories.CommissionRepository,
	accountRepo repositories.AccountRepository,
	emailService email.Provider,
	currency string,
) CommissionService {
	return &commissionService{
		referralService:     referralService,
		subscriptionService: subscriptionService,
		commissionRepo:      commissionRepo,
		accountRepo:         accountRepo,
		emailService:        emailService,
		currency:            currency,
	}
}

func (s *commissionService) SettlePayment(payment *models.PaymentEvent) ([]models.CommissionEvent, error) {
	if payment.Status != models.PaymentStatusConfirmed {
		return nil, apperrors.NewBadRequestError("Only confirmed payments settle commissions")
	}

	payerPlan, ok := models.GetPlanSpec(payment.PlanCode)
	if !ok {
		// A payment referencing a plan with no rate table means corrupted
		// configuration, not bad input. Abort the pass; the payment stays
		// unsettled and alarms on the resettle path.
		logger.Error("commission settlement aborted: no plan spec for payment",
			"payment_id", payment.ID, "plan_code", payment.PlanCode)
		return nil, apperrors.InternalError(apperrors.ErrUnknownPlan)
	}

	ancestors, err := s.referralService.AncestorsUpTo(payment.AccountID, models.MaxCommissionDepth)
	if err != nil {
		return nil, err
	}

	var settled []models.CommissionEvent
	for _, ancestor := range ancestors {
		rate, ok := payerPlan.Rates[ancestor.Depth]
		if !ok {
			logger.Error("commission settlement aborted: missing rate for level",
				"payment_id", payment.ID, "plan_code", payment.PlanCode, "level", ancestor.Depth)
			return settled, apperrors.InternalError(apperrors.ErrUnknownPlan)
		}

		// An ancestor only earns at levels their own plan has unlocked. A
		// failed depth lookup aborts the pass unsettled rather than silently
		// dropping the ancestor's share.
		depth, err := s.subscriptionService.UnlockedDepth(ancestor.Account.ID)
		if err != nil {
			return settled, err
		}
		if ancestor.Depth > depth {
			continue
		}

		event := models.CommissionEvent{
			BaseModel:       models.BaseModel{ID: uuid.NewString()},
			BeneficiaryID:   ancestor.Account.ID,
			SourceAccountID: payment.AccountID,
			PaymentEventID:  payment.ID,
			Level:           ancestor.Depth,
			Rate:            rate,
			Amount:          roundCents(payment.Amount * rate),
			// Disabled beneficiaries still get the audit record, but it is
			// not payable.
			Payable: !ancestor.Account.Disabled,
		}

		created, err := s.commissionRepo.InsertIdempotent(&event)
		if err != nil {
			return settled, err
		}
		if !created {
			// Already settled by an earlier (possibly partial) pass.
			continue
		}

		settled = append(settled, event)
		monitoring.CommissionsSettled.Inc()
		monitoring.CommissionAmountSettled.Add(event.Amount * 100)

		if event.Payable {
			s.notifyBeneficiary(ancestor.Account, event)
		}
	}

	return settled, nil
}

func (s *commissionService) notifyBeneficiary(beneficiary models.Account, event models.CommissionEvent) {
	body := email.CommissionEarnedBody(beneficiary.FullName, event.Level, event.Amount, s.currency)
	if err := s.emailService.Send(beneficiary.Email, "Nueva comisión ganada", body); err != nil {
		// Mail is best-effort; the settlement itself already committed.
		logger.Warn("failed to send commission notification",
			"beneficiary_id", beneficiary.ID, "error", err)
	}
}

// roundCents rounds half-up to two decimals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

package services

import (
	"fmt"
	"sort"

	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"
)

const recentActivityLimit = 10

// DashboardService aggregates what an affiliate sees when they log in:
// earnings, balance, plan and the latest movement in their network.
type DashboardService interface {
	GetDashboard(accountID string) (*dto.DashboardResponse, error)
}

type dashboardService struct {
	accountRepo         repositories.AccountRepository
	commissionRepo      repositories.CommissionRepository
	referralService     ReferralService
	subscriptionService SubscriptionService
}

func NewDashboardService(
	accountRepo repositories.AccountRepository,
	commissionRepo repositories.CommissionRepository,
	referralService ReferralService,
	subscriptionService SubscriptionService,
) DashboardService {
	return &dashboardService{
		accountRepo:         accountRepo,
		commissionRepo:      commissionRepo,
		referralService:     referralService,
		subscriptionService: subscriptionService,
	}
}

func (s *dashboardService) GetDashboard(accountID string) (*dto.DashboardResponse, error) {
	if _, err := s.accountRepo.FindByID(accountID); err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return nil, apperrors.NewNotFoundError(err, "Account not found")
		}
		return nil, err
	}

	totalEarned, err := s.commissionRepo.SumAllByBeneficiary(accountID)
	if err != nil {
		return nil, err
	}
	withdrawable, err := s.commissionRepo.SumPayableByBeneficiary(accountID)
	if err != nil {
		return nil, err
	}

	networkSize, err := s.referralService.NetworkSize(accountID, models.MaxCommissionDepth)
	if err != nil {
		return nil, err
	}

	currentPlan := string(models.PlanNone)
	if sub, err := s.subscriptionService.Current(accountID); err == nil && sub != nil {
		currentPlan = string(sub.PlanCode)
	}

	activity, err := s.recentActivity(accountID)
	if err != nil {
		return nil, err
	}

	return &dto.DashboardResponse{
		TotalEarned:         totalEarned,
		WithdrawableBalance: withdrawable,
		CurrentPlan:         currentPlan,
		NetworkSize:         networkSize,
		RecentActivity:      activity,
	}, nil
}

// recentActivity interleaves the latest commissions with the latest direct
// signups, newest first.
func (s *dashboardService) recentActivity(accountID string) ([]dto.ActivityItem, error) {
	commissions, err := s.commissionRepo.FindByBeneficiary(accountID, recentActivityLimit)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ActivityItem, 0, recentActivityLimit*2)
	for _, ev := range commissions {
		name := "Usuario eliminado"
		if source, err := s.accountRepo.FindByID(ev.SourceAccountID); err == nil {
			name = source.FullName
		}
		items = append(items, dto.ActivityItem{
			Name:       name,
			Action:     fmt.Sprintf("pagó suscripción (nivel %d)", ev.Level),
			Level:      ev.Level,
			Amount:     ev.Amount,
			OccurredAt: ev.CreatedAt,
		})
	}

	referrals, err := s.referralService.DirectReferrals(accountID)
	if err != nil {
		return nil, err
	}
	for _, ref := range referrals {
		items = append(items, dto.ActivityItem{
			Name:       ref.FullName,
			Action:     "se registró en tu red",
			OccurredAt: ref.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].OccurredAt.After(items[j].OccurredAt)
	})
	if len(items) > recentActivityLimit {
		items = items[:recentActivityLimit]
	}
	return items, nil
}

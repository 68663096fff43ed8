package services

import (
	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"
)

// AdminService backs the back-office user panel.
type AdminService interface {
	ListUsers(limit, offset int) (*dto.AdminUserListResponse, error)
	SetDisabled(accountID string, disabled bool) error

	// DeleteAccount hard-deletes the account and its subscriptions in one
	// transaction. Earned commission events are kept for audit, and referred
	// accounts keep their now-dangling referred-by pointer.
	DeleteAccount(accountID string) error
}

type adminService struct {
	accountRepo         repositories.AccountRepository
	subscriptionService SubscriptionService
}

func NewAdminService(
	accountRepo repositories.AccountRepository,
	subscriptionService SubscriptionService,
) AdminService {
	return &adminService{
		accountRepo:         accountRepo,
		subscriptionService: subscriptionService,
	}
}

func (s *adminService) ListUsers(limit, offset int) (*dto.AdminUserListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accountRepo.FindAll(limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.accountRepo.CountAll()
	if err != nil {
		return nil, err
	}

	users := make([]dto.AdminUserItem, 0, len(accounts))
	for _, account := range accounts {
		plan := string(models.PlanNone)
		if sub, err := s.subscriptionService.Current(account.ID); err == nil && sub != nil {
			plan = string(sub.PlanCode)
		}
		users = append(users, dto.AdminUserItem{
			ID:           account.ID,
			Email:        account.Email,
			FullName:     account.FullName,
			ReferralCode: account.ReferralCode,
			Disabled:     account.Disabled,
			Plan:         plan,
			CreatedAt:    account.CreatedAt,
		})
	}

	return &dto.AdminUserListResponse{Users: users, Total: total}, nil
}

func (s *adminService) SetDisabled(accountID string, disabled bool) error {
	err := s.accountRepo.SetDisabled(accountID, disabled)
	if apperrors.Is(err, repositories.ErrAccountNotFound) {
		return apperrors.NewNotFoundError(err, "Account not found")
	}
	if err == nil {
		logger.Info("account disabled flag changed", "account_id", accountID, "disabled", disabled)
	}
	return err
}

func (s *adminService) DeleteAccount(accountID string) error {
	if err := s.accountRepo.Delete(accountID); err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return apperrors.NewNotFoundError(err, "Account not found")
		}
		return err
	}
	logger.Info("account deleted", "account_id", accountID)
	return nil
}

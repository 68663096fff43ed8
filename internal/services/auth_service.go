package services

import (
	"crypto/rand"
	"math/big"
	"time"

	"afiliados_backend/internal/auth"
	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"

	"github.com/google/uuid"
)

const (
	referralCodePrefix   = "USR_"
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referralCodeLength   = 6
	referralCodeRetries  = 5
)

// AuthService covers signup and login. Registration validates the referral
// code before creating anything, so a bad code never leaves an orphaned
// account behind.
type AuthService interface {
	Register(req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(req *dto.LoginRequest) (*dto.AuthResponse, error)
	Profile(accountID string) (*dto.ProfileResponse, error)
}

type authService struct {
	accountRepo         repositories.AccountRepository
	referralService     ReferralService
	subscriptionService SubscriptionService
}

func NewAuthService(
	accountRepo repositories.AccountRepository,
	referralService ReferralService,
	subscriptionService SubscriptionService,
) AuthService {
	return &authService{
		accountRepo:         accountRepo,
		referralService:     referralService,
		subscriptionService: subscriptionService,
	}
}

func (s *authService) Register(req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}

	// Resolve the referrer first: rejecting here costs nothing.
	if req.ReferralCode != "" {
		valid, err := s.referralService.ValidateCode(req.ReferralCode)
		if err != nil {
			return nil, err
		}
		if !valid {
			return nil, apperrors.ErrUnknownCode
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	account := &models.Account{
		BaseModel:    models.BaseModel{ID: uuid.NewString()},
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         models.UserRoleAffiliate,
	}

	// The code column is unique; retry a handful of times on collision.
	for attempt := 0; ; attempt++ {
		account.ReferralCode = newReferralCode()
		err = s.accountRepo.Create(account)
		if err == nil {
			break
		}
		if apperrors.Is(err, repositories.ErrAccountAlreadyExists) {
			return nil, apperrors.ErrEmailAlreadyExists
		}
		if attempt >= referralCodeRetries {
			return nil, apperrors.InternalError(err)
		}
	}

	if _, err := s.subscriptionService.InitForAccount(account.ID); err != nil {
		return nil, err
	}

	if req.ReferralCode != "" {
		if err := s.referralService.Attach(account.ID, req.ReferralCode); err != nil {
			// The code was validated above; losing the referrer between the two
			// reads is the only way here, and the signup still stands.
			logger.Warn("referral attach failed after signup", "account_id", account.ID, "error", err)
		}
	}

	logger.Info("account registered", "account_id", account.ID, "referred", req.ReferralCode != "")
	return s.issueToken(account)
}

func (s *authService) Login(req *dto.LoginRequest) (*dto.AuthResponse, error) {
	account, err := s.accountRepo.FindByEmail(req.Email)
	if err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPasswordHash(req.Password, account.PasswordHash) {
		return nil, apperrors.ErrInvalidCredentials
	}

	// Disabled accounts may still log in and see their history; disabling
	// only stops new payable commissions.
	return s.issueToken(account)
}

func (s *authService) Profile(accountID string) (*dto.ProfileResponse, error) {
	account, err := s.accountRepo.FindByID(accountID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return nil, apperrors.NewNotFoundError(err, "Account not found")
		}
		return nil, err
	}
	profile := profileFromAccount(account)
	return &profile, nil
}

func (s *authService) issueToken(account *models.Account) (*dto.AuthResponse, error) {
	token, err := auth.GenerateToken(account.ID, account.Email, string(account.Role))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return &dto.AuthResponse{
		AccessToken: token,
		Account:     profileFromAccount(account),
	}, nil
}

func profileFromAccount(account *models.Account) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:           account.ID,
		Email:        account.Email,
		FullName:     account.FullName,
		Role:         string(account.Role),
		ReferralCode: account.ReferralCode,
		Disabled:     account.Disabled,
		CreatedAt:    account.CreatedAt.Format(time.RFC3339),
	}
}

func newReferralCode() string {
	buf := make([]byte, referralCodeLength)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is unrecoverable; fall back to uuid entropy.
			return referralCodePrefix + uuid.NewString()[:referralCodeLength]
		}
		buf[i] = referralCodeAlphabet[n.Int64()]
	}
	return referralCodePrefix + string(buf)
}

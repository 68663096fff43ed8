package services

import (
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/pkg/apperrors"
)

// Ancestor is one hop of a referral chain. Depth 1 is the direct referrer.
type Ancestor struct {
	Account models.Account
	Depth   int
}

// ReferralService owns the forest of referrer->referred relationships.
type ReferralService interface {
	// Attach links child to the account owning parentCode. The referred-by
	// edge is immutable once set and may never close a cycle.
	Attach(childID, parentCode string) error

	// AncestorsUpTo resolves the chain above the account, depth 1..maxDepth,
	// stopping early when the chain ends. A dangling referred-by pointer
	// (referrer hard-deleted) ends the chain; it is not an error. The walk
	// is deterministic and side-effect-free.
	AncestorsUpTo(accountID string, maxDepth int) ([]Ancestor, error)

	// ValidateCode reports whether a referral code resolves to an account.
	ValidateCode(code string) (bool, error)

	// NetworkSize counts the accounts in the subtree below the account,
	// down to maxDepth levels.
	NetworkSize(accountID string, maxDepth int) (int, error)

	// DirectReferrals lists the accounts directly referred by the account.
	DirectReferrals(accountID string) ([]models.Account, error)
}

type referralService struct {
	accountRepo repositories.AccountRepository
}

func NewReferralService(accountRepo repositories.AccountRepository) ReferralService {
	return &referralService{accountRepo: accountRepo}
}

func (s *referralService) Attach(childID, parentCode string) error {
	err := s.accountRepo.Attach(childID, parentCode)
	switch {
	case err == nil:
		return nil
	case apperrors.Is(err, repositories.ErrReferrerNotFound):
		return apperrors.ErrUnknownCode
	case apperrors.Is(err, repositories.ErrCycleDetected):
		return apperrors.ErrCycle
	case apperrors.Is(err, repositories.ErrAlreadyAttached):
		return apperrors.ErrAlreadyAttached
	case apperrors.Is(err, repositories.ErrAccountNotFound):
		return apperrors.NewNotFoundError(err, "Account not found")
	default:
		return err
	}
}

func (s *referralService) AncestorsUpTo(accountID string, maxDepth int) ([]Ancestor, error) {
	if maxDepth > models.MaxCommissionDepth {
		maxDepth = models.MaxCommissionDepth
	}

	account, err := s.accountRepo.FindByID(accountID)
	if err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return nil, apperrors.NewNotFoundError(err, "Account not found")
		}
		return nil, err
	}

	var ancestors []Ancestor
	current := account
	for depth := 1; depth <= maxDepth; depth++ {
		if current.ReferredBy == nil {
			break
		}
		parent, err := s.accountRepo.FindByID(*current.ReferredBy)
		if err != nil {
			if apperrors.Is(err, repositories.ErrAccountNotFound) {
				// Dangling pointer: the referrer was hard-deleted. The chain
				// ends here.
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, Ancestor{Account: *parent, Depth: depth})
		current = parent
	}
	return ancestors, nil
}

func (s *referralService) ValidateCode(code string) (bool, error) {
	_, err := s.accountRepo.FindByReferralCode(code)
	if err != nil {
		if apperrors.Is(err, repositories.ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *referralService) NetworkSize(accountID string, maxDepth int) (int, error) {
	frontier := []string{accountID}
	total := 0
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			children, err := s.accountRepo.FindByReferredBy(id)
			if err != nil {
				return 0, err
			}
			total += len(children)
			for _, child := range children {
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return total, nil
}

func (s *referralService) DirectReferrals(accountID string) ([]models.Account, error) {
	return s.accountRepo.FindByReferredBy(accountID)
}

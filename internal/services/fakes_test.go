package services

import (
	"sort"
	"sync"
	"time"

	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
)

// In-memory repository fakes. They reproduce the uniqueness and ordering
// semantics the GORM implementations get from the database, so the services
// under test see the same contract.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*models.Account)}
}

func (r *fakeAccountRepo) Create(account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return repositories.ErrAccountAlreadyExists
		}
		if a.ReferralCode == account.ReferralCode {
			return repositories.ErrReferralCodeTaken
		}
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	cp := *account
	r.accounts[account.ID] = &cp
	return nil
}

func (r *fakeAccountRepo) FindByID(id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) FindByEmail(email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByReferralCode(code string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ReferralCode == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrAccountNotFound
}

func (r *fakeAccountRepo) FindByReferredBy(parentID string) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Account
	for _, a := range r.accounts {
		if a.ReferredBy != nil && *a.ReferredBy == parentID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeAccountRepo) FindAll(limit, offset int) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Account
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAccountRepo) CountAll() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *fakeAccountRepo) SetDisabled(id string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	a.Disabled = disabled
	return nil
}

func (r *fakeAccountRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return repositories.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *fakeAccountRepo) Attach(childID, parentCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	child, ok := r.accounts[childID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	if child.ReferredBy != nil {
		return repositories.ErrAlreadyAttached
	}

	var parent *models.Account
	for _, a := range r.accounts {
		if a.ReferralCode == parentCode {
			parent = a
			break
		}
	}
	if parent == nil {
		return repositories.ErrReferrerNotFound
	}
	if parent.ID == child.ID {
		return repositories.ErrCycleDetected
	}

	current := parent
	for current.ReferredBy != nil {
		ancestor, ok := r.accounts[*current.ReferredBy]
		if !ok {
			break
		}
		if ancestor.ID == child.ID {
			return repositories.ErrCycleDetected
		}
		current = ancestor
	}

	parentID := parent.ID
	child.ReferredBy = &parentID
	return nil
}

type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs []*models.Subscription
	seq  int
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{}
}

func (r *fakeSubscriptionRepo) Create(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	sub.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Microsecond)
	cp := *sub
	r.subs = append(r.subs, &cp)
	return nil
}

func (r *fakeSubscriptionRepo) Update(sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.ID == sub.ID {
			cp := *sub
			cp.CreatedAt = s.CreatedAt
			r.subs[i] = &cp
			return nil
		}
	}
	return repositories.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) FindCurrentByAccountID(accountID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.Subscription
	for _, s := range r.subs {
		if s.AccountID != accountID {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *newest
	return &cp, nil
}

func (r *fakeSubscriptionRepo) FindByExternalSubID(externalSubID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.Subscription
	for _, s := range r.subs {
		if s.ExternalSubID != externalSubID {
			continue
		}
		if newest == nil || s.CreatedAt.After(newest.CreatedAt) {
			newest = s
		}
	}
	if newest == nil {
		return nil, repositories.ErrSubscriptionNotFound
	}
	cp := *newest
	return &cp, nil
}

func (r *fakeSubscriptionRepo) FindActiveDue(now time.Time) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.subs {
		if s.Status == models.SubscriptionStatusActive && s.CycleEnd != nil && s.CycleEnd.Before(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSubscriptionRepo) FindPastDueBefore(deadline time.Time) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.subs {
		if s.Status == models.SubscriptionStatusPastDue && s.PastDueSince != nil && s.PastDueSince.Before(deadline) {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[string]*models.PaymentEvent // by id
	byRef    map[string]string               // rail|ref -> id
	seq      int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[string]*models.PaymentEvent),
		byRef:    make(map[string]string),
	}
}

func refKey(rail models.PaymentRail, ref string) string {
	return string(rail) + "|" + ref
}

func (r *fakePaymentRepo) CreateOrGet(p *models.PaymentEvent) (*models.PaymentEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := refKey(p.Rail, p.ExternalRef)
	if id, ok := r.byRef[key]; ok {
		cp := *r.payments[id]
		return &cp, false, nil
	}
	r.seq++
	p.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Microsecond)
	cp := *p
	r.payments[p.ID] = &cp
	r.byRef[key] = p.ID
	out := cp
	return &out, true, nil
}

func (r *fakePaymentRepo) FindByID(id string) (*models.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakePaymentRepo) FindByExternalRef(rail models.PaymentRail, ref string) (*models.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byRef[refKey(rail, ref)]
	if !ok {
		return nil, repositories.ErrPaymentNotFound
	}
	cp := *r.payments[id]
	return &cp, nil
}

func (r *fakePaymentRepo) Update(p *models.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.payments[p.ID]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	r.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) MarkCommissionSettled(id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return repositories.ErrPaymentNotFound
	}
	settledAt := at
	p.CommissionSettledAt = &settledAt
	return nil
}

func (r *fakePaymentRepo) FindConfirmedUnsettled(limit int) ([]models.PaymentEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentEvent
	for _, p := range r.payments {
		if p.Status == models.PaymentStatusConfirmed && p.CommissionSettledAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeCommissionRepo struct {
	mu     sync.Mutex
	events []models.CommissionEvent
}

func newFakeCommissionRepo() *fakeCommissionRepo {
	return &fakeCommissionRepo{}
}

func (r *fakeCommissionRepo) InsertIdempotent(ev *models.CommissionEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.PaymentEventID == ev.PaymentEventID && e.BeneficiaryID == ev.BeneficiaryID && e.Level == ev.Level {
			return false, nil
		}
	}
	ev.CreatedAt = time.Now()
	r.events = append(r.events, *ev)
	return true, nil
}

func (r *fakeCommissionRepo) FindByPaymentEvent(paymentEventID string) ([]models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CommissionEvent
	for _, e := range r.events {
		if e.PaymentEventID == paymentEventID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (r *fakeCommissionRepo) FindByBeneficiary(beneficiaryID string, limit int) ([]models.CommissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CommissionEvent
	for _, e := range r.events {
		if e.BeneficiaryID == beneficiaryID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCommissionRepo) SumPayableByBeneficiary(beneficiaryID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, e := range r.events {
		if e.BeneficiaryID == beneficiaryID && e.Payable {
			total += e.Amount
		}
	}
	return total, nil
}

func (r *fakeCommissionRepo) SumAllByBeneficiary(beneficiaryID string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total float64
	for _, e := range r.events {
		if e.BeneficiaryID == beneficiaryID {
			total += e.Amount
		}
	}
	return total, nil
}

// recorderEmail captures outbound notifications.
type recorderEmail struct {
	mu   sync.Mutex
	sent []string // recipient addresses
}

func (r *recorderEmail) Send(to, subject, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, to)
	return nil
}

var (
	_ repositories.AccountRepository      = (*fakeAccountRepo)(nil)
	_ repositories.SubscriptionRepository = (*fakeSubscriptionRepo)(nil)
	_ repositories.PaymentRepository      = (*fakePaymentRepo)(nil)
	_ repositories.CommissionRepository   = (*fakeCommissionRepo)(nil)
)

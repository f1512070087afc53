package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/FoodCourtHub/server/internal/money"
)

// MemoryStore is the in-process backend. Safe for concurrent use.
type MemoryStore struct {
	mu sync.RWMutex

	merchants map[int64]*Merchant
	menus     map[int64]*Menu
	quick     map[int64]*StoreQuickAmount
	profiles  map[int64]*BankingProfile
	customers map[int64]*Customer
	fcids     map[string]*FoodCourtID

	counterTxns []*CounterTransaction
	storeTxns   []*StoreTransaction
	paymentTxns map[int64]*PaymentTransaction
	backTxns    map[int64]*BackTransaction
	settlements map[int64]*Settlement
	cryptoTxns  map[int64]*CryptoTransaction
	notes       map[int64]*Notification

	receiptSeq map[string]int64

	nextMerchantID   int64
	nextMenuID       int64
	nextQuickID      int64
	nextProfileID    int64
	nextCustomerID   int64
	nextCounterID    int64
	nextStoreTxnID   int64
	nextPaymentID    int64
	nextBackID       int64
	nextSettlementID int64
	nextCryptoID     int64
	nextNoteID       int64
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		merchants:   make(map[int64]*Merchant),
		menus:       make(map[int64]*Menu),
		quick:       make(map[int64]*StoreQuickAmount),
		profiles:    make(map[int64]*BankingProfile),
		customers:   make(map[int64]*Customer),
		fcids:       make(map[string]*FoodCourtID),
		paymentTxns: make(map[int64]*PaymentTransaction),
		backTxns:    make(map[int64]*BackTransaction),
		settlements: make(map[int64]*Settlement),
		cryptoTxns:  make(map[int64]*CryptoTransaction),
		notes:       make(map[int64]*Notification),
		receiptSeq:  make(map[string]int64),
	}
}

func (s *MemoryStore) CreateMerchant(ctx context.Context, m *Merchant) (*Merchant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.merchants {
		if existing.Token == m.Token {
			return nil, ErrDuplicate
		}
	}
	s.nextMerchantID++
	cp := *m
	cp.ID = s.nextMerchantID
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.merchants[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetMerchant(ctx context.Context, id int64) (*Merchant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) GetMerchantByToken(ctx context.Context, token string) (*Merchant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.merchants {
		if m.Token == token {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateMerchant(ctx context.Context, m *Merchant) (*Merchant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.merchants[m.ID]
	if !ok {
		return nil, ErrNotFound
	}
	for id, other := range s.merchants {
		if id != m.ID && other.Token == m.Token {
			return nil, ErrDuplicate
		}
	}
	cp := *m
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.merchants[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) ListMerchants(ctx context.Context, activeOnly bool) ([]*Merchant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Merchant, 0, len(s.merchants))
	for _, m := range s.merchants {
		if activeOnly && !m.Active {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateMenu(ctx context.Context, m *Menu) (*Menu, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchants[m.MerchantID]; !ok {
		return nil, ErrNotFound
	}
	s.nextMenuID++
	now := time.Now().UTC()
	cp := *m
	cp.ID = s.nextMenuID
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.menus[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) ListMenus(ctx context.Context, merchantID int64) ([]*Menu, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Menu
	for _, m := range s.menus {
		if m.MerchantID != merchantID || !m.Active {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *MemoryStore) CreateQuickAmount(ctx context.Context, qa *StoreQuickAmount) (*StoreQuickAmount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.merchants[qa.MerchantID]; !ok {
		return nil, ErrNotFound
	}
	s.nextQuickID++
	cp := *qa
	cp.ID = s.nextQuickID
	s.quick[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) ListQuickAmounts(ctx context.Context, merchantID int64) ([]*StoreQuickAmount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*StoreQuickAmount
	for _, qa := range s.quick {
		if qa.MerchantID != merchantID || !qa.Active {
			continue
		}
		cp := *qa
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder == out[j].DisplayOrder {
			return out[i].Amount < out[j].Amount
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (s *MemoryStore) CreateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProfileID++
	cp := *p
	cp.ID = s.nextProfileID
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetBankingProfile(ctx context.Context, id int64) (*BankingProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.ID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now().UTC()
	s.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) FindActiveProfile(ctx context.Context, scope ProfileScope, key int64) (*BankingProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *BankingProfile
	for _, p := range s.profiles {
		if !p.Active || p.Scope != scope {
			continue
		}
		var pk *int64
		switch scope {
		case ScopeGroup:
			pk = p.GroupID
		case ScopeSite:
			pk = p.SiteID
		case ScopeStore:
			pk = p.StoreID
		}
		if pk == nil || *pk != key {
			continue
		}
		if best == nil || p.UpdatedAt.After(best.UpdatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *MemoryStore) CreateCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.customers {
		if existing.Phone == c.Phone {
			return nil, ErrDuplicate
		}
	}
	s.nextCustomerID++
	cp := *c
	cp.ID = s.nextCustomerID
	cp.CreatedAt = time.Now().UTC()
	s.customers[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.customers {
		if c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateFCID(ctx context.Context, f *FoodCourtID, mint *CounterTransaction) (*FoodCourtID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fcids[f.Code]; exists {
		return nil, ErrDuplicate
	}
	cp := *f
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.fcids[cp.Code] = &cp
	if mint != nil {
		s.nextCounterID++
		mc := *mint
		mc.ID = s.nextCounterID
		mc.FCIDCode = cp.Code
		mc.CreatedAt = now
		s.counterTxns = append(s.counterTxns, &mc)
	}
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetFCID(ctx context.Context, code string) (*FoodCourtID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fcids[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ApplyDebit(ctx context.Context, u DebitUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fcids[u.Code]
	if !ok {
		return ErrNotFound
	}
	if f.CurrentBalance != u.ExpectedBalance {
		return ErrStale
	}
	now := time.Now().UTC()
	f.CurrentBalance = u.NewBalance
	f.Status = u.NewStatus
	f.UpdatedAt = now
	if u.StoreTxn != nil {
		s.nextStoreTxnID++
		st := *u.StoreTxn
		st.ID = s.nextStoreTxnID
		st.FCIDCode = u.Code
		st.CreatedAt = now
		s.storeTxns = append(s.storeTxns, &st)
	}
	if u.PaymentTxn != nil {
		s.nextPaymentID++
		pt := *u.PaymentTxn
		pt.ID = s.nextPaymentID
		pt.CreatedAt = now
		s.paymentTxns[pt.ID] = &pt
	}
	return nil
}

func (s *MemoryStore) ApplyTopUp(ctx context.Context, u TopUpUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fcids[u.Code]
	if !ok {
		return ErrNotFound
	}
	if f.CurrentBalance != u.ExpectedBalance {
		return ErrStale
	}
	now := time.Now().UTC()
	f.CurrentBalance = u.NewBalance
	f.InitialAmount = u.NewInitial
	f.UpdatedAt = now
	if u.CounterTxn != nil {
		s.nextCounterID++
		ct := *u.CounterTxn
		ct.ID = s.nextCounterID
		ct.FCIDCode = u.Code
		ct.CreatedAt = now
		s.counterTxns = append(s.counterTxns, &ct)
	}
	return nil
}

func (s *MemoryStore) ApplyRefund(ctx context.Context, u RefundUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fcids[u.Code]
	if !ok {
		return ErrNotFound
	}
	if f.CurrentBalance != u.ExpectedBalance {
		return ErrStale
	}
	now := time.Now().UTC()
	f.CurrentBalance = 0
	f.Status = FCIDRefunded
	f.UpdatedAt = now
	if u.CounterTxn != nil {
		s.nextCounterID++
		ct := *u.CounterTxn
		ct.ID = s.nextCounterID
		ct.FCIDCode = u.Code
		ct.CreatedAt = now
		s.counterTxns = append(s.counterTxns, &ct)
	}
	return nil
}

func (s *MemoryStore) ListActiveFCIDs(ctx context.Context) ([]*FoodCourtID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*FoodCourtID
	for _, f := range s.fcids {
		if f.Status == FCIDActive {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) ExpireFCIDsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	now := time.Now().UTC()
	for _, f := range s.fcids {
		if f.Status == FCIDActive && f.CreatedAt.Before(cutoff) {
			f.Status = FCIDExpired
			f.CurrentBalance = 0
			f.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) NextReceiptSequence(ctx context.Context, day string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptSeq[day]++
	return s.receiptSeq[day], nil
}

func (s *MemoryStore) CreatePaymentTransaction(ctx context.Context, pt *PaymentTransaction) (*PaymentTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.paymentTxns {
		if existing.ReceiptNumber == pt.ReceiptNumber {
			return nil, ErrDuplicate
		}
	}
	s.nextPaymentID++
	cp := *pt
	cp.ID = s.nextPaymentID
	cp.CreatedAt = time.Now().UTC()
	s.paymentTxns[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) GetPaymentTransaction(ctx context.Context, id int64) (*PaymentTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	pt, ok := s.paymentTxns[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pt
	return &cp, nil
}

func (s *MemoryStore) ListPaymentTransactionsByFCID(ctx context.Context, code string) ([]*PaymentTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PaymentTransaction
	for _, pt := range s.paymentTxns {
		if pt.FCIDCode != nil && *pt.FCIDCode == code {
			cp := *pt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) InsertBackTransaction(ctx context.Context, bt *BackTransaction, pt *PaymentTransaction) (bool, *BackTransaction, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bt.SlipReference != "" {
		for _, existing := range s.backTxns {
			if existing.Rail == bt.Rail && existing.SlipReference == bt.SlipReference {
				cp := *existing
				return false, &cp, nil
			}
		}
	}
	now := time.Now().UTC()
	s.nextBackID++
	cp := *bt
	cp.ID = s.nextBackID
	cp.CreatedAt = now
	s.backTxns[cp.ID] = &cp
	if pt != nil {
		s.nextPaymentID++
		pc := *pt
		pc.ID = s.nextPaymentID
		pc.CreatedAt = now
		s.paymentTxns[pc.ID] = &pc
	}
	out := cp
	return true, &out, nil
}

func (s *MemoryStore) QueryBackTransactions(ctx context.Context, q BackTransactionQuery) ([]*BackTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := q.Limit
	if limit <= 0 || limit > MaxReportLimit {
		limit = MaxReportLimit
	}
	var out []*BackTransaction
	for _, bt := range s.backTxns {
		if q.MerchantID != nil {
			if bt.MerchantID == nil || *bt.MerchantID != *q.MerchantID {
				continue
			}
		}
		if q.Start != nil && bt.PaidAt.Before(*q.Start) {
			continue
		}
		if q.End != nil && !bt.PaidAt.Before(*q.End) {
			continue
		}
		cp := *bt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].PaidAt.After(out[j].PaidAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) RecentPaid(ctx context.Context, merchantID int64, since time.Time, limit int) ([]*BackTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*BackTransaction
	for _, bt := range s.backTxns {
		if bt.MerchantID == nil || *bt.MerchantID != merchantID {
			continue
		}
		if !bt.PaidAt.After(since) {
			continue
		}
		cp := *bt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].PaidAt.Before(out[j].PaidAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SumBackTransactions(ctx context.Context, start, end time.Time) (map[int64]money.Amount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[int64]money.Amount)
	for _, bt := range s.backTxns {
		if bt.MerchantID == nil {
			continue
		}
		if bt.PaidAt.Before(start) || !bt.PaidAt.Before(end) {
			continue
		}
		sums[*bt.MerchantID] += bt.Amount
	}
	return sums, nil
}

func (s *MemoryStore) CreateSettlement(ctx context.Context, set *Settlement) (bool, *Settlement, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	day := set.SettlementDate.Format("2006-01-02")
	for _, existing := range s.settlements {
		if existing.MerchantID == set.MerchantID && existing.SettlementDate.Format("2006-01-02") == day {
			cp := *existing
			return false, &cp, nil
		}
	}
	s.nextSettlementID++
	cp := *set
	cp.ID = s.nextSettlementID
	cp.CreatedAt = time.Now().UTC()
	s.settlements[cp.ID] = &cp
	out := cp
	return true, &out, nil
}

func (s *MemoryStore) GetSettlement(ctx context.Context, id int64) (*Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.settlements[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *set
	return &cp, nil
}

func (s *MemoryStore) TransitionSettlement(ctx context.Context, id int64, from, to SettlementStatus, at time.Time) (*Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.settlements[id]
	if !ok {
		return nil, ErrNotFound
	}
	if set.Status != from {
		return nil, ErrStale
	}
	set.Status = to
	switch to {
	case SettlementTransferred:
		t := at
		set.TransferredAt = &t
	case SettlementNotified:
		t := at
		set.NotifiedAt = &t
	}
	cp := *set
	return &cp, nil
}

func (s *MemoryStore) MarkSettlementReceiptPrinted(ctx context.Context, id int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.settlements[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	set.ReceiptPrintedAt = &t
	return nil
}

func (s *MemoryStore) ListSettlements(ctx context.Context, q SettlementQuery) ([]*Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Settlement
	for _, set := range s.settlements {
		if q.MerchantID != nil && set.MerchantID != *q.MerchantID {
			continue
		}
		if q.Date != nil && !sameDay(set.SettlementDate, *q.Date) {
			continue
		}
		if q.Status != nil && set.Status != *q.Status {
			continue
		}
		if q.NotifiedOnly && set.Status != SettlementNotified {
			continue
		}
		cp := *set
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) OverdueSettlements(ctx context.Context, cutoff time.Time) ([]*Settlement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoffDay := cutoff.Format("2006-01-02")
	var out []*Settlement
	for _, set := range s.settlements {
		if set.Status != SettlementPending {
			continue
		}
		if strings.Compare(set.SettlementDate.Format("2006-01-02"), cutoffDay) > 0 {
			continue
		}
		cp := *set
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CreateCryptoTransaction(ctx context.Context, ct *CryptoTransaction) (*CryptoTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cryptoTxns {
		if existing.TxHash == ct.TxHash {
			return nil, ErrDuplicate
		}
	}
	s.nextCryptoID++
	cp := *ct
	cp.ID = s.nextCryptoID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	s.cryptoTxns[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) ListPendingCryptoTransactions(ctx context.Context) ([]*CryptoTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*CryptoTransaction
	for _, ct := range s.cryptoTxns {
		if ct.Status == CryptoPending {
			cp := *ct
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpdateCryptoTransactionStatus(ctx context.Context, id int64, status CryptoStatus, checkedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ct, ok := s.cryptoTxns[id]
	if !ok {
		return ErrNotFound
	}
	ct.Status = status
	t := checkedAt
	ct.LastCheckedAt = &t
	return nil
}

func (s *MemoryStore) EnqueueNotification(ctx context.Context, n *Notification) (*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNoteID++
	cp := *n
	cp.ID = s.nextNoteID
	cp.Status = NotificationQueued
	cp.CreatedAt = time.Now().UTC()
	if cp.NextAttemptAt.IsZero() {
		cp.NextAttemptAt = cp.CreatedAt
	}
	s.notes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) DueNotifications(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Notification
	for _, n := range s.notes {
		if n.Status != NotificationQueued || n.NextAttemptAt.After(now) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkNotificationDelivered(ctx context.Context, id int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return ErrNotFound
	}
	n.Status = NotificationDelivered
	t := at
	n.DeliveredAt = &t
	return nil
}

func (s *MemoryStore) MarkNotificationFailed(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok {
		return ErrNotFound
	}
	n.Attempts++
	n.LastError = errMsg
	if n.Attempts >= n.MaxAttempts {
		n.Status = NotificationDead
	} else {
		n.NextAttemptAt = nextAttempt
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

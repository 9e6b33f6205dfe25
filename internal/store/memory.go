package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/payledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Memory is an in-process unit of work. Units run one at a time against a
// copy of the state, which replaces the live state only on commit.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	seq           int64
	balances      map[int64]domain.BalanceAccount
	entries       []domain.LedgerEntry
	transactions  map[int64]domain.Transaction
	withdrawals   map[int64]domain.WithdrawalRequest
	giftItems     map[int64]domain.GiftItem
	userGifts     map[int64]domain.UserGift
	packages      map[int64]domain.SubscriptionPackage
	subscriptions map[int64]domain.UserSubscription
	subAudit      []domain.SubscriptionTransaction
	idempotency   map[string]domain.IdempotencyKey
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		balances:      map[int64]domain.BalanceAccount{},
		transactions:  map[int64]domain.Transaction{},
		withdrawals:   map[int64]domain.WithdrawalRequest{},
		giftItems:     map[int64]domain.GiftItem{},
		userGifts:     map[int64]domain.UserGift{},
		packages:      map[int64]domain.SubscriptionPackage{},
		subscriptions: map[int64]domain.UserSubscription{},
		idempotency:   map[string]domain.IdempotencyKey{},
	}}
}

func (s *memState) clone() *memState {
	return &memState{
		seq:           s.seq,
		balances:      maps.Clone(s.balances),
		entries:       append([]domain.LedgerEntry(nil), s.entries...),
		transactions:  maps.Clone(s.transactions),
		withdrawals:   maps.Clone(s.withdrawals),
		giftItems:     maps.Clone(s.giftItems),
		userGifts:     maps.Clone(s.userGifts),
		packages:      maps.Clone(s.packages),
		subscriptions: maps.Clone(s.subscriptions),
		subAudit:      append([]domain.SubscriptionTransaction(nil), s.subAudit...),
		idempotency:   maps.Clone(s.idempotency),
	}
}

func (s *memState) nextID() int64 {
	s.seq++
	return s.seq
}

func (m *Memory) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, &memTx{s: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	m.state = work
	return nil
}

// AddGiftItem registers a catalogue item and returns it with its id.
func (m *Memory) AddGiftItem(item domain.GiftItem) domain.GiftItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.state.nextID()
	m.state.giftItems[item.ID] = item
	return item
}

// SetGiftPrice edits the catalogue price of an item.
func (m *Memory) SetGiftPrice(id int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.state.giftItems[id]
	item.Price = price
	m.state.giftItems[id] = item
}

// AddPackage registers a subscription package and returns it with its id.
func (m *Memory) AddPackage(p domain.SubscriptionPackage) domain.SubscriptionPackage {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.state.nextID()
	m.state.packages[p.ID] = p
	return p
}

// SubscriptionAudit returns the committed subscription audit rows.
func (m *Memory) SubscriptionAudit() []domain.SubscriptionTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SubscriptionTransaction(nil), m.state.subAudit...)
}

// Subscriptions returns every committed subscription of a user ordered by id.
func (m *Memory) Subscriptions(userID int64) []domain.UserSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserSubscription
	for _, s := range m.state.subscriptions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserGifts returns every committed gift row.
func (m *Memory) UserGifts() []domain.UserGift {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.UserGift, 0, len(m.state.userGifts))
	for _, g := range m.state.userGifts {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutUserGift stores a gift row as-is, bypassing the send workflow.
func (m *Memory) PutUserGift(g domain.UserGift) domain.UserGift {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g.ID == 0 {
		g.ID = m.state.nextID()
	}
	m.state.userGifts[g.ID] = g
	return g
}

type memTx struct {
	s *memState
}

func (t *memTx) EnsureBalance(_ context.Context, userID int64) error {
	if _, ok := t.s.balances[userID]; !ok {
		t.s.balances[userID] = domain.BalanceAccount{UserID: userID, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (t *memTx) GetBalance(_ context.Context, userID int64) (domain.BalanceAccount, error) {
	acc, ok := t.s.balances[userID]
	if !ok {
		return domain.BalanceAccount{}, fmt.Errorf("balance: %w", domain.ErrNotFound)
	}
	return acc, nil
}

func (t *memTx) GetBalanceForUpdate(ctx context.Context, userID int64) (domain.BalanceAccount, error) {
	return t.GetBalance(ctx, userID)
}

func (t *memTx) SetBalance(_ context.Context, userID int64, balance decimal.Decimal) error {
	acc, ok := t.s.balances[userID]
	if !ok {
		return fmt.Errorf("balance update: %w", domain.ErrNotFound)
	}
	if balance.IsNegative() {
		return domain.ErrInsufficientBalance
	}
	acc.Balance = balance
	acc.UpdatedAt = time.Now().UTC()
	t.s.balances[userID] = acc
	return nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, e domain.LedgerEntry) (int64, error) {
	e.ID = t.s.nextID()
	e.CreatedAt = time.Now().UTC()
	t.s.entries = append(t.s.entries, e)
	return e.ID, nil
}

func (t *memTx) ListLedgerEntries(_ context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []domain.LedgerEntry
	for i := len(t.s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if t.s.entries[i].UserID == userID {
			out = append(out, t.s.entries[i])
		}
	}
	return out, nil
}

func (t *memTx) InsertTransaction(_ context.Context, in domain.Transaction) (domain.Transaction, error) {
	now := time.Now().UTC()
	in.ID = t.s.nextID()
	in.CreatedAt, in.UpdatedAt = now, now
	t.s.transactions[in.ID] = in
	return in, nil
}

func (t *memTx) GetTransaction(_ context.Context, id int64) (domain.Transaction, error) {
	tr, ok := t.s.transactions[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction: %w", domain.ErrNotFound)
	}
	return tr, nil
}

func (t *memTx) GetTransactionForUpdate(ctx context.Context, id int64) (domain.Transaction, error) {
	return t.GetTransaction(ctx, id)
}

func (t *memTx) UpdateTransaction(_ context.Context, in domain.Transaction) error {
	cur, ok := t.s.transactions[in.ID]
	if !ok {
		return fmt.Errorf("transaction update: %w", domain.ErrNotFound)
	}
	cur.Status = in.Status
	cur.UserReference = in.UserReference
	cur.AdminNotes = in.AdminNotes
	cur.VerifiedBy = in.VerifiedBy
	cur.VerifiedAt = in.VerifiedAt
	cur.UpdatedAt = time.Now().UTC()
	t.s.transactions[in.ID] = cur
	return nil
}

func (t *memTx) ListTransactions(_ context.Context, f TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.s.transactions {
		if f.UserID != 0 && tr.UserID != f.UserID {
			continue
		}
		if f.Status != "" && tr.Status != f.Status {
			continue
		}
		out = append(out, tr)
	}
	if f.Status == domain.TxPendingVerification {
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) InsertWithdrawal(_ context.Context, in domain.WithdrawalRequest) (domain.WithdrawalRequest, error) {
	in.ID = t.s.nextID()
	in.CreatedAt = time.Now().UTC()
	t.s.withdrawals[in.ID] = in
	return in, nil
}

func (t *memTx) GetWithdrawal(_ context.Context, id int64) (domain.WithdrawalRequest, error) {
	w, ok := t.s.withdrawals[id]
	if !ok {
		return domain.WithdrawalRequest{}, fmt.Errorf("withdrawal: %w", domain.ErrNotFound)
	}
	return w, nil
}

func (t *memTx) GetWithdrawalForUpdate(ctx context.Context, id int64) (domain.WithdrawalRequest, error) {
	return t.GetWithdrawal(ctx, id)
}

func (t *memTx) UpdateWithdrawal(_ context.Context, in domain.WithdrawalRequest) error {
	cur, ok := t.s.withdrawals[in.ID]
	if !ok {
		return fmt.Errorf("withdrawal update: %w", domain.ErrNotFound)
	}
	cur.Status = in.Status
	cur.AdminNotes = in.AdminNotes
	cur.ProcessedBy = in.ProcessedBy
	cur.ProcessedAt = in.ProcessedAt
	t.s.withdrawals[in.ID] = cur
	return nil
}

func (t *memTx) ListWithdrawals(_ context.Context, userID int64) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	for _, w := range t.s.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) GetGiftItem(_ context.Context, id int64) (domain.GiftItem, error) {
	item, ok := t.s.giftItems[id]
	if !ok {
		return domain.GiftItem{}, fmt.Errorf("gift item: %w", domain.ErrNotFound)
	}
	return item, nil
}

func (t *memTx) InsertUserGift(_ context.Context, in domain.UserGift) (domain.UserGift, error) {
	in.ID = t.s.nextID()
	in.CreatedAt = time.Now().UTC()
	t.s.userGifts[in.ID] = in
	return in, nil
}

func (t *memTx) GetUserGiftForUpdate(_ context.Context, id int64) (domain.UserGift, error) {
	g, ok := t.s.userGifts[id]
	if !ok {
		return domain.UserGift{}, fmt.Errorf("gift: %w", domain.ErrNotFound)
	}
	return g, nil
}

func (t *memTx) UpdateUserGift(_ context.Context, in domain.UserGift) error {
	cur, ok := t.s.userGifts[in.ID]
	if !ok {
		return fmt.Errorf("gift update: %w", domain.ErrNotFound)
	}
	cur.IsRedeemed = in.IsRedeemed
	cur.RedeemedValue = in.RedeemedValue
	cur.RedeemedAt = in.RedeemedAt
	t.s.userGifts[in.ID] = cur
	return nil
}

func (t *memTx) ListReceivedGifts(_ context.Context, recipientID int64) ([]domain.UserGift, error) {
	var out []domain.UserGift
	for _, g := range t.s.userGifts {
		if g.RecipientID == recipientID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) GetPackage(_ context.Context, id int64) (domain.SubscriptionPackage, error) {
	p, ok := t.s.packages[id]
	if !ok {
		return domain.SubscriptionPackage{}, fmt.Errorf("subscription package: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (t *memTx) ListActiveSubscriptionsForUpdate(_ context.Context, userID int64) ([]domain.UserSubscription, error) {
	var out []domain.UserSubscription
	for _, s := range t.s.subscriptions {
		if s.UserID == userID && s.Status == domain.SubscriptionActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetActiveSubscription(_ context.Context, userID int64, at time.Time) (domain.UserSubscription, error) {
	var best *domain.UserSubscription
	for _, s := range t.s.subscriptions {
		if s.UserID != userID || s.Status != domain.SubscriptionActive || !s.EndDate.After(at) {
			continue
		}
		if best == nil || s.ID > best.ID {
			best = &s
		}
	}
	if best == nil {
		return domain.UserSubscription{}, fmt.Errorf("subscription: %w", domain.ErrNotFound)
	}
	return *best, nil
}

func (t *memTx) CancelSubscription(_ context.Context, id int64) error {
	s, ok := t.s.subscriptions[id]
	if !ok {
		return nil
	}
	s.Status = domain.SubscriptionCancelled
	s.AutoRenew = false
	t.s.subscriptions[id] = s
	return nil
}

func (t *memTx) InsertSubscription(_ context.Context, in domain.UserSubscription) (domain.UserSubscription, error) {
	if in.Status == domain.SubscriptionActive {
		for _, s := range t.s.subscriptions {
			if s.UserID == in.UserID && s.Status == domain.SubscriptionActive {
				return domain.UserSubscription{}, fmt.Errorf("concurrent activation for user %d: %w", in.UserID, domain.ErrInvalidState)
			}
		}
	}
	in.ID = t.s.nextID()
	t.s.subscriptions[in.ID] = in
	return in, nil
}

func (t *memTx) InsertSubscriptionTransaction(_ context.Context, in domain.SubscriptionTransaction) (int64, error) {
	in.ID = t.s.nextID()
	in.CreatedAt = time.Now().UTC()
	t.s.subAudit = append(t.s.subAudit, in)
	return in.ID, nil
}

func (t *memTx) GetIdempotencyKey(_ context.Context, key string) (domain.IdempotencyKey, error) {
	k, ok := t.s.idempotency[key]
	if !ok {
		return domain.IdempotencyKey{}, fmt.Errorf("idempotency key: %w", domain.ErrNotFound)
	}
	return k, nil
}

func (t *memTx) InsertIdempotencyKey(_ context.Context, k domain.IdempotencyKey) error {
	if _, ok := t.s.idempotency[k.Key]; ok {
		return domain.ErrIdempotencyConflict
	}
	k.CreatedAt = time.Now().UTC()
	t.s.idempotency[k.Key] = k
	return nil
}

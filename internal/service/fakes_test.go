package service

import (
	"context"
	"sync"

	"sitegen/internal/infrastructure/llm"
	"sitegen/internal/model"
	"sitegen/internal/repository"
)

type fakeAccounts struct {
	mu        sync.Mutex
	balances  map[string]int64
	getErr    error
	chargeErr error
	charges   int
	ctxErrs   []error
}

func newFakeAccounts(balances map[string]int64) *fakeAccounts {
	return &fakeAccounts{balances: balances}
}

func (f *fakeAccounts) balance(userID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeAccounts) get(userID string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	credits, ok := f.balances[userID]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return &model.Account{UserID: userID, Credits: credits}, nil
}

func (f *fakeAccounts) GetByUserID(_ context.Context, userID string) (*model.Account, error) {
	return f.get(userID)
}

func (f *fakeAccounts) GetByUserIDFromPrimary(_ context.Context, userID string) (*model.Account, error) {
	return f.get(userID)
}

func (f *fakeAccounts) GetOrCreate(_ context.Context, userID string, initial int64) (*model.Account, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if credits, ok := f.balances[userID]; ok {
		return &model.Account{UserID: userID, Credits: credits}, false, nil
	}
	f.balances[userID] = initial
	return &model.Account{UserID: userID, Credits: initial}, true, nil
}

func (f *fakeAccounts) Charge(ctx context.Context, userID, _ string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.chargeErr != nil {
		return 0, f.chargeErr
	}
	credits, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	if credits < amount {
		return 0, repository.ErrInsufficientCredit
	}
	f.balances[userID] = credits - amount
	f.charges++
	return f.balances[userID], nil
}

func (f *fakeAccounts) Adjust(_ context.Context, userID string, delta int64, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	credits, ok := f.balances[userID]
	if !ok {
		return 0, repository.ErrAccountNotFound
	}
	if credits+delta < 0 {
		return 0, repository.ErrInsufficientCredit
	}
	f.balances[userID] = credits + delta
	return f.balances[userID], nil
}

type fakeWebsites struct {
	mu        sync.Mutex
	items     map[string]*model.Website
	events    []*model.OutboxMessage
	createErr error
}

func newFakeWebsites(items ...*model.Website) *fakeWebsites {
	f := &fakeWebsites{items: map[string]*model.Website{}}
	for _, w := range items {
		f.items[w.ID] = w
	}
	return f
}

func (f *fakeWebsites) CreateWithEvent(ctx context.Context, w *model.Website, msg *model.OutboxMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copied := *w
	f.items[w.ID] = &copied
	if msg != nil {
		f.events = append(f.events, msg)
	}
	return nil
}

func (f *fakeWebsites) GetByID(_ context.Context, id string) (*model.Website, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.items[id]
	if !ok {
		return nil, repository.ErrWebsiteNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *fakeWebsites) ListByUserID(_ context.Context, userID string, _, _ int) ([]*model.WebsiteSummary, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.WebsiteSummary
	for _, w := range f.items {
		if w.UserID == userID {
			out = append(out, &model.WebsiteSummary{ID: w.ID, ParentID: w.ParentID, Prompt: w.Prompt, CreatedAt: w.CreatedAt})
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeWebsites) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

type fakeSettlements struct {
	mu      sync.Mutex
	created []*model.PendingSettlement
	events  []*model.OutboxMessage
}

func (f *fakeSettlements) Create(_ context.Context, s *model.PendingSettlement, msg *model.OutboxMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, s)
	if msg != nil {
		f.events = append(f.events, msg)
	}
	return nil
}

func (f *fakeSettlements) ListPending(context.Context, int) ([]*model.PendingSettlement, error) {
	return nil, nil
}

func (f *fakeSettlements) Resolve(context.Context, *model.PendingSettlement, func(string) *model.OutboxMessage) (string, error) {
	return model.SettlementStatusSettled, nil
}

func (f *fakeSettlements) RecordFailure(context.Context, *model.PendingSettlement, error, int) (string, error) {
	return model.SettlementStatusPending, nil
}

type fakeGenerator struct {
	mu      sync.Mutex
	content string
	err     error
	calls   int
	last    llm.Request
	onCall  func()
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	onCall := g.onCall
	g.mu.Unlock()

	if onCall != nil {
		onCall()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Content: g.content, Model: "fake-model", TotalTokens: 10}, nil
}

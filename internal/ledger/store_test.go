package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/notify"
	"ledger/internal/realtime"
	"ledger/internal/remote"
	"ledger/internal/services"
	"ledger/internal/sheets"
	"ledger/internal/sheets/memory"
	"ledger/internal/storage"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store *Store
	docs  *memory.Store
	blobs *storage.MemoryBlobs
	sent  *notify.Recorder
	clock *testClock
}

func newHarness(t *testing.T, withRealtime bool) *harness {
	t.Helper()
	h := &harness{
		docs:  memory.New(),
		blobs: storage.NewMemoryBlobs(),
		sent:  &notify.Recorder{},
		clock: &testClock{t: testNow},
	}
	client := remote.New(h.docs, nil, nil)
	opts := Options{
		Persist:  storage.NewSnapshots(h.blobs, nil),
		Remote:   client,
		Alerts:   services.NewBudgetAlerts(h.sent, nil, services.WithClock(h.clock.Now), services.WithLocation(time.UTC)),
		Location: time.UTC,
		Now:      h.clock.Now,
	}
	if withRealtime {
		opts.Realtime = realtime.New(h.docs, client, nil)
	}
	h.store = New(opts)
	t.Cleanup(h.store.Close)
	return h
}

func (h *harness) persisted(t *testing.T) core.Snapshot {
	t.Helper()
	snap, err := storage.NewSnapshots(h.blobs, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("load persisted snapshot: %v", err)
	}
	return snap
}

func scopeOf(user string, kind core.Kind) sheets.Scope {
	return sheets.Scope{UserID: user, Collection: kind}
}

func expense(cents int64, category string) core.Transaction {
	return core.Transaction{
		Amount:      core.Cents(cents),
		Type:        core.Expense,
		CategoryID:  category,
		Description: "coffee",
		Date:        core.NewInstant(testNow),
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAddTransactionAssignsIDAndPersists(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	tx, err := h.store.AddTransaction(ctx, expense(450, "food"))
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if tx.ID == "" {
		t.Fatal("expected an id")
	}
	if !tx.CreatedAt.Time.Equal(testNow) || !tx.UpdatedAt.Time.Equal(testNow) {
		t.Fatalf("timestamps = %v / %v", tx.CreatedAt, tx.UpdatedAt)
	}

	// The mutation is visible before any I/O completes.
	if got := h.store.Transactions(); len(got) != 1 || got[0].ID != tx.ID {
		t.Fatalf("Transactions() = %+v", got)
	}

	h.store.Wait()
	if snap := h.persisted(t); len(snap.Transactions) != 1 || snap.Transactions[0].ID != tx.ID {
		t.Fatalf("persisted transactions = %+v", snap.Transactions)
	}
}

func TestAddTransactionRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(tx *core.Transaction)
	}{
		{"zero amount", func(tx *core.Transaction) { tx.Amount = core.Cents(0) }},
		{"negative amount", func(tx *core.Transaction) { tx.Amount = core.Cents(-5) }},
		{"missing category", func(tx *core.Transaction) { tx.CategoryID = "  " }},
		{"unknown type", func(tx *core.Transaction) { tx.Type = "transfer" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			tx := expense(100, "food")
			tt.mutate(&tx)

			_, err := h.store.AddTransaction(context.Background(), tx)
			if !core.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			h.store.Wait()
			if len(h.store.Transactions()) != 0 {
				t.Fatal("state changed on rejected input")
			}
			if h.blobs.Writes() != 0 {
				t.Fatalf("expected no persist, got %d writes", h.blobs.Writes())
			}
		})
	}
}

func TestAddTransactionDrawsUnusedID(t *testing.T) {
	ids := []string{"dup", "dup", "fresh"}
	var mu sync.Mutex
	s := New(Options{
		Persist: storage.NewSnapshots(storage.NewMemoryBlobs(), nil),
		NewID: func() string {
			mu.Lock()
			defer mu.Unlock()
			id := ids[0]
			ids = ids[1:]
			return id
		},
	})
	defer s.Close()

	ctx := context.Background()
	first, _ := s.AddTransaction(ctx, expense(100, "food"))
	second, _ := s.AddTransaction(ctx, expense(200, "food"))
	if first.ID != "dup" || second.ID != "fresh" {
		t.Fatalf("ids = %s, %s", first.ID, second.ID)
	}
}

func TestUpdateTransactionKeepsIdentityFields(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	tx, _ := h.store.AddTransaction(ctx, expense(100, "food"))

	h.clock.Advance(time.Hour)
	desc := "lunch"
	amount := core.Cents(1250)
	updated, err := h.store.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Description: &desc, Amount: &amount})
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.ID != tx.ID || !updated.CreatedAt.Equal(tx.CreatedAt) {
		t.Fatalf("identity changed: %+v", updated)
	}
	if !updated.UpdatedAt.Time.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("updatedAt = %v", updated.UpdatedAt)
	}
	if updated.Description != "lunch" || updated.Amount.Cents != 1250 {
		t.Fatalf("patch not applied: %+v", updated)
	}

	zero := core.Cents(0)
	if _, err := h.store.UpdateTransaction(ctx, tx.ID, core.TransactionPatch{Amount: &zero}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got, _ := h.store.Transaction(tx.ID); got.Amount.Cents != 1250 {
		t.Fatalf("rejected patch changed state: %+v", got)
	}
	if _, err := h.store.UpdateTransaction(ctx, "missing", core.TransactionPatch{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemoteCalls(t *testing.T) {
	tests := []struct {
		name        string
		identity    string
		wantDeletes int
	}{
		{"with identity", "u1", 1},
		{"offline", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, false)
			ctx := context.Background()
			tx, _ := h.store.AddTransaction(ctx, expense(100, "food"))
			h.store.AttachIdentity(ctx, tt.identity)
			h.store.Wait()

			if err := h.store.DeleteTransaction(ctx, tx.ID); err != nil {
				t.Fatalf("DeleteTransaction: %v", err)
			}
			h.store.Wait()

			if got := h.docs.Deletes(scopeOf("u1", core.KindTransactions)); got != tt.wantDeletes {
				t.Fatalf("remote deletes = %d, want %d", got, tt.wantDeletes)
			}
			if snap := h.persisted(t); len(snap.Transactions) != 0 {
				t.Fatalf("persisted transactions = %+v", snap.Transactions)
			}
			if err := h.store.DeleteTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
				t.Fatalf("second delete = %v", err)
			}
		})
	}
}

func TestOfflineMutationsStayLocal(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	h.store.AddTransaction(ctx, expense(100, "food"))
	h.store.AddCategory(ctx, core.Category{Name: "Pets", Type: core.Expense})
	h.store.SetBudget(ctx, core.Budget{Month: "2025-03", TotalBudget: core.Cents(100000)})
	dark := true
	h.store.UpdateSettings(ctx, core.SettingsPatch{DarkMode: &dark})
	h.store.Wait()

	for _, kind := range core.SyncedKinds {
		if n := h.docs.Upserts(scopeOf("u1", kind)); n != 0 {
			t.Fatalf("%s: %d remote upserts while offline", kind, n)
		}
	}
	if snap := h.persisted(t); !snap.Settings.DarkMode || len(snap.Categories) != 13 {
		t.Fatalf("persisted snapshot = %+v", snap)
	}
}

func TestLocalOnlyKindsNeverPush(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.store.AttachIdentity(ctx, "u1")
	h.store.Wait()

	goal, err := h.store.AddSavingsGoal(ctx, core.SavingsGoal{Name: "Bike", TargetAmount: core.Cents(50000)})
	if err != nil {
		t.Fatalf("AddSavingsGoal: %v", err)
	}
	def, err := h.store.AddRecurring(ctx, core.RecurringTransaction{
		Amount: core.Cents(1000), Type: core.Expense, CategoryID: "bills", Description: "Rent",
		Frequency: core.Monthly, StartDate: core.NewInstant(testNow), IsActive: true,
	})
	if err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}
	h.store.Wait()

	for _, kind := range []core.Kind{core.KindSavingsGoals, core.KindRecurring} {
		if n := h.docs.Upserts(scopeOf("u1", kind)); n != 0 {
			t.Fatalf("%s pushed %d times", kind, n)
		}
	}
	snap := h.persisted(t)
	if len(snap.SavingsGoals) != 1 || snap.SavingsGoals[0].ID != goal.ID {
		t.Fatalf("persisted goals = %+v", snap.SavingsGoals)
	}
	if len(snap.Recurring) != 1 || snap.Recurring[0].ID != def.ID {
		t.Fatalf("persisted recurring = %+v", snap.Recurring)
	}
}

func TestSavingsGoalBounds(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if _, err := h.store.AddSavingsGoal(ctx, core.SavingsGoal{Name: "Trip", TargetAmount: core.Cents(100), CurrentAmount: core.Cents(101)}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	goal, err := h.store.AddSavingsGoal(ctx, core.SavingsGoal{Name: "Trip", TargetAmount: core.Cents(100)})
	if err != nil {
		t.Fatalf("AddSavingsGoal: %v", err)
	}
	if !goal.CreatedAt.Time.Equal(testNow) {
		t.Fatalf("createdAt = %v", goal.CreatedAt)
	}

	full := core.Cents(100)
	if _, err := h.store.UpdateSavingsGoal(ctx, goal.ID, core.SavingsGoalPatch{CurrentAmount: &full}); err != nil {
		t.Fatalf("reaching the target should be allowed: %v", err)
	}
	over := core.Cents(150)
	if _, err := h.store.UpdateSavingsGoal(ctx, goal.ID, core.SavingsGoalPatch{CurrentAmount: &over}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := h.store.DeleteSavingsGoal(ctx, goal.ID); err != nil {
		t.Fatalf("DeleteSavingsGoal: %v", err)
	}
	if len(h.store.SavingsGoals()) != 0 {
		t.Fatal("goal not removed")
	}
}

func TestCategories(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	if _, err := h.store.AddCategory(ctx, core.Category{ID: "food", Name: "Food again", Type: core.Expense}); !core.IsValidation(err) {
		t.Fatalf("duplicate id should be rejected, got %v", err)
	}
	cat, err := h.store.AddCategory(ctx, core.Category{Name: "Pets", Type: core.Expense})
	if err != nil || cat.ID == "" {
		t.Fatalf("AddCategory = %+v, %v", cat, err)
	}

	limit := core.Cents(30000)
	updated, err := h.store.UpdateCategory(ctx, cat.ID, core.CategoryPatch{BudgetLimit: &limit})
	if err != nil || updated.BudgetLimit == nil || updated.BudgetLimit.Cents != 30000 {
		t.Fatalf("UpdateCategory = %+v, %v", updated, err)
	}

	tx, _ := h.store.AddTransaction(ctx, expense(100, cat.ID))
	if err := h.store.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, ok := h.store.Category(cat.ID); ok {
		t.Fatal("category still present")
	}
	// Transactions keep pointing at the deleted category.
	if got, _ := h.store.Transaction(tx.ID); got.CategoryID != cat.ID {
		t.Fatalf("transaction category rewritten: %+v", got)
	}
}

func TestSetBudgetUpsertsByMonth(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	first, err := h.store.SetBudget(ctx, core.Budget{Month: "2025-03", TotalBudget: core.Cents(100000)})
	if err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	second, err := h.store.SetBudget(ctx, core.Budget{
		Month:       "2025-03",
		TotalBudget: core.Cents(50000),
		CategoryBudgets: []core.CategoryBudget{
			{CategoryID: "food", Limit: core.Cents(40000)},
			{CategoryID: "transport", Limit: core.Cents(20000)},
		},
	})
	if err != nil {
		t.Fatalf("SetBudget: %v", err)
	}
	if second.ID != first.ID || len(h.store.Budgets()) != 1 {
		t.Fatalf("budget not upserted: %+v", h.store.Budgets())
	}

	h.store.AddTransaction(ctx, expense(12000, "food"))
	status, err := h.store.BudgetStatus("2025-03")
	if err != nil {
		t.Fatalf("BudgetStatus: %v", err)
	}
	if !status.OverAllocated || status.TotalSpent.Cents != 12000 {
		t.Fatalf("status = %+v", status)
	}
	if _, err := h.store.BudgetStatus("2025-04"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.store.SetBudget(ctx, core.Budget{Month: "March"}); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetBudgetNormalizesMonth(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	var ids []string
	for _, month := range []string{"2025-03", " 2025-03", "2025-03 \n"} {
		b, err := h.store.SetBudget(ctx, core.Budget{Month: month, TotalBudget: core.Cents(1000)})
		if err != nil {
			t.Fatalf("SetBudget(%q): %v", month, err)
		}
		if b.Month != "2025-03" {
			t.Fatalf("SetBudget(%q) stored month %q", month, b.Month)
		}
		ids = append(ids, b.ID)
	}
	if got := len(h.store.Budgets()); got != 1 {
		t.Fatalf("budgets for month 2025-03: %d, want 1", got)
	}
	if ids[1] != ids[0] || ids[2] != ids[0] {
		t.Fatalf("padded months created new budgets: %v", ids)
	}
}

func TestExpenseCommitsRaiseAlerts(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	limit := core.Cents(10000)
	if _, err := h.store.UpdateCategory(ctx, "food", core.CategoryPatch{BudgetLimit: &limit}); err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}

	h.store.AddTransaction(ctx, expense(5000, "food"))
	if n := len(h.sent.Sent()); n != 0 {
		t.Fatalf("50%% should not alert, got %d", n)
	}
	h.store.AddTransaction(ctx, expense(3000, "food"))
	sent := h.sent.Sent()
	if len(sent) != 1 || sent[0].Payload["tier"] != 75 {
		t.Fatalf("expected one 75%% alert, got %+v", sent)
	}

	income := expense(90000, "salary")
	income.Type = core.Income
	h.store.AddTransaction(ctx, income)
	if n := len(h.sent.Sent()); n != 1 {
		t.Fatalf("income should not alert, got %d notifications", n)
	}

	if got := h.store.MonthSpending("food", testNow); got.Cents != 8000 {
		t.Fatalf("MonthSpending = %d", got.Cents)
	}
}

func TestAlertFailureDoesNotFailMutation(t *testing.T) {
	h := newHarness(t, false)
	h.sent.Err = errors.New("notifications disabled")
	ctx := context.Background()
	limit := core.Cents(1000)
	h.store.UpdateCategory(ctx, "food", core.CategoryPatch{BudgetLimit: &limit})

	if _, err := h.store.AddTransaction(ctx, expense(2000, "food")); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if len(h.store.Transactions()) != 1 {
		t.Fatal("transaction not committed")
	}
}

func TestMaterializeThroughStore(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	start := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	def, err := h.store.AddRecurring(ctx, core.RecurringTransaction{
		Amount: core.Cents(80000), Type: core.Expense, CategoryID: "bills", Description: "Rent",
		Frequency: core.Monthly, StartDate: core.NewInstant(start), IsActive: true,
	})
	if err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}

	report, err := h.store.Materialize(ctx, testNow)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(report.Created) != 2 {
		t.Fatalf("created %d occurrences, want 2", len(report.Created))
	}
	for _, tx := range h.store.Transactions() {
		if tx.Description != core.AutoTag("Rent") {
			t.Fatalf("description = %q", tx.Description)
		}
	}
	defs := h.store.RecurringTransactions()
	wantCursor := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	if len(defs) != 1 || defs[0].ID != def.ID || !defs[0].LastMaterializedAt.Time.Equal(wantCursor) {
		t.Fatalf("cursor = %+v", defs)
	}

	again, err := h.store.Materialize(ctx, testNow)
	if err != nil || len(again.Created) != 0 {
		t.Fatalf("second run created %d (err=%v)", len(again.Created), err)
	}
}

func TestLoadRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryBlobs()
	snaps := storage.NewSnapshots(blobs, nil)

	want := core.EmptySnapshot()
	want.Transactions = []core.Transaction{{ID: "t1", Amount: core.Cents(100), Type: core.Expense, CategoryID: "food", Date: core.NewInstant(testNow)}}
	want.Settings.Currency = "EUR"
	if err := snaps.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s := New(Options{Persist: snaps})
	defer s.Close()
	if err := s.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, ok := s.Transaction("t1"); !ok || got.Amount.Cents != 100 {
		t.Fatalf("transaction not restored: %+v", got)
	}
	if s.Settings().Currency != "EUR" {
		t.Fatalf("settings not restored: %+v", s.Settings())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	h.store.AddTransaction(ctx, expense(100, "food"))

	snap := h.store.Snapshot()
	snap.Transactions[0].Amount = core.Cents(1)
	snap.Categories[0].Name = "changed"
	if got := h.store.Transactions()[0]; got.Amount.Cents != 100 {
		t.Fatalf("store aliased by snapshot: %+v", got)
	}
	if h.store.Categories()[0].Name == "changed" {
		t.Fatal("categories aliased by snapshot")
	}
}

func TestTransactionsInMonth(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()
	for i, day := range []int{28, 1, 31} {
		tx := expense(int64(100*(i+1)), "food")
		month := time.March
		if day == 28 {
			month = time.February
		}
		tx.Date = core.NewInstant(time.Date(2025, month, day, 10, 0, 0, 0, time.UTC))
		h.store.AddTransaction(ctx, tx)
	}
	got, err := h.store.TransactionsInMonth("2025-03")
	if err != nil {
		t.Fatalf("TransactionsInMonth: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d transactions, want 2", len(got))
	}
	spending, _ := h.store.SpendingByCategory("2025-03")
	if len(spending) != 1 || spending[0].Amount.Cents != 500 {
		t.Fatalf("SpendingByCategory = %+v", spending)
	}
	if _, err := h.store.TransactionsInMonth("03/2025"); err == nil {
		t.Fatal("expected error for malformed month")
	}
}

func TestConcurrentMutations(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := expense(int64(100+i), "food")
			tx.Description = fmt.Sprintf("tx %d", i)
			if _, err := h.store.AddTransaction(ctx, tx); err != nil {
				t.Errorf("AddTransaction: %v", err)
			}
		}(i)
	}
	wg.Wait()
	h.store.Wait()

	if n := len(h.store.Transactions()); n != 20 {
		t.Fatalf("got %d transactions, want 20", n)
	}
	seen := map[string]bool{}
	for _, tx := range h.store.Transactions() {
		if seen[tx.ID] {
			t.Fatalf("duplicate id %s", tx.ID)
		}
		seen[tx.ID] = true
	}
}

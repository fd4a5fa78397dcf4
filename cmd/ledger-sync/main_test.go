package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/storage"
)

func TestMaterializerDrainsBeforeClose(t *testing.T) {
	blobs := storage.NewMemoryBlobs()
	stats := &taskStats{counts: map[string]int{}}
	store := ledger.New(ledger.Options{
		Persist:  storage.NewSnapshots(blobs, nil),
		Location: time.UTC,
	})

	start := time.Now().UTC().AddDate(0, 0, -3)
	if _, err := store.AddRecurring(context.Background(), core.RecurringTransaction{
		Amount: core.Cents(500), Type: core.Expense, CategoryID: "food", Description: "Coffee",
		Frequency: core.Daily, StartDate: core.NewInstant(start), IsActive: true,
	}); err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		runMaterializer(ctx, store, time.Millisecond, stats, log.Discard())
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	finished := make(chan struct{})
	go func() {
		background.Wait()
		store.Close()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("materializer did not stop after cancel")
	}

	if len(store.Transactions()) == 0 {
		t.Fatal("expected the initial run to materialize due occurrences")
	}
	if err := store.Save(context.Background()); err != nil {
		t.Fatalf("Save after Close: %v", err)
	}
}

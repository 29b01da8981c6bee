package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
	"github.com/tjfontaine/blackjack-advisor/internal/core/ports"
)

func record(id string, p domain.Provider, at time.Time) *ports.JournalRecord {
	return &ports.JournalRecord{
		Recommendation: domain.Recommendation{ID: id, Provider: p, Action: domain.ActionStand, CreatedAt: at},
		Snapshot:       domain.GameSnapshot{Hand: []domain.Card{{Rank: "K", Suit: "♣"}}, Total: 10},
	}
}

func TestMemoryStore_AppendList(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	providers := []domain.Provider{domain.ProviderLlamaStack, domain.ProviderOllama, domain.ProviderLlamaStack}
	for i, p := range providers {
		if err := store.Append(ctx, record(fmt.Sprintf("rec-%d", i), p, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		opts    ports.JournalListOptions
		wantIDs []string
	}{
		{"all newest first", ports.JournalListOptions{}, []string{"rec-2", "rec-1", "rec-0"}},
		{"by provider", ports.JournalListOptions{Provider: domain.ProviderLlamaStack}, []string{"rec-2", "rec-0"}},
		{"since", ports.JournalListOptions{Since: base.Add(time.Second)}, []string{"rec-2", "rec-1"}},
		{"limit offset", ports.JournalListOptions{Limit: 1, Offset: 1}, []string{"rec-1"}},
		{"offset past end", ports.JournalListOptions{Offset: 5}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.wantIDs) {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestMemoryStore_DuplicateID(t *testing.T) {
	store := New()
	rec := record("rec-1", domain.ProviderVLLM, time.Now())

	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := store.Append(context.Background(), rec); err == nil {
		t.Error("expected error on duplicate id")
	}
}

func TestMemoryStore_SnapshotIsolated(t *testing.T) {
	store := New()
	rec := record("rec-1", domain.ProviderVLLM, time.Now())
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	rec.Snapshot.Hand[0].Rank = "2"

	got, _ := store.List(context.Background(), ports.JournalListOptions{})
	if got[0].Snapshot.Hand[0].Rank != "K" {
		t.Error("stored snapshot changed after caller mutation")
	}
}

func TestMemoryStore_ConcurrentAppend(t *testing.T) {
	store := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Append(context.Background(), record(fmt.Sprintf("rec-%d", i), domain.ProviderOllama, time.Now()))
		}()
	}
	wg.Wait()

	got, _ := store.List(context.Background(), ports.JournalListOptions{})
	if len(got) != 50 {
		t.Errorf("len = %d, want 50", len(got))
	}
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	ttft := 40.0
	rec := record("rec-1", domain.ProviderVLLM, time.Now())
	rec.TtftMs = &ttft
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	got, _ := store.List(ctx, ports.JournalListOptions{})
	got[0].Action = domain.ActionHit
	got[0].Snapshot.Hand[0].Rank = "2"
	*got[0].TtftMs = 1

	again, _ := store.List(ctx, ports.JournalListOptions{})
	if again[0].Action != domain.ActionStand {
		t.Errorf("Action = %q, want stand", again[0].Action)
	}
	if again[0].Snapshot.Hand[0].Rank != "K" {
		t.Error("stored snapshot changed after mutating a listed record")
	}
	if *again[0].TtftMs != 40 {
		t.Errorf("TtftMs = %v, want 40", *again[0].TtftMs)
	}
}

func TestMemoryStore_DefaultLimit(t *testing.T) {
	store := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range DefaultListLimit + 20 {
		if err := store.Append(ctx, record(fmt.Sprintf("rec-%d", i), domain.ProviderOllama, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, _ := store.List(ctx, ports.JournalListOptions{})
	if len(got) != DefaultListLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultListLimit)
	}
	if want := fmt.Sprintf("rec-%d", DefaultListLimit+19); got[0].ID != want {
		t.Errorf("first = %s, want %s", got[0].ID, want)
	}

	got, _ = store.List(ctx, ports.JournalListOptions{Limit: DefaultListLimit + 50})
	if len(got) != DefaultListLimit+20 {
		t.Errorf("explicit limit len = %d, want %d", len(got), DefaultListLimit+20)
	}
}

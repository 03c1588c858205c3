package recipients

import (
	"context"
	"testing"

	"github.com/eas-pay/eas_wallet/internal/store"
)

func TestSaveKeepsLatestMappingPerUser(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemory())

	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-1", Label: "Checking"}); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := repo.Save(ctx, Mapping{GridUserID: "u2", ExternalAccountID: "ext-9", Label: "Other"}); err != nil {
		t.Fatalf("save other user: %v", err)
	}
	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-2", Label: "Savings"}); err != nil {
		t.Fatalf("save second: %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 mappings, got %d: %#v", len(all), all)
	}

	m, ok, err := repo.ForUser(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("for user: %v %v", ok, err)
	}
	if m.ExternalAccountID != "ext-2" || m.Label != "Savings" {
		t.Fatalf("expected latest mapping, got %#v", m)
	}
}

func TestSaveDefaultsLabel(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemory())
	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-1", Label: "  "}); err != nil {
		t.Fatalf("save: %v", err)
	}
	m, _, _ := repo.ForUser(ctx, "u1")
	if m.Label != DefaultLabel {
		t.Fatalf("expected default label, got %q", m.Label)
	}

	if _, ok, _ := repo.ForUser(ctx, "missing"); ok {
		t.Fatalf("unexpected mapping for unknown user")
	}
	if err := repo.Save(ctx, Mapping{GridUserID: "u1"}); err == nil {
		t.Fatalf("expected error for missing external account id")
	}
}

func TestSaveWithoutLabelKeepsExistingLabel(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(store.NewMemory())

	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-1", Label: "Checking"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-1"}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	m, _, err := repo.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if m.Label != "Checking" {
		t.Fatalf("label overwritten: %q", m.Label)
	}

	if err := repo.Save(ctx, Mapping{GridUserID: "u1", ExternalAccountID: "ext-2"}); err != nil {
		t.Fatalf("save new account: %v", err)
	}
	m, _, _ = repo.ForUser(ctx, "u1")
	if m.Label != DefaultLabel {
		t.Fatalf("new account should get default label, got %q", m.Label)
	}
}

package recipients

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/eas-pay/eas_wallet/internal/store"
)

// DefaultLabel is used when the user leaves the label empty.
const DefaultLabel = "Bank account"

// Mapping links a saved external bank account to a user.
type Mapping struct {
	GridUserID        string `json:"grid_user_id"`
	ExternalAccountID string `json:"external_account_id"`
	Label             string `json:"label"`
}

// Repository keeps external account mappings in the secure store. A user has
// at most one mapping; saving replaces the previous one.
type Repository struct {
	store store.Store
	mu    sync.Mutex
}

// NewRepository builds a mapping repository on st.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// Save stores m and drops any earlier mapping for the same user. An empty
// label keeps the label already saved for the same external account.
func (r *Repository) Save(ctx context.Context, m Mapping) error {
	if m.GridUserID == "" || m.ExternalAccountID == "" {
		return errors.New("mapping requires grid user id and external account id")
	}
	m.Label = strings.TrimSpace(m.Label)

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := existing[:0]
	for _, e := range existing {
		if e.GridUserID == m.GridUserID {
			if m.Label == "" && e.ExternalAccountID == m.ExternalAccountID {
				m.Label = e.Label
			}
			continue
		}
		kept = append(kept, e)
	}
	if m.Label == "" {
		m.Label = DefaultLabel
	}
	kept = append(kept, m)
	return store.SetJSON(ctx, r.store, store.KeyExternalAccounts, kept)
}

// ForUser returns the saved mapping for gridUserID.
func (r *Repository) ForUser(ctx context.Context, gridUserID string) (Mapping, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return Mapping{}, false, err
	}
	for _, m := range all {
		if m.GridUserID == gridUserID {
			return m, true, nil
		}
	}
	return Mapping{}, false, nil
}

// List returns every stored mapping.
func (r *Repository) List(ctx context.Context) ([]Mapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

func (r *Repository) load(ctx context.Context) ([]Mapping, error) {
	all, err := store.GetJSON[[]Mapping](ctx, r.store, store.KeyExternalAccounts)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return all, err
}

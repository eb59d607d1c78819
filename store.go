package docfill

import (
	"context"

	internalstore "github.com/goliatone/go-docfill/internal/store"
	"github.com/goliatone/go-docfill/pkg/store"
)

// NewStore opens a template store backed by the internal filesystem
// implementation while keeping the concrete type hidden from consumers.
func NewStore(ctx context.Context, options ...store.Option) (store.Store, error) {
	cfg := store.NewOptions(options...)
	s, err := internalstore.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

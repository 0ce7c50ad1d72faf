package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/summerlabs/notifai/internal/store"
)

// Resolver maps raw sender addresses to sender records, guaranteeing one
// record per canonical identity key even under concurrent resolution from
// the ingestion pipeline and the UI's contact-tap path.
type Resolver struct {
	store  *store.Store
	region string
	group  singleflight.Group
	logger *slog.Logger
}

// NewResolver creates a resolver for the given default region (ISO country
// code, e.g. "US" or "IN").
func NewResolver(st *store.Store, region string) *Resolver {
	return &Resolver{
		store:  st,
		region: region,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger.
func (r *Resolver) WithLogger(logger *slog.Logger) *Resolver {
	r.logger = logger
	return r
}

// Key computes the canonical identity key and sender type for a raw address
// without touching the store.
func (r *Resolver) Key(rawAddress string) (string, store.SenderType) {
	trimmed := TrimSenderID(strings.TrimSpace(rawAddress))
	if IsPhoneAddress(trimmed) {
		return Normalize(trimmed, r.region), store.SenderTypeContact
	}
	return trimmed, store.SenderTypeBusiness
}

// Resolve returns the existing sender for a raw address, creating one on
// first contact. Callers racing on the same canonical key are collapsed via
// singleflight in front of a transactional upsert, so duplicate rows cannot
// be created.
func (r *Resolver) Resolve(ctx context.Context, rawAddress string) (*store.Sender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, senderType := r.Key(rawAddress)
	if key == "" {
		return nil, fmt.Errorf("empty sender address %q", rawAddress)
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.store.EnsureSender(key, rawAddress, senderType)
	})
	if err != nil {
		return nil, fmt.Errorf("resolve sender %q: %w", rawAddress, err)
	}
	return v.(*store.Sender), nil
}

// ResolveContactTap is the UI-triggered resolution path: the user tapped an
// address that may not have a sender record yet. Same atomic unit as Resolve.
func (r *Resolver) ResolveContactTap(ctx context.Context, rawAddress string) (*store.Sender, error) {
	sender, err := r.Resolve(ctx, rawAddress)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("resolved contact tap", "address", rawAddress, "sender_id", sender.ID)
	return sender, nil
}

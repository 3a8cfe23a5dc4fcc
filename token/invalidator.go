package token

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hubfold/tokend/events"
	"github.com/hubfold/tokend/logger"
)

// Invalidator performs bulk revocation of a user's tokens, e.g. on
// account disable or deletion. Surrounding systems observe the pass
// through the event bus.
type Invalidator struct {
	provider *Provider
	bus      *events.Bus
	log      logger.Logger
}

// NewInvalidator creates an invalidator over the given provider
func NewInvalidator(provider *Provider, bus *events.Bus, log logger.Logger) *Invalidator {
	return &Invalidator{
		provider: provider,
		bus:      bus,
		log:      log,
	}
}

// InvalidateAllForUser revokes every token the user owns. A failure on
// one token does not stop the pass; all failures are collected and
// returned together, and the finished event fires regardless so
// observers are never left waiting.
func (i *Invalidator) InvalidateAllForUser(ctx context.Context, uid string) error {
	i.bus.Publish(events.InvalidationStarted{UID: uid})
	defer i.bus.Publish(events.InvalidationFinished{UID: uid})

	tokens, err := i.provider.GetTokensByUser(ctx, uid)
	if err != nil {
		return err
	}

	var merr *multierror.Error
	for _, t := range tokens {
		if err := i.provider.InvalidateTokenByID(ctx, uid, t.ID); err != nil {
			i.log.Error("failed to revoke token during bulk invalidation",
				logger.String("uid", uid),
				logger.String("token_id", t.ID),
				logger.Err(err))
			merr = multierror.Append(merr, err)
		}
	}

	i.log.Info("bulk invalidation finished",
		logger.String("uid", uid),
		logger.Int("tokens", len(tokens)))
	return merr.ErrorOrNil()
}

// InvalidateLastUsedBefore revokes the user's tokens idle since before
// the given unix timestamp and reports how many were removed.
func (i *Invalidator) InvalidateLastUsedBefore(ctx context.Context, uid string, before int64) (int, error) {
	i.bus.Publish(events.InvalidationStarted{UID: uid})
	defer i.bus.Publish(events.InvalidationFinished{UID: uid})

	deleted, err := i.provider.InvalidateLastUsedBefore(ctx, uid, time.Unix(before, 0))
	if err != nil {
		return deleted, err
	}
	i.log.Info("idle-token invalidation finished",
		logger.String("uid", uid),
		logger.Int("deleted", deleted))
	return deleted, nil
}

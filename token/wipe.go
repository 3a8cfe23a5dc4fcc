package token

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/hubfold/tokend/events"
	"github.com/hubfold/tokend/logger"
)

// RemoteWipe drives the device wipe protocol. Marking flips a token's
// kind so the next use by the device is answered with a wipe signal;
// Start and Finish are the device's acknowledgements, reported through
// the event bus. The token is only revoked once the device confirms.
type RemoteWipe struct {
	provider *Provider
	bus      *events.Bus
	log      logger.Logger
}

// NewRemoteWipe creates a remote wipe coordinator
func NewRemoteWipe(provider *Provider, bus *events.Bus, log logger.Logger) *RemoteWipe {
	return &RemoteWipe{
		provider: provider,
		bus:      bus,
		log:      log,
	}
}

// MarkTokenForWipe flags a single token. Variants that cannot be wiped
// are rejected with ErrInvalidToken.
func (w *RemoteWipe) MarkTokenForWipe(ctx context.Context, t Token) error {
	wipeable, ok := t.(Wipeable)
	if !ok {
		return ErrInvalidToken
	}
	dt, ok := wipeable.(*DeviceToken)
	if !ok {
		return ErrInvalidToken
	}

	wipeable.Wipe()
	if err := w.provider.UpdateToken(ctx, dt); err != nil {
		return err
	}
	w.log.Info("token marked for remote wipe",
		logger.String("uid", dt.UID),
		logger.String("token_id", dt.ID))
	return nil
}

// MarkAllTokensForWipe flags every wipeable token the user owns.
// Returns true when at least one token was flagged. Failures on
// individual tokens are collected; the rest of the pass continues.
func (w *RemoteWipe) MarkAllTokensForWipe(ctx context.Context, uid string) (bool, error) {
	tokens, err := w.provider.GetTokensByUser(ctx, uid)
	if err != nil {
		return false, err
	}

	marked := false
	var merr *multierror.Error
	for _, t := range tokens {
		if t.Kind == KindWipe {
			continue
		}
		if err := w.MarkTokenForWipe(ctx, t); err != nil {
			if errors.Is(err, ErrInvalidToken) {
				continue
			}
			merr = multierror.Append(merr, err)
			continue
		}
		marked = true
	}
	return marked, merr.ErrorOrNil()
}

// Start records that the device presenting rawToken has acknowledged
// the wipe request and begun wiping. Returns true when the token was
// indeed wipe-flagged.
func (w *RemoteWipe) Start(ctx context.Context, rawToken string) (bool, error) {
	t, err := w.getWipeToken(ctx, rawToken)
	if err != nil || t == nil {
		return false, err
	}

	w.bus.Publish(events.WipeStarted{UID: t.GetUID(), TokenID: t.GetID()})
	w.log.Info("remote wipe started",
		logger.String("uid", t.GetUID()),
		logger.String("token_id", t.GetID()))
	return true, nil
}

// Finish records that the device completed its wipe and revokes the
// token. Returns true when the token was indeed wipe-flagged.
func (w *RemoteWipe) Finish(ctx context.Context, rawToken string) (bool, error) {
	t, err := w.getWipeToken(ctx, rawToken)
	if err != nil || t == nil {
		return false, err
	}

	if err := w.provider.InvalidateToken(ctx, rawToken); err != nil {
		return false, err
	}

	w.bus.Publish(events.WipeFinished{UID: t.GetUID(), TokenID: t.GetID()})
	w.log.Info("remote wipe finished",
		logger.String("uid", t.GetUID()),
		logger.String("token_id", t.GetID()))
	return true, nil
}

// getWipeToken resolves a raw token and returns it only when it is
// wipe-flagged. Expired wipe tokens still count; the device must be
// able to confirm a wipe that outlived the token's own expiry.
func (w *RemoteWipe) getWipeToken(ctx context.Context, rawToken string) (Token, error) {
	t, err := w.provider.GetToken(ctx, rawToken)
	if err != nil {
		var expErr *ExpiredTokenError
		if errors.As(err, &expErr) {
			t, _ = expErr.Token.(*DeviceToken)
		} else if errors.Is(err, ErrInvalidToken) {
			return nil, nil
		} else {
			return nil, err
		}
	}
	if t == nil || t.Kind != KindWipe {
		return nil, nil
	}
	return t, nil
}

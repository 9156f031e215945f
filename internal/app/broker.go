package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careloop/signaling/internal/core"
	"github.com/careloop/signaling/internal/domain"
)

const credentialKeyPrefix = "media:token:"

// CredentialBroker hands out media-channel credentials. The cache key is the
// channel name alone: every participant of a channel shares one credential,
// so the TTL must cover the longest expected call. Never called under a
// registry or call-manager lock; cache and signer are slow I/O.
type CredentialBroker struct {
	Cache   core.TokenCache
	Signer  core.CredentialSigner
	Enabled bool
}

func NewCredentialBroker(cache core.TokenCache, signer core.CredentialSigner, enabled bool) *CredentialBroker {
	return &CredentialBroker{Cache: cache, Signer: signer, Enabled: enabled}
}

// GetOrCreate returns the cached credential for the channel, or signs and
// caches a new one with the given TTL. With issuance disabled it returns an
// empty credential, for deployments where the conferencing SDK runs in
// open-access mode.
func (b *CredentialBroker) GetOrCreate(ctx context.Context, channel string, identity domain.UserID, ttl time.Duration) (string, error) {
	if !b.Enabled {
		return "", nil
	}

	key := credentialKeyPrefix + channel
	if cached, found, err := b.Cache.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("module", "app.broker").Str("channel", channel).
			Msg("token cache read failed, signing fresh")
	} else if found {
		return cached, nil
	}

	cred, err := b.Signer.Sign(channel, identity, ttl)
	if err != nil {
		return "", fmt.Errorf("sign credential for %s: %w", channel, err)
	}
	if err := b.Cache.Set(ctx, key, cred, ttl); err != nil {
		// The credential is still valid; the next request just re-signs.
		log.Warn().Err(err).Str("module", "app.broker").Str("channel", channel).
			Msg("token cache write failed")
	}
	log.Info().Str("module", "app.broker").Str("channel", channel).
		Int64("identity", int64(identity)).Msg("issued media credential")
	return cred, nil
}

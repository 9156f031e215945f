// Package agora signs media-channel credentials in the conferencing
// provider's house format: an HMAC-SHA256 over app id, channel, numeric uid
// and expiry, base64-wrapped together with the signed fields.
package agora

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/careloop/signaling/internal/domain"
)

// Uids must fit the provider's valid range; user ids are folded into it.
const uidRange = 1_000_000

var ErrNotConfigured = errors.New("agora app id and certificate are required")

type Signer struct {
	appID       string
	certificate string
}

func NewSigner(appID, certificate string) (*Signer, error) {
	if appID == "" || certificate == "" {
		return nil, ErrNotConfigured
	}
	return &Signer{appID: appID, certificate: certificate}, nil
}

// AppID is handed to clients alongside the credential; they need both to
// join a channel.
func (s *Signer) AppID() string { return s.appID }

// Sign produces a credential valid for any participant of the channel until
// the expiry. The uid is derived from the requesting identity but the
// credential itself is not identity-bound.
func (s *Signer) Sign(channel string, identity domain.UserID, ttl time.Duration) (string, error) {
	if channel == "" {
		return "", errors.New("channel name is required")
	}
	uid := uint32(identity % uidRange)
	expireTs := time.Now().Add(ttl).Unix()

	message := fmt.Sprintf("%s:%s:%d:%d", s.appID, channel, uid, expireTs)
	mac := hmac.New(sha256.New, []byte(s.certificate))
	mac.Write([]byte(message))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	token := fmt.Sprintf("%s:%s", message, signature)
	return base64.StdEncoding.EncodeToString([]byte(token)), nil
}

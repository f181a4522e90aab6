package media

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
)

const signedURLTTL = 15 * time.Minute

var ErrValidation = errs.Validation("avatar_key", "object key is required")

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Signer turns stored avatar object keys into short-lived download links.
type Signer struct {
	storage Presigner
	ttl     time.Duration
}

func NewSigner(storage Presigner, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = signedURLTTL
	}
	return &Signer{storage: storage, ttl: ttl}
}

// AvatarURL returns "" for an empty key. Keys that already look like absolute
// URLs are passed through unchanged.
func (s *Signer) AvatarURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	if strings.HasPrefix(key, "https://") || strings.HasPrefix(key, "http://") {
		return key, nil
	}
	if s == nil || s.storage == nil {
		return "", errors.New("avatar signer is not configured")
	}
	return s.storage.PresignGet(ctx, key, s.ttl)
}

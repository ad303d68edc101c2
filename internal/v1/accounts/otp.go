package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/azizhankaya/thiscrow/internal/v1/logging"
)

const (
	otpLength = 10
	otpTTL    = 5 * time.Minute
	sweepTick = 5 * time.Minute
)

const otpAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// PendingRegistration is held against an OTP token until verify_email
// consumes it, at which point an Account is created from these fields.
type PendingRegistration struct {
	Username     string
	Name         string
	Email        string
	PasswordHash string
	IssuedAt     time.Time
}

// OTPRegistry is the in-memory map from one-time registration tokens to
// pending account data, swept every 5 minutes. Uses the same xsync
// sharded map as the Presence Registry.
type OTPRegistry struct {
	entries *xsync.Map[string, PendingRegistration]
}

// NewOTPRegistry builds an empty OTP registry.
func NewOTPRegistry() *OTPRegistry {
	return &OTPRegistry{entries: xsync.NewMap[string, PendingRegistration]()}
}

// Issue mints a fresh 10-character alphanumeric token for the given
// pending registration and stores it with the current time as issued_at.
func (r *OTPRegistry) Issue(pending PendingRegistration) (string, error) {
	token, err := randomToken(otpLength)
	if err != nil {
		return "", err
	}
	pending.IssuedAt = time.Now().UTC()
	r.entries.Store(token, pending)
	return token, nil
}

// Consume looks up and removes the pending registration for token. Returns
// ok=false if the token is unknown or has expired past otpTTL.
func (r *OTPRegistry) Consume(token string) (PendingRegistration, bool) {
	pending, ok := r.entries.LoadAndDelete(token)
	if !ok {
		return PendingRegistration{}, false
	}
	if time.Since(pending.IssuedAt) > otpTTL {
		return PendingRegistration{}, false
	}
	return pending, true
}

// RunSweeper evicts expired entries every 5 minutes until ctx is
// cancelled. Intended to be started once as a long-lived goroutine at
// process boot.
func (r *OTPRegistry) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *OTPRegistry) sweep() {
	now := time.Now().UTC()
	var expired []string
	r.entries.Range(func(token string, pending PendingRegistration) bool {
		if now.Sub(pending.IssuedAt) > otpTTL {
			expired = append(expired, token)
		}
		return true
	})
	for _, token := range expired {
		r.entries.Delete(token)
	}
	if len(expired) > 0 {
		logging.Info(context.Background(), fmt.Sprintf("OTP sweeper evicted %d expired entries", len(expired)))
	}
}

func randomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate OTP token: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = otpAlphabet[int(b)%len(otpAlphabet)]
	}
	return string(out), nil
}

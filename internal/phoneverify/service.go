// Package phoneverify issues and checks one-time SMS codes for phone number ownership.
package phoneverify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

var (
	ErrCodeExpired     = errors.New("verification code expired or was never sent")
	ErrCodeMismatch    = errors.New("verification code is incorrect")
	ErrTooManyAttempts = errors.New("too many incorrect attempts, request a new code")
	ErrNoCode          = errors.New("no code stored")
)

const codeDigits = 6

// Entry is what a Store keeps per (user, phone) pair.
type Entry struct {
	CodeHash string
	Attempts int
}

// Store persists pending codes with a time-to-live.
type Store interface {
	Put(ctx context.Context, key, codeHash string, ttl time.Duration) error
	Get(ctx context.Context, key string) (Entry, error)
	IncrAttempts(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

// Sender delivers a code to a phone number.
type Sender interface {
	SendCode(ctx context.Context, phone, code string) error
}

type Options struct {
	TTL         time.Duration
	MaxAttempts int
}

type Service struct {
	store    Store
	sender   Sender
	opts     Options
	generate func() (string, error)
}

func NewService(store Store, sender Sender, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Service{store: store, sender: sender, opts: opts, generate: randomCode}
}

// TTL is how long an issued code stays valid.
func (s *Service) TTL() time.Duration {
	return s.opts.TTL
}

// Send stores a fresh code for (userID, phone), replacing any earlier one, and delivers it.
func (s *Service) Send(ctx context.Context, userID uint, phone string) error {
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generating code: %w", err)
	}
	key := codeKey(userID, phone)
	if err := s.store.Put(ctx, key, hashCode(code), s.opts.TTL); err != nil {
		return fmt.Errorf("storing code: %w", err)
	}
	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		_ = s.store.Delete(ctx, key)
		return fmt.Errorf("sending code: %w", err)
	}
	return nil
}

// Verify checks code against the pending entry. A correct code consumes the entry.
func (s *Service) Verify(ctx context.Context, userID uint, phone, code string) error {
	key := codeKey(userID, phone)
	entry, err := s.store.Get(ctx, key)
	if errors.Is(err, ErrNoCode) {
		return ErrCodeExpired
	}
	if err != nil {
		return err
	}
	if entry.Attempts >= s.opts.MaxAttempts {
		return ErrTooManyAttempts
	}

	if subtle.ConstantTimeCompare([]byte(entry.CodeHash), []byte(hashCode(code))) != 1 {
		attempts, err := s.store.IncrAttempts(ctx, key)
		if errors.Is(err, ErrNoCode) {
			// Expired after it was read.
			return ErrCodeExpired
		}
		if err != nil {
			return err
		}
		if attempts >= s.opts.MaxAttempts {
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}
	return s.store.Delete(ctx, key)
}

func codeKey(userID uint, phone string) string {
	return fmt.Sprintf("phone_code:%d:%s", userID, phone)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

// LogSender writes codes to the log instead of a carrier. SMS delivery through a
// provider is deployed separately.
type LogSender struct {
	Logger *slog.Logger
	// ExposeCode logs the code itself; only for local development.
	ExposeCode bool
}

func (s LogSender) SendCode(ctx context.Context, phone, code string) error {
	attrs := []any{"phone", maskPhone(phone)}
	if s.ExposeCode {
		attrs = append(attrs, "code", code)
	}
	s.Logger.InfoContext(ctx, "phone verification code issued", attrs...)
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}

// Package verification gates registration behind an attempt-limited,
// time-boxed email code. Codes live in the shared expiring key-value
// store so any instance can check what another issued.
package verification

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dohyunkim-dev/authgate/internal/cache"
	"github.com/dohyunkim-dev/authgate/internal/email"
	"github.com/dohyunkim-dev/authgate/internal/observability/logger"
	"github.com/dohyunkim-dev/authgate/internal/util"
)

const (
	// CodeTTL is the shared expiry window for the code and its attempt
	// counter.
	CodeTTL = 300 * time.Second

	// VerifiedTTL bounds how long a successful verification stays usable
	// for registration.
	VerifiedTTL = 600 * time.Second

	// AttemptLimit is the number of wrong submissions a code survives.
	AttemptLimit = 5

	codeLength = 6
)

func codeKey(email string) string     { return "email_code:" + email }
func attemptsKey(email string) string { return "email_attempts:" + email }
func verifiedKey(email string) string { return "verified_email:" + email }

// CheckStatus classifies the outcome of a code check.
type CheckStatus int

const (
	// CheckOK: code matched; the session is consumed.
	CheckOK CheckStatus = iota
	// CheckSessionGone: no active session (never issued, fully expired,
	// or already consumed).
	CheckSessionGone
	// CheckExhausted: the attempt budget ran out.
	CheckExhausted
	// CheckMismatch: wrong code; one attempt was spent.
	CheckMismatch
)

// CodeStore issues and checks verification codes.
type CodeStore struct {
	kv     cache.Client
	sender email.Sender
	log    *zap.Logger
}

func NewCodeStore(kv cache.Client, sender email.Sender) *CodeStore {
	return &CodeStore{kv: kv, sender: sender, log: logger.Named("verification")}
}

// Issue generates a fresh 6-digit code for the address, resets the
// attempt budget and emails the code. Any prior in-flight code for the
// same address is overwritten. Returns the code TTL in seconds.
func (s *CodeStore) Issue(ctx context.Context, addr string) (int, error) {
	code, err := generateCode()
	if err != nil {
		return 0, err
	}

	if err := s.kv.Set(ctx, codeKey(addr), code, CodeTTL); err != nil {
		return 0, err
	}
	if err := s.kv.Set(ctx, attemptsKey(addr), strconv.Itoa(AttemptLimit), CodeTTL); err != nil {
		return 0, err
	}

	subject := "Your verification code"
	text := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(CodeTTL.Minutes()))
	html := fmt.Sprintf("<p>Your verification code is <b>%s</b>.</p><p>It expires in %d minutes.</p>", code, int(CodeTTL.Minutes()))
	if err := s.sender.Send(addr, subject, html, text); err != nil {
		return 0, err
	}

	s.log.Info("verification code issued", zap.String("email", util.MaskEmail(addr)))
	return int(CodeTTL.Seconds()), nil
}

// Check validates a submitted code. A mismatch spends one attempt via an
// atomic store-side decrement, so concurrent submissions for the same
// address cannot double-spend. A match deletes the code and the counter:
// codes are single-use.
//
// remaining is meaningful for CheckMismatch and CheckExhausted and never
// negative.
func (s *CodeStore) Check(ctx context.Context, addr, submitted string) (status CheckStatus, remaining int, err error) {
	attempts, err := s.kv.Get(ctx, attemptsKey(addr))
	if cache.IsNotFound(err) {
		return CheckSessionGone, 0, nil
	}
	if err != nil {
		return CheckSessionGone, 0, err
	}

	left, err := strconv.Atoi(attempts)
	if err != nil {
		return CheckSessionGone, 0, fmt.Errorf("verification: corrupt attempts counter: %w", err)
	}
	if left <= 0 {
		return CheckExhausted, 0, nil
	}

	stored, err := s.kv.Get(ctx, codeKey(addr))
	if err != nil && !cache.IsNotFound(err) {
		return CheckSessionGone, 0, err
	}

	if cache.IsNotFound(err) || submitted != stored {
		n, derr := s.kv.Decr(ctx, attemptsKey(addr))
		if derr != nil {
			return CheckSessionGone, 0, derr
		}
		if n < 0 {
			n = 0
		}
		return CheckMismatch, int(n), nil
	}

	if err := s.kv.Delete(ctx, codeKey(addr)); err != nil {
		return CheckSessionGone, 0, err
	}
	if err := s.kv.Delete(ctx, attemptsKey(addr)); err != nil {
		return CheckSessionGone, 0, err
	}
	return CheckOK, 0, nil
}

// MarkVerified flags the address as verified for VerifiedTTL. Only called
// after a successful Check.
func (s *CodeStore) MarkVerified(ctx context.Context, addr string) error {
	return s.kv.Set(ctx, verifiedKey(addr), "true", VerifiedTTL)
}

// IsVerified reports whether the address holds an unexpired verified flag.
// Registration consults this before creating an account.
func (s *CodeStore) IsVerified(ctx context.Context, addr string) (bool, error) {
	v, err := s.kv.Get(ctx, verifiedKey(addr))
	if cache.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// generateCode draws 6 ASCII digits from crypto/rand.
func generateCode() (string, error) {
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, v := range b {
		out[i] = '0' + v%10
	}
	return string(out), nil
}

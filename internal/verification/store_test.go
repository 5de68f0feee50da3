package verification_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/dohyunkim-dev/authgate/internal/cache"
	"github.com/dohyunkim-dev/authgate/internal/verification"
)

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

// captureSender records outgoing mail and pulls the code out of the body.
type captureSender struct {
	to    string
	code  string
	fail  bool
	sends int
}

func (c *captureSender) Send(to, subject, htmlBody, textBody string) error {
	c.sends++
	if c.fail {
		return errors.New("smtp down")
	}
	c.to = to
	m := codeRe.FindStringSubmatch(textBody)
	if m != nil {
		c.code = m[1]
	}
	return nil
}

func newStore(t *testing.T) (*verification.CodeStore, *captureSender, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := cache.New(cache.Config{Driver: "redis", Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	sender := &captureSender{}
	return verification.NewCodeStore(kv, sender), sender, mr
}

func TestIssueSendsCodeWithTTL(t *testing.T) {
	store, sender, mr := newStore(t)
	ctx := context.Background()

	ttl, err := store.Issue(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ttl != 300 {
		t.Errorf("ttl = %d, want 300", ttl)
	}
	if sender.to != "alice@example.com" {
		t.Errorf("mail to = %q", sender.to)
	}
	if len(sender.code) != 6 {
		t.Fatalf("captured code = %q, want 6 digits", sender.code)
	}
	if got := mr.TTL("email_code:alice@example.com"); got != 300*time.Second {
		t.Errorf("code key ttl = %v", got)
	}
	if got := mr.TTL("email_attempts:alice@example.com"); got != 300*time.Second {
		t.Errorf("attempts key ttl = %v", got)
	}
}

func TestIssueFailsWhenDeliveryFails(t *testing.T) {
	store, sender, _ := newStore(t)
	sender.fail = true
	if _, err := store.Issue(context.Background(), "alice@example.com"); err == nil {
		t.Fatal("want error when the mail cannot be sent")
	}
}

func TestCheckMismatchThenMatchThenGone(t *testing.T) {
	store, sender, _ := newStore(t)
	ctx := context.Background()
	addr := "alice@example.com"

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("issue: %v", err)
	}

	wrong := "000000"
	if wrong == sender.code {
		wrong = "000001"
	}
	st, remaining, err := store.Check(ctx, addr, wrong)
	if err != nil {
		t.Fatalf("check wrong: %v", err)
	}
	if st != verification.CheckMismatch {
		t.Fatalf("status = %v, want CheckMismatch", st)
	}
	if remaining != 4 {
		t.Errorf("remaining = %d, want 4", remaining)
	}

	st, _, err = store.Check(ctx, addr, sender.code)
	if err != nil {
		t.Fatalf("check right: %v", err)
	}
	if st != verification.CheckOK {
		t.Fatalf("status = %v, want CheckOK", st)
	}

	// Codes are single-use: the same code is dead now.
	st, _, err = store.Check(ctx, addr, sender.code)
	if err != nil {
		t.Fatalf("check replay: %v", err)
	}
	if st != verification.CheckSessionGone {
		t.Fatalf("status = %v, want CheckSessionGone after consume", st)
	}
}

func TestCheckExhaustsAttemptBudget(t *testing.T) {
	store, sender, _ := newStore(t)
	ctx := context.Background()
	addr := "bob@example.com"

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrong := "000000"
	if wrong == sender.code {
		wrong = "000001"
	}

	for want := verification.AttemptLimit - 1; want >= 0; want-- {
		st, remaining, err := store.Check(ctx, addr, wrong)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if st != verification.CheckMismatch {
			t.Fatalf("status = %v, want CheckMismatch", st)
		}
		if remaining != want {
			t.Errorf("remaining = %d, want %d", remaining, want)
		}
	}

	// Budget spent; even the right code is refused now.
	st, _, err := store.Check(ctx, addr, sender.code)
	if err != nil {
		t.Fatalf("check after exhaustion: %v", err)
	}
	if st != verification.CheckExhausted {
		t.Fatalf("status = %v, want CheckExhausted", st)
	}
}

func TestCheckAfterExpiry(t *testing.T) {
	store, sender, mr := newStore(t)
	ctx := context.Background()
	addr := "carol@example.com"

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("issue: %v", err)
	}
	mr.FastForward(verification.CodeTTL + time.Second)

	st, _, err := store.Check(ctx, addr, sender.code)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if st != verification.CheckSessionGone {
		t.Fatalf("status = %v, want CheckSessionGone after expiry", st)
	}
}

func TestReissueResetsAttempts(t *testing.T) {
	store, sender, _ := newStore(t)
	ctx := context.Background()
	addr := "dave@example.com"

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrong := "000000"
	if wrong == sender.code {
		wrong = "000001"
	}
	if _, _, err := store.Check(ctx, addr, wrong); err != nil {
		t.Fatalf("check: %v", err)
	}

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if wrong == sender.code {
		wrong = "000002"
	}
	_, remaining, err := store.Check(ctx, addr, wrong)
	if err != nil {
		t.Fatalf("check after reissue: %v", err)
	}
	if remaining != verification.AttemptLimit-1 {
		t.Errorf("remaining = %d, want %d", remaining, verification.AttemptLimit-1)
	}
}

func TestVerifiedFlagLifecycle(t *testing.T) {
	store, _, mr := newStore(t)
	ctx := context.Background()
	addr := "eve@example.com"

	ok, err := store.IsVerified(ctx, addr)
	if err != nil {
		t.Fatalf("is verified: %v", err)
	}
	if ok {
		t.Fatal("verified before any check")
	}

	if err := store.MarkVerified(ctx, addr); err != nil {
		t.Fatalf("mark: %v", err)
	}
	ok, err = store.IsVerified(ctx, addr)
	if err != nil || !ok {
		t.Fatalf("verified = %v, err = %v; want true", ok, err)
	}

	mr.FastForward(verification.VerifiedTTL + time.Second)
	ok, err = store.IsVerified(ctx, addr)
	if err != nil {
		t.Fatalf("is verified after expiry: %v", err)
	}
	if ok {
		t.Fatal("verified flag survived its TTL")
	}
}

// The memory backend must behave the same for the flows dev setups run.
func TestMemoryBackendCheckFlow(t *testing.T) {
	kv, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	sender := &captureSender{}
	store := verification.NewCodeStore(kv, sender)
	ctx := context.Background()
	addr := "mem@example.com"

	if _, err := store.Issue(ctx, addr); err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrong := "000000"
	if wrong == sender.code {
		wrong = "000001"
	}
	st, remaining, err := store.Check(ctx, addr, wrong)
	if err != nil || st != verification.CheckMismatch || remaining != 4 {
		t.Fatalf("wrong code: status=%v remaining=%d err=%v", st, remaining, err)
	}
	st, _, err = store.Check(ctx, addr, sender.code)
	if err != nil || st != verification.CheckOK {
		t.Fatalf("right code: status=%v err=%v", st, err)
	}
}

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/dohyunkim-dev/authgate/internal/cache"
	"github.com/dohyunkim-dev/authgate/internal/http/handlers"
	"github.com/dohyunkim-dev/authgate/internal/keycloak"
	"github.com/dohyunkim-dev/authgate/internal/provision"
	"github.com/dohyunkim-dev/authgate/internal/verification"
)

var codeRe = regexp.MustCompile(`\b(\d{6})\b`)

type captureSender struct {
	code string
	fail bool
}

func (c *captureSender) Send(to, subject, htmlBody, textBody string) error {
	if c.fail {
		return errors.New("smtp down")
	}
	if m := codeRe.FindStringSubmatch(textBody); m != nil {
		c.code = m[1]
	}
	return nil
}

// registerAdmin is the minimal AdminAPI fake the register handler needs.
type registerAdmin struct {
	created   []keycloak.UserRepresentation
	createErr error
}

func (f *registerAdmin) CreateUser(ctx context.Context, u keycloak.UserRepresentation) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, u)
	return "uid-1", nil
}

func (f *registerAdmin) FindUsersByEmail(ctx context.Context, email string) ([]keycloak.UserRepresentation, error) {
	return nil, nil
}

func (f *registerAdmin) FindUsersByUsername(ctx context.Context, username string) ([]keycloak.UserRepresentation, error) {
	return nil, nil
}

func (f *registerAdmin) DeleteUser(ctx context.Context, id string) error { return nil }

func (f *registerAdmin) RealmRole(ctx context.Context, name string) (*keycloak.Role, error) {
	return &keycloak.Role{ID: "rid", Name: name}, nil
}

func (f *registerAdmin) AssignRealmRole(ctx context.Context, userID string, role *keycloak.Role) error {
	return nil
}

func postJSON(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func newCodeStore(t *testing.T) (*verification.CodeStore, *captureSender) {
	t.Helper()
	kv, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	sender := &captureSender{}
	return verification.NewCodeStore(kv, sender), sender
}

func TestSendCodeHandler(t *testing.T) {
	codes, sender := newCodeStore(t)
	h := handlers.NewSendCodeHandler(codes)

	rec := postJSON(t, h, `{"email":"Alice@Example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TTLSeconds int `json:"ttl_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TTLSeconds != 300 {
		t.Errorf("ttl_seconds = %d", resp.TTLSeconds)
	}
	if len(sender.code) != 6 {
		t.Errorf("no code mailed")
	}
}

func TestSendCodeHandlerDeliveryFailure(t *testing.T) {
	codes, sender := newCodeStore(t)
	sender.fail = true
	h := handlers.NewSendCodeHandler(codes)

	rec := postJSON(t, h, `{"email":"alice@example.com"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Error != "CODE_DELIVERY_FAILED" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestSendCodeHandlerMissingEmail(t *testing.T) {
	codes, _ := newCodeStore(t)
	rec := postJSON(t, handlers.NewSendCodeHandler(codes), `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyCodeHandlerFlow(t *testing.T) {
	codes, sender := newCodeStore(t)
	send := handlers.NewSendCodeHandler(codes)
	verify := handlers.NewVerifyCodeHandler(codes)

	if rec := postJSON(t, send, `{"email":"alice@example.com"}`); rec.Code != http.StatusOK {
		t.Fatalf("send: %d", rec.Code)
	}

	wrong := "000000"
	if wrong == sender.code {
		wrong = "000001"
	}
	rec := postJSON(t, verify, `{"email":"alice@example.com","code":"`+wrong+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d", rec.Code)
	}
	e := decodeEnvelope(t, rec)
	if e.Error != "INVALID_CODE" || e.AttemptsLeft == nil || *e.AttemptsLeft != 4 {
		t.Errorf("envelope = %+v", e)
	}

	rec = postJSON(t, verify, `{"email":"alice@example.com","code":"`+sender.code+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("right code status = %d: %s", rec.Code, rec.Body.String())
	}

	// The session is consumed; a replay reports it gone.
	rec = postJSON(t, verify, `{"email":"alice@example.com","code":"`+sender.code+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay status = %d", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Error != "SESSION_INVALID_OR_EXPIRED" {
		t.Errorf("replay error = %q", e.Error)
	}
}

func TestVerifyCodeHandlerNoSession(t *testing.T) {
	codes, _ := newCodeStore(t)
	rec := postJSON(t, handlers.NewVerifyCodeHandler(codes), `{"email":"ghost@example.com","code":"123456"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Error != "SESSION_INVALID_OR_EXPIRED" {
		t.Errorf("error = %q", e.Error)
	}
}

func TestRegisterHandlerRequiresVerifiedEmail(t *testing.T) {
	codes, _ := newCodeStore(t)
	admin := &registerAdmin{}
	h := handlers.NewRegisterHandler(codes, provision.New(admin))

	body := `{"username":"alice","email":"alice@example.com","password":"pw","first_name":"Alice","last_name":"Kim"}`
	rec := postJSON(t, h, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Error != "EMAIL_NOT_VERIFIED" {
		t.Errorf("error = %q", e.Error)
	}
	if len(admin.created) != 0 {
		t.Error("account created without verification")
	}
}

func TestRegisterHandlerAfterVerification(t *testing.T) {
	codes, _ := newCodeStore(t)
	if err := codes.MarkVerified(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	admin := &registerAdmin{}
	h := handlers.NewRegisterHandler(codes, provision.New(admin))

	body := `{"username":"alice","email":"alice@example.com","password":"pw"}`
	rec := postJSON(t, h, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.UserID != "uid-1" {
		t.Errorf("user_id = %q", resp.UserID)
	}
	if len(admin.created) != 1 || admin.created[0].Username != "alice" {
		t.Errorf("created = %+v", admin.created)
	}
}

func TestRegisterHandlerCreationConflict(t *testing.T) {
	codes, _ := newCodeStore(t)
	if err := codes.MarkVerified(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	admin := &registerAdmin{createErr: errors.New("409 from upstream")}
	h := handlers.NewRegisterHandler(codes, provision.New(admin))

	rec := postJSON(t, h, `{"username":"alice","email":"alice@example.com","password":"pw"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if e := decodeEnvelope(t, rec); e.Error != "USER_ALREADY_EXISTS_OR_CREATION_FAILED" {
		t.Errorf("error = %q", e.Error)
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dohyunkim-dev/authgate/internal/provision"
	"github.com/dohyunkim-dev/authgate/internal/verification"
)

type emailRequest struct {
	Email string `json:"email"`
}

type codeVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NewSendCodeHandler issues a verification code for the address and emails
// it. Reissuing replaces any in-flight code.
func NewSendCodeHandler(codes *verification.CodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if !ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" {
			WriteError(w, http.StatusBadRequest, "missing_email", "")
			return
		}

		ttl, err := codes.Issue(r.Context(), req.Email)
		if err != nil {
			WriteError(w, http.StatusBadGateway, "CODE_DELIVERY_FAILED", "")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"message":     fmt.Sprintf("A verification code has been sent to %s.", req.Email),
			"ttl_seconds": ttl,
		})
	}
}

// NewVerifyCodeHandler checks a submitted code and, on success, flips the
// verified flag consulted by registration.
func NewVerifyCodeHandler(codes *verification.CodeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req codeVerifyRequest
		if !ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Code == "" {
			WriteError(w, http.StatusBadRequest, "missing_fields", "")
			return
		}

		status, remaining, err := codes.Check(r.Context(), req.Email, req.Code)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		switch status {
		case verification.CheckOK:
			if err := codes.MarkVerified(r.Context(), req.Email); err != nil {
				WriteError(w, http.StatusInternalServerError, "internal_error", "")
				return
			}
			WriteJSON(w, http.StatusOK, map[string]any{"message": "Email verification successful"})
		case verification.CheckSessionGone:
			WriteError(w, http.StatusBadRequest, "SESSION_INVALID_OR_EXPIRED",
				"The verification session is invalid or has expired.")
		case verification.CheckExhausted:
			WriteCodeError(w, 0)
		default:
			WriteCodeError(w, remaining)
		}
	}
}

// NewRegisterHandler creates the account once the email holds a verified
// flag. 403 otherwise.
func NewRegisterHandler(codes *verification.CodeStore, provisioner *provision.Provisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Username == "" || req.Email == "" || req.Password == "" {
			WriteError(w, http.StatusBadRequest, "missing_fields", "")
			return
		}

		verified, err := codes.IsVerified(r.Context(), req.Email)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}
		if !verified {
			WriteError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "")
			return
		}

		userID, _, err := provisioner.Register(r.Context(), req.Username, req.Email, req.Password, req.FirstName, req.LastName)
		if err != nil {
			WriteError(w, http.StatusConflict, "USER_ALREADY_EXISTS_OR_CREATION_FAILED", "")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"message": "Registration successful",
			"user_id": userID,
		})
	}
}

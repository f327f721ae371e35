package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/middleware"
	"github.com/go-playground/validator/v10"
)

type handler struct {
	engine   *accountcore.Engine
	logger   *slog.Logger
	validate *validator.Validate
}

/*
====================================
REQUESTS
====================================
*/

type signupRequest struct {
	Name     string `json:"name" validate:"max=200"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,max=64"`
}

func (req *signupRequest) normalize() {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
	OTP   string `json:"otp" validate:"required,max=16"`
}

func (req *verifyOTPRequest) normalize() {
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email,max=320"`
}

func (req *emailRequest) normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required"`
}

func (req *loginRequest) normalize() {
	req.Email = strings.TrimSpace(req.Email)
}

type resetCompleteRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

/*
====================================
RESPONSES
====================================
*/

type signupResponse struct {
	Message   string                        `json:"message"`
	Account   accountcore.AccountView       `json:"account"`
	Challenge *accountcore.ChallengeReceipt `json:"challenge,omitempty"`
}

type sessionResponse struct {
	Account          accountcore.AccountView `json:"account"`
	Profile          any                     `json:"profile,omitempty"`
	SessionExpiresAt time.Time               `json:"session_expires_at"`
}

type messageResponse struct {
	Message string `json:"message"`
}

/*
====================================
HANDLERS
====================================
*/

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Signup(r.Context(), accountcore.SignupRequest{
		DisplayName: req.Name,
		Identity:    req.Email,
		Password:    req.Password,
		Role:        req.Role,
	})
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	if res.ChallengeResent {
		writeJSON(w, r, http.StatusOK, signupResponse{
			Message:   "OTP resent",
			Account:   res.Account,
			Challenge: res.Challenge,
		})
		return
	}
	writeJSON(w, r, http.StatusCreated, signupResponse{
		Message:   "account created, verification code sent",
		Account:   res.Account,
		Challenge: res.Challenge,
	})
}

func (h *handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(w, r, "verify_otp", err)
		return
	}

	http.SetCookie(w, h.engine.SessionCookie(res.Session))
	writeJSON(w, r, http.StatusOK, sessionResponse{
		Account:          res.Account,
		SessionExpiresAt: res.Session.ExpiresAt,
	})
}

func (h *handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	receipt, err := h.engine.ResendOTP(r.Context(), req.Email)
	if err != nil {
		h.fail(w, r, "resend_otp", err)
		return
	}
	writeJSON(w, r, http.StatusOK, receipt)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	http.SetCookie(w, h.engine.SessionCookie(res.Session))
	writeJSON(w, r, http.StatusOK, sessionResponse{
		Account:          res.Account,
		Profile:          res.Profile,
		SessionExpiresAt: res.Session.ExpiresAt,
	})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := h.engine.SessionFromRequest(r); token != "" {
		h.engine.Logout(r.Context(), token)
	}
	http.SetCookie(w, h.engine.ClearSessionCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.LogoutAll(r.Context(), h.engine.SessionFromRequest(r)); err != nil {
		h.fail(w, r, "logout_all", err)
		return
	}
	http.SetCookie(w, h.engine.ClearSessionCookie())
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.engine.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, accountcore.ErrAccountNotFound) {
		h.fail(w, r, "password_reset_request", err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, messageResponse{
		Message: "if an account exists for this email, a reset link has been sent",
	})
}

func (h *handler) completePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.engine.CompletePasswordReset(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, r, "password_reset_complete", err)
		return
	}
	http.SetCookie(w, h.engine.ClearSessionCookie())
	writeJSON(w, r, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.fail(w, r, "me", accountcore.ErrInvalidToken)
		return
	}
	writeJSON(w, r, http.StatusOK, claims)
}

func (h *handler) rejectSession(w http.ResponseWriter, r *http.Request, err error) {
	h.fail(w, r, "session_guard", err)
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/garderoba/internal/localstate"
	"github.com/erazemk/garderoba/internal/mirror"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/session"
)

// SessionKey is where a device's local state keeps its signed-in session.
const SessionKey = "garderoba_session"

// AuthHandler handles sign-up, sign-in and sign-out.
type AuthHandler struct {
	Sessions *session.Service
	Devices  localstate.Devices
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type verifyRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Sessions.SignUp(r.Context(), req.Email, req.Password, req.Username)
	switch {
	case errors.Is(err, session.ErrEmailTaken):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, model.ErrInvalidEmail), errors.Is(err, session.ErrUsernameRequired):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("sign-up failed", "email", req.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "System Error")
		return
	}

	jsonResponse(w, http.StatusCreated, user)
}

// Verify handles POST /api/auth/verify.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Purpose == "" {
		req.Purpose = model.PurposeSignup
	}

	user, err := h.Sessions.VerifyCode(r.Context(), req.Email, req.Code, req.Purpose)
	if errors.Is(err, session.ErrInvalidCode) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("code verification failed", "email", req.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "System Error")
		return
	}

	jsonResponse(w, http.StatusOK, user)
}

// Resend handles POST /api/auth/resend.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Purpose == "" {
		req.Purpose = model.PurposeSignup
	}

	err := h.Sessions.ResendCode(r.Context(), req.Email, req.Purpose)
	if errors.Is(err, session.ErrResendTooSoon) {
		jsonError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if err != nil {
		slog.Error("resending code failed", "email", req.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "System Error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "code sent"})
}

// Login handles POST /api/auth/login. The session is also kept in the
// calling device's local state.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	sess, err := h.Sessions.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, session.ErrInvalidCredentials):
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case errors.Is(err, session.ErrNotConfirmed):
		jsonError(w, http.StatusForbidden, err.Error())
		return
	case err != nil:
		slog.Error("login failed", "email", req.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	if data, err := json.Marshal(sess); err == nil {
		if err := h.Devices.Device(deviceID(r)).Set(r.Context(), SessionKey, string(data)); err != nil {
			slog.Warn("storing session locally", "email", req.Email, "error", err)
		}
	}

	jsonResponse(w, http.StatusOK, sess)
}

// Logout handles POST /api/auth/logout. It revokes the token and wipes the
// device's local state, keeping in-progress scans.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.Sessions.SignOut(r.Context(), claims); err != nil {
		slog.Error("sign-out failed", "email", claims.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "System Error")
		return
	}

	removed, err := localstate.ClearExcept(r.Context(), h.Devices.Device(deviceID(r)), mirror.KeyPrefix)
	if err != nil {
		slog.Error("clearing local state", "email", claims.Email, "error", err)
	}

	slog.Info("local state cleared", "email", claims.Email, "removed", removed)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.Sessions.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, session.ErrInvalidCredentials) {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}
	if err != nil {
		slog.Error("changing password failed", "email", claims.Email, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	slog.Info("user changed own password", "email", claims.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// Events handles GET /api/auth/events, streaming the caller's session events.
func (h *AuthHandler) Events(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	stream, err := startStream(w)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, cancel := h.Sessions.Subscribe(r.Context())
	defer cancel()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if err := stream.comment("keep-alive"); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Email != claims.Email {
				continue
			}
			if err := stream.send(string(e.Kind), e); err != nil {
				return
			}
		}
	}
}

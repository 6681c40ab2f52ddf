package handlers

import (
	"net/http"

	"github.com/repohub/repohub-backend/internal/services"
	"github.com/repohub/repohub-backend/pkg/clientip"
)

type AuthHandler struct {
	svc *services.AuthService
	res *Responder
}

func NewAuthHandler(svc *services.AuthService, res *Responder) *AuthHandler {
	return &AuthHandler{svc: svc, res: res}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type VerifyCodeRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type ResendRequest struct {
	Username string `json:"username"`
}

type RequestResetRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest accepts both "password" and "newPassword".
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	out, err := h.svc.Register(r.Context(), services.RegisterInput(req))
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusCreated, "Usuario registrado correctamente.", map[string]interface{}{
		"user":       out.User,
		"repository": out.Repository,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	out, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Código de verificación enviado.", map[string]interface{}{
		"login_id": out.LoginID,
		"two_fa":   out.TwoFA,
		"user":     out.User,
	})
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	out, err := h.svc.VerifyCode(r.Context(), req.Username, req.Code)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Inicio de sesión exitoso.", map[string]interface{}{
		"token":      out.Token,
		"expires_at": out.ExpiresAt,
		"user":       out.User,
	})
}

func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	if err := h.svc.ResendCode(r.Context(), req.Username, clientip.ForwardedClientIP(r)); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Si la cuenta existe, enviamos un nuevo código.", nil)
}

func (h *AuthHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	var req RequestResetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Si el correo está registrado, recibirás instrucciones para restablecer tu contraseña.", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	password := req.Password
	if password == "" {
		password = req.NewPassword
	}
	if err := h.svc.ResetPassword(r.Context(), req.Token, password); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Contraseña actualizada correctamente.", nil)
}

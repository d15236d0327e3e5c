package handler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"writingstuff/internal/auth/model"
	"writingstuff/internal/auth/service"
	"writingstuff/middleware"
	"writingstuff/pkg/apperror"
)

const maxAuthBody = 1 << 16

type AuthHandler struct {
	Service *service.AuthService
}

func NewAuthHandler(service *service.AuthService) *AuthHandler {
	return &AuthHandler{Service: service}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decode(w, r, &req, func() {
		req.Username = r.PostFormValue("username")
		req.Email = r.PostFormValue("email")
		req.Password = r.PostFormValue("password")
	}); err != nil {
		apperror.Write(w, err)
		return
	}

	account, err := h.Service.Register(r.Context(), req)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account.Response())
}

// Login accepts the JSON body or an OAuth2 password form where the email may
// be posted in the username field.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decode(w, r, &req, func() {
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		if req.Username == "" {
			req.Username = r.PostFormValue("email")
		}
	}); err != nil {
		apperror.Write(w, err)
		return
	}

	token, err := h.Service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	account, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account.Response())
}

// decode reads a JSON body into dst, or runs fromForm for form encodings.
func decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func()) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxAuthBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("invalid form body: %w", apperror.ErrInvalidArgument)
		}
		fromForm()
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return fmt.Errorf("invalid request body: %w", apperror.ErrInvalidArgument)
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

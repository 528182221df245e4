package server

import (
	"net/http"

	"educraft/internal/app"
	"educraft/pkg/domain"
)

type registerRequest struct {
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     string         `json:"role,omitempty"`
	Profile  domain.Profile `json:"profile"`
}

type authResponse struct {
	Account domain.Account `json:"account"`
	Token   string         `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, tok, err := s.app.Register(app.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Profile:  req.Profile,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, authResponse{Account: account, Token: tok})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, tok, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, authResponse{Account: account, Token: tok})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, account domain.Account) {
	switch r.Method {
	case http.MethodGet:
		writeData(w, http.StatusOK, account)
	case http.MethodPut, http.MethodPatch:
		var req struct {
			Profile domain.Profile `json:"profile"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := s.app.UpdateProfile(account.ID, req.Profile)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, account domain.Account) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.app.ChangePassword(account.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "password changed"})
}

// handleAccounts lists accounts for admins.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request, account domain.Account) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page, pageSize, skip := pageParams(r)
	result, err := s.app.ListAccounts(account, skip, pageSize)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writePage(w, result.Items, newPagination(page, pageSize, result.Total))
}

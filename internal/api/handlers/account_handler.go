package handlers

import (
	"net/http"

	"github.com/graphilearn/engine/internal/api/types"
	"github.com/graphilearn/engine/internal/services"
)

type AccountHandler struct {
	account services.AccountService
}

func NewAccountHandler(account services.AccountService) *AccountHandler {
	return &AccountHandler{account: account}
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	var req types.PasswordChangeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.account.ChangePassword(r.Context(), m, req.NewPassword, req.ConfirmPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]bool{"updated": true})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, ok := manager(w, r)
	if !ok {
		return
	}
	var req types.AccountDeleteRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.account.DeleteAccount(r.Context(), m, req.Confirmation); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]bool{"deleted": true}, Redirect: types.RouteHome})
}

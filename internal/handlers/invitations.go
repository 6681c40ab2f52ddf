package handlers

import (
	"net/http"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/services"
)

type InvitationHandler struct {
	membership *services.MembershipService
	res        *Responder
}

func NewInvitationHandler(membership *services.MembershipService, res *Responder) *InvitationHandler {
	return &InvitationHandler{membership: membership, res: res}
}

type InviteRequest struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type InvitationTokenRequest struct {
	Token string `json:"token"`
}

func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	repoID, err := pathID(r, "id")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	var req InviteRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	inv, err := h.membership.Invite(r.Context(), repoID, user.ID, req.Email, req.Role)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusCreated, "Invitación enviada.", map[string]interface{}{"invitation": inv})
}

func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	var req InvitationTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	repo, err := h.membership.AcceptInvitation(r.Context(), req.Token, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Invitación aceptada.", map[string]interface{}{"repository": repo})
}

func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	var req InvitationTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	if err := h.membership.RejectInvitation(r.Context(), req.Token, user.ID); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Invitación rechazada.", nil)
}

func (h *InvitationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	list, err := h.membership.ListPendingInvitations(r.Context(), user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"invitations": list})
}

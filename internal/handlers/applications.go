package handlers

import (
	"net/http"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/services"
)

type ApplicationHandler struct {
	membership *services.MembershipService
	res        *Responder
}

func NewApplicationHandler(membership *services.MembershipService, res *Responder) *ApplicationHandler {
	return &ApplicationHandler{membership: membership, res: res}
}

func (h *ApplicationHandler) ApplyCreator(w http.ResponseWriter, r *http.Request) {
	var attrs models.CreatorApplication
	h.apply(w, r, &attrs, func() models.ApplicationAttrs { return attrs })
}

func (h *ApplicationHandler) ApplyMember(w http.ResponseWriter, r *http.Request) {
	var attrs models.MemberApplication
	h.apply(w, r, &attrs, func() models.ApplicationAttrs { return attrs })
}

// apply decodes the body into dst; attrs reads the decoded value back.
func (h *ApplicationHandler) apply(w http.ResponseWriter, r *http.Request, dst interface{}, attrs func() models.ApplicationAttrs) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	repoID, err := pathID(r, "repoId")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	if err := decodeJSON(r, dst); err != nil {
		h.res.Error(w, r, err)
		return
	}
	app, err := h.membership.Apply(r.Context(), repoID, user.ID, attrs())
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusCreated, "Aplicación enviada.", map[string]interface{}{"application": app})
}

func (h *ApplicationHandler) ListByRepo(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	repoID, err := pathID(r, "repoId")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	list, err := h.membership.ListApplications(r.Context(), repoID, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"applications": list})
}

func (h *ApplicationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true, "Aplicación aceptada.")
}

func (h *ApplicationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false, "Aplicación rechazada.")
}

func (h *ApplicationHandler) decide(w http.ResponseWriter, r *http.Request, accept bool, message string) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	app, err := h.membership.Decide(r.Context(), id, user.ID, accept)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, message, map[string]interface{}{"application": app})
}

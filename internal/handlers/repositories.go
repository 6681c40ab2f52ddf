package handlers

import (
	"net/http"

	"github.com/repohub/repohub-backend/internal/services"
)

type RepositoryHandler struct {
	membership *services.MembershipService
	files      *services.FileService
	res        *Responder
}

func NewRepositoryHandler(membership *services.MembershipService, files *services.FileService, res *Responder) *RepositoryHandler {
	return &RepositoryHandler{membership: membership, files: files, res: res}
}

type CreateRepositoryRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Type          string   `json:"type"`
	Mode          string   `json:"mode"`
	Privacy       string   `json:"privacy"`
	Tags          []string `json:"tags"`
	InterestAreas []string `json:"interest_areas"`
	GeoAreas      []string `json:"geo_areas"`
	Sectors       []string `json:"sectors"`
	MemberEmails  []string `json:"member_emails"`
	IsRxUno       bool     `json:"is_rx_uno"`
}

func (h *RepositoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	var req CreateRepositoryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.res.Error(w, r, err)
		return
	}
	repo, err := h.membership.CreateRepository(r.Context(), user.ID, services.CreateRepositoryInput(req))
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusCreated, "Repositorio creado.", map[string]interface{}{"repository": repo})
}

func (h *RepositoryHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	out, err := h.membership.ListMine(r.Context(), user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{
		"owner_repos":  out.OwnerRepos,
		"member_repos": out.MemberRepos,
		"totals":       out.Totals,
	})
}

func (h *RepositoryHandler) Public(w http.ResponseWriter, r *http.Request) {
	list, err := h.membership.ListPublic(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"repositories": list, "total": len(list)})
}

func (h *RepositoryHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	repo, err := h.membership.GetRepository(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"repository": repo})
}

// Files returns the repository together with the files the caller may see.
func (h *RepositoryHandler) Files(w http.ResponseWriter, r *http.Request) {
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
	repo, err := h.membership.GetRepository(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	files, err := h.files.ListByRepo(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"repository": repo, "files": files})
}

func (h *RepositoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.membership.DeleteRepository(r.Context(), id, user.ID); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Repositorio eliminado.", nil)
}

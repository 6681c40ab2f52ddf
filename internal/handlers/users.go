package handlers

import (
	"net/http"
	"strconv"

	"github.com/repohub/repohub-backend/internal/models"
	"github.com/repohub/repohub-backend/internal/services"
)

type UserHandler struct {
	users *services.UserService
	res   *Responder
}

func NewUserHandler(users *services.UserService, res *Responder) *UserHandler {
	return &UserHandler{users: users, res: res}
}

// List is the public directory: ?search=&sortBy=repos|antiguedad|reciente&limit=.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	list, err := h.users.List(r.Context(), models.UserQuery{
		Search: q.Get("search"),
		Sort:   models.UserSort(q.Get("sortBy")),
		Limit:  limit,
	})
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"users": list, "total": len(list)})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	u, err := h.users.Me(r.Context(), user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"user": u})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"user": u})
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var update models.ProfileUpdate
	if err := decodeJSON(r, &update); err != nil {
		h.res.Error(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), id, user.ID, update)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Perfil actualizado.", map[string]interface{}{"user": u})
}

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/logging"
	"github.com/repohub/repohub-backend/internal/middleware"
	"github.com/repohub/repohub-backend/pkg/utils"
)

const msgInternal = "Error interno del servidor"

// Responder writes the {"success","message",...} envelope every endpoint
// answers with. Internal error detail is only exposed in development.
type Responder struct {
	log logging.Logger
	dev bool
}

func NewResponder(log logging.Logger, development bool) *Responder {
	return &Responder{log: log, dev: development}
}

// JSON writes a successful envelope merged with payload.
func (rs *Responder) JSON(w http.ResponseWriter, status int, message string, payload map[string]interface{}) {
	body := map[string]interface{}{"success": status < 400, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// Error maps err onto its HTTP status. Errors without a status are logged
// and answered with a generic 500.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	status := utils.StatusOf(err)
	body := map[string]interface{}{"success": false, "message": err.Error()}

	var rl *utils.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
		body["retry_after"] = rl.RetryAfter
	}
	var ve *utils.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}

	if status >= http.StatusInternalServerError {
		rs.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		body["message"] = msgInternal
		if rs.dev {
			body["error"] = err.Error()
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

var errBadBody = &utils.ValidationError{Message: "Cuerpo de solicitud inválido."}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

// pathID parses an ObjectID URL parameter.
func pathID(r *http.Request, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, &utils.ValidationError{Field: name, Message: "ID inválido."}
	}
	return id, nil
}

// caller returns the authenticated user; routes behind RequireAuth always have one.
func caller(r *http.Request) (middleware.User, error) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return middleware.User{}, utils.Unauthorized("No autenticado")
	}
	return u, nil
}

package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/repohub/repohub-backend/internal/services"
	"github.com/repohub/repohub-backend/pkg/utils"
)

// multipartOverhead is allowed on top of the file limit for form fields.
const multipartOverhead = 1 << 20

type FileHandler struct {
	files    *services.FileService
	maxBytes int64
	res      *Responder
}

func NewFileHandler(files *services.FileService, maxBytes int64, res *Responder) *FileHandler {
	return &FileHandler{files: files, maxBytes: maxBytes, res: res}
}

var errTooLarge = &utils.ValidationError{Field: "file", Message: "El archivo supera el tamaño máximo permitido.", Status: http.StatusRequestEntityTooLarge}

// Upload expects multipart field "file" plus optional title, description,
// tags (comma list or repeated), importance and sensitive.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
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

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.res.Error(w, r, errTooLarge)
			return
		}
		h.res.Error(w, r, &utils.ValidationError{Message: "Formulario inválido."})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.res.Error(w, r, &utils.ValidationError{Field: "file", Message: "El archivo es obligatorio."})
		return
	}
	defer file.Close()

	importance := 0
	if v := strings.TrimSpace(r.FormValue("importance")); v != "" {
		if importance, err = strconv.Atoi(v); err != nil {
			h.res.Error(w, r, &utils.ValidationError{Field: "importance", Message: "La importancia debe estar entre 0 y 3."})
			return
		}
	}
	sensitive, _ := strconv.ParseBool(r.FormValue("sensitive"))

	f, err := h.files.Upload(r.Context(), repoID, user.ID, services.UploadInput{
		Body:         file,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Tags:         formTags(r.MultipartForm.Value["tags"]),
		Importance:   importance,
		Sensitive:    sensitive,
	})
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusCreated, "Archivo subido.", map[string]interface{}{"file": f})
}

func formTags(values []string) []string {
	var tags []string
	for _, v := range values {
		tags = append(tags, utils.SplitTags(v)...)
	}
	if tags == nil {
		return []string{}
	}
	return tags
}

func (h *FileHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := caller(r)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	list, err := h.files.ListMine(r.Context(), user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"files": list})
}

func (h *FileHandler) ByRepo(w http.ResponseWriter, r *http.Request) {
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
	list, err := h.files.ListByRepo(r.Context(), repoID, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "", map[string]interface{}{"files": list})
}

func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
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
	f, body, err := h.files.Download(r.Context(), id, user.ID)
	if err != nil {
		h.res.Error(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.OriginalName}))
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.files.Delete(r.Context(), id, user.ID); err != nil {
		h.res.Error(w, r, err)
		return
	}
	h.res.JSON(w, http.StatusOK, "Archivo eliminado.", nil)
}

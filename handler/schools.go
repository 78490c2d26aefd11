package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stevemurr/school-directory/dataurl"
	"github.com/stevemurr/school-directory/school"
)

// readForm decodes a multipart (or urlencoded) school form. The returned
// cleanup closes the uploaded file and removes any temp files.
func readForm(r *http.Request) (school.FormData, func(), error) {
	cleanup := func() {}
	if err := r.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return school.FormData{}, cleanup, err
	}

	f := school.FormData{
		Name:    r.FormValue(school.FieldName),
		Address: r.FormValue(school.FieldAddress),
		City:    r.FormValue(school.FieldCity),
		State:   r.FormValue(school.FieldState),
		Contact: r.FormValue(school.FieldContact),
		Email:   r.FormValue(school.FieldEmail),
	}
	if r.MultipartForm == nil {
		return f, cleanup, nil
	}
	cleanup = func() { r.MultipartForm.RemoveAll() }

	file, hdr, err := r.FormFile(school.FieldImage)
	if errors.Is(err, http.ErrMissingFile) {
		return f, cleanup, nil
	}
	if err != nil {
		return school.FormData{}, cleanup, err
	}
	f.Image = &dataurl.Blob{
		Name:      hdr.Filename,
		MediaType: hdr.Header.Get("Content-Type"),
		Body:      file,
	}
	return f, func() {
		file.Close()
		r.MultipartForm.RemoveAll()
	}, nil
}

func parseID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid school id %q", raw)
	}
	return id, nil
}

// writeFailure maps an operation error to a status and the short message.
func writeFailure(w http.ResponseWriter, err error, fallback string) {
	kind := school.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case school.KindValidation:
		status = http.StatusUnprocessableEntity
	case school.KindNotFound:
		status = http.StatusNotFound
	case school.KindEncoding:
		status = http.StatusBadRequest
		if errors.Is(err, dataurl.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
	}
	writeJSON(w, status, map[string]string{
		"detail": school.Message(err, fallback),
		"kind":   kind.String(),
	})
}

func writeInvalid(w http.ResponseWriter, res school.Result) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": "validation failed",
		"kind":   school.KindValidation.String(),
		"errors": res.Errors,
	})
}

// ---------- collection ----------

func (h *Handler) listSchools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.schools.Schools())
}

func (h *Handler) refreshSchools(w http.ResponseWriter, r *http.Request) {
	if err := h.schools.Refresh(r.Context()); err != nil {
		writeFailure(w, err, "Failed to fetch schools")
		return
	}
	writeJSON(w, http.StatusOK, h.schools.Schools())
}

func (h *Handler) createSchool(w http.ResponseWriter, r *http.Request) {
	f, cleanup, err := readForm(r)
	defer cleanup()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	if res := school.Validate(f); !res.Valid {
		writeInvalid(w, res)
		return
	}
	s, err := h.schools.Create(r.Context(), f)
	if err != nil {
		writeFailure(w, err, "Failed to add school")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/schools/%d", s.ID))
	writeJSON(w, http.StatusCreated, s)
}

// validateSchool checks a form without storing it. ?mode=update applies the
// edit-form rules.
func (h *Handler) validateSchool(w http.ResponseWriter, r *http.Request) {
	f, cleanup, err := readForm(r)
	defer cleanup()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	res := school.Validate(f)
	if r.URL.Query().Get("mode") == "update" {
		res = school.ValidateUpdate(f)
	}
	writeJSON(w, http.StatusOK, res)
}

// ---------- single school ----------

func (h *Handler) getSchool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.schools.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "School not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) updateSchool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, cleanup, err := readForm(r)
	defer cleanup()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}
	if res := school.ValidateUpdate(f); !res.Valid {
		writeInvalid(w, res)
		return
	}
	s, err := h.schools.Edit(r.Context(), id, f)
	if err != nil {
		writeFailure(w, err, "Failed to update school")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) deleteSchool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.schools.Remove(r.Context(), id); err != nil {
		writeFailure(w, err, "Failed to delete school")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) schoolImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.schools.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "School not found")
		return
	}
	mediaType, data, err := dataurl.Parse(s.Image)
	if err != nil {
		h.log.Error().Err(err).Int64("id", id).Msg("stored image is not a data url")
		writeError(w, http.StatusInternalServerError, "stored image is unreadable")
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// contactSchool is the card's "contact via email" action.
func (h *Handler) contactSchool(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, ok := h.schools.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "School not found")
		return
	}
	http.Redirect(w, r, s.MailtoURL(), http.StatusFound)
}

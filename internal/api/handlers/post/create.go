package post

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"Snapfeed/internal/api/handlers"
	"Snapfeed/internal/api/handlers/common"
	"Snapfeed/internal/core/blobs"
	"Snapfeed/internal/core/posts"
)

// maxFormMemory bounds the in-memory part of a multipart form.
// The image itself may be up to blobs.MaxFileSize.
const maxFormMemory = blobs.MaxFileSize + 1<<20

// CreateHandler handles post creation requests
type CreateHandler struct {
	service posts.Service
	users   *common.CurrentUserLoader
}

// NewCreateHandler creates a new create handler
func NewCreateHandler(service posts.Service, users *common.CurrentUserLoader) *CreateHandler {
	return &CreateHandler{
		service: service,
		users:   users,
	}
}

// HandleCreate handles POST /api/posts
// Multipart fields: file (required), caption, location, tags
func (h *CreateHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	// Limit request body size to the largest image plus form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory)

	user, ok := h.users.RequireUser(w, r)
	if !ok {
		return
	}

	file, err := readFormFile(r)
	if err != nil {
		writeFormError(w, err)
		return
	}
	if file == nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "file is required")
		return
	}

	post, err := h.service.CreatePost(r.Context(), posts.NewPost{
		UserID:   user.ID,
		Caption:  r.FormValue("caption"),
		Location: optionalFormValue(r, "location"),
		Tags:     r.FormValue("tags"),
		File:     file,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	handlers.WriteJSON(w, http.StatusCreated, post)
}

// readFormFile parses the multipart form and returns the "file" part, or nil
// when the form has none.
func readFormFile(r *http.Request) (*blobs.File, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		return nil, err
	}

	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &blobs.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// optionalFormValue returns nil when key is absent, so an omitted field is
// distinguishable from an empty one.
func optionalFormValue(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func writeFormError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		handlers.WriteError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
			"Request body too large (max 6MB image)")
		return
	}
	handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid multipart form")
}

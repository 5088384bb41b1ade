package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/oakcrest/wopihost/internal/auth"
	"github.com/oakcrest/wopihost/internal/storage"
)

// fileListEntry is one row of the browser API's file listing.
type fileListEntry struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Size     int64  `json:"size"`
	Version  string `json:"version"`
	ReadOnly bool   `json:"readOnly,omitempty"`
}

// ListFiles handles GET /api/files: lists every file the storage adapter
// currently holds under its root.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	children, err := h.Storage.ListChildren(r.Context())
	if err != nil {
		h.Logger.Error("ListFiles failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	entries := make([]fileListEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, fileListEntry{Name: c.Name, ID: c.ID, Size: c.Size, Version: c.Version})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ListFilesInFolder handles GET /api/files/browse. The storage keyspace is
// flat from the browser API's point of view (folders are addressed by
// FileId prefix, not a real tree), so this is currently equivalent to
// ListFiles.
func (h *Handler) ListFilesInFolder(w http.ResponseWriter, r *http.Request) {
	h.ListFiles(w, r)
}

// UploadFile handles POST /api/files/upload?name=. It stores the request
// body under the given name, creating or overwriting it.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name query parameter required", http.StatusBadRequest)
		return
	}

	version, err := h.Storage.CreateOrOverwrite(r.Context(), name, r.Body, r.ContentLength)
	if err != nil {
		h.Logger.Error("UploadFile failed", "error", err, "name", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fileListEntry{Name: name, ID: name, Version: version})
}

// DeleteFileAPI handles DELETE /api/files?id=.
func (h *Handler) DeleteFileAPI(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter required", http.StatusBadRequest)
		return
	}

	if err := h.Storage.Delete(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("DeleteFileAPI failed", "error", err, "id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetFileInfoAPI handles GET /api/files/info?id=.
func (h *Handler) GetFileInfoAPI(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	size, err := h.Storage.Size(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	version, _ := h.Storage.Version(ctx, id)
	readOnly, _ := h.Storage.ReadOnly(ctx, id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fileListEntry{Name: id, ID: id, Size: size, Version: version, ReadOnly: readOnly})
}

// DownloadFile handles GET /api/files/download?id=.
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter required", http.StatusBadRequest)
		return
	}

	rc, err := h.Storage.Open(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

// GetAttributes handles GET /api/attributes?id=: returns the TDF attribute
// FQNs stored for a file, if any.
func (h *Handler) GetAttributes(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" || h.Attrs == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]string{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Attrs.Get(id))
}

// GetEditorURL handles GET /api/editor?id=: mints a WOPI access token for
// id and builds the WOPISrc-based URL a WOPI-capable client uses to open it.
func (h *Handler) GetEditorURL(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id query parameter required", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = "browser-user"
	}

	token := h.Tokens.GenerateToken(userID, id, auth.PermissionWrite)
	wopiSrc := fmt.Sprintf("%s/wopi/files/%s", h.BaseURL, url.PathEscape(id))
	editorURL := fmt.Sprintf("%s%s?WOPISrc=%s&access_token=%s",
		h.WOPIClientURL, h.WOPIClientEditorPath, url.QueryEscape(wopiSrc), url.QueryEscape(token))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"editorUrl": editorURL})
}

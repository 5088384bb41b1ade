// Package handlers implements the WOPI operation handlers: the
// dispatcher that maps a parsed request to the right operation, and the
// operations themselves against a pluggable storage.Adapter and
// wopi.LockManager.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/oakcrest/wopihost/internal/attrstore"
	"github.com/oakcrest/wopihost/internal/auth"
	"github.com/oakcrest/wopihost/internal/middleware"
	"github.com/oakcrest/wopihost/internal/platform"
	"github.com/oakcrest/wopihost/internal/storage"
	"github.com/oakcrest/wopihost/internal/wopi"
)

// Handler holds the dependencies every WOPI operation needs. It has no
// mutable state of its own — the Lock Table, user-info map, and revoked-link
// set live in the collaborators it holds a reference to.
type Handler struct {
	Storage  storage.Adapter
	Locks    *wopi.LockManager
	Tokens   *auth.TokenValidator
	Encoder  *wopi.Encoder
	ProofKey auth.ProofKeyValidator
	Users    *wopi.UserInfoStore
	Revoked  *wopi.RevokedLinkSet
	Attrs    *attrstore.FileAttrStore
	Platform *platform.Client
	Logger   *slog.Logger

	BaseURL              string
	WOPIClientURL        string
	WOPIClientEditorPath string
}

type dispatchEntry struct {
	fn        func(*Handler, http.ResponseWriter, *http.Request)
	needsFile bool
}

// dispatchTable encodes the default existence-check rule: every operation
// confirms the file exists before executing except PutFile, which creates
// it; those that target the folder rather than a FileId (CheckFolderInfo,
// EnumerateChildren); or those that never touch storage (AddActivities,
// ExecuteCobaltRequest). PutRelativeFile still requires its source document
// to exist even though it writes a new file under a different id.
var dispatchTable = map[wopi.OperationKind]dispatchEntry{
	wopi.OpCheckFileInfo:         {(*Handler).CheckFileInfo, true},
	wopi.OpGetFile:               {(*Handler).GetFile, true},
	wopi.OpPutFile:               {(*Handler).PutFile, false},
	wopi.OpEnumerateAncestors:    {(*Handler).EnumerateAncestors, true},
	wopi.OpCheckFolderInfo:       {(*Handler).CheckFolderInfo, false},
	wopi.OpEnumerateChildren:     {(*Handler).EnumerateChildren, false},
	wopi.OpLock:                  {(*Handler).Lock, true},
	wopi.OpUnlock:                {(*Handler).Unlock, true},
	wopi.OpRefreshLock:           {(*Handler).RefreshLock, true},
	wopi.OpUnlockAndRelock:       {(*Handler).UnlockAndRelock, true},
	wopi.OpGetLock:               {(*Handler).GetLock, true},
	wopi.OpPutRelativeFile:       {(*Handler).PutRelativeFile, true},
	wopi.OpDeleteFile:            {(*Handler).DeleteFile, true},
	wopi.OpRenameFile:            {(*Handler).RenameFile, true},
	wopi.OpReadSecureStore:       {(*Handler).ReadSecureStore, true},
	wopi.OpGetRestrictedLink:     {(*Handler).GetRestrictedLink, true},
	wopi.OpRevokeRestrictedLink:  {(*Handler).RevokeRestrictedLink, true},
	wopi.OpGetShareUrl:           {(*Handler).GetShareUrl, true},
	wopi.OpPutUserInfo:           {(*Handler).PutUserInfo, true},
	wopi.OpAddActivities:         {(*Handler).AddActivities, false},
	wopi.OpExecuteCobaltRequest:  {(*Handler).ExecuteCobaltRequest, false},
}

// Dispatch is the single entry point for every /wopi/... route. It runs the
// proof-key pre-dispatch check, the file-existence check, and then hands off
// to the operation named by the already-parsed request.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)

	if h.ProofKey != nil && !h.ProofKey.Validate(r) {
		h.Encoder.ServerError(w)
		return
	}

	entry, known := dispatchTable[req.Kind]
	if !known {
		h.Encoder.ServerError(w)
		return
	}

	if entry.needsFile {
		if _, err := h.Storage.Size(r.Context(), req.ID); err != nil {
			h.respondStorageErr(w, err, "Dispatch", req.ID)
			return
		}
	}

	entry.fn(h, w, r)
}

// CheckFileInfo handles GET /wopi/files/{id}.
func (h *Handler) CheckFileInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)
	userID := userIDFrom(ctx)

	size, err := h.Storage.Size(ctx, req.ID)
	if err != nil {
		h.respondStorageErr(w, err, "CheckFileInfo", req.ID)
		return
	}
	readOnly, err := h.Storage.ReadOnly(ctx, req.ID)
	if err != nil {
		h.respondStorageErr(w, err, "CheckFileInfo", req.ID)
		return
	}
	version, err := h.Storage.Version(ctx, req.ID)
	if err != nil {
		h.respondStorageErr(w, err, "CheckFileInfo", req.ID)
		return
	}

	resp := wopi.CheckFileInfoResponse{
		BaseFileName:      req.ID,
		Size:              int32(size),
		Version:           version,
		OwnerId:           userID,
		UserId:            userID,
		UserFriendlyName:  userID,
		UserPrincipalName: userID,
		FileExtension:     extensionOf(req.ID),

		ReadOnly:                readOnly,
		UserCanWrite:            !readOnly,
		UserCanRename:           !readOnly,
		UserCanNotWriteRelative: false,

		SupportsLocks:              true,
		SupportsUpdate:             true,
		SupportsGetLock:            true,
		SupportsExtendedLockLength: true,
		SupportsRename:             true,
		SupportsFolders:            true,
		SupportsSecureStore:        true,
		SupportsScenarioLinks:      true,
		SupportsUserInfo:           true,
		SupportsAddActivities:      true,

		SupportedShareUrlTypes: []string{wopi.ShareUrlTypeReadOnly, wopi.ShareUrlTypeReadWrite},

		UserInfo: h.Users.Get(userID),
	}

	if lm, ok := h.Storage.(lastModifiedProvider); ok {
		if t, err := lm.LastModifiedTime(ctx, req.ID); err == nil {
			resp.LastModifiedTime = t
		}
	}
	if sp, ok := h.Storage.(sha256Provider); ok {
		if sum, err := sp.SHA256(ctx, req.ID); err == nil {
			resp.SHA256 = sum
		}
	}

	if h.Attrs != nil && h.Platform != nil {
		if fqns := h.Attrs.Get(req.ID); len(fqns) > 0 {
			if obligations, err := h.Platform.GetObligations(ctx, fqns); err == nil {
				resp.DisableCopy = obligations.NoCopy
				resp.DisablePrint = obligations.NoPrint
				resp.DisableExport = obligations.NoDownload
			}
		}
	}

	if err := h.Encoder.JSON(w, resp); err != nil {
		h.Logger.Error("encode CheckFileInfo response", "error", err, "file_id", req.ID)
	}
}

// lastModifiedProvider and sha256Provider are optional capabilities a
// storage.Adapter may implement to populate CheckFileInfo's domain-stack
// fields cheaply. Neither is part of the core Adapter interface because the
// S3 backend cannot supply them without an extra round trip.
type lastModifiedProvider interface {
	LastModifiedTime(ctx context.Context, id string) (string, error)
}

type sha256Provider interface {
	SHA256(ctx context.Context, id string) (string, error)
}

// GetFile handles GET /wopi/files/{id}/contents.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)

	if maxStr := req.GetHeader(wopi.HeaderMaxExpectedSize); maxStr != "" {
		if maxSize, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			if size, err := h.Storage.Size(ctx, req.ID); err == nil && size > maxSize {
				h.Encoder.Prepare(w)
				w.WriteHeader(http.StatusPreconditionFailed)
				return
			}
		}
	}

	rc, err := h.Storage.Open(ctx, req.ID)
	if err != nil {
		h.respondStorageErr(w, err, "GetFile", req.ID)
		return
	}
	defer rc.Close()

	version, _ := h.Storage.Version(ctx, req.ID)

	h.Encoder.Prepare(w)
	if version != "" {
		w.Header().Set(wopi.HeaderItemVersion, version)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Error("stream file", "error", err, "file_id", req.ID)
	}
}

// PutFile handles POST /wopi/files/{id}/contents (X-WOPI-Override: PUT).
func (h *Handler) PutFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)
	lockID := req.GetHeader(wopi.HeaderLock)

	currentLock, ok := h.Locks.ValidateLock(req.ID, lockID)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, "")
		return
	}

	version, err := h.Storage.Upload(ctx, req.ID, r.Body, r.ContentLength)
	if err != nil {
		h.respondStorageErr(w, err, "PutFile", req.ID)
		return
	}

	h.Encoder.Prepare(w)
	if version != "" {
		w.Header().Set(wopi.HeaderItemVersion, version)
	}
	w.WriteHeader(http.StatusOK)
}

// DeleteFile handles X-WOPI-Override: DELETE.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)

	if currentLock := h.Locks.GetLock(req.ID); currentLock != "" {
		h.Encoder.LockMismatch(w, currentLock, "")
		return
	}

	if err := h.Storage.Delete(ctx, req.ID); err != nil {
		h.respondStorageErr(w, err, "DeleteFile", req.ID)
		return
	}
	h.Encoder.Success(w)
}

// RenameFile handles X-WOPI-Override: RENAME_FILE.
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)
	lockID := req.GetHeader(wopi.HeaderLock)

	currentLock, ok := h.Locks.ValidateLock(req.ID, lockID)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, "")
		return
	}

	requestedName, err := url.QueryUnescape(req.GetHeader(wopi.HeaderRequestedName))
	if err != nil || requestedName == "" {
		h.Encoder.Unsupported(w)
		return
	}

	finalName, err := h.Storage.Rename(ctx, req.ID, requestedName)
	if err != nil {
		if errors.Is(err, storage.ErrNameConflict) {
			h.Encoder.BadRequest(w, "name already in use")
			return
		}
		h.respondStorageErr(w, err, "RenameFile", req.ID)
		return
	}

	if err := h.Encoder.JSON(w, wopi.RenameFileResponse{Name: finalName}); err != nil {
		h.Logger.Error("encode RenameFile response", "error", err, "file_id", req.ID)
	}
}

// PutRelativeFile handles X-WOPI-Override: PUT_RELATIVE.
func (h *Handler) PutRelativeFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)

	suggested := req.GetHeader(wopi.HeaderSuggestedTarget)
	relative := req.GetHeader(wopi.HeaderRelativeTarget)
	if (suggested == "") == (relative == "") {
		h.Encoder.Unsupported(w)
		return
	}
	usingSuggested := suggested != ""

	rawTarget := suggested
	if !usingSuggested {
		rawTarget = relative
	}
	target, err := url.QueryUnescape(rawTarget)
	if err != nil {
		h.Encoder.Unsupported(w)
		return
	}

	targetName := resolveTargetName(req.ID, target)
	overwrite := truthy(req.GetHeader(wopi.HeaderOverwriteRelative))

	if usingSuggested {
		for {
			if _, err := h.Storage.Size(ctx, targetName); errors.Is(err, storage.ErrNotFound) {
				break
			}
			targetName = uuid.NewString() + "_" + targetName
		}
	} else {
		_, err := h.Storage.Size(ctx, targetName)
		exists := err == nil
		if exists {
			if !overwrite {
				h.Encoder.LockMismatch(w, "", "")
				return
			}
			if currentLock, ok := h.Locks.ValidateLock(targetName, ""); !ok {
				h.Encoder.LockMismatch(w, currentLock, "")
				return
			}
		}
	}

	if _, err := h.Storage.CreateOrOverwrite(ctx, targetName, r.Body, r.ContentLength); err != nil {
		h.respondStorageErr(w, err, "PutRelativeFile", targetName)
		return
	}

	token := h.Tokens.GenerateToken(userIDFrom(ctx), targetName, auth.PermissionWrite)
	fileURL := fmt.Sprintf("%s/wopi/files/%s?access_token=%s", h.BaseURL, url.PathEscape(targetName), url.QueryEscape(token))

	resp := wopi.PutRelativeFileResponse{
		Name:        targetName,
		Url:         fileURL,
		HostViewUrl: fileURL,
		HostEditUrl: fileURL,
	}
	if err := h.Encoder.JSON(w, resp); err != nil {
		h.Logger.Error("encode PutRelativeFile response", "error", err, "file_id", targetName)
	}
}

// resolveTargetName applies the extension-swap rule: a target beginning
// with "." and containing no further "." replaces the current
// id's extension, keeping its stem verbatim.
func resolveTargetName(currentID, target string) string {
	if strings.HasPrefix(target, ".") && strings.Count(target, ".") == 1 {
		stem := currentID
		if idx := strings.LastIndex(currentID, "."); idx >= 0 {
			stem = currentID[:idx]
		}
		return stem + target
	}
	return target
}

// Lock handles X-WOPI-Override: LOCK (with no X-WOPI-OldLock).
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)
	lockID := req.GetHeader(wopi.HeaderLock)
	if lockID == "" {
		h.Encoder.BadRequest(w, "")
		return
	}

	currentLock, ok := h.Locks.Lock(req.ID, lockID)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, "")
		return
	}

	h.Encoder.Prepare(w)
	if version, err := h.Storage.Version(ctx, req.ID); err == nil {
		w.Header().Set(wopi.HeaderItemVersion, version)
	}
	w.WriteHeader(http.StatusOK)
}

// Unlock handles X-WOPI-Override: UNLOCK.
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)
	lockID := req.GetHeader(wopi.HeaderLock)
	if lockID == "" {
		h.Encoder.BadRequest(w, "")
		return
	}

	currentLock, ok, reason := h.Locks.Unlock(req.ID, lockID)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, reason)
		return
	}

	h.Encoder.Prepare(w)
	if version, err := h.Storage.Version(ctx, req.ID); err == nil {
		w.Header().Set(wopi.HeaderItemVersion, version)
	}
	w.WriteHeader(http.StatusOK)
}

// RefreshLock handles X-WOPI-Override: REFRESH_LOCK.
func (h *Handler) RefreshLock(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	lockID := req.GetHeader(wopi.HeaderLock)
	if lockID == "" {
		h.Encoder.BadRequest(w, "")
		return
	}

	currentLock, ok, reason := h.Locks.RefreshLock(req.ID, lockID)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, reason)
		return
	}
	h.Encoder.Success(w)
}

// UnlockAndRelock handles X-WOPI-Override: LOCK with X-WOPI-OldLock set.
func (h *Handler) UnlockAndRelock(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	newLock := req.GetHeader(wopi.HeaderLock)
	oldLock := req.GetHeader(wopi.HeaderOldLock)
	if newLock == "" || oldLock == "" {
		h.Encoder.BadRequest(w, "")
		return
	}

	currentLock, ok, reason := h.Locks.UnlockAndRelock(req.ID, oldLock, newLock)
	if !ok {
		h.Encoder.LockMismatch(w, currentLock, reason)
		return
	}
	h.Encoder.Success(w)
}

// GetLock handles X-WOPI-Override: GET_LOCK.
func (h *Handler) GetLock(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	lockID := h.Locks.GetLock(req.ID)

	h.Encoder.Prepare(w)
	w.Header().Set(wopi.HeaderLock, lockID)
	w.WriteHeader(http.StatusOK)
}

// GetShareUrl handles X-WOPI-Override: GET_SHARE_URL.
func (h *Handler) GetShareUrl(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	urlType := req.GetHeader(wopi.HeaderUrlType)
	if urlType != wopi.ShareUrlTypeReadOnly && urlType != wopi.ShareUrlTypeReadWrite {
		h.Encoder.Unsupported(w)
		return
	}

	token := h.Tokens.GenerateToken(userIDFrom(r.Context()), req.ID, permissionForURLType(urlType))
	shareURL := fmt.Sprintf("%s/wopi/files/%s?access_token=%s", h.BaseURL, url.PathEscape(req.ID), url.QueryEscape(token))

	if err := h.Encoder.JSON(w, wopi.GetShareUrlResponse{ShareUrl: shareURL}); err != nil {
		h.Logger.Error("encode GetShareUrl response", "error", err, "file_id", req.ID)
	}
}

func permissionForURLType(urlType string) auth.Permission {
	if urlType == wopi.ShareUrlTypeReadWrite {
		return auth.PermissionWrite
	}
	return auth.PermissionRead
}

// PutUserInfo handles X-WOPI-Override: PUT_USER_INFO.
func (h *Handler) PutUserInfo(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.Encoder.ServerError(w)
		return
	}
	h.Users.Put(userID, string(body))
	h.Encoder.Success(w)
}

// GetRestrictedLink handles X-WOPI-Override: GET_RESTRICTED_LINK.
func (h *Handler) GetRestrictedLink(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	if req.GetHeader(wopi.HeaderRestrictedUseLink) != wopi.RestrictedUseLinkForms {
		h.Encoder.Unsupported(w)
		return
	}

	h.Encoder.Prepare(w)
	if h.Revoked.IsRevoked(req.ID) {
		w.Header().Set(wopi.HeaderRestrictedUseLink, "")
	} else {
		w.Header().Set(wopi.HeaderRestrictedUseLink, fmt.Sprintf("http://officeserver4/restricted/%s", req.ID))
	}
	w.WriteHeader(http.StatusOK)
}

// RevokeRestrictedLink handles X-WOPI-Override: REVOKE_RESTRICTED_LINK.
func (h *Handler) RevokeRestrictedLink(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	if req.GetHeader(wopi.HeaderRestrictedUseLink) != wopi.RestrictedUseLinkForms {
		h.Encoder.Unsupported(w)
		return
	}
	h.Revoked.Revoke(req.ID)
	h.Encoder.Success(w)
}

// ReadSecureStore handles X-WOPI-Override: READ_SECURE_STORE.
func (h *Handler) ReadSecureStore(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r)
	if req.GetHeader(wopi.HeaderApplicationId) == "" {
		h.Encoder.Unsupported(w)
		return
	}
	if truthy(req.GetHeader(wopi.HeaderPerfTraceRequested)) {
		w.Header().Set(wopi.HeaderPerfTrace, "0")
	}
	if err := h.Encoder.JSON(w, wopi.ReadSecureStoreResponse{}); err != nil {
		h.Logger.Error("encode ReadSecureStore response", "error", err, "file_id", req.ID)
	}
}

// CheckFolderInfo handles GET /wopi/folders/{id}.
func (h *Handler) CheckFolderInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(r)

	root, err := h.Storage.RootDirectory(ctx)
	if err != nil {
		h.Encoder.ServerError(w)
		return
	}
	if !strings.EqualFold(req.ID, root.Name) {
		h.Encoder.FileUnknown(w)
		return
	}

	if err := h.Encoder.JSON(w, wopi.CheckFolderInfoResponse{FolderName: root.Name, OwnerId: userIDFrom(ctx)}); err != nil {
		h.Logger.Error("encode CheckFolderInfo response", "error", err, "folder_id", req.ID)
	}
}

// EnumerateAncestors handles GET /wopi/files/{id}/ancestry.
func (h *Handler) EnumerateAncestors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	root, err := h.Storage.RootDirectory(ctx)
	if err != nil {
		h.Encoder.ServerError(w)
		return
	}

	h.Encoder.Prepare(w)
	w.Header().Set(wopi.HeaderEnumerationIncomplete, "true")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := wopi.EnumerateAncestorsResponse{
		AncestorsWithRootFirst: []wopi.AncestorEntry{{
			Name: root.Name,
			Url:  fmt.Sprintf("%s/wopi/folders/%s", h.BaseURL, url.PathEscape(root.Name)),
		}},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.Logger.Error("encode EnumerateAncestors response", "error", err)
	}
}

// EnumerateChildren handles GET /wopi/folders/{id}/children.
func (h *Handler) EnumerateChildren(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	children, err := h.Storage.ListChildren(ctx)
	if err != nil {
		h.Encoder.ServerError(w)
		return
	}

	entries := make([]wopi.ChildEntry, 0, len(children))
	for _, c := range children {
		token := h.Tokens.GenerateToken(userIDFrom(ctx), c.ID, auth.PermissionWrite)
		entries = append(entries, wopi.ChildEntry{
			Name:    c.Name,
			Version: c.Version,
			Url:     fmt.Sprintf("%s/wopi/files/%s?access_token=%s", h.BaseURL, url.PathEscape(c.ID), url.QueryEscape(token)),
		})
	}

	if err := h.Encoder.JSON(w, wopi.EnumerateChildrenResponse{Children: entries}); err != nil {
		h.Logger.Error("encode EnumerateChildren response", "error", err)
	}
}

// AddActivities handles X-WOPI-Override: ADD_ACTIVITIES.
func (h *Handler) AddActivities(w http.ResponseWriter, r *http.Request) {
	var body wopi.AddActivitiesRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		h.Encoder.BadRequest(w, "")
		return
	}

	responses := make([]wopi.ActivityResponse, 0, len(body.Activities))
	for _, a := range body.Activities {
		responses = append(responses, wopi.ActivityResponse{Id: a.Id, Status: 0, Message: ""})
	}

	if err := h.Encoder.JSON(w, wopi.AddActivitiesResponse{ActivityResponses: responses}); err != nil {
		h.Logger.Error("encode AddActivities response", "error", err)
	}
}

// ExecuteCobaltRequest is always unsupported.
func (h *Handler) ExecuteCobaltRequest(w http.ResponseWriter, r *http.Request) {
	h.Encoder.Unsupported(w)
}

func (h *Handler) respondStorageErr(w http.ResponseWriter, err error, op, fileID string) {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrAccessDenied):
		h.Encoder.FileUnknown(w)
	default:
		h.Logger.Error(op+" failed", "error", err, "file_id", fileID)
		h.Encoder.ServerError(w)
	}
}

func requestFrom(r *http.Request) wopi.Request {
	if req, ok := r.Context().Value(middleware.RequestKey).(wopi.Request); ok {
		return req
	}
	return wopi.Request{}
}

func userIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(middleware.UserIDKey).(string); ok {
		return v
	}
	return ""
}

func extensionOf(id string) string {
	idx := strings.LastIndex(id, ".")
	if idx < 0 || idx == len(id)-1 {
		return ""
	}
	return id[idx+1:]
}

func truthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// Package wopi implements the WOPI request dispatcher's core types: the
// operation grammar, the lock state machine, and the auxiliary process-wide
// state (user-info map, revoked-link set) that operation handlers consult.
package wopi

import "net/http"

// OperationKind classifies a parsed WOPI request. Handlers switch on this
// value rather than re-inspecting the URL or the X-WOPI-Override header.
type OperationKind int

const (
	OpNone OperationKind = iota
	OpCheckFileInfo
	OpGetFile
	OpPutFile
	OpEnumerateAncestors
	OpCheckFolderInfo
	OpEnumerateChildren
	OpLock
	OpUnlock
	OpRefreshLock
	OpUnlockAndRelock
	OpGetLock
	OpPutRelativeFile
	OpDeleteFile
	OpRenameFile
	OpReadSecureStore
	OpGetRestrictedLink
	OpRevokeRestrictedLink
	OpGetShareUrl
	OpPutUserInfo
	OpAddActivities
	OpExecuteCobaltRequest
)

func (k OperationKind) String() string {
	switch k {
	case OpCheckFileInfo:
		return "CheckFileInfo"
	case OpGetFile:
		return "GetFile"
	case OpPutFile:
		return "PutFile"
	case OpEnumerateAncestors:
		return "EnumerateAncestors"
	case OpCheckFolderInfo:
		return "CheckFolderInfo"
	case OpEnumerateChildren:
		return "EnumerateChildren"
	case OpLock:
		return "Lock"
	case OpUnlock:
		return "Unlock"
	case OpRefreshLock:
		return "RefreshLock"
	case OpUnlockAndRelock:
		return "UnlockAndRelock"
	case OpGetLock:
		return "GetLock"
	case OpPutRelativeFile:
		return "PutRelativeFile"
	case OpDeleteFile:
		return "DeleteFile"
	case OpRenameFile:
		return "RenameFile"
	case OpReadSecureStore:
		return "ReadSecureStore"
	case OpGetRestrictedLink:
		return "GetRestrictedLink"
	case OpRevokeRestrictedLink:
		return "RevokeRestrictedLink"
	case OpGetShareUrl:
		return "GetShareUrl"
	case OpPutUserInfo:
		return "PutUserInfo"
	case OpAddActivities:
		return "AddActivities"
	case OpExecuteCobaltRequest:
		return "ExecuteCobaltRequest"
	default:
		return "None"
	}
}

// WriteRequired reports whether an operation requires write access from the
// access gate.
func (k OperationKind) WriteRequired() bool {
	switch k {
	case OpGetFile, OpCheckFileInfo, OpGetLock, OpCheckFolderInfo, OpEnumerateChildren, OpEnumerateAncestors:
		return false
	default:
		return true
	}
}

// Request is the parsed, typed representation of an inbound WOPI HTTP
// request, produced by Parse. Handlers never re-derive it from raw URL or
// header state.
type Request struct {
	Kind        OperationKind
	ID          string // FileId or FolderId, lower-cased for files
	AccessToken string
	Header      map[string][]string // canonical http.Header, copied by reference
}

// GetHeader returns the first value of a header, or "" if absent. Lookup is
// case-insensitive to MIME header canonicalization, matching net/http's own
// behavior, since Header may have been built by hand (as in tests) without
// running through http.CanonicalHeaderKey.
func (r Request) GetHeader(name string) string {
	return http.Header(r.Header).Get(name)
}

// WOPI override header values recognized on POST /wopi/files/{id}.
const (
	OverrideLock                 = "LOCK"
	OverrideUnlock               = "UNLOCK"
	OverrideRefreshLock          = "REFRESH_LOCK"
	OverrideGetLock              = "GET_LOCK"
	OverridePutRelative          = "PUT_RELATIVE"
	OverrideDelete               = "DELETE"
	OverrideRenameFile           = "RENAME_FILE"
	OverrideReadSecureStore      = "READ_SECURE_STORE"
	OverrideGetRestrictedLink    = "GET_RESTRICTED_LINK"
	OverrideRevokeRestrictedLink = "REVOKE_RESTRICTED_LINK"
	OverrideGetShareUrl          = "GET_SHARE_URL"
	OverridePutUserInfo          = "PUT_USER_INFO"
	OverrideAddActivities        = "ADD_ACTIVITIES"
	OverrideCobalt               = "COBALT"
)

// WOPI header names consumed and emitted by the core (MS-WOPI naming).
const (
	HeaderOverride              = "X-WOPI-Override"
	HeaderLock                  = "X-WOPI-Lock"
	HeaderOldLock               = "X-WOPI-OldLock"
	HeaderLockFailureReason     = "X-WOPI-LockFailureReason"
	HeaderItemVersion           = "X-WOPI-ItemVersion"
	HeaderMaxExpectedSize       = "X-WOPI-MaxExpectedSize"
	HeaderRequestedName         = "X-WOPI-RequestedName"
	HeaderRelativeTarget        = "X-WOPI-RelativeTarget"
	HeaderSuggestedTarget       = "X-WOPI-SuggestedTarget"
	HeaderOverwriteRelative     = "X-WOPI-OverwriteRelativeTarget"
	HeaderSize                  = "X-WOPI-Size"
	HeaderUrlType               = "X-WOPI-UrlType"
	HeaderRestrictedUseLink     = "X-WOPI-RestrictedUseLink"
	HeaderApplicationId         = "X-WOPI-ApplicationId"
	HeaderPerfTraceRequested    = "X-WOPI-PerfTraceRequested"
	HeaderPerfTrace             = "X-WOPI-PerfTrace"
	HeaderInvalidFileNameError  = "X-WOPI-InvalidFileNameError"
	HeaderEnumerationIncomplete = "X-WOPI-EnumerationIncomplete"
	HeaderServerVersion         = "X-WOPI-ServerVersion"
	HeaderMachineName           = "X-WOPI-MachineName"
)

// RestrictedUseLinkForms is the only recognized value of
// X-WOPI-RestrictedUseLink.
const RestrictedUseLinkForms = "FORMS"

// CheckFileInfoResponse is the JSON body for the CheckFileInfo operation.
// Field names and casing are dictated by the WOPI wire protocol and must
// not be changed.
type CheckFileInfoResponse struct {
	BaseFileName      string `json:"BaseFileName"`
	Size              int32  `json:"Size"`
	Version           string `json:"Version"`
	OwnerId           string `json:"OwnerId"`
	UserId            string `json:"UserId"`
	UserFriendlyName  string `json:"UserFriendlyName"`
	UserPrincipalName string `json:"UserPrincipalName"`
	FileExtension     string `json:"FileExtension"`

	ReadOnly                bool `json:"ReadOnly"`
	UserCanWrite            bool `json:"UserCanWrite"`
	UserCanRename           bool `json:"UserCanRename"`
	UserCanNotWriteRelative bool `json:"UserCanNotWriteRelative"`

	SupportsLocks              bool `json:"SupportsLocks"`
	SupportsUpdate             bool `json:"SupportsUpdate"`
	SupportsGetLock            bool `json:"SupportsGetLock"`
	SupportsExtendedLockLength bool `json:"SupportsExtendedLockLength"`
	SupportsRename             bool `json:"SupportsRename"`
	SupportsFolders            bool `json:"SupportsFolders"`
	SupportsSecureStore        bool `json:"SupportsSecureStore"`
	SupportsScenarioLinks      bool `json:"SupportsScenarioLinks"`
	SupportsUserInfo           bool `json:"SupportsUserInfo"`
	SupportsAddActivities      bool `json:"SupportsAddActivities"`

	SupportedShareUrlTypes []string `json:"SupportedShareUrlTypes"`

	BreadcrumbBrandName  string `json:"BreadcrumbBrandName,omitempty"`
	BreadcrumbFolderName string `json:"BreadcrumbFolderName,omitempty"`
	BreadcrumbDocName    string `json:"BreadcrumbDocName,omitempty"`

	UserInfo string `json:"UserInfo"`

	// Attribute/obligation-driven extensions — additive, never required.
	LastModifiedTime string `json:"LastModifiedTime,omitempty"`
	SHA256           string `json:"SHA256,omitempty"`
	DisableCopy      bool   `json:"DisableCopy,omitempty"`
	DisablePrint     bool   `json:"DisablePrint,omitempty"`
	DisableExport    bool   `json:"DisableExport,omitempty"`
}

// ShareUrlTypeReadOnly and ShareUrlTypeReadWrite are the only values
// SupportedShareUrlTypes / X-WOPI-UrlType may take.
const (
	ShareUrlTypeReadOnly  = "ReadOnly"
	ShareUrlTypeReadWrite = "ReadWrite"
)

// AncestorEntry is one element of EnumerateAncestorsResponse's AncestorsWithRootFirst.
type AncestorEntry struct {
	Name string `json:"Name"`
	Url  string `json:"Url"`
}

// EnumerateAncestorsResponse is the JSON body for EnumerateAncestors.
type EnumerateAncestorsResponse struct {
	AncestorsWithRootFirst []AncestorEntry `json:"AncestorsWithRootFirst"`
}

// CheckFolderInfoResponse is the JSON body for CheckFolderInfo.
type CheckFolderInfoResponse struct {
	FolderName string `json:"FolderName"`
	OwnerId    string `json:"OwnerId"`
}

// ChildEntry is one element of EnumerateChildrenResponse's Children.
type ChildEntry struct {
	Name    string `json:"Name"`
	Version string `json:"Version"`
	Url     string `json:"Url"`
}

// EnumerateChildrenResponse is the JSON body for EnumerateChildren.
type EnumerateChildrenResponse struct {
	Children []ChildEntry `json:"Children"`
}

// PutRelativeFileResponse is the JSON body for PutRelativeFile.
type PutRelativeFileResponse struct {
	Name        string `json:"Name"`
	Url         string `json:"Url"`
	HostViewUrl string `json:"HostViewUrl,omitempty"`
	HostEditUrl string `json:"HostEditUrl,omitempty"`
}

// RenameFileResponse is the JSON body for a successful RenameFile.
type RenameFileResponse struct {
	Name string `json:"Name"`
}

// GetShareUrlResponse is the JSON body for GetShareUrl.
type GetShareUrlResponse struct {
	ShareUrl string `json:"ShareUrl"`
}

// ReadSecureStoreResponse is the fixed JSON body for ReadSecureStore.
type ReadSecureStoreResponse struct {
	UserName             string `json:"UserName"`
	Password             string `json:"Password"`
	IsWindowsCredentials bool   `json:"IsWindowsCredentials"`
	IsGroup              bool   `json:"IsGroup"`
}

// ActivityData carries the ContentId/ContentAction pair of an Activity.
type ActivityData struct {
	ContentId     string `json:"ContentId"`
	ContentAction string `json:"ContentAction"`
}

// Activity is one element of an AddActivities request body.
type Activity struct {
	Type      string       `json:"Type"`
	Id        string       `json:"Id"`
	Timestamp string       `json:"Timestamp"`
	Data      ActivityData `json:"Data"`
}

// AddActivitiesRequest is the JSON body of an AddActivities request.
type AddActivitiesRequest struct {
	Activities []Activity `json:"Activities"`
}

// ActivityResponse is one element of AddActivitiesResponse's ActivityResponses.
type ActivityResponse struct {
	Id      string `json:"Id"`
	Status  int    `json:"Status"`
	Message string `json:"Message"`
}

// AddActivitiesResponse is the JSON body returned by AddActivities.
type AddActivitiesResponse struct {
	ActivityResponses []ActivityResponse `json:"ActivityResponses"`
}

package wopi

import (
	"net/http"
	"net/url"
	"strings"
)

const (
	filesPrefix   = "/wopi/files/"
	foldersPrefix = "/wopi/folders/"

	contentsSuffix = "/contents"
	ancestrySuffix = "/ancestry"
	childrenSuffix = "/children"
)

// Parse maps an inbound WOPI HTTP request to a typed Request. It is a pure
// function of method, path, query string, and headers so the
// URL grammar and the X-WOPI-Override dispatch table can be tested without
// an HTTP server.
func Parse(method, path, rawQuery string, header http.Header) (Request, error) {
	req := Request{
		AccessToken: accessToken(rawQuery),
		Header:      header,
	}

	switch {
	case strings.HasPrefix(path, filesPrefix):
		rest := strings.TrimPrefix(path, filesPrefix)
		switch {
		case strings.HasSuffix(rest, contentsSuffix):
			req.ID = normalizeFileID(strings.TrimSuffix(rest, contentsSuffix))
			switch method {
			case http.MethodGet:
				req.Kind = OpGetFile
			case http.MethodPost:
				req.Kind = OpPutFile
			default:
				req.Kind = OpNone
			}
		case strings.HasSuffix(rest, ancestrySuffix):
			req.ID = normalizeFileID(strings.TrimSuffix(rest, ancestrySuffix))
			req.Kind = OpEnumerateAncestors
		default:
			req.ID = normalizeFileID(rest)
			switch method {
			case http.MethodGet:
				req.Kind = OpCheckFileInfo
			case http.MethodPost:
				req.Kind = classifyOverride(header.Get(HeaderOverride), header.Get(HeaderOldLock))
			default:
				req.Kind = OpNone
			}
		}

	case strings.HasPrefix(path, foldersPrefix):
		rest := strings.TrimPrefix(path, foldersPrefix)
		switch {
		case strings.HasSuffix(rest, childrenSuffix):
			req.ID = decodeID(strings.TrimSuffix(rest, childrenSuffix))
			req.Kind = OpEnumerateChildren
		default:
			req.ID = decodeID(rest)
			req.Kind = OpCheckFolderInfo
		}

	default:
		req.Kind = OpNone
	}

	return req, nil
}

// classifyOverride maps the X-WOPI-Override header (and, for LOCK, the
// presence of X-WOPI-OldLock) to the operation it requests.
func classifyOverride(override, oldLock string) OperationKind {
	switch override {
	case OverrideLock:
		if oldLock == "" {
			return OpLock
		}
		return OpUnlockAndRelock
	case OverrideUnlock:
		return OpUnlock
	case OverrideRefreshLock:
		return OpRefreshLock
	case OverrideGetLock:
		return OpGetLock
	case OverridePutRelative:
		return OpPutRelativeFile
	case OverrideDelete:
		return OpDeleteFile
	case OverrideRenameFile:
		return OpRenameFile
	case OverrideReadSecureStore:
		return OpReadSecureStore
	case OverrideGetRestrictedLink:
		return OpGetRestrictedLink
	case OverrideRevokeRestrictedLink:
		return OpRevokeRestrictedLink
	case OverrideGetShareUrl:
		return OpGetShareUrl
	case OverridePutUserInfo:
		return OpPutUserInfo
	case OverrideAddActivities:
		return OpAddActivities
	case OverrideCobalt:
		return OpExecuteCobaltRequest
	default:
		return OpNone
	}
}

// normalizeFileID percent-decodes and lower-cases a raw file-id URL segment:
// FileId is case-insensitive and normalized to lower case at parse time.
func normalizeFileID(raw string) string {
	return strings.ToLower(decodeID(raw))
}

// decodeID percent-decodes a raw id URL segment without changing case, for
// FolderId (which stays case-sensitive) and any other id-shaped path
// segment.
func decodeID(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func accessToken(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}
	return values.Get("access_token")
}

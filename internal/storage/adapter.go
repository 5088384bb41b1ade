// Package storage defines the Storage Adapter interface handlers use to
// read and write file content and metadata, independent of the backing
// store (local filesystem, S3, or a decrypting decorator over either).
package storage

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors adapters return. Handlers translate these to WOPI status
// codes; adapters never write HTTP responses directly.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrInvalidID    = errors.New("storage: invalid id")
	ErrNameConflict = errors.New("storage: name already in use")
	ErrReadOnly     = errors.New("storage: read only")
	ErrTooLarge     = errors.New("storage: content exceeds size limit")

	// ErrAccessDenied is returned when the backing store refuses a read or
	// write for permission reasons unrelated to the WOPI access token (a
	// restrictive filesystem mode, a denied S3 policy). Handlers fold it
	// into the same 404 response as ErrNotFound rather than leaking that
	// the object exists.
	ErrAccessDenied = errors.New("storage: access denied")
)

// RootInfo describes the single root folder a WOPI host exposes to
// CheckFolderInfo.
type RootInfo struct {
	Name string
}

// ChildInfo describes one entry returned by ListChildren. A negative Size
// marks a folder rather than a file, mirroring the shape WOPI expects for
// an EnumerateChildren child entry.
type ChildInfo struct {
	Name    string
	ID      string
	Size    int64
	Version string
}

// Adapter is the storage adapter interface: the sole boundary
// between the WOPI operation handlers and durable storage. Every method
// that can fail on a missing id returns ErrNotFound rather than a
// negative sentinel value.
type Adapter interface {
	Size(ctx context.Context, id string) (int64, error)
	ReadOnly(ctx context.Context, id string) (bool, error)
	Version(ctx context.Context, id string) (string, error)
	Open(ctx context.Context, id string) (io.ReadCloser, error)
	Upload(ctx context.Context, id string, r io.Reader, size int64) (version string, err error)
	CreateOrOverwrite(ctx context.Context, name string, r io.Reader, size int64) (version string, err error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, newName string) (finalName string, err error)
	RootDirectory(ctx context.Context) (RootInfo, error)
	ListChildren(ctx context.Context) ([]ChildInfo, error)
}

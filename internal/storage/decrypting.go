package storage

import (
	"bytes"
	"context"
	"io"
)

// contentTyper is implemented by an Adapter that can report a stored file's
// content type. Adapters that don't track content type simply never trigger
// decryption.
type contentTyper interface {
	ContentType(ctx context.Context, id string) (string, error)
}

// tdfDecryptor is the subset of tdf.Decryptor's surface this package
// depends on, so storage does not import the tdf package's OpenTDF SDK
// dependency unless a caller actually wires one in.
type tdfDecryptor interface {
	Decrypt(ctx context.Context, r io.Reader) ([]byte, error)
}

// DecryptingAdapter wraps another Adapter and transparently decrypts
// TDF-wrapped content on Open, leaving every other operation untouched.
// Handlers never see the distinction between a plain file and a TDF-wrapped
// one — the decryption happens beneath the Adapter interface (C14).
type DecryptingAdapter struct {
	Adapter
	decryptor  tdfDecryptor
	isTDF      func(contentType string) bool
	typer      contentTyper
}

// NewDecryptingAdapter wraps base so Open() decrypts content whose type
// (as reported by typer) satisfies isTDF. typer may be nil, in which case
// Open never decrypts — this lets a backend without content-type tracking
// be wrapped harmlessly.
func NewDecryptingAdapter(base Adapter, decryptor tdfDecryptor, typer contentTyper, isTDF func(string) bool) *DecryptingAdapter {
	return &DecryptingAdapter{Adapter: base, decryptor: decryptor, typer: typer, isTDF: isTDF}
}

// Open returns decrypted plaintext when the underlying file's content type
// indicates a TDF payload, otherwise it delegates to the wrapped Adapter
// unchanged.
func (d *DecryptingAdapter) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	rc, err := d.Adapter.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.typer == nil || d.decryptor == nil {
		return rc, nil
	}

	ct, err := d.typer.ContentType(ctx, id)
	if err != nil || !d.isTDF(ct) {
		return rc, nil
	}
	defer rc.Close()

	plaintext, err := d.decryptor.Decrypt(ctx, rc)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(plaintext)), nil
}

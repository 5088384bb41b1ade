package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3Client implements S3Client with an in-memory object map, for
// exercising S3Adapter without a network dependency.
type mockS3Client struct {
	objects  map[string]*mockObject
	denyKeys map[string]bool
}

type mockObject struct {
	data        []byte
	contentType string
	etag        string
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string]*mockObject)}
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	size := int64(len(obj.data))
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: &size,
		ETag:          aws.String(obj.etag),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(params.Key)
	data, _ := io.ReadAll(params.Body)
	ct := "application/octet-stream"
	if params.ContentType != nil {
		ct = *params.ContentType
	}
	etag := "etag-" + key
	m.objects[key] = &mockObject{data: data, contentType: ct, etag: etag}
	return &s3.PutObjectOutput{ETag: aws.String(etag)}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(params.Key)
	if m.denyKeys[key] {
		return nil, errors.New("AccessDenied: 403 Forbidden")
	}
	obj, ok := m.objects[key]
	if !ok {
		return nil, &s3types.NotFound{}
	}
	size := int64(len(obj.data))
	return &s3.HeadObjectOutput{
		ContentLength: &size,
		ETag:          aws.String(obj.etag),
		ContentType:   aws.String(obj.contentType),
	}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	src := aws.ToString(params.CopySource)
	parts := bytes.SplitN([]byte(src), []byte("/"), 2)
	srcKey := string(parts[len(parts)-1])
	srcObj, ok := m.objects[srcKey]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	destKey := aws.ToString(params.Key)
	m.objects[destKey] = &mockObject{
		data:        append([]byte(nil), srcObj.data...),
		contentType: srcObj.contentType,
		etag:        "etag-" + destKey,
	}
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var contents []s3types.Object
	for _, k := range keys {
		obj := m.objects[k]
		size := int64(len(obj.data))
		contents = append(contents, s3types.Object{
			Key:  aws.String(k),
			Size: &size,
			ETag: aws.String(obj.etag),
		})
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func TestS3Adapter_SizeReturnsAccessDeniedOnForbidden(t *testing.T) {
	mock := newMockS3Client()
	mock.denyKeys = map[string]bool{"secret.txt": true}
	a := NewS3AdapterWithClient(mock, "bucket")

	_, err := a.Size(context.Background(), "secret.txt")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestS3Adapter_UploadRequiresExistingObject(t *testing.T) {
	a := NewS3AdapterWithClient(newMockS3Client(), "bucket")
	ctx := context.Background()

	_, err := a.Upload(ctx, "doc1", bytes.NewReader([]byte("x")), 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3Adapter_CreateOpenRoundTrip(t *testing.T) {
	a := NewS3AdapterWithClient(newMockS3Client(), "bucket")
	ctx := context.Background()

	content := []byte("hello")
	if _, err := a.CreateOrOverwrite(ctx, "doc1.txt", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("CreateOrOverwrite: %v", err)
	}

	rc, err := a.Open(ctx, "doc1.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Fatalf("got %q, want %q", got, content)
	}

	size, err := a.Size(ctx, "doc1.txt")
	if err != nil || size != int64(len(content)) {
		t.Fatalf("Size: got (%d, %v)", size, err)
	}
}

func TestS3Adapter_PipeSeparatorMapsToNestedKey(t *testing.T) {
	mock := newMockS3Client()
	a := NewS3AdapterWithClient(mock, "bucket")
	ctx := context.Background()

	if _, err := a.CreateOrOverwrite(ctx, "folder1|report.docx", bytes.NewReader([]byte("x")), 1); err != nil {
		t.Fatalf("CreateOrOverwrite: %v", err)
	}
	if _, ok := mock.objects["folder1/report.docx"]; !ok {
		t.Fatal("expected pipe-separated id to map to a nested S3 key")
	}
}

func TestS3Adapter_RenameConflict(t *testing.T) {
	mock := newMockS3Client()
	a := NewS3AdapterWithClient(mock, "bucket")
	ctx := context.Background()

	a.CreateOrOverwrite(ctx, "a.txt", bytes.NewReader([]byte("a")), 1)
	a.CreateOrOverwrite(ctx, "b.txt", bytes.NewReader([]byte("b")), 1)

	if _, err := a.Rename(ctx, "a.txt", "b.txt"); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
}

func TestS3Adapter_RenameSuccess(t *testing.T) {
	a := NewS3AdapterWithClient(newMockS3Client(), "bucket")
	ctx := context.Background()

	a.CreateOrOverwrite(ctx, "a.txt", bytes.NewReader([]byte("a")), 1)
	newID, err := a.Rename(ctx, "a.txt", "renamed.txt")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if newID != "renamed.txt" {
		t.Fatalf("got %q", newID)
	}
	if _, err := a.Size(ctx, "a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatal("expected old id gone")
	}
}

func TestS3Adapter_RejectsTraversal(t *testing.T) {
	a := NewS3AdapterWithClient(newMockS3Client(), "bucket")
	ctx := context.Background()

	if _, err := a.Size(ctx, "../escape"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestS3Adapter_ListChildren(t *testing.T) {
	mock := newMockS3Client()
	a := NewS3AdapterWithClient(mock, "bucket")
	ctx := context.Background()

	a.CreateOrOverwrite(ctx, "a.txt", bytes.NewReader([]byte("a")), 1)
	a.CreateOrOverwrite(ctx, "b.txt", bytes.NewReader([]byte("bb")), 2)

	children, err := a.ListChildren(ctx)
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Client is the subset of S3 operations the adapter uses. Narrowing the
// dependency to an interface lets tests substitute an in-memory fake.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures the S3-compatible backend.
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool

	// BearerAuth enables OIDC bearer token injection, for proxies that sit
	// in front of the object store and expect a user or service token
	// rather than SigV4.
	BearerAuth *BearerAuthConfig
}

// BearerAuthConfig holds the credentials needed to obtain OIDC bearer
// tokens for an S3-compatible proxy.
type BearerAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Logger       *slog.Logger
}

// S3Adapter implements Adapter over an S3-compatible object store. WOPI
// FileIds use "|" as a path-separator surrogate so a single flat FileId can
// address an object nested arbitrarily deep in the bucket.
type S3Adapter struct {
	client S3Client
	bucket string
}

// NewS3Adapter builds an S3Adapter from the given configuration, wiring an
// OIDC bearer-token transport ahead of the AWS SDK client when BearerAuth is
// set.
func NewS3Adapter(ctx context.Context, cfg S3Config) (*S3Adapter, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: cfg.ForcePathStyle,
			}, nil
		},
	)

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
		config.WithEndpointResolverWithOptions(resolver),
	}

	if cfg.BearerAuth != nil {
		transport := &BearerTokenTransport{
			TokenURL:     cfg.BearerAuth.TokenURL,
			ClientID:     cfg.BearerAuth.ClientID,
			ClientSecret: cfg.BearerAuth.ClientSecret,
			Logger:       cfg.BearerAuth.Logger,
		}
		opts = append(opts, config.WithHTTPClient(&http.Client{Transport: transport}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Adapter{client: client, bucket: cfg.Bucket}, nil
}

// NewS3AdapterWithClient builds an S3Adapter around a pre-constructed
// client, for tests.
func NewS3AdapterWithClient(client S3Client, bucket string) *S3Adapter {
	return &S3Adapter{client: client, bucket: bucket}
}

func (a *S3Adapter) Size(ctx context.Context, id string) (int64, error) {
	key, err := keyFor(id)
	if err != nil {
		return 0, err
	}
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		if isForbidden(err) {
			return 0, ErrAccessDenied
		}
		return 0, fmt.Errorf("head object %q: %w", key, err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// ReadOnly always reports false: the bucket-level access policy, not the
// adapter, is the source of truth for write permission.
func (a *S3Adapter) ReadOnly(ctx context.Context, id string) (bool, error) {
	if _, err := a.Size(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ContentType reports the object's stored content type, letting a wrapping
// DecryptingAdapter decide whether Open's output needs unwrapping.
func (a *S3Adapter) ContentType(ctx context.Context, id string) (string, error) {
	key, err := keyFor(id)
	if err != nil {
		return "", err
	}
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		if isForbidden(err) {
			return "", ErrAccessDenied
		}
		return "", err
	}
	return aws.ToString(out.ContentType), nil
}

func (a *S3Adapter) Version(ctx context.Context, id string) (string, error) {
	key, err := keyFor(id)
	if err != nil {
		return "", err
	}
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		if isForbidden(err) {
			return "", ErrAccessDenied
		}
		return "", fmt.Errorf("head object %q: %w", key, err)
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}

func (a *S3Adapter) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	key, err := keyFor(id)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		if isForbidden(err) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	return out.Body, nil
}

func (a *S3Adapter) Upload(ctx context.Context, id string, r io.Reader, size int64) (string, error) {
	key, err := keyFor(id)
	if err != nil {
		return "", err
	}
	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		if isForbidden(err) {
			return "", ErrAccessDenied
		}
		return "", fmt.Errorf("head object %q: %w", key, err)
	}
	return a.putObject(ctx, key, r, size)
}

func (a *S3Adapter) CreateOrOverwrite(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	key, err := keyFor(name)
	if err != nil {
		return "", err
	}
	return a.putObject(ctx, key, r, size)
}

// maxUploadSize bounds how much of the body the adapter buffers so the AWS
// SDK can seek for payload signing.
const maxUploadSize = 256 << 20

func (a *S3Adapter) putObject(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	seekBody, err := toSeekableReader(r)
	if err != nil {
		return "", err
	}
	out, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          seekBody,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeForFile(key)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}

func (a *S3Adapter) Delete(ctx context.Context, id string) error {
	key, err := keyFor(id)
	if err != nil {
		return err
	}
	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)}); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		if isForbidden(err) {
			return ErrAccessDenied
		}
		return fmt.Errorf("head object %q: %w", key, err)
	}
	_, err = a.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (a *S3Adapter) Rename(ctx context.Context, id, newName string) (string, error) {
	oldKey, err := keyFor(id)
	if err != nil {
		return "", err
	}
	newID := IDForName(newName)
	newKey, err := keyFor(newID)
	if err != nil {
		return "", ErrInvalidID
	}

	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(oldKey)}); err != nil {
		if isNotFound(err) {
			return "", ErrNotFound
		}
		if isForbidden(err) {
			return "", ErrAccessDenied
		}
		return "", fmt.Errorf("head object %q: %w", oldKey, err)
	}
	if _, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(newKey)}); err == nil {
		return "", ErrNameConflict
	}

	copySource := fmt.Sprintf("%s/%s", a.bucket, oldKey)
	if _, err := a.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(a.bucket),
		Key:        aws.String(newKey),
		CopySource: aws.String(copySource),
	}); err != nil {
		return "", fmt.Errorf("copy object: %w", err)
	}
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(oldKey)}); err != nil {
		return "", fmt.Errorf("delete original after rename: %w", err)
	}
	return newID, nil
}

// RootDirectory reports the bucket itself as the WOPI host's single root.
func (a *S3Adapter) RootDirectory(ctx context.Context) (RootInfo, error) {
	return RootInfo{Name: a.bucket}, nil
}

func (a *S3Adapter) ListChildren(ctx context.Context) ([]ChildInfo, error) {
	var children []ChildInfo
	input := &s3.ListObjectsV2Input{Bucket: aws.String(a.bucket)}
	for {
		out, err := a.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				continue
			}
			children = append(children, ChildInfo{
				Name:    filepath.Base(key),
				ID:      IDForKey(key),
				Size:    aws.ToInt64(obj.Size),
				Version: strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return children, nil
}

// keyFor validates a WOPI FileId and converts it to an S3 object key.
func keyFor(id string) (string, error) {
	if id == "" {
		return "", ErrInvalidID
	}
	key := strings.ReplaceAll(id, "|", "/")
	if strings.HasPrefix(key, "/") {
		return "", ErrInvalidID
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", ErrInvalidID
		}
	}
	return key, nil
}

// IDForKey converts an S3 object key to a WOPI FileId.
func IDForKey(key string) string {
	return strings.ReplaceAll(key, "/", "|")
}

// IDForName converts a bare file name (as supplied to Rename/PutRelativeFile)
// to a FileId in the same keyspace.
func IDForName(name string) string {
	return IDForKey(name)
}

func toSeekableReader(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	limited := io.LimitReader(r, maxUploadSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(data) > maxUploadSize {
		return nil, ErrTooLarge
	}
	return bytes.NewReader(data), nil
}

func contentTypeForFile(key string) string {
	types := map[string]string{
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".doc":  "application/msword",
		".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		".xls":  "application/vnd.ms-excel",
		".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		".ppt":  "application/vnd.ms-powerpoint",
		".pdf":  "application/pdf",
		".txt":  "text/plain",
		".csv":  "text/csv",
	}
	if ct, ok := types[strings.ToLower(filepath.Ext(key))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "404") || strings.Contains(msg, "NoSuchKey")
}

// isForbidden reports whether err is an S3 response denying access (bucket
// policy, IAM, or bearer-auth proxy), as opposed to the object being
// missing.
func isForbidden(err error) bool {
	if err == nil {
		return false
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusForbidden {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "AccessDenied") || strings.Contains(msg, "403")
}

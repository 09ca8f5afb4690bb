package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"filedrop/internal/config"
)

type fakeUploader struct {
	lastInput *transfermanager.UploadObjectInput
	err       error
}

func (f *fakeUploader) UploadObject(_ context.Context, input *transfermanager.UploadObjectInput, _ ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return &transfermanager.UploadObjectOutput{}, nil
}

type fakeS3API struct {
	getFn        func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error)
	headFn       func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	deleteFn     func(ctx context.Context, params *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error)
	headBucketFn func(ctx context.Context, params *s3.HeadBucketInput) (*s3.HeadBucketOutput, error)
	deleted      []string
}

func (f *fakeS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getFn == nil {
		return nil, errors.New("unexpected get object call")
	}
	return f.getFn(ctx, params)
}

func (f *fakeS3API) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if f.headFn == nil {
		return &s3.HeadObjectOutput{}, nil
	}
	return f.headFn(ctx, params)
}

func (f *fakeS3API) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *params.Key)
	if f.deleteFn == nil {
		return &s3.DeleteObjectOutput{}, nil
	}
	return f.deleteFn(ctx, params)
}

func (f *fakeS3API) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headBucketFn == nil {
		return &s3.HeadBucketOutput{}, nil
	}
	return f.headBucketFn(ctx, params)
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
}

func TestNewS3StoreValidationErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewS3Store(ctx, config.StorageConfig{Region: "us-west-2"})
	if err == nil || !strings.Contains(err.Error(), "s3 bucket is required") {
		t.Fatalf("expected missing bucket error, got: %v", err)
	}

	_, err = NewS3Store(ctx, config.StorageConfig{Bucket: "media"})
	if err == nil || !strings.Contains(err.Error(), "s3 region is required") {
		t.Fatalf("expected missing region error, got: %v", err)
	}

	_, err = NewS3Store(ctx, config.StorageConfig{Bucket: "media", Region: "us-west-2", Endpoint: "://bad"})
	if err == nil || !strings.Contains(err.Error(), "valid http(s) URL") {
		t.Fatalf("expected malformed endpoint error, got: %v", err)
	}

	_, err = NewS3Store(ctx, config.StorageConfig{Bucket: "media", Region: "us-west-2", Endpoint: "ftp://example.com"})
	if err == nil || !strings.Contains(err.Error(), "must use http or https") {
		t.Fatalf("expected endpoint scheme error, got: %v", err)
	}
}

func TestS3PutObject(t *testing.T) {
	uploader := &fakeUploader{}
	s := &S3Store{uploader: uploader, bucket: "media"}

	if err := s.Put(context.Background(), "id-a.txt", strings.NewReader("hello"), 5, "text/plain"); err != nil {
		t.Fatalf("put object failed: %v", err)
	}
	if uploader.lastInput == nil {
		t.Fatal("expected upload input to be captured")
	}
	if got := *uploader.lastInput.Bucket; got != "media" {
		t.Fatalf("bucket mismatch: got %q", got)
	}
	if got := *uploader.lastInput.Key; got != "id-a.txt" {
		t.Fatalf("key mismatch: got %q", got)
	}
	if got := *uploader.lastInput.ContentLength; got != 5 {
		t.Fatalf("content length mismatch: got %d", got)
	}
	if got := *uploader.lastInput.ContentType; got != "text/plain" {
		t.Fatalf("content type mismatch: got %q", got)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(uploader.lastInput.Body); err != nil {
		t.Fatalf("read upload body: %v", err)
	}
	if buf.String() != "hello" {
		t.Fatalf("body mismatch: got %q", buf.String())
	}
}

func TestS3PutObjectErrors(t *testing.T) {
	s := &S3Store{bucket: "media"}
	ctx := context.Background()

	if err := s.Put(ctx, "key", strings.NewReader("x"), 1, ""); err == nil || !strings.Contains(err.Error(), "s3 uploader is not configured") {
		t.Fatalf("expected missing uploader error, got: %v", err)
	}

	s.uploader = &fakeUploader{err: errors.New("boom")}
	if err := s.Put(ctx, "bad/../key", strings.NewReader("x"), 1, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected key validation error, got: %v", err)
	}
	if err := s.Put(ctx, "key", strings.NewReader("x"), 1, ""); err == nil || !strings.Contains(err.Error(), "put object: boom") {
		t.Fatalf("expected wrapped upload error, got: %v", err)
	}
}

func TestS3GetObject(t *testing.T) {
	api := &fakeS3API{
		getFn: func(_ context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			if *in.Key == "missing" {
				return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
			}
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("payload"))}, nil
		},
	}
	s := &S3Store{api: api, bucket: "media"}

	rc, err := s.Get(context.Background(), "key")
	if err != nil {
		t.Fatalf("get object failed: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "payload" {
		t.Fatalf("payload mismatch: got %q", got)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestS3DeleteObject(t *testing.T) {
	api := &fakeS3API{}
	s := &S3Store{api: api, bucket: "media"}

	if err := s.Delete(context.Background(), "id-a.txt"); err != nil {
		t.Fatalf("delete object failed: %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "id-a.txt" {
		t.Fatalf("expected one delete of id-a.txt, got %v", api.deleted)
	}
}

func TestS3DeleteObjectMissing(t *testing.T) {
	api := &fakeS3API{
		headFn: func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return nil, notFoundErr()
		},
	}
	s := &S3Store{api: api, bucket: "media"}

	if err := s.Delete(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(api.deleted) != 0 {
		t.Fatalf("delete must not be issued for a missing object, got %v", api.deleted)
	}
}

func TestS3DeleteObjectErrors(t *testing.T) {
	s := &S3Store{bucket: "media"}
	if err := s.Delete(context.Background(), "key"); err == nil || !strings.Contains(err.Error(), "s3 api client is not configured") {
		t.Fatalf("expected missing api error, got: %v", err)
	}

	s.api = &fakeS3API{
		deleteFn: func(context.Context, *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
			return nil, errors.New("boom")
		},
	}
	err := s.Delete(context.Background(), "key")
	if err == nil || !strings.Contains(err.Error(), "delete object: boom") {
		t.Fatalf("expected wrapped delete error, got: %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("generic failure must not be reported as not found")
	}
}

func TestS3DeleteObjectTimeout(t *testing.T) {
	s := &S3Store{
		bucket:        "media",
		deleteTimeout: 20 * time.Millisecond,
		api: &fakeS3API{
			headFn: func(ctx context.Context, _ *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			},
		},
	}

	err := s.Delete(context.Background(), "key")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got: %v", err)
	}
}

func TestS3Ping(t *testing.T) {
	s := &S3Store{bucket: "media", api: &fakeS3API{}}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	s.api = &fakeS3API{headBucketFn: func(context.Context, *s3.HeadBucketInput) (*s3.HeadBucketOutput, error) {
		return nil, errors.New("forbidden")
	}}
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

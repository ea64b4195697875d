package s3store_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/samirrijal/fieldnav/internal/adapters/s3store"
	"github.com/samirrijal/fieldnav/internal/core/domain"
)

// fakeS3 keeps objects in memory keyed by bucket/key.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func TestStore_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	s := s3store.NewWithClient(fake, "fieldnav", "registry/customers.json")
	ctx := context.Background()

	if got, err := s.Load(ctx); err != nil || len(got) != 0 {
		t.Fatalf("missing object: got %v, %v", got, err)
	}

	want := []domain.Customer{
		{ID: 2, Name: "Customer B", Latitude: 6.9147, Longitude: 79.9733},
		{ID: 7, Name: "Customer G", Latitude: 6.0535, Longitude: 80.2210, Contact: "gate 3"},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if ct := fake.types["fieldnav/registry/customers.json"]; ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestStore_SaveFailure(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("service unavailable")
	s := s3store.NewWithClient(fake, "fieldnav", "customers.json")

	if err := s.Save(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestStore_CorruptObject(t *testing.T) {
	fake := newFakeS3()
	fake.objects["fieldnav/customers.json"] = []byte("not json")
	s := s3store.NewWithClient(fake, "fieldnav", "customers.json")

	if _, err := s.Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	if _, err := s3store.New(context.Background(), s3store.Config{Key: "x"}); err == nil {
		t.Error("expected error without bucket")
	}
}

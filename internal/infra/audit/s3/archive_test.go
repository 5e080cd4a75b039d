package s3

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"rentdesk/internal/app/audit"
)

type fakeStore struct {
	exists    bool
	existsErr error
	made      int
	objects   map[string][]byte
	types     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+object] = data
	f.types[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func entry() audit.Entry {
	return audit.Entry{
		ID:         "a-1",
		ActorID:    "staff-7",
		Action:     "reschedule",
		EntityType: "booking",
		EntityID:   "b-1",
		BeforeJSON: `{"check_in":"2024-02-01"}`,
		AfterJSON:  `{"check_in":"2024-02-03"}`,
		At:         time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC),
	}
}

func TestArchiveWritesJSONObject(t *testing.T) {
	store := newFakeStore()
	a := newArchive(store, "rentdesk-audit", nil)

	if err := a.Write(context.Background(), entry()); err != nil {
		t.Fatal(err)
	}
	key := "rentdesk-audit/audit/2024/01/31/booking/b-1/a-1.json"
	data, ok := store.objects[key]
	if !ok {
		t.Fatalf("object not written, have %v", store.objects)
	}
	if store.types[key] != "application/json" {
		t.Fatalf("unexpected content type %q", store.types[key])
	}
	var obj struct {
		ActorID string            `json:"actor_id"`
		Before  map[string]string `json:"before"`
		After   map[string]string `json:"after"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatal(err)
	}
	if obj.ActorID != "staff-7" || obj.Before["check_in"] != "2024-02-01" || obj.After["check_in"] != "2024-02-03" {
		t.Fatalf("unexpected object %s", data)
	}
}

func TestArchiveCreatesBucketOnce(t *testing.T) {
	store := newFakeStore()
	a := newArchive(store, "b", nil)
	for i := 0; i < 3; i++ {
		if err := a.Write(context.Background(), entry()); err != nil {
			t.Fatal(err)
		}
	}
	if store.made != 1 {
		t.Fatalf("expected bucket created once, got %d", store.made)
	}
}

func TestArchiveReportsBucketError(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("denied")
	a := newArchive(store, "b", nil)
	if err := a.Write(context.Background(), entry()); err == nil {
		t.Fatal("expected bucket check error")
	}
}

func TestObjectKeyEscapesSlashes(t *testing.T) {
	a := newArchive(newFakeStore(), "b", nil)
	e := entry()
	e.EntityID = "odd/id"
	e.EntityType = ""
	if got, want := a.objectKey(e), "audit/2024/01/31/_/odd_id/a-1.json"; got != want {
		t.Fatalf("objectKey = %q, want %q", got, want)
	}
}

func TestNewArchiveValidatesInput(t *testing.T) {
	if _, err := NewArchive("", false, "", "", "b", nil); err == nil {
		t.Fatal("expected endpoint error")
	}
	if _, err := NewArchive("http://localhost:9000", false, "", "", " ", nil); err == nil {
		t.Fatal("expected bucket error")
	}
}

package state

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 serves the handful of path-style S3 calls ObjectRunStore makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	calls   []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	key, _ = url.PathUnescape(key)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" /"+bucket+"/"+key)

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, err := readS3Payload(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.objects[bucket+"/"+key] = body
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		body, ok := f.objects[bucket+"/"+key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message><Key>%s</Key><BucketName>%s</BucketName><RequestId>1</RequestId><HostId>1</HostId></Error>`, key, bucket)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag-1"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	case r.Method == http.MethodDelete:
		delete(f.objects, bucket+"/"+key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	return body, ok
}

// readS3Payload strips aws-chunked framing, which the client uses for signed uploads over
// plain HTTP.
func readS3Payload(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return raw, nil
	}
	var out []byte
	br := bufio.NewReader(bytes.NewReader(raw))
	for {
		header, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimSpace(header), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out, nil
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(br, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func newTestObjectStore(t *testing.T) (*ObjectRunStore, *fakeS3) {
	t.Helper()
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewObjectRunStore(ObjectStoreConfig{
		Endpoint:  strings.TrimPrefix(server.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "synthesis-runs",
		Prefix:    "runs",
		UseSSL:    false,
	})
	if err != nil {
		t.Fatalf("NewObjectRunStore() error = %v", err)
	}
	return store, fake
}

func TestObjectRunStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store, fake := newTestObjectStore(t)
	ctx := context.Background()

	seed := NewSynthesisState("run-7", FoundationData{Business: BusinessIdentity{Name: "Acme"}}, time.Now())
	seed.Status = append(seed.Status, "icp_builder completed")
	if err := store.Save(ctx, seed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	body, ok := fake.object("synthesis-runs/runs/run-7.json")
	if !ok {
		t.Fatalf("object not written, calls = %v", fake.calls)
	}
	if !bytes.Contains(body, []byte(`"run-7"`)) {
		t.Fatalf("unexpected object body: %s", body)
	}

	got, err := store.Load(ctx, "run-7")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.RunID != "run-7" || got.Foundation.Business.Name != "Acme" || len(got.Status) != 1 {
		t.Fatalf("unexpected state: %+v", got)
	}

	if err := store.Delete(ctx, "run-7"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := fake.object("synthesis-runs/runs/run-7.json"); ok {
		t.Fatalf("object still present after Delete")
	}
}

func TestObjectRunStoreCreatesMissingBucketOnce(t *testing.T) {
	t.Parallel()

	store, fake := newTestObjectStore(t)
	ctx := context.Background()
	for _, id := range []string{"run-a", "run-b"} {
		if err := store.Save(ctx, NewSynthesisState(id, FoundationData{}, time.Now())); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	heads, creates := 0, 0
	for _, c := range fake.calls {
		switch c {
		case "HEAD /synthesis-runs/":
			heads++
		case "PUT /synthesis-runs/":
			creates++
		}
	}
	if heads != 1 || creates != 1 {
		t.Fatalf("bucket checks = %d, creates = %d, want 1 and 1; calls = %v", heads, creates, fake.calls)
	}
}

func TestObjectRunStoreLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestObjectStore(t)
	_, err := store.Load(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("Load() error = %v, want ErrRunNotFound", err)
	}
}

func TestObjectRunStoreRejectsBadInput(t *testing.T) {
	t.Parallel()

	store, _ := newTestObjectStore(t)
	ctx := context.Background()
	if err := store.Save(ctx, nil); !errors.Is(err, ErrNilRunState) {
		t.Fatalf("Save(nil) error = %v, want ErrNilRunState", err)
	}
	if _, err := store.Load(ctx, " "); !errors.Is(err, ErrInvalidRun) {
		t.Fatalf("Load(blank) error = %v, want ErrInvalidRun", err)
	}
}

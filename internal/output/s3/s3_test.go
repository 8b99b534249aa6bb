package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/hejijunhao/sleuth/internal/model"
)

// fakeClient fails the first `failures` calls and records every input.
type fakeClient struct {
	mu       sync.Mutex
	failures int
	calls    int
	inputs   []*s3.PutObjectInput
	bodies   [][]byte
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	if f.calls <= f.failures {
		return nil, errors.New("service unavailable")
	}
	return &s3.PutObjectOutput{}, nil
}

func testReport() model.Report {
	return model.Report{
		Summary:  model.Summary{TotalEvents: 7, FilesScanned: 3},
		Findings: []model.Finding{{Category: "disk", Severity: model.SeverityFatal, Count: 7}},
	}
}

func testConfig() Config {
	return Config{Bucket: "bundles", Prefix: "reports", Backoff: time.Millisecond}
}

func decode(t *testing.T, body []byte) model.Report {
	t.Helper()
	gz, err := gzip.NewReader(strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var r model.Report
	if err := json.NewDecoder(gz).Decode(&r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return r
}

func TestWriteUploadsGzipJSON(t *testing.T) {
	fc := &fakeClient{}
	out, err := New(context.Background(), testConfig(), WithClient(fc), WithKeyFunc(func() string { return "reports/run-1.json.gz" }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := out.Write(context.Background(), testReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("calls = %d, want 1", fc.calls)
	}

	in := fc.inputs[0]
	if aws.ToString(in.Bucket) != "bundles" || aws.ToString(in.Key) != "reports/run-1.json.gz" {
		t.Errorf("unexpected destination s3://%s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentEncoding) != "gzip" || aws.ToString(in.ContentType) != "application/json" {
		t.Errorf("unexpected headers: %q %q", aws.ToString(in.ContentType), aws.ToString(in.ContentEncoding))
	}
	if aws.ToInt64(in.ContentLength) != int64(len(fc.bodies[0])) {
		t.Errorf("content length = %d, body is %d bytes", aws.ToInt64(in.ContentLength), len(fc.bodies[0]))
	}
	if r := decode(t, fc.bodies[0]); r.Summary.TotalEvents != 7 || r.Findings[0].Severity != model.SeverityFatal {
		t.Errorf("unexpected uploaded report: %+v", r)
	}
}

func TestWriteRetriesThenSucceeds(t *testing.T) {
	fc := &fakeClient{failures: 2}
	out, err := New(context.Background(), testConfig(), WithClient(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := out.Write(context.Background(), testReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if fc.calls != 3 {
		t.Fatalf("calls = %d, want 3", fc.calls)
	}
	// Every attempt sends the full body under the same key.
	for i := range fc.bodies {
		if len(fc.bodies[i]) != len(fc.bodies[0]) {
			t.Errorf("attempt %d sent %d bytes, want %d", i+1, len(fc.bodies[i]), len(fc.bodies[0]))
		}
		if aws.ToString(fc.inputs[i].Key) != aws.ToString(fc.inputs[0].Key) {
			t.Errorf("attempt %d used a different key", i+1)
		}
	}
}

func TestWriteGivesUpAfterRetries(t *testing.T) {
	fc := &fakeClient{failures: 100}
	cfg := testConfig()
	cfg.Retries = 4
	out, err := New(context.Background(), cfg, WithClient(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = out.Write(context.Background(), testReport())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "4 attempts") || !strings.Contains(err.Error(), "service unavailable") {
		t.Errorf("unexpected error: %v", err)
	}
	if fc.calls != 4 {
		t.Fatalf("calls = %d, want 4", fc.calls)
	}
}

func TestWriteHonorsCancellation(t *testing.T) {
	fc := &fakeClient{failures: 100}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := New(context.Background(), testConfig(), WithClient(fc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = out.Write(ctx, testReport())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if fc.calls != 0 {
		t.Fatalf("calls = %d, want 0", fc.calls)
	}
}

func TestDefaultKey(t *testing.T) {
	out, err := New(context.Background(), testConfig(), WithClient(&fakeClient{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, b := out.key(), out.key()
	if a == b {
		t.Fatalf("keys should be unique, got %q twice", a)
	}
	if !strings.HasPrefix(a, "reports/") || !strings.HasSuffix(a, ".json.gz") {
		t.Fatalf("unexpected key %q", a)
	}
	if parts := strings.Split(a, "/"); len(parts) != 5 {
		t.Fatalf("key %q should be prefix/yyyy/mm/dd/name", a)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, WithClient(&fakeClient{}))
	if !errors.Is(err, ErrNoBucket) {
		t.Fatalf("expected ErrNoBucket, got %v", err)
	}
}

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/hejijunhao/sleuth/internal/engine/catalog"
	"github.com/hejijunhao/sleuth/internal/model"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(catalog.Spec{
		Profiles: []catalog.ProfileSpec{
			{
				Name:  "etcd",
				Globs: []string{"*etcd*"},
				Patterns: []catalog.PatternSpec{
					{ID: "etcd.disk", Pattern: "disk full", Severity: "ERROR", Category: "disk"},
					{ID: "etcd.panic", Pattern: `^panic: `, Regex: true, CaseSensitive: true, Severity: "CRITICAL", Category: "crash", Multiline: true},
				},
			},
			{Name: "bare", Globs: []string{"*bare*"}},
		},
		FastPath: []catalog.PatternSpec{
			{ID: "fast.panic", Pattern: `^panic: `, Regex: true, CaseSensitive: true, Severity: "CRITICAL", Category: "crash"},
		},
	})
	if err != nil {
		t.Fatalf("catalog.New() error: %v", err)
	}
	return c
}

var etcd = model.LogType{Component: "etcd", Basis: model.BasisGlob}

func collect(t *testing.T, s *Scanner, input string, lt model.LogType) ([]model.MatchEvent, model.FileStats) {
	t.Helper()
	var st model.FileStats
	events := slices.Collect(s.Events(context.Background(), "test.log", strings.NewReader(input), lt, &st))
	return events, st
}

func TestScanFirstMatchWins(t *testing.T) {
	s := New(testCatalog(t), Config{})
	input := strings.Join([]string{
		"2024-01-01T00:00:00Z info all good",
		"2024-01-01T00:00:01Z ERROR disk full on /var req=abc123",
		"2024-01-01T00:00:02Z connection failed",
		"",
	}, "\n")

	events, st := collect(t, s, input, etcd)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}

	disk := events[0]
	if disk.PatternID != "etcd.disk" || disk.Severity != model.SeverityError || disk.Category != "disk" {
		t.Errorf("first event = %+v, want etcd.disk", disk)
	}
	if disk.LineStart != 2 || disk.LineEnd != 2 {
		t.Errorf("lines = %d..%d, want 2..2", disk.LineStart, disk.LineEnd)
	}
	if !slices.Equal(disk.Keys, []string{"abc123"}) {
		t.Errorf("keys = %v, want [abc123]", disk.Keys)
	}
	if !disk.HasTimestamp() || disk.Timestamp.Second() != 1 {
		t.Errorf("timestamp = %v, want 00:00:01", disk.Timestamp)
	}
	if disk.File != "test.log" || disk.Component != "etcd" {
		t.Errorf("file/component = %q/%q", disk.File, disk.Component)
	}

	if events[1].PatternID != "fallback.error_marker" || events[1].Category != "uncategorized" {
		t.Errorf("second event = %+v, want fallback", events[1])
	}

	if st.Lines != 3 || st.Events != 2 || st.Status != model.FileOK {
		t.Errorf("stats = %+v", st)
	}
	if st.Bytes != int64(len(input)) {
		t.Errorf("bytes = %d, want %d", st.Bytes, len(input))
	}
}

func TestScanDeterministic(t *testing.T) {
	s := New(testCatalog(t), Config{})
	var b strings.Builder
	for i := range 500 {
		fmt.Fprintf(&b, "2024-01-01T00:00:%02dZ line %d disk full txn=t%04d\n", i%60, i, i)
		fmt.Fprintf(&b, "2024-01-01T00:00:%02dZ quiet %d\n", i%60, i)
	}
	input := b.String()

	first, _ := collect(t, s, input, etcd)
	second, _ := collect(t, s, input, etcd)
	if len(first) != 500 {
		t.Fatalf("got %d events, want 500", len(first))
	}
	for i := range first {
		if first[i].LineStart != second[i].LineStart || first[i].Text != second[i].Text ||
			!slices.Equal(first[i].Keys, second[i].Keys) {
			t.Fatalf("event %d differs between scans:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestScanOversizeLine(t *testing.T) {
	s := New(testCatalog(t), Config{MaxLineLength: 1024})
	var b strings.Builder
	for i := 1; i <= 10000; i++ {
		switch i {
		case 5000:
			b.WriteString("disk full " + strings.Repeat("x", 200_000) + "\n")
		case 9000:
			b.WriteString("ERROR disk full\n")
		default:
			fmt.Fprintf(&b, "line %d ok\n", i)
		}
	}

	events, st := collect(t, s, b.String(), etcd)
	if st.Anomalies.Oversize != 1 {
		t.Errorf("oversize = %d, want 1", st.Anomalies.Oversize)
	}
	if st.Lines != 10000 {
		t.Errorf("lines = %d, want 10000", st.Lines)
	}
	if len(events) != 1 || events[0].LineStart != 9000 {
		t.Fatalf("events = %+v, want one at line 9000", events)
	}
	if st.Status != model.FileOK {
		t.Errorf("status = %q, want ok", st.Status)
	}
}

func TestScanEmptyInput(t *testing.T) {
	s := New(testCatalog(t), Config{})
	events, st := collect(t, s, "", etcd)
	if len(events) != 0 || st.Lines != 0 || st.Anomalies.Total() != 0 || st.Status != model.FileOK {
		t.Errorf("empty input: events=%v stats=%+v", events, st)
	}
}

func TestScanInvalidUTF8(t *testing.T) {
	s := New(testCatalog(t), Config{})
	input := "disk full \xff\xfe here\nplain\r\n"
	events, st := collect(t, s, input, etcd)
	if st.Anomalies.Decode != 1 {
		t.Errorf("decode anomalies = %d, want 1", st.Anomalies.Decode)
	}
	if len(events) != 1 || !strings.Contains(events[0].Text, "�") {
		t.Fatalf("events = %+v, want one repaired line", events)
	}
	if st.Lines != 2 {
		t.Errorf("lines = %d, want 2", st.Lines)
	}
}

func TestScanMultilineBlock(t *testing.T) {
	s := New(testCatalog(t), Config{})
	input := strings.Join([]string{
		"starting",
		"panic: runtime error: index out of range",
		"",
		"goroutine 1 [running]:",
		"\tmain.main()",
		"\t\t/src/main.go:12 +0x1d",
		"disk full",
	}, "\n")

	events, _ := collect(t, s, input, etcd)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	// The blank line does not continue the block.
	if got := events[0]; got.LineStart != 2 || got.LineEnd != 2 {
		t.Errorf("panic block = %d..%d, want 2..2", got.LineStart, got.LineEnd)
	}

	input = strings.Replace(input, "\n\n", "\n", 1)
	events, _ = collect(t, s, input, etcd)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	panicEv := events[0]
	if panicEv.LineStart != 2 || panicEv.LineEnd != 5 || panicEv.Severity != model.SeverityCritical {
		t.Errorf("panic block = %+v, want lines 2..5 CRITICAL", panicEv)
	}
	if !strings.Contains(panicEv.Text, "main.go:12") {
		t.Errorf("block text missing frame: %q", panicEv.Text)
	}
	if events[1].LineStart != 6 {
		t.Errorf("following event at line %d, want 6", events[1].LineStart)
	}
}

func TestScanMultilineBlockBounded(t *testing.T) {
	s := New(testCatalog(t), Config{MaxBlockLines: 3})
	input := "panic: boom\n\tframe 1\n\tframe 2\n\tframe 3\n\tframe 4\n"
	events, _ := collect(t, s, input, etcd)
	if len(events) == 0 {
		t.Fatal("no events")
	}
	if got := events[0]; got.LineEnd-got.LineStart+1 != 3 {
		t.Errorf("block spans %d lines, want 3", got.LineEnd-got.LineStart+1)
	}
}

func TestScanQuickMode(t *testing.T) {
	s := New(testCatalog(t), Config{Quick: true})
	input := "disk full\npanic: boom\nsomething failed\n"
	events, _ := collect(t, s, input, etcd)

	var ids []string
	for _, e := range events {
		ids = append(ids, e.PatternID)
	}
	want := []string{"fast.panic", "fallback.error_marker"}
	if !slices.Equal(ids, want) {
		t.Errorf("quick ids = %v, want %v", ids, want)
	}
}

func TestScanComponentWithoutPatternsUsesFastPath(t *testing.T) {
	s := New(testCatalog(t), Config{})
	for _, lt := range []model.LogType{{Component: "bare"}, model.Unknown()} {
		events, _ := collect(t, s, "panic: boom\n", lt)
		if len(events) != 1 || events[0].PatternID != "fast.panic" {
			t.Errorf("%s: events = %+v, want fast.panic", lt.Component, events)
		}
	}
}

func TestScanCancelled(t *testing.T) {
	s := New(testCatalog(t), Config{CheckEvery: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var st model.FileStats
	events := slices.Collect(s.Events(ctx, "test.log", strings.NewReader("disk full\n"), etcd, &st))
	if len(events) != 0 {
		t.Errorf("got %d events after cancel", len(events))
	}
	if st.Status != model.FileTruncated {
		t.Errorf("status = %q, want truncated", st.Status)
	}
}

func TestScanCancelledMidFile(t *testing.T) {
	s := New(testCatalog(t), Config{CheckEvery: 100})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := strings.Repeat("disk full\n", 1000)
	var st model.FileStats
	var n int
	for range s.Events(ctx, "test.log", strings.NewReader(input), etcd, &st) {
		n++
		if n == 150 {
			cancel()
		}
	}
	if st.Status != model.FileTruncated {
		t.Fatalf("status = %q, want truncated", st.Status)
	}
	if n != 200 {
		t.Errorf("got %d events, want 200 (next check boundary)", n)
	}
}

func TestScanStopEarly(t *testing.T) {
	s := New(testCatalog(t), Config{})
	input := strings.Repeat("disk full\n", 10)
	var n int
	for range s.Events(context.Background(), "test.log", strings.NewReader(input), etcd, nil) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("iterated %d events, want 3", n)
	}
}

func TestScanFile(t *testing.T) {
	s := New(testCatalog(t), Config{})
	path := filepath.Join(t.TempDir(), "etcd.log")
	if err := os.WriteFile(path, []byte("ok\nERROR disk full\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Scan(context.Background(), path, nil, etcd)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if len(res.Events) != 1 || res.Stats.Events != 1 || res.Stats.Path != path {
		t.Errorf("result = %+v", res)
	}

	again, err := s.Scan(context.Background(), path, nil, etcd)
	if err != nil {
		t.Fatalf("second Scan() error: %v", err)
	}
	if len(again.Events) != len(res.Events) || again.Events[0].Text != res.Events[0].Text {
		t.Errorf("rescan differs: %+v vs %+v", again.Events, res.Events)
	}
}

func TestScanMissingFile(t *testing.T) {
	s := New(testCatalog(t), Config{})
	res, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "gone.log"), nil, etcd)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
	if res.Stats.Status != model.FileFailed || res.Stats.Reason == "" {
		t.Errorf("stats = %+v, want failed with reason", res.Stats)
	}
}

type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestScanReadErrorKeepsPartialResult(t *testing.T) {
	s := New(testCatalog(t), Config{})
	boom := errors.New("device went away")
	open := func(string) (io.ReadCloser, error) {
		return io.NopCloser(&failingReader{data: "disk full\n", err: boom}), nil
	}

	res, err := s.Scan(context.Background(), "etcd.log", open, etcd)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if len(res.Events) != 1 {
		t.Errorf("partial events = %d, want 1", len(res.Events))
	}
	if res.Stats.Status != model.FileFailed {
		t.Errorf("status = %q, want failed", res.Stats.Status)
	}
}

func TestScanDefaultCatalog(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	s := New(cat, Config{})

	kubelet := model.LogType{Component: "kubelet"}
	input := strings.Join([]string{
		"2024-01-01T00:00:02Z FATAL network unreachable for request abc123",
		"I0101 00:00:03 kubelet.go:100] Container web OOMKilled",
		"Exception in thread \"main\" java.lang.OutOfMemoryError: Java heap space",
		"\tat com.example.Cache.grow(Cache.java:42)",
	}, "\n")
	events, _ := collect(t, s, input, kubelet)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Severity != model.SeverityFatal {
		t.Errorf("first event severity = %s, want FATAL", events[0].Severity)
	}
	if events[1].PatternID != "kubelet.oomkilled" {
		t.Errorf("second event = %s, want kubelet.oomkilled", events[1].PatternID)
	}
	// shared.oom is not multiline, so the frame is not absorbed.
	if events[2].LineEnd != 3 {
		t.Errorf("third event ends at %d, want 3", events[2].LineEnd)
	}
}

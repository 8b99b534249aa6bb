package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hejijunhao/sleuth/internal/model"
)

func minimalSpec() Spec {
	return Spec{
		Version: "test",
		Profiles: []ProfileSpec{
			{
				Name:  "db",
				Globs: []string{"*db*"},
				Patterns: []PatternSpec{
					{ID: "db.deadlock", Pattern: "deadlock detected", Severity: "ERROR", Category: "database"},
					{ID: "db.fatal", Pattern: `FATAL:`, CaseSensitive: true, Severity: "FATAL", Category: "database"},
				},
			},
			{
				Name:  "web",
				Globs: []string{"*web*"},
			},
		},
		FastPath: []PatternSpec{
			{ID: "fast.panic", Pattern: `^panic: `, Regex: true, CaseSensitive: true, Severity: "CRITICAL", Category: "crash"},
		},
	}
}

func TestNewMinimal(t *testing.T) {
	c, err := New(minimalSpec())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if c.Version() != "test" {
		t.Errorf("Version() = %q, want test", c.Version())
	}

	profiles := c.Profiles()
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].Name != "db" || profiles[1].Name != "web" {
		t.Errorf("registration order not preserved: %q, %q", profiles[0].Name, profiles[1].Name)
	}

	pats := c.PatternsFor("db")
	if len(pats) != 2 {
		t.Fatalf("expected 2 db patterns, got %d", len(pats))
	}
	if pats[0].ID != "db.deadlock" || pats[1].ID != "db.fatal" {
		t.Errorf("pattern order = %q, %q", pats[0].ID, pats[1].ID)
	}
	if len(c.PatternsFor("web")) != 0 {
		t.Error("web should have no patterns")
	}
	if c.PatternsFor("nope") != nil {
		t.Error("unknown component should return nil")
	}
	if len(c.FastPath()) != 1 {
		t.Errorf("expected 1 fast-path pattern, got %d", len(c.FastPath()))
	}
	if c.Fallback().Category != "uncategorized" || c.Fallback().Severity != model.SeverityError {
		t.Errorf("fallback = %s/%s", c.Fallback().Category, c.Fallback().Severity)
	}
	if c.Block().MaxLines != DefaultMaxBlockLines {
		t.Errorf("block max lines = %d", c.Block().MaxLines)
	}
}

func TestNewRejectsWholeCatalogOnOneBadRegex(t *testing.T) {
	spec := minimalSpec()
	spec.Profiles[1].Patterns = []PatternSpec{
		{ID: "web.ok", Pattern: "upstream timed out", Severity: "ERROR", Category: "network"},
		{ID: "web.bad", Pattern: `(unclosed`, Regex: true, Severity: "ERROR", Category: "network"},
	}

	c, err := New(spec)
	if err == nil {
		t.Fatal("expected error for bad regex")
	}
	if c != nil {
		t.Fatal("no partial catalog may be returned")
	}
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Errorf("error should wrap ErrInvalidCatalog: %v", err)
	}
	if !strings.Contains(err.Error(), "web.bad") {
		t.Errorf("error should name the offending pattern: %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		want   string
	}{
		{"empty pattern", func(s *Spec) {
			s.Profiles[0].Patterns[0].Pattern = ""
		}, "empty pattern"},
		{"bad severity", func(s *Spec) {
			s.Profiles[0].Patterns[0].Severity = "LOUD"
		}, "unknown severity"},
		{"empty category", func(s *Spec) {
			s.Profiles[0].Patterns[0].Category = " "
		}, "empty category"},
		{"no globs", func(s *Spec) {
			s.Profiles[1].Globs = nil
		}, "at least one glob"},
		{"bad glob", func(s *Spec) {
			s.Profiles[1].Globs = []string{"[web"}
		}, "bad glob"},
		{"duplicate profile", func(s *Spec) {
			s.Profiles[1].Name = "db"
		}, "duplicate name"},
		{"reserved name", func(s *Spec) {
			s.Profiles[1].Name = model.UnknownComponent
		}, "reserved"},
		{"bad fast path", func(s *Spec) {
			s.FastPath[0].Pattern = `[z-a]`
		}, "fast_path"},
		{"bad fallback", func(s *Spec) {
			s.Fallback = &PatternSpec{Pattern: `(`, Regex: true, Severity: "ERROR", Category: "x"}
		}, "fallback"},
		{"bad block", func(s *Spec) {
			s.Block = &BlockSpec{Continuation: `(`}
		}, "block"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := minimalSpec()
			tt.mutate(&spec)
			_, err := New(spec)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSharedPatternsAppendedAfterOwn(t *testing.T) {
	spec := minimalSpec()
	spec.Shared = []PatternSpec{
		{ID: "shared.fatal", Pattern: `\bFATAL\b`, Regex: true, CaseSensitive: true, Severity: "FATAL", Category: "general"},
	}
	c, err := New(spec)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	db := c.PatternsFor("db")
	if len(db) != 3 || db[2].ID != "shared.fatal" {
		t.Fatalf("shared pattern should come last for db, got %d patterns", len(db))
	}
	web := c.PatternsFor("web")
	if len(web) != 1 || web[0].ID != "shared.fatal" {
		t.Fatalf("web should inherit the shared pattern")
	}
}

func TestPatternsForReturnsCopy(t *testing.T) {
	c, err := New(minimalSpec())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	pats := c.PatternsFor("db")
	pats[0].Category = "mutated"
	if c.PatternsFor("db")[0].Category != "database" {
		t.Error("catalog must not be mutable through returned slices")
	}
}

func TestMatchers(t *testing.T) {
	insensitive := NewLiteral("Deadlock Detected", false)
	sensitive := NewLiteral("FATAL:", true)
	rx, err := NewRegex(`connection (refused|reset)`, false)
	if err != nil {
		t.Fatalf("NewRegex() error: %v", err)
	}

	tests := []struct {
		name string
		m    Matcher
		line string
		want bool
	}{
		{"literal insensitive hit", insensitive, "ERROR: deadlock detected on relation 42", true},
		{"literal insensitive miss", insensitive, "all good", false},
		{"literal sensitive hit", sensitive, "FATAL: role does not exist", true},
		{"literal sensitive case miss", sensitive, "fatal: lower", false},
		{"regex insensitive", rx, "dial tcp: Connection Refused", true},
		{"regex miss", rx, "connection established", false},
		{"literal raw line", insensitive, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Match(NewLine(tt.line)); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}

	// A Line built without NewLine still matches case-insensitively.
	if !insensitive.Match(Line{Text: "DEADLOCK DETECTED"}) {
		t.Error("literal should lower-case an unprepared line")
	}
}

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	if c.Version() != DefaultVersion {
		t.Errorf("Version() = %q", c.Version())
	}
	if len(c.Profiles()) == 0 {
		t.Fatal("default catalog has no profiles")
	}
	for _, p := range c.Profiles() {
		if len(p.Globs) == 0 {
			t.Errorf("profile %q has no globs", p.Name)
		}
		if len(p.Patterns) == 0 {
			t.Errorf("profile %q has no patterns", p.Name)
		}
	}
	if len(c.FastPath()) == 0 || len(c.FastPath()) > 12 {
		t.Errorf("fast path should be a small subset, got %d", len(c.FastPath()))
	}
}

func TestDefaultDescriptions(t *testing.T) {
	spec := DefaultSpec()
	ids := make(map[string]bool)
	check := func(p PatternSpec) {
		if p.Description == "" {
			t.Errorf("%s has empty description", p.ID)
		}
		if ids[p.ID] && !strings.HasPrefix(p.ID, "fast.") {
			t.Errorf("duplicate pattern id %s", p.ID)
		}
		ids[p.ID] = true
	}
	for _, prof := range spec.Profiles {
		for _, p := range prof.Patterns {
			check(p)
		}
	}
	for _, p := range spec.Shared {
		check(p)
	}
	for _, p := range spec.FastPath {
		check(p)
	}
}

func TestDefaultSpecificBeforeGeneric(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	tests := []struct {
		component string
		line      string
		wantID    string
	}{
		{"postgres", `2024-05-01 10:00:00 UTC FATAL:  password authentication failed for user "app"`, "postgres.auth"},
		{"postgres", `2024-05-01 10:00:00 UTC FATAL:  terminating connection due to administrator command`, "postgres.fatal"},
		{"apiserver", `E0501 10:00:00.000 etcdserver: request timed out`, "apiserver.etcd_timeout"},
		{"kubelet", `Warning BackOff Back-off restarting failed container`, "kubelet.crashloop"},
		{"etcd", `2024-01-01T00:00:00Z ERROR disk full req=abc123`, "shared.disk_full"},
		{"kubelet", `2024-01-01T00:00:03Z FATAL network req=abc123`, "shared.level_fatal"},
		{"jvm", `Exception in thread "main" java.lang.IllegalStateException: boom`, "jvm.exception"},
		{"kernel", `kernel: Out of memory: Killed process 4242 (java)`, "kernel.oom_kill"},
	}
	for _, tt := range tests {
		line := NewLine(tt.line)
		got := ""
		for _, p := range c.PatternsFor(tt.component) {
			if p.Match(line) {
				got = p.ID
				break
			}
		}
		if got != tt.wantID {
			t.Errorf("%s %q matched %q, want %q", tt.component, tt.line, got, tt.wantID)
		}
	}
}

func TestBlockPolicy(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	b := c.Block()
	for _, line := range []string{
		"\tat com.example.Service.run(Service.java:42)",
		"    at org.apache.Foo.bar(Foo.java:1)",
		"Caused by: java.io.IOException: broken",
		"\t... 12 more",
		`  File "/app/main.py", line 3, in <module>`,
		"goroutine 1 [running]:",
	} {
		if !b.Continues(line) {
			t.Errorf("expected %q to continue a block", line)
		}
	}
	for _, line := range []string{
		"2024-01-01 INFO next record",
		"",
		"ERROR something else",
	} {
		if b.Continues(line) {
			t.Errorf("expected %q to end a block", line)
		}
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
version: "1"
profiles:
  - name: broker
    globs: ["*broker*"]
    signatures: ["amqp"]
    patterns:
      - id: broker.unreachable
        pattern: "connection_closed_abruptly"
        severity: ERROR
        category: network
        description: Client dropped
fast_path:
  - id: fast.crash
    pattern: "^panic: "
    regex: true
    case_sensitive: true
    severity: CRITICAL
    category: crash
block:
  continuation: '^\s+at '
  max_lines: 10
`
	c, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := c.PatternsFor("broker"); len(got) != 1 || got[0].ID != "broker.unreachable" {
		t.Fatalf("unexpected broker patterns: %+v", got)
	}
	if c.Block().MaxLines != 10 {
		t.Errorf("block max lines = %d, want 10", c.Block().MaxLines)
	}
	if c.Fallback().ID != "fallback.error_marker" {
		t.Errorf("missing fallback should use default, got %q", c.Fallback().ID)
	}
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("profiles:\n  - name: x\n    globz: ['*x*']\n"))
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
}

func TestLoadFileRoundTrip(t *testing.T) {
	data, err := Marshal(DefaultSpec())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	def, _ := Default()
	if len(c.Profiles()) != len(def.Profiles()) {
		t.Errorf("profiles = %d, want %d", len(c.Profiles()), len(def.Profiles()))
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

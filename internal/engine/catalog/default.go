package catalog

// DefaultVersion identifies the built-in rule set.
const DefaultVersion = "2026.10"

// DefaultFallback is the broad error-marker regex applied to lines no other
// rule matched.
func DefaultFallback() PatternSpec {
	return PatternSpec{
		ID:       "fallback.error_marker",
		Pattern:  `\b(?:error|errors|err|exception|fail(?:ed|ure|ing)?|fatal|panic(?:ked)?|critical|severe|refused|denied|unavailable|abort(?:ed)?|corrupt(?:ed|ion)?)\b`,
		Regex:    true,
		Severity: "ERROR",
		Category: "uncategorized",
	}
}

// DefaultBlock is the built-in multi-line continuation policy: indented
// frames, JVM "Caused by" chains, Python frames, and Go goroutine headers.
func DefaultBlock() BlockSpec {
	return BlockSpec{
		Continuation: `^(?:\s+at\s|\s+\.\.\.\s\d+\s(?:more|common frames omitted)|Caused by:|\s+File "|\t|\s{2,}\S|goroutine \d+ \[|\[signal )`,
		MaxLines:     DefaultMaxBlockLines,
	}
}

// DefaultSpec returns the built-in catalog definition. Profiles are listed
// by expected frequency in a platform support bundle.
func DefaultSpec() Spec {
	fb := DefaultFallback()
	block := DefaultBlock()
	return Spec{
		Version:  DefaultVersion,
		Profiles: defaultProfiles(),
		Shared:   sharedPatterns(),
		FastPath: fastPathPatterns(),
		Fallback: &fb,
		Block:    &block,
	}
}

// Default compiles the built-in catalog.
func Default() (*Catalog, error) {
	return New(DefaultSpec())
}

func re(id, expr, sev, cat, desc string) PatternSpec {
	return PatternSpec{ID: id, Pattern: expr, Regex: true, Severity: sev, Category: cat, Description: desc}
}

func lit(id, text, sev, cat, desc string) PatternSpec {
	return PatternSpec{ID: id, Pattern: text, Severity: sev, Category: cat, Description: desc}
}

func multiline(p PatternSpec) PatternSpec {
	p.Multiline = true
	return p
}

func caseSensitive(p PatternSpec) PatternSpec {
	p.CaseSensitive = true
	return p
}

func defaultProfiles() []ProfileSpec {
	return []ProfileSpec{
		{
			Name:       "apiserver",
			Globs:      []string{"*kube-apiserver*", "*apiserver*"},
			Signatures: []string{"kube-apiserver", "apiserver"},
			Patterns: []PatternSpec{
				lit("apiserver.etcd_timeout", "etcdserver: request timed out", "ERROR", "etcd", "API server lost its etcd backend"),
				re("apiserver.webhook", `failed calling webhook`, "ERROR", "admission", "Admission webhook call failed"),
				lit("apiserver.unauthenticated", "Unable to authenticate the request", "WARNING", "auth", "Client credentials rejected"),
				lit("apiserver.tls_handshake", "http: TLS handshake error", "WARNING", "tls", "Client TLS handshake failed"),
			},
		},
		{
			Name:       "etcd",
			Globs:      []string{"*etcd*"},
			Signatures: []string{"etcdserver", "etcdmain"},
			Patterns: []PatternSpec{
				re("etcd.space_exceeded", `(?:mvcc: )?database space exceeded`, "CRITICAL", "disk", "etcd quota reached, cluster is read-only"),
				lit("etcd.slow_apply", "apply request took too long", "WARNING", "performance", "Slow etcd apply"),
				lit("etcd.heartbeat", "failed to send out heartbeat on time", "WARNING", "consensus", "Raft heartbeat delayed"),
				re("etcd.leader_lost", `lost leader|leader changed|elected leader`, "WARNING", "consensus", "Raft leadership changed"),
			},
		},
		{
			Name:       "kubelet",
			Globs:      []string{"*kubelet*"},
			Signatures: []string{"kubelet", "pod_workers.go"},
			Patterns: []PatternSpec{
				caseSensitive(lit("kubelet.oomkilled", "OOMKilled", "CRITICAL", "memory", "Container killed for exceeding its memory limit")),
				re("kubelet.image_pull", `Failed to pull image|ErrImagePull|ImagePullBackOff`, "ERROR", "image", "Image pull failed"),
				lit("kubelet.pleg", "PLEG is not healthy", "ERROR", "node", "Pod lifecycle event generator stalled"),
				lit("kubelet.crashloop", "Back-off restarting failed container", "WARNING", "workload", "Container in crash loop"),
				re("kubelet.probe", `(?:Readiness|Liveness|Startup) probe failed`, "WARNING", "probe", "Health probe failed"),
				re("kubelet.eviction", `eviction manager|Evicted`, "WARNING", "resource", "Pod eviction under node pressure"),
			},
		},
		{
			Name:       "containerd",
			Globs:      []string{"*containerd*", "*dockerd*", "*docker*"},
			Signatures: []string{"containerd", "dockerd"},
			Patterns: []PatternSpec{
				re("containerd.oci", `OCI runtime (?:create|start) failed`, "ERROR", "runtime", "OCI runtime could not start the container"),
				re("containerd.shim", `failed to create shim|shim disconnected`, "ERROR", "runtime", "Container shim lost"),
				lit("containerd.start", "failed to start container", "ERROR", "runtime", "Container start failed"),
			},
		},
		{
			Name:       "ingress",
			Globs:      []string{"*nginx*", "*ingress*", "nginx/*"},
			Signatures: []string{"nginx", "upstream"},
			Patterns: []PatternSpec{
				lit("ingress.upstream_timeout", "upstream timed out", "ERROR", "network", "Upstream did not answer in time"),
				lit("ingress.no_upstreams", "no live upstreams", "ERROR", "network", "All upstreams marked down"),
				caseSensitive(re("ingress.emerg", `\[(?:emerg|alert|crit)\]`, "CRITICAL", "server", "nginx emergency-level message")),
				caseSensitive(lit("ingress.error", "[error]", "ERROR", "server", "nginx error-level message")),
				caseSensitive(lit("ingress.warn", "[warn]", "WARNING", "server", "nginx warning-level message")),
			},
		},
		{
			Name:       "postgres",
			Globs:      []string{"*postgres*", "*pg_log*", "postgresql/*", "pg_log/*"},
			Signatures: []string{"postgres", "database system"},
			Patterns: []PatternSpec{
				caseSensitive(lit("postgres.panic", "PANIC:", "CRITICAL", "database", "PostgreSQL server panic")),
				re("postgres.auth", `FATAL:\s+(?:password authentication failed|no pg_hba\.conf entry)`, "ERROR", "auth", "Database login rejected"),
				re("postgres.availability", `FATAL:\s+the database system is (?:starting up|shutting down|in recovery mode)`, "WARNING", "availability", "Database not accepting connections"),
				re("postgres.capacity", `remaining connection slots are reserved|too many clients already`, "ERROR", "capacity", "Connection limit reached"),
				lit("postgres.deadlock", "deadlock detected", "ERROR", "database", "Transaction deadlock"),
				re("postgres.io", `could not (?:write|extend|fsync) file`, "ERROR", "disk", "Data file I/O failure"),
				caseSensitive(lit("postgres.fatal", "FATAL:", "FATAL", "database", "Session-terminating database error")),
				caseSensitive(lit("postgres.error", "ERROR:", "ERROR", "database", "Statement error")),
			},
		},
		{
			Name:       "kafka",
			Globs:      []string{"*kafka*", "kafka/*", "server.log*", "controller.log*"},
			Signatures: []string{"kafka.", "[KafkaServer", "KafkaApis"},
			Patterns: []PatternSpec{
				re("kafka.session", `(?:ZooKeeper )?[Ss]ession (?:\S+ )?(?:has )?expired`, "ERROR", "coordination", "Coordination session expired"),
				re("kafka.not_leader", `NotLeaderForPartition|NOT_LEADER_OR_FOLLOWER`, "WARNING", "replication", "Request sent to a non-leader replica"),
				re("kafka.isr_shrink", `Shrinking ISR`, "WARNING", "replication", "In-sync replica set shrank"),
				lit("kafka.offset", "OffsetOutOfRange", "ERROR", "consumer", "Consumer offset out of range"),
			},
		},
		{
			Name:       "jvm",
			Globs:      []string{"*catalina*", "*jvm*", "*java*", "*.out"},
			Signatures: []string{"java.lang.", "\tat org.", "\tat com."},
			Patterns: []PatternSpec{
				multiline(caseSensitive(lit("jvm.oom", "java.lang.OutOfMemoryError", "CRITICAL", "memory", "JVM heap or metaspace exhausted"))),
				multiline(caseSensitive(lit("jvm.stackoverflow", "java.lang.StackOverflowError", "CRITICAL", "crash", "Unbounded recursion"))),
				multiline(caseSensitive(re("jvm.network", `java\.net\.(?:ConnectException|SocketTimeoutException|UnknownHostException)`, "ERROR", "network", "JVM network failure"))),
				multiline(caseSensitive(re("jvm.exception", `(?:^|\s)(?:[a-z][\w$]*\.)+[A-Z][\w$]*(?:Exception|Error)(?::|\s*$)`, "ERROR", "exception", "Uncaught JVM exception"))),
			},
		},
		{
			Name:       "kernel",
			Globs:      []string{"*kern*", "*syslog*", "*messages*", "dmesg*", "*journal*"},
			Signatures: []string{"kernel:", "systemd["},
			Patterns: []PatternSpec{
				re("kernel.oom_kill", `Out of memory: Kill(?:ed)? process|oom-kill`, "CRITICAL", "memory", "Kernel OOM killer fired"),
				re("kernel.disk_io", `I/O error, dev|blk_update_request: I/O error|EXT4-fs error|XFS .*metadata I/O error`, "CRITICAL", "disk", "Block device I/O failure"),
				lit("kernel.segfault", "segfault at", "ERROR", "crash", "Process segmentation fault"),
				re("kernel.link_down", `NETDEV WATCHDOG|[Ll]ink is [Dd]own`, "ERROR", "network", "Network link lost"),
				re("kernel.unit_failed", `systemd\[\d+\]: .*(?:Failed with result|failed with result)`, "ERROR", "service", "systemd unit failed"),
			},
		},
	}
}

// sharedPatterns apply to every profile after its own rules: cross-cutting
// failure phrases first, then bare level markers.
func sharedPatterns() []PatternSpec {
	return []PatternSpec{
		multiline(caseSensitive(re("shared.go_panic", `^(?:panic: |fatal error: )`, "CRITICAL", "crash", "Go runtime panic"))),
		multiline(caseSensitive(lit("shared.py_traceback", "Traceback (most recent call last):", "ERROR", "exception", "Python traceback"))),
		re("shared.oom", `out of memory|OutOfMemory`, "CRITICAL", "memory", "Memory exhausted"),
		re("shared.disk_full", `no space left on device|disk full|disk quota exceeded`, "ERROR", "disk", "Filesystem full"),
		lit("shared.fd_limit", "too many open files", "ERROR", "resource", "File descriptor limit reached"),
		re("shared.tls", `x509: |certificate has expired|tls: (?:bad|handshake|unknown)`, "ERROR", "tls", "Certificate or TLS failure"),
		re("shared.network", `connection refused|connection reset by peer|no route to host|network is unreachable|i/o timeout|broken pipe`, "ERROR", "network", "Transport-level network failure"),
		re("shared.auth", `permission denied|unauthorized|forbidden|authentication failed|access denied`, "WARNING", "auth", "Access rejected"),
		re("shared.timeout", `context deadline exceeded|timed out|timeout expired`, "WARNING", "timeout", "Operation timed out"),
		caseSensitive(re("shared.level_critical", `\b(?:CRITICAL|CRIT|EMERG|EMERGENCY|ALERT)\b`, "CRITICAL", "general", "Critical-level log line")),
		caseSensitive(re("shared.level_fatal", `\bFATAL\b|^F\d{4} `, "FATAL", "general", "Fatal-level log line")),
		caseSensitive(re("shared.level_error", `\b(?:ERROR|ERR|SEVERE)\b|^E\d{4} |level=error|"level":\s*"error"`, "ERROR", "general", "Error-level log line")),
		caseSensitive(re("shared.level_warning", `\bWARN(?:ING)?\b|^W\d{4} |level=warn(?:ing)?|"level":\s*"warn(?:ing)?"`, "WARNING", "general", "Warning-level log line")),
	}
}

// fastPathPatterns is the quick-scan subset: rules that are nearly always a
// real problem when they fire.
func fastPathPatterns() []PatternSpec {
	return []PatternSpec{
		multiline(caseSensitive(re("fast.go_panic", `^(?:panic: |fatal error: )`, "CRITICAL", "crash", "Go runtime panic"))),
		multiline(caseSensitive(lit("fast.jvm_oom", "java.lang.OutOfMemoryError", "CRITICAL", "memory", "JVM heap or metaspace exhausted"))),
		re("fast.oom_kill", `Out of memory: Kill(?:ed)? process|oom-kill|OOMKilled`, "CRITICAL", "memory", "Process killed for memory"),
		re("fast.disk_io", `I/O error, dev|EXT4-fs error`, "CRITICAL", "disk", "Block device I/O failure"),
		re("fast.disk_full", `no space left on device|disk full`, "ERROR", "disk", "Filesystem full"),
		lit("fast.segfault", "segfault at", "ERROR", "crash", "Process segmentation fault"),
		caseSensitive(re("fast.level_critical", `\b(?:CRITICAL|EMERG|PANIC)\b`, "CRITICAL", "general", "Critical-level log line")),
		caseSensitive(re("fast.level_fatal", `\bFATAL\b`, "FATAL", "general", "Fatal-level log line")),
	}
}

package model

// UnknownComponent is the component assigned when no profile matches a file.
const UnknownComponent = "unknown"

// Basis records how a file's component was determined.
type Basis string

const (
	BasisGlob    Basis = "glob"
	BasisContent Basis = "content"
	BasisNone    Basis = "none"
)

// LogType is the classification result for a single file.
type LogType struct {
	Component     string `json:"component"`
	Basis         Basis  `json:"basis"`
	TimestampHint string `json:"timestamp_hint,omitempty"`
}

// Unknown returns the default classification.
func Unknown() LogType {
	return LogType{Component: UnknownComponent, Basis: BasisNone}
}

// FileStatus is the outcome of scanning one file.
type FileStatus string

const (
	FileOK        FileStatus = "ok"
	FileFailed    FileStatus = "failed"
	FileTruncated FileStatus = "truncated"
)

// Anomalies counts per-line recoverable failures.
type Anomalies struct {
	Oversize int `json:"oversize"`
	Decode   int `json:"decode"`
}

// Total returns the number of anomalies of all kinds.
func (a Anomalies) Total() int {
	return a.Oversize + a.Decode
}

// FileStats summarizes the scan of one file.
type FileStats struct {
	Path      string     `json:"path"`
	LogType   LogType    `json:"log_type"`
	Bytes     int64      `json:"bytes"`
	Lines     int        `json:"lines"`
	Events    int        `json:"events"`
	Anomalies Anomalies  `json:"anomalies"`
	Status    FileStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
}

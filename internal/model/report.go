package model

// SeverityCount is one row of the per-severity totals.
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// ComponentCount is one row of the per-component totals.
type ComponentCount struct {
	Component string `json:"component"`
	Count     int    `json:"count"`
}

// Summary holds the run-level totals of a Report.
type Summary struct {
	TotalEvents  int              `json:"total_events"`
	Severities   []SeverityCount  `json:"severities"`
	Components   []ComponentCount `json:"components"`
	FilesScanned int              `json:"files_scanned"`
	FilesFailed  int              `json:"files_failed"`
	Anomalies    int              `json:"anomalies"`
	Chains       int              `json:"chains"`
	Quick        bool             `json:"quick"`
}

// Report is the engine's output for one analysis run.
type Report struct {
	Summary   Summary            `json:"summary"`
	Findings  []Finding          `json:"findings"`
	Chains    []CorrelationChain `json:"chains"`
	Files     []FileStats        `json:"files"`
	Truncated bool               `json:"truncated"`
}

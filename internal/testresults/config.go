package testresults

import "time"

// Config holds configuration for the results load test.
type Config struct {
	BaseURL         string        // Base URL of the service
	NumEvents       int           // Number of events to create
	RunnersPerEvent int           // Data lines in each generated feed
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	ImportTimeout   time.Duration // How long to wait for imports to land
	PollInterval    time.Duration // Delay between import status checks
	KeepEvents      bool          // Leave the created events in place
	Subsecond       bool          // The service breaks ties by fractional seconds
	Verbose         bool          // Enable verbose logging
}

// Stats holds test statistics.
type Stats struct {
	EventsCreated    int
	UploadsSubmitted int
	UploadsAccepted  int
	UploadsDuplicate int
	UploadsFailed    int
	ImportsApplied   int
	EventsVerified   int
	Mismatches       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Upload outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

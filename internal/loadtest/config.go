package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL     string        // Base URL of the service
	NumRequests int           // Number of ranking requests to send
	MaxPosts    int           // Upper bound of posts per request
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	LogFile     string        // Log file for test output
	Verbose     bool          // Enable verbose logging
}

// Stats holds test statistics.
type Stats struct {
	RequestsGenerated  int
	RequestsSubmitted  int
	Ranked             int
	FallbackUsed       int
	Empty              int
	Rejected           int
	Failed             int
	VerificationFailed int
	PostsSubmitted     int
	PostsReturned      int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// Package loadgen drives award traffic against a running merit server and
// checks that season totals match the points the server reported.
package loadgen

import (
	"runtime"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // base URL of the service
	Users        int           // distinct users to spread awards over
	Awards       int           // number of award requests, replays included
	DuplicatePct float64       // share of requests that replay an earlier source key
	Workers      int           // concurrent submitters
	Timeout      time.Duration // HTTP request timeout
	Retries      uint64        // retries of a transient 503 per request
	OutputFile   string        // optional JSON dump of the generated requests
	Verbose      bool
}

// DefaultConfig returns the defaults used by meritctl loadgen.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "http://localhost:9080",
		Users:        100,
		Awards:       5000,
		DuplicatePct: 0.1,
		Workers:      runtime.NumCPU() * 2,
		Timeout:      10 * time.Second,
		Retries:      5,
	}
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Applied    int
	Duplicates int
	Capped     int
	NoPoints   int
	Failed     int
	Points     int64
	Users      int
	Verified   int
	Duration   time.Duration
}

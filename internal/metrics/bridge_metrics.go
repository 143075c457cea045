// Package metrics collects bridge health and call statistics.
package metrics

// file: internal/metrics/bridge_metrics.go

import (
	"runtime"
	"sync"
	"time"
)

// BridgeMetrics is a snapshot of the bridge's health and call statistics.
type BridgeMetrics struct {
	StartTime     time.Time     `json:"startTime"`
	Uptime        time.Duration `json:"uptime"`
	GoVersion     string        `json:"goVersion"`
	NumGoroutines int           `json:"numGoroutines"`

	// Connection stats.
	Connected         bool `json:"connected"`
	TotalConnections  int  `json:"totalConnections"`
	FailedConnections int  `json:"failedConnections"`
	Disconnects       int  `json:"disconnects"`

	// Call stats.
	TotalCalls     int            `json:"totalCalls"`
	FailedCalls    int            `json:"failedCalls"`
	CallsByMethod  map[string]int `json:"callsByMethod"`
	FailuresByKind map[string]int `json:"failuresByKind"`
	CallLatencies  map[string]int `json:"callLatencies"` // Method to average ms.

	// Protocol anomalies.
	StaleResponses  int `json:"staleResponses"`
	MalformedFrames int `json:"malformedFrames"`

	LastErrors []ErrorInfo `json:"lastErrors,omitempty"`
}

// ErrorInfo contains details about an error that occurred.
type ErrorInfo struct {
	Timestamp time.Time `json:"timestamp"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Collector gathers bridge metrics. All methods are safe for concurrent use.
type Collector struct {
	metrics     BridgeMetrics
	callCounts  map[string]int // Per-method sample count for latency averages.
	errorBuffer []ErrorInfo
	bufferSize  int
	mu          sync.Mutex
}

// NewCollector creates a collector keeping the last errorBufferSize errors.
func NewCollector(errorBufferSize int) *Collector {
	if errorBufferSize <= 0 {
		errorBufferSize = 1
	}
	return &Collector{
		metrics: BridgeMetrics{
			StartTime:      time.Now(),
			GoVersion:      runtime.Version(),
			CallsByMethod:  make(map[string]int),
			FailuresByKind: make(map[string]int),
			CallLatencies:  make(map[string]int),
		},
		callCounts:  make(map[string]int),
		errorBuffer: make([]ErrorInfo, 0, errorBufferSize),
		bufferSize:  errorBufferSize,
	}
}

// Snapshot returns a copy of the current metrics.
func (c *Collector) Snapshot() BridgeMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.metrics
	out.Uptime = time.Since(c.metrics.StartTime)
	out.NumGoroutines = runtime.NumGoroutine()
	out.CallsByMethod = copyCounts(c.metrics.CallsByMethod)
	out.FailuresByKind = copyCounts(c.metrics.FailuresByKind)
	out.CallLatencies = copyCounts(c.metrics.CallLatencies)
	if len(c.errorBuffer) > 0 {
		out.LastErrors = make([]ErrorInfo, len(c.errorBuffer))
		copy(out.LastErrors, c.errorBuffer)
	}
	return out
}

// RecordCall records one finished call. failureKind is empty on success.
func (c *Collector) RecordCall(method string, latency time.Duration, failureKind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.TotalCalls++
	c.metrics.CallsByMethod[method]++
	if failureKind != "" {
		c.metrics.FailedCalls++
		c.metrics.FailuresByKind[failureKind]++
	}

	n := c.callCounts[method] + 1
	c.callCounts[method] = n
	ms := int(latency.Milliseconds())
	prev := c.metrics.CallLatencies[method]
	c.metrics.CallLatencies[method] = int((float64(prev*(n-1)) + float64(ms)) / float64(n))
}

// RecordStaleResponse counts a response whose token matched no pending call.
func (c *Collector) RecordStaleResponse() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.StaleResponses++
}

// RecordMalformedFrame counts a frame that could not be decoded.
func (c *Collector) RecordMalformedFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.MalformedFrames++
}

// RecordConnection tracks transport attach and detach.
func (c *Collector) RecordConnection(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if connected {
		if !c.metrics.Connected {
			c.metrics.TotalConnections++
		}
	} else if c.metrics.Connected {
		c.metrics.Disconnects++
	}
	c.metrics.Connected = connected
}

// RecordConnectionFailure increments the failed connections counter.
func (c *Collector) RecordConnectionFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.FailedConnections++
}

// RecordError adds an error to the ring buffer.
func (c *Collector) RecordError(component, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errorBuffer) >= c.bufferSize {
		c.errorBuffer = c.errorBuffer[1:]
	}
	c.errorBuffer = append(c.errorBuffer, ErrorInfo{
		Timestamp: time.Now(),
		Component: component,
		Message:   message,
	})
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

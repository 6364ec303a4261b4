package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// durationBuckets are request duration boundaries in seconds.
var durationBuckets = []float64{0.005, 0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0}

// histogram stores non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	mu           sync.Mutex
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          float64
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{boundaries: boundaries, bucketCounts: make([]int64, len(boundaries))}
}

func (h *histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) snapshot() (cum []int64, count int64, sum float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum = make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum, h.count, h.sum
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

// Metrics is a process-local registry for HTTP and domain metrics.
type Metrics struct {
	mu        sync.RWMutex
	durations map[string]*histogram // method|route|status
	counters  map[string]*int64     // name|label values

	activeRequests int64
}

func NewMetrics() *Metrics {
	return &Metrics{
		durations: make(map[string]*histogram),
		counters:  make(map[string]*int64),
	}
}

func labelsKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func (m *Metrics) inc(key string, delta int64) {
	m.mu.RLock()
	p, ok := m.counters[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if p, ok = m.counters[key]; !ok {
			p = new(int64)
			m.counters[key] = p
		}
		m.mu.Unlock()
	}
	atomic.AddInt64(p, delta)
}

// Counter returns the value of a counter for the given label values.
func (m *Metrics) Counter(name string, labels ...string) int64 {
	m.mu.RLock()
	p, ok := m.counters[labelsKey(append([]string{name}, labels...)...)]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

// RecordChange counts a committed write to a collection.
func (m *Metrics) RecordChange(collection, op string) {
	m.inc(labelsKey("clinic_record_changes_total", collection, op), 1)
}

// RecordSweep counts appointments moved out of pending by the sweep.
func (m *Metrics) RecordSweep(updated int) {
	m.inc(labelsKey("clinic_appointments_swept_total"), int64(updated))
}

func (m *Metrics) observe(method, route, status string, seconds float64) {
	key := labelsKey(method, route, status)
	m.mu.RLock()
	h, ok := m.durations[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if h, ok = m.durations[key]; !ok {
			h = newHistogram(durationBuckets)
			m.durations[key] = h
		}
		m.mu.Unlock()
	}
	h.Observe(seconds)
}

// Middleware records request duration by route pattern and the number of
// in-flight requests.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.activeRequests, 1)
			defer atomic.AddInt64(&m.activeRequests, -1)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.observe(c.Request().Method, route, strconv.Itoa(c.Response().Status), time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the registry in Prometheus text exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		m.mu.RLock()
		durations := make(map[string]*histogram, len(m.durations))
		for k, v := range m.durations {
			durations[k] = v
		}
		counters := make(map[string]int64, len(m.counters))
		for k, p := range m.counters {
			counters[k] = atomic.LoadInt64(p)
		}
		m.mu.RUnlock()

		b.WriteString("# HELP http_server_request_duration_seconds Duration of HTTP requests in seconds.\n")
		b.WriteString("# TYPE http_server_request_duration_seconds histogram\n")
		for _, key := range sortedKeys(durations) {
			parts := strings.SplitN(key, "|", 3)
			labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
			writeHistogram(&b, "http_server_request_duration_seconds", labels, durations[key])
		}
		b.WriteByte('\n')

		b.WriteString("# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", atomic.LoadInt64(&m.activeRequests))

		b.WriteString("# HELP clinic_record_changes_total Committed writes by collection and operation.\n")
		b.WriteString("# TYPE clinic_record_changes_total counter\n")
		for _, key := range sortedKeys(counters) {
			parts := strings.SplitN(key, "|", 3)
			if len(parts) == 3 && parts[0] == "clinic_record_changes_total" {
				fmt.Fprintf(&b, "clinic_record_changes_total{collection=%q,op=%q} %d\n", parts[1], parts[2], counters[key])
			}
		}
		b.WriteByte('\n')

		b.WriteString("# HELP clinic_appointments_swept_total Pending appointments marked not completed by the sweep.\n")
		b.WriteString("# TYPE clinic_appointments_swept_total counter\n")
		fmt.Fprintf(&b, "clinic_appointments_swept_total %d\n", counters["clinic_appointments_swept_total"])

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum, count, sum := h.snapshot()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, count)
	fmt.Fprintf(b, "%s_sum{%s} %s\n", name, labels, strconv.FormatFloat(sum, 'g', -1, 64))
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, count)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

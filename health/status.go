package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ItamarWilf/PipeRT/component"
)

// Health levels.
const (
	LevelHealthy   = "healthy"
	LevelDegraded  = "degraded"
	LevelUnhealthy = "unhealthy"
)

// Pre-compiled regexes for error message sanitization
var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex     = regexp.MustCompile(`nats://[^\s]+`)
	redisURLRegex    = regexp.MustCompile(`rediss?://[^\s]+`)
	wsURLRegex       = regexp.MustCompile(`wss?://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health of a component, a routine or the whole pipeline.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Metrics     *Metrics  `json:"metrics,omitempty"`
}

// Metrics summarises the activity behind a Status.
type Metrics struct {
	ErrorCount        int   `json:"error_count"`
	RoutinesRunning   int   `json:"routines_running"`
	MessagesProcessed int64 `json:"messages_processed,omitempty"`
	MessagesDropped   int64 `json:"messages_dropped,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == LevelHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == LevelDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == LevelUnhealthy }

// WithMetrics returns a copy of the status with metrics attached
func (s Status) WithMetrics(metrics *Metrics) Status {
	s.Metrics = metrics
	return s
}

// WithSubStatus returns a copy of the status with subStatus appended.
func (s Status) WithSubStatus(subStatus Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, subStatus)
	return s
}

func newStatus(name, level, message string) Status {
	return Status{
		Component: name,
		Healthy:   level == LevelHealthy,
		Status:    level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(name, message string) Status { return newStatus(name, LevelHealthy, message) }

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(name, message string) Status { return newStatus(name, LevelUnhealthy, message) }

// NewDegraded creates a degraded status
func NewDegraded(name, message string) Status { return newStatus(name, LevelDegraded, message) }

// Aggregate folds sub-statuses into one: unhealthy if any is unhealthy,
// degraded if any is degraded, healthy otherwise.
func Aggregate(name string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(name, "No components")
	}

	hasUnhealthy, hasDegraded := false, false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(name, "One or more components are unhealthy")
	case hasDegraded:
		status = NewDegraded(name, "One or more components are degraded")
	default:
		status = NewHealthy(name, "All components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// FromComponentStatus derives the health of a component from its snapshot.
//
// A stopped component is healthy: stopping is an operator decision. One whose
// routines have not yet returned from a stop is degraded. A running component
// is degraded when some of its routines ended with an error or lost their
// connection, and unhealthy when none of them is still running.
func FromComponentStatus(st component.Status) Status {
	m := &Metrics{}
	for _, q := range st.Queues {
		m.MessagesProcessed += q.Stats.Reads
		m.MessagesDropped += q.Stats.Drops
	}

	subs := make([]Status, 0, len(st.Routines))
	disconnected := 0
	for _, r := range st.Routines {
		name := st.Name + "." + r.Name
		switch {
		case r.Error != "":
			m.ErrorCount++
			subs = append(subs, NewUnhealthy(name, sanitizeErrorMessage(r.Error)))
		case r.Running && r.Unhealthy != "":
			m.RoutinesRunning++
			disconnected++
			subs = append(subs, NewDegraded(name, sanitizeErrorMessage(r.Unhealthy)))
		case r.Running:
			m.RoutinesRunning++
			subs = append(subs, NewHealthy(name, "Routine running"))
		case st.Running:
			subs = append(subs, NewDegraded(name, "Routine finished"))
		default:
			subs = append(subs, NewHealthy(name, "Routine stopped"))
		}
	}

	var status Status
	switch {
	case st.Stopping:
		status = NewDegraded(st.Name, "Component is still stopping")
	case !st.Running:
		status = NewHealthy(st.Name, "Component stopped")
	case len(st.Routines) > 0 && m.RoutinesRunning == 0:
		status = NewUnhealthy(st.Name, "No routine is running")
	case m.ErrorCount > 0 || m.RoutinesRunning < len(st.Routines):
		status = NewDegraded(st.Name, fmt.Sprintf("%d of %d routines running", m.RoutinesRunning, len(st.Routines)))
	case disconnected > 0:
		status = NewDegraded(st.Name, fmt.Sprintf("%d routines lost their connection", disconnected))
	default:
		status = NewHealthy(st.Name, "Component running")
	}
	if len(subs) > 0 {
		status.SubStatuses = subs
	}
	return status.WithMetrics(m)
}

// FromPipeline aggregates the health of every component snapshot.
func FromPipeline(name string, statuses []component.Status) Status {
	subs := make([]Status, 0, len(statuses))
	for _, st := range statuses {
		subs = append(subs, FromComponentStatus(st))
	}
	return Aggregate(name, subs)
}

// sanitizeErrorMessage removes potentially sensitive information from routine
// errors before they are exposed on the health endpoint.
//
//   - URLs (http, https, nats, redis, ws, wss) become [URL]
//   - Unix and Windows file paths become [PATH]
//   - IP addresses become [IP]
//   - Port numbers become [PORT]
//   - password=X, token=X, key=X, secret=X become [REDACTED]
func sanitizeErrorMessage(err string) string {
	if err == "" {
		return ""
	}

	// URLs go first since they contain paths
	sanitized := httpURLRegex.ReplaceAllString(err, "[URL]")
	sanitized = natsURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = redisURLRegex.ReplaceAllString(sanitized, "[URL]")
	sanitized = wsURLRegex.ReplaceAllString(sanitized, "[URL]")

	sanitized = unixPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = windowsPathRegex.ReplaceAllString(sanitized, "[PATH]")
	sanitized = ipAddrRegex.ReplaceAllString(sanitized, "[IP]")
	sanitized = portRegex.ReplaceAllString(sanitized, "[PORT]")

	lower := strings.ToLower(sanitized)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			sanitized = credentialRegex.ReplaceAllString(sanitized, "[REDACTED]")
			break
		}
	}
	return sanitized
}

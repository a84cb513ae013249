package store

import "time"

// Heartbeat is the periodic liveness report a student agent posts.
type Heartbeat struct {
	Hostname   string    `json:"hostname"`
	IP         string    `json:"ip"`
	Port       uint16    `json:"port"`
	OS         string    `json:"os"`
	Username   string    `json:"username"`
	CPUUsage   float32   `json:"cpu_usage"`
	RAMUsage   float32   `json:"ram_usage"`
	UptimeSecs uint64    `json:"uptime_secs"`
	Timestamp  time.Time `json:"timestamp"`
}

// Screenshot is a still capture posted out-of-band from the live stream.
type Screenshot struct {
	Hostname  string    `json:"hostname"`
	ImageURL  string    `json:"image_url"` // base64 data-uri or URL
	Timestamp time.Time `json:"timestamp"`
}

// Notification is a student-side alert surfaced on the teacher dashboard.
type Notification struct {
	Hostname  string    `json:"hostname"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"` // info | warning | error
	Timestamp time.Time `json:"timestamp"`
}

// Application is one running process reported by an agent.
type Application struct {
	Name     string  `json:"name"`
	PID      uint32  `json:"pid"`
	MemoryMB float64 `json:"memory_mb"`
}

// BrowserTab is one open browser tab reported by an agent.
type BrowserTab struct {
	Browser string `json:"browser"`
	Title   string `json:"title"`
	URL     string `json:"url"`
}

// AppList is the full process/tab inventory for one student.
type AppList struct {
	Hostname     string        `json:"hostname"`
	Applications []Application `json:"applications"`
	BrowserTabs  []BrowserTab  `json:"browser_tabs"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Violation records a policy breach detected on a student machine.
type Violation struct {
	Hostname  string    `json:"hostname"`
	Rule      string    `json:"rule"`
	Detail    string    `json:"detail"`
	Severity  string    `json:"severity"` // low | medium | high
	Timestamp time.Time `json:"timestamp"`
}

// Agent is one registry entry: where a student agent can be reached.
type Agent struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
}

// StudentSummary is the dashboard row for one student.
type StudentSummary struct {
	Hostname       string     `json:"hostname"`
	IP             string     `json:"ip"`
	Port           uint16     `json:"port"`
	Active         bool       `json:"active"`
	OS             string     `json:"os"`
	Username       string     `json:"username"`
	CPUUsage       float32    `json:"cpu_usage"`
	RAMUsage       float32    `json:"ram_usage"`
	ViolationCount int64      `json:"violation_count"`
	LastSeen       *time.Time `json:"last_seen"`
}

// StudentDetail is the full drill-down view for one student.
type StudentDetail struct {
	Summary       StudentSummary `json:"summary"`
	Screenshot    *Screenshot    `json:"screenshot"`
	Apps          *AppList       `json:"apps"`
	Notifications []Notification `json:"notifications"`
	Violations    []Violation    `json:"violations"`
}

package domain

import "time"

// Kind tags the payload carried by a LogEntry.
type Kind string

const (
	KindError       Kind = "error"
	KindPerformance Kind = "performance"
	KindBehavior    Kind = "behavior"
	KindCustom      Kind = "custom"
	KindDeviceInfo  Kind = "device_info"
)

// Level is the severity stamped on every entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is the canonical envelope of a telemetry record. Producers fill
// Type, Category and Data; the pipeline stamps the remaining envelope fields
// once, when the entry is created, and never touches them afterwards.
type LogEntry struct {
	EventID     string       `json:"eventId,omitempty"`
	Timestamp   int64        `json:"timestamp"` // epoch milliseconds
	SDKVersion  string       `json:"sdkVersion"`
	AppID       string       `json:"appId"`
	UserID      string       `json:"userId,omitempty"`
	SessionID   string       `json:"sessionId"`
	PageURL     string       `json:"pageUrl"`
	Level       Level        `json:"level"`
	Type        Kind         `json:"type"`
	Category    string       `json:"category,omitempty"`
	Breadcrumbs []Breadcrumb `json:"breadcrumbs,omitempty"`
	Data        any          `json:"data,omitempty"`
}

// ErrorData is the payload of an error entry.
type ErrorData struct {
	Message string         `json:"message"`
	Source  string         `json:"source,omitempty"`
	Lineno  int            `json:"lineno,omitempty"`
	Colno   int            `json:"colno,omitempty"`
	Stack   string         `json:"stack,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// PerformanceMetric is the payload of a performance entry, e.g. LCP or TTFB.
type PerformanceMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"` // "ms" or "score"
}

// BehaviorData is the free-form payload of a behavior entry. The "subType"
// key names the behavior (click, page_view, route_change, custom_event).
type BehaviorData map[string]any

// NewBehaviorData builds a behavior payload with the given sub-type.
func NewBehaviorData(subType string, fields map[string]any) BehaviorData {
	data := make(BehaviorData, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["subType"] = subType
	return data
}

// SubType returns the behavior sub-type, or "" if absent.
func (b BehaviorData) SubType() string {
	s, _ := b["subType"].(string)
	return s
}

// DeviceInfo describes the host the records originate from.
type DeviceInfo struct {
	UserAgent      string `json:"userAgent"`
	Platform       string `json:"platform"`
	Language       string `json:"language"`
	ScreenWidth    int    `json:"screenWidth"`
	ScreenHeight   int    `json:"screenHeight"`
	Network        string `json:"network,omitempty"`
	ViewportWidth  int    `json:"viewportWidth"`
	ViewportHeight int    `json:"viewportHeight"`
}

// BreadcrumbType classifies a breadcrumb.
type BreadcrumbType string

const (
	BreadcrumbClick      BreadcrumbType = "click"
	BreadcrumbNavigation BreadcrumbType = "navigation"
	BreadcrumbConsole    BreadcrumbType = "console"
	BreadcrumbError      BreadcrumbType = "error"
	BreadcrumbCustom     BreadcrumbType = "custom"
	BreadcrumbAPI        BreadcrumbType = "api"
)

// Breadcrumb is a lightweight trail event attached to later error entries.
type Breadcrumb struct {
	Type      BreadcrumbType `json:"type"`
	Message   string         `json:"message"`
	Data      any            `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Session identifies a run of user activity bounded by an idle timeout.
type Session struct {
	ID           string
	LastActivity time.Time
}

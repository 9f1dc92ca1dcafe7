package telemetry

import (
	"context"
	"fmt"
	"runtime/debug"
	"unicode/utf8"

	"github.com/V4T54L/logbeacon/internal/domain"
)

// safe runs fn, absorbing any panic into a debug log line.
func (c *Client) safe(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Debug("recovered from panic", "op", op, "panic", r)
		}
	}()
	fn()
}

// Submit is the producer interface: it stamps entry and runs it through
// sampling and the before-send hook. It reports whether entry was queued.
func (c *Client) Submit(ctx context.Context, entry LogEntry) (queued bool) {
	c.safe("submit", func() {
		queued = c.pipeline.Submit(ctx, entry)
	})
	return queued
}

// Log records a custom entry. Map data is merged with the message; any
// other value is carried under "value". An empty category means "custom".
func (c *Client) Log(ctx context.Context, message string, data any, level Level, category string) {
	c.safe("log", func() {
		c.sessions.Touch(ctx)
		if level == "" {
			level = LevelInfo
		}
		if category == "" {
			category = "custom"
		}
		c.breadcrumbs.Add(Breadcrumb{
			Type:    BreadcrumbCustom,
			Message: "log: " + truncate(message, 50),
			Data:    map[string]any{"level": level, "custom_data": data},
		})

		payload := map[string]any{}
		switch d := data.(type) {
		case nil:
		case map[string]any:
			for k, v := range d {
				payload[k] = v
			}
		default:
			payload["value"] = d
		}
		payload["message"] = message

		c.pipeline.Submit(ctx, LogEntry{Type: KindCustom, Level: level, Category: category, Data: payload})
	})
}

func (c *Client) Info(ctx context.Context, message string, data any) {
	c.Log(ctx, message, data, LevelInfo, "")
}

func (c *Client) Warn(ctx context.Context, message string, data any) {
	c.Log(ctx, message, data, LevelWarn, "")
}

// Error records err as an error entry carrying the breadcrumb trail. A nil
// err is ignored.
func (c *Client) Error(ctx context.Context, err error, extra map[string]any) {
	if err == nil {
		return
	}
	c.safe("error", func() {
		c.sessions.Touch(ctx)
		msg := err.Error()

		crumbData := make(map[string]any, len(extra))
		for k, v := range extra {
			crumbData[k] = v
		}
		c.breadcrumbs.Add(Breadcrumb{
			Type:    BreadcrumbError,
			Message: "error: " + truncate(msg, 100),
			Data:    crumbData,
		})

		c.pipeline.Submit(ctx, LogEntry{
			Type:     KindError,
			Level:    LevelError,
			Category: "manual",
			Data:     ErrorData{Message: msg, Stack: stackOf(err), Extra: extra},
		})
	})
}

// Track records a named custom behavior event.
func (c *Client) Track(ctx context.Context, event string, data map[string]any) {
	c.safe("track", func() {
		c.sessions.Touch(ctx)
		c.breadcrumbs.Add(Breadcrumb{
			Type:    BreadcrumbCustom,
			Message: "track: " + truncate(event, 50),
			Data:    data,
		})

		fields := make(map[string]any, len(data)+1)
		for k, v := range data {
			fields[k] = v
		}
		fields["eventName"] = event
		c.pipeline.Submit(ctx, LogEntry{
			Type:     KindBehavior,
			Level:    LevelInfo,
			Category: "custom_event",
			Data:     domain.NewBehaviorData("custom_event", fields),
		})
	})
}

// ReportPerformance records one performance metric.
func (c *Client) ReportPerformance(ctx context.Context, metric PerformanceMetric) {
	c.safe("performance", func() {
		c.pipeline.Submit(ctx, LogEntry{
			Type:     KindPerformance,
			Level:    LevelInfo,
			Category: metric.Name,
			Data:     metric,
		})
	})
}

// ReportDevice records the host descriptor.
func (c *Client) ReportDevice(ctx context.Context, info DeviceInfo) {
	c.safe("device", func() {
		c.pipeline.Submit(ctx, LogEntry{Type: KindDeviceInfo, Level: LevelInfo, Data: info})
	})
}

// SetUser stamps id on later entries. details are kept for the host and
// returned by User.
func (c *Client) SetUser(id string, details map[string]any) {
	c.safe("set_user", func() {
		c.page.SetUser(id, details)
		c.logger.Debug("user context updated", "user_id", id)
	})
}

// ClearUser removes the user context.
func (c *Client) ClearUser() {
	c.safe("clear_user", func() {
		c.page.SetUser("", nil)
	})
}

// User returns the current user id and details.
func (c *Client) User() (string, map[string]any) {
	return c.page.UserID(), c.page.UserDetails()
}

// Flush sends everything queued and waits for that batch to be delivered or
// persisted, or for ctx to expire. Flushing an empty queue does nothing;
// after Shutdown it returns ErrClosed.
func (c *Client) Flush(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrClosed
	}
	c.safe("flush", func() {
		err = c.flusher.Flush(ctx)
	})
	return err
}

// Navigate is shorthand for emitting a navigation event to this client.
func (c *Client) Navigate(ctx context.Context, url string) {
	c.safe("navigate", func() {
		c.recordNavigation(ctx, url)
	})
}

// AddBreadcrumb appends b to the trail. A zero timestamp is set to now.
func (c *Client) AddBreadcrumb(b Breadcrumb) {
	c.safe("add_breadcrumb", func() {
		c.breadcrumbs.Add(b)
	})
}

// Breadcrumbs returns a copy of the trail, oldest first.
func (c *Client) Breadcrumbs() []Breadcrumb {
	return c.breadcrumbs.Snapshot()
}

func (c *Client) ClearBreadcrumbs() {
	c.breadcrumbs.Clear()
}

// FailedCount returns the number of entries waiting in the durable store.
func (c *Client) FailedCount(ctx context.Context) (int, error) {
	return c.failed.Count(ctx)
}

// stackOf returns the stack err carries when its %+v form adds one, as
// pkg/errors-style errors do, and the caller's stack otherwise.
func stackOf(err error) string {
	if _, ok := err.(fmt.Formatter); ok {
		if s := fmt.Sprintf("%+v", err); s != err.Error() {
			return s
		}
	}
	return string(debug.Stack())
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

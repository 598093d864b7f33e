package daemon

import (
	"context"
	"time"

	"git.home.luguber.info/inful/feedbot/internal/civil"
	"git.home.luguber.info/inful/feedbot/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse represents the complete health check response
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Version   string        `json:"version"`
	Checks    []HealthCheck `json:"checks"`
}

// PerformHealthChecks executes all health checks and returns the overall status.
// A failing daemon check makes the daemon unhealthy; any other failure degrades it.
func (d *Daemon) PerformHealthChecks(ctx context.Context) *HealthResponse {
	checks := []HealthCheck{
		d.checkDaemonHealth(),
		d.checkMessagingHealth(ctx),
		d.checkSweepHealth(),
	}

	overall := HealthStatusHealthy
	for i, c := range checks {
		switch {
		case c.Status == HealthStatusHealthy:
		case i == 0 && c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	uptime := time.Duration(0)
	if !d.startTime.IsZero() {
		uptime = time.Since(d.startTime).Round(time.Second)
	}
	return &HealthResponse{
		Status:    overall,
		Timestamp: d.clock.Now(),
		Uptime:    uptime.String(),
		Version:   version.Version,
		Checks:    checks,
	}
}

func (d *Daemon) checkDaemonHealth() HealthCheck {
	check := HealthCheck{Name: "daemon_status"}
	switch d.GetStatus() {
	case StatusRunning:
		check.Status = HealthStatusHealthy
		check.Message = "Daemon is running normally"
	case StatusStarting:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is still starting up"
	case StatusStopping:
		check.Status = HealthStatusDegraded
		check.Message = "Daemon is shutting down"
	case StatusError:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is in error state"
	default:
		check.Status = HealthStatusUnhealthy
		check.Message = "Daemon is not running"
	}
	return check
}

func (d *Daemon) checkMessagingHealth(ctx context.Context) HealthCheck {
	check := HealthCheck{Name: "messaging", Status: HealthStatusHealthy, Message: "Feed channel reachable"}
	if err := d.transport.Ready(ctx, d.config.FeedChannelID); err != nil {
		check.Status = HealthStatusDegraded
		check.Message = err.Error()
	}
	return check
}

// checkSweepHealth degrades when the most recent daily sweep was missed.
func (d *Daemon) checkSweepHealth() HealthCheck {
	check := HealthCheck{Name: "daily_sweep"}
	last, ok, err := d.engine.LastSweep()
	if err != nil {
		check.Status = HealthStatusDegraded
		check.Message = err.Error()
		return check
	}
	due := civil.PrevFire(d.clock.Now(), d.config.CheckTime(), d.clock.Location())
	if !ok || last.Before(due) {
		check.Status = HealthStatusDegraded
		check.Message = "Sweep due at " + due.Format(time.RFC3339) + " has not run"
		return check
	}
	check.Status = HealthStatusHealthy
	check.Message = "Last sweep at " + last.In(d.clock.Location()).Format(time.RFC3339)
	return check
}

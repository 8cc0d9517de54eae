// Package events publishes run and task lifecycle events so external
// consumers (dashboards, notifiers) can follow builds without polling the
// report file. Publishing is optional and best effort: a missing broker
// never fails a build.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/dochub/internal/config"
	"git.home.luguber.info/inful/dochub/internal/report"
)

// Publisher emits build lifecycle events.
type Publisher interface {
	RunStarted(runID string, packages int, waves int)
	TaskSettled(runID string, task report.Task)
	RunFinished(runID string, r *report.BuildReport)
	Close()
}

// NoopPublisher drops all events (default when events are not configured).
type NoopPublisher struct{}

func (NoopPublisher) RunStarted(string, int, int)             {}
func (NoopPublisher) TaskSettled(string, report.Task)         {}
func (NoopPublisher) RunFinished(string, *report.BuildReport) {}
func (NoopPublisher) Close()                                  {}

// NATSPublisher publishes JSON events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("dochub"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Event publishing enabled", "url", cfg.URL, "subject", cfg.Subject)
	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

type envelope struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

func (p *NATSPublisher) publish(eventType, runID string, payload any) {
	data, err := json.Marshal(envelope{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		slog.Warn("Failed to marshal build event", "type", eventType, "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		slog.Warn("Failed to publish build event", "type", eventType, "error", err)
	}
}

func (p *NATSPublisher) RunStarted(runID string, packages, waves int) {
	p.publish("run_started", runID, map[string]int{"packages": packages, "waves": waves})
}

func (p *NATSPublisher) TaskSettled(runID string, task report.Task) {
	// Output tails can be large; lifecycle events carry outcomes only.
	task.OutputTail = ""
	p.publish("task_settled", runID, task)
}

func (p *NATSPublisher) RunFinished(runID string, r *report.BuildReport) {
	p.publish("run_finished", runID, map[string]any{
		"counts":      r.Counts,
		"hub_status":  r.HubStatus,
		"aborted":     r.Aborted,
		"duration_ns": r.Duration,
	})
}

// Close flushes and drops the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Flush(); err != nil {
		slog.Debug("NATS flush on close failed", "error", err)
	}
	p.conn.Close()
}

// Package notify publishes lesson-change events over NATS so external
// consumers (dashboards, environment workers) can react when a parameter's
// active randomization distribution changes.
package notify

import (
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "curricula.lesson.changed"

// Event is the JSON payload published on every lesson advancement.
type Event struct {
	RunID     string    `json:"run_id"`
	Parameter string    `json:"parameter"`
	Lesson    string    `json:"lesson"`
	LessonNum int       `json:"lesson_num"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends lesson-change events to a NATS server. Publishing is
// advisory: failures are logged, never surfaced to the training step.
type Publisher struct {
	conn  *nats.Conn
	runID string
}

// NewPublisher connects to NATS at url and tags every event with runID.
func NewPublisher(url, runID string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("[Notify] NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[Notify] NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: nc, runID: runID}, nil
}

// LessonChanged publishes one lesson-change event. Implements the
// curriculum manager's Notifier interface.
func (p *Publisher) LessonChanged(parameter, lessonName string, lessonNum int) {
	event := Event{
		RunID:     p.runID,
		Parameter: parameter,
		Lesson:    lessonName,
		LessonNum: lessonNum,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Notify] failed to marshal lesson event: %v", err)
		return
	}
	subject := SubjectFor(parameter)
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("[Notify] failed to publish to %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("[Notify] failed to drain NATS connection: %v", err)
	}
}

// SubjectFor builds the per-parameter subject. Parameter names are free-form
// in config files; characters NATS subjects cannot carry are replaced.
func SubjectFor(parameter string) string {
	return subjectPrefix + "." + sanitizeToken(parameter)
}

func sanitizeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '*', '>':
			return '_'
		}
		return r
	}, s)
}

package audit

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSuccess EventType = "auth.token_validate"
	EventTypeAuthFailure EventType = "auth.token_validate_fail"

	// Authorization events
	EventTypeAccessDenied   EventType = "authz.access_denied"
	EventTypeAccessGranted  EventType = "authz.access_granted"
	EventTypePermissionSync EventType = "authz.permission_sync"
	EventTypeAdminOverride  EventType = "authz.admin_override"

	// Vendor staff events
	EventTypeStaffGranted EventType = "vendor.staff_granted"
	EventTypeStaffRevoked EventType = "vendor.staff_revoked"

	// Inquiry events
	EventTypeInquiryTransition EventType = "vendor.inquiry_transition"
)

// Event is a single audit record
type Event struct {
	Type      EventType              `json:"type"`
	Subject   string                 `json:"subject,omitempty"`
	Actor     string                 `json:"actor,omitempty"`
	VendorID  string                 `json:"vendor_id,omitempty"`
	Outcome   string                 `json:"outcome,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Sink receives every recorded event in addition to the log stream. A sink
// failure never blocks or fails the caller; it is logged and dropped.
type Sink interface {
	Write(event Event) error
}

// Logger writes structured audit events. Events are emitted as JSON lines
// so downstream collectors can ingest them without parsing free text.
type Logger struct {
	log  *logrus.Logger
	sink Sink
}

// NewLogger creates an audit logger writing JSON events to output
func NewLogger(output io.Writer) *Logger {
	log := logrus.New()
	log.SetOutput(output)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetLevel(logrus.InfoLevel)
	return &Logger{log: log}
}

// WithSink returns the logger with a persistence sink attached
func (l *Logger) WithSink(sink Sink) *Logger {
	l.sink = sink
	return l
}

// Record emits one audit event
func (l *Logger) Record(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	fields := logrus.Fields{
		"audit":     true,
		"type":      string(event.Type),
		"timestamp": event.Timestamp.Format(time.RFC3339Nano),
	}
	if event.Subject != "" {
		fields["subject"] = event.Subject
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	if event.VendorID != "" {
		fields["vendor_id"] = event.VendorID
	}
	if event.Outcome != "" {
		fields["outcome"] = event.Outcome
	}
	for k, v := range event.Details {
		fields[k] = v
	}

	l.log.WithFields(fields).Info(string(event.Type))

	if l.sink != nil {
		if err := l.sink.Write(event); err != nil {
			l.log.WithError(err).Warn("audit sink write failed")
		}
	}
}

// AuthSuccess records a successful token validation
func (l *Logger) AuthSuccess(subject string) {
	l.Record(Event{Type: EventTypeAuthSuccess, Subject: subject, Outcome: "success"})
}

// AuthFailure records a rejected token with the rejection reason
func (l *Logger) AuthFailure(reason string) {
	l.Record(Event{Type: EventTypeAuthFailure, Outcome: "failure", Details: map[string]interface{}{"reason": reason}})
}

// AccessDenied records a denied authorization check
func (l *Logger) AccessDenied(subject, requirement string) {
	l.Record(Event{
		Type:    EventTypeAccessDenied,
		Subject: subject,
		Outcome: "denied",
		Details: map[string]interface{}{"requirement": requirement},
	})
}

// PermissionSync records the outcome of a principal permission sync
func (l *Logger) PermissionSync(subject string, roleCount, permissionCount int, degraded bool) {
	outcome := "success"
	if degraded {
		outcome = "degraded"
	}
	l.Record(Event{
		Type:    EventTypePermissionSync,
		Subject: subject,
		Outcome: outcome,
		Details: map[string]interface{}{
			"roles":       roleCount,
			"permissions": permissionCount,
		},
	})
}

// AdminOverride records an administrative permission override
func (l *Logger) AdminOverride(actor, subject string, permissions []string) {
	l.Record(Event{
		Type:    EventTypeAdminOverride,
		Actor:   actor,
		Subject: subject,
		Details: map[string]interface{}{"permissions": permissions},
	})
}

// StaffGranted records creation of a vendor staff relationship
func (l *Logger) StaffGranted(actor, subject, vendorID, tier string) {
	l.Record(Event{
		Type:     EventTypeStaffGranted,
		Actor:    actor,
		Subject:  subject,
		VendorID: vendorID,
		Details:  map[string]interface{}{"tier": tier},
	})
}

// StaffRevoked records deactivation of a vendor staff relationship
func (l *Logger) StaffRevoked(actor, subject, vendorID string) {
	l.Record(Event{Type: EventTypeStaffRevoked, Actor: actor, Subject: subject, VendorID: vendorID})
}

// InquiryTransition records an inquiry state change
func (l *Logger) InquiryTransition(actor, vendorID, inquiryID, from, to string) {
	l.Record(Event{
		Type:     EventTypeInquiryTransition,
		Actor:    actor,
		VendorID: vendorID,
		Details: map[string]interface{}{
			"inquiry_id": inquiryID,
			"from":       from,
			"to":         to,
		},
	})
}

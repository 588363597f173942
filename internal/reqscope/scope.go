// Package reqscope carries per-request identity through the transfer path.
// A Scope is created once at the API boundary and passed explicitly to every
// service call; nothing reads it from globals.
package reqscope

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Scope struct {
	CorrelationID string
	RequesterID   int64
	Role          string
	ClientIP      string
	Endpoint      string
}

// New returns a scope with the given correlation id, or a fresh uuid when empty.
func New(correlationID string, requesterID int64) *Scope {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return &Scope{CorrelationID: correlationID, RequesterID: requesterID}
}

// Background is used by jobs and tests that have no inbound request.
func Background() *Scope {
	return New("", 0)
}

// Fields returns the zap fields every log line in the request should carry.
func (s *Scope) Fields() []zap.Field {
	if s == nil {
		return nil
	}
	fields := []zap.Field{zap.String("correlation_id", s.CorrelationID)}
	if s.RequesterID != 0 {
		fields = append(fields, zap.Int64("requester_id", s.RequesterID))
	}
	if s.Endpoint != "" {
		fields = append(fields, zap.String("endpoint", s.Endpoint))
	}
	return fields
}

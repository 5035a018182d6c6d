package model

import (
	"time"

	"github.com/google/uuid"
)

// ThreadStatus represents the lifecycle state of a conversation thread.
type ThreadStatus string

const (
	ThreadStatusActive   ThreadStatus = "active"
	ThreadStatusArchived ThreadStatus = "archived"
)

// Direction represents which way a message travelled.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// IsValid returns true for the directions accepted on writes. Historical data
// may carry a deprecated "handover" direction; it is preserved on reads but
// rejected for new messages.
func (d Direction) IsValid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

// MessageType classifies a message. Optional on a message; filterable.
type MessageType string

const (
	MessageTypeChat    MessageType = "chat"
	MessageTypeData    MessageType = "data"
	MessageTypeHandoff MessageType = "handoff"
	MessageTypeWebhook MessageType = "webhook"
)

// DeliveryStatus records the outcome of handing a message to a workflow.
type DeliveryStatus string

const (
	DeliveryStatusDelivered       DeliveryStatus = "delivered_to_workflow"
	DeliveryStatusFailedToDeliver DeliveryStatus = "failed_to_deliver_to_workflow"
)

// SortOrder controls createdAt ordering for message listings.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ConversationThread is the conversation context for a
// (tenant, workflow, participant) triple. At most one live thread exists per
// triple; the store's unique composite index enforces this.
type ConversationThread struct {
	ID            uuid.UUID    `json:"id"`
	TenantID      string       `json:"tenantId"`
	WorkflowID    string       `json:"workflowId"`
	WorkflowType  string       `json:"workflowType,omitempty"`
	Agent         string       `json:"agent,omitempty"`
	ParticipantID string       `json:"participantId"`
	Status        ThreadStatus `json:"status"`
	CreatedBy     string       `json:"createdBy,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// ConversationMessage is a single message within a thread.
//
// Text is plaintext in memory; the store encrypts it at rest and decrypts it
// on every read. Data is an arbitrary JSON-like payload normalized through
// the payload codec. A nil Scope means "no scope" and is distinct from "".
type ConversationMessage struct {
	ID            uuid.UUID       `json:"id"`
	ThreadID      uuid.UUID       `json:"threadId"`
	TenantID      string          `json:"tenantId"`
	ParticipantID string          `json:"participantId"`
	WorkflowID    string          `json:"workflowId"`
	WorkflowType  string          `json:"workflowType,omitempty"`
	Direction     Direction       `json:"direction"`
	MessageType   *MessageType    `json:"messageType,omitempty"`
	Text          *string         `json:"text,omitempty"`
	Data          any             `json:"data,omitempty"`
	Status        *DeliveryStatus `json:"status,omitempty"`
	Scope         *string         `json:"scope,omitempty"`
	TaskID        *string         `json:"taskId,omitempty"`
	Hint          *string         `json:"hint,omitempty"`
	Origin        *string         `json:"origin,omitempty"`
	RequestID     *string         `json:"requestId,omitempty"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// TopicSummary is one scope group within a thread: how many messages carry
// the scope and when the most recent one was created. A nil Scope is the
// group of messages with no scope at all.
type TopicSummary struct {
	Scope         *string   `json:"scope"`
	MessageCount  int64     `json:"messageCount"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Pagination describes the page that was returned alongside the totals
// computed in the same aggregation pass.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

// MessagingStats aggregates message traffic for a tenant over a date range.
type MessagingStats struct {
	TotalMessages      int64 `json:"totalMessages"`
	ActiveParticipants int64 `json:"activeParticipants"`
}

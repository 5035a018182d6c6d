package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chatwire/conversation-service/internal/model"
	"github.com/google/uuid"
)

// ThreadMessagesQuery narrows a GetMessagesByThread call.
//
// Page/PageSize are optional: when both are nil the listing is unbounded.
// Scope is three-valued: nil applies no scope filter, "" matches only
// messages with no scope (null/absent field), anything else matches exactly.
// ChatOnly restricts results to messages of type chat.
type ThreadMessagesQuery struct {
	Page     *int
	PageSize *int
	Scope    *string
	ChatOnly bool
}

// ConversationStore is the persistence interface for conversation threads and
// messages. All operations take the tenant scope explicitly; implementations
// must not rely on ambient tenant state.
type ConversationStore interface {
	// CreateOrGetThread returns the id of the live thread for the
	// (tenant, workflow, participant) key, inserting one if none exists.
	// Concurrent calls with the same key all return the same id.
	CreateOrGetThread(ctx context.Context, thread *model.ConversationThread) (uuid.UUID, error)
	// GetThreadsByTenantAndAgent lists threads for a tenant+agent sorted by
	// updatedAt descending. Unbounded when page/pageSize are nil.
	GetThreadsByTenantAndAgent(ctx context.Context, tenantID, agent string, page, pageSize *int) ([]model.ConversationThread, error)
	// CountThreadsByTenant counts a tenant's threads, optionally by status.
	CountThreadsByTenant(ctx context.Context, tenantID string, status *model.ThreadStatus) (int64, error)
	// ArchiveThread marks a thread archived. Returns false when the thread
	// does not exist or belongs to a different tenant.
	ArchiveThread(ctx context.Context, tenantID string, threadID uuid.UUID) (bool, error)
	// DeleteThread removes a thread and all of its messages atomically.
	// When tenantID is non-nil the thread must belong to that tenant;
	// mismatch or absence returns (false, nil) without deleting anything.
	// A nil tenantID is the cross-tenant admin escape hatch.
	DeleteThread(ctx context.Context, threadID uuid.UUID, tenantID *string) (bool, error)

	// SaveMessage encrypts/normalizes the message, inserts it, and bumps the
	// owning thread's updatedAt in one atomic transaction.
	SaveMessage(ctx context.Context, msg *model.ConversationMessage) (uuid.UUID, error)
	// UpdateMessageStatus records a delivery outcome. Returns false when the
	// message does not exist for the tenant.
	UpdateMessageStatus(ctx context.Context, tenantID string, messageID uuid.UUID, status model.DeliveryStatus) (bool, error)
	// GetMessagesByThread lists a thread's messages newest-first, decrypted
	// and decoded.
	GetMessagesByThread(ctx context.Context, tenantID string, threadID uuid.UUID, q ThreadMessagesQuery) ([]model.ConversationMessage, error)
	// GetMessagesByWorkflowAndParticipant lists messages across threads for a
	// workflow+participant pair, with configurable createdAt ordering.
	GetMessagesByWorkflowAndParticipant(ctx context.Context, workflowID, participantID string, page, pageSize int, scope *string, order model.SortOrder) ([]model.ConversationMessage, error)
	// DeleteMessagesByThread bulk-deletes a thread's messages. Zero matches
	// is success.
	DeleteMessagesByThread(ctx context.Context, threadID uuid.UUID) (bool, error)
	// DeleteMessagesByWorkflowParticipantAndScope bulk-deletes by workflow +
	// participant, optionally narrowed by scope. Zero matches is success.
	DeleteMessagesByWorkflowParticipantAndScope(ctx context.Context, workflowID, participantID string, scope *string) (bool, error)

	// GetLastIncomingOrigin returns the origin of the most recent incoming
	// message in a thread for the participant, or nil when none qualifies.
	GetLastIncomingOrigin(ctx context.Context, threadID uuid.UUID, participantID string) (*string, error)
	// GetLastIncomingData returns the decoded data payload of the most recent
	// incoming message for a workflow+participant pair, or nil.
	GetLastIncomingData(ctx context.Context, workflowID, participantID string, scope *string) (any, error)
	// GetLastTaskID returns the task id of the most recent incoming message
	// for a workflow+participant pair, or nil.
	GetLastTaskID(ctx context.Context, workflowID, participantID string, scope *string) (*string, error)

	// GetTopics groups a thread's messages by scope, newest activity first,
	// tie-broken by scope name. Totals come from the same aggregation pass.
	GetTopics(ctx context.Context, tenantID string, threadID uuid.UUID, page, pageSize int) ([]model.TopicSummary, *model.Pagination, error)
	// GetMessagingStats counts messages and distinct active participants for
	// a tenant in [start, end], optionally for a single participant.
	GetMessagingStats(ctx context.Context, tenantID string, start, end time.Time, participantID *string) (*model.MessagingStats, error)

	Close(ctx context.Context) error
}

// Loader creates a store from config carried in ctx.
type Loader func(ctx context.Context) (ConversationStore, error)

// Plugin represents a store backend plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Select returns the loader for the named store backend.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store backend: %s", name)
}

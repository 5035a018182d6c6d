package metrics

import (
	"context"
	"time"

	"github.com/chatwire/conversation-service/internal/metrics"
	"github.com/chatwire/conversation-service/internal/model"
	"github.com/chatwire/conversation-service/internal/registry/store"
	"github.com/google/uuid"
)

// Wrap returns a ConversationStore that records StoreLatency for every operation.
func Wrap(inner store.ConversationStore) store.ConversationStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.ConversationStore
}

func observe(op string, start time.Time) {
	if metrics.StoreLatency != nil {
		metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *metricsStore) CreateOrGetThread(ctx context.Context, thread *model.ConversationThread) (uuid.UUID, error) {
	defer observe("create_or_get_thread", time.Now())
	return m.inner.CreateOrGetThread(ctx, thread)
}

func (m *metricsStore) GetThreadsByTenantAndAgent(ctx context.Context, tenantID, agent string, page, pageSize *int) ([]model.ConversationThread, error) {
	defer observe("get_threads_by_tenant_and_agent", time.Now())
	return m.inner.GetThreadsByTenantAndAgent(ctx, tenantID, agent, page, pageSize)
}

func (m *metricsStore) CountThreadsByTenant(ctx context.Context, tenantID string, status *model.ThreadStatus) (int64, error) {
	defer observe("count_threads_by_tenant", time.Now())
	return m.inner.CountThreadsByTenant(ctx, tenantID, status)
}

func (m *metricsStore) ArchiveThread(ctx context.Context, tenantID string, threadID uuid.UUID) (bool, error) {
	defer observe("archive_thread", time.Now())
	return m.inner.ArchiveThread(ctx, tenantID, threadID)
}

func (m *metricsStore) DeleteThread(ctx context.Context, threadID uuid.UUID, tenantID *string) (bool, error) {
	defer observe("delete_thread", time.Now())
	return m.inner.DeleteThread(ctx, threadID, tenantID)
}

func (m *metricsStore) SaveMessage(ctx context.Context, msg *model.ConversationMessage) (uuid.UUID, error) {
	defer observe("save_message", time.Now())
	return m.inner.SaveMessage(ctx, msg)
}

func (m *metricsStore) UpdateMessageStatus(ctx context.Context, tenantID string, messageID uuid.UUID, status model.DeliveryStatus) (bool, error) {
	defer observe("update_message_status", time.Now())
	return m.inner.UpdateMessageStatus(ctx, tenantID, messageID, status)
}

func (m *metricsStore) GetMessagesByThread(ctx context.Context, tenantID string, threadID uuid.UUID, q store.ThreadMessagesQuery) ([]model.ConversationMessage, error) {
	defer observe("get_messages_by_thread", time.Now())
	return m.inner.GetMessagesByThread(ctx, tenantID, threadID, q)
}

func (m *metricsStore) GetMessagesByWorkflowAndParticipant(ctx context.Context, workflowID, participantID string, page, pageSize int, scope *string, order model.SortOrder) ([]model.ConversationMessage, error) {
	defer observe("get_messages_by_workflow_and_participant", time.Now())
	return m.inner.GetMessagesByWorkflowAndParticipant(ctx, workflowID, participantID, page, pageSize, scope, order)
}

func (m *metricsStore) DeleteMessagesByThread(ctx context.Context, threadID uuid.UUID) (bool, error) {
	defer observe("delete_messages_by_thread", time.Now())
	return m.inner.DeleteMessagesByThread(ctx, threadID)
}

func (m *metricsStore) DeleteMessagesByWorkflowParticipantAndScope(ctx context.Context, workflowID, participantID string, scope *string) (bool, error) {
	defer observe("delete_messages_by_workflow_participant_and_scope", time.Now())
	return m.inner.DeleteMessagesByWorkflowParticipantAndScope(ctx, workflowID, participantID, scope)
}

func (m *metricsStore) GetLastIncomingOrigin(ctx context.Context, threadID uuid.UUID, participantID string) (*string, error) {
	defer observe("get_last_incoming_origin", time.Now())
	return m.inner.GetLastIncomingOrigin(ctx, threadID, participantID)
}

func (m *metricsStore) GetLastIncomingData(ctx context.Context, workflowID, participantID string, scope *string) (any, error) {
	defer observe("get_last_incoming_data", time.Now())
	return m.inner.GetLastIncomingData(ctx, workflowID, participantID, scope)
}

func (m *metricsStore) GetLastTaskID(ctx context.Context, workflowID, participantID string, scope *string) (*string, error) {
	defer observe("get_last_task_id", time.Now())
	return m.inner.GetLastTaskID(ctx, workflowID, participantID, scope)
}

func (m *metricsStore) GetTopics(ctx context.Context, tenantID string, threadID uuid.UUID, page, pageSize int) ([]model.TopicSummary, *model.Pagination, error) {
	defer observe("get_topics", time.Now())
	return m.inner.GetTopics(ctx, tenantID, threadID, page, pageSize)
}

func (m *metricsStore) GetMessagingStats(ctx context.Context, tenantID string, start, end time.Time, participantID *string) (*model.MessagingStats, error) {
	defer observe("get_messaging_stats", time.Now())
	return m.inner.GetMessagingStats(ctx, tenantID, start, end, participantID)
}

func (m *metricsStore) Close(ctx context.Context) error {
	return m.inner.Close(ctx)
}

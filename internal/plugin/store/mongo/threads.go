package mongo

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chatwire/conversation-service/internal/metrics"
	"github.com/chatwire/conversation-service/internal/model"
	registrystore "github.com/chatwire/conversation-service/internal/registry/store"
	"github.com/chatwire/conversation-service/internal/retry"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func compositeKeyFilter(tenantID, workflowID, participantID string) bson.M {
	return bson.M{
		"tenant_id":      tenantID,
		"workflow_id":    workflowID,
		"participant_id": participantID,
	}
}

func (s *MongoStore) CreateOrGetThread(ctx context.Context, thread *model.ConversationThread) (uuid.UUID, error) {
	if thread.TenantID == "" {
		return uuid.Nil, &registrystore.ValidationError{Field: "tenantId", Message: "must not be empty"}
	}
	if thread.WorkflowID == "" {
		return uuid.Nil, &registrystore.ValidationError{Field: "workflowId", Message: "must not be empty"}
	}
	if thread.ParticipantID == "" {
		return uuid.Nil, &registrystore.ValidationError{Field: "participantId", Message: "must not be empty"}
	}
	return retry.Do(ctx, s.exec, "create_or_get_thread", func(ctx context.Context) (uuid.UUID, error) {
		return s.createOrGetThread(ctx, thread)
	})
}

// createOrGetThread is safe to retry: the lookup side is read-only and the
// insert side self-heals through the duplicate-key recovery below.
func (s *MongoStore) createOrGetThread(ctx context.Context, thread *model.ConversationThread) (uuid.UUID, error) {
	if id := s.cachedThreadID(ctx, thread); id != uuid.Nil {
		return id, nil
	}

	filter := compositeKeyFilter(thread.TenantID, thread.WorkflowID, thread.ParticipantID)

	var existing threadDoc
	err := s.threads().FindOne(ctx, filter).Decode(&existing)
	if err == nil {
		// Found: return as-is, the thread is not refreshed.
		id := strToUUID(existing.ID)
		s.cacheThreadID(ctx, thread, id)
		return id, nil
	}
	if err != mongo.ErrNoDocuments {
		return uuid.Nil, err
	}

	id := thread.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	status := thread.Status
	if status == "" {
		status = model.ThreadStatusActive
	}
	now := time.Now()
	doc := threadDoc{
		ID:            uuidToStr(id),
		TenantID:      thread.TenantID,
		WorkflowID:    thread.WorkflowID,
		WorkflowType:  thread.WorkflowType,
		Agent:         thread.Agent,
		ParticipantID: thread.ParticipantID,
		Status:        string(status),
		CreatedBy:     thread.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, insertErr := s.threads().InsertOne(ctx, doc)
	if insertErr == nil {
		s.cacheThreadID(ctx, thread, id)
		return id, nil
	}
	if !mongo.IsDuplicateKeyError(insertErr) {
		return uuid.Nil, insertErr
	}

	// Another caller won the race on the unique composite index; the winner's
	// document must now be visible.
	err = s.threads().FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		// Duplicate key with no matching row afterwards is a logic-error
		// state; surface the original insert failure.
		return uuid.Nil, insertErr
	}
	winnerID := strToUUID(existing.ID)
	s.cacheThreadID(ctx, thread, winnerID)
	return winnerID, nil
}

func (s *MongoStore) GetThreadsByTenantAndAgent(ctx context.Context, tenantID, agent string, page, pageSize *int) ([]model.ConversationThread, error) {
	return retry.Do(ctx, s.exec, "get_threads_by_tenant_and_agent", func(ctx context.Context) ([]model.ConversationThread, error) {
		filter := bson.M{"tenant_id": tenantID, "agent": agent}
		opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
		if page != nil && pageSize != nil && *pageSize > 0 {
			opts.SetSkip(int64(offsetFor(*page, *pageSize))).SetLimit(int64(*pageSize))
		}
		cur, err := s.threads().Find(ctx, filter, opts)
		if err != nil {
			return nil, err
		}
		var docs []threadDoc
		if err := cur.All(ctx, &docs); err != nil {
			return nil, err
		}
		threads := make([]model.ConversationThread, len(docs))
		for i, d := range docs {
			threads[i] = threadFromDoc(d)
		}
		return threads, nil
	})
}

func (s *MongoStore) CountThreadsByTenant(ctx context.Context, tenantID string, status *model.ThreadStatus) (int64, error) {
	return retry.Do(ctx, s.exec, "count_threads_by_tenant", func(ctx context.Context) (int64, error) {
		filter := bson.M{"tenant_id": tenantID}
		if status != nil {
			filter["status"] = string(*status)
		}
		return s.threads().CountDocuments(ctx, filter)
	})
}

func (s *MongoStore) ArchiveThread(ctx context.Context, tenantID string, threadID uuid.UUID) (bool, error) {
	return retry.Do(ctx, s.exec, "archive_thread", func(ctx context.Context) (bool, error) {
		result, err := s.threads().UpdateOne(ctx,
			bson.M{"_id": uuidToStr(threadID), "tenant_id": tenantID},
			bson.M{"$set": bson.M{"status": string(model.ThreadStatusArchived), "updated_at": time.Now()}},
		)
		if err != nil {
			return false, err
		}
		return result.MatchedCount > 0, nil
	})
}

func (s *MongoStore) DeleteThread(ctx context.Context, threadID uuid.UUID, tenantID *string) (bool, error) {
	return retry.Do(ctx, s.exec, "delete_thread", func(ctx context.Context) (bool, error) {
		return s.deleteThread(ctx, threadID, tenantID)
	})
}

func (s *MongoStore) deleteThread(ctx context.Context, threadID uuid.UUID, tenantID *string) (bool, error) {
	var doc threadDoc
	err := s.threads().FindOne(ctx, bson.M{"_id": uuidToStr(threadID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if tenantID != nil && doc.TenantID != *tenantID {
		// Expected caller-input condition, not a server error.
		log.Debug("delete thread refused: tenant mismatch", "threadId", threadID, "tenantId", *tenantID)
		return false, nil
	}

	// The thread and its messages go in one transaction so no message ever
	// outlives its thread.
	_, err = s.withTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := s.messages().DeleteMany(ctx, bson.M{"thread_id": uuidToStr(threadID)}); err != nil {
			return nil, err
		}
		if _, err := s.threads().DeleteOne(ctx, bson.M{"_id": uuidToStr(threadID)}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return false, err
	}
	s.evictThreadID(ctx, doc)
	return true, nil
}

// --- Thread-id cache helpers ---

func (s *MongoStore) cachedThreadID(ctx context.Context, thread *model.ConversationThread) uuid.UUID {
	if s.threadCache == nil || !s.threadCache.Available() {
		return uuid.Nil
	}
	id, err := s.threadCache.Get(ctx, thread.TenantID, thread.WorkflowID, thread.ParticipantID)
	if err != nil {
		log.Debug("thread cache get failed", "err", err)
		return uuid.Nil
	}
	if id == nil {
		if metrics.CacheMissesTotal != nil {
			metrics.CacheMissesTotal.Inc()
		}
		return uuid.Nil
	}
	if metrics.CacheHitsTotal != nil {
		metrics.CacheHitsTotal.Inc()
	}
	return *id
}

func (s *MongoStore) cacheThreadID(ctx context.Context, thread *model.ConversationThread, id uuid.UUID) {
	if s.threadCache == nil || !s.threadCache.Available() {
		return
	}
	if err := s.threadCache.Set(ctx, thread.TenantID, thread.WorkflowID, thread.ParticipantID, id, s.cacheTTL); err != nil {
		log.Debug("thread cache set failed", "err", err)
	}
}

func (s *MongoStore) evictThreadID(ctx context.Context, doc threadDoc) {
	if s.threadCache == nil || !s.threadCache.Available() {
		return
	}
	if err := s.threadCache.Remove(ctx, doc.TenantID, doc.WorkflowID, doc.ParticipantID); err != nil {
		log.Debug("thread cache remove failed", "err", err)
	}
}

func offsetFor(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

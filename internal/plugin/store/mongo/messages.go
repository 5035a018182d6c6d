package mongo

import (
	"context"
	"time"

	"github.com/chatwire/conversation-service/internal/model"
	"github.com/chatwire/conversation-service/internal/payload"
	registrystore "github.com/chatwire/conversation-service/internal/registry/store"
	"github.com/chatwire/conversation-service/internal/retry"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func (s *MongoStore) SaveMessage(ctx context.Context, msg *model.ConversationMessage) (uuid.UUID, error) {
	if !msg.Direction.IsValid() {
		return uuid.Nil, &registrystore.ValidationError{Field: "direction", Message: "must be incoming or outgoing"}
	}
	if msg.ThreadID == uuid.Nil {
		return uuid.Nil, &registrystore.ValidationError{Field: "threadId", Message: "must not be empty"}
	}
	if msg.TenantID == "" {
		return uuid.Nil, &registrystore.ValidationError{Field: "tenantId", Message: "must not be empty"}
	}

	// Encrypting outside the retry loop keeps the write deterministic; an
	// encryption failure aborts the save before anything touches the store.
	var text *string
	if msg.Text != nil && *msg.Text != "" {
		encrypted, err := s.cipher.Encrypt(*msg.Text)
		if err != nil {
			return uuid.Nil, &registrystore.EncryptionError{Err: err}
		}
		text = &encrypted
	}

	// Id and timestamps are stamped once per Save call so an at-least-once
	// retry never produces a second document.
	id := msg.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	// An empty scope means "no scope": stored scopes are nil or non-empty,
	// so a persisted "" can never sit outside every filter.
	scope := msg.Scope
	if scope != nil && *scope == "" {
		scope = nil
	}

	now := time.Now()
	doc := messageDoc{
		ID:            uuidToStr(id),
		ThreadID:      uuidToStr(msg.ThreadID),
		RequestID:     msg.RequestID,
		TenantID:      msg.TenantID,
		ParticipantID: msg.ParticipantID,
		WorkflowID:    msg.WorkflowID,
		WorkflowType:  msg.WorkflowType,
		Direction:     string(msg.Direction),
		MessageType:   messageTypeToStr(msg.MessageType),
		Text:          text,
		Data:          payload.ToStoredForm(msg.Data),
		Status:        deliveryStatusToStr(msg.Status),
		Scope:         scope,
		TaskID:        msg.TaskID,
		Hint:          msg.Hint,
		Origin:        msg.Origin,
		CreatedBy:     msg.CreatedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	return retry.Do(ctx, s.exec, "save_message", func(ctx context.Context) (uuid.UUID, error) {
		return s.saveMessage(ctx, doc)
	})
}

// saveMessage inserts the message and bumps the owning thread's updated_at
// as one transaction: a message is never visible without the activity bump,
// and there is no bump without the message.
func (s *MongoStore) saveMessage(ctx context.Context, doc messageDoc) (uuid.UUID, error) {
	_, err := s.withTransaction(ctx, func(ctx context.Context) (any, error) {
		if _, err := s.messages().InsertOne(ctx, doc); err != nil {
			return nil, err
		}
		// The bump doubles as the existence/tenant check. It must run inside
		// the transaction: a concurrent thread delete committing after a
		// lookup outside it would leave an orphan message behind. A zero
		// match aborts the transaction, insert included.
		result, err := s.threads().UpdateOne(ctx,
			bson.M{"_id": doc.ThreadID, "tenant_id": doc.TenantID},
			bson.M{"$set": bson.M{"updated_at": doc.UpdatedAt}},
		)
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, &registrystore.NotFoundError{Resource: "thread", ID: doc.ThreadID}
		}
		return nil, nil
	})
	if err != nil {
		// A duplicate on our own freshly stamped id means an earlier attempt
		// committed but its outcome was reported as unknown; the whole unit
		// is already applied.
		if mongo.IsDuplicateKeyError(err) {
			return strToUUID(doc.ID), nil
		}
		return uuid.Nil, err
	}
	return strToUUID(doc.ID), nil
}

func (s *MongoStore) UpdateMessageStatus(ctx context.Context, tenantID string, messageID uuid.UUID, status model.DeliveryStatus) (bool, error) {
	return retry.Do(ctx, s.exec, "update_message_status", func(ctx context.Context) (bool, error) {
		result, err := s.messages().UpdateOne(ctx,
			bson.M{"_id": uuidToStr(messageID), "tenant_id": tenantID},
			bson.M{"$set": bson.M{"status": string(status), "updated_at": time.Now()}},
		)
		if err != nil {
			return false, err
		}
		return result.MatchedCount > 0, nil
	})
}

func (s *MongoStore) GetMessagesByThread(ctx context.Context, tenantID string, threadID uuid.UUID, q registrystore.ThreadMessagesQuery) ([]model.ConversationMessage, error) {
	return retry.Do(ctx, s.exec, "get_messages_by_thread", func(ctx context.Context) ([]model.ConversationMessage, error) {
		filter := bson.M{"tenant_id": tenantID, "thread_id": uuidToStr(threadID)}
		applyScopeFilter(filter, q.Scope)
		if q.ChatOnly {
			filter["message_type"] = string(model.MessageTypeChat)
		}

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		if q.Page != nil && q.PageSize != nil && *q.PageSize > 0 {
			opts.SetSkip(int64(offsetFor(*q.Page, *q.PageSize))).SetLimit(int64(*q.PageSize))
		}
		return s.findMessages(ctx, filter, opts)
	})
}

func (s *MongoStore) GetMessagesByWorkflowAndParticipant(ctx context.Context, workflowID, participantID string, page, pageSize int, scope *string, order model.SortOrder) ([]model.ConversationMessage, error) {
	return retry.Do(ctx, s.exec, "get_messages_by_workflow_and_participant", func(ctx context.Context) ([]model.ConversationMessage, error) {
		filter := bson.M{"workflow_id": workflowID, "participant_id": participantID}
		applyScopeFilter(filter, scope)

		direction := -1
		if order == model.SortAscending {
			direction = 1
		}
		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: direction}})
		if pageSize > 0 {
			opts.SetSkip(int64(offsetFor(page, pageSize))).SetLimit(int64(pageSize))
		}
		return s.findMessages(ctx, filter, opts)
	})
}

func (s *MongoStore) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]model.ConversationMessage, error) {
	cur, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	messages := make([]model.ConversationMessage, len(docs))
	for i, d := range docs {
		messages[i] = s.messageFromDoc(d)
	}
	return messages, nil
}

func (s *MongoStore) DeleteMessagesByThread(ctx context.Context, threadID uuid.UUID) (bool, error) {
	return retry.Do(ctx, s.exec, "delete_messages_by_thread", func(ctx context.Context) (bool, error) {
		// Zero matched is success: bulk deletion is idempotent.
		_, err := s.messages().DeleteMany(ctx, bson.M{"thread_id": uuidToStr(threadID)})
		if err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *MongoStore) DeleteMessagesByWorkflowParticipantAndScope(ctx context.Context, workflowID, participantID string, scope *string) (bool, error) {
	return retry.Do(ctx, s.exec, "delete_messages_by_workflow_participant_and_scope", func(ctx context.Context) (bool, error) {
		filter := bson.M{"workflow_id": workflowID, "participant_id": participantID}
		applyScopeFilter(filter, scope)
		_, err := s.messages().DeleteMany(ctx, filter)
		if err != nil {
			return false, err
		}
		return true, nil
	})
}

// --- Last-incoming lookups ---

func (s *MongoStore) GetLastIncomingOrigin(ctx context.Context, threadID uuid.UUID, participantID string) (*string, error) {
	return retry.Do(ctx, s.exec, "get_last_incoming_origin", func(ctx context.Context) (*string, error) {
		doc, err := s.lastIncoming(ctx, bson.M{"thread_id": uuidToStr(threadID), "participant_id": participantID})
		if err != nil || doc == nil {
			return nil, err
		}
		return doc.Origin, nil
	})
}

func (s *MongoStore) GetLastIncomingData(ctx context.Context, workflowID, participantID string, scope *string) (any, error) {
	return retry.Do(ctx, s.exec, "get_last_incoming_data", func(ctx context.Context) (any, error) {
		filter := bson.M{"workflow_id": workflowID, "participant_id": participantID}
		applyScopeFilter(filter, scope)
		doc, err := s.lastIncoming(ctx, filter)
		if err != nil || doc == nil {
			return nil, err
		}
		return payload.FromStoredForm(doc.Data), nil
	})
}

func (s *MongoStore) GetLastTaskID(ctx context.Context, workflowID, participantID string, scope *string) (*string, error) {
	return retry.Do(ctx, s.exec, "get_last_task_id", func(ctx context.Context) (*string, error) {
		filter := bson.M{"workflow_id": workflowID, "participant_id": participantID}
		applyScopeFilter(filter, scope)
		doc, err := s.lastIncoming(ctx, filter)
		if err != nil || doc == nil {
			return nil, err
		}
		return doc.TaskID, nil
	})
}

// lastIncoming returns the most recent incoming message matching filter, or
// nil when none qualifies.
func (s *MongoStore) lastIncoming(ctx context.Context, filter bson.M) (*messageDoc, error) {
	filter["direction"] = string(model.DirectionIncoming)
	var doc messageDoc
	err := s.messages().FindOne(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// --- Conversions ---

// messageFromDoc decodes a stored message for callers: text is decrypted
// (with legacy-plaintext fallback) and data goes back through the payload
// codec. The read path never fails on decode problems.
func (s *MongoStore) messageFromDoc(d messageDoc) model.ConversationMessage {
	var text *string
	if d.Text != nil {
		decrypted := s.cipher.Decrypt(*d.Text)
		text = &decrypted
	}
	return model.ConversationMessage{
		ID:            strToUUID(d.ID),
		ThreadID:      strToUUID(d.ThreadID),
		RequestID:     d.RequestID,
		TenantID:      d.TenantID,
		ParticipantID: d.ParticipantID,
		WorkflowID:    d.WorkflowID,
		WorkflowType:  d.WorkflowType,
		Direction:     model.Direction(d.Direction),
		MessageType:   strToMessageType(d.MessageType),
		Text:          text,
		Data:          payload.FromStoredForm(d.Data),
		Status:        strToDeliveryStatus(d.Status),
		Scope:         d.Scope,
		TaskID:        d.TaskID,
		Hint:          d.Hint,
		Origin:        d.Origin,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func messageTypeToStr(t *model.MessageType) *string {
	if t == nil {
		return nil
	}
	s := string(*t)
	return &s
}

func strToMessageType(s *string) *model.MessageType {
	if s == nil {
		return nil
	}
	t := model.MessageType(*s)
	return &t
}

func deliveryStatusToStr(st *model.DeliveryStatus) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}

func strToDeliveryStatus(s *string) *model.DeliveryStatus {
	if s == nil {
		return nil
	}
	st := model.DeliveryStatus(*s)
	return &st
}

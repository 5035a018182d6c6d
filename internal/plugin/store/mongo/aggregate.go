package mongo

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chatwire/conversation-service/internal/model"
	registrystore "github.com/chatwire/conversation-service/internal/registry/store"
	"github.com/chatwire/conversation-service/internal/retry"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type topicGroup struct {
	Scope         *string   `bson:"_id"`
	MessageCount  int64     `bson:"message_count"`
	LastMessageAt time.Time `bson:"last_message_at"`
}

type topicFacets struct {
	Items []topicGroup `bson:"items"`
	Total []struct {
		Count int64 `bson:"count"`
	} `bson:"total"`
}

type topicsResult struct {
	Topics     []model.TopicSummary
	Pagination model.Pagination
}

func (s *MongoStore) GetTopics(ctx context.Context, tenantID string, threadID uuid.UUID, page, pageSize int) ([]model.TopicSummary, *model.Pagination, error) {
	if pageSize < 1 {
		return nil, nil, &registrystore.ValidationError{Field: "pageSize", Message: "must be positive"}
	}
	result, err := retry.Do(ctx, s.exec, "get_topics", func(ctx context.Context) (*topicsResult, error) {
		return s.getTopics(ctx, tenantID, threadID, page, pageSize)
	})
	if err != nil {
		return nil, nil, err
	}
	return result.Topics, &result.Pagination, nil
}

// getTopics groups the thread's messages by scope (null scope is its own
// group), newest activity first, tie-broken by scope name. The $facet stage
// yields the page slice and the group total in the same aggregation pass.
func (s *MongoStore) getTopics(ctx context.Context, tenantID string, threadID uuid.UUID, page, pageSize int) (*topicsResult, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tenant_id": tenantID, "thread_id": uuidToStr(threadID)}}},
		{{Key: "$group", Value: bson.M{
			"_id":             "$scope",
			"message_count":   bson.M{"$sum": 1},
			"last_message_at": bson.M{"$max": "$created_at"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$facet", Value: bson.M{
			"items": bson.A{
				bson.M{"$skip": offsetFor(page, pageSize)},
				bson.M{"$limit": pageSize},
			},
			"total": bson.A{bson.M{"$count": "count"}},
		}}},
	}

	start := time.Now()
	cur, err := s.messages().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var facets []topicFacets
	if err := cur.All(ctx, &facets); err != nil {
		return nil, err
	}
	if elapsed := time.Since(start); s.slowThreshold > 0 && elapsed > s.slowThreshold {
		log.Warn("slow topic aggregation", "tenantId", tenantID, "threadId", threadID, "elapsed", elapsed)
	}

	result := &topicsResult{
		Topics:     []model.TopicSummary{},
		Pagination: model.Pagination{Page: page, PageSize: pageSize},
	}
	if len(facets) == 0 {
		return result, nil
	}
	for _, g := range facets[0].Items {
		result.Topics = append(result.Topics, model.TopicSummary{
			Scope:         g.Scope,
			MessageCount:  g.MessageCount,
			LastMessageAt: g.LastMessageAt,
		})
	}
	if len(facets[0].Total) > 0 {
		total := facets[0].Total[0].Count
		result.Pagination.TotalItems = total
		result.Pagination.TotalPages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return result, nil
}

func (s *MongoStore) GetMessagingStats(ctx context.Context, tenantID string, startDate, endDate time.Time, participantID *string) (*model.MessagingStats, error) {
	return retry.Do(ctx, s.exec, "get_messaging_stats", func(ctx context.Context) (*model.MessagingStats, error) {
		match := bson.M{
			"tenant_id":  tenantID,
			"created_at": bson.M{"$gte": startDate, "$lte": endDate},
		}
		if participantID != nil {
			match["participant_id"] = *participantID
		}
		pipeline := mongo.Pipeline{
			{{Key: "$match", Value: match}},
			{{Key: "$group", Value: bson.M{
				"_id":            nil,
				"total_messages": bson.M{"$sum": 1},
				"participants":   bson.M{"$addToSet": "$participant_id"},
			}}},
			{{Key: "$project", Value: bson.M{
				"total_messages":      1,
				"active_participants": bson.M{"$size": "$participants"},
			}}},
		}

		cur, err := s.messages().Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			TotalMessages      int64 `bson:"total_messages"`
			ActiveParticipants int64 `bson:"active_participants"`
		}
		if err := cur.All(ctx, &rows); err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return &model.MessagingStats{}, nil
		}
		return &model.MessagingStats{
			TotalMessages:      rows[0].TotalMessages,
			ActiveParticipants: rows[0].ActiveParticipants,
		}, nil
	})
}

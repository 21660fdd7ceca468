package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sagarjadhav/tablemate/internal/models"
	"gorm.io/gorm"
)

// Redis cache key prefixes. Webhook delivery hits these lookups on every
// message, so channel, flow and action configs are cached and invalidated
// on write.
const (
	cacheKeyChannel = "tablemate:channel:phone:%s"
	cacheKeyFlow    = "tablemate:flow:chatbot:%s"
	cacheKeyAction  = "tablemate:action:slug:%s"
)

func (a *App) cacheTTL() time.Duration {
	secs := a.Config.Chatbot.ConfigCacheTTLSecs
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// cacheGet loads a JSON value from Redis into dest. A miss or an
// unavailable Redis both return false so callers fall through to the DB.
func (a *App) cacheGet(ctx context.Context, key string, dest any) bool {
	if a.Redis == nil {
		return false
	}
	data, err := a.Redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			a.Log.Warn("Cache read failed", "error", err, "key", key)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		a.Log.Warn("Cache entry corrupt, dropping", "error", err, "key", key)
		a.cacheDelete(ctx, key)
		return false
	}
	return true
}

// cacheSet stores a JSON value in Redis, best effort
func (a *App) cacheSet(ctx context.Context, key string, value any) {
	if a.Redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.Redis.Set(ctx, key, data, a.cacheTTL()).Err(); err != nil {
		a.Log.Warn("Cache write failed", "error", err, "key", key)
	}
}

// cacheDelete removes a key, best effort
func (a *App) cacheDelete(ctx context.Context, key string) {
	if a.Redis == nil {
		return
	}
	if err := a.Redis.Del(ctx, key).Err(); err != nil {
		a.Log.Warn("Cache delete failed", "error", err, "key", key)
	}
}

// getChannelByPhoneID resolves an active channel by its Cloud API phone
// number ID. Returns (nil, nil) when no such channel exists.
func (a *App) getChannelByPhoneID(ctx context.Context, phoneID string) (*models.Channel, error) {
	key := fmt.Sprintf(cacheKeyChannel, phoneID)

	var cached models.Channel
	if a.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	var channel models.Channel
	err := a.DB.Where("phone_id = ? AND status = ?", phoneID, "active").First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	a.cacheSet(ctx, key, &channel)
	return &channel, nil
}

// getQuestionFlowCached resolves a chatbot's question flow. Returns
// (nil, nil) when the chatbot has none.
func (a *App) getQuestionFlowCached(ctx context.Context, chatbotID uuid.UUID) (*models.QuestionFlow, error) {
	key := fmt.Sprintf(cacheKeyFlow, chatbotID)

	var cached models.QuestionFlow
	if a.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	var flow models.QuestionFlow
	err := a.DB.Where("chatbot_id = ?", chatbotID).First(&flow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	a.cacheSet(ctx, key, &flow)
	return &flow, nil
}

// getOrderActionCached resolves an active order action by slug. Returns
// (nil, nil) when no such action exists.
func (a *App) getOrderActionCached(ctx context.Context, slug string) (*models.OrderAction, error) {
	key := fmt.Sprintf(cacheKeyAction, slug)

	var cached models.OrderAction
	if a.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	var action models.OrderAction
	err := a.DB.Where("slug = ? AND is_active = ?", slug, true).First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	a.cacheSet(ctx, key, &action)
	return &action, nil
}

// invalidateChannelCache drops a channel's cache entry after a CRUD write
func (a *App) invalidateChannelCache(ctx context.Context, phoneID string) {
	a.cacheDelete(ctx, fmt.Sprintf(cacheKeyChannel, phoneID))
}

// invalidateFlowCache drops a question flow's cache entry after a CRUD write
func (a *App) invalidateFlowCache(ctx context.Context, chatbotID uuid.UUID) {
	a.cacheDelete(ctx, fmt.Sprintf(cacheKeyFlow, chatbotID))
}

// invalidateActionCache drops an order action's cache entry after a CRUD write
func (a *App) invalidateActionCache(ctx context.Context, slug string) {
	a.cacheDelete(ctx, fmt.Sprintf(cacheKeyAction, slug))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amazingshop/userservice/internal/cache"
	"github.com/amazingshop/userservice/internal/es"
	"github.com/amazingshop/userservice/internal/logging"
	"github.com/amazingshop/userservice/internal/models"
	"github.com/amazingshop/userservice/internal/repo"
)

const defaultChatTitle = "New Chat"

type ChatStore interface {
	ChatByID(ctx context.Context, chatID uint) (*models.Chat, error)
	ChatsByUser(ctx context.Context, userID uint, title, subject string) ([]models.Chat, error)
	RecentChats(ctx context.Context, userID uint, limit int) ([]models.Chat, error)
	CreateChat(ctx context.Context, chat *models.Chat) error
	SaveChat(ctx context.Context, chat *models.Chat) error
	DeleteChat(ctx context.Context, chatID uint) error
	DeleteChatsByUser(ctx context.Context, userID uint) error
	MessagesByChat(ctx context.Context, chatID uint) ([]models.ChatMessage, error)
	CountMessages(ctx context.Context, chatID uint, role string) (int64, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
}

type MessageIndexer interface {
	IndexMessage(ctx context.Context, userID uint, msg models.ChatMessage) error
	SearchMessages(ctx context.Context, userID uint, query string, size int) ([]es.MessageDoc, error)
}

// ChatService owns the per-user chat store. Unfiltered chat lists and
// per-chat message lists read through the cache; each mutation invalidates
// the keys named in its doc comment. Message content is additionally indexed
// into Elasticsearch, best-effort, for SearchMessages.
type ChatService struct {
	Repo  ChatStore
	Cache *cache.Store
	Index MessageIndexer
}

func chatsKey(userID uint) string { return fmt.Sprintf("chats:%d", userID) }

func messagesKey(chatID uint) string { return fmt.Sprintf("chatmsgs:%d", chatID) }

func (s *ChatService) ListChats(ctx context.Context, userID uint, title, subject string) ([]models.Chat, error) {
	if title == "" && subject == "" {
		var cached []models.Chat
		if hit, err := s.Cache.Get(ctx, chatsKey(userID), &cached); err != nil {
			logging.FromContext(ctx).Warn("cache_get_failed", "key", chatsKey(userID), "error", err)
		} else if hit {
			return cached, nil
		}
	}

	chats, err := s.Repo.ChatsByUser(ctx, userID, title, subject)
	if err != nil {
		return nil, err
	}
	if title == "" && subject == "" {
		if err := s.Cache.Set(ctx, chatsKey(userID), chats); err != nil {
			logging.FromContext(ctx).Warn("cache_set_failed", "key", chatsKey(userID), "error", err)
		}
	}
	return chats, nil
}

func (s *ChatService) RecentChats(ctx context.Context, userID uint, limit int) ([]models.Chat, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.Repo.RecentChats(ctx, userID, limit)
}

// CreateChat invalidates: chats:<userID>.
func (s *ChatService) CreateChat(ctx context.Context, userID uint, title, subject string) (*models.Chat, error) {
	now := time.Now()
	chat := &models.Chat{
		UserID:    userID,
		Title:     defaultChatTitle,
		Subject:   subject,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if title != "" {
		chat.Title = truncateTitle(title)
	}
	if err := s.Repo.CreateChat(ctx, chat); err != nil {
		return nil, err
	}
	s.evict(ctx, chatsKey(userID))
	return chat, nil
}

// UpdateChatTitle invalidates: chats:<userID>.
func (s *ChatService) UpdateChatTitle(ctx context.Context, chatID, userID uint, title string) (*models.Chat, error) {
	chat, err := s.ownedChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	chat.Title = title
	chat.UpdatedAt = time.Now()
	if err := s.Repo.SaveChat(ctx, chat); err != nil {
		return nil, err
	}
	s.evict(ctx, chatsKey(userID))
	return chat, nil
}

// DeleteChat invalidates: chats:<userID>, chatmsgs:<chatID>.
func (s *ChatService) DeleteChat(ctx context.Context, chatID, userID uint) error {
	if _, err := s.ownedChat(ctx, chatID, userID); err != nil {
		return err
	}
	if err := s.Repo.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	s.evict(ctx, chatsKey(userID), messagesKey(chatID))
	return nil
}

// DeleteAllChats invalidates: chats:<userID> and every chatmsgs key of the
// user's chats.
func (s *ChatService) DeleteAllChats(ctx context.Context, userID uint) error {
	chats, err := s.Repo.ChatsByUser(ctx, userID, "", "")
	if err != nil {
		return err
	}
	if err := s.Repo.DeleteChatsByUser(ctx, userID); err != nil {
		return err
	}
	keys := []string{chatsKey(userID)}
	for _, chat := range chats {
		keys = append(keys, messagesKey(chat.ID))
	}
	s.evict(ctx, keys...)
	return nil
}

func (s *ChatService) Messages(ctx context.Context, chatID, userID uint) ([]models.ChatMessage, error) {
	if _, err := s.ownedChat(ctx, chatID, userID); err != nil {
		return nil, err
	}

	var cached []models.ChatMessage
	if hit, err := s.Cache.Get(ctx, messagesKey(chatID), &cached); err != nil {
		logging.FromContext(ctx).Warn("cache_get_failed", "key", messagesKey(chatID), "error", err)
	} else if hit {
		return cached, nil
	}

	msgs, err := s.Repo.MessagesByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, messagesKey(chatID), msgs); err != nil {
		logging.FromContext(ctx).Warn("cache_set_failed", "key", messagesKey(chatID), "error", err)
	}
	return msgs, nil
}

// AddMessage invalidates: chats:<userID>, chatmsgs:<chatID>. The first user
// message re-titles the chat from its content.
func (s *ChatService) AddMessage(ctx context.Context, chatID, userID uint, role, content, templateUsed string) (*models.ChatMessage, error) {
	l := logging.FromContext(ctx).With("svc", "chat.add_message")

	chat, err := s.ownedChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	firstUserMessage := false
	if role == "user" {
		count, err := s.Repo.CountMessages(ctx, chatID, "user")
		if err != nil {
			return nil, err
		}
		firstUserMessage = count == 0
	}

	msg := &models.ChatMessage{
		ChatID:       chatID,
		Role:         role,
		Content:      content,
		TemplateUsed: templateUsed,
		CreatedAt:    time.Now(),
	}
	if err := s.Repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	if firstUserMessage && strings.TrimSpace(content) != "" {
		chat.Title = truncateTitle(content)
	}
	chat.UpdatedAt = time.Now()
	if err := s.Repo.SaveChat(ctx, chat); err != nil {
		return nil, err
	}

	s.evict(ctx, chatsKey(userID), messagesKey(chatID))
	s.indexAsync(l, userID, *msg)
	return msg, nil
}

func (s *ChatService) SearchMessages(ctx context.Context, userID uint, query string) ([]es.MessageDoc, error) {
	if s.Index == nil {
		return nil, ErrNotFound
	}
	return s.Index.SearchMessages(ctx, userID, query, 20)
}

func (s *ChatService) ownedChat(ctx context.Context, chatID, userID uint) (*models.Chat, error) {
	chat, err := s.Repo.ChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if chat.UserID != userID {
		return nil, ErrForbidden
	}
	return chat, nil
}

func (s *ChatService) evict(ctx context.Context, keys ...string) {
	if err := s.Cache.Delete(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("cache_evict_failed", "keys", keys, "error", err)
	}
}

func (s *ChatService) indexAsync(l *slog.Logger, userID uint, msg models.ChatMessage) {
	if s.Index == nil {
		return
	}
	go func() {
		idxCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Index.IndexMessage(idxCtx, userID, msg); err != nil {
			l.Error("message_index_failed", "chat_id", msg.ChatID, "error", err)
		}
	}()
}

func truncateTitle(text string) string {
	words := strings.Fields(strings.TrimSpace(text))
	var title strings.Builder

	for i := 0; i < len(words) && i < 8; i++ {
		if title.Len()+len(words[i]) > 40 {
			break
		}
		if title.Len() > 0 {
			title.WriteString(" ")
		}
		title.WriteString(words[i])
	}

	if title.Len() == 0 {
		return defaultChatTitle
	}
	return title.String()
}

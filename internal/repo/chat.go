package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/amazingshop/userservice/internal/models"
)

func (r *GormRepo) ChatByID(ctx context.Context, chatID uint) (*models.Chat, error) {
	var chat models.Chat
	if err := r.DB.WithContext(ctx).First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *GormRepo) ChatsByUser(ctx context.Context, userID uint, title, subject string) ([]models.Chat, error) {
	q := r.DB.WithContext(ctx).Where("user_id = ?", userID)
	if title != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%")
	}
	if subject != "" {
		q = q.Where("subject = ?", subject)
	}
	var chats []models.Chat
	if err := q.Order("updated_at DESC").Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *GormRepo) RecentChats(ctx context.Context, userID uint, limit int) ([]models.Chat, error) {
	var chats []models.Chat
	if err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *GormRepo) CreateChat(ctx context.Context, chat *models.Chat) error {
	return r.DB.WithContext(ctx).Create(chat).Error
}

func (r *GormRepo) SaveChat(ctx context.Context, chat *models.Chat) error {
	return r.DB.WithContext(ctx).Save(chat).Error
}

func (r *GormRepo) DeleteChat(ctx context.Context, chatID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", chatID).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Chat{}, chatID).Error
	})
}

func (r *GormRepo) DeleteChatsByUser(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Chat{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("chat_id IN ?", ids).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&models.Chat{}).Error
	})
}

func (r *GormRepo) MessagesByChat(ctx context.Context, chatID uint) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := r.DB.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *GormRepo) CountMessages(ctx context.Context, chatID uint, role string) (int64, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("chat_id = ? AND role = ?", chatID, role).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormRepo) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

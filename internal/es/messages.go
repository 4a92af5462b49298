package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/amazingshop/userservice/internal/models"
)

const DefaultMessageIndex = "chat_messages"

type MessageDoc struct {
	MessageID uint      `json:"message_id"`
	ChatID    uint      `json:"chat_id"`
	UserID    uint      `json:"user_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageIndex indexes chat messages for full-text search, keyed by owner so
// search never crosses user boundaries.
type MessageIndex struct {
	Client *elasticsearch.Client
	Index  string
}

func NewMessageIndex(client *elasticsearch.Client) *MessageIndex {
	return &MessageIndex{Client: client, Index: DefaultMessageIndex}
}

func (m *MessageIndex) IndexMessage(ctx context.Context, userID uint, msg models.ChatMessage) error {
	doc := MessageDoc{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		UserID:    userID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("es index: %w", err)
	}

	res, err := m.Client.Index(
		m.Index,
		bytes.NewReader(data),
		m.Client.Index.WithContext(ctx),
		m.Client.Index.WithDocumentID(strconv.FormatUint(uint64(msg.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("es index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

func (m *MessageIndex) SearchMessages(ctx context.Context, userID uint, query string, size int) ([]MessageDoc, error) {
	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"match": map[string]any{
						"content": map[string]any{
							"query":     query,
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"user_id": userID},
				},
			},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}

	res, err := m.Client.Search(
		m.Client.Search.WithContext(ctx),
		m.Client.Search.WithIndex(m.Index),
		m.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source MessageDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	docs := make([]MessageDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		docs[i] = hit.Source
	}
	return docs, nil
}

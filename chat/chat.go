// Package chat defines the conversation and message models.
package chat

import (
	"fmt"
	"time"
)

// ConversationType distinguishes the participant topology.
type ConversationType string

const (
	TypeDirect  ConversationType = "direct"
	TypeGroup   ConversationType = "group"
	TypeTrichat ConversationType = "trichat"
)

// Conversation is a chat thread between two or more members.
type Conversation struct {
	ID            string           `json:"id"`
	Type          ConversationType `json:"type"`
	Name          string           `json:"name,omitempty"`
	Participants  []string         `json:"participants"` // member IDs
	LastMessageAt time.Time        `json:"last_message_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EntityID implements store.Entity.
func (c Conversation) EntityID() string { return c.ID }

// MessageType identifies the payload of a message.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageAudio  MessageType = "audio"
	MessageFile   MessageType = "file"
	MessageSystem MessageType = "system"
)

// Message belongs to exactly one conversation. Messages are append-only:
// once sent they are never edited through this layer.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
	Timestamp      time.Time   `json:"timestamp"`
	IsRead         bool        `json:"is_read"`
}

// EntityID implements store.Entity.
func (m Message) EntityID() string { return m.ID }

func validConversationType(t ConversationType) bool {
	switch t {
	case TypeDirect, TypeGroup, TypeTrichat:
		return true
	}
	return false
}

// ValidateConversation checks a conversation before it is created remotely.
func ValidateConversation(c Conversation) error {
	if !validConversationType(c.Type) {
		return fmt.Errorf("invalid conversation type %q", c.Type)
	}
	if len(c.Participants) == 0 {
		return fmt.Errorf("conversation requires at least one participant")
	}
	if c.Type == TypeDirect && len(c.Participants) != 2 {
		return fmt.Errorf("direct conversation requires exactly two participants")
	}
	return nil
}

// ValidateMessage checks a message before it is sent. Every message must
// name the conversation it belongs to.
func ValidateMessage(m Message) error {
	if m.ConversationID == "" {
		return fmt.Errorf("message conversation_id is required")
	}
	if m.Content == "" {
		return fmt.Errorf("message content is required")
	}
	switch m.Type {
	case MessageText, MessageAudio, MessageFile, MessageSystem:
	case "":
	default:
		return fmt.Errorf("invalid message type %q", m.Type)
	}
	return nil
}

// UnreadCount returns how many messages in msgs are unread for the given
// conversation, excluding the viewer's own messages.
func UnreadCount(msgs []Message, conversationID, viewerID string) int {
	n := 0
	for _, m := range msgs {
		if m.ConversationID == conversationID && !m.IsRead && m.SenderID != viewerID {
			n++
		}
	}
	return n
}

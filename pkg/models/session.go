package models

import "time"

// Message is one turn of follow-up conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Session ties one completed pipeline run to its owning user so follow-up
// questions can be answered with the run's context. Stored in Redis with a
// TTL; visible only to the user that created it.
type Session struct {
	ConversationID string           `json:"conversation_id"`
	UserID         int64            `json:"user_id"`
	OriginalQuery  string           `json:"original_query"`
	StudiesData    string           `json:"studies_data"` // extracted dataset (stage 2 output)
	Analysis       AnalysisResult   `json:"analysis"`
	History        []Message        `json:"history,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

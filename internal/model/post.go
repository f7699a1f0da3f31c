package model

type Post struct {
	ID             string `json:"id"`
	StorytellerID  string `json:"storyteller_id"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	Ctime          int64  `json:"ctime"`
	Mtime          int64  `json:"mtime"`
}

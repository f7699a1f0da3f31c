package model

const (
	SpeakerInterviewer = "interviewer"
	SpeakerStoryteller = "storyteller"
)

type Conversation struct {
	ID            string `json:"id"`
	StorytellerID string `json:"storyteller_id"`
	Title         string `json:"title"`
	Ctime         int64  `json:"ctime"`
	Mtime         int64  `json:"mtime"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Speaker        string `json:"speaker"`
	Content        string `json:"content"`
	RecordingKey   string `json:"recording_key,omitempty"`
	Ctime          int64  `json:"ctime"`
}

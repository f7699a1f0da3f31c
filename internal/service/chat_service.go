package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mlevan/hearth/internal/ai"
	"github.com/mlevan/hearth/internal/model"
	appErr "github.com/mlevan/hearth/internal/pkg/errors"
	"github.com/mlevan/hearth/internal/pkg/timeutil"
	"github.com/mlevan/hearth/internal/repo"
)

const openingQuestion = "I'd love to hear one of your memories. What moment would you like to talk about today?"

const interviewerPrompt = `You are a warm, patient interviewer helping someone tell a personal memory.
Ask exactly one short follow-up question about the memory below. Dig for sensory
details, dates, places, people and feelings. Never invent facts and never answer
for the storyteller.`

const synthesisPrompt = `Turn the interview transcript below into a memory post.
Respond with a JSON object only, no surrounding text, with two keys:
"title" (a headline of at most 8 words) and "post" (a warm, readable story of
roughly 300-450 words in the storyteller's voice). Remove filler words but do
not invent facts; mark uncertain details like "[uncertain: ~1952]".`

// ChatService runs the guided interview that collects a memory and the
// synthesis step that turns the transcript into a post.
type ChatService struct {
	conversations *repo.ConversationRepo
	posts         *PostService
	generator     ai.IGenerator
	timeout       time.Duration
}

func NewChatService(conversations *repo.ConversationRepo, posts *PostService, generator ai.IGenerator, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatService{conversations: conversations, posts: posts, generator: generator, timeout: timeout}
}

// Start opens a conversation seeded with the interviewer's opening question.
func (s *ChatService) Start(ctx context.Context, storytellerID, title string) (*model.Conversation, error) {
	now := timeutil.NowUnix()
	conv := &model.Conversation{
		ID:            newID(),
		StorytellerID: storytellerID,
		Title:         strings.TrimSpace(title),
		Ctime:         now,
		Mtime:         now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	opener := &model.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		Speaker:        model.SpeakerInterviewer,
		Content:        openingQuestion,
		Ctime:          now,
	}
	if err := s.conversations.AppendMessage(ctx, opener); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ChatService) List(ctx context.Context, storytellerID string) ([]model.Conversation, error) {
	return s.conversations.ListByStoryteller(ctx, storytellerID)
}

func (s *ChatService) ListMessages(ctx context.Context, storytellerID, conversationID string) ([]model.Message, error) {
	if _, err := s.conversations.GetByID(ctx, storytellerID, conversationID); err != nil {
		return nil, err
	}
	return s.conversations.ListMessages(ctx, conversationID)
}

// SendMessage stores the storyteller's turn (optionally referencing an
// uploaded recording) and asks the interviewer for the next question. The
// storyteller turn survives even when the AI call fails.
func (s *ChatService) SendMessage(ctx context.Context, storytellerID, conversationID, content, recordingKey string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	if _, err := s.conversations.GetByID(ctx, storytellerID, conversationID); err != nil {
		return nil, err
	}
	now := timeutil.NowUnix()
	userMsg := &model.Message{
		ID:             newID(),
		ConversationID: conversationID,
		Speaker:        model.SpeakerStoryteller,
		Content:        content,
		RecordingKey:   recordingKey,
		Ctime:          now,
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	aiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	reply, err := s.generator.Generate(aiCtx, interviewerPrompt+"\n\nTranscript:\n"+transcript(messages))
	if err != nil {
		return nil, err
	}
	replyMsg := &model.Message{
		ID:             newID(),
		ConversationID: conversationID,
		Speaker:        model.SpeakerInterviewer,
		Content:        reply,
		Ctime:          timeutil.NowUnix(),
	}
	if err := s.conversations.AppendMessage(ctx, replyMsg); err != nil {
		return nil, err
	}
	if err := s.conversations.Touch(ctx, storytellerID, conversationID, replyMsg.Ctime); err != nil {
		return nil, err
	}
	return replyMsg, nil
}

type synthesisResult struct {
	Title string `json:"title"`
	Post  string `json:"post"`
}

// Synthesize turns the transcript into a memory post owned by the
// storyteller.
func (s *ChatService) Synthesize(ctx context.Context, storytellerID, conversationID string) (*model.Post, error) {
	conv, err := s.conversations.GetByID(ctx, storytellerID, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	told := false
	for _, msg := range messages {
		if msg.Speaker == model.SpeakerStoryteller {
			told = true
			break
		}
	}
	if !told {
		return nil, appErr.ErrInvalid
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := s.generator.Generate(aiCtx, synthesisPrompt+"\n\nTranscript:\n"+transcript(messages))
	if err != nil {
		return nil, err
	}
	var result synthesisResult
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &result); err != nil {
		return nil, fmt.Errorf("parse synthesis result: %w", err)
	}
	if result.Title == "" || result.Post == "" {
		return nil, fmt.Errorf("synthesis result missing title or post")
	}
	return s.posts.Create(ctx, storytellerID, conv.ID, result.Title, result.Post)
}

func transcript(messages []model.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		speaker := "Storyteller"
		if msg.Speaker == model.SpeakerInterviewer {
			speaker = "Interviewer"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

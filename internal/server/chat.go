package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/briefly-ai/briefly/internal/brief"
	"github.com/briefly-ai/briefly/internal/store"
)

const (
	chatBriefWindow = 5
	chatConvWindow  = 10
)

// ChatHandler answers quick conversational research questions without running
// the full pipeline. Replies are grounded in the user's recent briefs and
// chat exchanges, both loaded best-effort.
type ChatHandler struct {
	Store  *store.Store
	LLM    brief.Generator
	Logger *log.Logger
}

func (h *ChatHandler) Register(api *echo.Group, secret []byte) {
	api.POST("/chat", h.chat, func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, secret) })
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	userID := c.Get("user_id").(string)
	ctx := c.Request().Context()

	var briefs []brief.FinalBrief
	if got, err := h.Store.LoadHistory(ctx, userID, chatBriefWindow); err != nil {
		h.Logger.Printf("chat history for %s: %v", userID, err)
	} else {
		briefs = got
	}
	var convs []store.ConversationRecord
	if got, err := h.Store.ListConversations(ctx, userID, chatConvWindow); err != nil {
		h.Logger.Printf("chat conversations for %s: %v", userID, err)
	} else {
		convs = got
	}

	reply, err := h.LLM.Generate(ctx, chatPrompt(req.Message, briefs, convs), brief.TierSecondary)
	if err != nil {
		h.Logger.Printf("chat generate for %s: %v", userID, err)
		reply = fmt.Sprintf("I understand you're asking about %q. That would make a good topic for a full research brief.", req.Message)
	}

	if err := h.Store.SaveConversation(ctx, store.ConversationRecord{
		UserID:    userID,
		UserInput: req.Message,
		BotReply:  reply,
		Kind:      "chat",
	}); err != nil {
		h.Logger.Printf("save conversation for %s: %v", userID, err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Response:              reply,
		Timestamp:             time.Now().UTC(),
		PreviousBriefs:        len(briefs),
		PreviousConversations: len(convs),
	})
}

func chatPrompt(message string, briefs []brief.FinalBrief, convs []store.ConversationRecord) string {
	var sb strings.Builder
	sb.WriteString("You are a research assistant in an ongoing conversation. Answer the user's question naturally and conversationally.\n")
	fmt.Fprintf(&sb, "Current date: %s\n", time.Now().Format("January 2, 2006"))

	if len(briefs) > 0 {
		sb.WriteString("\nPrevious research context:\n")
		for _, b := range briefs {
			fmt.Fprintf(&sb, "- %s: %s\n", b.Topic, clip(b.ExecutiveSummary, 200))
			if len(b.KeyInsights) > 0 {
				n := len(b.KeyInsights)
				if n > 3 {
					n = 3
				}
				fmt.Fprintf(&sb, "  Key insights: %s\n", strings.Join(b.KeyInsights[:n], ", "))
			}
		}
	}
	if len(convs) > 0 {
		sb.WriteString("\nRecent conversation:\n")
		// newest first in storage; replay oldest first
		for i := len(convs) - 1; i >= 0; i-- {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", convs[i].UserInput, clip(convs[i].BotReply, 150))
		}
	}

	fmt.Fprintf(&sb, "\nUser question: %s\n", message)
	sb.WriteString(`
Instructions:
1. If the question relates to previous research or conversation, use that context.
2. If the topic would benefit from a full research brief, mention that option.
3. Keep the response focused and relevant.`)
	return sb.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

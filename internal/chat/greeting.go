package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nipun-marak/realtime-avatar-chat/pkg/provider/llm"
)

// checkinAfter is how long a user must be away before the greeting becomes a
// model-generated check-in instead of a canned welcome-back line.
const checkinAfter = 24 * time.Hour

// Greet produces the opening line for a session start.
//
// Brand-new users and recently seen users get fixed greetings. A user who
// has been away for more than a day gets a personalised check-in generated
// from the companion's summary of them; if the model is unreachable the
// greeting degrades to a fixed line rather than failing the session start.
func (c *Companion) Greet(ctx context.Context, username string) (string, error) {
	user, err := c.stores.Users.GetOrCreate(ctx, username)
	if err != nil {
		return "", fmt.Errorf("chat: greet: %w", err)
	}

	switch since := c.now().Sub(user.LastSeen); {
	case user.PersonalitySummary == "" && user.BehavioralNotes == "":
		// First meeting: nothing is known about them yet.
		return fmt.Sprintf("Hello, %s! It's nice to meet you. How can I help you today?", username), nil

	case since < checkinAfter:
		return fmt.Sprintf("Hello again, %s! What's on your mind today?", username), nil

	default:
		return c.checkin(ctx, username, user.PersonalitySummary, since), nil
	}
}

// checkin asks the model for a short personalised check-in message.
func (c *Companion) checkin(ctx context.Context, username, summary string, since time.Duration) string {
	fallback := fmt.Sprintf("Hello again, %s! It's been a while. How are you doing today?", username)

	prompt := fmt.Sprintf(
		`You are checking in with your friend %s, who you haven't spoken to in %d day(s). Your last understanding of them was: %q. Generate a single, gentle, short, and friendly check-in message. Reply with the message text only.`,
		username, int(since.Hours()/24), summary,
	)

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil || resp == nil {
		c.log.Warn("check-in generation failed", "user", username, "error", err)
		return fallback
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return fallback
	}
	return text
}

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	emailOutboxKey   = "email:outbox"
	defaultFromEmail = "agent@company.com"
)

// OutboxEmail is one message written to the outbox.
type OutboxEmail struct {
	EmailID string `json:"email_id"`
	To      string `json:"to"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_at"`
	Status  string `json:"status"`
}

// EmailAdapter writes outgoing mail to a Redis outbox that a delivery worker
// (or a real provider integration) drains.
type EmailAdapter struct {
	rdb redis.Cmdable
}

func NewEmailAdapter(rdb redis.Cmdable) *EmailAdapter {
	return &EmailAdapter{rdb: rdb}
}

func (a *EmailAdapter) Name() string {
	return "email_tool"
}

func (a *EmailAdapter) Kind() Kind {
	return KindEmail
}

func (a *EmailAdapter) Execute(ctx context.Context, action string, params Params) Result {
	switch action {
	case "send":
		return a.send(ctx, params)
	case "send_followup":
		return a.sendFollowup(ctx, params)
	default:
		return Failure("unknown email action: " + action)
	}
}

func (a *EmailAdapter) send(ctx context.Context, params Params) Result {
	to := params.String("to_email")
	if to == "" {
		return Failure("send requires to_email")
	}

	from := params.String("from_email")
	if from == "" {
		from = defaultFromEmail
	}

	email := OutboxEmail{
		EmailID: uuid.NewString(),
		To:      to,
		From:    from,
		Subject: params.String("subject"),
		Body:    params.String("body"),
		SentAt:  time.Now().UTC().Format(time.RFC3339),
		Status:  "sent",
	}

	b, err := json.Marshal(email)
	if err != nil {
		return Failure(fmt.Sprintf("marshal email: %v", err))
	}
	if err := a.rdb.RPush(ctx, emailOutboxKey, b).Err(); err != nil {
		return TransientFailure(fmt.Sprintf("email operation failed: %v", err))
	}

	return Result{Success: true, Data: map[string]any{
		"email_id": email.EmailID,
		"status":   email.Status,
		"sent_at":  email.SentAt,
	}}
}

func (a *EmailAdapter) sendFollowup(ctx context.Context, params Params) Result {
	name := params.String("lead_name")
	if name == "" {
		name = "there"
	}
	note := params.String("context")
	if note == "" {
		note = "I'm here to help answer any questions you might have."
	}

	body := fmt.Sprintf(`Hi %s,

I wanted to follow up on our previous conversation. %s

Would you be interested in scheduling a brief call to discuss further?

Best regards,
Sales Team
`, name, note)

	return a.send(ctx, Params{
		"to_email": params.String("to_email"),
		"subject":  "Following up on your inquiry",
		"body":     body,
	})
}

var _ Adapter = (*EmailAdapter)(nil)

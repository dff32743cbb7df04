package notify

import (
	"fmt"

	"dispatchctl/internal/domain"
)

// Message is the rendered, channel-agnostic notification content for one
// envelope.
type Message struct {
	Title string
	Body  string
}

// Render produces the user-facing message for an event. Unknown fields
// degrade to generic wording rather than failing the channel.
func Render(env *domain.Envelope) Message {
	switch env.EventType {
	case domain.EventSummaryCompleted:
		return Message{
			Title: "Summary ready",
			Body:  fmt.Sprintf("Your summary %q is ready to view.", str(env.Data, "title")),
		}
	case domain.EventPaymentSuccess:
		return Message{
			Title: "Payment received",
			Body:  fmt.Sprintf("Payment for plan %s was processed successfully.", str(env.Data, "plan")),
		}
	case domain.EventPaymentFailed:
		return Message{
			Title: "Payment failed",
			Body:  "A payment could not be processed. Please check your billing details.",
		}
	case domain.EventFileProcessed:
		return Message{
			Title: "File processed",
			Body:  fmt.Sprintf("File %s has been processed.", str(env.Data, "file_name")),
		}
	case domain.EventExportCompleted:
		return Message{
			Title: "Export complete",
			Body:  fmt.Sprintf("Your %s export is ready to download.", str(env.Data, "format")),
		}
	case domain.EventSlackConnected:
		return Message{
			Title: "Slack connected",
			Body:  "Your Slack workspace is now connected.",
		}
	case domain.EventSlackDisconnected:
		return Message{
			Title: "Slack disconnected",
			Body:  "Your Slack workspace has been disconnected.",
		}
	default:
		return Message{
			Title: string(env.EventType),
			Body:  fmt.Sprintf("Event %s occurred.", env.EventType),
		}
	}
}

func str(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

package domain

// Typed payload constructors for producers. The envelope transports an
// opaque map either way; these exist so call sites get compile-time field
// checking instead of building raw maps by hand.

// EventPayload is implemented by the typed payloads in this file.
type EventPayload interface {
	Event() (EventType, map[string]any)
}

type SummaryCompleted struct {
	SummaryID string
	Title     string
	ChannelID string
}

func (p SummaryCompleted) Event() (EventType, map[string]any) {
	return EventSummaryCompleted, map[string]any{
		"summary_id": p.SummaryID,
		"title":      p.Title,
		"channel_id": p.ChannelID,
	}
}

type PaymentSuccess struct {
	InvoiceID string
	Amount    int64
	Currency  string
	Plan      string
}

func (p PaymentSuccess) Event() (EventType, map[string]any) {
	return EventPaymentSuccess, map[string]any{
		"invoice_id": p.InvoiceID,
		"amount":     p.Amount,
		"currency":   p.Currency,
		"plan":       p.Plan,
	}
}

type UserCreated struct {
	UserID string
	Email  string
}

func (p UserCreated) Event() (EventType, map[string]any) {
	return EventUserCreated, map[string]any{
		"user_id": p.UserID,
		"email":   p.Email,
	}
}

type FileProcessed struct {
	FileID   string
	FileName string
	Pages    int
}

func (p FileProcessed) Event() (EventType, map[string]any) {
	return EventFileProcessed, map[string]any{
		"file_id":   p.FileID,
		"file_name": p.FileName,
		"pages":     p.Pages,
	}
}

type ExportCompleted struct {
	ExportID string
	Format   string
	URL      string
}

func (p ExportCompleted) Event() (EventType, map[string]any) {
	return EventExportCompleted, map[string]any{
		"export_id": p.ExportID,
		"format":    p.Format,
		"url":       p.URL,
	}
}

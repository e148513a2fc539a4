package convo

import (
	"strconv"
	"strings"

	"expense-bot/internal/repo"
)

// dataLabels maps optional data sub-fields to their reply labels, in display order.
var dataLabels = []struct {
	key   string
	label string
}{
	{"location", "Location"},
	{"merchant", "Merchant"},
	{"payment_method", "Payment method"},
	{"notes", "Notes"},
}

func formatSuccess(p *repo.Payment) string {
	var b strings.Builder
	b.WriteString("Payment saved!\n")
	b.WriteString("Amount: $")
	b.WriteString(formatAmount(p.Value))
	b.WriteString("\n")
	if p.Description != nil && *p.Description != "" {
		b.WriteString("Description: ")
		b.WriteString(*p.Description)
		b.WriteString("\n")
	}
	if p.Category != nil && *p.Category != "" {
		b.WriteString("Category: ")
		b.WriteString(*p.Category)
		b.WriteString("\n")
	}
	b.WriteString("Date: ")
	b.WriteString(p.PayedAt.Format("2006-01-02 15:04"))
	b.WriteString("\n")

	for _, entry := range dataLabels {
		if v, ok := p.Data[entry.key]; ok && v != "" {
			b.WriteString(entry.label)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\n")
		}
	}

	return strings.TrimSpace(b.String())
}

func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

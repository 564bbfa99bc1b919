// Package report renders a ticket's comment history to HTML for an
// operator-facing audit export. This is a read-only, non-authoritative
// view: nothing here is ever read back to drive orchestration.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/arctek/conductor/ticket"
)

// TicketReport is the rendered form of a ticket's audit trail.
type TicketReport struct {
	TicketID string
	HTML     string
}

// GenerateTicketReport renders a ticket's title, description, and full
// comment history as a single markdown document, then converts it to
// HTML via goldmark.
func GenerateTicketReport(t *ticket.Ticket, comments []ticket.Comment) (*TicketReport, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s: %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&md, "%s\n\n", t.Description)
	fmt.Fprintf(&md, "**State:** %s  \n**Stage:** %s (%d/%d)\n\n",
		t.State, t.CurrentStageName(), t.CurrentStage+1, len(t.ExecutionPlan))

	if len(comments) > 0 {
		md.WriteString("## Worker history\n\n")
		for _, c := range comments {
			fmt.Fprintf(&md, "- **%s** (%s, %s): %s\n",
				c.WorkerType, c.Stage, c.CreatedAt.Format("2006-01-02 15:04"), c.Content)
		}
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return nil, fmt.Errorf("render ticket report for %s: %w", t.ID, err)
	}
	return &TicketReport{TicketID: t.ID, HTML: buf.String()}, nil
}

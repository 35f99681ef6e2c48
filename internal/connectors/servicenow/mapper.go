package servicenow

import (
	"fmt"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const notAvailable = "Not Available"

// tableTimeLayout is how the Table API renders date-time columns (UTC).
const tableTimeLayout = "2006-01-02 15:04:05"

func toCard(rc *connector.RequestContext, d approvalDetail) connector.Card {
	a := d.Approval

	fields := []connector.Field{
		connector.GeneralField("Total Price", orDefault(d.Request.Price)),
		connector.GeneralField("Requested By", orDefault(a.CreatedBy)),
		connector.GeneralField("Due By", orDefault(a.DueDate)),
	}
	if items := itemLines(d.Items); len(items) > 0 {
		fields = append(fields, connector.Field{
			Type:    connector.FieldComment,
			Title:   "Items",
			Content: items,
		})
	}

	request := map[string]string{"request_id": a.SysID}

	return connector.NewCard(connector.CardSpec{
		Name:         "ServiceNow",
		CreationDate: isoDate(a.CreatedOn),
		Header: connector.Header{
			Title:    "Approval Request",
			Subtitle: []string{d.Request.Number},
		},
		Body: connector.Body{
			Description: orDefault(a.Comments),
			Fields:      fields,
		},
		Actions: []connector.Action{
			connector.NewAction(rc, "Approve", "/api/v1/approve", request,
				connector.Primary(),
				connector.CompletedLabel("Approved"),
				connector.RemoveCardOnCompletion(),
			),
			connector.NewAction(rc, "Reject", "/api/v1/reject", request,
				connector.WithUserInput(connector.UserInput{ID: "comment", Label: "Reason for rejection", MinLength: 1}),
				connector.CompletedLabel("Rejected"),
				connector.RemoveCardOnCompletion(),
			),
		},
		Key:    []string{rc.UserKey(), a.SysID, a.CreatedOn},
		Hashed: true,
	})
}

func itemLines(items []requestItem) []connector.FieldContent {
	out := make([]connector.FieldContent, 0, len(items))
	for _, it := range items {
		line := orDefault(it.ShortDescription)
		if it.Quantity != "" && it.Quantity != "1" {
			line = fmt.Sprintf("%s (x%s)", line, it.Quantity)
		}
		if it.Price != "" {
			line += " - " + it.Price
		}
		out = append(out, connector.FieldContent{Text: line})
	}
	return out
}

func isoDate(s string) string {
	t, err := time.Parse(tableTimeLayout, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(time.RFC3339)
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

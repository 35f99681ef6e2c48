package salesforce

import (
	"fmt"
	"strconv"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const notAvailable = "Not Available"

// contactDetail is a contact together with the open opportunities of its
// account.
type contactDetail struct {
	Contact       contact
	Opportunities []opportunity
}

func toCard(rc *connector.RequestContext, d contactDetail) connector.Card {
	ct := d.Contact

	accountName := notAvailable
	if ct.Account != nil && ct.Account.Name != "" {
		accountName = ct.Account.Name
	}

	fields := []connector.Field{
		connector.GeneralField("Account", accountName),
		connector.GeneralField("Title", deref(ct.Title)),
		connector.GeneralField("Phone", deref(ct.Phone)),
		connector.GeneralField("Email", ct.Email),
	}
	if len(d.Opportunities) > 0 {
		content := make([]connector.FieldContent, 0, len(d.Opportunities))
		for _, o := range d.Opportunities {
			content = append(content, connector.FieldContent{Text: opportunityLine(o)})
		}
		fields = append(fields, connector.Field{
			Type:    connector.FieldComment,
			Title:   "Open Opportunities",
			Content: content,
		})
	}

	return connector.NewCard(connector.CardSpec{
		Name:         "Salesforce",
		CreationDate: ct.CreatedDate,
		Header: connector.Header{
			Title:    "Salesforce contact - " + ct.Name,
			Subtitle: []string{accountName},
		},
		Body: connector.Body{
			Description: fmt.Sprintf("Open opportunities: %d", len(d.Opportunities)),
			Fields:      fields,
		},
		Actions: []connector.Action{
			connector.NewAction(rc, "Log Activity", "/api/v1/contacts/"+ct.ID+"/log-activity",
				map[string]string{"subject": "Email with " + ct.Name},
				connector.WithUserInput(connector.UserInput{ID: "comment", Label: "Notes", MinLength: 1}),
				connector.CompletedLabel("Logged"),
				connector.AllowRepeated(),
			),
			connector.NewOpenInAction("Open in Salesforce", rc.BaseURL+"/"+ct.ID),
		},
		Key:    []string{rc.UserKey(), ct.ID, ct.CreatedDate},
		Hashed: true,
	})
}

func opportunityLine(o opportunity) string {
	line := o.Name + " (" + o.StageName + ")"
	if o.Amount != nil {
		line += " - " + strconv.FormatFloat(*o.Amount, 'f', 2, 64)
	}
	if o.CloseDate != "" {
		line += ", closes " + o.CloseDate
	}
	return line
}

func deref(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

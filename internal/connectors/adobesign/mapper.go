package adobesign

import (
	"strings"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const notAvailable = "Not Available"

func toCard(rc *connector.RequestContext, d agreementDetail) connector.Card {
	a := d.Agreement

	fields := []connector.Field{
		connector.GeneralField("Sender", sender(d.Members.SenderInfo, a.SenderEmail)),
		connector.GeneralField("Sent", orDefault(a.CreatedDate)),
		connector.GeneralField("Expires", orDefault(a.ExpirationTime)),
	}
	if lines := participantLines(d.Members.ParticipantSets); len(lines) > 0 {
		fields = append(fields, connector.Field{
			Type:    connector.FieldComment,
			Title:   "Participants",
			Content: lines,
		})
	}

	title := "Awaiting signatures"
	var actions []connector.Action
	if d.UserStatus == statusWaitingForMe {
		title = "Signature requested"
		if d.SigningURL != "" {
			actions = append(actions, connector.NewOpenInAction("Review and Sign", d.SigningURL, connector.Primary()))
		}
	} else {
		actions = append(actions, connector.NewAction(rc, "Send Reminder", "/api/v1/agreements/remind",
			map[string]string{"agreement_id": a.ID},
			connector.WithUserInput(connector.UserInput{ID: "comment", Label: "Note to participants"}),
			connector.CompletedLabel("Reminder sent"),
			connector.AllowRepeated(),
		))
	}

	return connector.NewCard(connector.CardSpec{
		Name:         "Adobe Sign",
		CreationDate: a.CreatedDate,
		Header: connector.Header{
			Title:    title,
			Subtitle: []string{a.Name},
		},
		Body: connector.Body{
			Description: orDefault(a.Message),
			Fields:      fields,
		},
		Actions: actions,
		Key:     []string{rc.UserKey(), a.ID, a.CreatedDate},
		Hashed:  true,
	})
}

func participantLines(sets []participantSet) []connector.FieldContent {
	var out []connector.FieldContent
	for _, set := range sets {
		for _, m := range set.MemberInfos {
			name := m.Name
			if name == "" {
				name = m.Email
			}
			status := strings.ToLower(strings.ReplaceAll(set.Status, "_", " "))
			out = append(out, connector.FieldContent{Text: name + " - " + status})
		}
	}
	return out
}

func sender(info memberInfo, fallback string) string {
	switch {
	case info.Name != "" && info.Email != "":
		return info.Name + " <" + info.Email + ">"
	case info.Email != "":
		return info.Email
	}
	return orDefault(fallback)
}

func orDefault(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

package adobesign

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const agreementsPath = "/api/rest/v6/agreements"

// Agreement states, from the perspective of the calling user.
const (
	statusWaitingForMe    = "WAITING_FOR_MY_SIGNATURE"
	statusOutForSignature = "OUT_FOR_SIGNATURE"
	statusCompleted       = "COMPLETED"
)

type agreementList struct {
	UserAgreementList []agreementSummary `json:"userAgreementList"`
	Page              struct {
		NextCursor string `json:"nextCursor"`
	} `json:"page"`
}

type agreementSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	DisplayDate string `json:"displayDate"`
}

type agreement struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	CreatedDate    string `json:"createdDate"`
	ExpirationTime string `json:"expirationTime"`
	SenderEmail    string `json:"senderEmail"`
}

type signingURLs struct {
	SigningURLSetInfos []struct {
		SigningURLs []signingURL `json:"signingUrls"`
	} `json:"signingUrlSetInfos"`
}

type signingURL struct {
	Email    string `json:"email"`
	EsignURL string `json:"esignUrl"`
}

type members struct {
	ParticipantSets []participantSet `json:"participantSets"`
	SenderInfo      memberInfo       `json:"senderInfo"`
}

type participantSet struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Status      string       `json:"status"`
	MemberInfos []memberInfo `json:"memberInfos"`
}

type memberInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type reminder struct {
	RecipientParticipantIDs []string `json:"recipientParticipantIds"`
	Status                  string   `json:"status"`
	Note                    string   `json:"note,omitempty"`
}

// agreementDetail is everything a card needs about one agreement.
type agreementDetail struct {
	Agreement agreement
	Members   members

	// UserStatus is the caller's view of the agreement from the agreement
	// list, e.g. WAITING_FOR_MY_SIGNATURE. The agreement itself only carries
	// agreement-level states such as OUT_FOR_SIGNATURE.
	UserStatus string

	// SigningURL is empty unless the agreement waits for the caller.
	SigningURL string
}

type client struct {
	backend *connector.Backend
}

func (c *client) agreements(ctx context.Context, rc *connector.RequestContext) ([]agreementSummary, error) {
	var resp agreementList
	if err := c.backend.Get(ctx, rc, agreementsPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	return resp.UserAgreementList, nil
}

func (c *client) members(ctx context.Context, rc *connector.RequestContext, id string) (members, error) {
	var resp members
	if err := c.backend.Get(ctx, rc, agreementsPath+"/"+url.PathEscape(id)+"/members", nil, &resp); err != nil {
		return members{}, fmt.Errorf("failed to read members of %s: %w", id, err)
	}
	return resp, nil
}

// detail reads the agreement, its members and, when the caller has to sign,
// the signing url. The reads are independent and issued together; any
// failure fails the agreement.
func (c *client) detail(ctx context.Context, rc *connector.RequestContext, s agreementSummary) (agreementDetail, error) {
	d := agreementDetail{UserStatus: s.Status}
	base := agreementsPath + "/" + url.PathEscape(s.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.backend.Get(gctx, rc, base, nil, &d.Agreement); err != nil {
			return fmt.Errorf("failed to read agreement %s: %w", s.ID, err)
		}
		return nil
	})
	g.Go(func() error {
		m, err := c.members(gctx, rc, s.ID)
		d.Members = m
		return err
	})
	if s.Status == statusWaitingForMe {
		g.Go(func() error {
			var urls signingURLs
			if err := c.backend.Get(gctx, rc, base+"/signingUrls", nil, &urls); err != nil {
				return fmt.Errorf("failed to read signing urls of %s: %w", s.ID, err)
			}
			d.SigningURL = urls.pick(rc.Identity.Email)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return agreementDetail{}, err
	}
	return d, nil
}

func (c *client) remind(ctx context.Context, rc *connector.RequestContext, id string, r reminder) error {
	path := agreementsPath + "/" + url.PathEscape(id) + "/reminders"
	if err := c.backend.Send(ctx, rc, http.MethodPost, path, r, nil); err != nil {
		return fmt.Errorf("failed to send reminder for %s: %w", id, err)
	}
	return nil
}

// pick returns the signing url of email, or the first one offered.
func (s signingURLs) pick(email string) string {
	var first string
	for _, set := range s.SigningURLSetInfos {
		for _, u := range set.SigningURLs {
			if first == "" {
				first = u.EsignURL
			}
			if email != "" && strings.EqualFold(u.Email, email) {
				return u.EsignURL
			}
		}
	}
	return first
}

// pendingParticipants are the participant sets that still have to act,
// excluding the caller's own.
func (m members) pendingParticipants(caller string) []string {
	var ids []string
	for _, set := range m.ParticipantSets {
		if set.Status == statusCompleted || set.ID == "" {
			continue
		}
		if caller != "" && set.hasMember(caller) {
			continue
		}
		ids = append(ids, set.ID)
	}
	return ids
}

func (p participantSet) hasMember(email string) bool {
	for _, m := range p.MemberInfos {
		if strings.EqualFold(m.Email, email) {
			return true
		}
	}
	return false
}

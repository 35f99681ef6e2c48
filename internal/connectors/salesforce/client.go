package salesforce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const apiPath = "/services/data/v44.0"

// authMarkers are Salesforce error codes that mean the session token is no
// longer valid even though the status is not 401.
var authMarkers = []string{"Bad_OAuth_Token", "missing_oauth_token", "INVALID_SESSION_ID"}

// authClassifier reclassifies 400/403 answers carrying a session error.
var authClassifier = connector.BodyMarkers([]int{http.StatusBadRequest, http.StatusForbidden}, authMarkers...)

type queryResponse[T any] struct {
	TotalSize int  `json:"totalSize"`
	Done      bool `json:"done"`
	Records   []T  `json:"records"`
}

type contact struct {
	ID          string   `json:"Id"`
	Name        string   `json:"Name"`
	Email       string   `json:"Email"`
	Phone       *string  `json:"Phone"`
	Title       *string  `json:"Title"`
	AccountID   *string  `json:"AccountId"`
	Account     *account `json:"Account"`
	CreatedDate string   `json:"CreatedDate"`
}

type account struct {
	Name string `json:"Name"`
}

type opportunity struct {
	ID        string   `json:"Id"`
	Name      string   `json:"Name"`
	StageName string   `json:"StageName"`
	CloseDate string   `json:"CloseDate"`
	Amount    *float64 `json:"Amount"`
}

type task struct {
	WhoID        string `json:"WhoId"`
	Subject      string `json:"Subject"`
	Description  string `json:"Description,omitempty"`
	Status       string `json:"Status"`
	ActivityDate string `json:"ActivityDate"`
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

type client struct {
	backend *connector.Backend
}

func (c *client) query(ctx context.Context, rc *connector.RequestContext, soql string, out any) error {
	return c.backend.Get(ctx, rc, apiPath+"/query", url.Values{"q": {soql}}, out)
}

// contactsByEmail finds the contacts owned by owner with the given email.
func (c *client) contactsByEmail(ctx context.Context, rc *connector.RequestContext, email, owner string) ([]contact, error) {
	soql := "SELECT Id, Name, Email, Phone, Title, AccountId, Account.Name, CreatedDate FROM Contact" +
		" WHERE Email = '" + escapeSOQL(email) + "'"
	if owner != "" {
		soql += " AND Owner.Email = '" + escapeSOQL(owner) + "'"
	}
	soql += " ORDER BY CreatedDate LIMIT 5"

	var resp queryResponse[contact]
	if err := c.query(ctx, rc, soql, &resp); err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	return resp.Records, nil
}

func (c *client) openOpportunities(ctx context.Context, rc *connector.RequestContext, accountID string) ([]opportunity, error) {
	soql := "SELECT Id, Name, StageName, CloseDate, Amount FROM Opportunity" +
		" WHERE AccountId = '" + escapeSOQL(accountID) + "' AND IsClosed = false" +
		" ORDER BY CloseDate LIMIT 5"

	var resp queryResponse[opportunity]
	if err := c.query(ctx, rc, soql, &resp); err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	return resp.Records, nil
}

func (c *client) createTask(ctx context.Context, rc *connector.RequestContext, t task) error {
	var resp createResponse
	if err := c.backend.Send(ctx, rc, http.MethodPost, apiPath+"/sobjects/Task", t, &resp); err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}

var soqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeSOQL(s string) string {
	return soqlEscaper.Replace(s)
}

package servicenow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const tablePath = "/api/now/table/"

// tableResponse is the Table API envelope for list reads.
type tableResponse[T any] struct {
	Result []T `json:"result"`
}

// recordResponse is the Table API envelope for single-record reads.
type recordResponse[T any] struct {
	Result T `json:"result"`
}

type user struct {
	SysID string `json:"sys_id"`
}

type approval struct {
	SysID       string    `json:"sys_id"`
	SysApproval reference `json:"sysapproval"`
	Comments    string    `json:"comments"`
	DueDate     string    `json:"due_date"`
	CreatedBy   string    `json:"sys_created_by"`
	CreatedOn   string    `json:"sys_created_on"`
}

type request struct {
	SysID  string `json:"sys_id"`
	Number string `json:"number"`
	Price  string `json:"price"`
}

type requestItem struct {
	SysID            string `json:"sys_id"`
	ShortDescription string `json:"short_description"`
	Quantity         string `json:"quantity"`
	Price            string `json:"price"`
}

// reference is a Table API reference column. Unset references arrive as an
// empty string instead of an object.
type reference struct {
	Link  string `json:"link"`
	Value string `json:"value"`
}

func (r *reference) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(b), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = reference{Value: s}
		return nil
	}
	type plain reference
	return json.Unmarshal(b, (*plain)(r))
}

// approvalDetail is one pending approval with the request it gates.
type approvalDetail struct {
	Approval approval
	Request  request
	Items    []requestItem
}

type client struct {
	backend *connector.Backend
}

// userSysID looks up the ServiceNow user for an email. Empty when unknown.
func (c *client) userSysID(ctx context.Context, rc *connector.RequestContext, email string) (string, error) {
	var resp tableResponse[user]
	err := c.backend.Get(ctx, rc, tablePath+"sys_user", url.Values{
		"sysparm_query":  {"email=" + email},
		"sysparm_fields": {"sys_id"},
		"sysparm_limit":  {"1"},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if len(resp.Result) == 0 {
		return "", nil
	}
	return resp.Result[0].SysID, nil
}

func (c *client) pendingApprovals(ctx context.Context, rc *connector.RequestContext, userID string, limit int) ([]approval, error) {
	var resp tableResponse[approval]
	err := c.backend.Get(ctx, rc, tablePath+"sysapproval_approver", url.Values{
		"sysparm_query":  {"source_table=sc_request^state=requested^approver=" + userID},
		"sysparm_fields": {"sys_id,sysapproval,comments,due_date,sys_created_by,sys_created_on"},
		"sysparm_limit":  {strconv.Itoa(limit)},
		"sysparm_offset": {"0"},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	return resp.Result, nil
}

// detail fetches the request and its items concurrently; both depend only
// on the approval.
func (c *client) detail(ctx context.Context, rc *connector.RequestContext, a approval) (approvalDetail, error) {
	d := approvalDetail{Approval: a}
	requestID := a.SysApproval.Value

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var resp recordResponse[request]
		err := c.backend.Get(gctx, rc, tablePath+"sc_request/"+url.PathEscape(requestID), url.Values{
			"sysparm_fields": {"sys_id,number,price"},
		}, &resp)
		if err != nil {
			return fmt.Errorf("failed to read request %s: %w", requestID, err)
		}
		d.Request = resp.Result
		return nil
	})
	g.Go(func() error {
		var resp tableResponse[requestItem]
		err := c.backend.Get(gctx, rc, tablePath+"sc_req_item", url.Values{
			"request":        {requestID},
			"sysparm_fields": {"sys_id,short_description,quantity,price"},
			"sysparm_limit":  {"10"},
		}, &resp)
		if err != nil {
			return fmt.Errorf("failed to list items of %s: %w", requestID, err)
		}
		d.Items = resp.Result
		return nil
	})

	if err := g.Wait(); err != nil {
		return approvalDetail{}, err
	}
	return d, nil
}

// setState moves an approval to approved or rejected.
func (c *client) setState(ctx context.Context, rc *connector.RequestContext, approvalID, state, comments string) error {
	body := map[string]string{"state": state}
	if comments != "" {
		body["comments"] = comments
	}
	path := tablePath + "sysapproval_approver/" + url.PathEscape(approvalID)
	if err := c.backend.Send(ctx, rc, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to set approval %s to %s: %w", approvalID, state, err)
	}
	return nil
}

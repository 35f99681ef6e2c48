package dynamics

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const (
	apiPath = "/api/data/v9.0"

	// preferFormatted asks for display labels of option sets and lookups,
	// returned as "<field>@OData.Community.Display.V1.FormattedValue".
	preferFormatted = `odata.include-annotations="OData.Community.Display.V1.FormattedValue"`
)

type whoAmI struct {
	UserID         string `json:"UserId"`
	BusinessUnitID string `json:"BusinessUnitId"`
	OrganizationID string `json:"OrganizationId"`
}

type collection[T any] struct {
	Value []T `json:"value"`
}

type incident struct {
	ID           string  `json:"incidentid"`
	Title        string  `json:"title"`
	TicketNumber string  `json:"ticketnumber"`
	Description  *string `json:"description"`
	CreatedOn    string  `json:"createdon"`
	Priority     string  `json:"prioritycode@OData.Community.Display.V1.FormattedValue"`
	Customer     string  `json:"_customerid_value@OData.Community.Display.V1.FormattedValue"`
}

type client struct {
	backend *connector.Backend
}

func (c *client) whoAmI(ctx context.Context, rc *connector.RequestContext) (whoAmI, error) {
	var who whoAmI
	if err := c.backend.Get(ctx, rc, apiPath+"/WhoAmI", nil, &who); err != nil {
		return whoAmI{}, fmt.Errorf("failed to resolve current user: %w", err)
	}
	return who, nil
}

// openCases lists the newest active cases owned by userID.
func (c *client) openCases(ctx context.Context, rc *connector.RequestContext, userID string, top int) ([]incident, error) {
	var list collection[incident]
	err := c.backend.Get(ctx, rc, apiPath+"/incidents", url.Values{
		"$select":  {"incidentid,title,ticketnumber,description,createdon,prioritycode,_customerid_value"},
		"$filter":  {"_ownerid_value eq " + userID + " and statecode eq 0"},
		"$orderby": {"createdon desc"},
		"$top":     {strconv.Itoa(top)},
	}, &list)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return list.Value, nil
}

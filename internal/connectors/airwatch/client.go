package airwatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/tjfontaine/polyglot-connectors/internal/connector"
)

const (
	devicesSearchPath = "/api/mdm/devices/search"
	appsSearchPath    = "/api/mam/apps/search"
	tenantCodeHeader  = "aw-tenant-code"
)

// entityID is the {"Value": n} wrapper AirWatch uses for ids.
type entityID struct {
	Value int64 `json:"Value"`
}

type deviceList struct {
	Devices []device `json:"Devices"`
}

type device struct {
	ID               entityID `json:"Id"`
	UDID             string   `json:"Udid"`
	Platform         string   `json:"Platform"`
	Model            string   `json:"Model"`
	EnrollmentStatus string   `json:"EnrollmentStatus"`
}

type appList struct {
	Application []application `json:"Application"`
}

type application struct {
	ID              entityID `json:"Id"`
	ApplicationName string   `json:"ApplicationName"`
	Status          string   `json:"Status"`
}

type installRequest struct {
	DeviceID int64 `json:"DeviceId"`
}

type client struct {
	backend *connector.Backend
}

// installTarget resolves the caller's device and the app on the given
// platform. The two lookups do not depend on each other.
func (c *client) installTarget(ctx context.Context, rc *connector.RequestContext, appName, platform string) (device, application, error) {
	var devices deviceList
	var apps appList

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.backend.Get(gctx, rc, devicesSearchPath, url.Values{
			"user":     {rc.Identity.Username},
			"platform": {platform},
		}, &devices)
		if err != nil {
			return fmt.Errorf("failed to search devices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := c.backend.Get(gctx, rc, appsSearchPath, url.Values{
			"applicationname": {appName},
			"platform":        {platform},
		}, &apps)
		if err != nil {
			return fmt.Errorf("failed to search apps: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return device{}, application{}, err
	}

	d, ok := devices.enrolled()
	if !ok {
		return device{}, application{}, &connector.RequestError{
			Err: fmt.Errorf("no enrolled %s device found for %s", platform, rc.Identity.Username),
		}
	}
	a, ok := apps.named(appName)
	if !ok {
		return device{}, application{}, &connector.RequestError{
			Err: fmt.Errorf("app %q is not available for %s", appName, platform),
		}
	}
	return d, a, nil
}

func (c *client) install(ctx context.Context, rc *connector.RequestContext, appID, deviceID int64) error {
	path := "/api/mam/apps/internal/" + strconv.FormatInt(appID, 10) + "/install"
	if err := c.backend.Send(ctx, rc, http.MethodPost, path, installRequest{DeviceID: deviceID}, nil); err != nil {
		return fmt.Errorf("failed to install app %d: %w", appID, err)
	}
	return nil
}

// enrolled returns the first enrolled device.
func (l deviceList) enrolled() (device, bool) {
	for _, d := range l.Devices {
		if d.EnrollmentStatus == "" || strings.EqualFold(d.EnrollmentStatus, "Enrolled") {
			return d, true
		}
	}
	return device{}, false
}

// named prefers an exact name match over the first search hit.
func (l appList) named(name string) (application, bool) {
	for _, a := range l.Application {
		if strings.EqualFold(a.ApplicationName, name) {
			return a, true
		}
	}
	if len(l.Application) > 0 {
		return l.Application[0], true
	}
	return application{}, false
}

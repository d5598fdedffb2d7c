package cloudrun

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v2"
)

// Describer reads service state from the Cloud Run Admin API
type Describer struct {
	opts []option.ClientOption
}

// New creates a Describer. opts are appended after the run credential.
func New(opts ...option.ClientOption) *Describer {
	return &Describer{opts: opts}
}

// ServiceName returns the fully qualified service resource name
func ServiceName(projectID, region, service string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", projectID, region, service)
}

// Describe returns the URI and latest ready revision of the service
func (d *Describer) Describe(ctx context.Context, cred *model.Credential, projectID, region, service string) (*model.ServiceInfo, error) {
	opts := []option.ClientOption{}
	if cred != nil && cred.TokenSource != nil {
		opts = append(opts, option.WithTokenSource(cred.TokenSource))
	}
	opts = append(opts, d.opts...)

	svc, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Run client")
	}

	name := ServiceName(projectID, region, service)
	resp, err := svc.Projects.Locations.Services.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get Cloud Run service", goerr.V("service", service), goerr.V("region", region))
	}

	return &model.ServiceInfo{
		URI:      resp.Uri,
		Revision: resp.LatestReadyRevision,
	}, nil
}

package types

// Version is overwritten at build time via -ldflags
var Version = "dev"

const (
	// ServiceName is the Cloud Run service every run deploys to. It is never parameterized.
	ServiceName = "team11-game-server-service-from-github-action"

	// ServicePort is the container port exposed by the deployed service
	ServicePort = 8080

	// DeployBranch is the only branch whose pushes start a run
	DeployBranch = "main"
)

// RunID identifies a single pipeline run
type RunID string

func (x RunID) String() string { return string(x) }

// DeliveryID is the X-GitHub-Delivery header value of a webhook
type DeliveryID string

func (x DeliveryID) String() string { return string(x) }

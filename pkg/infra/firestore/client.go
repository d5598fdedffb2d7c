package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionRuns       = "runs"
	collectionDeliveries = "deliveries"
	collectionLocks      = "locks"
)

// Client stores runs, delivery claims and deploy locks in Firestore
type Client struct {
	client *firestore.Client
	prefix string
	now    func() time.Time
}

// Option configures Client
type Option func(*Client)

// WithCollectionPrefix namespaces every collection, e.g. "staging_"
func WithCollectionPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

// New connects to the Firestore database
func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Client, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID),
		)
	}

	c := &Client{client: client, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) collection(name string) *firestore.CollectionRef {
	return c.client.Collection(c.prefix + name)
}

// PutRun writes the whole run document
func (c *Client) PutRun(ctx context.Context, run *model.Run) error {
	if _, err := c.collection(collectionRuns).Doc(run.ID.String()).Set(ctx, run); err != nil {
		return goerr.Wrap(err, "failed to put run", goerr.V("run_id", run.ID))
	}
	return nil
}

// GetRun returns the run, or nil if not found
func (c *Client) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	doc, err := c.collection(collectionRuns).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get run", goerr.V("run_id", id))
	}

	var run model.Run
	if err := doc.DataTo(&run); err != nil {
		return nil, goerr.Wrap(err, "failed to decode run", goerr.V("run_id", id))
	}
	return &run, nil
}

// ListRuns returns the newest runs first
func (c *Client) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	q := c.collection(collectionRuns).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var runs []*model.Run
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list runs")
		}

		var run model.Run
		if err := doc.DataTo(&run); err != nil {
			return nil, goerr.Wrap(err, "failed to decode run", goerr.V("doc_id", doc.Ref.ID))
		}
		runs = append(runs, &run)
	}
	return runs, nil
}

type deliveryRecord struct {
	RunID     string    `firestore:"run_id"`
	ClaimedAt time.Time `firestore:"claimed_at"`
}

// ClaimDelivery creates the delivery document; an existing document means the
// delivery was already handled
func (c *Client) ClaimDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) (bool, error) {
	_, err := c.collection(collectionDeliveries).Doc(id.String()).Create(ctx, deliveryRecord{
		RunID:     runID.String(),
		ClaimedAt: c.now(),
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to claim delivery", goerr.V("delivery_id", id))
	}
	return true, nil
}

// ReleaseDelivery deletes the delivery document if runID still owns it
func (c *Client) ReleaseDelivery(ctx context.Context, id types.DeliveryID, runID types.RunID) error {
	ref := c.collection(collectionDeliveries).Doc(id.String())

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var cur deliveryRecord
		if err := doc.DataTo(&cur); err != nil {
			return err
		}
		if cur.RunID != runID.String() {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release delivery", goerr.V("delivery_id", id), goerr.V("run_id", runID))
	}
	return nil
}

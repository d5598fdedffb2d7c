package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type lockRecord struct {
	Holder     string    `firestore:"holder"`
	AcquiredAt time.Time `firestore:"acquired_at"`
	ExpiresAt  time.Time `firestore:"expires_at"`
}

// Acquire takes the lock on key inside a transaction. A lock past its expiry is
// treated as free.
func (c *Client) Acquire(ctx context.Context, key string, holder types.RunID, ttl time.Duration) (bool, error) {
	ref := c.collection(collectionLocks).Doc(key)
	var acquired bool

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		acquired = false
		now := c.now()

		doc, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var cur lockRecord
			if err := doc.DataTo(&cur); err != nil {
				return err
			}
			if cur.Holder != holder.String() && now.Before(cur.ExpiresAt) {
				return nil
			}
		}

		acquired = true
		return tx.Set(ref, lockRecord{
			Holder:     holder.String(),
			AcquiredAt: now,
			ExpiresAt:  now.Add(ttl),
		})
	})
	if err != nil {
		return false, goerr.Wrap(err, "failed to acquire lock", goerr.V("key", key), goerr.V("holder", holder))
	}
	return acquired, nil
}

// Release deletes the lock if holder owns it
func (c *Client) Release(ctx context.Context, key string, holder types.RunID) error {
	ref := c.collection(collectionLocks).Doc(key)

	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		var cur lockRecord
		if err := doc.DataTo(&cur); err != nil {
			return err
		}
		if cur.Holder != holder.String() {
			return nil
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return goerr.Wrap(err, "failed to release lock", goerr.V("key", key), goerr.V("holder", holder))
	}
	return nil
}

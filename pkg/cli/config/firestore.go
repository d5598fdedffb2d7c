package config

import (
	"context"

	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/infra/firestore"
	"github.com/team11/cloudrun-deployer/pkg/infra/memory"
	"github.com/urfave/cli/v3"
)

// Firestore holds run record storage configuration
type Firestore struct {
	ProjectID        string
	DatabaseID       string
	CollectionPrefix string
}

// Flags returns CLI flags for Firestore configuration
func (c *Firestore) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore project for run records. In-memory storage is used if empty.",
			Destination: &c.ProjectID,
			Sources:     cli.EnvVars("DEPLOYER_FIRESTORE_PROJECT_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Destination: &c.DatabaseID,
			Sources:     cli.EnvVars("DEPLOYER_FIRESTORE_DATABASE_ID"),
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of Firestore collection names",
			Destination: &c.CollectionPrefix,
			Sources:     cli.EnvVars("DEPLOYER_FIRESTORE_COLLECTION_PREFIX"),
		},
	}
}

// Backend is the configured run repository and locker
type Backend struct {
	Repository interfaces.RunRepository
	Locker     interfaces.Locker
	Close      func() error
}

// NewBackend connects to Firestore, or returns in-memory storage if no project
// is configured
func (c *Firestore) NewBackend(ctx context.Context) (*Backend, error) {
	if c.ProjectID == "" {
		return &Backend{
			Repository: memory.NewRepository(),
			Locker:     memory.NewLocker(),
			Close:      func() error { return nil },
		}, nil
	}

	client, err := firestore.New(ctx, c.ProjectID, c.DatabaseID,
		firestore.WithCollectionPrefix(c.CollectionPrefix))
	if err != nil {
		return nil, err
	}
	return &Backend{
		Repository: client,
		Locker:     client,
		Close:      client.Close,
	}, nil
}

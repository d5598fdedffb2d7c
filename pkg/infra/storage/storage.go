package storage

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
)

// LogStore uploads step logs to a GCS bucket
type LogStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a LogStore. prefix is prepended to every object name.
func New(ctx context.Context, bucket, prefix string) (*LogStore, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	return &LogStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the client
func (s *LogStore) Close() error {
	return s.client.Close()
}

// ObjectName returns the object path of a step log
func ObjectName(prefix string, runID types.RunID, step model.StepName) string {
	return path.Join(prefix, "runs", runID.String(), string(step)+".log")
}

// Put writes content and returns its gs:// URI
func (s *LogStore) Put(ctx context.Context, runID types.RunID, step model.StepName, content []byte) (string, error) {
	name := ObjectName(s.prefix, runID, step)

	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"

	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return "", goerr.Wrap(err, "failed to write log object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", name),
		)
	}
	if err := w.Close(); err != nil {
		return "", goerr.Wrap(err, "failed to finalize log object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", name),
		)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

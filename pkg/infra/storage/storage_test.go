package storage_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/team11/cloudrun-deployer/pkg/infra/storage"
)

func TestObjectName(t *testing.T) {
	testCases := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "no prefix", prefix: "", want: "runs/run-1/deploy.log"},
		{name: "with prefix", prefix: "deployer", want: "deployer/runs/run-1/deploy.log"},
		{name: "trailing slash", prefix: "deployer/", want: "deployer/runs/run-1/deploy.log"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := storage.ObjectName(tc.prefix, types.RunID("run-1"), model.StepDeploy)
			gt.Value(t, got).Equal(tc.want)
		})
	}
}

func TestNew_RequiresBucket(t *testing.T) {
	_, err := storage.New(context.Background(), "", "")
	gt.Error(t, err)
}

func TestLogStore_Put(t *testing.T) {
	bucket := os.Getenv("TEST_LOG_BUCKET")
	if bucket == "" {
		t.Skip("TEST_LOG_BUCKET is not set")
	}

	ctx := context.Background()
	store, err := storage.New(ctx, bucket, "test")
	gt.NoError(t, err)
	defer store.Close()

	runID := types.RunID(uuid.NewString())
	uri, err := store.Put(ctx, runID, model.StepCheckout, []byte("cloned\n"))
	gt.NoError(t, err)
	gt.True(t, strings.HasPrefix(uri, "gs://"+bucket+"/test/runs/"+runID.String()))
}

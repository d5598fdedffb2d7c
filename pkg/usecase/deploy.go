package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/interfaces"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/team11/cloudrun-deployer/pkg/utils/errutil"
	"github.com/team11/cloudrun-deployer/pkg/utils/redact"
)

type deployUseCase struct {
	source interfaces.SourceFetcher
	auth   interfaces.Authenticator
	cli    interfaces.CloudCLI
	repo   interfaces.RunRepository
	target model.Target

	describer interfaces.ServiceDescriber
	logStore  interfaces.LogStore
	notifier  interfaces.Notifier
	locker    interfaces.Locker
	lockTTL   time.Duration

	workDir string
	now     func() time.Time
	newID   func() types.RunID
}

// DeployOption configures the deploy use case
type DeployOption func(*deployUseCase)

// WithServiceDescriber looks up the service URL after a successful deploy
func WithServiceDescriber(d interfaces.ServiceDescriber) DeployOption {
	return func(uc *deployUseCase) {
		uc.describer = d
	}
}

// WithLogStore archives redacted step output
func WithLogStore(s interfaces.LogStore) DeployOption {
	return func(uc *deployUseCase) {
		uc.logStore = s
	}
}

// WithNotifier reports every finished run
func WithNotifier(n interfaces.Notifier) DeployOption {
	return func(uc *deployUseCase) {
		uc.notifier = n
	}
}

// WithLocker serializes runs of the same service. A run that cannot take the
// lock fails as locked.
func WithLocker(l interfaces.Locker, ttl time.Duration) DeployOption {
	return func(uc *deployUseCase) {
		uc.locker = l
		uc.lockTTL = ttl
	}
}

// WithWorkDir sets the parent directory of run workspaces
func WithWorkDir(dir string) DeployOption {
	return func(uc *deployUseCase) {
		uc.workDir = dir
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) DeployOption {
	return func(uc *deployUseCase) {
		uc.now = now
	}
}

// WithIDGenerator replaces the run ID generator
func WithIDGenerator(fn func() types.RunID) DeployOption {
	return func(uc *deployUseCase) {
		uc.newID = fn
	}
}

// NewDeploy creates a new instance of DeployUseCase
func NewDeploy(
	source interfaces.SourceFetcher,
	auth interfaces.Authenticator,
	cli interfaces.CloudCLI,
	repo interfaces.RunRepository,
	target model.Target,
	opts ...DeployOption,
) interfaces.DeployUseCase {
	uc := &deployUseCase{
		source:  source,
		auth:    auth,
		cli:     cli,
		repo:    repo,
		target:  target,
		lockTTL: 30 * time.Minute,
		now:     time.Now,
		newID: func() types.RunID {
			return types.RunID(uuid.NewString())
		},
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Prepare records a queued run for trigger
func (uc *deployUseCase) Prepare(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	run := model.NewRun(uc.newID(), *trigger, uc.now())

	if trigger.DeliveryID != "" {
		claimed, err := uc.repo.ClaimDelivery(ctx, trigger.DeliveryID, run.ID)
		if err != nil {
			return nil, err
		}
		if !claimed {
			ctxlog.From(ctx).Info("Delivery already handled, skipping",
				"delivery_id", trigger.DeliveryID,
				"commit_sha", trigger.CommitSHA,
			)
			return nil, nil
		}
	}

	if err := uc.repo.PutRun(ctx, run); err != nil {
		if trigger.DeliveryID != "" {
			// let a redelivery of the same event start over
			if rerr := uc.repo.ReleaseDelivery(ctx, trigger.DeliveryID, run.ID); rerr != nil {
				errutil.Handle(ctx, "failed to release delivery", rerr)
			}
		}
		return nil, err
	}

	ctxlog.From(ctx).Info("Run queued",
		"run_id", run.ID,
		"repository", trigger.FullName(),
		"commit_sha", trigger.CommitSHA,
	)
	return run, nil
}

// Deploy prepares and executes a run in the foreground
func (uc *deployUseCase) Deploy(ctx context.Context, trigger *model.Trigger) (*model.Run, error) {
	run, err := uc.Prepare(ctx, trigger)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	return run, uc.Execute(ctx, run)
}

// runState is what steps hand to each other within one run
type runState struct {
	run  *model.Run
	ws   *model.Workspace
	cred *model.Credential
}

type stepFunc func(ctx context.Context, st *runState) ([]byte, error)

func (uc *deployUseCase) steps() map[model.StepName]stepFunc {
	return map[model.StepName]stepFunc{
		model.StepCheckout:     uc.checkout,
		model.StepAuthenticate: uc.authenticate,
		model.StepSetProject:   uc.setProject,
		model.StepDeploy:       uc.deploy,
	}
}

// Execute runs the pipeline on a prepared run. The returned error is the
// failure of the run, already recorded in run.
func (uc *deployUseCase) Execute(ctx context.Context, run *model.Run) error {
	ctx = ctxlog.With(ctx, ctxlog.From(ctx).With(
		"run_id", run.ID,
		"commit_sha", run.Trigger.CommitSHA,
	))
	logger := ctxlog.From(ctx)
	redactor := redact.New(uc.target.SecretValues()...)

	if uc.locker != nil {
		release, err := uc.lock(ctx, run)
		if err != nil {
			uc.abort(ctx, run, err, redactor)
			return err
		}
		defer release()
	}

	run.Start(uc.now())
	uc.save(ctx, run)
	logger.Info("Run started")

	ws, cleanup, err := uc.newWorkspace(run.ID)
	if err != nil {
		err = model.WrapStepError(model.StepCheckout, err)
		uc.abort(ctx, run, err, redactor)
		return err
	}
	defer cleanup(ctx)

	st := &runState{run: run, ws: ws}
	steps := uc.steps()

	var runErr error
	for _, name := range model.PipelineSteps {
		step := run.Step(name)
		if runErr != nil {
			step.Skip()
			continue
		}

		step.Begin(uc.now())
		uc.save(ctx, run)
		logger.Info("Step started", "step", name)

		output, err := steps[name](ctx, st)
		if len(output) > 0 {
			step.LogURI = uc.archive(ctx, run.ID, name, redactor.Bytes(output))
		}

		if err != nil {
			runErr = model.WrapStepError(name, err)
			step.Fail(uc.now(), redactor.String(err.Error()))
			logger.Warn("Step failed", "step", name, "error", step.Error)
			continue
		}

		step.Succeed(uc.now())
		logger.Info("Step succeeded", "step", name)
	}

	if runErr == nil {
		uc.describe(ctx, st)
		run.Finish(uc.now(), "", "")
		logger.Info("Run succeeded", "service_uri", run.ServiceURI, "revision", run.Revision)
	} else {
		run.Finish(uc.now(), model.KindOf(runErr), redactor.String(runErr.Error()))
		logger.Warn("Run failed", "failure_kind", run.FailureKind)
	}

	uc.save(ctx, run)
	uc.notify(ctx, run)
	return runErr
}

func (uc *deployUseCase) checkout(ctx context.Context, st *runState) ([]byte, error) {
	if err := st.run.Trigger.Validate(); err != nil {
		return nil, err
	}

	co, err := uc.source.Fetch(ctx, &st.run.Trigger, st.ws.SourceDir)
	if err != nil {
		return nil, err
	}
	if co.Dir != "" {
		st.ws.SourceDir = co.Dir
	}

	return fmt.Appendf(nil, "checked out %s at %s (%d files)\n",
		st.run.Trigger.FullName(), co.CommitSHA, co.Files), nil
}

func (uc *deployUseCase) authenticate(ctx context.Context, st *runState) ([]byte, error) {
	if err := uc.target.ValidateCredentials(); err != nil {
		return nil, err
	}

	cred, err := uc.auth.Authenticate(ctx, &uc.target, st.ws)
	if err != nil {
		return nil, err
	}
	st.cred = cred
	if cred.ConfigFile != "" {
		st.ws.CredentialFile = cred.ConfigFile
	}

	return fmt.Appendf(nil, "credential issued, expires at %s\n", cred.ExpiresAt.Format(time.RFC3339)), nil
}

func (uc *deployUseCase) setProject(ctx context.Context, st *runState) ([]byte, error) {
	if uc.target.ProjectID == "" {
		return nil, goerr.New("project ID is empty")
	}

	result, err := uc.cli.SetProject(ctx, st.ws, uc.target.ProjectID)
	return commandOutput(result), err
}

func (uc *deployUseCase) deploy(ctx context.Context, st *runState) ([]byte, error) {
	if err := uc.target.ValidateRegion(); err != nil {
		return nil, err
	}

	result, err := uc.cli.Deploy(ctx, st.ws, uc.target.Region)
	return commandOutput(result), err
}

func commandOutput(result *model.CommandResult) []byte {
	if result == nil {
		return nil
	}
	return result.Output
}

// describe records the service URL. Failure only warns.
func (uc *deployUseCase) describe(ctx context.Context, st *runState) {
	if uc.describer == nil || st.cred == nil {
		return
	}

	info, err := uc.describer.Describe(ctx, st.cred, uc.target.ProjectID, uc.target.Region, types.ServiceName)
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to look up deployed service", "error", err)
		return
	}
	st.run.ServiceURI = info.URI
	st.run.Revision = info.Revision
}

func (uc *deployUseCase) lock(ctx context.Context, run *model.Run) (func(), error) {
	acquired, err := uc.locker.Acquire(ctx, types.ServiceName, run.ID, uc.lockTTL)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to acquire deploy lock", goerr.T(model.ErrTagLocked))
	}
	if !acquired {
		return nil, goerr.New("another run is deploying the service",
			goerr.T(model.ErrTagLocked),
			goerr.V("service", types.ServiceName),
		)
	}

	return func() {
		if err := uc.locker.Release(context.WithoutCancel(ctx), types.ServiceName, run.ID); err != nil {
			errutil.Handle(ctx, "failed to release deploy lock", err)
		}
	}, nil
}

// abort finishes a run that failed before its steps could execute
func (uc *deployUseCase) abort(ctx context.Context, run *model.Run, err error, redactor *redact.Redactor) {
	for i := range run.Steps {
		run.Steps[i].Skip()
	}
	if run.StartedAt.IsZero() {
		run.Start(uc.now())
	}
	run.Finish(uc.now(), model.KindOf(err), redactor.String(err.Error()))
	ctxlog.From(ctx).Warn("Run aborted", "failure_kind", run.FailureKind, "error", run.Error)

	uc.save(ctx, run)
	uc.notify(ctx, run)
}

func (uc *deployUseCase) newWorkspace(id types.RunID) (*model.Workspace, func(context.Context), error) {
	root, err := os.MkdirTemp(uc.workDir, "deployer-run-*")
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to create workspace", goerr.V("run_id", id))
	}
	cleanup := func(ctx context.Context) {
		if err := os.RemoveAll(root); err != nil {
			ctxlog.From(ctx).Warn("Failed to remove workspace", "error", err, "path", root)
		}
	}

	if err := os.Chmod(root, 0700); err != nil {
		cleanup(context.Background())
		return nil, nil, goerr.Wrap(err, "failed to set workspace permissions", goerr.V("path", root))
	}

	ws := &model.Workspace{
		Root:      root,
		SourceDir: filepath.Join(root, "src"),
		ConfigDir: filepath.Join(root, "gcloud"),
	}
	if err := os.MkdirAll(ws.ConfigDir, 0700); err != nil {
		cleanup(context.Background())
		return nil, nil, goerr.Wrap(err, "failed to create cli config directory", goerr.V("path", ws.ConfigDir))
	}

	return ws, cleanup, nil
}

func (uc *deployUseCase) archive(ctx context.Context, id types.RunID, step model.StepName, content []byte) string {
	if uc.logStore == nil {
		return ""
	}
	uri, err := uc.logStore.Put(ctx, id, step, content)
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to archive step log", "step", step, "error", err)
		return ""
	}
	return uri
}

func (uc *deployUseCase) save(ctx context.Context, run *model.Run) {
	if err := uc.repo.PutRun(ctx, run); err != nil {
		errutil.Handle(ctx, "failed to save run", err)
	}
}

func (uc *deployUseCase) notify(ctx context.Context, run *model.Run) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.NotifyRun(ctx, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to send notification", "error", err)
	}
}

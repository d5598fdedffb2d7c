package git

import (
	"context"
	"io/fs"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/team11/cloudrun-deployer/pkg/domain/model"
)

// TokenFunc returns an access token for HTTPS clones. An empty token means anonymous.
type TokenFunc func(ctx context.Context) (string, error)

// Cloner checks out a commit with go-git
type Cloner struct {
	token   TokenFunc
	baseURL string
}

// Option configures Cloner
type Option func(*Cloner)

// WithToken sets the token source used for authenticated clones
func WithToken(fn TokenFunc) Option {
	return func(c *Cloner) {
		c.token = fn
	}
}

// WithBaseURL sets the host used when the trigger carries no clone URL
func WithBaseURL(u string) Option {
	return func(c *Cloner) {
		c.baseURL = u
	}
}

// New creates a Cloner
func New(opts ...Option) *Cloner {
	c := &Cloner{baseURL: "https://github.com"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CloneURL returns the URL to clone for trigger
func (c *Cloner) CloneURL(trigger *model.Trigger) string {
	if trigger.CloneURL != "" {
		return trigger.CloneURL
	}
	return c.baseURL + "/" + trigger.FullName() + ".git"
}

// Fetch clones the triggering branch into dir and checks out the exact commit
func (c *Cloner) Fetch(ctx context.Context, trigger *model.Trigger, dir string) (*model.Checkout, error) {
	logger := ctxlog.From(ctx)
	url := c.CloneURL(trigger)

	opts := &gogit.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.ReferenceName(trigger.Ref),
		SingleBranch:  true,
		Tags:          gogit.NoTags,
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get clone token")
		}
		if token != "" {
			opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: token}
		}
	}

	logger.Info("Cloning repository", "repo", trigger.FullName(), "ref", trigger.Ref)
	repo, err := gogit.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to clone repository", goerr.V("repo", trigger.FullName()))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open worktree")
	}
	hash := plumbing.NewHash(trigger.CommitSHA)
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return nil, goerr.Wrap(err, "failed to check out commit", goerr.V("commit_sha", trigger.CommitSHA))
	}

	head, err := repo.Head()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve HEAD")
	}
	if head.Hash() != hash {
		return nil, goerr.New("checked out commit does not match trigger",
			goerr.V("want", trigger.CommitSHA),
			goerr.V("got", head.Hash().String()),
		)
	}

	files, err := countFiles(dir)
	if err != nil {
		return nil, err
	}

	return &model.Checkout{
		Dir:       dir,
		CommitSHA: head.Hash().String(),
		Files:     files,
	}, nil
}

func countFiles(dir string) (int, error) {
	var n int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == gogit.GitDirName {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to walk checkout")
	}
	return n, nil
}

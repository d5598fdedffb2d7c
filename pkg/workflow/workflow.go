// Package workflow renders the deployment pipeline as a GitHub Actions workflow.
package workflow

import (
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rhysd/actionlint"
	"github.com/team11/cloudrun-deployer/pkg/domain/types"
	"github.com/team11/cloudrun-deployer/pkg/infra/gcloud"
)

// Names of the repository secrets and variable the workflow reads
const (
	SecretServiceAccount = "WIF_SERVICE_ACCOUNT"
	SecretProjectID      = "WIF_PROJECT_ID"
	SecretProvider       = "WIF_PROVIDER"
	VarRegion            = "REGION"
)

// Options controls rendering
type Options struct {
	Name          string
	CheckoutRef   string // actions/checkout version
	AuthActionRef string // google-github-actions/auth version
	RunsOn        string
}

// DefaultOptions returns the options used by the deploy command
func DefaultOptions() Options {
	return Options{
		Name:          "Deploy to Cloud Run",
		CheckoutRef:   "v4",
		AuthActionRef: "v2",
		RunsOn:        "ubuntu-latest",
	}
}

type document struct {
	Name        string            `yaml:"name"`
	On          trigger           `yaml:"on"`
	Permissions map[string]string `yaml:"permissions"`
	Jobs        map[string]job    `yaml:"jobs"`
}

type trigger struct {
	Push pushFilter `yaml:"push"`
}

type pushFilter struct {
	Branches []string `yaml:"branches"`
}

type job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []step `yaml:"steps"`
}

type step struct {
	Name string            `yaml:"name"`
	ID   string            `yaml:"id,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Run  string            `yaml:"run,omitempty"`
}

func secret(name string) string {
	return fmt.Sprintf("${{ secrets.%s }}", name)
}

func variable(name string) string {
	return fmt.Sprintf("${{ vars.%s }}", name)
}

func build(opts Options) document {
	deployArgs := gcloud.DeployArgs(variable(VarRegion))

	return document{
		Name: opts.Name,
		On: trigger{
			Push: pushFilter{Branches: []string{types.DeployBranch}},
		},
		Permissions: map[string]string{
			"contents": "read",
			"id-token": "write",
		},
		Jobs: map[string]job{
			"deploy": {
				RunsOn: opts.RunsOn,
				Steps: []step{
					{
						Name: "Checkout",
						Uses: "actions/checkout@" + opts.CheckoutRef,
					},
					{
						Name: "Authenticate to Google Cloud",
						ID:   "auth",
						Uses: "google-github-actions/auth@" + opts.AuthActionRef,
						With: map[string]string{
							"service_account":            secret(SecretServiceAccount),
							"project_id":                 secret(SecretProjectID),
							"workload_identity_provider": secret(SecretProvider),
						},
					},
					{
						Name: "Set project",
						Run:  "gcloud " + strings.Join(gcloud.SetProjectArgs(secret(SecretProjectID)), " "),
					},
					{
						Name: "Deploy",
						Run:  "gcloud " + strings.Join(deployArgs, " "),
					},
				},
			},
		},
	}
}

// Render returns the workflow YAML
func Render(opts Options) ([]byte, error) {
	out, err := yaml.MarshalWithOptions(build(opts), yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to render workflow")
	}
	return out, nil
}

// LintError is one problem found by actionlint
type LintError struct {
	Line    int
	Column  int
	Kind    string
	Message string
}

func (e LintError) String() string {
	return fmt.Sprintf("%d:%d: %s [%s]", e.Line, e.Column, e.Message, e.Kind)
}

// Lint checks content with actionlint. path is only used in messages.
func Lint(path string, content []byte) ([]LintError, error) {
	linter, err := actionlint.NewLinter(io.Discard, &actionlint.LinterOptions{})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create linter")
	}

	errs, err := linter.Lint(path, content, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to lint workflow", goerr.V("path", path))
	}

	results := make([]LintError, 0, len(errs))
	for _, e := range errs {
		results = append(results, LintError{
			Line:    e.Line,
			Column:  e.Column,
			Kind:    e.Kind,
			Message: e.Message,
		})
	}
	return results, nil
}

// RenderAndLint renders the workflow and fails if actionlint reports anything
func RenderAndLint(opts Options) ([]byte, error) {
	out, err := Render(opts)
	if err != nil {
		return nil, err
	}

	problems, err := Lint("deploy.yml", out)
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.String()
		}
		return nil, goerr.New("rendered workflow has lint errors", goerr.V("errors", msgs))
	}
	return out, nil
}

package model

import "github.com/m-mizutani/goerr/v2"

// Target describes where a run deploys to. Values are supplied by the execution
// environment and never mutated by a run.
type Target struct {
	ServiceAccount           string `json:"-" toml:"service_account" masq:"secret"`
	ProjectID                string `json:"-" toml:"project_id" masq:"secret"`
	WorkloadIdentityProvider string `json:"-" toml:"workload_identity_provider" masq:"secret"`
	Region                   string `json:"region" toml:"region"`
}

// ValidateCredentials checks the three federation inputs
func (t *Target) ValidateCredentials() error {
	var missing []string
	if t.ServiceAccount == "" {
		missing = append(missing, "service_account")
	}
	if t.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if t.WorkloadIdentityProvider == "" {
		missing = append(missing, "workload_identity_provider")
	}
	if len(missing) > 0 {
		return goerr.New("federation input is empty", goerr.V("missing", missing))
	}
	return nil
}

// ValidateRegion checks that a deploy region is configured
func (t *Target) ValidateRegion() error {
	if t.Region == "" {
		return goerr.New("deploy region is empty")
	}
	return nil
}

// SecretValues returns non-empty secret strings for output redaction
func (t *Target) SecretValues() []string {
	var values []string
	for _, v := range []string{t.ServiceAccount, t.ProjectID, t.WorkloadIdentityProvider} {
		if v != "" {
			values = append(values, v)
		}
	}
	return values
}

// Merge fills empty fields from base
func (t *Target) Merge(base Target) {
	if t.ServiceAccount == "" {
		t.ServiceAccount = base.ServiceAccount
	}
	if t.ProjectID == "" {
		t.ProjectID = base.ProjectID
	}
	if t.WorkloadIdentityProvider == "" {
		t.WorkloadIdentityProvider = base.WorkloadIdentityProvider
	}
	if t.Region == "" {
		t.Region = base.Region
	}
}

package provision

import (
	"errors"
	"fmt"

	"github.com/goplus/extern/internal/process"
)

// Step names a stage of provisioning.
type Step string

const (
	StepClone     Step = "clone"
	StepCheckout  Step = "checkout"
	StepFetch     Step = "fetch"
	StepResolve   Step = "resolve"
	StepConfigure Step = "configure"
	StepBuild     Step = "build"
	StepInstall   Step = "install"
	StepVerify    Step = "verify"
)

// ErrNotProvisioned is returned when a required dependency has no install
// dir yet.
var ErrNotProvisioned = errors.New("dependency not provisioned")

// RetrievalError reports a failed clone, fetch or checkout.
type RetrievalError struct {
	Name       string
	URL        string
	Ref        string
	Step       Step
	ExitStatus int
	Output     string
	Err        error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Name, e.Step, e.URL, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ProvisioningError reports a failed configure, build, install or verify
// step.
type ProvisioningError struct {
	Name       string
	Step       Step
	ExitStatus int
	Output     string
	Err        error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// exitInfo extracts the exit status and captured output of a failed
// command. Failures that are not a nonzero exit count as status 1.
func exitInfo(err error) (int, string) {
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus, exitErr.Output
	}
	return 1, ""
}

func retrievalError(spec DependencySpec, ref string, step Step, err error) error {
	status, output := exitInfo(err)
	return &RetrievalError{
		Name:       spec.Name,
		URL:        spec.RepositoryURL,
		Ref:        ref,
		Step:       step,
		ExitStatus: status,
		Output:     output,
		Err:        err,
	}
}

func provisioningError(spec DependencySpec, step Step, err error) error {
	status, output := exitInfo(err)
	return &ProvisioningError{
		Name:       spec.Name,
		Step:       step,
		ExitStatus: status,
		Output:     output,
		Err:        err,
	}
}

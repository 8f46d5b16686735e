package resolver

import (
	"fmt"

	"github.com/isdmx/scriptbox/nuget"
)

// ResolutionError is the failure of one requested package.
type ResolutionError struct {
	PackageID        string
	RequestedVersion string
	Message          string
	Kind             nuget.ErrorKind
	Err              error
}

func (e *ResolutionError) Error() string {
	if e.PackageID == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %s: %s", e.PackageID, e.RequestedVersion, e.Kind, e.Message)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// newResolutionError describes err for a requested identity.
func newResolutionError(requested nuget.Identity, err error) *ResolutionError {
	ne := nuget.AsError(requested, err)
	msg := ne.Message
	if ne.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, ne.Err)
	}
	if ne.Package.Name != "" && ne.Package.Key() != requested.Key() {
		msg = fmt.Sprintf("%s: %s", ne.Package, msg)
	}
	return &ResolutionError{
		PackageID:        requested.Name,
		RequestedVersion: requested.Version,
		Message:          msg,
		Kind:             ne.Kind,
		Err:              err,
	}
}

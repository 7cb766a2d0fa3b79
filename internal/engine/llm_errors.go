package engine

import (
	"context"
	"errors"
	"net"

	"propertysanta/engine/internal/archive"
	"propertysanta/engine/internal/errinfo"
	"propertysanta/engine/internal/llm"
	"propertysanta/engine/internal/property"
	"propertysanta/engine/internal/workflow"
)

func mapLLMError(phase, providerID string, err error) *errinfo.ErrorInfo {
	if errors.Is(err, llm.ErrUnauthorized) {
		info := errinfo.ProviderAuthFailed(phase)
		info.ProviderID = providerID
		return info
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		info := errinfo.ProviderNotConfigured(phase)
		info.ProviderID = providerID
		return info
	}
	if errors.Is(err, llm.ErrEgressBlocked) {
		info := errinfo.EgressBlocked(phase, "provider endpoint not allowed")
		info.ProviderID = providerID
		return info
	}
	if errors.Is(err, llm.ErrUnavailable) || errors.Is(err, llm.ErrRateLimited) {
		info := errinfo.ProviderUnavailable(phase, err.Error())
		info.ProviderID = providerID
		return info
	}
	if errors.Is(err, context.Canceled) {
		info := errinfo.UserCanceled(phase, err.Error())
		info.ProviderID = providerID
		return info
	}
	if errors.Is(err, context.DeadlineExceeded) {
		info := errinfo.NetworkUnavailable(phase, err.Error())
		info.ProviderID = providerID
		return info
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		info := errinfo.NetworkUnavailable(phase, err.Error())
		info.ProviderID = providerID
		return info
	}
	info := errinfo.ValidationFailed(phase, err.Error())
	info.ProviderID = providerID
	return info
}

// mapJobError converts registry and property lookup errors.
func mapJobError(jobID string, err error) *errinfo.ErrorInfo {
	switch {
	case errors.Is(err, workflow.ErrJobNotFound):
		return errinfo.JobNotFound(jobID)
	case errors.Is(err, workflow.ErrJobExists):
		info := errinfo.ValidationFailed(errinfo.PhaseJob, err.Error())
		info.JobID = jobID
		return info
	case errors.Is(err, workflow.ErrNoSummary), errors.Is(err, archive.ErrNotFound):
		info := errinfo.ValidationFailed(errinfo.PhaseSummary, err.Error())
		info.JobID = jobID
		return info
	case errors.Is(err, property.ErrNotFound):
		return errinfo.PropertyNotFound(err.Error())
	case errors.Is(err, property.ErrInvalidProperty):
		return errinfo.FileReadFailed(errinfo.PhaseProperties, err.Error())
	case errors.Is(err, context.Canceled):
		info := errinfo.UserCanceled(errinfo.PhaseJob, err.Error())
		info.JobID = jobID
		return info
	default:
		info := errinfo.Internal(errinfo.PhaseJob, err.Error())
		info.JobID = jobID
		return info
	}
}

package errinfo

// ErrorInfo is the structured error data returned across the RPC boundary.
type ErrorInfo struct {
	ErrorCode  string   `json:"error_code"`
	Phase      string   `json:"phase,omitempty"`
	Subphase   string   `json:"subphase,omitempty"`
	Retryable  bool     `json:"retryable"`
	Actions    []string `json:"actions,omitempty"`
	ProviderID string   `json:"provider_id,omitempty"`
	ModelID    string   `json:"model_id,omitempty"`
	JobID      string   `json:"job_id,omitempty"`
	RoomType   string   `json:"room_type,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

const (
	CodeEgressBlocked         = "EGRESS_BLOCKED_BY_POLICY"
	CodeProviderNotConfigured = "PROVIDER_NOT_CONFIGURED"
	CodeProviderAuthFailed    = "PROVIDER_AUTH_FAILED"
	CodeProviderUnavailable   = "PROVIDER_UNAVAILABLE"
	CodeNetworkUnavailable    = "NETWORK_UNAVAILABLE"
	CodeValidationFailed      = "VALIDATION_FAILED"
	CodeJobNotFound           = "JOB_NOT_FOUND"
	CodePropertyNotFound      = "PROPERTY_NOT_FOUND"
	CodeFileReadFailed        = "FILE_READ_FAILED"
	CodeFileWriteFailed       = "FILE_WRITE_FAILED"
	CodeUserCanceled          = "USER_CANCELED"
	CodeInternal              = "INTERNAL"
)

const (
	ActionRetry        = "retry"
	ActionOpenSettings = "open_settings"
	ActionStartJob     = "start_job"
	ActionResubmit     = "resubmit_photo"
)

const (
	PhaseJob        = "job"
	PhaseComparison = "comparison"
	PhaseSummary    = "summary"
	PhaseSettings   = "settings"
	PhaseProperties = "properties"
)

const (
	SubphaseBeforePhoto = "before_photo"
	SubphaseAfterPhoto  = "after_photo"
	SubphaseChat        = "chat"
	SubphaseRedo        = "redo"
	SubphaseArchive     = "archive"
)

func ProviderNotConfigured(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderNotConfigured,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionOpenSettings},
	}
}

func ProviderAuthFailed(phase string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderAuthFailed,
		Phase:     phase,
		Retryable: false,
		Actions:   []string{ActionOpenSettings},
	}
}

func ValidationFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeValidationFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func JobNotFound(jobID string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeJobNotFound,
		Phase:     PhaseJob,
		Retryable: false,
		Actions:   []string{ActionStartJob},
		JobID:     jobID,
	}
}

func PropertyNotFound(detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodePropertyNotFound,
		Phase:     PhaseProperties,
		Retryable: false,
		Detail:    detail,
	}
}

func FileReadFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileReadFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func FileWriteFailed(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeFileWriteFailed,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func EgressBlocked(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeEgressBlocked,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func ProviderUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeProviderUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func UserCanceled(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeUserCanceled,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

func NetworkUnavailable(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeNetworkUnavailable,
		Phase:     phase,
		Retryable: true,
		Actions:   []string{ActionRetry},
		Detail:    detail,
	}
}

func Internal(phase, detail string) *ErrorInfo {
	return &ErrorInfo{
		ErrorCode: CodeInternal,
		Phase:     phase,
		Retryable: false,
		Detail:    detail,
	}
}

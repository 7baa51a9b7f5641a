package model

// ResultCode is the closed enumeration of gateway outcomes, consumed
// verbatim from the fetch/login server.
type ResultCode string

// Gateway result codes.
const (
	// Success.
	CodeCreated   ResultCode = "CREATED"
	CodeResumed   ResultCode = "RESUMED"
	CodeCompleted ResultCode = "COMPLETED"

	// Flow deferral; not errors.
	CodeCodeRequested ResultCode = "CODE_REQUESTED"
	CodeManualLogin   ResultCode = "MANUAL_LOGIN"

	// Flow not completed.
	CodeNotLogged ResultCode = "NOT_LOGGED"

	// Bad user input; session stays alive for retry.
	CodeInvalidCode        ResultCode = "INVALID_CODE"
	CodeInvalidCredentials ResultCode = "INVALID_CREDENTIALS"

	// Not set up.
	CodeNoCredentialsAvailable ResultCode = "NO_CREDENTIALS_AVAILABLE"

	// Policy rejections.
	CodeLoginRequired ResultCode = "LOGIN_REQUIRED"
	CodeCooldown      ResultCode = "COOLDOWN"
	CodeLinkExpired   ResultCode = "LINK_EXPIRED"

	// Partial success: bookkeeping advances, user is warned.
	CodePartiallyCompleted ResultCode = "PARTIALLY_COMPLETED"

	// Failures.
	CodeRemoteFailed        ResultCode = "REMOTE_FAILED"
	CodeFeatureNotSupported ResultCode = "FEATURE_NOT_SUPPORTED"
	CodeUnexpectedError     ResultCode = "UNEXPECTED_ERROR"
)

// LoginSucceeded reports whether a login result code establishes a session.
func (c ResultCode) LoginSucceeded() bool {
	return c == CodeCreated || c == CodeResumed
}

// LoginResult is the gateway's response to a login request. ProcessID is the
// opaque continuation token for a pending second-factor challenge.
type LoginResult struct {
	Code      ResultCode
	ProcessID string
	Details   map[string]string
}

// FetchDetails carries the optional payload accompanying a fetch result.
type FetchDetails struct {
	Credentials map[string]string
	ProcessID   string
	WaitSeconds int
}

// FetchResult is the gateway's response to a fetch request.
type FetchResult struct {
	Details *FetchDetails
	Code    ResultCode
}

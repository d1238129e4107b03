package shared

// DomainError is a coded error surfaced to API callers. Sentinels below are
// wrapped with fmt.Errorf("%w") by callers that add context.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a coded domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound       = NewDomainError("NOT_FOUND", "record not found")
	ErrAlreadyExists  = NewDomainError("ALREADY_EXISTS", "record already exists")
	ErrInvalidInput   = NewDomainError("INVALID_INPUT", "invalid input")
	ErrInvalidState   = NewDomainError("INVALID_STATE", "document is not in a state that allows this operation")
	ErrSyncInProgress = NewDomainError("SYNC_IN_PROGRESS", "another synchronization run holds the lock")
)

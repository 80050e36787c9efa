package errors

import "net/http"

// APIError is a domain failure that already knows the HTTP status it maps to.
// Handlers compare against the sentinel values below and hand them to the
// boundary unmodified.
type APIError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(message string, statusCode int) *APIError {
	return &APIError{Message: message, StatusCode: statusCode}
}

var (
	ErrBadRequest         = New("Invalid request body", http.StatusBadRequest)
	ErrValidationFailed   = New("Validation error", http.StatusBadRequest)
	ErrInvalidCredentials = New("Invalid email or password", http.StatusUnauthorized)
	ErrInvalidToken       = New("Invalid or missing authentication token", http.StatusUnauthorized)
	ErrTaskForbidden      = New("You do not have permission to access this task", http.StatusForbidden)
	ErrTaskNotFound       = New("Task not found", http.StatusNotFound)
	ErrUserNotFound       = New("User not found", http.StatusNotFound)
	ErrUserExists         = New("User with this email already exists", http.StatusConflict)
	ErrInternalServer     = New("Internal server error", http.StatusInternalServerError)

	ErrInvalidEmail           = New("A valid email address is required", http.StatusBadRequest)
	ErrInvalidPassword        = New("Password must be between 8 and 100 characters", http.StatusBadRequest)
	ErrInvalidTitle           = New("Title must be between 1 and 100 characters", http.StatusBadRequest)
	ErrInvalidDescription     = New("Description must be at most 500 characters", http.StatusBadRequest)
	ErrInvalidCompletedFilter = New("Query parameter 'completed' must be true or false", http.StatusBadRequest)

	ErrWeakSecret = New("Signing secret must be at least 32 characters", http.StatusInternalServerError)

	ErrInvalidGzipRequest    = New("Invalid gzip request body", http.StatusBadRequest)
	ErrGzipCompressionFailed = New("Response compression failed", http.StatusInternalServerError)
)

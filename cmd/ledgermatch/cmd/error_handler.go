package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	apperrors "ledgermatch/pkg/errors"
)

// ErrorHandler renders errors for terminal users and maps them to process
// exit codes.
type ErrorHandler struct {
	verbose bool
}

// NewErrorHandler creates an error handler honoring the --verbose flag.
func NewErrorHandler() *ErrorHandler {
	return &ErrorHandler{verbose: viper.GetBool("verbose")}
}

// Handle prints the error and returns the exit code the process should use.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return 0
	}

	if appErr, ok := apperrors.As(err); ok {
		return h.handleAppError(appErr)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}

func (h *ErrorHandler) handleAppError(err *apperrors.Error) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", categoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.ExitCode()
}

func categoryHelp(category apperrors.Category) string {
	switch category {
	case apperrors.CategoryValidation:
		return "Check the input values: field names above identify what was rejected."
	case apperrors.CategoryParse:
		return "Check the CSV structure: column headers, UTF-8 encoding and row layout."
	case apperrors.CategoryNotFound:
		return "The referenced transaction or payee pattern does not exist for this tenant."
	case apperrors.CategoryConflict:
		return "The operation collides with existing data; choose a different value."
	case apperrors.CategoryStorage:
		return "The ledger store failed; check the --db path and database health."
	case apperrors.CategoryConfiguration:
		return "Check the command-line flags and the --config file."
	default:
		return "Use --verbose for more detail."
	}
}

package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidRequest marks requests rejected before touching the queue.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound marks lookups of tasks or events that do not exist.
	ErrNotFound = errors.New("not found")
)

// invalid wraps err as an ErrInvalidRequest, flattening validator output
// into one readable line.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			if fe.Param() != "" {
				parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(parts, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

package httpserver

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/video-subtitle-pipeline/internal/domain"
)

var jobIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateJobID rejects ids that cannot be job hash keys: empty, oversized,
// or carrying characters outside [a-zA-Z0-9_-].
func validateJobID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id required", domain.ErrInvalidArgument)
	}
	if len(id) > 100 {
		return fmt.Errorf("%w: id too long", domain.ErrInvalidArgument)
	}
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("%w: id contains invalid characters", domain.ErrInvalidArgument)
	}
	return nil
}

// sanitizeFilename keeps only the final path element of a client-supplied
// filename and strips characters that would corrupt a blob key.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\x00", "")
	if i := strings.LastIndexAny(name, "/\\"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if len(name) > 200 {
		name = name[len(name)-200:]
	}
	return name
}

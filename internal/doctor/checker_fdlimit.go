package doctor

import (
	"context"
	"errors"
	"fmt"
)

var errLimitUnsupported = errors.New("rlimit unsupported")

// RecommendedFileDescriptors is the soft limit below which "hakichain serve"
// may run out of sockets under websocket load.
const RecommendedFileDescriptors uint64 = 4096

// FileDescriptorChecker checks the file descriptor soft limit
type FileDescriptorChecker struct {
	limit func() (uint64, error)
}

func NewFileDescriptorChecker() *FileDescriptorChecker {
	return &FileDescriptorChecker{limit: softFileLimit}
}

func (c *FileDescriptorChecker) Name() string       { return "File descriptors" }
func (c *FileDescriptorChecker) Category() Category { return CategorySystem }

func (c *FileDescriptorChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{Name: c.Name(), Category: c.Category()}

	soft, err := c.limit()
	if errors.Is(err, errLimitUnsupported) {
		result.Status = StatusSkipped
		result.Message = "File descriptors: not checked on this platform"
		return result
	}
	if err != nil {
		result.Status = StatusWarning
		result.Message = "File descriptors: unable to check"
		result.Details = err.Error()
		return result
	}

	if soft >= RecommendedFileDescriptors {
		result.Status = StatusOK
		result.Message = fmtLimit(soft, "recommended")
		return result
	}
	result.Status = StatusWarning
	result.Message = fmtLimit(soft, "recommended for serve")
	result.FixCommand = "ulimit -n 4096"
	return result
}

func fmtLimit(soft uint64, note string) string {
	return fmt.Sprintf("File descriptors: %d (>= %d %s)", soft, RecommendedFileDescriptors, note)
}

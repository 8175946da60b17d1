package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the open file limit below which watching large
// trees runs out of descriptors.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the soft open file limit. A low limit only
// warns: indexing works, watching large trees may not.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors"}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("getrlimit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusWarn
		result.Details = "Run 'ulimit -n 10240' before 'rustrag watch' on large trees"
		return result
	}
	result.Status = StatusPass
	return result
}

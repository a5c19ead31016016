package policy

import (
	"fmt"
	"strings"

	"github.com/mandate-run/mandate/internal/merrors"
)

// Validate checks every document invariant named in spec.md §3/§8. A
// document that fails validation is rejected outright; there is no implicit
// repair.
func Validate(d *Document) error {
	if d == nil {
		return merrors.New(merrors.CodeConfiguration, "policy document is nil")
	}

	for _, ext := range d.Global.BlockedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return merrors.New(merrors.CodeConfiguration,
				fmt.Sprintf("blocked extension %q must begin with \".\"", ext))
		}
	}

	if d.Global.MaxFileSizeMB < 1 || d.Global.MaxFileSizeMB > 1000 {
		return merrors.New(merrors.CodeConfiguration,
			fmt.Sprintf("max_file_size_mb %d out of range 1..1000", d.Global.MaxFileSizeMB))
	}

	for toolName, tool := range d.Tools {
		for _, cp := range []struct {
			op     Operation
			policy CRUDPolicy
		}{
			{OpCreate, tool.Create},
			{OpRead, tool.Read},
			{OpUpdate, tool.Update},
			{OpDelete, tool.Delete},
		} {
			for _, dir := range cp.policy.AllowedDirectories {
				if dir == "" {
					continue
				}
				if !strings.HasSuffix(dir, "/") {
					return merrors.New(merrors.CodeConfiguration,
						fmt.Sprintf("allowed_directories entry %q for %s.%s must end with \"/\"", dir, toolName, cp.op))
				}
				if strings.Contains(dir, "..") {
					return merrors.New(merrors.CodeConfiguration,
						fmt.Sprintf("allowed_directories entry %q for %s.%s must not contain \"..\"", dir, toolName, cp.op))
				}
			}
		}
	}

	return nil
}

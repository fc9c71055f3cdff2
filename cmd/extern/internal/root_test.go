package internal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goplus/extern/internal/process"
	"github.com/goplus/extern/internal/provision"
	"github.com/goplus/extern/internal/toolpath"
)

func TestExitStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"tool not found", &toolpath.ToolNotFoundError{Name: "cmake"}, 1},
		{"retrieval", &provision.RetrievalError{Name: "a", ExitStatus: 128}, 128},
		{"provisioning", &provision.ProvisioningError{Name: "a", ExitStatus: 2}, 2},
		{"wrapped provisioning", fmt.Errorf("ensure: %w", &provision.ProvisioningError{ExitStatus: 7}), 7},
		{"provisioning without status", &provision.ProvisioningError{Name: "a", Step: provision.StepVerify}, 1},
		{"exit error", &process.ExitError{ExitStatus: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitStatus(tt.err); got != tt.want {
				t.Errorf("ExitStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

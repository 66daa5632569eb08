package unit

import (
	"fmt"

	"github.com/lattice-iac/conductor/types"
)

// BackendConfig names the remote state backend the IaC tool child process
// is pointed at for every phase of one unit's execution.
type BackendConfig struct {
	Bucket    string
	Encrypted bool
}

func initArgs(unit types.DeploymentUnit, backend BackendConfig) []string {
	args := []string{
		"init",
		fmt.Sprintf("-backend-config=bucket=%s", backend.Bucket),
		fmt.Sprintf("-backend-config=key=%s", unit.StateKey),
		fmt.Sprintf("-backend-config=region=%s", unit.Region),
	}
	if backend.Encrypted {
		args = append(args, "-backend-config=encrypt=true")
	}
	return args
}

func planArgs(planOutPath string) []string {
	return []string{"plan", fmt.Sprintf("-out=%s", planOutPath)}
}

func showJSONArgs(planOutPath string) []string {
	return []string{"show", "-json", planOutPath}
}

func applyArgs(planOutPath string) []string {
	return []string{"apply", planOutPath}
}

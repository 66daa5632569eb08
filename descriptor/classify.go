package descriptor

import (
	"path/filepath"

	"github.com/lattice-iac/conductor/types"
)

// serviceDeclarationKeys maps a recognized top-level declaration key to the
// service vocabulary member it contributes to a unit's Services set.
var serviceDeclarationKeys = map[string]types.Service{
	"object_store_buckets": types.ServiceObjectStore,
	"kms_keys":             types.ServiceKMS,
	"iam_roles":            types.ServiceIAM,
	"iam_policies":         types.ServiceIAM,
	"iam_users":            types.ServiceIAM,
	"fn_definitions":       types.ServiceComputeFn,
	"queues":               types.ServiceQueue,
	"topics":               types.ServiceTopic,
}

// Classify maps a descriptor path and its contents to a DeploymentUnit, or
// reports why it could not.
func Classify(path, contents string) (types.DeploymentUnit, error) {
	project := filepath.Base(filepath.Dir(path))
	if project == "" || project == "." || project == string(filepath.Separator) {
		return types.DeploymentUnit{}, &ClassificationError{
			Kind: KindMissingProject, Path: path, Detail: "path has no parent directory",
		}
	}

	decls := scanDeclarations(contents)

	strings := map[string]string{}
	lists := map[string][]string{}
	serviceSet := map[types.Service]struct{}{}
	var services []types.Service

	for _, d := range decls {
		switch d.Kind {
		case DeclString:
			if _, exists := strings[d.Key]; !exists {
				strings[d.Key] = d.String
			}
		case DeclList:
			if _, exists := lists[d.Key]; !exists {
				lists[d.Key] = d.List
			}
		case DeclBlock:
			if svc, ok := serviceDeclarationKeys[d.Key]; ok {
				if _, seen := serviceSet[svc]; !seen {
					serviceSet[svc] = struct{}{}
					services = append(services, svc)
				}
			}
		}
	}

	accountName := strings["account_name"]
	region := strings["region"]
	if region == "" {
		if vals := lists["region"]; len(vals) == 1 {
			region = vals[0]
		}
	}
	if accountName == "" || region == "" {
		return types.DeploymentUnit{}, &ClassificationError{
			Kind: KindMissingMetadata, Path: path, Detail: "missing account_name or region",
		}
	}

	if len(services) == 0 {
		return types.DeploymentUnit{}, &ClassificationError{
			Kind: KindNoServiceDetected, Path: path, Detail: "no recognized service declaration key present",
		}
	}

	unit := types.DeploymentUnit{
		SourcePath:  path,
		Project:     project,
		AccountName: accountName,
		Region:      region,
		Services:    services,
		Metadata: types.UnitMetadata{
			Application: strings["application"],
			Team:        strings["team"],
			CostCenter:  strings["cost_center"],
			Environment: strings["environment"],
		},
	}
	unit.StateKey = types.StateKey(unit.Services, unit.AccountName, unit.Region, unit.Project)
	return unit, nil
}

// ResourceNames returns the enumerated resource identifier tokens across all
// service blocks in contents, for human-readable summaries only.
func ResourceNames(contents string) []string {
	var names []string
	for _, d := range scanDeclarations(contents) {
		if d.Kind == DeclBlock {
			if _, ok := serviceDeclarationKeys[d.Key]; ok {
				names = append(names, d.Resources...)
			}
		}
	}
	return names
}

package cmd

import "github.com/lattice-iac/conductor/types"

// collapseDuplicateStateKeys groups units by state_key. Any key claimed by
// more than one descriptor makes the whole batch ambiguous per §4.9: there
// is no principled way to pick a winner, so every duplicate key is reported
// and none of its units survive. A batch with zero duplicate keys returns
// units unchanged (same order) and a nil duplicates slice.
func collapseDuplicateStateKeys(units []types.DeploymentUnit) (survivors []types.DeploymentUnit, duplicateKeys []string) {
	groups := make(map[string][]types.DeploymentUnit, len(units))
	var order []string
	for _, u := range units {
		if _, seen := groups[u.StateKey]; !seen {
			order = append(order, u.StateKey)
		}
		groups[u.StateKey] = append(groups[u.StateKey], u)
	}

	survivors = make([]types.DeploymentUnit, 0, len(units))
	for _, key := range order {
		group := groups[key]
		if len(group) > 1 {
			duplicateKeys = append(duplicateKeys, key)
			continue
		}
		survivors = append(survivors, group[0])
	}
	return survivors, duplicateKeys
}

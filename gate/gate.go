// Package gate implements the Pre-Gate Validator: checking a classified
// unit's governance metadata against a declarative rules document before any
// IaC tool runs.
package gate

import (
	"fmt"

	"github.com/lattice-iac/conductor/types"
)

// Gate checks unit against rules and requesterID. All seven checks are
// evaluated regardless of earlier failures, so the caller receives the
// complete set of violations in one pass.
func Gate(unit types.DeploymentUnit, rules types.PolicyRulesDocument, requesterID string) []types.GateViolation {
	var violations []types.GateViolation

	app, appKnown := rules.Applications[unit.Metadata.Application]
	if !appKnown || !app.Active {
		violations = append(violations, types.GateViolation{
			Code:   "application_unknown_or_inactive",
			Detail: fmt.Sprintf("application %q is not known or not active", unit.Metadata.Application),
		})
	}

	if appKnown && !contains(app.AllowedEnvironments, unit.Metadata.Environment) {
		violations = append(violations, types.GateViolation{
			Code:   "application_environment_not_allowed",
			Detail: fmt.Sprintf("application %q does not allow environment %q", unit.Metadata.Application, unit.Metadata.Environment),
		})
	}

	team, teamKnown := rules.Teams[unit.Metadata.Team]
	if !teamKnown {
		violations = append(violations, types.GateViolation{
			Code:   "team_unknown",
			Detail: fmt.Sprintf("team %q is not known", unit.Metadata.Team),
		})
	}

	if teamKnown && !contains(team.Members, requesterID) {
		violations = append(violations, types.GateViolation{
			Code:   "requester_not_team_member",
			Detail: fmt.Sprintf("requester %q is not a member of team %q", requesterID, unit.Metadata.Team),
		})
	}

	if appKnown && !contains(app.AllowedTeams, unit.Metadata.Team) {
		violations = append(violations, types.GateViolation{
			Code:   "team_not_authorized_for_application",
			Detail: fmt.Sprintf("team %q is not authorized for application %q", unit.Metadata.Team, unit.Metadata.Application),
		})
	}

	costCenter, ccKnown := rules.CostCenters[unit.Metadata.CostCenter]
	if !ccKnown || !costCenter.Active {
		violations = append(violations, types.GateViolation{
			Code:   "cost_center_unknown_or_inactive",
			Detail: fmt.Sprintf("cost center %q is not known or not active", unit.Metadata.CostCenter),
		})
	}

	if ccKnown && !contains(costCenter.AuthorizedTeams, unit.Metadata.Team) {
		violations = append(violations, types.GateViolation{
			Code:   "team_not_authorized_for_cost_center",
			Detail: fmt.Sprintf("team %q is not authorized for cost center %q", unit.Metadata.Team, unit.Metadata.CostCenter),
		})
	}

	return violations
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

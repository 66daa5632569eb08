package policyengine

import "testing"

func TestReportRejectedOnCritical(t *testing.T) {
	r := Report{Violations: []Violation{
		{Severity: SeverityHigh},
		{Severity: SeverityCritical, RuleID: "no-public-buckets"},
	}}
	if !r.Rejected() {
		t.Error("Rejected() = false, want true when any violation is critical")
	}
}

func TestReportNotRejectedWithoutCritical(t *testing.T) {
	r := Report{Violations: []Violation{
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
	}}
	if r.Rejected() {
		t.Error("Rejected() = true, want false with no critical violations")
	}
}

func TestReportNotRejectedWhenEmpty(t *testing.T) {
	if (Report{}).Rejected() {
		t.Error("Rejected() = true for empty report, want false")
	}
}

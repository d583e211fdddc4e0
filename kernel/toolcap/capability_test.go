package toolcap

import (
	"testing"

	"github.com/kestrelrun/agentkernel/kernel/permission"
)

type capabilityValue struct {
	cap Capability
}

func (v capabilityValue) Capability() Capability { return v.cap }

func TestOfDefaultUnknown(t *testing.T) {
	got := Of(nil)
	if got.Risk != RiskUnknown {
		t.Fatalf("expected unknown risk for nil value, got %q", got.Risk)
	}
}

func TestOfNormalizesOperations(t *testing.T) {
	got := Of(capabilityValue{cap: Capability{
		Operations: []Operation{OperationFileRead, OperationFileRead, OperationExec},
		Risk:       RiskMedium,
	}})
	if got.Risk != RiskMedium {
		t.Fatalf("expected risk=%q, got %q", RiskMedium, got.Risk)
	}
	if !got.HasOperation(OperationFileRead) || !got.HasOperation(OperationExec) {
		t.Fatalf("expected declared operations in capability: %#v", got.Operations)
	}
	if len(got.Operations) != 2 {
		t.Fatalf("expected deduped operations length 2, got %d (%#v)", len(got.Operations), got.Operations)
	}
}

func TestRequiresApprovalOnlyForHighRisk(t *testing.T) {
	cases := map[RiskLevel]bool{
		RiskUnknown: false,
		RiskLow:     false,
		RiskMedium:  false,
		RiskHigh:    true,
	}
	for risk, want := range cases {
		if got := (Capability{Risk: risk}).RequiresApproval(); got != want {
			t.Errorf("RequiresApproval() for risk %q = %v, want %v", risk, got, want)
		}
	}
}

func TestEscalateRaisesHighRiskAllowToAsk(t *testing.T) {
	decision := Escalate(permission.Allow, Capability{Risk: RiskHigh}, false)
	if decision != permission.Ask {
		t.Fatalf("expected Allow to escalate to Ask for an unconfigured high-risk tool, got %q", decision)
	}
}

func TestEscalateLeavesExplicitConfigurationAlone(t *testing.T) {
	decision := Escalate(permission.Allow, Capability{Risk: RiskHigh}, true)
	if decision != permission.Allow {
		t.Fatalf("expected explicit configuration to bypass escalation, got %q", decision)
	}
}

func TestEscalateLeavesLowRiskAlone(t *testing.T) {
	decision := Escalate(permission.Allow, Capability{Risk: RiskLow}, false)
	if decision != permission.Allow {
		t.Fatalf("expected low-risk Allow to stay Allow, got %q", decision)
	}
}

func TestEscalateNeverDowngradesDeny(t *testing.T) {
	decision := Escalate(permission.Deny, Capability{Risk: RiskHigh}, false)
	if decision != permission.Deny {
		t.Fatalf("expected Deny to stay Deny regardless of capability, got %q", decision)
	}
}

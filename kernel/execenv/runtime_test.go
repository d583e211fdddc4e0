package execenv

import (
	"testing"

	"github.com/kestrelrun/agentkernel/kernel/permission"
)

func TestDecideRouteFullControlAlwaysAllows(t *testing.T) {
	rt, err := New(Config{PermissionMode: PermissionModeFullControl})
	if err != nil {
		t.Fatal(err)
	}
	decision := rt.DecideRoute("rm -rf /tmp/whatever")
	if decision.Permission != permission.Allow {
		t.Fatalf("expected Allow in full control, got %q", decision.Permission)
	}
}

func TestDecideRouteSafeCommandAllowedWithoutEngine(t *testing.T) {
	rt, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	decision := rt.DecideRoute("ls -la")
	if decision.Permission != permission.Allow {
		t.Fatalf("expected safe command to Allow, got %q", decision.Permission)
	}
}

func TestDecideRouteDefersToPermissionEngine(t *testing.T) {
	engine := permission.NewEngine()
	rt, err := New(Config{
		Permissions: engine,
		PermissionConfig: permission.Config{
			DeniedTools: []string{"bash"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	decision := rt.DecideRoute("curl https://example.com")
	if decision.Permission != permission.Deny {
		t.Fatalf("expected Deny from denied_tools, got %q", decision.Permission)
	}
	if decision.Reason == "" {
		t.Fatal("expected a reason to accompany a Deny decision")
	}
}

func TestDecideRouteAskWithoutEngineConfigured(t *testing.T) {
	rt, err := New(Config{})
	if err != nil {
		t.Fatal(err)
	}
	decision := rt.DecideRoute("curl https://example.com")
	if decision.Permission != permission.Ask {
		t.Fatalf("expected Ask absent a configured engine, got %q", decision.Permission)
	}
}

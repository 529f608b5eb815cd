package module

import (
	"testing"

	phttp "seochecker/internal/platform/net/http"
	kit "seochecker/internal/platform/testkit"
)

type runnerPort interface{ Active() []string }

type fakeRunner struct{ ids []string }

func (f fakeRunner) Active() []string { return f.ids }

type portSet struct {
	Runner runnerPort
	hidden runnerPort
}

type fakeModule struct {
	name  string
	ports any
}

func (f fakeModule) MountRoutes(phttp.Router) {}
func (f fakeModule) Ports() any               { return f.ports }
func (f fakeModule) Name() string             { return f.name }

func TestPortsOf(t *testing.T) {
	t.Parallel()
	m := fakeModule{name: "analysis", ports: portSet{Runner: fakeRunner{ids: []string{"a"}}}}

	set, ok := PortsOf[portSet](m)
	if !ok || set.Runner == nil {
		t.Fatalf("whole set: %v %v", set, ok)
	}
	r, ok := PortsOf[runnerPort](m)
	if !ok || len(r.Active()) != 1 {
		t.Fatalf("field lookup: %v %v", r, ok)
	}
	if _, ok := PortsOf[runnerPort](fakeModule{name: "meta"}); ok {
		t.Fatal("nil ports should not match")
	}
	if _, ok := PortsOf[runnerPort](fakeModule{name: "x", ports: portSet{hidden: fakeRunner{}}}); ok {
		t.Fatal("unexported and nil fields should not match")
	}
}

func TestMustPortsOf_PanicsWithModuleName(t *testing.T) {
	t.Parallel()
	kit.MustPanic(t, func() { MustPortsOf[runnerPort](fakeModule{name: "meta", ports: 3}) })
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	Register("registry-test", portSet{Runner: fakeRunner{}})
	if _, ok := Lookup[portSet]("registry-test"); !ok {
		t.Fatal("registered set not found")
	}
	if _, ok := Lookup[int]("registry-test"); ok {
		t.Fatal("wrong type should not match")
	}
	if _, ok := Lookup[portSet]("missing"); ok {
		t.Fatal("missing name should not match")
	}
}

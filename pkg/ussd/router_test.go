package ussd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voicetyped/ussdmenu/pkg/events"
)

func TestRoute(t *testing.T) {
	withDefault := RouteTable{"100": "demo", DefaultRoute: "fallback"}
	noDefault := RouteTable{"100": "demo"}

	tests := []struct {
		name    string
		table   RouteTable
		text    string
		want    string
		wantErr error
	}{
		{"exact code", withDefault, "*100#", "demo", nil},
		{"code with tail", withDefault, "*100*5#", "demo", nil},
		{"unknown code uses default", withDefault, "*200#", "fallback", nil},
		{"unknown code without default", noDefault, "*200#", NoopHandlerID, nil},
		{"no code uses default", withDefault, "hello", "fallback", nil},
		{"no code without default", noDefault, "hello", "", ErrNoRoute},
		{"empty text without default", RouteTable{}, "", "", ErrNoRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Route(tt.table, tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Route: %v", err)
			}
			if got != tt.want {
				t.Errorf("Route = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDialCode(t *testing.T) {
	if code, ok := DialCode("*123*4#"); !ok || code != "123" {
		t.Errorf("DialCode = %q, %v", code, ok)
	}
	if _, ok := DialCode("123#"); ok {
		t.Error("expected no dial code without leading '*'")
	}
}

func TestStripDialCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"*999*100#", "*100#", true},
		{"*999#", "*999#", false},
		{"hello", "hello", false},
	}
	for _, tt := range tests {
		got, ok := stripDialCode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("stripDialCode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRouteLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte("\"100\": demo\ndefault: demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewRouteLoader(path)
	table, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table["100"] != "demo" || table[DefaultRoute] != "demo" {
		t.Errorf("table = %v", table)
	}

	table["100"] = "mutated"
	if l.Table()["100"] != "demo" {
		t.Error("Table must return a snapshot")
	}
}

func TestRouteLoaderRejectsBadCode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte("\"abc\": demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRouteLoader(path).Load(); err == nil {
		t.Fatal("expected error for non-numeric code")
	}
}

func TestRouteLoaderWatchAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte("\"100\": one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewRouteLoader(path)
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		_ = l.WatchAndReload(done, nil)
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("\"100\": two\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if l.Table()["100"] == "two" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("route not reloaded, table = %v", l.Table())
}

func TestStaticRoutes(t *testing.T) {
	src := RouteTable{"1": "a"}
	l := NewStaticRoutes(src)
	src["1"] = "b"
	if l.Table()["1"] != "a" {
		t.Error("static routes must copy the input table")
	}
}

func TestRouteLoaderEmitsReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte("\"101\": voucher\ndefault: demo\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	pub := events.NewPublisher(nil, "ussd", "")
	ch := pub.Subscribe("test", 4)
	defer pub.Unsubscribe("test")

	if _, err := NewRouteLoader(path).WithPublisher(pub).Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	select {
	case env := <-ch:
		if env.Type != events.RoutesReloaded {
			t.Errorf("type = %q", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no routes.reloaded event")
	}
}

func TestRouteLoaderFallbackUntilLoaded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	if err := os.WriteFile(path, []byte("\"abc\": broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewRouteLoader(path).WithFallback(RouteTable{DefaultRoute: "demo"})
	if _, err := l.Load(); err == nil {
		t.Fatal("expected load error")
	}
	if got := l.Table()[DefaultRoute]; got != "demo" {
		t.Fatalf("default = %q, want fallback", got)
	}

	e := NewEngine(nil, l, nil, nil, EngineConfig{})
	if err := os.WriteFile(path, []byte("default: info\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := e.Routes()[DefaultRoute]; got != "info" {
		t.Errorf("engine default = %q, want reloaded table", got)
	}

	if err := os.WriteFile(path, []byte("\"abc\": broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Load(); err == nil {
		t.Fatal("expected load error")
	}
	if got := e.Routes()[DefaultRoute]; got != "info" {
		t.Errorf("failed reload replaced table, default = %q", got)
	}
}

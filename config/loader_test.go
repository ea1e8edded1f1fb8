package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
client_timeout_secs = 30
client_max_body_size = 1048576

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
server_name = "example.com"
root = "/var/www"

[servers.routes."/"]
methods = ["GET", "HEAD"]
directory_listing = true
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(f.Servers))
	}
	if f.Servers[0].ServerName != "example.com" {
		t.Errorf("server_name = %q", f.Servers[0].ServerName)
	}
}

func TestLoadDropsInvalidServerKeepsValid(t *testing.T) {
	path := writeTempConfig(t, `
client_timeout_secs = 30
client_max_body_size = 1048576

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
root = "/var/www/a"

[[servers]]
server_address = ""
ports = [8081]
root = "/var/www/b"
`)

	f, err := Load(path)
	if err == nil {
		t.Fatal("expected a multierror for the invalid block, got nil")
	}
	if len(f.Servers) != 1 {
		t.Fatalf("expected 1 surviving server, got %d", len(f.Servers))
	}
	if f.Servers[0].Root != "/var/www/a" {
		t.Errorf("kept the wrong server: root = %q", f.Servers[0].Root)
	}
}

func TestLoadDuplicateAddressPortServerNameRejected(t *testing.T) {
	path := writeTempConfig(t, `
client_timeout_secs = 30
client_max_body_size = 1048576

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
server_name = "a.example.com"
root = "/var/www/a"

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
server_name = "a.example.com"
root = "/var/www/b"
`)

	f, err := Load(path)
	if err == nil {
		t.Fatal("expected duplicate rejection error")
	}
	if len(f.Servers) != 1 {
		t.Fatalf("expected exactly one surviving server, got %d", len(f.Servers))
	}
}

func TestLoadSameAddressPortDifferentServerNameAllowed(t *testing.T) {
	path := writeTempConfig(t, `
client_timeout_secs = 30
client_max_body_size = 1048576

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
server_name = "a.example.com"
root = "/var/www/a"

[[servers]]
server_address = "0.0.0.0"
ports = [8080]
server_name = "b.example.com"
root = "/var/www/b"
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Servers) != 2 {
		t.Fatalf("expected 2 servers sharing a port under different names, got %d", len(f.Servers))
	}
}

func TestLoadAppliesDefaultsForOmittedClientLimits(t *testing.T) {
	path := writeTempConfig(t, `
[[servers]]
server_address = "0.0.0.0"
ports = [8080]
root = "/var/www"
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.ClientTimeoutSecs != DefaultClientTimeoutSecs {
		t.Errorf("ClientTimeoutSecs = %d, want default %d", f.ClientTimeoutSecs, DefaultClientTimeoutSecs)
	}
	if f.ClientMaxBodySize != DefaultClientMaxBodySize {
		t.Errorf("ClientMaxBodySize = %d, want default %d", f.ClientMaxBodySize, DefaultClientMaxBodySize)
	}
}

func TestLoadNoServersIsFatal(t *testing.T) {
	path := writeTempConfig(t, `
client_timeout_secs = 30
client_max_body_size = 1048576
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when no servers are configured")
	}
}

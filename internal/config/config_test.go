package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Name != "NexusGo" {
		t.Fatalf("server name: %q", cfg.Server.Name)
	}
	if cfg.Network.WriteTimeout != 10*time.Second {
		t.Fatalf("write timeout: %v", cfg.Network.WriteTimeout)
	}
	if cfg.Server.StartTime == 0 {
		t.Fatal("start time not stamped")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.toml")
	body := `
[server]
name = "測試伺服器"

[database]
conn_max_lifetime = "5m"

[world]
starting_zones = [1, 2, 9]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Name != "測試伺服器" {
		t.Fatalf("name not overridden: %q", cfg.Server.Name)
	}
	if cfg.Database.ConnMaxLifetime != 5*time.Minute {
		t.Fatalf("duration string not decoded: %v", cfg.Database.ConnMaxLifetime)
	}
	if len(cfg.World.StartingZones) != 3 {
		t.Fatalf("starting zones: %v", cfg.World.StartingZones)
	}
	// Sections absent from the file keep their defaults.
	if cfg.Network.InQueueSize != 128 {
		t.Fatalf("untouched default lost: %d", cfg.Network.InQueueSize)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(path, []byte("[server]\nrealm_id = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvConfigPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.RealmID != 7 {
		t.Fatalf("realm id: %d", cfg.Server.RealmID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

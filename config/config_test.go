package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("HOME", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatal(diff)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "sage.yaml")
	err := os.WriteFile(filename, []byte(`
kb:
  dir: /srv/kbs
http:
  listen: ":9090"
storage:
  kind: sqlite
sweep:
  idle: 5m
`), 0644)
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAGE_HTTP_MAX_CONNS", "7")
	t.Setenv("SAGE_LOG_LEVEL", "debug")

	cfg, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.KB.Dir != "/srv/kbs" || cfg.KB.Default != "rpg" {
		t.Fatal(cfg.KB)
	}
	if cfg.HTTP.Listen != ":9090" || cfg.HTTP.MaxConns != 7 {
		t.Fatal(cfg.HTTP)
	}
	if cfg.Storage.Kind != "sqlite" {
		t.Fatal(cfg.Storage)
	}
	if cfg.Sweep.Idle != 5*time.Minute {
		t.Fatal(cfg.Sweep.Idle)
	}
	if cfg.Log.Level != "debug" {
		t.Fatal(cfg.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Kind = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error")
	}
	cfg = Default()
	cfg.MQTT.QoS = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSaveLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "conf", "sage.yaml")
	cfg := Default()
	cfg.Storage.Kind = "bolt"
	cfg.Sweep.Idle = 90 * time.Second
	cfg.Text.Path = "strings.json"
	if err := cfg.Save(filename); err != nil {
		t.Fatal(err)
	}
	got, err := Load(filename)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Fatal(diff)
	}
}

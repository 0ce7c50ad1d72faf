package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NOTIFAI_HOME", home)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HomeDir != home {
		t.Errorf("home = %q, want %q", cfg.HomeDir, home)
	}
	if cfg.Data.Database != filepath.Join(home, "notifai.db") {
		t.Errorf("database = %q", cfg.Data.Database)
	}
	if cfg.Device.Region != "US" || cfg.Device.CountryCode != 1 {
		t.Errorf("device defaults = %+v", cfg.Device)
	}
	if cfg.Ingest.JobName != "sms-ingest" || cfg.Ingest.BatchSize != 100 || cfg.Ingest.MaxRetries != 3 {
		t.Errorf("ingest defaults = %+v", cfg.Ingest)
	}
	if cfg.Contacts.Duration() != 2*time.Second {
		t.Errorf("debounce = %v, want 2s", cfg.Contacts.Duration())
	}
	if cfg.Server.APIPort != 8080 {
		t.Errorf("api port = %d, want 8080", cfg.Server.APIPort)
	}
}

func TestLoadFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NOTIFAI_HOME", home)

	content := `
[data]
data_dir = "` + home + `"

[device]
source_path = "/exports/sms.db"
region = "IN"
country_code = 91

[ingest]
job_name = "nightly"
batch_size = 250
max_retries = 5

[contacts]
vcard_path = "/exports/contacts.vcf"
debounce = "500ms"

[server]
api_port = 9090

[[jobs]]
name = "nightly"
schedule = "0 2 * * *"
enabled = true

[[jobs]]
name = "disabled"
schedule = "* * * * *"
enabled = false
`
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Device.Region != "IN" || cfg.Device.CountryCode != 91 {
		t.Errorf("device = %+v", cfg.Device)
	}
	if cfg.Ingest.JobName != "nightly" || cfg.Ingest.BatchSize != 250 || cfg.Ingest.MaxRetries != 5 {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Contacts.Duration() != 500*time.Millisecond {
		t.Errorf("debounce = %v, want 500ms", cfg.Contacts.Duration())
	}
	if cfg.Server.APIPort != 9090 {
		t.Errorf("api port = %d", cfg.Server.APIPort)
	}

	scheduled := cfg.ScheduledJobs()
	want := []JobSchedule{{Name: "nightly", Schedule: "0 2 * * *", Enabled: true}}
	if diff := cmp.Diff(want, scheduled); diff != "" {
		t.Errorf("scheduled jobs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("NOTIFAI_HOME", home)

	cfg, err := Load(filepath.Join(home, "nope.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ingest.JobName != "sms-ingest" {
		t.Errorf("defaults not applied: %+v", cfg.Ingest)
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := expandPath("~/x.db"); got != filepath.Join(homeDir, "x.db") {
		t.Errorf("expandPath(~/x.db) = %q", got)
	}
	if got := expandPath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("expandPath(/abs/x.db) = %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath(\"\") = %q", got)
	}
}

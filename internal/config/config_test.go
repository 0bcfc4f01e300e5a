package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Validate ---

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestValidate_SendModes(t *testing.T) {
	for _, mode := range []string{SendModeReportOnly, SendModeLive} {
		cfg := Defaults()
		cfg.Triage.SendMode = mode
		if err := Validate(cfg); err != nil {
			t.Fatalf("sendMode %q should be valid: %v", mode, err)
		}
	}

	for _, mode := range []string{"", "send", "LIVE", "dry-run"} {
		cfg := Defaults()
		cfg.Triage.SendMode = mode
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for sendMode %q", mode)
		}
	}
}

func TestValidate_BodyLimit(t *testing.T) {
	cfg := Defaults()
	cfg.Triage.BodyLimit = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for bodyLimit=0")
	}

	cfg.Triage.BodyLimit = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("bodyLimit=1 should be valid: %v", err)
	}
}

func TestValidate_CompletionBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Triage.Classify.MaxTokens = 0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for classify.maxTokens=0")
	}

	cfg = Defaults()
	cfg.Triage.Draft.Temperature = 2.5
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for draft.temperature=2.5")
	}
}

func TestValidate_MaxResults_Boundary(t *testing.T) {
	cfg := Defaults()

	cfg.Gmail.MaxResults = 1
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxResults=1 should be valid: %v", err)
	}
	cfg.Gmail.MaxResults = 500
	if err := Validate(cfg); err != nil {
		t.Fatalf("maxResults=500 should be valid: %v", err)
	}
	cfg.Gmail.MaxResults = 501
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for maxResults=501")
	}
}

func TestValidate_UnknownProviders(t *testing.T) {
	cfg := Defaults()
	cfg.General.DefaultProvider = "nope"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unknown default provider")
	}

	cfg = Defaults()
	cfg.General.FailoverChain = []string{"openai", "missing"}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected failover chain error naming 'missing', got %v", err)
	}
}

// --- Load / Save ---

func TestLoadSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	original := Defaults()
	original.Triage.SendMode = SendModeLive
	original.Gmail.Query = "is:unread in:inbox"

	if err := Save(path, original); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Triage.SendMode != SendModeLive {
		t.Fatalf("expected sendMode live, got %q", loaded.Triage.SendMode)
	}
	if loaded.Gmail.Query != "is:unread in:inbox" {
		t.Fatalf("expected query to survive round trip, got %q", loaded.Gmail.Query)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"triage": {"sendMode": "live"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Triage.BodyLimit != 1000 {
		t.Fatalf("expected default bodyLimit 1000, got %d", cfg.Triage.BodyLimit)
	}
	if cfg.Triage.Classify.MaxTokens != 10 || cfg.Triage.Draft.MaxTokens != 150 {
		t.Fatalf("expected default token ceilings, got %+v", cfg.Triage)
	}
}

func TestLoad_InvalidSendModeRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"triage": {"sendMode": "yolo"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TRIAGE_TEST_KEY", "sk-test-123")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"providers": {"openai": {"enabled": true, "apiKey": "${TRIAGE_TEST_KEY}"}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Providers["openai"].APIKey; got != "sk-test-123" {
		t.Fatalf("expected expanded key, got %q", got)
	}
}

func TestLoadOrDefaults_MissingFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	cfg, found, err := LoadOrDefaults(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected found=false for a missing file")
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Fatalf("expected defaults to be env-expanded, got %q", cfg.Providers["openai"].APIKey)
	}
}

func TestLoadOrDefaults_BrokenFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadOrDefaults(path); err == nil {
		t.Fatal("expected parse error to surface")
	}
}

// --- ExpandEnvVars ---

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TRIAGE_SET", "value")

	cases := map[string]string{
		"${TRIAGE_SET}":              "value",
		"${TRIAGE_UNSET_XYZ:-dflt}":  "dflt",
		"${TRIAGE_UNSET_XYZ}":        "${TRIAGE_UNSET_XYZ}",
		"prefix-${TRIAGE_SET}-tail":  "prefix-value-tail",
		"no vars here":               "no vars here",
	}
	for in, want := range cases {
		if got := ExpandEnvVars(in); got != want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", in, got, want)
		}
	}
}

// --- Accessor ---

func TestGetSetByPath(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "triage.sendMode", "live"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Triage.SendMode != SendModeLive {
		t.Fatalf("expected live, got %q", cfg.Triage.SendMode)
	}

	if err := SetByPath(cfg, "triage.bodyLimit", "500"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if cfg.Triage.BodyLimit != 500 {
		t.Fatalf("expected 500, got %d", cfg.Triage.BodyLimit)
	}

	val, err := GetByPath(cfg, "gmail.query")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "is:unread" {
		t.Fatalf("expected is:unread, got %v", val)
	}

	if _, err := GetByPath(cfg, "gmail.nope"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSetByPath_ConvertsToFieldType(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "gmail.query", "12345"); err != nil {
		t.Fatalf("numeric-looking text into a string field: %v", err)
	}
	if cfg.Gmail.Query != "12345" {
		t.Fatalf("expected query 12345, got %q", cfg.Gmail.Query)
	}
	if err := SetByPath(cfg, "triage.recursiveParts", "true"); err != nil || !cfg.Triage.RecursiveParts {
		t.Fatalf("bool field: err=%v value=%v", err, cfg.Triage.RecursiveParts)
	}
	if err := SetByPath(cfg, "triage.bodyLimit", "lots"); err == nil {
		t.Fatal("expected error for non-numeric bodyLimit")
	}
	if err := SetByPath(cfg, "triage.recursiveParts", "maybe"); err == nil {
		t.Fatal("expected error for non-boolean recursiveParts")
	}
	if err := SetByPath(cfg, "general.failoverChain", "openai, claude"); err != nil {
		t.Fatalf("list field: %v", err)
	}
	if got := cfg.General.FailoverChain; len(got) != 2 || got[0] != "openai" || got[1] != "claude" {
		t.Fatalf("failoverChain = %v", got)
	}
}

func TestSetByPath_UnknownKeys(t *testing.T) {
	cfg := Defaults()
	for _, path := range []string{"gmail.querry", "nosuch.key", "providers.openai.nope", "gmail"} {
		if err := SetByPath(cfg, path, "x"); err == nil {
			t.Errorf("expected error for %q", path)
		}
	}
	if cfg.Gmail.Query != Defaults().Gmail.Query {
		t.Fatal("failed set must not modify the config")
	}
}

func TestSetByPath_NewProvider(t *testing.T) {
	cfg := Defaults()
	if err := SetByPath(cfg, "providers.groq.apiKey", "gsk-abc"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetByPath(cfg, "providers.groq.timeoutSeconds", "30"); err != nil {
		t.Fatalf("set: %v", err)
	}
	pc := cfg.Providers["groq"]
	if pc.APIKey != "gsk-abc" || pc.TimeoutSeconds != 30 {
		t.Fatalf("unexpected provider config: %+v", pc)
	}
	if err := SetByPath(cfg, "general.logFile", "/tmp/triage.log"); err != nil || cfg.General.LogFile != "/tmp/triage.log" {
		t.Fatalf("omitted field: err=%v value=%q", err, cfg.General.LogFile)
	}
}

func TestListPaths(t *testing.T) {
	paths := ListPaths(Defaults())
	if paths["triage.sendMode"] != SendModeReportOnly {
		t.Fatalf("triage.sendMode = %v", paths["triage.sendMode"])
	}
	if _, ok := paths["gmail"]; ok {
		t.Fatal("sections should be flattened")
	}
}

func TestSanitize_MasksKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Providers["openai"] = ProviderConfig{Enabled: true, APIKey: "sk-1234567890abcdef"}
	cfg.Providers["claude"] = ProviderConfig{Enabled: true, APIKey: "${ANTHROPIC_API_KEY}"}

	out := Sanitize(cfg)
	if got := out.Providers["openai"].APIKey; got != "sk-1****cdef" {
		t.Fatalf("expected masked key, got %q", got)
	}
	if got := out.Providers["claude"].APIKey; got != "${ANTHROPIC_API_KEY}" {
		t.Fatalf("expected env reference left visible, got %q", got)
	}
	if cfg.Providers["openai"].APIKey != "sk-1234567890abcdef" {
		t.Fatal("Sanitize must not modify the original")
	}
}

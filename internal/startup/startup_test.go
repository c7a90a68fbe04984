package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"vidshare/internal/logging"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Errorf("Expected OS/Arch to be set, got %q/%q", info.OS, info.Arch)
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{"Returns default when env var not set", "TEST_UNSET_VAR", "default", "", "default", false},
		{"Returns env value when set", "TEST_SET_VAR", "default", "custom", "custom", true},
		{"Returns default when env var is empty", "TEST_EMPTY_VAR", "default", "", "default", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}
			if got := getEnv(tt.key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"unset keeps default true", "", true, true},
		{"unset keeps default false", "", false, false},
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"one", "1", false, true},
		{"zero", "0", true, false},
		{"garbage keeps default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt64(t *testing.T) {
	tests := []struct {
		envValue string
		want     int64
	}{
		{"", 42},
		{"1048576", 1048576},
		{"-5", 42},
		{"0", 42},
		{"big", 42},
	}

	for _, tt := range tests {
		t.Setenv("TEST_INT", tt.envValue)
		if got := getEnvInt64("TEST_INT", 42); got != tt.want {
			t.Errorf("getEnvInt64(%q) = %d, want %d", tt.envValue, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		envValue string
		want     time.Duration
	}{
		{"", time.Second},
		{"90s", 90 * time.Second},
		{"0", 0},
		{"-1s", time.Second},
		{"soon", time.Second},
	}

	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.envValue)
		if got := getEnvDuration("TEST_DURATION", time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.envValue, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{2 << 30, "2.0 GiB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")
	for _, key := range []string{"PORT", "MEDIA_DIR", "METADATA_BACKEND", "METADATA_PATH", "PUBLIC_BASE_URL", "PLACEHOLDER_IMAGE", "PROGRESS_INTERVAL"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATA_DIR", dataDir)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.PublicBaseURL != "http://localhost:3000" {
		t.Errorf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.MediaDir != filepath.Join(dataDir, "media") {
		t.Errorf("MediaDir = %q", cfg.MediaDir)
	}
	if cfg.MetadataBackend != BackendJSON || cfg.MetadataPath != filepath.Join(dataDir, "metadata.json") {
		t.Errorf("metadata = %s at %s", cfg.MetadataBackend, cfg.MetadataPath)
	}
	if cfg.ProgressInterval != 750*time.Millisecond {
		t.Errorf("ProgressInterval = %v", cfg.ProgressInterval)
	}
	if cfg.TranscodeWorkers < 1 {
		t.Errorf("TranscodeWorkers = %d", cfg.TranscodeWorkers)
	}
	if info, err := os.Stat(cfg.MediaDir); err != nil || !info.IsDir() {
		t.Errorf("media directory not created: %v", err)
	}
}

func TestLoadConfigSQLiteAndOverrides(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("METADATA_BACKEND", "SQLite")
	t.Setenv("METADATA_PATH", "")
	t.Setenv("PORT", "8088")
	t.Setenv("PUBLIC_BASE_URL", "https://v.example.com/")
	t.Setenv("TRANSCODE_TIMEOUT", "10m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MetadataBackend != BackendSQLite || cfg.MetadataPath != filepath.Join(dataDir, "metadata.db") {
		t.Errorf("metadata = %s at %s", cfg.MetadataBackend, cfg.MetadataPath)
	}
	if cfg.PublicBaseURL != "https://v.example.com" {
		t.Errorf("PublicBaseURL = %q, want trailing slash trimmed", cfg.PublicBaseURL)
	}
	if cfg.TranscodeTimeout != 10*time.Minute {
		t.Errorf("TranscodeTimeout = %v", cfg.TranscodeTimeout)
	}
}

func TestLoadConfigUnwritableMediaDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", dir)
	t.Setenv("MEDIA_DIR", filepath.Join(blocker, "media"))

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error when media directory cannot be created")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VIDSHARE_TEST_DOTENV=from-file\nVIDSHARE_TEST_PRESET=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VIDSHARE_TEST_DOTENV", "")
	os.Unsetenv("VIDSHARE_TEST_DOTENV")
	t.Setenv("VIDSHARE_TEST_PRESET", "from-env")

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("VIDSHARE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("VIDSHARE_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("VIDSHARE_TEST_PRESET"); got != "from-env" {
		t.Errorf("existing variable overwritten: %q", got)
	}
}

func TestLoadDotEnvAppliesLogLevel(t *testing.T) {
	prev := logging.GetLevel()
	defer logging.SetLevel(prev)
	logging.SetLevel(logging.LevelInfo)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=warn\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")
	t.Setenv("DEBUG", "")

	LoadDotEnv(path)
	if got := logging.GetLevel(); got != logging.LevelWarn {
		t.Errorf("level after .env = %v, want %v", got, logging.LevelWarn)
	}

	t.Setenv("DEBUG", "true")
	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	if got := logging.GetLevel(); got != logging.LevelDebug {
		t.Errorf("level with DEBUG = %v, want %v", got, logging.LevelDebug)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	router.HandleFunc("/v/{id}", noop).Methods(http.MethodGet, http.MethodHead).Name("view")
	router.HandleFunc("/upload", noop).Methods(http.MethodPost)

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes: %v", err)
	}
	if len(routes) != 3 {
		t.Fatalf("got %d routes, want 3: %+v", len(routes), routes)
	}
	if routes[0].Path != "/v/{id}" || routes[0].Name != "view" {
		t.Errorf("first route = %+v", routes[0])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/v/{id}":         "v",
		"/upload":         "upload",
		"/":               "",
		"/transcode/{id}": "transcode",
	}
	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

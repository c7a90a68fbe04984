package startup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"vidshare/internal/logging"
	"vidshare/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Metadata backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	DataDir          string
	MediaDir         string
	MetadataBackend  string
	MetadataPath     string
	PlaceholderImage string
	PublicBaseURL    string

	MaxUploadBytes   int64
	TranscodeWorkers int
	TranscodeTimeout time.Duration
	ProgressInterval time.Duration
	ResumePending    bool
	FFmpegPath       string
	FFprobePath      string
	WebhookTimeout   time.Duration
}

// LoadDotEnv loads a .env file into the environment when present. Variables
// already set take precedence.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.Warn("Could not load %s: %v", p, err)
			}
			continue
		}
		logging.Debug("Loaded environment from %s", p)
	}
	applyLogLevel()
}

// applyLogLevel re-reads LOG_LEVEL and DEBUG, which a .env file may have
// set after the logger first resolved its level. DEBUG wins.
func applyLogLevel() {
	if name := os.Getenv("LOG_LEVEL"); name != "" {
		if level, ok := logging.ParseLevel(name); ok {
			logging.SetLevel(level)
		} else {
			logging.Warn("Invalid LOG_LEVEL %q, keeping %s", name, logging.GetLevel())
		}
	}
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		logging.SetLevel(logging.LevelDebug)
	}
}

// LoadConfig loads and validates configuration from environment variables.
// Directory creation failures are returned; callers treat them as fatal.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	port := getEnv("PORT", "3000")
	dataDir := getEnv("DATA_DIR", "./data")
	backend := strings.ToLower(getEnv("METADATA_BACKEND", BackendJSON))
	if backend != BackendJSON && backend != BackendSQLite {
		logging.Warn("  Invalid METADATA_BACKEND %q, using default: %s", backend, BackendJSON)
		backend = BackendJSON
	}

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	defaultMetadata := filepath.Join(dataDir, "metadata.json")
	if backend == BackendSQLite {
		defaultMetadata = filepath.Join(dataDir, "metadata.db")
	}

	config := &Config{
		Port:             port,
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		DataDir:          dataDir,
		MediaDir:         getEnv("MEDIA_DIR", filepath.Join(dataDir, "media")),
		MetadataBackend:  backend,
		MetadataPath:     getEnv("METADATA_PATH", defaultMetadata),
		PlaceholderImage: getEnv("PLACEHOLDER_IMAGE", filepath.Join(dataDir, "placeholder.png")),
		PublicBaseURL:    strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", 2<<30),
		TranscodeWorkers: workers.ForEncoders(0),
		TranscodeTimeout: getEnvDuration("TRANSCODE_TIMEOUT", 0),
		ProgressInterval: getEnvDuration("PROGRESS_INTERVAL", 750*time.Millisecond),
		ResumePending:    getEnvBool("RESUME_PENDING", true),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		WebhookTimeout:   getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}
	if config.ProgressInterval <= 0 {
		logging.Warn("  PROGRESS_INTERVAL must be positive, using default: 750ms")
		config.ProgressInterval = 750 * time.Millisecond
	}

	logging.Info("  PORT:               %s", config.Port)
	logging.Info("  PUBLIC_BASE_URL:    %s", config.PublicBaseURL)
	logging.Info("  DATA_DIR:           %s", config.DataDir)
	logging.Info("  MEDIA_DIR:          %s", config.MediaDir)
	logging.Info("  METADATA_BACKEND:   %s", config.MetadataBackend)
	logging.Info("  METADATA_PATH:      %s", config.MetadataPath)
	logging.Info("  PLACEHOLDER_IMAGE:  %s", config.PlaceholderImage)
	logging.Info("  MAX_UPLOAD_BYTES:   %s", formatBytes(config.MaxUploadBytes))
	logging.Info("  TRANSCODE_WORKERS:  %d", config.TranscodeWorkers)
	logging.Info("  TRANSCODE_TIMEOUT:  %s", durationOrNone(config.TranscodeTimeout))
	logging.Info("  PROGRESS_INTERVAL:  %s", config.ProgressInterval)
	logging.Info("  RESUME_PENDING:     %v", config.ResumePending)
	logging.Info("  METRICS_PORT:       %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:    %v", config.MetricsEnabled)
	logging.Info("  LOG_HEALTH_CHECKS:  %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:          %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := ensureDirectory(config.MediaDir, "media"); err != nil {
		return nil, fmt.Errorf("media directory error: %w", err)
	}
	if err := testWriteAccess(config.MediaDir); err != nil {
		return nil, fmt.Errorf("media directory is not writable: %w", err)
	}
	logging.Info("  [OK] Media directory is writable")

	metaDir := filepath.Dir(config.MetadataPath)
	if err := ensureDirectory(metaDir, "metadata"); err != nil {
		return nil, fmt.Errorf("metadata directory error: %w", err)
	}
	if err := testWriteAccess(metaDir); err != nil {
		return nil, fmt.Errorf("metadata directory is not writable: %w", err)
	}
	logging.Info("  [OK] Metadata directory is writable")

	return config, nil
}

// LogRegistryInit logs metadata registry initialization
func LogRegistryInit(backend string, records int, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("METADATA REGISTRY")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Backend:  %s", backend)
	logging.Info("  Records:  %d", records)
	logging.Info("  [OK] Registry ready in %v", duration)
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg.
// A missing encoder is not fatal: playable uploads still work.
func LogTranscoderInit(ffmpegPath, ffprobePath string, workers int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Encoder slots: %d", workers)

	for _, bin := range []string{ffmpegPath, ffprobePath} {
		if err := checkBinary(bin); err != nil {
			logging.Warn("  %s check failed: %v", bin, err)
			logging.Warn("  Uploads needing conversion will fail")
			continue
		}
		logging.Info("  [OK] %s is available", bin)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	first, _, _ := strings.Cut(path, "/")
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	PublicBaseURL   string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	logging.Info("    Public URL:    %s", config.PublicBaseURL)
	logging.Info("    Status socket: %s/ws", config.PublicBaseURL)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
        _     __     __
 _   __(_)___/ /____/ /_  ____ _________
| | / / / __  / ___/ __ \/ __ '/ ___/ _ \
| |/ / / /_/ (__  ) / / / /_/ / /  /  __/
|___/_/\__,_/____/_/ /_/\__,_/_/   \___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkBinary(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(first))
	}
	return nil
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

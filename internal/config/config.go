// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTP     HTTPConfig
	Jobs     JobsConfig
	Catalog  CatalogConfig
	Renderer RendererConfig
	Storage  StorageConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port          string
	PublicBaseURL string
}

type JobsConfig struct {
	// DataRoot is the directory all job state lives under ({DataRoot}/jobs/{id}).
	DataRoot string
	// LibraryRoot holds pre-provisioned fallback assets keyed by product
	// identifier ({LibraryRoot}/{id}/audio.mp3, {LibraryRoot}/{id}/captions.srt).
	LibraryRoot string
}

type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RendererConfig struct {
	// Command is the renderer invocation split into argv, e.g.
	// ["python3", "scripts/render_video.py"]. Job-specific flags are appended.
	Command []string
	// AssetsDir is the shared asset directory (backgrounds, fonts) passed to
	// every render.
	AssetsDir string
}

type StorageConfig struct {
	// Provider selects the artifact mirror: "none", "localfs" or "gdrive".
	Provider  string
	LocalRoot string
	GDrive    GDriveConfig
}

type GDriveConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string
}

type LogConfig struct {
	Level  string
	Format string
	Source bool
}

func Load() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:          env("HTTP_PORT", "8080"),
			PublicBaseURL: env("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Jobs: JobsConfig{
			DataRoot:    env("DATA_ROOT", "./data"),
			LibraryRoot: env("MEDIA_LIBRARY_ROOT", "./library"),
		},
		Catalog: CatalogConfig{
			BaseURL: env("CATALOG_BASE_URL", ""),
			Timeout: envDuration("CATALOG_TIMEOUT", 30*time.Second),
		},
		Renderer: RendererConfig{
			Command:   envArgv("RENDERER_CMD", []string{"python3", "scripts/render_video.py"}),
			AssetsDir: env("RENDERER_ASSETS_DIR", "./assets"),
		},
		Storage: StorageConfig{
			Provider:  env("STORAGE_PROVIDER", "none"),
			LocalRoot: env("STORAGE_LOCAL_ROOT", ""),
			GDrive: GDriveConfig{
				ClientID:     env("GDRIVE_CLIENT_ID", ""),
				ClientSecret: env("GDRIVE_CLIENT_SECRET", ""),
				RefreshToken: env("GDRIVE_REFRESH_TOKEN", ""),
				FolderID:     env("GDRIVE_FOLDER_ID", ""),
			},
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "json"),
			Source: env("LOG_SOURCE", "false") == "true",
		},
	}
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envArgv(key string, fallback []string) []string {
	v := env(key, "")
	if v == "" {
		return fallback
	}
	argv := strings.Fields(v)
	if len(argv) == 0 {
		return fallback
	}
	return argv
}

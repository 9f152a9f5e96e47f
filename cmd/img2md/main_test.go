package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nadmax/img2md/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IMG2MD_BACKEND", "IMG2MD_API_KEY", "IMG2MD_MODEL", "IMG2MD_BASE_URL", "IMG2MD_INPUT_DIR",
		"IMG2MD_OUTPUT_DIR", "IMG2MD_OUTPUT_SUFFIX", "IMG2MD_REASONING_EFFORT", "IMG2MD_PROMPT_PATH",
		"IMG2MD_LOG_LEVEL", "IMG2MD_METRICS_FILE", "IMG2MD_REPORT_DIR", "IMG2MD_REPORT_FORMAT",
		"IMG2MD_SENDGRID_API_KEY", "IMG2MD_CONCURRENCY", "IMG2MD_TIMEOUT", "IMG2MD_TEMPERATURE",
		"IMG2MD_MAX_OUTPUT_TOKENS", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "MISTRAL_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

func imageDir(t *testing.T, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_MockConvertsAll(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{
		"chart.png":   {0x89, 'P', 'N', 'G'},
		"photo.JPG":   {0xff, 0xd8, 0xff},
		"notes.txt":   []byte("skip me"),
		"scan.jpeg":   {0xff, 0xd8, 0xff},
		"drawing.gif": {'G', 'I', 'F'},
	})

	code, stdout, _ := runCLI(t, "-mock", "-dir", dir, "-out", "vystupy", "-suffix", "_popis")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Found 4 images")
	assert.Contains(t, stdout, "Successful conversions: 4")
	assert.Contains(t, stdout, "Failed conversions:     0")
	assert.Contains(t, stdout, "Output location: "+filepath.Join(dir, "vystupy"))

	data, err := os.ReadFile(filepath.Join(dir, "vystupy", "chart_popis.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "image/png")
	assert.FileExists(t, filepath.Join(dir, "vystupy", "photo_popis.md"))
	assert.FileExists(t, filepath.Join(dir, "vystupy", "drawing_popis.md"))
	assert.NoFileExists(t, filepath.Join(dir, "vystupy", "notes_popis.md"))
}

func TestRun_ArtifactsBesideSource(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{"photo.jpg": {0xff, 0xd8}})

	code, _, _ := runCLI(t, "-mock", "-dir", dir)

	assert.Equal(t, exitOK, code)
	assert.FileExists(t, filepath.Join(dir, "photo.md"))
}

func TestRun_FailureSetsExitStatus(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{
		"good.jpg":  {0xff, 0xd8},
		"empty.jpg": nil,
	})

	code, stdout, stderr := runCLI(t, "-mock", "-dir", dir)

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "Successful conversions: 1")
	assert.Contains(t, stdout, "Failed conversions:     1")
	assert.Contains(t, stdout, "empty.jpg (io_error)")
	assert.Contains(t, stderr, "file=empty.jpg")
	assert.FileExists(t, filepath.Join(dir, "good.md"))
	assert.NoFileExists(t, filepath.Join(dir, "empty.md"))
}

func TestRun_NoImages(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{"readme.txt": []byte("x")})

	code, stdout, _ := runCLI(t, "-mock", "-dir", dir)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "No images found")
}

func TestRun_DryRun(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{"a.png": {1}, "b.jpg": {2}})

	code, stdout, _ := runCLI(t, "-mock", "-dry-run", "-dir", dir, "-suffix", "_popis")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Found 2 images")
	assert.Contains(t, stdout, "a.png -> "+filepath.Join(dir, "a_popis.md"))
	assert.NoFileExists(t, filepath.Join(dir, "a_popis.md"))
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing key", []string{"-backend", "anthropic"}, "missing API key"},
		{"missing key hint", []string{"-backend", "claude"}, "Set ANTHROPIC_API_KEY, IMG2MD_API_KEY or api_key"},
		{"unknown backend", []string{"-backend", "watson"}, "unknown backend provider"},
		{"unknown backend hint", []string{"-backend", "watson"}, "Choose a backend with -backend: anthropic"},
		{"bad concurrency", []string{"-mock", "-concurrency", "0"}, "concurrency must be at least 1"},
		{"bad flag", []string{"-nope"}, "flag provided but not defined"},
		{"missing config", []string{"-config", "/nonexistent/img2md.yaml"}, "Configuration error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			args := append([]string{"-dir", t.TempDir()}, tt.args...)

			code, _, stderr := runCLI(t, args...)

			assert.Equal(t, exitConfig, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestRun_MissingInputDir(t *testing.T) {
	clearEnv(t)

	code, _, stderr := runCLI(t, "-mock", "-dir", filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, exitConfig, code)
	assert.Contains(t, stderr, "cannot list input directory")
}

func TestRun_ConfigFileWithReportAndMetrics(t *testing.T) {
	clearEnv(t)
	dir := imageDir(t, map[string][]byte{"a.png": {1}, "b.png": {2}})
	work := t.TempDir()
	reports := filepath.Join(work, "reports")
	metricsFile := filepath.Join(work, "img2md.prom")
	configPath := filepath.Join(work, "img2md.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`backend: mock
input_dir: `+dir+`
concurrency: 2
report_format: json
metrics_file: `+metricsFile+`
`), 0o644))

	code, _, _ := runCLI(t, "-config", configPath, "-report", reports)

	assert.Equal(t, exitOK, code)
	entries, err := os.ReadDir(reports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "img2md_last_run_files")
}

func TestApplyFlags_BackendChangeDropsForeignKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("MISTRAL_API_KEY", "mistral-key")

	cfg := config.Config{Backend: "gemini", APIKey: "gemini-key"}
	applyFlags(&cfg, cliFlags{backend: "mistral", set: map[string]bool{"backend": true}})
	assert.Equal(t, "mistral", cfg.Backend)
	assert.Equal(t, "mistral-key", cfg.APIKey)

	cfg = config.Config{Backend: "anthropic", APIKey: "yaml-key"}
	applyFlags(&cfg, cliFlags{backend: "claude", set: map[string]bool{"backend": true}})
	assert.Equal(t, "yaml-key", cfg.APIKey)
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, "", outputDir(config.Config{InputDir: "/in"}))
	assert.Equal(t, "/abs/out", outputDir(config.Config{InputDir: "/in", OutputDir: "/abs/out"}))
	assert.Equal(t, filepath.Join("/in", "vystupy"), outputDir(config.Config{InputDir: "/in", OutputDir: "vystupy"}))
}

package support

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// Default folder names below the working directory of every scenario.
const (
	InputDir     = "ENTRADA_PDFS"
	OutputDir    = "SALIDA_TRADUCIDOS"
	ProcessedDir = "PDFS_PROCESADOS"
	ErrorDir     = "PDFS_CON_ERROR"
	CacheDir     = "TEMP_OCR"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	BinPath string
	TempDir string
	WorkDir string
	EnvVars []string

	// Stand-ins for the external services
	Translator *TranslatorStub
	OCRTool    string

	// Long-running watch process
	WatchCmd    *exec.Cmd
	WatchOutput *syncBuffer
	WatchDone   chan error
}

// NewTestContext creates a new test context with an empty working directory.
func NewTestContext(binPath string) (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "pdftrans-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	workDir := filepath.Join(tempDir, "work")
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	ctx := &TestContext{
		BinPath: binPath,
		TempDir: tempDir,
		WorkDir: workDir,
	}
	// Keep user and system configuration out of the scenarios.
	ctx.AddEnvVar("HOME", tempDir)
	ctx.AddEnvVar("XDG_CONFIG_HOME", filepath.Join(tempDir, ".config"))
	return ctx, nil
}

// AddEnvVar adds an environment variable for command execution.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, fmt.Sprintf("%s=%s", name, value))
}

// Folder returns the absolute path of a lifecycle folder.
func (testCtx *TestContext) Folder(name string) string {
	return filepath.Join(testCtx.WorkDir, name)
}

// Cleanup stops anything the scenario started and removes its files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.WatchCmd != nil && testCtx.WatchCmd.Process != nil {
		_ = testCtx.WatchCmd.Process.Kill()
		select {
		case <-testCtx.WatchDone:
		case <-time.After(5 * time.Second):
			errs = append(errs, fmt.Errorf("watch process did not exit"))
		}
	}

	if testCtx.Translator != nil {
		testCtx.Translator.Close()
	}

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// syncBuffer is a bytes.Buffer safe for a writing process and a reading test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

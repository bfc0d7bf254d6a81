package support

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/pdftrans/internal/testutil"
)

var folderNames = map[string]string{
	"input":     InputDir,
	"output":    OutputDir,
	"processed": ProcessedDir,
	"error":     ErrorDir,
	"OCR cache": CacheDir,
}

// RegisterLifecycleSteps registers steps about services, folders and the
// watch process.
func (testCtx *TestContext) RegisterLifecycleSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the translation service answers "([^"]*)"$`, testCtx.theTranslationServiceAnswers)
	sc.Step(`^the translation service is down$`, testCtx.theTranslationServiceIsDown)
	sc.Step(`^the translation service should have received "([^"]*)"$`, testCtx.theTranslationServiceShouldHaveReceived)
	sc.Step(`^the translation service should not have been called$`, testCtx.theTranslationServiceShouldNotHaveBeenCalled)
	sc.Step(`^the OCR tool copies its input$`, testCtx.theOCRToolCopiesItsInput)
	sc.Step(`^the OCR tool fails$`, testCtx.theOCRToolFails)

	sc.Step(`^the (input|output|processed|error) folder contains a PDF "([^"]*)" with text "([^"]*)"$`,
		testCtx.theFolderContainsAPDF)
	sc.Step(`^the (input|output|processed|error) folder contains a file "([^"]*)" with content "([^"]*)"$`,
		testCtx.theFolderContainsAFile)
	sc.Step(`^the (input|output|processed|error|OCR cache) folder should contain "([^"]*)"$`,
		testCtx.theFolderShouldContain)
	sc.Step(`^the (input|output|processed|error|OCR cache) folder should be empty$`,
		testCtx.theFolderShouldBeEmpty)
	sc.Step(`^the (input|output|processed|error|OCR cache) folder should contain (\d+) files?$`,
		testCtx.theFolderShouldContainFiles)
	sc.Step(`^the (input|output|processed|error|OCR cache) folder should contain a file matching "([^"]*)"$`,
		testCtx.theFolderShouldContainAFileMatching)

	sc.Step(`^I start "([^"]*)"$`, testCtx.iStart)
	sc.Step(`^within (\d+) seconds the (input|output|processed|error) folder should contain "([^"]*)"$`,
		testCtx.withinSecondsTheFolderShouldContain)
	sc.Step(`^I interrupt the watcher$`, testCtx.iInterruptTheWatcher)
	sc.Step(`^the watcher should exit cleanly$`, testCtx.theWatcherShouldExitCleanly)
}

func (testCtx *TestContext) theTranslationServiceAnswers(answer string) error {
	if testCtx.Translator != nil {
		testCtx.Translator.Close()
	}
	testCtx.Translator = NewTranslatorStub(answer)
	testCtx.AddEnvVar("PDFTRANS_TRANSLATOR_ENDPOINT", testCtx.Translator.URL())
	testCtx.AddEnvVar("PDFTRANS_TRANSLATOR_TIMEOUT", "5s")
	return nil
}

func (testCtx *TestContext) theTranslationServiceIsDown() error {
	if testCtx.Translator == nil {
		if err := testCtx.theTranslationServiceAnswers(""); err != nil {
			return err
		}
	}
	testCtx.Translator.SetDown(true)
	return nil
}

func (testCtx *TestContext) theTranslationServiceShouldHaveReceived(text string) error {
	if testCtx.Translator == nil {
		return errors.New("no translation service configured")
	}
	prompts := testCtx.Translator.Prompts()
	for _, p := range prompts {
		if strings.Contains(p, text) {
			return nil
		}
	}
	return fmt.Errorf("no prompt contained %q; got %q", text, prompts)
}

func (testCtx *TestContext) theTranslationServiceShouldNotHaveBeenCalled() error {
	if testCtx.Translator == nil {
		return nil
	}
	if prompts := testCtx.Translator.Prompts(); len(prompts) > 0 {
		return fmt.Errorf("expected no requests, got %d", len(prompts))
	}
	return nil
}

func (testCtx *TestContext) useOCRTool(body string) error {
	tool, err := writeOCRTool(testCtx.TempDir, body)
	if err != nil {
		return err
	}
	testCtx.OCRTool = tool
	testCtx.AddEnvVar("PDFTRANS_OCR_BINARY", tool)
	return nil
}

func (testCtx *TestContext) theOCRToolCopiesItsInput() error {
	return testCtx.useOCRTool(testutil.CopyTool)
}

func (testCtx *TestContext) theOCRToolFails() error {
	return testCtx.useOCRTool(testutil.FailTool)
}

func (testCtx *TestContext) folderPath(folder string) (string, error) {
	name, ok := folderNames[folder]
	if !ok {
		return "", fmt.Errorf("unknown folder %q", folder)
	}
	return testCtx.Folder(name), nil
}

func (testCtx *TestContext) theFolderContainsAPDF(folder, name, text string) error {
	dir, err := testCtx.folderPath(folder)
	if err != nil {
		return err
	}
	return writePDF(filepath.Join(dir, filepath.FromSlash(name)), text)
}

func (testCtx *TestContext) theFolderContainsAFile(folder, name, content string) error {
	dir, err := testCtx.folderPath(folder)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// files lists regular files below dir, relative to it, with forward slashes.
func files(dir string) ([]string, error) {
	var out []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.Mode().IsRegular() {
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil {
				return relErr
			}
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out, err
}

func (testCtx *TestContext) theFolderShouldContain(folder, name string) error {
	dir, err := testCtx.folderPath(folder)
	if err != nil {
		return err
	}
	got, err := files(dir)
	if err != nil {
		return err
	}
	if !slices.Contains(got, name) {
		return fmt.Errorf("%s folder does not contain %s; has %v\nOutput: %s", folder, name, got, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFolderShouldBeEmpty(folder string) error {
	return testCtx.theFolderShouldContainFiles(folder, 0)
}

func (testCtx *TestContext) theFolderShouldContainFiles(folder string, n int) error {
	dir, err := testCtx.folderPath(folder)
	if err != nil {
		return err
	}
	got, err := files(dir)
	if err != nil {
		return err
	}
	if len(got) != n {
		return fmt.Errorf("%s folder has %d file(s), want %d: %v\nOutput: %s", folder, len(got), n, got, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFolderShouldContainAFileMatching(folder, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	dir, err := testCtx.folderPath(folder)
	if err != nil {
		return err
	}
	got, err := files(dir)
	if err != nil {
		return err
	}
	for _, name := range got {
		if re.MatchString(name) {
			return nil
		}
	}
	return fmt.Errorf("no file in %s folder matches %q: %v", folder, pattern, got)
}

// iStart launches a long-running command in the background.
func (testCtx *TestContext) iStart(line string) error {
	cmd, err := testCtx.command(context.Background(), line)
	if err != nil {
		return err
	}
	testCtx.WatchOutput = &syncBuffer{}
	cmd.Stdout = testCtx.WatchOutput
	cmd.Stderr = testCtx.WatchOutput

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", line, err)
	}
	testCtx.WatchCmd = cmd
	testCtx.WatchDone = make(chan error, 1)
	go func() { testCtx.WatchDone <- cmd.Wait() }()
	return nil
}

func (testCtx *TestContext) withinSecondsTheFolderShouldContain(seconds int, folder, name string) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for {
		err := testCtx.theFolderShouldContain(folder, name)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			out := ""
			if testCtx.WatchOutput != nil {
				out = testCtx.WatchOutput.String()
			}
			return fmt.Errorf("%w\nWatch output: %s", err, out)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (testCtx *TestContext) iInterruptTheWatcher() error {
	if testCtx.WatchCmd == nil || testCtx.WatchCmd.Process == nil {
		return errors.New("no watcher running")
	}
	return testCtx.WatchCmd.Process.Signal(os.Interrupt)
}

func (testCtx *TestContext) theWatcherShouldExitCleanly() error {
	select {
	case err := <-testCtx.WatchDone:
		testCtx.WatchCmd = nil
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return fmt.Errorf("watcher exited with code %d\nOutput: %s", exitErr.ExitCode(), testCtx.WatchOutput.String())
			}
			return err
		}
		return nil
	case <-time.After(15 * time.Second):
		return errors.New("watcher did not exit after interrupt")
	}
}

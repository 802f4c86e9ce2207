package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/fifolog/internal/cli"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// Tests for print-config command.

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "fifo.log")+`"`)
}

func Test_Print_Config_From_Config_File_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{"file": "my-queue.log"}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "my-queue.log")+`"`)
	cli.AssertContains(t, stdout, "// loaded from "+filepath.Join(c.Dir, ".fifolog.json"))
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{
		// This is a comment
		"file": "commented.log",
		"window_size": 256,
	}`)

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "commented.log")+`"`)
	cli.AssertContains(t, stdout, `"window_size": 256`)
}

func Test_Print_Config_Explicit_Config_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, "custom.json"), `{"file": "custom.log"}`)

	stdout := c.MustRun("-C", "custom.json", "print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "custom.log")+`"`)
}

func Test_Print_Config_File_Flag_Override_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{"file": "from-file.log"}`)

	stdout := c.MustRun("-f", "from-cli.log", "print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "from-cli.log")+`"`)
}

func Test_Print_Config_Env_Override_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{"file": "from-file.log"}`)
	c.Env["FIFOLOG_FILE"] = "from-env.log"

	stdout := c.MustRun("print-config")
	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "from-env.log")+`"`)
}

// Tests for config errors.

func Test_Config_Explicit_Config_Not_Found_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-C", "nonexistent.json", "print-config")
	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{invalid json}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "invalid")
}

func Test_Config_Negative_Window_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{"window_size": -1}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "window_size cannot be negative")
}

func Test_Config_Threshold_Out_Of_Range_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	writeFile(t, filepath.Join(c.Dir, ".fifolog.json"), `{"compact_threshold": 1.5}`)

	stderr := c.MustFail("print-config")
	cli.AssertContains(t, stderr, "compact_threshold must be in [0, 1]")
}

func Test_Config_Missing_Project_File_Uses_Defaults(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, code := c.Run("print-config")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	cli.AssertContains(t, stdout, `"file": "`+filepath.Join(c.Dir, "fifo.log")+`"`)
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	minArgs  = 2
	helpFlag = "--help"
)

var (
	errFlagRequiresArg = errors.New("flag requires an argument")
	errUnknownFlag     = errors.New("unknown flag")
)

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string) int {
	o := NewIO(out, errOut)

	if len(args) < minArgs {
		printUsage(o)

		return 0
	}

	flags, err := parseGlobalFlags(args[1:])
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	workDir := flags.workDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			o.ErrPrintln("error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, source, err := LoadConfig(workDir, flags.configPath, env)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	// CLI overrides win over everything.
	if flags.file != "" {
		cfg.File = flags.file
	}

	if flags.window != 0 {
		cfg.WindowSize = flags.window
	}

	if flags.threshold != 0 {
		cfg.CompactThreshold = flags.threshold
	}

	if !filepath.IsAbs(cfg.File) {
		cfg.File = filepath.Join(workDir, cfg.File)
	}

	if len(flags.remaining) == 0 {
		printUsage(o)

		return 0
	}

	cmd := flags.remaining[0]
	cmdArgs := flags.remaining[1:]

	if cmd == "-h" || cmd == helpFlag || cmd == "help" {
		printUsage(o)

		return 0
	}

	var cmdErr error

	switch cmd {
	case "push":
		cmdErr = cmdPush(o, cfg, cmdArgs)
	case "get":
		cmdErr = cmdGet(o, cfg, cmdArgs)
	case "last":
		cmdErr = cmdLast(o, cfg)
	case "first":
		cmdErr = cmdFirst(o, cfg, cmdArgs)
	case "remove":
		cmdErr = cmdRemove(o, cfg, cmdArgs)
	case "pop":
		cmdErr = cmdPop(o, cfg, cmdArgs)
	case "size":
		cmdErr = cmdSize(o, cfg)
	case "stats":
		cmdErr = cmdStats(o, cfg, cmdArgs)
	case "compact":
		cmdErr = cmdCompact(o, cfg)
	case "clear":
		cmdErr = cmdClear(o, cfg)
	case "dump":
		cmdErr = cmdDump(o, cfg)
	case "shell":
		cmdErr = cmdShell(o, cfg)
	case "print-config":
		cmdErr = cmdPrintConfig(o, cfg, source)
	default:
		o.ErrPrintln("error: unknown command:", cmd)
		printUsage(o)

		return 1
	}

	if cmdErr != nil {
		o.ErrPrintln("error:", cmdErr)

		return 1
	}

	return 0
}

type globalFlags struct {
	workDir    string
	configPath string
	file       string
	window     int
	threshold  float64
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	i := 0

	for i < len(args) {
		arg := args[i]

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			break
		}

		consume := func(name string) (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%w: %s", errFlagRequiresArg, name)
			}

			i++

			return args[i], nil
		}

		switch arg {
		case "-f", "--file":
			value, err := consume(arg)
			if err != nil {
				return globalFlags{}, err
			}

			flags.file = value
		case "-C", "--config":
			value, err := consume(arg)
			if err != nil {
				return globalFlags{}, err
			}

			flags.configPath = value
		case "-w", "--work-dir":
			value, err := consume(arg)
			if err != nil {
				return globalFlags{}, err
			}

			flags.workDir = value
		case "--window":
			value, err := consume(arg)
			if err != nil {
				return globalFlags{}, err
			}

			window, err := parsePositiveInt(value)
			if err != nil {
				return globalFlags{}, fmt.Errorf("--window: %w", err)
			}

			flags.window = window
		case "--threshold":
			value, err := consume(arg)
			if err != nil {
				return globalFlags{}, err
			}

			threshold, err := parseRatio(value)
			if err != nil {
				return globalFlags{}, fmt.Errorf("--threshold: %w", err)
			}

			flags.threshold = threshold
		case "-h", helpFlag:
			// Leave for the dispatcher.
			flags.remaining = args[i:]

			return flags, nil
		default:
			return globalFlags{}, fmt.Errorf("%w: %s", errUnknownFlag, arg)
		}

		i++
	}

	flags.remaining = args[i:]

	return flags, nil
}

func printUsage(o *IO) {
	o.Println("Usage: fifolog [global flags] <command> [args]")
	o.Println()
	o.Println("Single-file FIFO record store.")
	o.Println()
	o.Println("Commands:")
	o.Println("  push <payload>...      Append one record per payload")
	o.Println("  get <index>            Print the index-th live record")
	o.Println("  last                   Print the most recent live record")
	o.Println("  first [n]              Print the first n live records (default 1)")
	o.Println("  remove <index>         Tombstone the index-th live record")
	o.Println("  pop [n]                Tombstone the first n live records (default 1)")
	o.Println("  size                   Print the live-record count")
	o.Println("  stats [--out <path>]   Print store statistics as JSON")
	o.Println("  compact                Rewrite the file dropping tombstones")
	o.Println("  clear                  Delete all records")
	o.Println("  dump                   Print every line, tombstones included")
	o.Println("  shell                  Interactive shell")
	o.Println("  print-config           Print the effective configuration")
	o.Println()
	o.Println("Global flags:")
	o.Println("  -f, --file <path>      Store file (default from config, else fifo.log)")
	o.Println("  -C, --config <path>    Config file (default .fifolog.json if present)")
	o.Println("  -w, --work-dir <path>  Working directory")
	o.Println("      --window <n>       Backward-scan window in bytes")
	o.Println("      --threshold <x>    Auto-compaction fragmentation threshold")
}

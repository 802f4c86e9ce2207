package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/fifolog/pkg/fifolog"
	"github.com/calvinalkan/fifolog/pkg/fs"
)

var (
	errPayloadRequired = errors.New("at least one payload is required")
	errIndexRequired   = errors.New("record index is required")
)

func parsePositiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a positive integer, got %q", value)
	}

	return n, nil
}

func parseRatio(value string) (float64, error) {
	x, err := strconv.ParseFloat(value, 64)
	if err != nil || x <= 0 || x > 1 {
		return 0, fmt.Errorf("expected a ratio in (0, 1], got %q", value)
	}

	return x, nil
}

// openStore opens the configured store on the real filesystem.
func openStore(cfg Config) (*fifolog.Store, error) {
	return fifolog.Open(fifolog.Options{
		Path:             cfg.File,
		WindowSize:       cfg.WindowSize,
		ReadBufferSize:   cfg.ReadBufferSize,
		CompactThreshold: cfg.CompactThreshold,
	})
}

func cmdPush(o *IO, cfg Config, args []string) error {
	if len(args) == 0 {
		return errPayloadRequired
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, payload := range args {
		if err := store.Push(payload); err != nil {
			return fmt.Errorf("pushing %q: %w", payload, err)
		}
	}

	o.Printf("pushed %d record(s), size is now %d\n", len(args), store.Size())

	return nil
}

func cmdGet(o *IO, cfg Config, args []string) error {
	if len(args) != 1 {
		return errIndexRequired
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[0])
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	payload, err := store.Get(index)
	if err != nil {
		return err
	}

	o.Println(payload)

	return nil
}

func cmdLast(o *IO, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	payload, err := store.GetLast()
	if err != nil {
		return err
	}

	o.Println(payload)

	return nil
}

func cmdFirst(o *IO, cfg Config, args []string) error {
	n := 1

	if len(args) > 0 {
		var err error

		n, err = parsePositiveInt(args[0])
		if err != nil {
			return err
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	payloads, err := store.GetFirst(n)
	if err != nil {
		return err
	}

	for _, payload := range payloads {
		o.Println(payload)
	}

	return nil
}

func cmdRemove(o *IO, cfg Config, args []string) error {
	if len(args) != 1 {
		return errIndexRequired
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index %q", args[0])
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	payload, err := store.Remove(index)
	if err != nil {
		return err
	}

	o.Println(payload)

	return nil
}

func cmdPop(o *IO, cfg Config, args []string) error {
	n := 1

	if len(args) > 0 {
		var err error

		n, err = parsePositiveInt(args[0])
		if err != nil {
			return err
		}
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.RemoveFirst(n)
	if err != nil {
		return err
	}

	o.Printf("removed %d record(s), size is now %d\n", removed, store.Size())

	return nil
}

func cmdSize(o *IO, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	o.Println(store.Size())

	return nil
}

func cmdStats(o *IO, cfg Config, args []string) error {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	flags.SetOutput(&strings.Builder{}) // discard pflag output

	outPath := flags.String("out", "", "write stats JSON to this path atomically")

	if err := flags.Parse(args); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting stats: %w", err)
	}

	if *outPath != "" {
		if err := fs.NewReal().WriteFileAtomic(*outPath, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing stats file: %w", err)
		}

		return nil
	}

	o.Println(string(data))

	return nil
}

func cmdCompact(o *IO, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Defragment(); err != nil {
		return err
	}

	o.Printf("compacted, %d live record(s)\n", store.Size())

	return nil
}

func cmdClear(o *IO, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(); err != nil {
		return err
	}

	o.Println("cleared")

	return nil
}

// cmdDump prints every line of the store file, tombstones included.
// Debug aid; the store API never exposes tombstoned records.
func cmdDump(o *IO, cfg Config) error {
	f, err := fs.NewReal().Open(cfg.File)
	if err != nil {
		return fmt.Errorf("opening store file: %w", err)
	}
	defer f.Close()

	lineNo := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		o.Printf("%6d  %s\n", lineNo, scanner.Text())
		lineNo++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading store file: %w", err)
	}

	return nil
}

func cmdPrintConfig(o *IO, cfg Config, source string) error {
	formatted, err := FormatConfig(cfg)
	if err != nil {
		return err
	}

	if source != "" {
		o.Println("// loaded from", source)
	}

	o.Println(formatted)

	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"

	"github.com/calvinalkan/fifolog/pkg/fifolog"
)

// shell is the interactive command loop. It holds the store open for the
// whole session, so the advisory lock stays with the shell.
type shell struct {
	o     *IO
	store *fifolog.Store
	liner *liner.State
}

func cmdShell(o *IO, cfg Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	s := &shell{o: o, store: store}

	return s.run()
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".fifolog_history")
}

func (s *shell) run() error {
	s.liner = liner.NewLiner()
	defer s.liner.Close()

	s.liner.SetCtrlCAborts(true)
	s.liner.SetCompleter(s.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = s.liner.ReadHistory(f)
		f.Close()
	}

	s.o.Printf("fifolog - %s (%d live records)\n", s.store.Path(), s.store.Size())
	s.o.Println("Type 'help' for available commands.")
	s.o.Println()

	for {
		line, err := s.liner.Prompt("fifolog> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.o.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		s.liner.AppendHistory(line)

		// shellquote so payloads with spaces survive: push "a b c"
		parts, err := shellquote.Split(line)
		if err != nil {
			s.o.Println("Parse error:", err)

			continue
		}

		if len(parts) == 0 {
			continue
		}

		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			s.o.Println("Bye!")

			break
		}

		s.dispatch(cmd, args)
	}

	s.saveHistory()

	return nil
}

func (s *shell) dispatch(cmd string, args []string) {
	switch cmd {
	case "help", "?":
		s.printHelp()

	case "push", "add":
		s.cmdPush(args)

	case "get":
		s.cmdGet(args)

	case "last":
		s.cmdLast()

	case "first", "peek":
		s.cmdFirst(args)

	case "remove", "del":
		s.cmdRemove(args)

	case "pop":
		s.cmdPop(args)

	case "size", "len", "count":
		s.o.Println(s.store.Size())

	case "stats", "info":
		s.cmdStats()

	case "compact", "defrag":
		s.cmdCompact()

	case "wipe":
		s.cmdWipe()

	case "clear", "cls":
		s.o.Printf("\033[H\033[2J")

	default:
		s.o.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
}

func (s *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = s.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// completer provides tab completion for commands.
func (s *shell) completer(line string) []string {
	commands := []string{
		"push", "add", "get", "last",
		"first", "peek", "remove", "del",
		"pop", "size", "len", "count",
		"stats", "info", "compact", "defrag",
		"wipe", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (s *shell) printHelp() {
	s.o.Println("Commands:")
	s.o.Println("  push <payload>...   Append one record per payload (quote to keep spaces)")
	s.o.Println("  get <index>         Print the index-th live record")
	s.o.Println("  last                Print the most recent live record")
	s.o.Println("  first [n]           Print the first n live records")
	s.o.Println("  remove <index>      Tombstone the index-th live record")
	s.o.Println("  pop [n]             Tombstone the first n live records")
	s.o.Println("  size                Print the live-record count")
	s.o.Println("  stats               Show store statistics")
	s.o.Println("  compact             Rewrite the file dropping tombstones")
	s.o.Println("  wipe                Delete all records (asks first)")
	s.o.Println("  clear               Clear the screen")
	s.o.Println("  help                Show this help")
	s.o.Println("  exit / quit / q     Exit")
}

func (s *shell) cmdPush(args []string) {
	if len(args) == 0 {
		s.o.Println("Usage: push <payload>...")

		return
	}

	for _, payload := range args {
		if err := s.store.Push(payload); err != nil {
			s.o.Printf("Error pushing %q: %v\n", payload, err)

			return
		}
	}

	s.o.Printf("OK: pushed %d record(s), size=%d\n", len(args), s.store.Size())
}

func (s *shell) cmdGet(args []string) {
	if len(args) != 1 {
		s.o.Println("Usage: get <index>")

		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		s.o.Printf("Error parsing index: %v\n", err)

		return
	}

	payload, err := s.store.Get(index)
	if err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Println(payload)
}

func (s *shell) cmdLast() {
	payload, err := s.store.GetLast()
	if err != nil {
		if errors.Is(err, fifolog.ErrEmpty) {
			s.o.Println("(empty)")

			return
		}

		s.o.Println("Error:", err)

		return
	}

	s.o.Println(payload)
}

func (s *shell) cmdFirst(args []string) {
	n := 1

	if len(args) >= 1 {
		var err error

		n, err = parsePositiveInt(args[0])
		if err != nil {
			s.o.Println("Error:", err)

			return
		}
	}

	payloads, err := s.store.GetFirst(n)
	if err != nil {
		s.o.Println("Error:", err)

		return
	}

	if len(payloads) == 0 {
		s.o.Println("(empty)")

		return
	}

	for i, payload := range payloads {
		s.o.Printf("%3d. %s\n", i, payload)
	}
}

func (s *shell) cmdRemove(args []string) {
	if len(args) != 1 {
		s.o.Println("Usage: remove <index>")

		return
	}

	index, err := strconv.Atoi(args[0])
	if err != nil {
		s.o.Printf("Error parsing index: %v\n", err)

		return
	}

	payload, err := s.store.Remove(index)
	if err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Printf("OK: removed %q, size=%d\n", payload, s.store.Size())
}

func (s *shell) cmdPop(args []string) {
	n := 1

	if len(args) >= 1 {
		var err error

		n, err = parsePositiveInt(args[0])
		if err != nil {
			s.o.Println("Error:", err)

			return
		}
	}

	removed, err := s.store.RemoveFirst(n)
	if err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Printf("OK: removed %d record(s), size=%d\n", removed, s.store.Size())
}

func (s *shell) cmdStats() {
	stats, err := s.store.Stats()
	if err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Printf("Store Stats:\n")
	s.o.Printf("  Path:           %s\n", s.store.Path())
	s.o.Printf("  Live records:   %d\n", stats.Size)
	s.o.Printf("  File size:      %d bytes\n", stats.FileSize)
	s.o.Printf("  Fragmentation:  %.2f\n", stats.Fragmentation)
}

func (s *shell) cmdCompact() {
	if err := s.store.Defragment(); err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Printf("OK: compacted, %d live record(s)\n", s.store.Size())
}

func (s *shell) cmdWipe() {
	answer, err := s.liner.Prompt("Delete all records? (yes/no): ")
	if err != nil {
		s.o.Println("Cancelled.")

		return
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "yes" && answer != "y" {
		s.o.Println("Cancelled.")

		return
	}

	if err := s.store.Clear(); err != nil {
		s.o.Println("Error:", err)

		return
	}

	s.o.Println("OK: cleared")
}

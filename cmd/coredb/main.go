// Command coredb opens (or creates) a data directory and exercises a
// single int64-keyed table index through the storage core: insert, get,
// scan, range, a tiny insert benchmark, and an interactive REPL built on
// readline. It is a manual-exercising tool, not part of the tested core.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tuannm99/coredb/internal/btree"
	"github.com/tuannm99/coredb/internal/bufferpool"
	"github.com/tuannm99/coredb/internal/config"
	"github.com/tuannm99/coredb/internal/rowid"
	"github.com/tuannm99/coredb/internal/storage"
)

type db struct {
	disk  storage.DiskManager
	cache *bufferpool.Cache
	tree  *btree.Tree[int64, rowid.RowID]
	close func() error
}

func openDB(cfg *config.Config) (*db, error) {
	var disk storage.DiskManager
	var closeDisk func() error = func() error { return nil }

	switch cfg.Storage.Mode {
	case "memory":
		disk = storage.NewMemoryDiskManager()
	case "file", "":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
		fd, err := storage.OpenFileDiskManager(filepath.Join(cfg.Storage.DataDir, "index.db"))
		if err != nil {
			return nil, fmt.Errorf("open disk file: %w", err)
		}
		disk = fd
		closeDisk = fd.Close
	default:
		return nil, fmt.Errorf("unknown storage.mode %q", cfg.Storage.Mode)
	}

	cache := bufferpool.NewCache(disk, cfg.Cache.Frames, cfg.Cache.LRUK)

	var metaPath string
	if cfg.Storage.Mode != "memory" {
		metaPath = filepath.Join(cfg.Storage.DataDir, "index.meta.json")
	}

	tree, err := btree.Open[int64, rowid.RowID](
		cache,
		btree.Int64Comparator{},
		btree.Int64KeyCodec{},
		btree.RowIDValueCodec{},
		metaPath,
		cfg.Tree.MaxFanout,
	)
	if err != nil {
		return nil, fmt.Errorf("open tree: %w", err)
	}

	return &db{disk: disk, cache: cache, tree: tree, close: closeDisk}, nil
}

func (d *db) Close() error {
	if err := d.tree.Close(); err != nil {
		return err
	}
	return d.close()
}

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config file (optional)")
	)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: coredb [-config path] <insert|get|scan|range|bench|repl> [args...]")
		os.Exit(1)
	}

	cfg, err := loadConfigOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.InstallLogger()

	d, err := openDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Error("close", "err", err)
		}
	}()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "insert":
		err = cmdInsert(d, rest)
	case "get":
		err = cmdGet(d, rest)
	case "scan":
		err = cmdScan(d, rest)
	case "range":
		err = cmdRange(d, rest)
	case "bench":
		err = cmdBench(d, rest)
	case "repl":
		err = cmdRepl(d)
	default:
		err = fmt.Errorf("unknown subcommand %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if path == "" {
		return &config.Config{
			Storage: config.StorageConfig{Mode: "file", DataDir: "./coredb-data", PageSize: 4096},
			Cache:   config.CacheConfig{Frames: 128, LRUK: 2},
			Tree:    config.TreeConfig{MaxFanout: 0},
			Log:     config.LogConfig{Level: "info"},
		}, nil
	}
	return config.Load(path)
}

func cmdInsert(d *db, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: insert <key> <pageID> <slot>")
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	pageID, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("pageID: %w", err)
	}
	slot, err := strconv.ParseUint(args[2], 10, 16)
	if err != nil {
		return fmt.Errorf("slot: %w", err)
	}
	id := rowid.RowID{PageID: storage.PageID(pageID), Slot: uint16(slot)}
	if err := d.tree.Insert(key, id); err != nil {
		return err
	}
	fmt.Printf("inserted key=%d -> %+v\n", key, id)
	return nil
}

func cmdGet(d *db, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <key>")
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	val, err := d.tree.Get(key)
	if err != nil {
		return err
	}
	fmt.Printf("key=%d -> %+v\n", key, val)
	return nil
}

func cmdScan(d *db, _ []string) error {
	entries, err := d.tree.Scan()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%d -> %+v\n", e.Key, e.Value)
	}
	fmt.Printf("(%d entries)\n", len(entries))
	return nil
}

func cmdRange(d *db, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: range <lo> <hi>")
	}
	lo, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("lo: %w", err)
	}
	hi, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("hi: %w", err)
	}
	entries, err := d.tree.Range(lo, hi)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%d -> %+v\n", e.Key, e.Value)
	}
	fmt.Printf("(%d entries)\n", len(entries))
	return nil
}

func cmdBench(d *db, args []string) error {
	n := 10000
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("n: %w", err)
		}
		n = v
	}

	start := time.Now()
	for i := 0; i < n; i++ {
		id := rowid.RowID{PageID: storage.PageID(i / 100), Slot: uint16(i % 100)}
		if err := d.tree.Insert(int64(i), id); err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("inserted %d entries in %s (%.0f ops/sec)\n", n, elapsed, float64(n)/elapsed.Seconds())
	return nil
}

func cmdRepl(d *db) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "coredb> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	fmt.Println("type \\help for help, \\q to quit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			fmt.Println()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			return nil
		}
		if line == "\\help" {
			printReplHelp()
			continue
		}

		fields := strings.Fields(line)
		var execErr error
		switch fields[0] {
		case "insert":
			execErr = cmdInsert(d, fields[1:])
		case "get":
			execErr = cmdGet(d, fields[1:])
		case "scan":
			execErr = cmdScan(d, fields[1:])
		case "range":
			execErr = cmdRange(d, fields[1:])
		case "bench":
			execErr = cmdBench(d, fields[1:])
		default:
			execErr = fmt.Errorf("unknown command %q (try \\help)", fields[0])
		}
		if execErr != nil {
			fmt.Printf("error: %v\n", execErr)
		}
	}
}

func printReplHelp() {
	fmt.Fprint(os.Stdout, strings.TrimLeft(`
commands:
  insert <key> <pageID> <slot>
  get <key>
  scan
  range <lo> <hi>
  bench [n]
  \q | quit | exit
`, "\n"))
}

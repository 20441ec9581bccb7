package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/iudanet/gophcache/internal/client/engine"
	"github.com/iudanet/gophcache/internal/client/iocli"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrUnknownCommand is returned for a session line naming no command
var ErrUnknownCommand = errors.New("unknown command")

// errExit ends a shell session
var errExit = errors.New("exit")

// Cli runs session commands against one engine.
type Cli struct {
	io     iocli.IO
	engine *engine.Engine
	logger *slog.Logger
	format string
}

// New creates a session bound to io and eng.
func New(out iocli.IO, eng *engine.Engine, format string, logger *slog.Logger) *Cli {
	if format == "" {
		format = FormatText
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cli{
		io:     out,
		engine: eng,
		format: format,
		logger: logger,
	}
}

// Shell reads commands until the input ends or "exit" is entered. A failed
// command is reported and the session goes on.
func (c *Cli) Shell(ctx context.Context) error {
	c.io.Println("gophcache shell. Type 'help' for commands, 'exit' to quit.")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := c.io.ReadLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read command: %w", err)
		}

		err = c.Execute(ctx, line)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			c.io.Printf("Error: %v\n", err)
		}
	}
}

// RunScript executes every line of a script. Execution stops at the first
// failing line.
func (c *Cli) RunScript(ctx context.Context, script iocli.IO) error {
	for n := 1; ; n++ {
		line, err := script.ReadLine("")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}

		err = c.Execute(ctx, line)
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
}

// Execute runs one command line. Empty lines and # comments are ignored.
func (c *Cli) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	command, rest := cut(line)

	c.logger.Debug("Executing command", "command", command)

	switch command {
	case "get":
		return c.runGet(ctx, rest)
	case "list":
		return c.runList(rest)
	case "add":
		return c.runAdd(ctx, rest)
	case "post":
		return c.runSave(ctx, rest, c.engine.Post)
	case "patch":
		return c.runSave(ctx, rest, c.engine.Patch)
	case "delete":
		return c.runDelete(ctx, rest)
	case "edit":
		return c.runEdit(rest)
	case "queue":
		return c.runQueue(ctx, rest)
	case "unqueue":
		return c.runUnqueue(ctx, rest)
	case "flush":
		return c.runFlush(ctx, rest)
	case "cancel":
		return c.runCancel(ctx, rest)
	case "show":
		return c.runShow(rest)
	case "reset":
		c.engine.Reset(ctx)
		c.io.Println("Store reset.")
		return nil
	case "help":
		PrintUsage(c.io)
		return nil
	case "exit", "quit":
		return errExit
	}
	return fmt.Errorf("%w: %s. Type 'help' for usage", ErrUnknownCommand, command)
}

// PrintUsage prints the session command reference.
func PrintUsage(out iocli.IO) {
	out.Println("Commands:")
	out.Println("  get <model> [id] [--force]          Read from cache or fetch; without id fetch all")
	out.Println("  list <model> [expr]                 List cached entities matching expr")
	out.Println("  add <model> <json> [--clear]        Merge an object or array into the cache")
	out.Println("  post <model> <json>                 Create on the server")
	out.Println("  patch <model> <json>                Update on the server")
	out.Println("  delete <model> <id|json array>      Delete on the server")
	out.Println("  edit <model> <json>                 Change a cached entity locally")
	out.Println("  queue <model> <action> <json|id>    Queue a post, patch or delete")
	out.Println("  unqueue <model> <action> <id>       Drop one queued action")
	out.Println("  flush [--sequential] [model...]     Send queued actions")
	out.Println("  cancel [model...]                   Discard queued actions and restore entities")
	out.Println("  show [model] [id]                   Show slice state or one resolved entity")
	out.Println("  reset                               Clear every slice")
	out.Println("  help                                Show this help")
	out.Println("  exit                                Leave the shell")
	out.Println()
	out.Println("Examples:")
	out.Println("  get widget 7")
	out.Println("  list widget price > 10 && name startsWith \"a\"")
	out.Println(`  queue widget patch {"id": 7, "name": "renamed"}`)
	out.Println("  flush --sequential widget")
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Status(ctx context.Context) error
	Backup(ctx context.Context) error
	Export(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	CSV(ctx context.Context, args []string) error
	Tiers(ctx context.Context, args []string) error
	Restore(ctx context.Context, args []string) error
	Grant(ctx context.Context) error
	Revoke(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the CrewBook CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//   - help              — show available commands
//   - status            — scheduler and backup tier state
//   - backup            — snapshot and fan out to all tiers now
//   - export <file>     — write a snapshot document to a file
//   - import <file> [hard] — preview and apply an uploaded snapshot
//   - csv <file>        — export the entries as CSV
//   - tiers [tier]      — list backup tiers or one tier's contents
//   - restore <tier> <id> [hard] — restore a stored snapshot
//   - grant <path>      — activate the user backup file
//   - revoke            — deactivate the user backup file
//   - vacuum            — run the retention sweep now
//   - cleanup           — move the migrated legacy file aside
//   - exit | quit       — leave the program
//
// Any errors returned by command handlers are printed here; the loop itself
// never terminates on a command error.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("cb> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn("Available commands: status, backup, export, import, csv, tiers, restore, grant, revoke, vacuum, cleanup, exit")

		case "status":
			err = a.Status(ctx)

		case "backup":
			err = a.Backup(ctx)

		case "export":
			err = a.Export(ctx, args)

		case "import":
			err = a.Import(ctx, args)

		case "csv":
			err = a.CSV(ctx, args)

		case "tiers":
			err = a.Tiers(ctx, args)

		case "restore":
			err = a.Restore(ctx, args)

		case "grant":
			err = a.Grant(ctx)

		case "revoke":
			err = a.Revoke(ctx)

		case "vacuum":
			err = a.Vacuum(ctx)

		case "cleanup":
			err = a.Cleanup(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}

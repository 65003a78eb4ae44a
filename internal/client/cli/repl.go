package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Add(ctx context.Context) error
	AddNote(ctx context.Context, itemID string) error
	List(ctx context.Context) error
	Notes(ctx context.Context, itemID string) error
	Delete(ctx context.Context, id string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Login(ctx context.Context) error
	UseLocal(ctx context.Context) error
	Logout(ctx context.Context) error
}

const helpText = `Available commands:
  add               add an item
  (l)ist            list items
  note <item-id>    add a note to an item
  notes <item-id>   list the notes of an item
  delete <id>       delete an item (with its notes) or a note
  sync              request a sync pass
  status            show pending changes
  login             sign in with an access token
  local             keep data on this device only
  logout            forget the session
  exit | quit       leave the program`

// runREPL starts a simple read–eval–print loop for the fridge CLI.
//
// It reads a line from reader, parses the first token as the command and
// dispatches to a. The prompt shows statusFn. Command errors are printed
// and the loop goes on. It exits on EOF, "exit" or "quit", or
// when ctx is done.
func runREPL(ctx context.Context, a execIface, statusFn func(context.Context) string, reader *bufio.Reader, w io.Writer) {
	for ctx.Err() == nil {
		fmt.Fprintf(w, "fridge %s> ", statusFn(ctx))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help":
			fmt.Fprintln(w, helpText)
		case "add":
			err = a.Add(ctx)
		case "l", "list":
			err = a.List(ctx)
		case "note":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: note <item-id>")
				continue
			}
			err = a.AddNote(ctx, args[0])
		case "notes":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: notes <item-id>")
				continue
			}
			err = a.Notes(ctx, args[0])
		case "delete", "rm":
			if len(args) != 1 {
				fmt.Fprintln(w, "Usage: delete <id>")
				continue
			}
			err = a.Delete(ctx, args[0])
		case "sync":
			err = a.Sync(ctx)
		case "status":
			err = a.Status(ctx)
		case "login":
			err = a.Login(ctx)
		case "local":
			err = a.UseLocal(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
		if err != nil {
			fmt.Fprintln(w, "error:", err)
		}
	}
}

// Package cli provides the interactive fridge command-line client.
//
// It wires configuration, local storage, the sync engine and an
// interactive REPL that works the same online and offline. Local changes
// are stored first and pushed by background sync passes; the passes also
// pull what other devices changed.
//
// Commands
//
//	fridge [shell]   interactive REPL (default)
//	fridge sync      run one sync pass and print the report
//	fridge status    print session and pending-change counts
//
// The REPL is started via App.Shell(ctx), which blocks until the user
// exits or ctx is canceled.
package cli

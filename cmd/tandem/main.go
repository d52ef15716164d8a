// Command tandem is the Tandem CLI client.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tandemhq/tandem/internal/version"
)

const defaultServer = "http://localhost:8940"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "tandem daemon URL")
		token     = flag.String("token", os.Getenv("TANDEM_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "agenda":
		err = cli.cmdAgenda(rest)
	case "notifications":
		err = cli.cmdNotifications(rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `tandem — Tandem CLI

Usage:
  tandem [flags] <command> [args]

Flags:
  --server  <url>    daemon URL (default: http://localhost:8940)
  --token   <token>  JWT auth token (or $TANDEM_TOKEN)

Commands:
  version                print version
  status                 show daemon status
  tasks                  list tasks (flags: --status --assignee --due --q)
  task create <name>     create a task
  task done <id>         mark a task complete
  task rm <id>           delete a task
  agenda [date]          show the merged timeline, or one day's bucket
  notifications          list active notifications
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("tandem %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

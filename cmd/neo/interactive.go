package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const prompt = "neo> "

// prompter is the part of *liner.State the session needs.
type prompter interface {
	Prompt(string) (string, error)
	AppendHistory(string)
}

func (a *app) interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"repl"},
		Short:   "Run inspect and query commands against a catalog loaded once",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.loadCatalog(cmd.Context()); err != nil {
				return err
			}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(completeCommand)

			return a.session(cmd, line)
		},
	}
}

// session reads lines until EOF, "exit" or "quit". A failing command is
// reported and the session continues.
func (a *app) session(parent *cobra.Command, p prompter) error {
	out := parent.OutOrStdout()
	fmt.Fprintln(out, `Explore close approaches of near-earth objects. Type "help" for commands, "exit" to leave.`)

	for {
		input, err := p.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read command")
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		p.AppendHistory(input)

		args, err := shellquote.Split(input)
		if err != nil {
			fmt.Fprintln(a.stderr, "error:", err)
			continue
		}
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Fprintln(out, "Commands: inspect, query, help, exit. Use <command> --help for flags.")
			continue
		case "inspect", "i", "query", "q":
		default:
			fmt.Fprintf(a.stderr, "unknown command %q\n", args[0])
			continue
		}

		if err := a.runLine(parent, args); err != nil && !errors.Is(err, errNoMatch) {
			fmt.Fprintln(a.stderr, "error:", err)
		}
	}
}

// runLine executes one command on a fresh command tree so flag values from
// earlier lines do not leak into later ones.
func (a *app) runLine(parent *cobra.Command, args []string) error {
	switch args[0] {
	case "i":
		args[0] = "inspect"
	case "q":
		args[0] = "query"
	}
	sub := &cobra.Command{Use: "neo", SilenceUsage: true, SilenceErrors: true}
	sub.AddCommand(a.inspectCmd(), a.queryCmd())
	sub.SetArgs(args)
	sub.SetOut(parent.OutOrStdout())
	sub.SetErr(a.stderr)
	return sub.ExecuteContext(parent.Context())
}

func completeCommand(line string) []string {
	var out []string
	for _, c := range []string{"inspect ", "query ", "help", "exit"} {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/urfave/cli/v3"

	minidoc "github.com/chrisdavies/minidoc-sub000"
)

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// runNormalize loads a document through the editor pipeline and prints the
// canonical serialization, so stored documents can be migrated offline.
func runNormalize(ctx context.Context, cmd *cli.Command) error {
	doc, err := readInput(cmd.Args().First())
	if err != nil {
		return err
	}
	ed, err := minidoc.New(doc)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	out, err := ed.Serialize()
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}
	fmt.Println(out)
	return nil
}

// runPaste normalizes the system clipboard through the paste pipeline and
// prints the leafs that would be inserted.
func runPaste(ctx context.Context, cmd *cli.Command) error {
	payload, err := clipboard.ReadAll()
	if err != nil {
		return fmt.Errorf("read clipboard: %w", err)
	}

	var b strings.Builder
	if cmd.Bool("text") {
		for _, leaf := range minidoc.NormalizeClipboardText(payload) {
			s, err := minidoc.RenderNode(leaf)
			if err != nil {
				return err
			}
			b.WriteString(s)
		}
	} else {
		leafs, err := minidoc.NormalizeClipboardHTML(payload)
		if err != nil {
			return fmt.Errorf("normalize clipboard: %w", err)
		}
		for _, leaf := range leafs {
			s, err := minidoc.RenderNode(leaf)
			if err != nil {
				return err
			}
			b.WriteString(s)
		}
	}
	fmt.Println(b.String())
	return nil
}

// runDiff prints the single-hunk delta between two document files.
func runDiff(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("diff needs exactly two files")
	}
	a, err := readInput(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	b, err := readInput(cmd.Args().Get(1))
	if err != nil {
		return err
	}
	d := minidoc.Diff(a, b)
	if d == nil {
		fmt.Println("documents are identical")
		return nil
	}
	fmt.Printf("@%d -%q +%q\n", d.Index, d.Old, d.New)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "minidoc",
		Usage: "Inspect and normalize minidoc documents from the command line",
		Commands: []*cli.Command{
			{
				Name:      "normalize",
				Usage:     "Round-trip a document through the editor and print the canonical form",
				ArgsUsage: "[file]",
				Action:    runNormalize,
			},
			{
				Name:   "paste",
				Usage:  "Normalize the system clipboard as a paste payload",
				Action: runPaste,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "text",
						Usage: "Treat the clipboard as plain text",
					},
				},
			},
			{
				Name:      "diff",
				Usage:     "Print the single-hunk delta between two documents",
				ArgsUsage: "old new",
				Action:    runDiff,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

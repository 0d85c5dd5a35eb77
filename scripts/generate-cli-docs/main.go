// Package main generates a single markdown reference for every udrctl command.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/udrlabs/udrctl/cmd/udrctl/cmd"
)

func main() {
	var outFile string
	flag.StringVar(&outFile, "out", "./docs/CLI.md", "output file for generated markdown")
	flag.Parse()

	if err := run(outFile); err != nil {
		log.Fatalf("error: %s", err)
	}
}

func run(outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# udrctl CLI Documentation")
	fmt.Fprintln(&buf, "\nEvery udrctl command with its description and flags.")

	root := cmd.RootCmd()
	root.DisableAutoGenTag = true
	if err := writeCommand(&buf, root, 2); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Clean(outFile), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	log.Printf("generated CLI documentation in %s", outFile)
	return nil
}

// writeCommand renders one command and recurses into its subcommands,
// deepening the heading level per nesting level.
func writeCommand(w io.Writer, c *cobra.Command, level int) error {
	if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
		return nil
	}

	fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", level), c.CommandPath())
	if c.Short != "" {
		fmt.Fprintf(w, "%s\n\n", c.Short)
	}
	if c.Long != "" && c.Long != c.Short {
		fmt.Fprintf(w, "%s\n\n", c.Long)
	}

	var generated bytes.Buffer
	if err := doc.GenMarkdown(c, &generated); err != nil {
		return fmt.Errorf("generating markdown for %s: %w", c.CommandPath(), err)
	}
	if options := optionsSection(generated.String()); options != "" {
		fmt.Fprintf(w, "%s\n\n", options)
	}

	subcommands := c.Commands()
	sort.Slice(subcommands, func(i, j int) bool {
		return subcommands[i].Name() < subcommands[j].Name()
	})
	for _, sub := range subcommands {
		if err := writeCommand(w, sub, level+1); err != nil {
			return err
		}
	}

	return nil
}

// optionsSection extracts the "### Options" block from cobra's generated
// markdown, stopping at the next heading.
func optionsSection(markdown string) string {
	start := strings.Index(markdown, "### Options")
	if start < 0 {
		return ""
	}
	section := markdown[start:]

	for _, marker := range []string{"\n\n\n### ", "\n\n## ", "\n\n### See Also"} {
		if end := strings.Index(section, marker); end > 0 {
			section = section[:end]
			break
		}
	}

	return strings.TrimSpace(section)
}

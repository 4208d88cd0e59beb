package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/readmeplay/internal/markup"
	"github.com/roach88/readmeplay/internal/scheduler"
	"github.com/roach88/readmeplay/internal/wire"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	File   bool
	Refs   []string
	Blocks bool
}

// ParseReport is the parse command's result.
type ParseReport struct {
	Document string                `json:"document"`
	Ref      string                `json:"ref,omitempty"`
	Commands []CommandView         `json:"commands"`
	Regions  []markup.ScrollRegion `json:"regions"`
	Skipped  []markup.Skip         `json:"skipped"`
	Blocks   []markup.CodeBlock    `json:"blocks,omitempty"`
}

// CommandView is one scheduled command with the frame it would send.
type CommandView struct {
	Time    int          `json:"time"`
	Line    int          `json:"line"`
	Kind    markup.Kind  `json:"kind"`
	Message wire.Message `json:"message"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse <owner/repo | path>",
		Short: "Show the commands and scroll regions in a document",
		Long: `Parse a document and list what playing it would do: scheduled commands
in document order, scroll regions, and annotations that were skipped.

Example:
  readmeplay parse ./README.md
  readmeplay parse octo/demo --format json --blocks`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.File, "file", false, "treat the argument as a local path")
	cmd.Flags().StringSliceVar(&opts.Refs, "ref", nil, "refs to try in order (default from config)")
	cmd.Flags().BoolVar(&opts.Blocks, "blocks", false, "also list every fenced code block")

	return cmd
}

func runParse(opts *ParseOptions, arg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	refs := cfg.Refs
	if len(opts.Refs) > 0 {
		refs = opts.Refs
	}

	doc, err := resolveDocument(arg, opts.File, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	text, ref, err := doc.fetch(ctx, refs)
	if err != nil {
		return err
	}

	report, err := buildReport(doc.Name, ref, text, opts.Blocks)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build report", err)
	}
	out.VerboseLog("parsed %s: %d commands, %d regions, %d skipped",
		doc.Name, len(report.Commands), len(report.Regions), len(report.Skipped))

	return out.Result(report, func(w io.Writer) { printReport(w, report) })
}

func buildReport(name, ref, text string, withBlocks bool) (ParseReport, error) {
	res := markup.Parse(text)
	report := ParseReport{
		Document: name,
		Ref:      ref,
		Commands: []CommandView{},
		Regions:  res.Regions,
		Skipped:  res.Skipped,
	}
	if report.Regions == nil {
		report.Regions = []markup.ScrollRegion{}
	}
	if report.Skipped == nil {
		report.Skipped = []markup.Skip{}
	}
	for _, c := range res.Commands() {
		msg, err := wire.FromPayload(c.Payload)
		if err != nil {
			return ParseReport{}, fmt.Errorf("line %d: %w", c.Line, err)
		}
		report.Commands = append(report.Commands, CommandView{
			Time:    c.Time,
			Line:    c.Line,
			Kind:    c.Payload.Kind(),
			Message: msg,
		})
	}
	if withBlocks {
		report.Blocks = markup.CodeBlocks(text)
	}
	return report, nil
}

func printReport(w io.Writer, r ParseReport) {
	if r.Ref != "" {
		fmt.Fprintf(w, "%s @ %s\n", r.Document, r.Ref)
	} else {
		fmt.Fprintln(w, r.Document)
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(r.Commands))
	for _, c := range r.Commands {
		var p markup.Payload = markup.Execute{}
		if c.Kind == markup.KindInsert {
			p = markup.Insert{FilePath: c.Message.File}
		}
		fmt.Fprintln(w, scheduler.Describe(scheduler.Entry{
			TriggeredCommand: markup.TriggeredCommand{Time: c.Time, Line: c.Line, Payload: p},
		}))
	}

	fmt.Fprintf(w, "\nScroll regions (%d):\n", len(r.Regions))
	for _, reg := range r.Regions {
		fmt.Fprintf(w, "  %s  %ds-%ds  line %d\n", reg.Ref, reg.Start, reg.End, reg.Line)
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped (%d):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  line %d %s: %s\n", s.Line, s.Marker, s.Reason)
		}
	}

	if r.Blocks != nil {
		fmt.Fprintf(w, "\nCode blocks (%d):\n", len(r.Blocks))
		for _, b := range r.Blocks {
			fmt.Fprintf(w, "  [%d] line %d %s\n", b.Index, b.Line, b.Lang)
		}
	}
}

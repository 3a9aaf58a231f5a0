package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/mask"
	"github.com/containercopier/container-copier/internal/ui"
)

type initOptions struct {
	output         string
	name           string
	source         string
	target         string
	files          []string
	events         []string
	force          bool
	nonInteractive bool
}

func newInitCmd(c *cli) *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter copyset document",
		Long: `Write a starter copyset document with one copyset.

When stdin is a terminal a short form asks for the copyset details.
Otherwise, or with --non-interactive, the flags are used as given.

Example:
  container-copier init --output copier.toml --name app \
    --source /defaults --target /etc/app --file app.conf --file certs/ca.pem`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.nonInteractive && ui.IsTerminal(c.stdin) {
				if err := opts.prompt(); err != nil {
					return err
				}
			}
			return c.runInit(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "container-copier.toml", "Where to write the document (.yaml/.yml writes YAML)")
	flags.StringVar(&opts.name, "name", "default", "Copyset name")
	flags.StringVar(&opts.source, "source", "", "Source base directory")
	flags.StringVar(&opts.target, "target", "", "Target base directory")
	flags.StringArrayVar(&opts.files, "file", nil, "File to mirror, relative to --source (repeatable)")
	flags.StringSliceVar(&opts.events, "events", nil, "Copyset events (default CREATE,DELETE,MODIFY)")
	flags.BoolVarP(&opts.force, "force", "f", false, "Overwrite an existing document")
	flags.BoolVar(&opts.nonInteractive, "non-interactive", false, "Never prompt")
	return cmd
}

// prompt fills opts from an interactive form.
func (o *initOptions) prompt() error {
	files := strings.Join(o.files, "\n")
	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Copyset name").Value(&o.name).Validate(required),
			huh.NewInput().Title("Source directory").Value(&o.source).Validate(required),
			huh.NewInput().Title("Target directory").Value(&o.target).Validate(required),
		),
		huh.NewGroup(
			huh.NewText().
				Title("Files to mirror").
				Description("One per line, relative to the source directory").
				Value(&files),
			huh.NewMultiSelect[string]().
				Title("Events").
				Description("Leave empty for CREATE, DELETE, MODIFY").
				Options(huh.NewOptions(mask.Names()...)...).
				Value(&o.events),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	o.files = o.files[:0]
	for _, line := range strings.Split(files, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			o.files = append(o.files, line)
		}
	}
	return nil
}

// document builds the copyset document described by o.
func (o *initOptions) document() *config.Config {
	set := config.Copyset{
		Name:   o.name,
		Source: o.source,
		Target: o.target,
	}
	if len(o.events) > 0 {
		set.Events = config.EventList(o.events)
	}
	for _, file := range o.files {
		set.Targets = append(set.Targets, config.Target{Source: file})
	}
	return &config.Config{Copysets: []config.Copyset{set}}
}

func encodeDocument(cfg *config.Config, format config.Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case config.FormatYAML:
		buf.WriteString("# container-copier copysets\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	default:
		buf.WriteString("# container-copier copysets\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (c *cli) runInit(o *initOptions) error {
	format := config.FormatFor(o.output)
	data, err := encodeDocument(o.document(), format)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	// The written document must load as-is.
	if _, err := config.Parse(data, format); err != nil {
		return err
	}

	if !o.force {
		if _, err := os.Stat(o.output); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", o.output)
		}
	}
	if dir := filepath.Dir(o.output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(o.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", o.output, err)
	}

	fmt.Fprintf(c.stdout, "%s Wrote %s\n", ui.RenderPass("✓"), ui.RenderAccent(o.output))
	fmt.Fprintf(c.stdout, "   Run 'container-copier check --config %s' to review it\n", o.output)
	return nil
}

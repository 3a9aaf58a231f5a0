package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/containercopier/container-copier/internal/config"
	"github.com/containercopier/container-copier/internal/daemon"
	"github.com/containercopier/container-copier/internal/ui"
)

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the copyset document and show the resolved watches",
		Long: `Load and validate the copyset document, then list every target with its
resolved paths, effective events and whether an initial copy would happen.

Nothing is copied and no watch is registered.`,
		Args: cobra.NoArgs,
		RunE: c.runCheck,
	}
}

func (c *cli) runCheck(cmd *cobra.Command, _ []string) error {
	s, err := c.settings()
	if err != nil {
		return err
	}
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		fmt.Fprintf(c.stdout, "%s %s is invalid\n", ui.RenderFail("✗"), s.ConfigPath)
		return err
	}

	logger, closeLog, err := c.logger(s)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	steps, err := daemon.Plan(cfg, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.stdout, "%s %s is valid\n", ui.RenderPass("✓"), ui.RenderAccent(s.ConfigPath))
	if len(steps) == 0 {
		fmt.Fprintf(c.stdout, "%s no targets configured\n", ui.RenderWarn("⚠"))
		return nil
	}

	rows := make([][]string, 0, len(steps))
	var looping []string
	initial := 0
	for _, step := range steps {
		if step.Watch.Mask.RetriggersOnRead() {
			looping = append(looping, step.Watch.Target)
		}
		copyNote := ui.RenderMuted("no")
		if step.InitialCopy {
			copyNote = ui.RenderWarn("yes")
			initial++
		}
		rows = append(rows, []string{
			step.Watch.Copyset,
			step.Watch.Source,
			step.Watch.Target,
			strings.Join(step.Watch.Mask.List(), ","),
			copyNote,
		})
	}
	fmt.Fprintln(c.stdout, ui.Table([]string{"COPYSET", "SOURCE", "TARGET", "EVENTS", "INITIAL COPY"}, rows))
	fmt.Fprintf(c.stdout, "%d targets in %d copysets, %d initial copies pending\n",
		len(steps), len(cfg.Copysets), initial)
	for _, target := range looping {
		fmt.Fprintf(c.stdout, "%s %s: events include reads of the source; each copy will trigger another copy\n",
			ui.RenderWarn("⚠"), target)
	}
	return nil
}

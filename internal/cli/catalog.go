package cli

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/overlay/pkg/catalog"
	"github.com/matzehuels/overlay/pkg/errors"
	"github.com/matzehuels/overlay/pkg/fetch"
)

// catalogCommand creates the preset catalog command.
func (c *CLI) catalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the preset catalog",
	}

	cmd.AddCommand(c.catalogListCommand())
	cmd.AddCommand(c.catalogPickCommand())

	return cmd
}

// catalogListCommand creates the "catalog list" subcommand.
func (c *CLI) catalogListCommand() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.loadCatalog(cmd)
			if err != nil {
				return err
			}
			entries = filterByTag(entries, tag)
			if len(entries) == 0 {
				printInfo("No presets")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), presetTable(entries, -1))
			return nil
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only list presets with this tag")
	return cmd
}

// catalogPickCommand creates the "catalog pick" subcommand.
func (c *CLI) catalogPickCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pick",
		Short: "Pick a preset interactively and print its reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := c.loadCatalog(cmd)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("No presets")
				return nil
			}

			final, err := tea.NewProgram(NewPresetListModel(entries), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return fmt.Errorf("preset picker: %w", err)
			}
			m, ok := final.(PresetListModel)
			if !ok || m.Selected == nil {
				return nil
			}

			ref := fetch.PresetPrefix + m.Selected.ID
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			printNextStep("Render with it", "overlay render -b <background> --image "+ref)
			return nil
		},
	}
}

func (c *CLI) loadCatalog(cmd *cobra.Command) ([]catalog.Entry, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := cfg.OpenCatalog(cmd.Context())
	if err != nil {
		return nil, err
	}
	if cat == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no catalog configured (set [catalog] file or mongo_uri)")
	}
	defer cat.Close()
	return cat.List(cmd.Context())
}

func filterByTag(entries []catalog.Entry, tag string) []catalog.Entry {
	if tag == "" {
		return entries
	}
	var out []catalog.Entry
	for _, e := range entries {
		for _, t := range e.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// presetTable renders entries as a bordered table, highlighting the row at
// cursor (-1 for none).
func presetTable(entries []catalog.Entry, cursor int) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, len(entries))
	for i, e := range entries {
		width := "—"
		if e.WidthPercent > 0 {
			width = strconv.FormatFloat(e.WidthPercent, 'f', -1, 64) + "%"
		}
		rows[i] = []string{e.ID, e.Title(), width, strings.Join(e.Tags, ", ")}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Name", "Width", "Tags").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1: // header
				return headerStyle
			case row == cursor:
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			case col == 0:
				return StyleHighlight
			default:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
		}).
		Render()
}

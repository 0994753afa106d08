// Package cli: options.go implements the "allotment options" command.
//
// The options command imports a preference file without allocating and
// shows what the import discovered: every option with the number of
// participants ranking it at each rank, plus the participant renames,
// option spelling merges and preference violations applied on the way.
// With --template it prints a YAML capacity configuration to fill in.
package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/allotment/internal/capacity"
	"github.com/mmr-tortoise/allotment/internal/model"
	"github.com/mmr-tortoise/allotment/internal/preference"
	"github.com/mmr-tortoise/allotment/internal/report"
	"github.com/mmr-tortoise/allotment/internal/roster"
)

// optionsFlags holds the flag values for the options command.
type optionsFlags struct {
	preferences string // --preferences: preference file
	capacities  string // --capacities: optional config for aliases and capacities
	template    bool   // --template: print a capacity config template
	places      int    // --places: capacity written into the template
}

// NewOptionsCommand creates the "options" cobra command.
func NewOptionsCommand() *cobra.Command {
	flags := &optionsFlags{}

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the options discovered in a preference file",
		Long: `Import a preference file and list every discovered option with its demand
per rank, after repeated preferences were marked and duplicate spellings
merged.

Examples:
  allotment options -p prefs.csv
  allotment options -p prefs.csv -c capacities.yaml --format json
  allotment options -p prefs.csv --template --places 10 > capacities.yaml`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptions(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.preferences, "preferences", "p", "", "Preference file (.csv, .yaml, .json)")
	cmd.Flags().StringVarP(&flags.capacities, "capacities", "c", "", "Capacity config to apply aliases and show capacities")
	cmd.Flags().BoolVar(&flags.template, "template", false, "Print a YAML capacity config template")
	cmd.Flags().IntVar(&flags.places, "places", 0, "Capacity for every option in the template")

	return cmd
}

// optionDemand is one row of the options listing.
type optionDemand struct {
	Option   string `json:"option" yaml:"option"`
	Capacity *int   `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	First    int    `json:"first" yaml:"first"`
	Second   int    `json:"second" yaml:"second"`
	Third    int    `json:"third" yaml:"third"`
}

// optionsResult is the structured output of the options command.
type optionsResult struct {
	Participants int                 `json:"participants" yaml:"participants"`
	Options      []optionDemand      `json:"options" yaml:"options"`
	Renames      []preference.Rename `json:"renames" yaml:"renames"`
	Merges       []capacity.Merge    `json:"merges" yaml:"merges"`
	Violations   int                 `json:"violations" yaml:"violations"`
}

// runOptions is the main logic function for the options command.
func runOptions(out io.Writer, flags *optionsFlags) error {
	// Step 1: Load the optional capacity config.
	var cfg *roster.CapacityConfig
	if flags.capacities != "" {
		var err error
		if cfg, err = loadCapacityConfig(flags.capacities); err != nil {
			return err
		}
	}

	// Step 2: Import preferences.
	var aliases map[string]string
	if cfg != nil {
		aliases = cfg.Aliases
	}
	r, err := importRoster(flags.preferences, aliases)
	if err != nil {
		return err
	}

	// Step 3: Template mode short-circuits the listing.
	if flags.template {
		if flags.places < 0 {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --places", capacity.ErrNegativeCapacity)
		}
		data, err := roster.CapacityTemplate(r.Table, flags.places)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to render template", err)
		}
		_, err = out.Write(data)
		return err
	}

	// Step 4: Build and print the listing.
	result, err := buildOptionsResult(r, cfg)
	if err != nil {
		return err
	}
	return printOptionsResult(out, result)
}

// buildOptionsResult counts per-rank demand for every discovered option.
func buildOptionsResult(r *roster.Roster, cfg *roster.CapacityConfig) (*optionsResult, error) {
	var caps map[string]int
	if cfg != nil {
		var err error
		if caps, err = resolveCapacities(cfg, r.Table); err != nil {
			return nil, err
		}
	}

	rows := make([]optionDemand, 0, r.Table.Len())
	index := make(map[string]int, r.Table.Len())
	for _, o := range r.Table.Options() {
		row := optionDemand{Option: o.ID}
		if c, ok := caps[o.ID]; ok {
			row.Capacity = &c
		}
		index[o.ID] = len(rows)
		rows = append(rows, row)
	}

	for _, p := range r.Store.Participants() {
		for rank, choice := range p.Choices {
			i, ok := index[choice]
			if !ok {
				continue
			}
			switch model.Rank(rank) {
			case model.RankFirst:
				rows[i].First++
			case model.RankSecond:
				rows[i].Second++
			case model.RankThird:
				rows[i].Third++
			}
		}
	}

	return &optionsResult{
		Participants: r.Store.Len(),
		Options:      rows,
		Renames:      r.Renames,
		Merges:       r.Merges,
		Violations:   r.Violations,
	}, nil
}

// printOptionsResult outputs the listing in the --format encoding.
func printOptionsResult(out io.Writer, result *optionsResult) error {
	switch outputFormat {
	case report.FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case report.FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	case report.FormatCSV:
		return printOptionsCSV(out, result)
	}
	printOptionsText(out, result)
	return nil
}

// printOptionsCSV writes one row per option.
func printOptionsCSV(out io.Writer, result *optionsResult) error {
	cw := csv.NewWriter(out)
	if err := cw.Write([]string{"Option", "Capacity", "1st", "2nd", "3rd"}); err != nil {
		return err
	}
	for _, o := range result.Options {
		if err := cw.Write([]string{o.Option, formatCapacity(o.Capacity), strconv.Itoa(o.First), strconv.Itoa(o.Second), strconv.Itoa(o.Third)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// printOptionsText outputs the listing as a fixed-width table:
//
//	OPTION               CAPACITY   1ST    2ND    3RD
//	Math                 12         8      3      1
//	Art                  -          2      5      4
func printOptionsText(out io.Writer, result *optionsResult) {
	fmt.Fprintf(out, "%d option(s) discovered for %d participant(s)\n\n", len(result.Options), result.Participants)

	fmt.Fprintf(out, "%-20s %-10s %-6s %-6s %s\n", "OPTION", "CAPACITY", "1ST", "2ND", "3RD")
	for _, o := range result.Options {
		fmt.Fprintf(out, "%-20s %-10s %-6d %-6d %d\n", o.Option, formatCapacity(o.Capacity), o.First, o.Second, o.Third)
	}

	if len(result.Renames) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Renamed participants:")
		for _, rn := range result.Renames {
			fmt.Fprintf(out, "  %s -> %s (line %d)\n", rn.Original, rn.Assigned, rn.Line)
		}
	}
	if len(result.Merges) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Merged spellings:")
		for _, m := range result.Merges {
			fmt.Fprintf(out, "  %q -> %q\n", m.Dropped, m.Kept)
		}
	}
	if result.Violations > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "%d participant(s) repeated a preference; repeats are marked %s\n",
			result.Violations, model.ViolationOption)
	}
}

// formatCapacity renders an optional capacity, "-" when unknown.
func formatCapacity(c *int) string {
	if c == nil {
		return "-"
	}
	return strconv.Itoa(*c)
}

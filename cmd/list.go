package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/assetpipe/internal/pipeline"
	"github.com/conneroisu/assetpipe/internal/tasks"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"list", "l"},
	Short:   "List the available tasks",
	Long: `List every task in build order with the kind of source it reads.

Examples:
  assetpipe tasks             # Table
  assetpipe tasks -o json     # JSON
  assetpipe tasks -o yaml     # YAML`,
	Args: cobra.NoArgs,
	RunE: runTasksList,
}

var tasksFormat string

func init() {
	rootCmd.AddCommand(tasksCmd)

	tasksCmd.Flags().StringVarP(&tasksFormat, "output", "o", "table", "Output format (table|json|yaml)")
	AddFlagValidation(tasksCmd, "output", formatValidator("table", "json", "yaml"))
}

// taskEntry is the listing form of a task.
type taskEntry struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Kind        string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Description string `json:"description" yaml:"description"`
}

func runTasksList(cmd *cobra.Command, args []string) error {
	entries := listTasks(tasks.Definitions())
	out := cmd.OutOrStdout()

	switch strings.ToLower(tasksFormat) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(entries)
	case "table":
		return outputTaskTable(out, entries)
	default:
		return fmt.Errorf("unsupported format: %s", tasksFormat)
	}
}

func listTasks(defs []*pipeline.Task) []taskEntry {
	title := cases.Title(language.English)
	entries := make([]taskEntry, 0, len(defs))
	for _, task := range defs {
		entry := taskEntry{
			Name:        task.Name,
			Title:       title.String(strings.ReplaceAll(task.Name, "-", " ")),
			Description: task.Description,
		}
		if task.Kind != 0 {
			entry.Kind = task.Kind.String()
		}
		entries = append(entries, entry)
	}
	return entries
}

func outputTaskTable(out io.Writer, entries []taskEntry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tCOMMAND\tSOURCE\tDESCRIPTION")
	fmt.Fprintln(w, "----\t-------\t------\t-----------")
	for _, e := range entries {
		kind := e.Kind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Title, e.Name, kind, e.Description)
	}
	return w.Flush()
}

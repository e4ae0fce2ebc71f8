package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telegram-files/tfsync/internal/config"
)

// newPrefsCmd creates the 'prefs' command group.
func newPrefsCmd() *cobra.Command {
	var prefsFile string

	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change file list display preferences",
		Long: `Display preferences are stored per list in prefs.ini next to the
config file.

Fields:
  row_height  s, m or l
  layout      detailed or gallery
  columns     ordered comma list of content,type,size,status,extra,actions;
              a leading "-" hides a column`,
	}
	prefsCmd.PersistentFlags().StringVar(&prefsFile, "prefs-file", "", "Preferences file (default: prefs.ini in the config directory)")

	prefsCmd.AddCommand(&cobra.Command{
		Use:   "show [key]",
		Short: "Show preferences",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := DefaultPrefsKey
			if len(args) == 1 {
				key = args[0]
			}
			store, err := config.NewPrefsStore(prefsFile)
			if err != nil {
				return err
			}
			p, err := store.Get(key)
			if err != nil {
				return err
			}
			printPrefs(cmd.OutOrStdout(), key, p)
			return nil
		},
	})

	prefsCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <field> <value>",
		Short: "Change one preference",
		Example: `  tfsync prefs set telegramFileList layout gallery
  tfsync prefs set telegramFileList columns content,status,-extra`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := config.NewPrefsStore(prefsFile)
			if err != nil {
				return err
			}
			p, err := store.Update(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n\n", store.Path())
			printPrefs(cmd.OutOrStdout(), args[0], p)
			return nil
		},
	})

	return prefsCmd
}

func printPrefs(w io.Writer, key string, p config.ListPrefs) {
	var hidden []string
	for _, c := range p.Columns {
		if !c.Visible {
			hidden = append(hidden, c.ID)
		}
	}
	fmt.Fprintf(w, "[%s]\n", key)
	fmt.Fprintf(w, "  Row height: %s\n", p.RowHeight)
	fmt.Fprintf(w, "  Layout:     %s\n", p.Layout)
	fmt.Fprintf(w, "  Columns:    %s\n", strings.Join(p.VisibleColumns(), ", "))
	if len(hidden) > 0 {
		fmt.Fprintf(w, "  Hidden:     %s\n", strings.Join(hidden, ", "))
	}
}

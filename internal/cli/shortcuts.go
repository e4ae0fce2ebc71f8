package cli

import (
	"github.com/spf13/cobra"
)

// AddShortcuts adds short aliases for the most used commands.
func AddShortcuts(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsShortcut())
	rootCmd.AddCommand(newDlShortcut())
}

// newLsShortcut creates 'ls', shortcut for 'files'.
func newLsShortcut() *cobra.Command {
	cmd := newFilesCmd()
	cmd.Use = "ls"
	cmd.Short = "List files (shortcut for 'files')"
	cmd.Long = `Shortcut for listing the chat's files.

Equivalent to: tfsync files

Examples:
  tfsync ls
  tfsync ls -t photo -n 2`
	return cmd
}

// newDlShortcut creates 'dl', shortcut for 'download --wait'.
func newDlShortcut() *cobra.Command {
	cmd := newDownloadCmd()
	cmd.Use = "dl <chatId:fileId> [chatId:fileId...]"
	cmd.Short = "Download files and wait (shortcut for 'download --wait')"
	cmd.Long = `Shortcut for starting downloads and following them to the end.

Equivalent to: tfsync download --wait <keys>

Examples:
  tfsync dl 42
  tfsync dl -- -1001234:42 -1001234:43`
	_ = cmd.Flags().Set("wait", "true")
	cmd.Flags().Lookup("wait").DefValue = "true"
	return cmd
}

package bootenv

import (
	"time"

	"github.com/spf13/cobra"
)

// Actions defines boot environment operations.
type Actions interface {
	List(cmd *cobra.Command, args []string) error
	Status(cmd *cobra.Command, args []string) error
	Activate(cmd *cobra.Command, args []string) error
	Watch(cmd *cobra.Command, args []string) error
}

// Commands builds the boot environment command set.
func Commands(h Actions) []*cobra.Command {
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List boot environments, oldest first",
		RunE:    h.List,
	}
	listCmd.Flags().Bool("json", false, "print JSON instead of a table")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active boot environment and the reboot target",
		RunE:  h.Status,
	}

	activateCmd := &cobra.Command{
		Use:   "activate REF",
		Short: "Select a boot environment (object path, name, or name prefix) for the next boot",
		Args:  cobra.ExactArgs(1),
		RunE:  h.Activate,
	}
	activateCmd.Flags().Bool("permanent", false, "boot it on every reboot instead of only the next one")
	activateCmd.Flags().Bool("wait", false, "wait until the service reports the new reboot target")
	activateCmd.Flags().Duration("timeout", 30*time.Second, "how long to wait for the service") //nolint:mnd

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow boot environment changes until interrupted",
		RunE:  h.Watch,
	}

	return []*cobra.Command{listCmd, statusCmd, activateCmd, watchCmd}
}

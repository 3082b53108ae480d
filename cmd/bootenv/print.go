package bootenv

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/projecteru2/bootenv/engine"
	"github.com/projecteru2/bootenv/types"
	"github.com/projecteru2/bootenv/utils"
)

var (
	activeColor = color.New(color.FgGreen, color.Bold)
	targetColor = color.New(color.FgYellow)
)

// flags renders the state markers of one environment, e.g. "active,once".
func flags(env *types.BootEnvironment) string {
	var out []string
	if env.Active {
		out = append(out, activeColor.Sprint("active"))
	}
	if env.NextBoot {
		out = append(out, targetColor.Sprint("next"))
	}
	if env.BootOnce {
		out = append(out, targetColor.Sprint("once"))
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func printTable(w io.Writer, envs []*types.BootEnvironment, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd
	_, _ = fmt.Fprintln(tw, "NAME\tDESCRIPTION\tFLAGS\tCREATED\tPATH")
	for _, env := range envs {
		desc := "-"
		if env.Description != nil {
			desc = *env.Description
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			env.Name,
			desc,
			flags(env),
			utils.HumanAge(env.Created, now),
			env.ID,
		)
	}
	tw.Flush() //nolint:errcheck,gosec
}

func printStatus(w io.Writer, snap *engine.Snapshot) {
	if active := snap.ActiveRecord(); active != nil {
		_, _ = fmt.Fprintf(w, "Active:      %s\n", activeColor.Sprint(active.Label()))
	} else {
		_, _ = fmt.Fprintln(w, "Active:      no active boot environment")
	}
	target := snap.RebootTarget()
	switch {
	case target == nil:
		_, _ = fmt.Fprintln(w, "Reboot into: -")
	case target.BootOnce:
		_, _ = fmt.Fprintf(w, "Reboot into: %s (once)\n", targetColor.Sprint(target.Label()))
	default:
		_, _ = fmt.Fprintf(w, "Reboot into: %s\n", targetColor.Sprint(target.Label()))
	}
}

func printChange(w io.Writer, c engine.Change, now time.Time) {
	stamp := now.Format(time.TimeOnly)
	snap := c.Snapshot
	switch c.Kind {
	case types.EventConnecting, types.EventConnected, types.EventDisconnected:
		_, _ = fmt.Fprintf(w, "%s  %s\n", stamp, c.Kind)
	default:
		target := "-"
		if t := snap.RebootTarget(); t != nil {
			target = t.Label()
		}
		_, _ = fmt.Fprintf(w, "%s  %s: %d boot environments, reboot into %s\n",
			stamp, c.Kind, len(snap.Environments), target)
	}
}

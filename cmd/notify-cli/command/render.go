package command

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"libraryhub/internal/notification"
)

// colorFor maps the config colour names onto terminal colours.
func colorFor(cfg notification.Config) *color.Color {
	switch cfg.Color {
	case "green":
		return color.New(color.FgGreen)
	case "orange":
		return color.New(color.FgYellow)
	case "red":
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgBlue)
	}
}

func printNotification(w io.Writer, n *notification.Notification) {
	cfg := notification.ConfigFor(n.NotificationType)

	marker := "●"
	if n.IsRead {
		marker = " "
	}
	when := "-"
	if ts := n.Time(); !ts.IsZero() {
		when = humanize.Time(ts.Time)
	}

	label := colorFor(cfg).Sprintf("%-9s", cfg.Label)
	fmt.Fprintf(w, "%s #%-6d %s %s", marker, n.ID, label, n.Title)
	if text := n.Text(); text != "" {
		fmt.Fprintf(w, " - %s", text)
	}
	fmt.Fprintln(w, color.HiBlackString(" (%s)", when))
}

func printNotifications(w io.Writer, list []notification.Notification) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	for i := range list {
		printNotification(w, &list[i])
	}
}

func printTypes(w io.Writer) {
	for _, t := range notification.Types {
		cfg := notification.TypeConfig[t]
		fmt.Fprintf(w, "%-10s %s  icon=%s priority=%s\n",
			t, colorFor(cfg).Sprintf("%-9s", cfg.Label), cfg.Icon, strings.ToUpper(string(cfg.Priority)))
	}
}

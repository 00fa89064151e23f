package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"libraryhub/internal/notification"
)

func TestPrintNotifications(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	printNotifications(&buf, []notification.Notification{
		{
			ID:               7,
			NotificationType: notification.TypeOverdue,
			Title:            "Dune",
			Message:          "Return it today",
			CreatedDate:      notification.NewTimestamp(time.Now().Add(-3 * time.Hour)),
		},
		{ID: 8, NotificationType: "SOMETHING_NEW", Title: "Misc", IsRead: true},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "● #7")
	assert.Contains(t, lines[0], "Overdue")
	assert.Contains(t, lines[0], "Dune - Return it today")
	assert.Contains(t, lines[0], "3 hours ago")
	assert.Contains(t, lines[1], "New Book")
	assert.Contains(t, lines[1], "(-)")
}

func TestPrintNotifications_Empty(t *testing.T) {
	var buf bytes.Buffer
	printNotifications(&buf, nil)
	assert.Equal(t, "No notifications.\n", buf.String())
}

func TestPrintTypes(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	printTypes(&buf)

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, "\n"))
	assert.Contains(t, out, "REMINDER")
	assert.Contains(t, out, "priority=HIGH")
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, gin.DebugMode, ginMode(true))
	assert.Equal(t, gin.ReleaseMode, ginMode(false))
}

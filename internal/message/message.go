// Package message renders the HTML body and color of outbound chat notifications.
package message

import (
	"html"
	"strings"

	"hiprelay/internal/event"
	"hiprelay/internal/project"
)

// Color is the room message background color understood by the chat API.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Purple Color = "purple"
)

var levelColors = map[string]Color{
	"ALERT":   Red,
	"ERROR":   Red,
	"WARNING": Yellow,
	"INFO":    Green,
	"DEBUG":   Purple,
}

// ColorForLevel maps a severity label to a color. Unknown labels are purple.
func ColorForLevel(level string) Color {
	if c, ok := levelColors[normalizeLevel(level)]; ok {
		return c
	}
	return Purple
}

// H is HTML that is already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for an HTML message body.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

// Link builds an anchor; both the href and the text are escaped.
func Link(text, url string) H {
	return H(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(text) + `</a>`)
}

// FormatAlert renders "[ALERT]<name> <message> <url>".
// The url is appended verbatim.
func FormatAlert(cfg project.Config, ev event.Alert) (string, Color) {
	var b strings.Builder
	b.WriteString("[ALERT]")
	b.WriteString(projectName(cfg, ev.ProjectName).String())
	b.WriteString(" ")
	b.WriteString(Esc(ev.Message).String())
	b.WriteString(" ")
	b.WriteString(ev.URL)
	return b.String(), levelColors["ALERT"]
}

// FormatGroupEvent renders "[LEVEL]<name> <summary> [<a href="url">view</a>]".
func FormatGroupEvent(cfg project.Config, ev event.Group) (string, Color) {
	level := normalizeLevel(ev.Level)
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(Esc(level).String())
	b.WriteString("]")
	b.WriteString(projectName(cfg, ev.ProjectName).String())
	b.WriteString(" ")
	b.WriteString(Esc(ev.Summary).String())
	b.WriteString(" [")
	b.WriteString(Link("view", ev.URL).String())
	b.WriteString("]")
	return b.String(), ColorForLevel(level)
}

func projectName(cfg project.Config, name string) H {
	if !cfg.IncludeProjectName {
		return ""
	}
	return " " + wrap("strong", Esc(name))
}

func normalizeLevel(level string) string {
	return strings.ToUpper(strings.TrimSpace(level))
}

package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"hiprelay/internal/event"
	"hiprelay/internal/project"
)

func TestFormatGroupEvent(t *testing.T) {
	text, color := FormatGroupEvent(project.Config{}, event.Group{
		GroupID: "42",
		Level:   "ERROR",
		Summary: "NullPointer",
		URL:     "http://x/g/42",
	})
	assert.Equal(t, `[ERROR] NullPointer [<a href="http://x/g/42">view</a>]`, text)
	assert.Equal(t, Red, color)
}

func TestFormatGroupEventUppercasesLevel(t *testing.T) {
	text, color := FormatGroupEvent(project.Config{}, event.Group{Level: "warning", Summary: "disk", URL: "u"})
	assert.True(t, strings.HasPrefix(text, "[WARNING] disk"))
	assert.Equal(t, Yellow, color)
}

func TestFormatGroupEventProjectName(t *testing.T) {
	text, _ := FormatGroupEvent(project.Config{IncludeProjectName: true}, event.Group{
		ProjectName: "Shop & <Co>",
		Level:       "info",
		Summary:     "ok",
		URL:         `http://x/?a=1&b="2"`,
	})
	assert.Equal(t,
		`[INFO] <strong>Shop &amp; &lt;Co&gt;</strong> ok [<a href="http://x/?a=1&amp;b=&#34;2&#34;">view</a>]`,
		text)
}

func TestFormatAlert(t *testing.T) {
	text, color := FormatAlert(project.Config{}, event.Alert{
		Message: `disk <b>full</b>`,
		URL:     "http://x/alerts/7?a=1&b=2",
	})
	assert.Equal(t, `[ALERT] disk &lt;b&gt;full&lt;/b&gt; http://x/alerts/7?a=1&b=2`, text)
	assert.Equal(t, Red, color)

	text, _ = FormatAlert(project.Config{IncludeProjectName: true}, event.Alert{ProjectName: "api", Message: "m", URL: "u"})
	assert.Equal(t, `[ALERT] <strong>api</strong> m u`, text)
}

func TestColorForLevelIsTotal(t *testing.T) {
	cases := map[string]Color{
		"ALERT":   Red,
		"error":   Red,
		"Warning": Yellow,
		"info":    Green,
		"DEBUG":   Purple,
		"fatal":   Purple,
		"":        Purple,
		"<x>":     Purple,
	}
	for level, want := range cases {
		assert.Equal(t, want, ColorForLevel(level), level)
	}
}

func TestEscapedFieldsCarryNoRawMarkup(t *testing.T) {
	evil := `"><script>alert('x')</script>&`
	text, _ := FormatGroupEvent(project.Config{IncludeProjectName: true}, event.Group{
		ProjectName: evil, Level: evil, Summary: evil, URL: evil,
	})
	assert.NotContains(t, text, "<script>")
	assert.NotContains(t, text, `"><`)
	// Only the markup we emit ourselves remains.
	stripped := strings.NewReplacer("<strong>", "", "</strong>", "", `<a href="`, "", `">view</a>`, "").Replace(text)
	assert.NotContains(t, stripped, "<")
	assert.NotContains(t, stripped, ">")
	assert.NotContains(t, stripped, `"`)
}

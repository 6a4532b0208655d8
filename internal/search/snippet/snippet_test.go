package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractShortContentReturnedWhole(t *testing.T) {
	const content = "deploy is scheduled for friday"
	got := Extract(content, []string{"deploy"}, DefaultRadius)
	assert.Equal(t, content, got)
}

func TestExtractWindowsLongContent(t *testing.T) {
	content := strings.Repeat("padding ", 30) + "deploy" + strings.Repeat(" trailing", 30)

	got := Extract(content, []string{"deploy"}, DefaultRadius)

	assert.Contains(t, got, "deploy")
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, utf8.RuneCountInString(got), utf8.RuneCountInString(content))
}

func TestExtractMatchAtStartHasNoLeadingEllipsis(t *testing.T) {
	content := "deploy" + strings.Repeat(" trailing", 40)

	got := Extract(content, []string{"deploy"}, DefaultRadius)

	assert.True(t, strings.HasPrefix(got, "deploy"))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestExtractMatchAtEndHasNoTrailingEllipsis(t *testing.T) {
	content := strings.Repeat("leading ", 40) + "deploy"

	got := Extract(content, []string{"deploy"}, DefaultRadius)

	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "deploy"))
}

func TestExtractCaseInsensitive(t *testing.T) {
	content := strings.Repeat("x ", 60) + "DEPLOY window" + strings.Repeat(" y", 60)

	got := Extract(content, []string{"deploy"}, DefaultRadius)

	assert.Contains(t, got, "DEPLOY", "original casing is preserved in the snippet")
}

func TestExtractPhraseTakesPriorityOverTerm(t *testing.T) {
	content := "friday is fine " + strings.Repeat("x ", 60) + "deploy friday at noon" + strings.Repeat(" y", 30)

	got := Extract(content, []string{"deploy friday", "friday"}, DefaultRadius)

	assert.Contains(t, got, "deploy friday")
}

func TestExtractFallbackWhenNoLiteralMatch(t *testing.T) {
	content := strings.Repeat("alpha beta gamma ", 20)

	got := Extract(content, []string{"absent"}, DefaultRadius)

	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 100+len("..."))
	assert.True(t, strings.HasPrefix(content, strings.TrimSuffix(got, "...")[:50]))
}

func TestExtractFallbackShortContent(t *testing.T) {
	const content = "alpha beta"
	got := Extract(content, []string{"absent"}, DefaultRadius)
	assert.Equal(t, content, got)
}

func TestExtractDoesNotCutWordsAtWindowEdges(t *testing.T) {
	content := strings.Repeat("wordpadding ", 20) + "deploy" + strings.Repeat(" wordtrailing", 20)

	got := Extract(content, []string{"deploy"}, DefaultRadius)

	body := strings.TrimSuffix(strings.TrimPrefix(got, "..."), "...")
	for _, w := range strings.Fields(body) {
		assert.Contains(t, []string{"wordpadding", "deploy", "wordtrailing"}, w)
	}
}

func TestExtractUnicodeContent(t *testing.T) {
	content := strings.Repeat("日本語のテキスト ", 20) + "デプロイ" + strings.Repeat(" 追加の文字", 20)

	got := Extract(content, []string{"デプロイ"}, DefaultRadius)

	assert.Contains(t, got, "デプロイ")
	assert.True(t, utf8.ValidString(got))
}

func TestExtractMatchAfterCaseShiftingRunes(t *testing.T) {
	// "İ" lowers to a shorter byte sequence, so a byte index into the
	// lowered content would land the window before the actual match.
	content := strings.Repeat("İstanbul ", 20) + "deploy window" + strings.Repeat(" trailing", 20)

	got := Extract(content, []string{"deploy window", "deploy"}, 10)

	assert.Contains(t, got, "deploy window")
	assert.True(t, utf8.ValidString(got))
}

func TestExtractMatchInsideByteShrinkingRune(t *testing.T) {
	// The Kelvin sign is three bytes and lowers to a one-byte "k"; the
	// returned window must still open on a rune boundary.
	content := strings.Repeat("Kelvin ", 25) + "deploy" + strings.Repeat(" trailing", 25)

	got := Extract(content, []string{"deploy"}, 10)

	assert.Contains(t, got, "deploy")
	assert.True(t, utf8.ValidString(got))
}

func TestExtractZeroRadiusUsesDefault(t *testing.T) {
	content := strings.Repeat("pad ", 50) + "deploy" + strings.Repeat(" pad", 50)

	got := Extract(content, []string{"deploy"}, 0)

	assert.Contains(t, got, "deploy")
	assert.True(t, strings.HasPrefix(got, "..."))
}

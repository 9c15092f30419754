package automation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_NoPatternAlwaysMatches(t *testing.T) {
	capture, ok, err := DefaultMatcher().Extract("anything at all", "", DataTypeNone)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Capture{"raw": "anything at all"}, capture)
}

func TestExtract_LotteryNumbers(t *testing.T) {
	m := DefaultMatcher()

	capture, ok, err := m.Extract("1 2 3 4 5 6 7", `\d+`, DataTypeLotteryNumbers)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, capture["numbers"])
	assert.Equal(t, "1 2 3 4 5 6 7", capture["raw"])

	capture, ok, err = m.Extract("0 61 5 70 07", `\d+`, DataTypeLotteryNumbers)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{5, 7}, capture["numbers"], "values outside 1..60 are dropped")
}

func TestExtract_Money(t *testing.T) {
	m := DefaultMatcher()

	capture, ok, err := m.Extract("Total: R$ 12,50", `R\$`, DataTypeMoney)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 12.50, capture["value"], 1e-9)

	capture, ok, err = m.Extract("paguei 30", `paguei`, DataTypeMoney)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 30.0, capture["value"], 1e-9)

	capture, ok, err = m.Extract("paguei nada", `paguei`, DataTypeMoney)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, capture, "value")
}

func TestExtract_NamedGroupsFromFirstMatch(t *testing.T) {
	capture, ok, err := DefaultMatcher().Extract("Ana quer 3, Bia quer 5", `(?P<name>\w+) quer (?P<qty>\d+)`, DataTypeText)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", capture["name"])
	assert.Equal(t, "3", capture["qty"])
}

func TestExtract_CaseInsensitive(t *testing.T) {
	_, ok, err := DefaultMatcher().Extract("MEU PALPITE", `palpite`, DataTypeNone)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtract_NoMatch(t *testing.T) {
	capture, ok, err := DefaultMatcher().Extract("hello", `\d+`, DataTypeLotteryNumbers)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, capture)
}

func TestExtract_InvalidPattern(t *testing.T) {
	capture, ok, err := DefaultMatcher().Extract("hello", `(`, DataTypeNone)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Nil(t, capture)
}

func TestExtract_PatternTooLong(t *testing.T) {
	m := Matcher{MaxPatternLength: 8}
	_, ok, err := m.Extract("aaaaaaaaaa", strings.Repeat("a", 9), DataTypeNone)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestExtract_ContentIsClipped(t *testing.T) {
	m := Matcher{MaxContentLength: 5}

	_, ok, err := m.Extract("hello world", `world`, DataTypeNone)
	require.NoError(t, err)
	assert.False(t, ok, "text past the content limit is not searched")

	capture, ok, err := m.Extract("hello world", `hello`, DataTypeNone)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", capture["raw"])
}

func TestClip_KeepsValidUTF8(t *testing.T) {
	assert.Equal(t, "", Matcher{MaxContentLength: 1}.clip("ção"), "a split rune is dropped")
	assert.Equal(t, "ab", Matcher{MaxContentLength: 2}.clip("abc"))
	assert.Equal(t, "abc", Matcher{}.clip("abc"))
}

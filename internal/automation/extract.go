package automation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultMaxPatternLength = 512
	DefaultMaxContentLength = 4096

	lotteryMin   = 1
	lotteryMax   = 60
	lotteryPicks = 6
)

var (
	integerToken = regexp.MustCompile(`\d+`)
	moneyToken   = regexp.MustCompile(`(?i)(?:R\$\s*)?(\d+(?:[.,]\d+)?)`)
)

// Capture is the structured data extracted from one message. It always holds "raw".
type Capture map[string]any

// Matcher applies user supplied patterns. Patterns are compiled with Go's
// RE2 engine, which matches in linear time; the limits cap that factor.
type Matcher struct {
	MaxPatternLength int
	MaxContentLength int
}

// DefaultMatcher uses the default pattern and content limits
func DefaultMatcher() Matcher {
	return Matcher{
		MaxPatternLength: DefaultMaxPatternLength,
		MaxContentLength: DefaultMaxContentLength,
	}
}

// Compile compiles a user supplied pattern case-insensitively
func (m Matcher) Compile(pattern string) (*regexp.Regexp, error) {
	if m.MaxPatternLength > 0 && len(pattern) > m.MaxPatternLength {
		return nil, fmt.Errorf("pattern longer than %d characters", m.MaxPatternLength)
	}
	return regexp.Compile("(?i)" + pattern)
}

// clip bounds the text a user pattern is run against, keeping valid UTF-8
func (m Matcher) clip(content string) string {
	if m.MaxContentLength <= 0 || len(content) <= m.MaxContentLength {
		return content
	}
	clipped := content[:m.MaxContentLength]
	return strings.ToValidUTF8(clipped, "")
}

// Extract applies pattern to content and returns the capture. The bool is
// false when a pattern is set and does not match, or cannot be compiled; the
// error explains a compile failure and is only meant for logging.
func (m Matcher) Extract(content, pattern string, dataType DataType) (Capture, bool, error) {
	capture := Capture{"raw": content}
	if pattern == "" {
		return capture, true, nil
	}

	re, err := m.Compile(pattern)
	if err != nil {
		return nil, false, err
	}

	subject := m.clip(content)
	matches := re.FindAllStringSubmatchIndex(subject, -1)
	if len(matches) == 0 {
		return nil, false, nil
	}

	switch dataType {
	case DataTypeLotteryNumbers:
		capture["numbers"] = lotteryNumbers(subject)
	case DataTypeMoney:
		if value, ok := moneyValue(subject); ok {
			capture["value"] = value
		}
	}

	first := matches[0]
	for i, name := range re.SubexpNames() {
		if name == "" || first[2*i] < 0 {
			continue
		}
		capture[name] = subject[first[2*i]:first[2*i+1]]
	}

	return capture, true, nil
}

// lotteryNumbers keeps the first six integer tokens within [1,60]
func lotteryNumbers(content string) []int {
	numbers := make([]int, 0, lotteryPicks)
	for _, token := range integerToken.FindAllString(content, -1) {
		n, err := strconv.Atoi(token)
		if err != nil || n < lotteryMin || n > lotteryMax {
			continue
		}
		numbers = append(numbers, n)
		if len(numbers) == lotteryPicks {
			break
		}
	}
	return numbers
}

// moneyValue parses the first currency-like token, "," is read as the decimal point
func moneyValue(content string) (float64, bool) {
	match := moneyToken.FindStringSubmatch(content)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

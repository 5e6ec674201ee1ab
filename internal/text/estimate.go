package text

import (
	"regexp"
	"time"
)

// DefaultWordsPerMinute is an average speaking rate.
const DefaultWordsPerMinute = 150

var wordPattern = regexp.MustCompile(`\w+`)

// EstimateReadingTime returns how long text takes to read aloud at wpm
// words per minute, truncated to whole seconds.
func EstimateReadingTime(text string, wpm int) time.Duration {
	if text == "" {
		return 0
	}
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	n := len(wordPattern.FindAllStringIndex(text, -1))
	seconds := n * 60 / wpm
	return time.Duration(seconds) * time.Second
}

package search

import "github.com/hyperjump/tanya/pkg/utils"

// Highlight shortens a passage to a snippet of at most maxLen runes.
func Highlight(content string, maxLen int) string {
	return utils.Truncate(content, maxLen)
}

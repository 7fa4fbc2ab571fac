package indexer

import (
	"strings"

	"github.com/fulvian/devstream/internal/assembler"
)

// DefaultMaxChunkTokens is the target maximum token count per imported memory
const DefaultMaxChunkTokens = 500

// splitChunks packs blank-line separated blocks into chunks of at most
// maxTokens estimated tokens. Oversized blocks are split by line, and
// oversized lines by rune count.
func splitChunks(text string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	maxChars := maxTokens * assembler.CharsPerToken

	var pieces []string
	for _, block := range splitBlocks(text) {
		if len(block) <= maxChars {
			pieces = append(pieces, block)
			continue
		}
		for _, line := range strings.Split(block, "\n") {
			pieces = append(pieces, splitRunes(line, maxChars)...)
		}
	}

	var chunks []string
	var current strings.Builder
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(piece) > maxChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitBlocks splits on blank lines and trims each block
func splitBlocks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var blocks []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.TrimSpace(strings.Join(current, "\n")))
			current = current[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, strings.TrimRight(line, " \t"))
	}
	flush()
	return blocks
}

func splitRunes(s string, maxChars int) []string {
	if len(s) <= maxChars {
		return []string{s}
	}
	var out []string
	runes := []rune(s)
	for len(runes) > 0 {
		n := maxChars
		if n > len(runes) {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

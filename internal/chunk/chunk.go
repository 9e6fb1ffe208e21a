// Package chunk implements the code-aware chunker (Chunker, spec
// component C3): splits file content into line-bounded, semantically
// meaningful windows with line provenance.
package chunk

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the target character count per chunk.
	DefaultChunkSize = 500
	// DefaultOverlap is the retained trailing slice (characters) carried
	// into the next chunk by the line-fallback strategy.
	DefaultOverlap = 100
)

// Piece is one chunk returned by Chunk: a contiguous line range of a
// document with its own content.
type Piece struct {
	Content   string
	LineStart int // 1-based, inclusive
	LineEnd   int // 1-based, inclusive
}

// blockStartPatterns are tried independently against a trimmed line;
// the first match wins. They cover the common function/class/type
// declaration shapes across JS/TS, Python, Go, Rust, Java/C#-family, and
// a catch-all def/class/module form.
var blockStartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(export\s+)?(async\s+)?(function\s+\w+|const\s+\w+\s*=\s*(async\s+)?(\([^)]*\)|[^=])\s*=>|class\s+\w+|interface\s+\w+|type\s+\w+\s*=)`),
	regexp.MustCompile(`^(async\s+)?def\s+\w+|^class\s+\w+`),
	regexp.MustCompile(`^func\s+(\([^)]+\)\s+)?\w+`),
	regexp.MustCompile(`^(pub\s+)?(async\s+)?fn\s+\w+|^impl\s+`),
	regexp.MustCompile(`^(public|private|protected)?\s*(static\s+)?(async\s+)?(class|interface|void|int|string|bool|\w+)\s+\w+\s*[({]`),
	regexp.MustCompile(`^(def\s+\w+|class\s+\w+|module\s+\w+)`),
}

var lineCommentPrefixes = []string{"//", "#", "--", "*"}

func isBlockStart(trimmed string) bool {
	for _, re := range blockStartPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func isLineComment(trimmed string) bool {
	for _, p := range lineCommentPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}

func leadingWhitespace(line string) int {
	n := 0
	for _, r := range line {
		if r == ' ' || r == '\t' {
			n++
			continue
		}
		break
	}
	return n
}

// Chunk splits content into chunks. The code-aware strategy is tried
// first; if it produces zero chunks, the line-fallback strategy runs.
// Returned chunks never contain only whitespace.
func Chunk(content string, chunkSize, overlap int) []Piece {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}

	if strings.TrimSpace(content) == "" {
		return nil
	}

	chunks := chunkCodeAware(content, chunkSize)
	if len(chunks) > 0 {
		return chunks
	}
	return chunkLineFallback(content, chunkSize, overlap)
}

type accumulator struct {
	lines     []string
	lineStart int
}

func (a *accumulator) reset(lineStart int) {
	a.lines = nil
	a.lineStart = lineStart
}

func (a *accumulator) charLen() int {
	n := 0
	for _, l := range a.lines {
		n += len(l) + 1
	}
	return n
}

func (a *accumulator) flush(lineEnd int) *Piece {
	if len(a.lines) == 0 {
		return nil
	}
	text := strings.Join(a.lines, "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return &Piece{Content: text, LineStart: a.lineStart, LineEnd: lineEnd}
}

func chunkCodeAware(content string, chunkSize int) []Piece {
	lines := strings.Split(content, "\n")
	var chunks []Piece

	var acc accumulator
	acc.reset(1)
	inBlock := false
	blockStartIndent := 0

	flushAt := func(lineEnd int) {
		if c := acc.flush(lineEnd); c != nil {
			chunks = append(chunks, *c)
		}
	}

	for i, line := range lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(line)
		indent := leadingWhitespace(line)

		if inBlock {
			terminated := trimmed != "" && indent <= blockStartIndent &&
				(trimmed == "}" || trimmed == "};" || trimmed == "end" ||
					(indent < blockStartIndent && !isLineComment(trimmed)))

			if terminated {
				acc.lines = append(acc.lines, line)
				flushAt(lineNo)
				inBlock = false
				acc.reset(lineNo + 1)
				continue
			}
		}

		if !inBlock && trimmed != "" && isBlockStart(trimmed) {
			flushAt(lineNo - 1)
			acc.reset(lineNo)
			inBlock = true
			blockStartIndent = indent
		}

		acc.lines = append(acc.lines, line)

		if acc.charLen() >= chunkSize {
			flushAt(lineNo)
			acc.reset(lineNo + 1)
			inBlock = false
		}
	}

	flushAt(len(lines))

	return chunks
}

func chunkLineFallback(content string, chunkSize, overlap int) []Piece {
	lines := strings.Split(content, "\n")
	var chunks []Piece

	var acc accumulator
	acc.reset(1)
	lastFlushEnd := 0

	for i, line := range lines {
		lineNo := i + 1
		acc.lines = append(acc.lines, line)

		if acc.charLen() >= chunkSize {
			if c := acc.flush(lineNo); c != nil {
				chunks = append(chunks, *c)
				lastFlushEnd = lineNo
			}

			// Retain a trailing slice worth ~overlap characters as the
			// start of the next accumulator; lineStart tracks the first
			// retained line.
			retained, retainedFirstLine := trailingOverlap(acc.lines, overlap, lineNo)
			acc.lines = retained
			acc.lineStart = retainedFirstLine
		}
	}

	// Only flush the residual if it covers lines beyond the last flush —
	// pure retained overlap with nothing new appended would otherwise
	// re-emit the previous chunk's tail as a duplicate.
	residualEnd := acc.lineStart + len(acc.lines) - 1
	if residualEnd > lastFlushEnd {
		if c := acc.flush(len(lines)); c != nil {
			chunks = append(chunks, *c)
		}
	}

	return chunks
}

// trailingOverlap returns the trailing lines of acc whose combined
// character length is approximately overlap, plus the 1-based line
// number of the first retained line (lastLineNo is the line number of
// acc's final line).
func trailingOverlap(lines []string, overlap, lastLineNo int) ([]string, int) {
	if overlap <= 0 || len(lines) == 0 {
		return nil, lastLineNo + 1
	}
	total := 0
	start := len(lines)
	for start > 0 {
		total += len(lines[start-1]) + 1
		start--
		if total >= overlap {
			break
		}
	}
	firstLine := lastLineNo - (len(lines) - start) + 1
	return append([]string(nil), lines[start:]...), firstLine
}

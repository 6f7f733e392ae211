// Package words splits source lines into identifier words and answers
// "which word is under this column" queries.
package words

import (
	"os"
	"strings"
	"unicode"

	"kcl-navigator/src/internal/errors"
	"kcl-navigator/src/server/position"
)

// LineWord is one identifier run inside a line. Start and End are rune offsets,
// half-open.
type LineWord struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Word  string `json:"word"`
}

// IsIdentStart reports whether r may begin an identifier.
func IsIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.Is(unicode.Nl, r)
}

// IsIdentContinue reports whether r may appear after the first rune of an identifier.
func IsIdentContinue(r rune) bool {
	return IsIdentStart(r) || unicode.IsDigit(r) ||
		unicode.In(r, unicode.Mn, unicode.Mc, unicode.Pc)
}

// LineToWords returns every maximal identifier run in line, in order.
// A run may only start on an identifier-start rune that does not directly follow
// an identifier-continue rune, so "0abc" yields nothing.
func LineToWords(line string) []LineWord {
	runes := []rune(line)
	var words []LineWord
	start := -1
	prevContinue := false
	// i == len(runes) is the virtual terminator that flushes a trailing word.
	for i := 0; i <= len(runes); i++ {
		isStart, isContinue := false, false
		if i < len(runes) {
			isStart = IsIdentStart(runes[i])
			isContinue = IsIdentContinue(runes[i])
		}
		if isStart && !prevContinue {
			start = i
		}
		if !isContinue {
			if start >= 0 {
				words = append(words, LineWord{Start: start, End: i, Word: string(runes[start:i])})
			}
			start = -1
		}
		prevContinue = isContinue
	}
	return words
}

// WordAt returns the word of line whose range contains col.
func WordAt(line string, col int) (LineWord, bool) {
	lineWords := LineToWords(line)
	if len(lineWords) == 0 || col < lineWords[0].Start || col >= lineWords[len(lineWords)-1].End {
		return LineWord{}, false
	}
	for _, w := range lineWords {
		if col >= w.Start && col < w.End {
			return w, true
		}
	}
	return LineWord{}, false
}

// WordAtPos reads pos.Filename and returns the word at pos, which must use
// protocol coordinates (0-based line).
func WordAtPos(pos position.Position) (string, error) {
	lines, err := ReadLines(pos.Filename)
	if err != nil {
		return "", err
	}
	if pos.Line < 0 || pos.Line >= len(lines) {
		return "", errors.NewNotFoundError("", "line out of range")
	}
	if !pos.HasColumn {
		return "", errors.NewNotFoundError("", "position has no column")
	}
	w, ok := WordAt(lines[pos.Line], pos.Column)
	if !ok {
		return "", errors.NewNotFoundError("", "position is not on an identifier")
	}
	return w.Word, nil
}

// ReadLines reads a file and splits it into lines. A trailing newline does not
// produce an extra empty line and "\r\n" endings are accepted.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text the same way ReadLines does.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

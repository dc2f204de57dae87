// Package fallback renders and parses the plain-text recovery document: a
// frame's bytes as z-base-32, grouped and line-wrapped for OCR-free manual
// transcription, with AUTH/MAIN section headers for multi-frame recovery
// text.
package fallback

import (
	"strings"
	"unicode"

	"github.com/ethernity-paper/ethernity/bounds"
	"github.com/ethernity-paper/ethernity/errtag"
	"github.com/ethernity-paper/ethernity/frame"
	"github.com/ethernity-paper/ethernity/internal/zbase32"
)

// Defaults for EncodeLines.
const (
	DefaultGroupSize  = 4
	DefaultLineLength = 80
)

// Section names used in recovery document headers.
const (
	SectionAuth = "AUTH"
	SectionMain = "MAIN"
)

// Section is one header-delimited block of fallback lines.
type Section struct {
	Name  string
	Lines []string
}

// EncodeLines z-base-32-encodes data, groups it into groupSize-character
// chunks, and greedily packs those groups into lines of at most lineLength
// characters (space-separated, no trailing space, no empty lines).
func EncodeLines(data []byte, groupSize, lineLength int) ([]string, error) {
	if groupSize <= 0 {
		return nil, errtag.New(errtag.InvalidInput, "group_size must be positive")
	}
	if lineLength <= 0 {
		return nil, errtag.New(errtag.InvalidInput, "line_length must be positive")
	}
	if groupSize > lineLength {
		return nil, errtag.New(errtag.InvalidInput, "group_size must not exceed line_length")
	}

	encoded := zbase32.Encode(data)
	var groups []string
	for i := 0; i < len(encoded); i += groupSize {
		end := i + groupSize
		if end > len(encoded) {
			end = len(encoded)
		}
		groups = append(groups, encoded[i:end])
	}

	var lines []string
	current := ""
	for _, g := range groups {
		candidate := g
		if current != "" {
			candidate = current + " " + g
		}
		if len(candidate) > lineLength {
			lines = append(lines, current)
			current = g
		} else {
			current = candidate
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) > bounds.MaxFallbackLines {
		return nil, errtag.New(errtag.Bounds, "fallback text exceeds the maximum line count").
			WithLimit("MaxFallbackLines")
	}
	return lines, nil
}

// FrameToLines encodes f's wire bytes as fallback lines.
func FrameToLines(f frame.Frame, groupSize, lineLength int) ([]string, error) {
	encoded, err := frame.Encode(f)
	if err != nil {
		return nil, err
	}
	return EncodeLines(encoded, groupSize, lineLength)
}

// RenderText joins sections into one recovery document: each section gets
// a "=== NAME ===" header line followed by its lines, and sections are
// separated by one blank line.
func RenderText(sections []Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		lines := make([]string, 0, len(s.Lines)+1)
		lines = append(lines, "=== "+s.Name+" ===")
		lines = append(lines, s.Lines...)
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func headerName(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 7 || !strings.HasPrefix(trimmed, "===") || !strings.HasSuffix(trimmed, "===") {
		return "", false
	}
	inner := trimmed[3 : len(trimmed)-3]
	hasNonEquals := false
	for _, r := range inner {
		if r != '=' {
			hasNonEquals = true
			break
		}
	}
	if !hasNonEquals {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func validFallbackLine(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		lr := unicode.ToLower(r)
		if lr == ' ' || lr == '-' {
			continue
		}
		if strings.ContainsRune(zbase32.Alphabet, lr) {
			continue
		}
		return false
	}
	return true
}

// ParseText splits raw recovery text into sections by "=== NAME ===" header
// lines, dropping blank lines and any line that isn't valid fallback text.
// Text with no header lines is treated as a single MAIN section.
func ParseText(text string) ([]Section, error) {
	if len(text) > bounds.MaxRecoveryTextBytes {
		return nil, errtag.New(errtag.Bounds, "recovery text exceeds the maximum byte length").
			WithLimit("MaxRecoveryTextBytes")
	}

	var sections []Section
	current := Section{Name: SectionMain}
	sawHeader := false
	sawContent := false

	flush := func() {
		if sawContent || sawHeader {
			sections = append(sections, current)
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if name, ok := headerName(line); ok {
			flush()
			current = Section{Name: name}
			sawHeader = true
			sawContent = false
			continue
		}
		if !validFallbackLine(line) {
			continue
		}
		current.Lines = append(current.Lines, line)
		sawContent = true
		if len(current.Lines) > bounds.MaxFallbackLines {
			return nil, errtag.New(errtag.Bounds, "fallback section exceeds the maximum line count").
				WithLimit("MaxFallbackLines")
		}
	}
	flush()
	return sections, nil
}

// DecodeSection concatenates a section's lines and z-base-32-decodes them
// back to bytes.
func DecodeSection(s Section) ([]byte, error) {
	if len(s.Lines) > bounds.MaxFallbackLines {
		return nil, errtag.New(errtag.Bounds, "fallback section exceeds the maximum line count").
			WithLimit("MaxFallbackLines")
	}
	joined := strings.Join(s.Lines, "")
	normalizedChars := 0
	for _, r := range joined {
		if r != '-' && !unicode.IsSpace(r) {
			normalizedChars++
		}
	}
	if normalizedChars > bounds.MaxFallbackNormalizedChars {
		return nil, errtag.New(errtag.Bounds, "fallback section exceeds the maximum character count").
			WithLimit("MaxFallbackNormalizedChars")
	}
	data, err := zbase32.Decode(joined)
	if err != nil {
		return nil, errtag.Wrap(errtag.Codec, err, "decoding fallback section")
	}
	return data, nil
}

// LinesToFrame decodes a section's lines back into a validated Frame.
func LinesToFrame(lines []string) (frame.Frame, error) {
	data, err := DecodeSection(Section{Lines: lines})
	if err != nil {
		return frame.Frame{}, err
	}
	return frame.Decode(data)
}

package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethernity-paper/ethernity/frame"
)

func sampleFrame() frame.Frame {
	var docID [frame.DocIDLen]byte
	for i := range docID {
		docID[i] = byte(i + 1)
	}
	return frame.Frame{
		Version:   frame.Version,
		FrameType: frame.MainDocument,
		DocID:     docID,
		Index:     0,
		Total:     1,
		Data:      []byte("some frame payload bytes to round-trip through fallback text"),
	}
}

func TestEncodeLinesHasNoTrailingSpaceOrEmptyLines(t *testing.T) {
	lines, err := EncodeLines([]byte("hello world, this is a test payload"), 4, 20)
	require.NoError(t, err)
	for _, line := range lines {
		assert.NotEmpty(t, line)
		assert.NotEqual(t, byte(' '), line[len(line)-1])
		assert.LessOrEqual(t, len(line), 20)
	}
}

func TestFrameToLinesAndBackRoundTrip(t *testing.T) {
	f := sampleFrame()
	lines, err := FrameToLines(f, DefaultGroupSize, DefaultLineLength)
	require.NoError(t, err)

	decoded, err := LinesToFrame(lines)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestRenderAndParseSectionsRoundTrip(t *testing.T) {
	authLines, err := EncodeLines([]byte("auth frame bytes"), 4, 40)
	require.NoError(t, err)
	mainLines, err := EncodeLines([]byte("main frame bytes, somewhat longer than the auth one"), 4, 40)
	require.NoError(t, err)

	text := RenderText([]Section{
		{Name: SectionAuth, Lines: authLines},
		{Name: SectionMain, Lines: mainLines},
	})

	sections, err := ParseText(text)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, SectionAuth, sections[0].Name)
	assert.Equal(t, SectionMain, sections[1].Name)

	authData, err := DecodeSection(sections[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("auth frame bytes"), authData)

	mainData, err := DecodeSection(sections[1])
	require.NoError(t, err)
	assert.Equal(t, []byte("main frame bytes, somewhat longer than the auth one"), mainData)
}

func TestParseTextTreatsUnlabeledAsMain(t *testing.T) {
	lines, err := EncodeLines([]byte("unlabeled input"), 4, 40)
	require.NoError(t, err)
	text := ""
	for i, l := range lines {
		if i > 0 {
			text += "\n"
		}
		text += l
	}

	sections, err := ParseText(text)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, SectionMain, sections[0].Name)
}

func TestParseTextFiltersInvalidLines(t *testing.T) {
	lines, err := EncodeLines([]byte("valid payload"), 4, 40)
	require.NoError(t, err)
	text := "this line has invalid chars !!! @@@\n" + lines[0]

	sections, err := ParseText(text)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, []string{lines[0]}, sections[0].Lines)
}

func TestEncodeLinesRejectsInvalidArgs(t *testing.T) {
	_, err := EncodeLines([]byte("x"), 0, 80)
	require.Error(t, err)
	_, err = EncodeLines([]byte("x"), 4, 0)
	require.Error(t, err)
}

func TestHeaderRecognitionRejectsAllEquals(t *testing.T) {
	sections, err := ParseText("=========")
	require.NoError(t, err)
	assert.Empty(t, sections)
}

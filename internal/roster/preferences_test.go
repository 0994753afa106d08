package roster

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/allotment/internal/model"
)

// writeFile creates a fixture file in a per-test temporary directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestDetectLayout covers the accepted headers and a rejected one.
func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name     string
		header   []string
		expected Layout
		hasError bool
	}{
		{"plain", []string{"participant", "first", "second", "third"}, LayoutPlain, false},
		{"plain with name header", []string{"Name", "1st", "2nd", "3rd"}, LayoutPlain, false},
		{"survey", []string{"Timestamp", "Name", "1st", "2nd", "3rd"}, LayoutSurvey, false},
		{"survey with trailing email", []string{"Timestamp", "Name", "1st", "2nd", "3rd", "Email address"}, LayoutSurvey, false},
		{"survey with leading email", []string{"Timestamp", "Email address", "Name", "1st", "2nd", "3rd"}, LayoutSurvey, false},
		{"byte order mark", []string{"\ufeffparticipant", "a", "b", "c"}, LayoutPlain, false},
		{"six columns without email", []string{"Timestamp", "Name", "1st", "2nd", "3rd", "Notes"}, 0, true},
		{"too few columns", []string{"participant", "first"}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout, err := DetectLayout(tt.header)
			if tt.hasError {
				var formatErr *model.InputFormatError
				require.True(t, errors.As(err, &formatErr))
				assert.Equal(t, "header", formatErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, layout)
		})
	}
}

// TestParseCSV_Plain verifies rows, line numbers and skipped blank lines.
func TestParseCSV_Plain(t *testing.T) {
	input := "participant,first,second,third\n" +
		"Ada,Math,Art,Bio\n" +
		"\n" +
		"  Bo , math ,Bio,Art\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ada", rows[0].Participant)
	assert.Equal(t, model.Choices{"Math", "Art", "Bio"}, rows[0].Choices)
	assert.Equal(t, 2, rows[0].Line)

	assert.Equal(t, "Bo", rows[1].Participant)
	assert.Equal(t, "math ", rows[1].Choices[0], "option spelling is kept for merging")
	assert.Equal(t, 4, rows[1].Line)
}

// TestParseCSV_SurveyLeadingEmail verifies that the email column is
// dropped wherever it sits.
func TestParseCSV_SurveyLeadingEmail(t *testing.T) {
	input := "Timestamp,Email address,Name,1st,2nd,3rd\n" +
		"2024-01-01,ada@example.com,Ada,Math,Art,Bio\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].Participant)
	assert.Equal(t, model.Choices{"Math", "Art", "Bio"}, rows[0].Choices)
}

// TestParseCSV_Errors verifies that malformed input is reported with the
// offending line.
func TestParseCSV_Errors(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		var formatErr *model.InputFormatError
		require.True(t, errors.As(err, &formatErr))
		assert.Equal(t, "header", formatErr.Field)
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("participant,first,second,third\nAda,Math,Art\n"))
		var formatErr *model.InputFormatError
		require.True(t, errors.As(err, &formatErr))
		assert.Equal(t, 2, formatErr.Line)
	})

	t.Run("empty fields are all reported", func(t *testing.T) {
		input := "participant,first,second,third\n" +
			",Math,Art,Bio\n" +
			"Bo,Math,,Bio\n"
		_, err := ParseCSV(strings.NewReader(input))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2: participant: must not be empty")
		assert.Contains(t, err.Error(), "line 3: 2nd choice: must not be empty")
	})
}

// TestParseYAML verifies the YAML participant list.
func TestParseYAML(t *testing.T) {
	rows, err := ParseYAML([]byte(`
participants:
  - name: Ada
    choices: [Math, Art, Bio]
  - name: Bo
    choices: [Art, Bio, Math]
`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.Choices{"Art", "Bio", "Math"}, rows[1].Choices)
	assert.Equal(t, 2, rows[1].Line)

	_, err = ParseYAML([]byte("participants:\n  - name: Ada\n    choices: [Math, Art]\n"))
	assert.ErrorContains(t, err, "expected 3 choices, got 2")
}

// TestParseJSONC verifies that comments and trailing commas are accepted.
func TestParseJSONC(t *testing.T) {
	rows, err := ParseJSONC([]byte(`{
  // exported from the sign-up sheet
  "participants": [
    {"name": "Ada", "choices": ["Math", "Art", "Bio"]},
  ],
}`))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0].Participant)
}

// TestLoadPreferences verifies extension dispatch and the missing-file error.
func TestLoadPreferences(t *testing.T) {
	path := writeFile(t, "prefs.csv", "participant,first,second,third\nAda,Math,Art,Bio\n")
	rows, err := LoadPreferences(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = LoadPreferences(filepath.Join(t.TempDir(), "missing.csv"))
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitInputFormat, cliErr.Code)

	_, err = LoadPreferences(writeFile(t, "prefs.xlsx", "binary"))
	assert.ErrorContains(t, err, "unsupported preference file extension")
}

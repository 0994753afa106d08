package roster

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/allotment/internal/model"
)

// Layout identifies how preference columns are arranged in a CSV file.
type Layout int

const (
	// LayoutPlain is "participant,first,second,third".
	LayoutPlain Layout = iota

	// LayoutSurvey is "Timestamp,Name,1st,2nd,3rd" as exported by survey
	// forms, optionally with an "Email address" column right after
	// Timestamp or at the end.
	LayoutSurvey
)

// String returns the layout name used in verbose output.
func (l Layout) String() string {
	switch l {
	case LayoutPlain:
		return "plain"
	case LayoutSurvey:
		return "survey"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// columns maps a detected layout onto record indices.
type columns struct {
	layout      Layout
	participant int
	choices     [model.ChoiceCount]int
}

// Header labels recognized by DetectLayout.
const (
	timestampHeader = "timestamp"
	emailHeader     = "email address"
)

var participantHeaders = map[string]bool{"participant": true, "name": true, "id": true}

// DetectLayout inspects a CSV header row and returns the column mapping.
func DetectLayout(header []string) (Layout, error) {
	cols, err := detectColumns(header)
	if err != nil {
		return 0, err
	}
	return cols.layout, nil
}

func detectColumns(header []string) (columns, error) {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	switch {
	case len(norm) == 4 && participantHeaders[norm[0]]:
		return columns{layout: LayoutPlain, participant: 0, choices: [3]int{1, 2, 3}}, nil

	case len(norm) == 5 && norm[0] == timestampHeader:
		return columns{layout: LayoutSurvey, participant: 1, choices: [3]int{2, 3, 4}}, nil

	case len(norm) == 6 && norm[0] == timestampHeader && norm[5] == emailHeader:
		return columns{layout: LayoutSurvey, participant: 1, choices: [3]int{2, 3, 4}}, nil

	case len(norm) == 6 && norm[0] == timestampHeader && norm[1] == emailHeader:
		return columns{layout: LayoutSurvey, participant: 2, choices: [3]int{3, 4, 5}}, nil
	}

	return columns{}, &model.InputFormatError{
		Line:    1,
		Field:   "header",
		Message: fmt.Sprintf("unrecognized column layout %q (expected participant,first,second,third or Timestamp,Name,1st,2nd,3rd[,Email address])", strings.Join(header, ",")),
	}
}

// ParseCSV reads preference rows from CSV. Blank lines are skipped. Every
// row is validated; all failures are returned joined together.
func ParseCSV(r io.Reader) ([]model.PreferenceRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &model.InputFormatError{Line: 1, Field: "header", Message: "file is empty"}
		}
		return nil, csvError(err)
	}
	cols, err := detectColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []model.PreferenceRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)

		row := model.PreferenceRow{
			Participant: strings.TrimSpace(record[cols.participant]),
			Line:        line,
		}
		for i, idx := range cols.choices {
			row.Choices[i] = record[idx]
		}
		rows = append(rows, row)
	}

	if errs := model.ValidateRows(rows); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rows, nil
}

// csvError converts an encoding/csv parse error into an InputFormatError.
func csvError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &model.InputFormatError{Line: parseErr.Line, Field: "record", Message: parseErr.Err.Error()}
	}
	return fmt.Errorf("failed to read preferences: %w", err)
}

// preferenceDocument is the YAML / JSON form of a preference list:
//
//	participants:
//	  - name: Ada
//	    choices: [Math, Art, Bio]
type preferenceDocument struct {
	Participants []preferenceEntry `yaml:"participants" json:"participants"`
}

type preferenceEntry struct {
	Name    string   `yaml:"name" json:"name"`
	Choices []string `yaml:"choices" json:"choices"`
}

// rows converts the document into validated rows; Line is the 1-based list
// position.
func (d preferenceDocument) rows() ([]model.PreferenceRow, error) {
	rows := make([]model.PreferenceRow, 0, len(d.Participants))
	var errs []error
	for i, entry := range d.Participants {
		if len(entry.Choices) != model.ChoiceCount {
			errs = append(errs, &model.InputFormatError{
				Line:    i + 1,
				Field:   "choices",
				Message: fmt.Sprintf("expected %d choices, got %d", model.ChoiceCount, len(entry.Choices)),
			})
			continue
		}
		row := model.PreferenceRow{Participant: strings.TrimSpace(entry.Name), Line: i + 1}
		copy(row.Choices[:], entry.Choices)
		rows = append(rows, row)
	}
	errs = append(errs, model.ValidateRows(rows)...)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rows, nil
}

// ParseYAML reads a YAML preference document.
func ParseYAML(data []byte) ([]model.PreferenceRow, error) {
	var doc preferenceDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &model.InputFormatError{Field: "document", Message: err.Error()}
	}
	return doc.rows()
}

// ParseJSONC reads a JSON preference document that may carry comments and
// trailing commas.
func ParseJSONC(data []byte) ([]model.PreferenceRow, error) {
	var doc preferenceDocument
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, &model.InputFormatError{Field: "document", Message: err.Error()}
	}
	return doc.rows()
}

// LoadPreferences reads a preference file, choosing the parser by file
// extension: .csv, .yaml/.yml, or .json/.jsonc.
func LoadPreferences(path string) ([]model.PreferenceRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitInputFormat,
				fmt.Sprintf("preference file not found: %s", path), err)
		}
		return nil, fmt.Errorf("failed to read preference file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ParseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json", ".jsonc":
		return ParseJSONC(data)
	}
	return nil, &model.InputFormatError{
		Field:   "file",
		Message: fmt.Sprintf("unsupported preference file extension %q (use .csv, .yaml or .json)", filepath.Ext(path)),
	}
}

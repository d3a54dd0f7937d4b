// Package export renders ranked results as spreadsheets.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/ranking"
)

// ContentTypeXLSX is the MIME type of the workbook WriteXLSX produces.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	defaultSheet  = "Sheet1"
	fallbackSheet = "Results"
	maxSheetName  = 31
)

// Header is the first row of every sheet.
var Header = []string{"Pos", "Pos Cat", "Pos Sexo", "Dorsal", "Name", "Category", "Gender", "Time", "Pace"}

// WriteXLSX writes one sheet per modality, in configuration order, with the
// modality's runners in overall position order.
func WriteXLSX(w io.Writer, modalities []racecheck.Modality, ranked []ranking.RankedRunner) error {
	f := excelize.NewFile()
	defer f.Close()

	names := sheetNames(modalities)
	if len(names) == 0 {
		names = []string{fallbackSheet}
	}
	for i, name := range names {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		if err := f.SetSheetRow(name, "A1", &Header); err != nil {
			return fmt.Errorf("write header of %q: %w", name, err)
		}
		if i >= len(modalities) {
			continue
		}
		for r, rr := range ranking.ByModality(ranked, modalities[i].Name) {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			row := Row(rr)
			if err := f.SetSheetRow(name, cell, &row); err != nil {
				return fmt.Errorf("write row %d of %q: %w", r+2, name, err)
			}
		}
	}

	if err := f.DeleteSheet(defaultSheet); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Row renders a ranked runner as a spreadsheet row matching Header.
func Row(rr ranking.RankedRunner) []any {
	gender := rr.GenderRef.Name
	if gender == "" {
		gender = rr.Sex
	}
	return []any{
		rr.PosGeneral,
		positionCell(rr.PosCat),
		positionCell(rr.PosSexo),
		rr.Dorsal,
		rr.Name,
		rr.CategoryRef.Name,
		gender,
		rr.Time,
		rr.Pace,
	}
}

// positionCell leaves unassigned positions blank.
func positionCell(p int) any {
	if p == 0 {
		return ""
	}
	return p
}

// sheetNames turns modality names into unique, valid sheet names.
func sheetNames(modalities []racecheck.Modality) []string {
	replacer := strings.NewReplacer(":", "-", "\\", "-", "/", "-", "?", "", "*", "", "[", "(", "]", ")")
	used := make(map[string]bool, len(modalities))
	out := make([]string, 0, len(modalities))
	for i, m := range modalities {
		name := strings.Trim(strings.TrimSpace(replacer.Replace(m.Name)), "'")
		if name == "" || strings.EqualFold(name, defaultSheet) {
			name = fmt.Sprintf("Modality %d", i+1)
		}
		name = truncate(name, maxSheetName)
		base := name
		for n := 2; used[strings.ToLower(name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, maxSheetName-len([]rune(suffix))) + suffix
		}
		used[strings.ToLower(name)] = true
		out = append(out, name)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

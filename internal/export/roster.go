// Package export renders the roster as an Excel workbook for the academy
// office staff.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"pickup/internal/roster"
)

const sheetName = "원생명단"

var header = []string{
	"이름", "단축번호", "수업요일", "수업시간",
	"등원시간", "하원시간", "등원위치", "하원위치",
	"어머니 연락처", "아버지 연락처", "학생 연락처",
	"등원완료", "하원완료", "재원여부",
}

// RosterWorkbook builds a single-sheet workbook, one row per student, with a
// bold auto-filtered header row.
func RosterWorkbook(students []roster.Student) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for col, h := range header {
		cell := fmt.Sprintf("%s1", colName(col+1))
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	end := colName(len(header)) + "1"
	_ = f.SetCellStyle(sheetName, "A1", end, bold)
	_ = f.AutoFilter(sheetName, "A1:"+end, nil)

	for r, st := range students {
		row := studentRow(st)
		for c, val := range row {
			cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
			if err := f.SetCellStr(sheetName, cell, val); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	for c := 1; c <= len(header); c++ {
		_ = f.SetColWidth(sheetName, colName(c), colName(c), 14)
	}
	return f, nil
}

// RosterXLSX serializes the workbook to bytes for an HTTP response.
func RosterXLSX(students []roster.Student) ([]byte, error) {
	f, err := RosterWorkbook(students)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func studentRow(st roster.Student) []string {
	return []string{
		st.Name,
		st.ShortID,
		strings.Join(st.ClassDays, ", "),
		st.ClassTime,
		st.ArrivalTime,
		st.DepartureTime,
		st.ArrivalLocation,
		st.DepartureLocation,
		st.MotherPhone,
		st.FatherPhone,
		st.StudentPhone,
		checkMark(st.ArrivalStatus),
		checkMark(st.DepartureStatus),
		activeMark(st),
	}
}

func checkMark(v bool) string {
	if v {
		return "O"
	}
	return ""
}

func activeMark(st roster.Student) string {
	if st.Active() {
		return "재원"
	}
	return "퇴원"
}

func colName(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}

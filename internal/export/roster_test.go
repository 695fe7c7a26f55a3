package export

import (
	"testing"

	"pickup/internal/roster"
)

func TestRosterWorkbook(t *testing.T) {
	inactive := false
	students := []roster.Student{
		{Name: "김민준", ShortID: "1", ClassDays: []string{"월", "수"}, ClassTime: "15:30", ArrivalStatus: true},
		{Name: "이서연", ShortID: "2", ClassTime: "16:30", IsActive: &inactive},
	}

	f, err := RosterWorkbook(students)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(sheetName, "A1"); got != "이름" {
		t.Fatalf("A1 = %q, want 이름", got)
	}
	if got, _ := f.GetCellValue(sheetName, "A2"); got != "김민준" {
		t.Fatalf("A2 = %q, want 김민준", got)
	}
	if got, _ := f.GetCellValue(sheetName, "C2"); got != "월, 수" {
		t.Fatalf("C2 = %q, want joined class days", got)
	}
	if got, _ := f.GetCellValue(sheetName, "L2"); got != "O" {
		t.Fatalf("L2 = %q, want O for completed arrival", got)
	}
	if got, _ := f.GetCellValue(sheetName, "N3"); got != "퇴원" {
		t.Fatalf("N3 = %q, want 퇴원 for withdrawn student", got)
	}
}

func TestRosterXLSXNotEmpty(t *testing.T) {
	payload, err := RosterXLSX([]roster.Student{{Name: "박지호"}})
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if len(payload) == 0 {
		t.Fatal("expected non-empty workbook bytes")
	}
}

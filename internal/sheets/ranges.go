package sheets

import (
	"fmt"
	"strings"
)

// ColumnLetter converts a zero-based column index to its A1 letters (0→A, 25→Z, 26→AA).
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

func quote(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

// FullRange is the block the reconciler reads: every row of columns A through Z.
func FullRange(sheet string) string {
	return quote(sheet) + "!A:Z"
}

// HeaderRange is the first row of the sheet.
func HeaderRange(sheet string) string {
	return quote(sheet) + "!1:1"
}

// ColumnRange is a whole column addressed by zero-based index.
func ColumnRange(sheet string, col int) string {
	letter := ColumnLetter(col)
	return fmt.Sprintf("%s!%s:%s", quote(sheet), letter, letter)
}

// CellRange is a single cell; row is the 1-based sheet row number.
func CellRange(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", quote(sheet), ColumnLetter(col), row)
}

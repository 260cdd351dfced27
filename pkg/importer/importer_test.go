package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVQuotedFields(t *testing.T) {
	records, err := ParseCSV("\ufeffSTT,Họ và Tên,Địa chỉ\n1, Nguyễn An ,\"12, Lê Lợi\"\n\n2,\"Bình \"\"Bé\"\"\",\"dòng 1\ndòng 2\"\n")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"1", "Nguyễn An", "12, Lê Lợi"}, records[1])
	assert.Equal(t, `Bình "Bé"`, records[2][1])
	assert.Equal(t, "dòng 1\ndòng 2", records[2][2])
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := ParseCSV("  \n\n")
	require.ErrorIs(t, err, ErrEmpty)
	_, err = ParseCSV(",,\n")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestParseDateString(t *testing.T) {
	assert.Equal(t, "2010-03-15", ParseDateString("15.03.2010"))
	assert.Equal(t, "2010-03-15", ParseDateString("15/03/2010"))
	assert.Equal(t, "2010-03-15", ParseDateString("15-03-2010"))
	assert.Equal(t, "2010-03-05", ParseDateString("5/3/2010"))
	assert.Equal(t, "2010-03-15", ParseDateString("2010-03-15"))
	assert.Equal(t, "2010-99-45", ParseDateString("45/99/2010"))
	assert.Equal(t, "", ParseDateString("March 2010"))
	assert.Equal(t, "", ParseDateString(""))
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, GenderFemale, ParseGender("Nữ"))
	assert.Equal(t, GenderFemale, ParseGender("NU"))
	assert.Equal(t, GenderFemale, ParseGender(" n "))
	// decomposed form as produced by some spreadsheet exports
	assert.Equal(t, GenderFemale, ParseGender("Nu\u031b\u0303"))
	assert.Equal(t, GenderMale, ParseGender("Nam"))
	assert.Equal(t, GenderMale, ParseGender(""))
}

func TestParseStudentRowsDropsIncompleteRows(t *testing.T) {
	records := [][]string{
		StudentHeaders,
		{"1", "Maria", "Nguyễn Thị An", "Nữ", "15.03.2010", "Q1", "Ấu Nhi 1A"},
		{"2", "Giuse", "", "Nam", "01/01/2011", "Q3", "Ấu Nhi 1A"},
		{"3", "Phêrô", "Lê Văn C", "Nam", "", "Q5", "Ấu Nhi 1B"},
		{"4", "Anna", "Phạm Thị D"},
	}
	rows := ParseStudentRows(records)
	require.Len(t, rows, 1)
	assert.Equal(t, StudentRow{STT: "1", SaintName: "Maria", FullName: "Nguyễn Thị An", Gender: GenderFemale, BirthDate: "2010-03-15", Address: "Q1", ClassName: "Ấu Nhi 1A"}, rows[0])
}

func TestParseClassAndCatechistRows(t *testing.T) {
	classes := ParseClassRows([][]string{ClassTemplateHeaders, {"Ấu Nhi 1A", "2024-2025", ""}, {"", "2024-2025", "x"}})
	require.Len(t, classes, 1)
	assert.Equal(t, "Ấu Nhi 1A", classes[0].Name)

	catechists := ParseCatechistRows([][]string{CatechistTemplateHeaders, {"Maria", "Nguyễn Thị An", "090", "AN@Example.com", ""}, {"Giuse"}})
	require.Len(t, catechists, 1)
	assert.Equal(t, "an@example.com", catechists[0].Email)
}

func TestStudentCSVRoundTrip(t *testing.T) {
	original := []StudentRow{
		{STT: "1", SaintName: "Maria", FullName: "Nguyễn Thị An", Gender: GenderFemale, BirthDate: "2010-03-15", Address: "12, Lê Lợi", ClassName: "Ấu Nhi 1A"},
		{STT: "2", SaintName: "Giuse", FullName: `Trần "Tí" Bình`, Gender: GenderMale, BirthDate: "2011-11-02", Address: "Q3", ClassName: "Ấu Nhi 1A"},
	}
	text := GenerateStudentCSV(original)
	records, err := ParseCSV(text)
	require.NoError(t, err)
	parsed := ParseStudentRows(records)
	require.Len(t, parsed, len(original))
	for i := range original {
		assert.Equal(t, original[i].FullName, parsed[i].FullName)
		assert.Equal(t, original[i].BirthDate, parsed[i].BirthDate)
		assert.Equal(t, original[i].Gender, parsed[i].Gender)
	}
	assert.Equal(t, text, GenerateStudentCSV(parsed))
}

func TestTemplatesParse(t *testing.T) {
	records, err := ParseCSV(ClassTemplate())
	require.NoError(t, err)
	assert.Equal(t, ClassTemplateHeaders, records[0])
	assert.Len(t, ParseClassRows(records), 1)

	records, err = ParseCSV(CatechistTemplate())
	require.NoError(t, err)
	assert.Len(t, ParseCatechistRows(records), 1)
}

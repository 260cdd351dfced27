package export

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRecordsQuotesFields(t *testing.T) {
	out := JoinRecords([][]string{
		{"plain", "a,b"},
		{`say "hi"`, "two\nlines"},
	})
	assert.Equal(t, "plain,\"a,b\"\n\"say \"\"hi\"\"\",\"two\nlines\"", out)
	assert.Equal(t, "", JoinRecords(nil))

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, records[1][0])
	assert.Equal(t, "two\nlines", records[1][1])
}

func TestGenerateCSV(t *testing.T) {
	out := GenerateCSV([]string{"STT", "Họ và Tên"}, [][]string{{"1", "Nguyễn, An"}, {"2", "Bình"}})
	assert.Equal(t, "STT,Họ và Tên\n1,\"Nguyễn, An\"\n2,Bình", out)
}

func TestWithBOMIsIdempotent(t *testing.T) {
	once := WithBOM("a,b")
	assert.True(t, strings.HasPrefix(once, "\ufeff"))
	assert.Equal(t, once, WithBOM(once))
}

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter()
	payload, err := exporter.Render(Table{
		HeaderRows: [][]string{{"A", "B"}},
		Rows:       [][]string{{"1", "2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "\ufeffA,B\n1,2", string(payload))

	_, err = exporter.Render(Table{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(Table{
		Title:      "Điểm danh",
		HeaderRows: [][]string{{"Điểm danh"}, {"STT", "Tên Thánh", "Họ và Tên", "01/12", "", ""}, {"", "", "", "TL", "GL", "ĐIỂM"}},
		Rows:       [][]string{{"1", "Giuse", "Trần Văn Đức", "x", "x", ""}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestASCIIFoldAndSafeFilename(t *testing.T) {
	assert.Equal(t, "Au Nhi 1A Duc", ASCIIFold("Ấu Nhi 1A Đức"))
	assert.Equal(t, "Au_Nhi_1A", SafeFilename("Ấu Nhi 1A"))
	assert.Equal(t, "na", SafeFilename("  "))
}

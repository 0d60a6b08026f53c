package officeconv

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversionTaskDescriptor(t *testing.T) {
	task := NewConversionTask("/working/a.docx", "/working/a.docx.bin")

	raw, err := task.Descriptor()
	require.NoError(t, err)
	doc := string(raw)

	assert.True(t, strings.HasPrefix(doc, xml.Header))
	assert.Contains(t, doc, `<TaskQueueDataConvert xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema">`)
	assert.Contains(t, doc, "<m_sFileFrom>/working/a.docx</m_sFileFrom>")
	assert.Contains(t, doc, "<m_sThemeDir>/working/themes</m_sThemeDir>")
	assert.Contains(t, doc, "<m_sFileTo>/working/a.docx.bin</m_sFileTo>")
	assert.Contains(t, doc, "<m_bIsNoBase64>false</m_bIsNoBase64>")
	assert.NotContains(t, doc, "m_nFormatFrom")
	assert.NotContains(t, doc, "m_sFontDir")
}

func TestConversionTaskExtraOptions(t *testing.T) {
	task := NewConversionTask("/working/a.bin", "/working/a.pdf",
		FormatFromOption(FormatCSV),
		FontDirOption("/working/fonts & more/"))

	raw, err := task.Descriptor()
	require.NoError(t, err)
	doc := string(raw)

	assert.Contains(t, doc, "<m_nFormatFrom>260</m_nFormatFrom>")
	assert.Contains(t, doc, "<m_sFontDir>/working/fonts &amp; more/</m_sFontDir>")
	assert.Less(t, strings.Index(doc, "m_nFormatFrom"), strings.Index(doc, "m_sFontDir"))

	var parsed taskParams
	require.NoError(t, xml.Unmarshal(raw, &parsed))
	assert.Equal(t, "/working/a.bin", parsed.From)
	assert.Equal(t, "/working/a.pdf", parsed.To)
	assert.Equal(t, FormatCSV, parsed.FormatFrom)
	assert.Equal(t, "/working/fonts & more/", parsed.FontDir)
}

func TestConversionTaskEscapesPaths(t *testing.T) {
	task := NewConversionTask("/working/R&D <draft>.docx", "/working/R&D <draft>.docx.bin")

	raw, err := task.Descriptor()
	require.NoError(t, err)

	var parsed taskParams
	require.NoError(t, xml.Unmarshal(raw, &parsed))
	assert.Equal(t, "/working/R&D <draft>.docx", parsed.From)
}

func TestNewConversionTaskCopiesExtra(t *testing.T) {
	extra := []string{FormatFromOption(1)}
	task := NewConversionTask("a", "b", extra...)
	extra[0] = "changed"
	assert.Equal(t, "<m_nFormatFrom>1</m_nFormatFrom>", task.Extra[0])
}

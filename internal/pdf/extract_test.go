package pdf_test

import (
	"testing"

	"writingstuff/internal/pdf"
	"writingstuff/internal/pdf/pdftest"
	"writingstuff/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPages(t *testing.T) {
	data := pdftest.Build([]string{
		"Hello world.\nSecond line here.",
		"",
		"Page three (with parens).",
	})

	pages, err := pdf.ExtractPages(data)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "Hello world.\nSecond line here.", pages[0])
	assert.Equal(t, "", pages[1])
	assert.Equal(t, "Page three (with parens).", pages[2])
}

func TestExtractRejectsNonPDF(t *testing.T) {
	_, err := pdf.ExtractPages([]byte("plain text, definitely not a pdf"))
	assert.ErrorIs(t, err, apperror.ErrUnsupportedMediaType)
}

func TestExtractRejectsCorruptPDF(t *testing.T) {
	_, err := pdf.ExtractPages([]byte("%PDF-1.4\nthis is not really a pdf body"))
	assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
}

func TestIsPDF(t *testing.T) {
	assert.True(t, pdf.IsPDF(pdftest.Build([]string{"x"})))
	assert.False(t, pdf.IsPDF([]byte("PK\x03\x04")))
}

func TestExtractIdentityHFont(t *testing.T) {
	data := pdftest.BuildCID([]string{"Hi there.\nSecond line, café.", "Page two"}, true)

	pages, err := pdf.ExtractPages(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, "Hi there.\nSecond line, café.", pages[0])
	assert.Equal(t, "Page two", pages[1])
}

func TestExtractIdentityHWithoutToUnicodeHasNoText(t *testing.T) {
	pages, err := pdf.ExtractPages(pdftest.BuildCID([]string{"Hi"}, false))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "", pages[0])
	assert.NotContains(t, pages[0], "\x00")
}

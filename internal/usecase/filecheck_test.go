package usecase

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func zipWith(t *testing.T, members ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m)
		require.NoError(t, err)
		_, err = w.Write([]byte("<?xml version=\"1.0\"?>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileTypeFromName(t *testing.T) {
	cases := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"resume.pdf", "pdf", false},
		{"Resume.PDF", "pdf", false},
		{"이력서.hwp", "hwp", false},
		{"resume.hwpx", "hwpx", false},
		{"resume.tar.docx", "docx", false},
		{"resume", "", true},
		{"resume.txt", "", true},
		{"resume.exe.pdf", "", true},
		{"resume.js.docx", "", true},
	}
	for _, tc := range cases {
		got, err := fileTypeFromName(tc.name)
		if tc.wantErr {
			assert.ErrorIs(t, err, domain.ErrFileValidation, tc.name)
			continue
		}
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestCheckFile_SizeBounds(t *testing.T) {
	pdf := []byte("%PDF-1.7 minimal")
	_, err := CheckFile("a.pdf", 0, 100, pdf)
	assert.ErrorIs(t, err, domain.ErrFileValidation)

	_, err = CheckFile("a.pdf", 101, 100, pdf)
	assert.ErrorIs(t, err, domain.ErrFileValidation)

	// exactly at the limit is accepted
	_, err = CheckFile("a.pdf", 100, 100, pdf)
	assert.NoError(t, err)
}

func TestCheckFile_MagicBytes(t *testing.T) {
	_, err := CheckFile("a.pdf", 10, 100, []byte("not a pdf at all"))
	assert.ErrorIs(t, err, domain.ErrFileValidation)

	ole := append(append([]byte{}, oleSignature...), make([]byte, 64)...)
	ft, err := CheckFile("a.doc", int64(len(ole)), 1<<20, ole)
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeDOC, ft)

	ft, err = CheckFile("a.hwp", int64(len(ole)), 1<<20, ole)
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeHWP, ft)

	_, err = CheckFile("a.doc", 16, 1<<20, []byte("PK\x03\x04whatever"))
	assert.ErrorIs(t, err, domain.ErrFileValidation)
}

func TestCheckFile_ZipMembers(t *testing.T) {
	docx := zipWith(t, "[Content_Types].xml", "word/document.xml")
	ft, err := CheckFile("a.docx", int64(len(docx)), 1<<20, docx)
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeDOCX, ft)

	hwpx := zipWith(t, "Contents/content.hpf")
	ft, err = CheckFile("a.hwpx", int64(len(hwpx)), 1<<20, hwpx)
	require.NoError(t, err)
	assert.Equal(t, domain.FileTypeHWPX, ft)

	// a real ZIP without the required members is rejected
	empty := zipWith(t, "random.txt")
	_, err = CheckFile("a.docx", int64(len(empty)), 1<<20, empty)
	assert.ErrorIs(t, err, domain.ErrFileValidation)

	// garbage behind a PK prefix fails the central directory parse
	_, err = CheckFile("a.docx", 20, 1<<20, []byte("PK\x03\x04 not really zip"))
	assert.ErrorIs(t, err, domain.ErrFileValidation)
}

func TestExtContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", extContentType(domain.FileTypePDF))
	assert.Equal(t, "application/msword", extContentType(domain.FileTypeDOC))
	assert.Equal(t, "application/octet-stream", extContentType("zip"))
}

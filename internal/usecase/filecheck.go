package usecase

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// oleSignature is the compound-file header shared by doc and hwp.
var oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

var zipSignature = []byte("PK\x03\x04")

// dangerousSegments rejects double extensions like resume.exe.pdf.
var dangerousSegments = map[string]struct{}{
	"exe": {}, "bat": {}, "cmd": {}, "com": {}, "js": {}, "vbs": {},
	"php": {}, "scr": {}, "ps1": {}, "sh": {}, "jar": {}, "msi": {}, "dll": {},
}

// requiredZipMembers lists central-directory paths that prove the ZIP
// really carries the claimed format. One match suffices.
var requiredZipMembers = map[string][]string{
	domain.FileTypeDOCX: {"word/document.xml", "[Content_Types].xml"},
	domain.FileTypeHWPX: {"Contents/content.hpf", "Contents/section0.xml"},
}

// fileTypeFromName validates the extension chain and returns the claimed
// file type.
func fileTypeFromName(name string) (string, error) {
	segments := strings.Split(strings.ToLower(strings.TrimSpace(name)), ".")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: missing file extension", domain.ErrFileValidation)
	}
	ext := segments[len(segments)-1]
	switch ext {
	case domain.FileTypePDF, domain.FileTypeDOCX, domain.FileTypeDOC, domain.FileTypeHWP, domain.FileTypeHWPX:
	default:
		return "", fmt.Errorf("%w: unsupported extension %q", domain.ErrFileValidation, ext)
	}
	for _, seg := range segments[1 : len(segments)-1] {
		if _, bad := dangerousSegments[seg]; bad {
			return "", fmt.Errorf("%w: dangerous double extension %q", domain.ErrFileValidation, seg)
		}
	}
	return ext, nil
}

// CheckFile runs the pre-pipeline upload gate: extension chain, size
// bounds, magic bytes, and central-directory members for the ZIP
// container formats. Returns the validated file type.
func CheckFile(name string, size, maxSize int64, content []byte) (string, error) {
	fileType, err := fileTypeFromName(name)
	if err != nil {
		return "", err
	}
	if size <= 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrFileValidation)
	}
	if size > maxSize {
		return "", fmt.Errorf("%w: file size %d exceeds limit %d", domain.ErrFileValidation, size, maxSize)
	}

	switch fileType {
	case domain.FileTypePDF:
		if !mimetype.Detect(content).Is("application/pdf") {
			return "", fmt.Errorf("%w: content is not a PDF", domain.ErrFileValidation)
		}
	case domain.FileTypeDOC, domain.FileTypeHWP:
		if !bytes.HasPrefix(content, oleSignature) {
			return "", fmt.Errorf("%w: content is not an OLE container", domain.ErrFileValidation)
		}
	case domain.FileTypeDOCX, domain.FileTypeHWPX:
		if !bytes.HasPrefix(content, zipSignature) {
			return "", fmt.Errorf("%w: content is not a ZIP container", domain.ErrFileValidation)
		}
		if err := checkZipMembers(fileType, content); err != nil {
			return "", err
		}
	}
	return fileType, nil
}

// checkZipMembers parses the central directory and requires one of the
// format's member paths.
func checkZipMembers(fileType string, content []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return fmt.Errorf("%w: unreadable ZIP central directory", domain.ErrFileValidation)
	}
	want := requiredZipMembers[fileType]
	for _, f := range zr.File {
		for _, m := range want {
			if f.Name == m {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: ZIP lacks required %s members", domain.ErrFileValidation, fileType)
}

// sniffedContentType derives the stored content type from the bytes, not
// the filename.
func sniffedContentType(content []byte) string {
	return mimetype.Detect(content).String()
}

// extContentType maps a validated file type to the canonical content
// type for presigned PUTs; the signature pins it.
func extContentType(fileType string) string {
	switch fileType {
	case domain.FileTypePDF:
		return "application/pdf"
	case domain.FileTypeDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case domain.FileTypeDOC:
		return "application/msword"
	case domain.FileTypeHWP:
		return "application/x-hwp"
	case domain.FileTypeHWPX:
		return "application/hwp+zip"
	default:
		return "application/octet-stream"
	}
}

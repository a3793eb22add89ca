package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// routeInfo is the router stage verdict. pageCount stays zero for formats
// without a cheap page census.
type routeInfo struct {
	fileType  string
	pageCount int
}

// oleMagic is the Compound File Binary header shared by legacy DOC and HWP,
// and by password-protected OOXML containers.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// route sniffs the actual file type from content, verifies it against the
// claimed extension, and enforces the DRM and page gates for PDFs. path
// points at the staged copy of data for readers that need a file.
func (p *Pipeline) route(job *domain.ProcessingJob, data []byte, path string) (routeInfo, error) {
	defer observeStage("router", time.Now())

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(job.FileName), "."))
	detected, err := detectFileType(data, ext)
	if err != nil {
		return routeInfo{}, err
	}
	if detected != ext {
		return routeInfo{}, fmt.Errorf("%w: content is %s but extension claims %q", domain.ErrUnsupportedFormat, detected, ext)
	}

	info := routeInfo{fileType: detected}
	if detected == domain.FileTypePDF {
		pdfCtx, err := api.ReadContextFile(path)
		if err != nil {
			if isEncryptionErr(err) {
				return routeInfo{}, fmt.Errorf("%w: %v", domain.ErrEncryptedFile, err)
			}
			return routeInfo{}, fmt.Errorf("%w: unreadable pdf: %v", domain.ErrUnsupportedFormat, err)
		}
		if pdfCtx.Encrypt != nil {
			return routeInfo{}, fmt.Errorf("%w: pdf carries an encryption dictionary", domain.ErrEncryptedFile)
		}
		info.pageCount = pdfCtx.PageCount
		if p.cfg.MaxPages > 0 && info.pageCount > p.cfg.MaxPages {
			return routeInfo{}, fmt.Errorf("%w: %d pages, limit %d", domain.ErrTooManyPages, info.pageCount, p.cfg.MaxPages)
		}
	}
	return info, nil
}

// detectFileType classifies file content. The claimed extension only
// disambiguates containers that hold several formats (CFB); it never
// overrides what the bytes say.
func detectFileType(data []byte, claimed string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrUnsupportedFormat)
	}
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return domain.FileTypePDF, nil
	case bytes.HasPrefix(data, oleMagic):
		// Modern formats arrive as CFB only when password-protected.
		if claimed == domain.FileTypeDOCX || claimed == domain.FileTypeHWPX {
			return "", fmt.Errorf("%w: password-protected %s container", domain.ErrEncryptedFile, claimed)
		}
		// CFB holds both legacy formats; the directory is not parsed here,
		// so the claimed extension picks between them.
		if claimed == domain.FileTypeDOC || claimed == domain.FileTypeHWP {
			return claimed, nil
		}
		return "", fmt.Errorf("%w: OLE container with extension %q", domain.ErrUnsupportedFormat, claimed)
	case bytes.HasPrefix(data, []byte("PK")):
		return classifyZip(data)
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, mt.String())
	}
}

// classifyZip tells DOCX from HWPX by container layout: DOCX carries
// word/document.xml, HWPX declares itself EPUB-style in a mimetype member
// and stores sections under Contents/.
func classifyZip(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: corrupt zip container: %v", domain.ErrUnsupportedFormat, err)
	}
	var hwpx bool
	for _, f := range zr.File {
		switch {
		case f.Name == "word/document.xml":
			return domain.FileTypeDOCX, nil
		case f.Name == "mimetype":
			rc, err := f.Open()
			if err != nil {
				continue
			}
			b, _ := io.ReadAll(io.LimitReader(rc, 128))
			_ = rc.Close()
			if strings.Contains(string(b), "hwp") {
				hwpx = true
			}
		case strings.HasPrefix(f.Name, "Contents/section"):
			hwpx = true
		}
	}
	if hwpx {
		return domain.FileTypeHWPX, nil
	}
	return "", fmt.Errorf("%w: zip container is neither docx nor hwpx", domain.ErrUnsupportedFormat)
}

func isEncryptionErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "password") || strings.Contains(msg, "encrypt")
}

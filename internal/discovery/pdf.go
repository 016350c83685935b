package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Bulletins from recent years are distributed as one scanned PDF per issue
// instead of per-page images. Each PDF page carries a single full-page scan
// image, so extracting embedded images recovers the pages in order.

// PDFPages extracts the scan image bytes from a bulletin PDF, one entry
// per page.
func PDFPages(pdfPath string) ([][]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages in %s: %w", pdfPath, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("%s has no pages", pdfPath)
	}

	tmpDir, err := os.MkdirTemp("", "churchscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractImagesFile(pdfPath, tmpDir, nil, conf); err != nil {
		return nil, fmt.Errorf("failed to extract images from %s: %w", pdfPath, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted images: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s contains no embedded images", pdfPath)
	}
	// pdfcpu names extracted files <base>_page_<n>_<obj>.<ext>; lexical
	// sort with zero-padded page numbers keeps page order.
	sort.Strings(names)

	pages := make([][]byte, 0, len(names))
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(tmpDir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read extracted image %s: %w", name, err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// IsPDF reports whether a URL or path points at a PDF document.
func IsPDF(ref string) bool {
	return strings.HasSuffix(strings.ToLower(strings.Split(ref, "?")[0]), ".pdf")
}

// pdfPageURL addresses one page inside a PDF with a fragment suffix, so a
// PDF-distributed issue still gets one URL per page.
func pdfPageURL(base string, page int) string {
	return base + "#page=" + strconv.Itoa(page)
}

// parsePDFPageURL is the inverse of pdfPageURL.
func parsePDFPageURL(ref string) (base string, page int, ok bool) {
	base, frag, found := strings.Cut(ref, "#page=")
	if !found || !IsPDF(base) {
		return "", 0, false
	}
	page, err := strconv.Atoi(frag)
	if err != nil || page < 1 {
		return "", 0, false
	}
	return base, page, true
}

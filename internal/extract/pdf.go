package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var errNoPages = errors.New("pdf has no pages")

// pdfText returns the plain text of every page joined by newlines.
// The parser panics on some malformed files; that is reported as an error.
func pdfText(r io.ReaderAt, size int64) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", err
	}

	n := reader.NumPage()
	if n == 0 {
		return "", errNoPages
	}

	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	return strings.ToValidUTF8(strings.Join(pages, "\n"), ""), nil
}

package portal

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/jamolinav/ai-assist-attorney/models"
)

// ContainsNoResults reports whether the portal's no-results marker is
// present in the given text.
func ContainsNoResults(text string) bool {
	return strings.Contains(text, noResultsMarker)
}

// ParseDetailRows extracts the filing rows from a rendered detail page.
// The portal serves ISO-8859-1 on some paths, so the HTML is charset
// sniffed before parsing. Rows whose first cell carries a form with a
// dtaDoc token have a downloadable document; the form action is resolved
// against baseURL.
func ParseDetailRows(detailHTML, baseURL string) ([]models.DetailRow, error) {
	utf8Reader, err := charset.NewReader(strings.NewReader(detailHTML), "text/html")
	if err != nil {
		return nil, fmt.Errorf("failed to decode detail page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detail page: %w", err)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	var rows []models.DetailRow
	doc.Find("table tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 8 {
			return
		}

		row := models.DetailRow{
			Folio:       cellText(cells.Eq(0)),
			Annex:       cellText(cells.Eq(2)),
			Stage:       cellText(cells.Eq(3)),
			Procedure:   cellText(cells.Eq(4)),
			Description: cellText(cells.Eq(5)),
			Page:        cellText(cells.Eq(6)),
			Location:    cellText(cells.Eq(7)),
		}

		form := cells.Eq(1).Find("form").First()
		if form.Length() > 0 {
			action, _ := form.Attr("action")
			token, _ := form.Find(`input[name='dtaDoc']`).Attr("value")
			if action != "" && token != "" {
				if resolved, err := base.Parse(action); err == nil {
					row.DocURL = resolved.String()
					row.DocToken = token
				}
			}
		}

		rows = append(rows, row)
	})

	return rows, nil
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

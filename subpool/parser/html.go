package parser

import (
	"bytes"
	"net"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"subpilot/internal/shared/types"
	"subpilot/subpool/model"
)

// parseHTML extracts plain http proxies from proxy-list style pages: any
// table row whose first two cells are an IP address and a port becomes one
// candidate. Everything else on the page is ignored.
func (p *Parser) parseHTML(src types.Source, data []byte) []model.Descriptor {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		p.log.Warn().Err(err).Str("url", src.URL).Msg("Failed to parse HTML payload.")
		return nil
	}

	var descriptors []model.Descriptor
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		ip := strings.TrimSpace(cells.Eq(0).Text())
		if net.ParseIP(ip) == nil {
			return
		}
		port, err := strconv.Atoi(strings.TrimSpace(cells.Eq(1).Text()))
		if err != nil {
			return
		}

		d, err := newEndpoint(model.ProtocolHTTP, ip, port, "", src)
		if err != nil {
			return
		}
		descriptors = append(descriptors, d)
	})

	return descriptors
}

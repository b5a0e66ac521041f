package parser

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"TenderScanner/internal/scanner"
)

func fetchDocument(ctx context.Context, s scanner.Session, pageURL string) (*goquery.Document, error) {
	if s.HTTP == nil {
		return nil, eris.New("no http capability in session")
	}
	body, err := s.HTTP.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse document")
	}
	return doc, nil
}

func browserDocument(ctx context.Context, s scanner.Session, pageURL, wait string) (*goquery.Document, error) {
	if s.Browser == nil {
		return nil, eris.New("no browser capability in session")
	}
	if err := s.Browser.Navigate(ctx, pageURL); err != nil {
		return nil, err
	}
	if wait != "" {
		// Empty result pages never render the item selector.
		if err := s.Browser.WaitFor(ctx, wait, waitTimeout); err != nil {
			s.Log().Debug("listing selector did not appear", zap.String("selector", wait), zap.Error(err))
		}
	}
	src, err := s.Browser.PageSource(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, eris.Wrap(err, "parse page source")
	}
	return doc, nil
}

// resolve makes href absolute against the page it was found on.
func resolve(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func pageURL(urls []string, idx int) string {
	if len(urls) == 0 {
		return ""
	}
	if idx >= len(urls) {
		idx = len(urls) - 1
	}
	return urls[idx]
}

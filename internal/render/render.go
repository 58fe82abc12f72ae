// Package render converts raw fetched HTML into the normalized page result
// shared by every engine implementation.
package render

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Renderer builds crawl results from raw HTML.
type Renderer struct {
	converter *md.Converter
}

// New creates a Renderer.
func New() *Renderer {
	conv := md.NewConverter("", true, nil)
	return &Renderer{converter: conv}
}

// Page is the normalized rendering of one fetched document.
type Page struct {
	Title       string
	Markdown    string
	FitMarkdown string
	Images      []Image
	Videos      []Video
	Internal    []Link
	External    []Link
}

// Image is one <img> reference.
type Image struct {
	Src    string
	Alt    string
	Width  string
	Height string
}

// Video is one <video> source reference.
type Video struct {
	Src    string
	Poster string
}

// Link is one anchor.
type Link struct {
	Href string
	Text string
}

// Render parses html and produces markdown, a readability-pruned variant,
// and media/link listings. The raw markdown is always produced; fit markdown
// falls back to the raw markdown when readability finds no article body.
func (r *Renderer) Render(html, pageURL string) (Page, error) {
	var page Page

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	base, _ := url.Parse(pageURL)
	r.collectMedia(doc, base, &page)
	r.collectLinks(doc, base, &page)

	markdown, err := r.converter.ConvertString(html)
	if err != nil {
		return Page{}, fmt.Errorf("convert markdown: %w", err)
	}
	page.Markdown = markdown
	page.FitMarkdown = r.fitMarkdown(html, base, markdown)

	return page, nil
}

func (r *Renderer) fitMarkdown(html string, base *url.URL, raw string) string {
	article, err := readability.FromReader(strings.NewReader(html), base)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return raw
	}
	fit, err := r.converter.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(fit) == "" {
		return raw
	}
	return fit
}

func (r *Renderer) collectMedia(doc *goquery.Document, base *url.URL, page *Page) {
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		page.Images = append(page.Images, Image{
			Src:    resolveRef(base, src),
			Alt:    sel.AttrOr("alt", ""),
			Width:  sel.AttrOr("width", ""),
			Height: sel.AttrOr("height", ""),
		})
	})
	doc.Find("video").Each(func(_ int, sel *goquery.Selection) {
		src := sel.AttrOr("src", "")
		if src == "" {
			src = sel.Find("source").First().AttrOr("src", "")
		}
		if src == "" {
			return
		}
		page.Videos = append(page.Videos, Video{
			Src:    resolveRef(base, src),
			Poster: sel.AttrOr("poster", ""),
		})
	})
}

func (r *Renderer) collectLinks(doc *goquery.Document, base *url.URL, page *Page) {
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved := resolveRef(base, href)
		link := Link{Href: resolved, Text: strings.TrimSpace(sel.Text())}
		if sameHost(base, resolved) {
			page.Internal = append(page.Internal, link)
		} else {
			page.External = append(page.External, link)
		}
	})
}

func resolveRef(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func sameHost(base *url.URL, resolved string) bool {
	if base == nil {
		return false
	}
	u, err := url.Parse(resolved)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), base.Hostname())
}

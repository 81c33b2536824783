package agg

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// imageExtensions mark a URL as pointing at an image
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// lazySrcAttrs are the attributes checked on img/source tags, in order.
// Covers the common lazy-loading variants.
var lazySrcAttrs = []string{"src", "data-src", "data-original", "data-lazy-src", "data-srcset", "srcset"}

// extractImage finds a representative image URL for a feed entry. Strategies
// are tried in order, first hit wins; everything is best-effort and a miss
// returns the empty string.
func extractImage(entry *gofeed.Item, baseLink string) string {
	strategies := []func(*gofeed.Item) string{
		imageFromMedia,
		imageFromLinks,
		imageFromEntryImage,
		imageFromEmbeddedHTML(baseLink),
		imageFromExtensionScan,
	}

	for _, strategy := range strategies {
		if found := strategy(entry); found != "" {
			return resolveURL(found, baseLink)
		}
	}
	return ""
}

// imageFromMedia checks enclosures and media:content/media:thumbnail
// extension fields
func imageFromMedia(entry *gofeed.Item) string {
	for _, enc := range entry.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "image") || looksLikeImage(enc.URL) {
			return enc.URL
		}
	}

	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}
	for _, field := range []string{"content", "thumbnail"} {
		for _, e := range media[field] {
			for _, attr := range []string{"url", "href", "src"} {
				if v := e.Attrs[attr]; v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// imageFromLinks picks a link that looks like an image URL
func imageFromLinks(entry *gofeed.Item) string {
	for _, l := range entry.Links {
		if looksLikeImage(l) {
			return l
		}
	}
	return ""
}

// imageFromEntryImage uses the entry-level image field when present
func imageFromEntryImage(entry *gofeed.Item) string {
	if entry.Image != nil && entry.Image.URL != "" {
		return entry.Image.URL
	}
	return ""
}

// imageFromEmbeddedHTML parses HTML embedded in the content or summary.
// Content takes precedence over the summary when both are present.
func imageFromEmbeddedHTML(baseLink string) func(*gofeed.Item) string {
	return func(entry *gofeed.Item) string {
		htmlText := entry.Content
		if htmlText == "" {
			htmlText = entry.Description
		}
		if htmlText == "" {
			return ""
		}
		return extractImageFromHTML(htmlText, baseLink)
	}
}

// imageFromExtensionScan is the last resort: walk every extension value in
// the entry looking for anything that resembles an image URL
func imageFromExtensionScan(entry *gofeed.Item) string {
	for _, fields := range entry.Extensions {
		for _, exts := range fields {
			if found := scanExtensions(exts); found != "" {
				return found
			}
		}
	}
	for _, v := range entry.Custom {
		if found := imageCandidate(v); found != "" {
			return found
		}
	}
	return ""
}

// scanExtensions recursively searches extension values and attributes
func scanExtensions(exts []ext.Extension) string {
	for _, e := range exts {
		if found := imageCandidate(e.Value); found != "" {
			return found
		}
		for _, v := range e.Attrs {
			if found := imageCandidate(v); found != "" {
				return found
			}
		}
		for _, children := range e.Children {
			if found := scanExtensions(children); found != "" {
				return found
			}
		}
	}
	return ""
}

// imageCandidate accepts protocol-relative URLs and absolute URLs with a
// known image extension
func imageCandidate(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "//") {
		return "https:" + s
	}
	if strings.HasPrefix(s, "http") && looksLikeImage(s) {
		return s
	}
	return ""
}

// looksLikeImage reports whether the string contains a known image extension
func looksLikeImage(s string) bool {
	lower := strings.ToLower(s)
	for _, imgExt := range imageExtensions {
		if strings.Contains(lower, imgExt) {
			return true
		}
	}
	return false
}

// extractImageFromHTML pulls an image URL out of an HTML fragment or page:
// Open Graph meta, then Twitter meta, then picture/figure sources, then the
// first plain img tag
func extractImageFromHTML(htmlText, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}

	if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && content != "" {
		return content
	}
	if content, ok := doc.Find(`meta[name="twitter:image"]`).Attr("content"); ok && content != "" {
		return content
	}

	// prefer picture/figure sources over bare img tags
	if container := doc.Find("picture, figure").First(); container.Length() > 0 {
		if tag := container.Find("img, source").First(); tag.Length() > 0 {
			if resolved := resolveTagSrc(tag, baseURL); resolved != "" {
				return resolved
			}
		}
	}

	if img := doc.Find("img").First(); img.Length() > 0 {
		if resolved := resolveTagSrc(img, baseURL); resolved != "" {
			return resolved
		}
	}

	return ""
}

// resolveTagSrc extracts a usable source from an img/source tag, handling
// lazy-load attribute variants and srcset lists
func resolveTagSrc(tag *goquery.Selection, baseURL string) string {
	var src string
	for _, attr := range lazySrcAttrs {
		if v, ok := tag.Attr(attr); ok && v != "" {
			src = v
			break
		}
	}
	if src == "" {
		return ""
	}

	// srcset: take the first candidate URL
	if strings.Contains(src, ",") && strings.Contains(src, "http") {
		src = strings.TrimSpace(strings.Split(src, ",")[0])
		src = strings.Split(src, " ")[0]
	}

	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/") && baseURL != "":
		return prefixHost(src, baseURL)
	case strings.HasPrefix(src, "http"):
		return src
	}
	return ""
}

// resolveURL normalizes relative and protocol-relative URLs to absolute form
func resolveURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/") && base != "":
		return prefixHost(raw, base)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "www."):
		return "https://" + raw
	}
	return raw
}

// prefixHost joins a root-relative path with the scheme and host of base
func prefixHost(path, base string) string {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return path
	}
	return parsed.Scheme + "://" + parsed.Host + path
}

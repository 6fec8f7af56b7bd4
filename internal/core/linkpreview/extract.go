package linkpreview

import (
	"encoding/json"
	"fmt"
	"html"
	"math"
	"net/url"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
)

// faviconServiceFormat is the third-party fallback used when a page declares no
// icon of its own; the favicon field is never empty.
const faviconServiceFormat = "https://www.google.com/s2/favicons?domain=%s&sz=64"

// Extract parses retrieved HTML into a Preview. It is a pure function over
// text: no network access, and malformed markup degrades to fewer fields
// rather than an error. Field priority (independently per field):
//
//	title:       og:title > twitter:title > JSON-LD Product.name > <title>
//	description: og:description > twitter:description > Product.description > <meta name=description>
//	image:       og:image > twitter:image > Product.image
//	price:       JSON-LD Product offers > product:price:amount/currency meta pair
//	favicon:     apple-touch-icon > icon > shortcut icon > favicon service by domain
func Extract(htmlText, finalURL string) Preview {
	doc := scanDocument(htmlText)
	products := parseProducts(doc.jsonLD)

	var p Preview

	p.Title = firstText(
		doc.meta["og:title"],
		doc.meta["twitter:title"],
		productName(products),
		doc.titleText,
	)
	p.Description = firstText(
		doc.meta["og:description"],
		doc.meta["twitter:description"],
		productDescription(products),
		doc.meta["description"],
	)
	p.Image = firstText(
		doc.meta["og:image"],
		doc.meta["twitter:image"],
		productImage(products),
	)

	p.Images = collectImages(p.Image, doc.ogImages)
	p.Price = extractPrice(products, doc.meta["product:price:amount"], doc.meta["product:price:currency"])
	p.Favicon = resolveFavicon(doc.icons, finalURL)

	return p
}

// documentMeta is everything one traversal of the markup yields.
type documentMeta struct {
	meta      map[string]string // first content per meta property/name
	ogImages  []string          // every og:image value in document order
	titleText string            // first <title> element text
	icons     map[string]string // first href per icon rel
	jsonLD    []string          // raw ld+json script bodies
}

// scanDocument walks the parsed tree once, collecting meta tags, the title
// element, icon links, and JSON-LD blocks. x/net/html tolerates broken markup,
// so even truncated pages yield whatever was parseable.
func scanDocument(htmlText string) documentMeta {
	doc := documentMeta{
		meta:  make(map[string]string),
		icons: make(map[string]string),
	}

	root, err := xhtml.Parse(strings.NewReader(htmlText))
	if err != nil {
		return doc
	}

	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.Data {
			case "meta":
				key := getAttr(n, "property")
				if key == "" {
					key = getAttr(n, "name")
				}
				key = strings.ToLower(key)
				content := getAttr(n, "content")
				if key != "" && content != "" {
					if _, seen := doc.meta[key]; !seen {
						doc.meta[key] = content
					}
					if key == "og:image" {
						doc.ogImages = append(doc.ogImages, content)
					}
				}

			case "title":
				if doc.titleText == "" && n.FirstChild != nil && n.FirstChild.Type == xhtml.TextNode {
					doc.titleText = n.FirstChild.Data
				}

			case "link":
				rel := normalizeRel(getAttr(n, "rel"))
				href := getAttr(n, "href")
				if rel != "" && href != "" {
					if _, seen := doc.icons[rel]; !seen {
						doc.icons[rel] = href
					}
				}

			case "script":
				if strings.EqualFold(getAttr(n, "type"), "application/ld+json") {
					var b strings.Builder
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						if c.Type == xhtml.TextNode {
							b.WriteString(c.Data)
						}
					}
					if b.Len() > 0 {
						doc.jsonLD = append(doc.jsonLD, b.String())
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return doc
}

// getAttr gets an attribute value from an HTML node.
func getAttr(n *xhtml.Node, key string) string {
	for _, attr := range n.Attr {
		if strings.EqualFold(attr.Key, key) {
			return attr.Val
		}
	}
	return ""
}

// normalizeRel lowercases a rel attribute and collapses its whitespace so
// `rel="Shortcut  Icon"` matches "shortcut icon".
func normalizeRel(rel string) string {
	return strings.Join(strings.Fields(strings.ToLower(rel)), " ")
}

// firstText returns the first non-empty candidate, whitespace-trimmed and
// entity-decoded, or nil when every candidate is empty.
func firstText(candidates ...string) *string {
	for _, c := range candidates {
		c = strings.TrimSpace(html.UnescapeString(c))
		if c != "" {
			return &c
		}
	}
	return nil
}

// collectImages builds the ordered, deduplicated image list: the primary image
// first, then every additional distinct og:image in document order.
func collectImages(primary *string, ogImages []string) []string {
	var images []string
	seen := make(map[string]struct{})
	add := func(u string) {
		u = strings.TrimSpace(html.UnescapeString(u))
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}

	if primary != nil {
		add(*primary)
	}
	for _, u := range ogImages {
		add(u)
	}
	return images
}

// resolveFavicon picks the page's declared icon by rel priority, resolved to an
// absolute URL against the final page URL, falling back to a favicon-by-domain
// service so the field is never empty.
func resolveFavicon(icons map[string]string, finalURL string) string {
	for _, rel := range []string{"apple-touch-icon", "icon", "shortcut icon"} {
		if href, ok := icons[rel]; ok {
			return resolveAgainst(finalURL, href)
		}
	}
	return fmt.Sprintf(faviconServiceFormat, ExtractDomain(finalURL))
}

// resolveAgainst resolves ref relative to base, returning ref unchanged when
// either side fails to parse.
func resolveAgainst(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// ldProduct is the subset of a schema.org Product this extractor cares about.
type ldProduct struct {
	name        string
	description string
	image       string
	price       *Price
}

// parseProducts scans every JSON-LD block for Product objects, either at the
// top level (single object or array) or nested one level inside an @graph
// array. Blocks that fail to parse are skipped, not fatal.
func parseProducts(blocks []string) []ldProduct {
	var products []ldProduct
	for _, block := range blocks {
		var parsed interface{}
		if err := json.Unmarshal([]byte(block), &parsed); err != nil {
			continue
		}

		var candidates []map[string]interface{}
		switch v := parsed.(type) {
		case map[string]interface{}:
			candidates = append(candidates, v)
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok {
					candidates = append(candidates, m)
				}
			}
		}

		for _, obj := range candidates {
			if isProductType(obj["@type"]) {
				products = append(products, parseProduct(obj))
				continue
			}
			if graph, ok := obj["@graph"].([]interface{}); ok {
				for _, item := range graph {
					if m, ok := item.(map[string]interface{}); ok && isProductType(m["@type"]) {
						products = append(products, parseProduct(m))
					}
				}
			}
		}
	}
	return products
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func parseProduct(obj map[string]interface{}) ldProduct {
	p := ldProduct{
		name:        stringField(obj["name"]),
		description: stringField(obj["description"]),
		image:       imageField(obj["image"]),
		price:       offersPrice(obj["offers"]),
	}
	return p
}

func stringField(v interface{}) string {
	s, _ := v.(string)
	return s
}

// imageField handles the three shapes Product.image appears in: a plain
// string, an array (first usable element), or an ImageObject with a url.
func imageField(v interface{}) string {
	switch img := v.(type) {
	case string:
		return img
	case []interface{}:
		for _, item := range img {
			if s := imageField(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		return stringField(img["url"])
	}
	return ""
}

// offersPrice extracts a price from Product.offers, which may be a single
// offer object or an array; the first entry carrying both a price and a
// currency wins.
func offersPrice(v interface{}) *Price {
	switch offers := v.(type) {
	case map[string]interface{}:
		return offerPrice(offers)
	case []interface{}:
		for _, item := range offers {
			if m, ok := item.(map[string]interface{}); ok {
				if p := offerPrice(m); p != nil {
					return p
				}
			}
		}
	}
	return nil
}

func offerPrice(offer map[string]interface{}) *Price {
	currency := stringField(offer["priceCurrency"])
	if currency == "" {
		return nil
	}
	for _, key := range []string{"price", "lowPrice"} {
		if amount, ok := coerceNumber(offer[key]); ok {
			return &Price{Amount: amount, Currency: currency}
		}
	}
	return nil
}

// coerceNumber accepts numeric or string-typed prices, discarding anything
// non-finite.
func coerceNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// extractPrice prefers JSON-LD offers, then falls back to the OpenGraph
// product:price meta pair.
func extractPrice(products []ldProduct, metaAmount, metaCurrency string) *Price {
	for _, p := range products {
		if p.price != nil {
			return p.price
		}
	}
	if metaAmount != "" && metaCurrency != "" {
		if amount, ok := coerceNumber(metaAmount); ok {
			return &Price{Amount: amount, Currency: strings.TrimSpace(metaCurrency)}
		}
	}
	return nil
}

func productName(products []ldProduct) string {
	for _, p := range products {
		if p.name != "" {
			return p.name
		}
	}
	return ""
}

func productDescription(products []ldProduct) string {
	for _, p := range products {
		if p.description != "" {
			return p.description
		}
	}
	return ""
}

func productImage(products []ldProduct) string {
	for _, p := range products {
		if p.image != "" {
			return p.image
		}
	}
	return ""
}

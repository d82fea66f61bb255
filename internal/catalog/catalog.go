// Package catalog loads the product list and resolves product mentions in
// free-form customer text.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"iara/internal/textutil"
	"iara/pkg/models"

	"github.com/rs/zerolog/log"
)

// Keywords a customer may use before a volume number ("tabib 3", "volume 3",
// "o v3"). "bibi" is a recurring customer misspelling of the brand name.
var numberKeywords = []string{"tabib", "bibi", "volume", "vol", "v", "produto"}

var (
	volumeRx  = regexp.MustCompile(`(?:tabib|volume|vol)\D{0,10}?(\d{1,2})`)
	mentionRx = regexp.MustCompile(`(?:^|\s)(tabib|bibi|volume|vol|v|produto)\s*(\d{1,2})(?:\s|$)`)
)

// Catalog is an immutable product index built once at startup. Safe for
// concurrent use without locking.
type Catalog struct {
	products []models.Product
	aliases  []map[string]struct{} // parallel to products
}

// Load reads a JSON array of product entries from path. Entries without a
// name or checkout URL are dropped. A missing or corrupt file yields an empty
// catalog, never an error that would block startup.
func Load(path string) *Catalog {
	c := &Catalog{}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Catalog file unavailable, starting with empty catalog")
		return c
	}

	var items []models.Product
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Catalog file corrupt, starting with empty catalog")
		return c
	}

	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		checkout := strings.TrimSpace(it.Checkout)
		if name == "" || checkout == "" {
			continue
		}
		p := models.Product{
			Name:        name,
			Checkout:    checkout,
			Image:       strings.TrimSpace(it.Image),
			Description: strings.TrimSpace(it.Description),
		}
		set := makeAliases(name, it.Aliases)
		for a := range set {
			p.Aliases = append(p.Aliases, a)
		}
		c.products = append(c.products, p)
		c.aliases = append(c.aliases, set)
	}

	log.Info().Int("count", len(c.products)).Str("path", path).Msg("Catalog loaded")
	return c
}

// makeAliases builds the normalized alias set for a product: the normalized
// name, any explicit aliases, and numeric-volume variants when the name
// carries a volume number.
func makeAliases(name string, explicit []string) map[string]struct{} {
	set := map[string]struct{}{textutil.Normalize(name): {}}
	for _, a := range explicit {
		if n := textutil.Normalize(a); n != "" {
			set[n] = struct{}{}
		}
	}
	if m := volumeRx.FindStringSubmatch(strings.ToLower(name)); m != nil {
		for _, a := range numberAliases(m[1]) {
			set[a] = struct{}{}
		}
	}
	return set
}

// numberAliases are the ways customers refer to volume n.
func numberAliases(n string) []string {
	variants := []string{
		"tabib " + n,
		"tabib vol " + n,
		"tabib volume " + n,
		"tabib" + n,
		"volume " + n,
		"v" + n,
		"bibi " + n,
	}
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if a := textutil.Normalize(v); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Len reports the number of loaded products.
func (c *Catalog) Len() int { return len(c.products) }

// Products returns the loaded products in catalog order.
func (c *Catalog) Products() []models.Product { return c.products }

// At returns the product at 1-based menu position n, or nil.
func (c *Catalog) At(n int) *models.Product {
	if n < 1 || n > len(c.products) {
		return nil
	}
	return &c.products[n-1]
}

// MenuText renders the numbered product menu sent on support requests.
func (c *Catalog) MenuText() string {
	if len(c.products) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range c.products {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Find resolves a product mention in free text. Priority, first match wins:
//
//  1. brand keyword followed by a 1-2 digit number ("quero o volume 2"),
//     disambiguated against each product's alias set;
//  2. any alias contained in the normalized text, catalog order;
//  3. token overlap between the query and a product name, threshold 2.
//
// Numeric mentions are checked first because short forms like "o 3" would
// otherwise false-positive against unrelated aliases containing digits.
func (c *Catalog) Find(text string) *models.Product {
	q := textutil.Normalize(text)
	if q == "" || len(c.products) == 0 {
		return nil
	}

	if m := mentionRx.FindStringSubmatch(" " + q + " "); m != nil {
		candidates := numberAliases(m[2])
		candidates = append(candidates, textutil.Normalize(m[1]+" "+m[2]))
		for i := range c.products {
			for _, cand := range candidates {
				if _, ok := c.aliases[i][cand]; ok {
					return &c.products[i]
				}
			}
		}
	}

	padded := " " + q + " "
	for i := range c.products {
		for a := range c.aliases[i] {
			if strings.Contains(padded, " "+a+" ") {
				return &c.products[i]
			}
		}
	}

	queryTokens := map[string]struct{}{}
	for _, tok := range strings.Fields(q) {
		queryTokens[tok] = struct{}{}
	}
	var best *models.Product
	bestCount := 0
	for i := range c.products {
		count := 0
		for _, tok := range strings.Fields(textutil.Normalize(c.products[i].Name)) {
			if _, ok := queryTokens[tok]; ok {
				count++
			}
		}
		if count >= 2 && count > bestCount {
			best = &c.products[i]
			bestCount = count
		}
	}
	return best
}

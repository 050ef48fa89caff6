package services

import (
	"strconv"
	"strings"

	"PizzaurumBackend/internal/models"

	"github.com/shopspring/decimal"
)

// Checkout line items travel through processor metadata in a compact encoding
// to stay inside the 500-character metadata value limit:
//
//	products_compact: "<productId>:<qty>:<extrasCount>,..."
//	products_extras:  "<entryIndex>:<name>|<price>,<name>|<price>;<entryIndex>:..."

// EncodeProducts builds the products_compact and products_extras metadata
// values for a set of line items.
func EncodeProducts(products []models.OrderProduct) (compact, extras string) {
	compactParts := make([]string, 0, len(products))
	var extrasParts []string

	for i, p := range products {
		id := ""
		if p.ProductID != nil {
			id = *p.ProductID
		}
		compactParts = append(compactParts,
			id+":"+strconv.Itoa(p.Quantity)+":"+strconv.Itoa(len(p.Extras)))

		if len(p.Extras) == 0 {
			continue
		}
		pairs := make([]string, 0, len(p.Extras))
		for _, e := range p.Extras {
			pairs = append(pairs, e.Name+"|"+e.Price.String())
		}
		extrasParts = append(extrasParts, strconv.Itoa(i)+":"+strings.Join(pairs, ","))
	}
	return strings.Join(compactParts, ","), strings.Join(extrasParts, ";")
}

// DecodeProducts reverses EncodeProducts. Prices of the base products are not
// part of the encoding, so decoded items carry a zero price and a placeholder
// name derived from the product id.
func DecodeProducts(compact, extras string) []models.OrderProduct {
	if compact == "" {
		return nil
	}

	extrasByEntry := decodeExtras(extras)

	entries := strings.Split(compact, ",")
	products := make([]models.OrderProduct, 0, len(entries))
	for i, entry := range entries {
		parts := strings.Split(entry, ":")
		if len(parts) < 2 {
			continue
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		id := parts[0]
		products = append(products, models.OrderProduct{
			ProductID: &id,
			Name:      "Prodotto " + id,
			Price:     decimal.Zero,
			Quantity:  qty,
			Extras:    extrasByEntry[i],
		})
	}
	return products
}

func decodeExtras(extras string) map[int][]models.ProductExtra {
	if extras == "" {
		return nil
	}
	out := make(map[int][]models.ProductExtra)
	for _, group := range strings.Split(extras, ";") {
		indexStr, pairs, ok := strings.Cut(group, ":")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(indexStr)
		if err != nil {
			continue
		}
		for _, pair := range strings.Split(pairs, ",") {
			name, priceStr, ok := strings.Cut(pair, "|")
			if !ok {
				continue
			}
			price, err := decimal.NewFromString(priceStr)
			if err != nil {
				continue
			}
			out[index] = append(out[index], models.ProductExtra{Name: name, Price: price})
		}
	}
	return out
}

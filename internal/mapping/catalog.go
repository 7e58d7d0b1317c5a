package mapping

import (
	"fmt"
	"io"

	"github.com/rpattn/salesingest/internal/domain"

	"gopkg.in/yaml.v3"
)

// Catalog holds the recognized header spellings of each optional column.
// Alias order is priority order. A Catalog is immutable once built.
type Catalog struct {
	aliases map[domain.Column][]string
}

var defaultAliases = map[domain.Column][]string{
	domain.ColumnProductName: {
		"product", "product_name", "productname", "item", "item_name", "itemname",
		"sku_name", "product_title", "producttitle", "item_title", "itemtitle",
	},
	domain.ColumnCategory: {
		"category", "product_category", "productcategory", "item_category", "itemcategory",
		"type", "product_type", "producttype", "segment", "classification", "group",
	},
	domain.ColumnSalesChannel: {
		"sales_channel", "saleschannel", "channel", "order_channel", "orderchannel",
		"source", "order_source", "ordersource", "platform", "purchase_mode", "purchasemode",
	},
	domain.ColumnState: {
		"state", "region", "province", "state_name", "statename", "delivery_state",
		"shipping_state", "billing_state", "location_state", "territory",
	},
	domain.ColumnCity: {
		"city", "town", "city_name", "cityname", "delivery_city", "shipping_city",
		"billing_city", "location_city", "municipality", "place",
	},
}

// DefaultCatalog returns the built-in alias catalog.
func DefaultCatalog() Catalog {
	catalog, _ := NewCatalog(defaultAliases)
	return catalog
}

// NewCatalog builds a catalog from alias lists. Only optional columns may
// carry aliases.
func NewCatalog(aliases map[domain.Column][]string) (Catalog, error) {
	copied := make(map[domain.Column][]string, len(aliases))
	for col, list := range aliases {
		if !col.IsOptional() {
			return Catalog{}, fmt.Errorf("aliases are only supported for optional columns, got %q", col)
		}
		copied[col] = append([]string(nil), list...)
	}
	return Catalog{aliases: copied}, nil
}

// Aliases returns the alias list of col in priority order.
func (c Catalog) Aliases(col domain.Column) []string {
	return append([]string(nil), c.aliases[col]...)
}

type catalogFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadCatalog reads a YAML alias file of the form
//
//	aliases:
//	  product_name: [product, item]
//
// Columns listed in the file replace the built-in list; unlisted columns keep
// their defaults.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return Catalog{}, fmt.Errorf("failed to decode alias catalog: %w", err)
	}

	merged := make(map[domain.Column][]string, len(defaultAliases))
	for col, list := range defaultAliases {
		merged[col] = list
	}
	for name, list := range file.Aliases {
		col, err := domain.ParseColumn(name)
		if err != nil {
			return Catalog{}, fmt.Errorf("invalid alias catalog: %w", err)
		}
		merged[col] = list
	}
	return NewCatalog(merged)
}

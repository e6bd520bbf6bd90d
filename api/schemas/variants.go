// File: api/schemas/variants.go
package schemas

// Variant is one purchasable sub-option as displayed by the storefront.
// Price and MSRP are the raw display strings.
type Variant struct {
	Name  string `json:"variant_name,omitempty"`
	Price string `json:"price,omitempty"`
	MSRP  string `json:"msrp,omitempty"`
}

// VariantsResult describes a product page and every variant it offers.
type VariantsResult struct {
	DispensaryName     string    `json:"dispensary_name,omitempty"`
	DispensaryImageURL string    `json:"dispensary_image_url,omitempty"`
	ProductName        string    `json:"product_name,omitempty"`
	ProductImageURL    string    `json:"product_image_url,omitempty"`
	Variants           []Variant `json:"variants"`
	// Selected is the variant the resolution policy settled on, if any.
	Selected *Variant `json:"selected_variant,omitempty"`
}

// Names returns the display names of every named variant.
func (r VariantsResult) Names() []string {
	names := make([]string, 0, len(r.Variants))
	for _, v := range r.Variants {
		if v.Name != "" {
			names = append(names, v.Name)
		}
	}
	return names
}

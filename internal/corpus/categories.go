package corpus

// Category is one corpus category. The engine rebuilds and audits the corpus
// category by category, always in the order of CoreCategories.
type Category struct {
	ID    string
	Name  string
	Seeds []string
}

// CoreCategories is the fixed, ordered category list for the IN/en corpus.
// Order matters: rebuild progress counters index into this slice on resume.
var CoreCategories = []Category{
	{ID: "shaving", Name: "Shaving", Seeds: []string{"razor", "shaving cream", "after shave"}},
	{ID: "beard", Name: "Beard Care & Beard Colour", Seeds: []string{"beard oil", "beard trimmer", "beard colour"}},
	{ID: "hair-styling", Name: "Hair Styling", Seeds: []string{"hair wax", "hair gel", "hair spray"}},
	{ID: "sexual-wellness", Name: "Sexual Wellness", Seeds: []string{"condoms", "lubricant"}},
	{ID: "intimate-hygiene", Name: "Intimate Hygiene (Men)", Seeds: []string{"intimate wash men"}},
	{ID: "hair-colour", Name: "Hair Colour (Head)", Seeds: []string{"hair colour men", "hair dye"}},
	{ID: "face-care", Name: "Face Care", Seeds: []string{"face wash men", "face cream men", "sunscreen"}},
	{ID: "deodorants", Name: "Deodorants / Body Sprays / Perfumes", Seeds: []string{"deodorant", "body spray", "perfume men"}},
	{ID: "hair-oil", Name: "Hair Oil", Seeds: []string{"hair oil", "coconut hair oil"}},
	{ID: "fragrance-premium", Name: "Fragrances (Premium)", Seeds: []string{"premium perfume", "eau de parfum"}},
	{ID: "skincare-spec", Name: "Skincare Specialist", Seeds: []string{"serum men", "niacinamide", "retinol"}},
	{ID: "shampoo", Name: "Shampoo / Conditioner", Seeds: []string{"shampoo men", "anti dandruff shampoo"}},
	{ID: "soap", Name: "Soap / Body Wash / Shower Gel", Seeds: []string{"body wash", "shower gel"}},
	{ID: "body-lotion", Name: "Body Lotion / Cream", Seeds: []string{"body lotion men"}},
	{ID: "talcum", Name: "Talcum Powder", Seeds: []string{"talcum powder"}},
}

const (
	// DefaultCountry and DefaultLanguage scope every snapshot and pointer key.
	DefaultCountry  = "IN"
	DefaultLanguage = "en"
)

// CategoryIDs returns the ids of CoreCategories in order.
func CategoryIDs() []string {
	ids := make([]string, 0, len(CoreCategories))
	for _, c := range CoreCategories {
		ids = append(ids, c.ID)
	}
	return ids
}

// ByID looks a category up by id.
func ByID(id string) (Category, bool) {
	for _, c := range CoreCategories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

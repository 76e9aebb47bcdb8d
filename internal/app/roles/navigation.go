package roles

// NavEntry is one capability entry of the role-based navigation.
type NavEntry struct {
	Route string `json:"route"`
	Label string `json:"label"`
}

// navigationByRole maps each role to its fixed list of entries.
var navigationByRole = map[Role][]NavEntry{
	Buyer: {
		{Route: "/account/orders", Label: "My orders"},
		{Route: "/cart", Label: "Cart"},
		{Route: "/account/wishlist", Label: "Wishlist"},
		{Route: "/account/settings", Label: "Settings"},
	},
	Seller: {
		{Route: "/seller/dashboard", Label: "Seller dashboard"},
		{Route: "/seller/products", Label: "My products"},
		{Route: "/seller/orders", Label: "Incoming orders"},
		{Route: "/account/settings", Label: "Settings"},
	},
	Deliverer: {
		{Route: "/delivery/jobs", Label: "Delivery jobs"},
		{Route: "/delivery/history", Label: "Delivery history"},
		{Route: "/account/settings", Label: "Settings"},
	},
	Helper: {
		{Route: "/support/tickets", Label: "Support tickets"},
		{Route: "/account/settings", Label: "Settings"},
	},
	Admin: {
		{Route: "/admin", Label: "Admin dashboard"},
		{Route: "/admin/users", Label: "Users"},
		{Route: "/admin/categories", Label: "Categories"},
		{Route: "/admin/coupons", Label: "Coupons"},
		{Route: "/admin/events", Label: "Events"},
	},
}

// Navigation returns the union of the entries of every held role, in role order,
// with duplicate routes removed (first occurrence wins).
func Navigation(s Set) []NavEntry {
	seen := make(map[string]struct{})
	var out []NavEntry

	for _, r := range s.Sorted() {
		for _, entry := range navigationByRole[r] {
			if _, dup := seen[entry.Route]; dup {
				continue
			}
			seen[entry.Route] = struct{}{}
			out = append(out, entry)
		}
	}
	return out
}

package accounting

// Item is an ERP catalog item. Invoice lines must reference an existing item.
type Item struct {
	// Code is the item code, equal to the marketplace SKU
	Code        string
	Description string
	// ListingID is the legacy marketplace item id of the item's live listing
	ListingID string
}

// DisplayDescription returns the description, or a placeholder when blank
func (i *Item) DisplayDescription() string {
	if i.Description == "" {
		return "(no item description)"
	}
	return i.Description
}

// Account is a ledger account
type Account struct {
	Name     string
	Currency string
}

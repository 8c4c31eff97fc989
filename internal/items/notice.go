package items

import "fmt"

// AlertNotice renders the in-app notification for a raised alert. The
// second return is false for an unknown alert type.
func AlertNotice(item Item, alertType AlertType) (title, message string, ok bool) {
	switch alertType {
	case AlertOutOfStock:
		return "Out of Stock Alert",
			fmt.Sprintf("Item %s (%s) is now OUT OF STOCK (Qty: 0).", item.Code, item.Name),
			true
	case AlertLowStock:
		return "Low Stock Alert",
			fmt.Sprintf("Item %s (%s) is running low (Qty: %d).", item.Code, item.Name, item.Stock),
			true
	case AlertExpired:
		expiry := ""
		if item.ExpiryDate != nil {
			expiry = item.ExpiryDate.Format("2006-01-02")
		}
		return "Expiry Alert",
			fmt.Sprintf("Item %s (%s) has EXPIRED on %s. Qty wasted: %d.",
				item.Code, item.Name, expiry, item.Stock),
			true
	}
	return "", "", false
}

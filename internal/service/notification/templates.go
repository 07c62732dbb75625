package notification

import (
	"fmt"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

const unnamedProduct = "your product"

// Render собирает текст уведомления по шаблону типа.
func Render(t domain.NotificationType, details domain.NoticeDetails) (string, error) {
	name := details.ProductName
	if name == "" {
		name = unnamedProduct
	} else {
		name = fmt.Sprintf("%q", name)
	}
	qty := details.Quantity
	if qty <= 0 {
		qty = 1
	}

	switch t {
	case domain.NotificationView:
		return fmt.Sprintf("Someone viewed %s.", name), nil
	case domain.NotificationCart:
		return fmt.Sprintf("A buyer added %d x %s to their cart.", qty, name), nil
	case domain.NotificationPurchase:
		return fmt.Sprintf("New order: %d x %s was purchased.", qty, name), nil
	case domain.NotificationDonation:
		return fmt.Sprintf("Donation request received for %d x %s.", qty, name), nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrNotificationType, t)
	}
}

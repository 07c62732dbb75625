package domain

import "time"

// NotificationType определяет шаблон сообщения.
type NotificationType string

const (
	NotificationView     NotificationType = "view"
	NotificationCart     NotificationType = "cart"
	NotificationPurchase NotificationType = "purchase"
	NotificationDonation NotificationType = "donation"
)

// Valid проверяет тип уведомления.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationView, NotificationCart, NotificationPurchase, NotificationDonation:
		return true
	default:
		return false
	}
}

// Notification: запись уведомления для пользователя (обычно продавца).
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	ProductID   string
	// FromUserID пуст для анонимных просмотров.
	FromUserID string
	Message    string
	IsRead     bool
	CreatedAt  time.Time
}

// NoticeDetails: контекст для подстановки в шаблон.
type NoticeDetails struct {
	ProductName string
	Quantity    int
}

// Notice: запрос на отправку уведомления.
type Notice struct {
	RecipientID string
	Type        NotificationType
	ProductID   string
	FromUserID  string
	Details     NoticeDetails
}

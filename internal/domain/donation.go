package domain

import "time"

// DonationStatus отражает статус заявки на пожертвование товара.
type DonationStatus string

const (
	// DonationStatusRequested: заявка создана, остаток товара уже списан.
	DonationStatusRequested DonationStatus = "requested"
	// DonationStatusFulfilled: продавец передал товар.
	DonationStatusFulfilled DonationStatus = "fulfilled"
	// DonationStatusRejected: заявка отклонена.
	DonationStatusRejected DonationStatus = "rejected"
)

// DonationRequest описывает заявку на пожертвование единиц товара.
type DonationRequest struct {
	ID          string
	ProductID   string
	SellerID    string
	RequesterID string
	Quantity    int
	Note        string
	Status      DonationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля заявки.
func (r *DonationRequest) Validate() []error {
	var errs []error

	if r.ProductID == "" {
		errs = append(errs, ErrDonationProductRequired)
	}
	if r.RequesterID == "" {
		errs = append(errs, ErrDonationRequesterRequired)
	}
	if r.Quantity <= 0 {
		errs = append(errs, ErrDonationQtyInvalid)
	}

	return errs
}

package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок ядра. Конкретные ошибки оборачивают один из них,
// поэтому вызывающий код проверяет вид через errors.Is.
var (
	// ErrNotFound: заказ, товар, адрес или уведомление не существует.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized: у вызывающего нет владения или роли для операции.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidTransition: переход статуса недопустим из текущего состояния.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrValidation: некорректный ввод.
	ErrValidation = errors.New("validation failed")
	// ErrNoAddress: у продавца нет ни одного адреса, а он нужен для отгрузки.
	ErrNoAddress = errors.New("seller has no address on file")
	// ErrDependency: хранилище или провайдер недоступны либо вернули неожиданную ошибку.
	ErrDependency = errors.New("dependency failure")
)

var (
	ErrOrderNotFound        = fmt.Errorf("%w: order", ErrNotFound)
	ErrProductNotFound      = fmt.Errorf("%w: product", ErrNotFound)
	ErrAddressNotFound      = fmt.Errorf("%w: address", ErrNotFound)
	ErrTrackingNotFound     = fmt.Errorf("%w: logistics tracking", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("%w: notification", ErrNotFound)
	ErrOutboxMessageMissing = fmt.Errorf("%w: outbox message", ErrNotFound)

	// Ошибки валидации заказа.
	ErrBuyerRequired     = fmt.Errorf("%w: buyer_id is required", ErrValidation)
	ErrAddressRequired   = fmt.Errorf("%w: address_id is required", ErrValidation)
	ErrAddressNotOwned   = fmt.Errorf("%w: address does not belong to buyer", ErrValidation)
	ErrItemsRequired     = fmt.Errorf("%w: order must contain at least one item", ErrValidation)
	ErrItemQtyInvalid    = fmt.Errorf("%w: item quantity must be greater than zero", ErrValidation)
	ErrItemPriceInvalid  = fmt.Errorf("%w: item unit price must be non-negative with at most two decimal places", ErrValidation)
	ErrProductRequired   = fmt.Errorf("%w: product_id is required", ErrValidation)
	ErrAmountMismatch    = fmt.Errorf("%w: order total does not match items sum", ErrValidation)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrStatusUnknown     = fmt.Errorf("%w: unknown order status", ErrValidation)
	ErrNotificationType  = fmt.Errorf("%w: unknown notification type", ErrValidation)

	// Ошибки заявок на пожертвование.
	ErrDonationProductRequired   = fmt.Errorf("%w: donation product_id is required", ErrValidation)
	ErrDonationQtyInvalid        = fmt.Errorf("%w: donation quantity must be greater than zero", ErrValidation)
	ErrDonationRequesterRequired = fmt.Errorf("%w: donation requester is required", ErrValidation)

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrTrackingExists возвращается хранилищем при попытке создать вторую запись отслеживания для заказа.
	ErrTrackingExists = errors.New("logistics tracking already exists for order")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// DependencyError оборачивает сбой внешнего хранилища, сохраняя исходную причину.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap позволяет errors.Is находить и ErrDependency, и исходную ошибку.
func (e *DependencyError) Unwrap() []error {
	return []error{ErrDependency, e.Err}
}

// Dependency помечает err как ошибку зависимости. Ошибки доменных видов
// (не найдено, валидация и т.д.) возвращаются без изменений.
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	return &DependencyError{Op: op, Err: err}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// ErrorKind: категория ошибки из таксономии ядра.
type ErrorKind string

const (
	KindUnknown           ErrorKind = ""
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindValidation        ErrorKind = "validation"
	KindNoAddress         ErrorKind = "no_address"
	KindDependency        ErrorKind = "dependency"
)

var kindOrder = []struct {
	sentinel error
	kind     ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrNoAddress, KindNoAddress},
	{ErrNotFound, KindNotFound},
	{ErrDependency, KindDependency},
}

// KindOf классифицирует ошибку. Для nil и посторонних ошибок возвращает KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// UserMessage возвращает короткое сообщение для пользователя без деталей хранилища.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrItemsRequired) {
		return "your cart is empty"
	}
	if errors.Is(err, ErrInsufficientStock) {
		return "not enough stock for one of the items"
	}
	switch KindOf(err) {
	case KindNotFound:
		return "the requested item could not be found"
	case KindUnauthorized:
		return "you are not allowed to perform this action"
	case KindInvalidTransition:
		return "could not update order status"
	case KindValidation:
		return "the request is invalid"
	case KindNoAddress:
		return "add an address before fulfilling orders"
	default:
		return "the service is temporarily unavailable, please try again"
	}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден или находится не в том состоянии
	// (например, восстановление заказа, который не лежит в корзине).
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInvalidInput — некорректные входные данные.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageFailure — ошибка хранилища, не попавшая в другие категории.
	ErrStorageFailure = errors.New("storage failure")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrEmptySelection — пустой список идентификаторов в массовой операции.
	ErrEmptySelection = fmt.Errorf("%w: order id list is empty", ErrInvalidInput)
	// ErrItemsRequired — заказ без позиций.
	ErrItemsRequired = fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	// ErrItemQtyInvalid — количество товара <= 0.
	ErrItemQtyInvalid = fmt.Errorf("%w: item quantity must be greater than zero", ErrInvalidInput)
	// ErrItemPriceInvalid — отрицательная цена позиции.
	ErrItemPriceInvalid = fmt.Errorf("%w: item price must be non-negative", ErrInvalidInput)
	// ErrAmountNegative — отрицательная денежная сумма.
	ErrAmountNegative = fmt.Errorf("%w: amounts must be non-negative", ErrInvalidInput)
	// ErrCustomerEmailRequired — не указан email покупателя.
	ErrCustomerEmailRequired = fmt.Errorf("%w: customer email is required", ErrInvalidInput)
	ErrInvalidOrderStatus    = fmt.Errorf("%w: unknown order status", ErrInvalidInput)
	ErrInvalidPaymentStatus  = fmt.Errorf("%w: unknown payment status", ErrInvalidInput)
	ErrInvalidPriority       = fmt.Errorf("%w: unknown priority", ErrInvalidInput)
	// ErrLifecycleInconsistent — флаг IsDeleted расходится с DeletedAt.
	ErrLifecycleInconsistent = fmt.Errorf("%w: is_deleted and deleted_at disagree", ErrInvalidInput)
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет, что заказ не найден.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound)
}

// IsInvalidInput проверяет, что ошибка вызвана входными данными.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsStorageFailure проверяет, что ошибка пришла из хранилища.
func IsStorageFailure(err error) bool {
	return errors.Is(err, ErrStorageFailure)
}

// StorageFailure классифицирует ошибку хранилища.
// Уже классифицированные ошибки возвращаются без изменений.
func StorageFailure(err error) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) || IsVersionConflict(err) || IsInvalidInput(err) || IsStorageFailure(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

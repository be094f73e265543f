package orders

import (
	"errors"
)

var (
	// ErrOrderNotFound is returned when the order id is absent from the store.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientQuantity is returned when the requested quantity exceeds the
	// product's available quantity.
	ErrInsufficientQuantity = errors.New("insufficient product quantity")

	// ErrProductServiceUnavailable wraps every failure talking to the products service.
	ErrProductServiceUnavailable = errors.New("error communicating with products service")

	// ErrRemoteUnavailable is what ProductGateway implementations return for any
	// transport fault, timeout or non-2xx response.
	ErrRemoteUnavailable = errors.New("remote unavailable")
)

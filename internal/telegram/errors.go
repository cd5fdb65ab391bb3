package telegram

import (
	"errors"
	"fmt"

	ta "github.com/mymmrac/telego/telegoapi"
)

// DeliveryError reports an upload the Bot API did not accept. StatusCode is
// the API's error code, or zero when the request never got an API reply.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("telegram: delivery failed: %s", e.Body)
	}

	return fmt.Sprintf("telegram: delivery failed: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// deliveryError converts a telego call error.
func deliveryError(err error) *DeliveryError {
	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return &DeliveryError{StatusCode: apiErr.ErrorCode, Body: apiErr.Description, Err: err}
	}

	return &DeliveryError{Body: err.Error(), Err: err}
}

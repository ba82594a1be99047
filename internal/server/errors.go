package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"go.uber.org/zap"
)

// errorHandler turns domain errors pushed onto the gin context into the
// API's error envelope. Handlers abort with the error; the mapping to a
// status code lives in one place.
func errorHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var limitErr *khatadomain.CreditLimitExceededError
		if errors.As(err, &limitErr) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":           "credit_limit_exceeded",
				"current_balance": limitErr.CurrentBalance,
				"credit_limit":    limitErr.CreditLimit,
				"attempted":       limitErr.Attempted,
			})
			return
		}

		status := statusFor(err)
		if status == http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.FullPath()),
				zap.Error(err),
			)
			c.JSON(status, gin.H{"error": "internal_error"})
			return
		}
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func statusFor(err error) int {
	switch {
	case isNotFound(err):
		return http.StatusNotFound
	case isConflict(err):
		return http.StatusConflict
	case isValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, khatadomain.ErrCustomerNotFound) ||
		errors.Is(err, khatadomain.ErrTransactionNotFound) ||
		errors.Is(err, customerdomain.ErrCustomerNotFound) ||
		errors.Is(err, storedomain.ErrStoreNotFound) ||
		errors.Is(err, gstdomain.ErrNotFound) ||
		errors.Is(err, gstdomain.ErrUnknownCategory)
}

func isConflict(err error) bool {
	return errors.Is(err, khatadomain.ErrAlreadyReversed) ||
		errors.Is(err, khatadomain.ErrDuplicateTransaction) ||
		errors.Is(err, customerdomain.ErrCustomerExists) ||
		errors.Is(err, storedomain.ErrStoreExists) ||
		errors.Is(err, gstdomain.ErrCategoryExists)
}

func isValidation(err error) bool {
	return errors.Is(err, khatadomain.ErrInvalidAmount) ||
		errors.Is(err, khatadomain.ErrInvalidReference) ||
		errors.Is(err, khatadomain.ErrInvalidIdempotencyKey) ||
		errors.Is(err, khatadomain.ErrMissingActor) ||
		errors.Is(err, customerdomain.ErrInvalidName) ||
		errors.Is(err, customerdomain.ErrInvalidPhone) ||
		errors.Is(err, customerdomain.ErrInvalidCreditLimit) ||
		errors.Is(err, storedomain.ErrInvalidStoreName) ||
		errors.Is(err, storedomain.ErrInvalidGSTIN) ||
		errors.Is(err, gstdomain.ErrInvalidCategoryCode) ||
		errors.Is(err, gstdomain.ErrInvalidCategoryName) ||
		errors.Is(err, gstdomain.ErrInvalidRateSlab) ||
		errors.Is(err, gstdomain.ErrInvalidCessRate) ||
		errors.Is(err, gstdomain.ErrInvalidHSNCode) ||
		errors.Is(err, errBadRequest)
}

// errBadRequest wraps gin binding failures so they map to 400.
var errBadRequest = errors.New("invalid_request_body")

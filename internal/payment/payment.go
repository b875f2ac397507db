package payment

import (
	"context"
	"fmt"
	"strings"

	"resumelift/internal/config"
	"resumelift/internal/errors"
	"resumelift/internal/types"
)

// IntentCreator creates payment intents with the payment processor
type IntentCreator interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (types.PaymentIntent, error)
}

// Service validates discount codes against the configured table and creates
// payment intents for the server-validated expected amount. The code table
// is configuration, not compiled-in.
type Service struct {
	cfg     config.PaymentConfig
	creator IntentCreator
	logger  *errors.Logger
}

// NewService creates a payment service
func NewService(cfg config.PaymentConfig, creator IntentCreator, logger *errors.Logger) *Service {
	return &Service{
		cfg:     cfg,
		creator: creator,
		logger:  logger,
	}
}

// ValidateDiscountCode checks a user-entered code against the configured
// table. An unknown code is a normal outcome, not an error.
func (s *Service) ValidateDiscountCode(code string) (types.DiscountValidation, error) {
	percentage, ok := s.lookupCode(code)
	if !ok {
		return types.DiscountValidation{
			Valid: false,
			Error: "Invalid or expired discount code",
		}, nil
	}

	return types.DiscountValidation{
		Valid:            true,
		Percentage:       percentage,
		DiscountedAmount: discountedAmount(s.cfg.AmountCents, percentage),
	}, nil
}

// CreateIntent creates a payment intent. The requested amount must match
// the configured expected amount before any discount; the final charge is
// computed server-side from the validated code.
func (s *Service) CreateIntent(ctx context.Context, amountCents int64, discountCode string) (types.PaymentIntent, error) {
	if amountCents != s.cfg.AmountCents {
		return types.PaymentIntent{}, errors.NewPaymentError(errors.ErrCodeAmountMismatch,
			fmt.Sprintf("Requested amount %d does not match the expected amount %d", amountCents, s.cfg.AmountCents), nil)
	}

	final := s.cfg.AmountCents
	metadata := map[string]string{"product": "resume_rewrite"}
	if discountCode != "" {
		percentage, ok := s.lookupCode(discountCode)
		if !ok {
			return types.PaymentIntent{}, errors.NewValidationError(errors.ErrCodeInvalidDiscount,
				"Invalid or expired discount code", nil)
		}
		final = discountedAmount(s.cfg.AmountCents, percentage)
		metadata["discount_code"] = normalizeCode(discountCode)
		metadata["discount_percentage"] = fmt.Sprintf("%d", percentage)
	}

	intent, err := s.creator.CreateIntent(ctx, final, s.cfg.Currency, metadata)
	if err != nil {
		return types.PaymentIntent{}, errors.NewPaymentError(errors.ErrCodePaymentFailed,
			"Failed to create the payment intent", err)
	}

	s.logger.Info("Payment intent created",
		"intent_id", intent.ID,
		"amount", final,
		"currency", s.cfg.Currency)
	return intent, nil
}

func (s *Service) lookupCode(code string) (int, bool) {
	normalized := normalizeCode(code)
	if normalized == "" {
		return 0, false
	}
	for configured, percentage := range s.cfg.DiscountCodes {
		if normalizeCode(configured) == normalized {
			return percentage, true
		}
	}
	return 0, false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func discountedAmount(amount int64, percentage int) int64 {
	return amount - amount*int64(percentage)/100
}

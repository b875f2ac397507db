package payment

import (
	"context"
	"fmt"
	"testing"

	"resumelift/internal/config"
	"resumelift/internal/errors"
	"resumelift/internal/types"
)

type fakeCreator struct {
	lastAmount   int64
	lastCurrency string
	lastMetadata map[string]string
	err          error
}

func (f *fakeCreator) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (types.PaymentIntent, error) {
	if f.err != nil {
		return types.PaymentIntent{}, f.err
	}
	f.lastAmount = amountCents
	f.lastCurrency = currency
	f.lastMetadata = metadata
	return types.PaymentIntent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: amountCents}, nil
}

func newTestService(t *testing.T, creator IntentCreator) *Service {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return NewService(config.PaymentConfig{
		Enabled:     true,
		AmountCents: 500,
		Currency:    "usd",
		DiscountCodes: map[string]int{
			"LAUNCH50": 50,
			"friend20": 20,
		},
	}, creator, logger)
}

func TestValidateDiscountCode(t *testing.T) {
	svc := newTestService(t, &fakeCreator{})

	tests := []struct {
		name             string
		code             string
		expectValid      bool
		expectPercentage int
		expectAmount     int64
	}{
		{
			name:             "known code",
			code:             "LAUNCH50",
			expectValid:      true,
			expectPercentage: 50,
			expectAmount:     250,
		},
		{
			name:             "codes are case insensitive",
			code:             "launch50",
			expectValid:      true,
			expectPercentage: 50,
			expectAmount:     250,
		},
		{
			name:             "configured keys are normalized too",
			code:             "FRIEND20",
			expectValid:      true,
			expectPercentage: 20,
			expectAmount:     400,
		},
		{
			name:             "surrounding whitespace is ignored",
			code:             "  LAUNCH50  ",
			expectValid:      true,
			expectPercentage: 50,
			expectAmount:     250,
		},
		{
			name:        "unknown code",
			code:        "EXPIRED",
			expectValid: false,
		},
		{
			name:        "empty code",
			code:        "",
			expectValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validation, err := svc.ValidateDiscountCode(tt.code)
			if err != nil {
				t.Fatalf("ValidateDiscountCode failed: %v", err)
			}
			if validation.Valid != tt.expectValid {
				t.Fatalf("Expected valid=%v, got %+v", tt.expectValid, validation)
			}
			if !tt.expectValid {
				if validation.Error == "" {
					t.Error("Expected an error message for an invalid code")
				}
				return
			}
			if validation.Percentage != tt.expectPercentage {
				t.Errorf("Expected percentage %d, got %d", tt.expectPercentage, validation.Percentage)
			}
			if validation.DiscountedAmount != tt.expectAmount {
				t.Errorf("Expected discounted amount %d, got %d", tt.expectAmount, validation.DiscountedAmount)
			}
		})
	}
}

func TestCreateIntent(t *testing.T) {
	creator := &fakeCreator{}
	svc := newTestService(t, creator)

	intent, err := svc.CreateIntent(context.Background(), 500, "")
	if err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if intent.ID != "pi_1" || intent.ClientSecret != "pi_1_secret" {
		t.Errorf("Unexpected intent: %+v", intent)
	}
	if creator.lastAmount != 500 || creator.lastCurrency != "usd" {
		t.Errorf("Unexpected charge: %d %s", creator.lastAmount, creator.lastCurrency)
	}
}

func TestCreateIntentAppliesDiscount(t *testing.T) {
	creator := &fakeCreator{}
	svc := newTestService(t, creator)

	if _, err := svc.CreateIntent(context.Background(), 500, "launch50"); err != nil {
		t.Fatalf("CreateIntent failed: %v", err)
	}
	if creator.lastAmount != 250 {
		t.Errorf("Expected discounted charge of 250, got %d", creator.lastAmount)
	}
	if creator.lastMetadata["discount_code"] != "LAUNCH50" {
		t.Errorf("Expected normalized code in metadata, got %q", creator.lastMetadata["discount_code"])
	}
}

func TestCreateIntentRejectsAmountMismatch(t *testing.T) {
	svc := newTestService(t, &fakeCreator{})

	_, err := svc.CreateIntent(context.Background(), 100, "")
	if err == nil {
		t.Fatal("Expected amount mismatch error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeAmountMismatch {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeAmountMismatch, appErr.Code)
	}
}

func TestCreateIntentRejectsUnknownCode(t *testing.T) {
	svc := newTestService(t, &fakeCreator{})

	_, err := svc.CreateIntent(context.Background(), 500, "BOGUS")
	if err == nil {
		t.Fatal("Expected invalid discount error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidDiscount {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeInvalidDiscount, appErr.Code)
	}
}

func TestCreateIntentWrapsProcessorFailure(t *testing.T) {
	creator := &fakeCreator{err: fmt.Errorf("stripe: api unreachable")}
	svc := newTestService(t, creator)

	_, err := svc.CreateIntent(context.Background(), 500, "")
	if err == nil {
		t.Fatal("Expected processor error")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodePaymentFailed {
		t.Errorf("Expected code %s, got %s", errors.ErrCodePaymentFailed, appErr.Code)
	}
}

package ledger

import goerrors "github.com/goliatone/go-errors"

var ErrCategoryExists = goerrors.New("a category with this name already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("CATEGORY_EXISTS")

var ErrCategoryNotFound = goerrors.New("category not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("CATEGORY_NOT_FOUND")

var ErrPaymentSourceNotFound = goerrors.New("payment source not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("PAYMENT_SOURCE_NOT_FOUND")

// ErrInvalidInput carries ozzo validation errors in its metadata
var ErrInvalidInput = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode("VALIDATION_FAILED")

func invalid(err error) error {
	return ErrInvalidInput.Clone().WithMetadata(map[string]any{
		"validation": err,
	})
}

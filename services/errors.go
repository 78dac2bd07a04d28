package services

import (
	"errors"
	"fmt"
	"net/http"

	"roomie_server/apperrors"
	"roomie_server/store"
)

// storeError turns store sentinels into client-facing errors and wraps the rest.
func storeError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperrors.Wrap(err, apperrors.CodeNotFound, op+": not found", http.StatusNotFound)
	case errors.Is(err, store.ErrTxConflict):
		return apperrors.Wrap(err, apperrors.CodeConflict, op+": concurrent update, try again", http.StatusConflict)
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requirePair(a, b string) error {
	if a == "" || b == "" {
		return apperrors.Validation("both user ids are required")
	}
	if a == b {
		return apperrors.Validation("a user cannot interact with themselves")
	}
	return nil
}

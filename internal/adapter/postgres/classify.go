package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pscheid92/pgapp/internal/platform/retry"
)

// SQLSTATE codes that change how a failed connect is retried.
const (
	codeInvalidAuthorization = "28000"
	codeInvalidPassword      = "28P01"
	codeInvalidCatalogName   = "3D000"
	codeTooManyConnections   = "53300"
	codeCannotConnectNow     = "57P03"
)

// Classify maps a connect error onto a retry action.
func Classify(err error) retry.Action {
	if errors.Is(err, ErrInvalidURL) || errors.Is(err, context.Canceled) {
		return retry.Stop
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInvalidAuthorization, codeInvalidPassword, codeInvalidCatalogName:
			return retry.Stop
		case codeTooManyConnections:
			return retry.Throttle
		case codeCannotConnectNow:
			return retry.Retry
		}
	}

	return retry.Retry
}

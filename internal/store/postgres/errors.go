package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/goto/pulumi-marmot/core/asset"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
)

var (
	errNilDBClient         = errors.New("db client is nil")
	errNilPostgresClient   = errors.New("postgres client is nil")
	errDuplicateKey        = errors.New("duplicate key")
	errCheckViolation      = errors.New("check constraint violation")
	errForeignKeyViolation = errors.New("foreign key violation")
)

func checkPostgresError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%w [%s]", errDuplicateKey, pgErr.Detail)
		case pgerrcode.CheckViolation:
			return fmt.Errorf("%w [%s]", errCheckViolation, pgErr.Detail)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w [%s]", errForeignKeyViolation, pgErr.Detail)
		}
		if pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgErr.Code == pgerrcode.AdminShutdown || pgErr.Code == pgerrcode.CannotConnectNow {
			return asset.BackendUnavailableError{Op: "postgres", Err: err}
		}
		return err
	}
	return err
}

// classify maps driver level failures to the error taxonomy. A deadline hit
// while the caller's context is still live comes from the statement timeout
// and counts as the backend being unavailable.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}

	err = checkPostgresError(err)
	if errors.As(err, new(asset.BackendUnavailableError)) {
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		pgconn.Timeout(err),
		errors.As(err, &netErr):
		return asset.BackendUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

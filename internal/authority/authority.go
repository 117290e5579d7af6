// Package authority talks to the online access authority of a Cloud-mode
// unit. Two backends exist: the operator web service and an IVAR server.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/config"
	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

// ErrUnsupported is returned by a backend that has no such operation.
var ErrUnsupported = errors.New("operation not supported by this authority")

// DefaultTimeout bounds every call to the authority.
const DefaultTimeout = 3 * time.Second

// Authority is the online side of the access decision.
//
// OpenDoorOnline and InsertToAccess never return an error: failures are
// folded into the returned status (deny for the former, the insert-failed
// variant for the latter) so callers always have something to persist.
type Authority interface {
	Name() string
	LoadAllCards(ctx context.Context) ([]types.CardRecord, error)
	LoadAllTimePlans(ctx context.Context) ([]types.TimePlanRecord, error)
	OpenDoorOnline(ctx context.Context, cred types.Credential, at time.Time) types.Status
	InsertToAccess(ctx context.Context, rec types.AccessRecord) types.Status
	CheckConnection(ctx context.Context) bool
}

// New picks the backend configured by op. It returns nil when neither
// backend has an address.
func New(op config.Operator, unitID string, timeout time.Duration, logger *zap.Logger) Authority {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch {
	case op.EnableIVAR && op.IVARServer != "":
		return NewIVAR(op.IVARServer, op.IVARTerminals, timeout, logger)
	case op.WebServiceURL != "":
		return NewWebService(op.WebServiceURL, unitID, timeout, logger)
	}
	return nil
}

// httpStatus tolerates the nil response resty returns on request errors.
func httpStatus(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

func failed(resp *resty.Response, err error) bool {
	return err != nil || resp == nil || resp.IsError()
}

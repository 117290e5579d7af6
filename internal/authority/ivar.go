package authority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

const ivarTimeLayout = "2006-01-02T15:04:05.000"

// IVAR result codes.
const (
	ivarOK               = 0
	ivarTerminalNotFound = -1
	ivarCardNotFound     = -2
)

type ivarCheckRequest struct {
	Terminal string `json:"terminal"`
	Card     string `json:"card"`
	Reader   int    `json:"reader"`
	Button   int    `json:"button"`
	Time     string `json:"time"`
}

type ivarRecordRequest struct {
	EventID  string `json:"event_id"`
	Terminal string `json:"terminal"`
	Card     string `json:"card"`
	Reader   int    `json:"reader"`
	Button   int    `json:"button"`
	Time     string `json:"time"`
	Access   int    `json:"access"`
}

type ivarResult struct {
	Result int `json:"result"`
}

// IVAR is a third-party access server addressed per reader by terminal name.
// It has no time plans.
type IVAR struct {
	http      *resty.Client
	terminals map[int]string
	logger    *zap.Logger
}

func NewIVAR(baseURL string, terminals map[int]string, timeout time.Duration, logger *zap.Logger) *IVAR {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	t := make(map[int]string, len(terminals))
	for k, v := range terminals {
		t[k] = v
	}
	return &IVAR{http: client, terminals: t, logger: logger.Named("ivar")}
}

func (v *IVAR) Name() string { return "ivar" }

func (v *IVAR) terminal(reader int) string {
	if reader == 1 {
		return v.terminals[1]
	}
	return v.terminals[2]
}

// LoadAllCards merges the valid cards of both readers. Every card is allowed
// on plan 0.
func (v *IVAR) LoadAllCards(ctx context.Context) ([]types.CardRecord, error) {
	var recs []types.CardRecord
	for _, reader := range []int{1, 2} {
		var out struct {
			Codes []string `json:"codes"`
		}
		resp, err := v.http.R().
			SetContext(ctx).
			SetResult(&out).
			SetPathParams(map[string]string{
				"terminal": v.terminal(reader),
				"reader":   fmt.Sprint(reader),
			}).
			Get("/terminals/{terminal}/readers/{reader}/valid-cards")
		if err != nil {
			return nil, fmt.Errorf("load cards reader %d: %w", reader, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("load cards reader %d: http %d", reader, resp.StatusCode())
		}
		for _, code := range out.Codes {
			recs = append(recs, types.CardRecord{
				CardID:   strings.TrimSpace(code),
				ReaderID: reader,
				Allowed:  true,
			})
		}
	}
	return recs, nil
}

func (v *IVAR) LoadAllTimePlans(context.Context) ([]types.TimePlanRecord, error) {
	return nil, ErrUnsupported
}

func (v *IVAR) OpenDoorOnline(ctx context.Context, cred types.Credential, at time.Time) types.Status {
	var out ivarResult
	resp, err := v.http.R().
		SetContext(ctx).
		SetBody(ivarCheckRequest{
			Terminal: v.terminal(cred.ReaderID),
			Card:     cred.CardID,
			Reader:   cred.ReaderID,
			Time:     at.Format(ivarTimeLayout),
		}).
		SetResult(&out).
		Post("/check-card")
	if failed(resp, err) {
		v.logger.Warn("check card failed", zap.Error(err), zap.Int("http_status", httpStatus(resp)))
		return types.StatusDenyInsertFailed
	}

	switch out.Result {
	case ivarOK:
		return types.StatusAllow
	case ivarTerminalNotFound:
		return types.StatusDenyTerminalNotFound
	case ivarCardNotFound:
		return types.StatusDenyCardNotFound
	default:
		v.logger.Warn("check card: unexpected result", zap.Int("result", out.Result))
		return types.StatusDenyInsertFailed
	}
}

// InsertToAccess writes card decisions only; button and unauthorized events
// have no IVAR counterpart and keep their status.
func (v *IVAR) InsertToAccess(ctx context.Context, rec types.AccessRecord) types.Status {
	base := rec.Status.Base()
	if base == types.StatusOpenWithButton || base == types.StatusUnauthorizedAccess {
		return rec.Status
	}

	access := 0
	if rec.Status.Granted() {
		access = 1
	}
	var out ivarResult
	resp, err := v.http.R().
		SetContext(ctx).
		SetBody(ivarRecordRequest{
			EventID:  rec.EventID,
			Terminal: v.terminal(rec.ReaderID),
			Card:     rec.CardID,
			Reader:   rec.ReaderID,
			Time:     rec.OccurredAt.Format(ivarTimeLayout),
			Access:   access,
		}).
		SetResult(&out).
		Post("/records")
	if failed(resp, err) {
		v.logger.Warn("write record failed",
			zap.String("event_id", rec.EventID),
			zap.Error(err),
			zap.Int("http_status", httpStatus(resp)),
		)
		return rec.Status.InsertFailed()
	}

	switch out.Result {
	case ivarOK:
		return rec.Status
	case ivarTerminalNotFound, ivarCardNotFound:
		if base == types.StatusAllow || base == types.StatusDeny {
			return base - types.Status(out.Result)
		}
	}
	v.logger.Warn("write record rejected", zap.String("event_id", rec.EventID), zap.Int("result", out.Result))
	return rec.Status.InsertFailed()
}

func (v *IVAR) CheckConnection(ctx context.Context) bool {
	resp, err := v.http.R().SetContext(ctx).Get("/ping")
	return err == nil && resp.IsSuccess()
}

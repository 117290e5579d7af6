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

const webTimeLayout = "2006-01-02 15:04:05.000"

type webCard struct {
	Card    string `json:"card"`
	Reader  int    `json:"reader"`
	Plan    int    `json:"plan"`
	Allowed bool   `json:"allowed"`
	Deleted bool   `json:"deleted"`
	Note    string `json:"note"`
}

type webTimePlan struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Action      int      `json:"action"`
	Times       []string `json:"times"`
}

type webOpenRequest struct {
	Terminal string `json:"terminal"`
	Card     string `json:"card"`
	Reader   int    `json:"reader"`
	Time     string `json:"time"`
}

type webInsertRequest struct {
	EventID  string `json:"event_id"`
	Terminal string `json:"terminal"`
	Card     string `json:"card"`
	Reader   int    `json:"reader"`
	Time     string `json:"time"`
	Status   int    `json:"status"`
}

type webResult struct {
	Result string `json:"result"`
}

// WebService is the operator's own access web service.
type WebService struct {
	http   *resty.Client
	unitID string
	logger *zap.Logger
}

func NewWebService(baseURL, unitID string, timeout time.Duration, logger *zap.Logger) *WebService {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebService{
		http:   client,
		unitID: unitID,
		logger: logger.Named("ws"),
	}
}

func (w *WebService) Name() string { return "web-service" }

// terminal names the reader on the web service side: MDA<unit> for reader 1,
// MDB<unit> for the other.
func (w *WebService) terminal(reader int) string {
	if reader == 1 {
		return "MDA" + w.unitID
	}
	return "MDB" + w.unitID
}

func (w *WebService) LoadAllCards(ctx context.Context) ([]types.CardRecord, error) {
	var out struct {
		Cards []webCard `json:"cards"`
	}
	resp, err := w.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/terminals/" + w.terminal(1) + "/cards")
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("load cards: http %d", resp.StatusCode())
	}

	recs := make([]types.CardRecord, 0, len(out.Cards))
	for _, c := range out.Cards {
		recs = append(recs, types.CardRecord{
			CardID:   strings.TrimSpace(c.Card),
			ReaderID: c.Reader,
			PlanID:   c.Plan,
			Allowed:  c.Allowed,
			Deleted:  c.Deleted,
			Note:     strings.TrimSpace(c.Note),
		})
	}
	return recs, nil
}

func (w *WebService) LoadAllTimePlans(ctx context.Context) ([]types.TimePlanRecord, error) {
	var out struct {
		Plans []webTimePlan `json:"plans"`
	}
	resp, err := w.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/terminals/" + w.terminal(1) + "/timeplans")
	if err != nil {
		return nil, fmt.Errorf("load time plans: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("load time plans: http %d", resp.StatusCode())
	}

	recs := make([]types.TimePlanRecord, 0, len(out.Plans))
	for _, p := range out.Plans {
		if len(p.Times) != types.TimePlanDays*4 {
			return nil, fmt.Errorf("load time plans: plan %d has %d times", p.ID, len(p.Times))
		}
		rec := types.TimePlanRecord{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Action:      types.Action(p.Action),
		}
		copy(rec.Times[:], p.Times)
		recs = append(recs, rec)
	}
	return recs, nil
}

func (w *WebService) OpenDoorOnline(ctx context.Context, cred types.Credential, at time.Time) types.Status {
	var out webResult
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(webOpenRequest{
			Terminal: w.terminal(cred.ReaderID),
			Card:     cred.CardID,
			Reader:   cred.ReaderID,
			Time:     at.Format(webTimeLayout),
		}).
		SetResult(&out).
		Post("/open-door-online")
	if failed(resp, err) {
		w.logger.Warn("open door online failed", zap.Error(err), zap.Int("http_status", httpStatus(resp)))
		return types.StatusDenyInsertFailed
	}

	switch out.Result {
	case "1":
		return types.StatusAllow
	case "0":
		return types.StatusDenyCardNotFound
	default:
		w.logger.Warn("open door online: unexpected result", zap.String("result", out.Result))
		return types.StatusDenyInsertFailed
	}
}

func (w *WebService) InsertToAccess(ctx context.Context, rec types.AccessRecord) types.Status {
	var out webResult
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(webInsertRequest{
			EventID:  rec.EventID,
			Terminal: w.terminal(rec.ReaderID),
			Card:     rec.CardID,
			Reader:   rec.ReaderID,
			Time:     rec.OccurredAt.Format(webTimeLayout),
			Status:   int(rec.Status),
		}).
		SetResult(&out).
		Post("/access")
	if failed(resp, err) {
		w.logger.Warn("insert to access failed",
			zap.String("event_id", rec.EventID),
			zap.Error(err),
			zap.Int("http_status", httpStatus(resp)),
		)
		return rec.Status.InsertFailed()
	}
	if out.Result != "OK" {
		w.logger.Warn("insert to access rejected",
			zap.String("event_id", rec.EventID),
			zap.String("result", out.Result),
		)
		return rec.Status.InsertFailed()
	}
	return rec.Status
}

func (w *WebService) CheckConnection(ctx context.Context) bool {
	resp, err := w.http.R().SetContext(ctx).Get("/ping")
	return err == nil && resp.IsSuccess()
}

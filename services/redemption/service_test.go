package redemption

import (
	"context"
	"errors"
	"testing"
	"time"

	"studentslife/pkg/config"
	"studentslife/pkg/errutil"
	"studentslife/services/event"
	"studentslife/services/loyalty"
	"studentslife/services/redemption/mock"
	"studentslife/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	cfg     *config.Config
	events  *event.Service
	loyalty *loyalty.Service
	svc     *Service
}

func newFixture(t *testing.T, stamps StampRecorder) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &event.Event{}, &RedemptionCode{}, &loyalty.LoyaltyCard{}, &loyalty.ClientStamp{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Redemption.StrictFormat = true
	cfg.Loyalty.DefaultStampsRequired = 10
	cfg.Loyalty.CardCacheTTL = time.Minute

	events := event.NewService(event.ServiceParams{DB: db, Node: node})
	ls := loyalty.NewService(loyalty.ServiceParams{DB: db, Node: node, Config: cfg})

	svc := NewService(ServiceParams{
		DB:     db,
		Node:   node,
		Config: cfg,
		Events: events,
		Stamps: stamps,
	})
	svc.now = func() time.Time { return fixedNow }

	return &fixture{db: db, node: node, cfg: cfg, events: events, loyalty: ls, svc: svc}
}

func (f *fixture) seedEvent(t *testing.T, partnerID string, end time.Time) *event.Event {
	t.Helper()

	e := &event.Event{
		ID:                 f.node.Generate().String(),
		PartnerID:          partnerID,
		Title:              "Student Coffee Week",
		Slug:               "student-coffee-week",
		DiscountPercentage: 20,
		StartDate:          fixedNow.Add(-72 * time.Hour),
		EndDate:            end,
		IsActive:           true,
		QREnabled:          true,
	}
	require.NoError(t, f.db.Create(e).Error)
	return e
}

func (f *fixture) seedCode(t *testing.T, code, eventID, clientID string) *RedemptionCode {
	t.Helper()

	rc := &RedemptionCode{
		ID:       f.node.Generate().String(),
		Code:     code,
		EventID:  eventID,
		ClientID: clientID,
	}
	require.NoError(t, f.db.Create(rc).Error)
	return rc
}

func (f *fixture) reload(t *testing.T, id string) *RedemptionCode {
	t.Helper()

	var rc RedemptionCode
	require.NoError(t, f.db.First(&rc, "id = ?", id).Error)
	return &rc
}

func TestRedeemSuccess(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "ABCD12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(context.Background(), " abcd12345678 ", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
	require.True(t, res.OK())
	require.NotNil(t, res.Success)
	require.Equal(t, rc.ID, res.Success.CodeID)
	require.Equal(t, ev.ID, res.Success.EventID)
	require.Equal(t, "client-1", res.Success.ClientID)
	require.Equal(t, "Student Coffee Week", res.Success.EventTitle)
	require.Equal(t, int32(20), res.Success.DiscountPercentage)
	require.Equal(t, fixedNow, res.Success.UsedAt)
	require.Nil(t, res.Success.Stamp)

	stored := f.reload(t, rc.ID)
	require.True(t, stored.IsUsed)
	require.NotNil(t, stored.UsedAt)
	require.WithinDuration(t, fixedNow, *stored.UsedAt, time.Second)
}

func TestRedeemTwiceReportsOriginalUse(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "ABCD12345678", ev.ID, "client-1")
	ctx := context.Background()

	first, err := f.svc.Redeem(ctx, "ABCD12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, first.Kind)

	f.svc.now = func() time.Time { return fixedNow.Add(time.Hour) }

	second, err := f.svc.Redeem(ctx, "ABCD12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindAlreadyUsed, second.Kind)
	require.NotNil(t, second.AlreadyUsed)
	require.WithinDuration(t, first.Success.UsedAt, second.AlreadyUsed.UsedAt, time.Second)
	require.Nil(t, second.Success)
}

func TestRedeemOtherPartnersCode(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "ABCD12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(context.Background(), "ABCD12345678", "partner-2")
	require.NoError(t, err)
	require.Equal(t, KindCodeNotOwned, res.Kind)
	require.False(t, f.reload(t, rc.ID).IsUsed)
}

func TestRedeemOwnershipCheckedBeforeUseAndExpiry(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(-time.Hour))
	rc := f.seedCode(t, "USED00000001", ev.ID, "client-1")
	used := fixedNow.Add(-2 * time.Hour)
	require.NoError(t, f.db.Model(&RedemptionCode{}).Where("id = ?", rc.ID).
		Updates(map[string]any{"is_used": true, "used_at": used}).Error)

	res, err := f.svc.Redeem(context.Background(), "USED00000001", "partner-2")
	require.NoError(t, err)
	require.Equal(t, KindCodeNotOwned, res.Kind)
}

func TestRedeemExpiredEvent(t *testing.T) {
	f := newFixture(t, nil)
	end := fixedNow.Add(-time.Minute)
	ev := f.seedEvent(t, "partner-1", end)
	rc := f.seedCode(t, "EXPD12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(context.Background(), "EXPD12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindEventExpired, res.Kind)
	require.NotNil(t, res.EventExpired)
	require.WithinDuration(t, end, res.EventExpired.EndDate, time.Second)
	require.False(t, f.reload(t, rc.ID).IsUsed)
}

func TestRedeemOnEndDateIsAllowed(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow)
	f.seedCode(t, "LAST12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(context.Background(), "LAST12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
}

func TestRedeemUnknownCode(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.svc.Redeem(context.Background(), "ZZZZ99999999", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindCodeNotFound, res.Kind)
	require.NotEmpty(t, res.Message())
}

func TestRedeemInvalidFormat(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, code := range []string{"", "   ", "SHORT", "ABCD-1234567", "ABCD123456789"} {
		res, err := f.svc.Redeem(ctx, code, "partner-1")
		require.NoError(t, err, code)
		require.Equal(t, KindInvalidFormat, res.Kind, code)
	}
}

func TestRedeemLenientFormatFallsThroughToLookup(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.strict = false

	res, err := f.svc.Redeem(context.Background(), "short", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindCodeNotFound, res.Kind)

	res, err = f.svc.Redeem(context.Background(), "  ", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindInvalidFormat, res.Kind)
}

func TestRedeemRequiresPartner(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Redeem(context.Background(), "ABCD12345678", "")
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

func TestRedeemCancelledBeforeLookup(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "ABCD12345678", ev.ID, "client-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Redeem(ctx, "ABCD12345678", "partner-1")
	require.Error(t, err)
	require.True(t, errutil.Is(err, errutil.StatusClientClosedRequest))
	require.False(t, f.reload(t, rc.ID).IsUsed)
}

func TestRedeemConcurrentlyHasOneWinner(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "RACE12345678", ev.ID, "client-1")

	const attempts = 12
	results := make([]Result, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			res, err := f.svc.Redeem(context.Background(), "RACE12345678", "partner-1")
			results[i] = res
			return err
		})
	}
	require.NoError(t, g.Wait())

	var wins int
	for _, res := range results {
		switch res.Kind {
		case KindSuccess:
			wins++
		case KindAlreadyUsed, KindValidationError:
		default:
			t.Fatalf("unexpected outcome %q", res.Kind)
		}
	}
	require.Equal(t, 1, wins)
	require.True(t, f.reload(t, rc.ID).IsUsed)
}

func TestRedeemRecordsStamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	stamps := mock.NewMockStampRecorder(ctrl)

	f := newFixture(t, stamps)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "STMP12345678", ev.ID, "client-1")

	want := &loyalty.StampOutcome{StampID: "s-1", ClientID: "client-1", PartnerID: "partner-1", Count: 3, Required: 10}
	stamps.EXPECT().
		RecordStamp(gomock.Any(), loyalty.StampRequest{ClientID: "client-1", PartnerID: "partner-1", CodeID: rc.ID}).
		Return(want, nil)

	res, err := f.svc.Redeem(context.Background(), "STMP12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
	require.Equal(t, want, res.Success.Stamp)
}

func TestRedeemStampFailureKeepsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	stamps := mock.NewMockStampRecorder(ctrl)

	f := newFixture(t, stamps)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	rc := f.seedCode(t, "FAIL12345678", ev.ID, "client-1")

	stamps.EXPECT().
		RecordStamp(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("loyalty store unavailable"))

	res, err := f.svc.Redeem(context.Background(), "FAIL12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
	require.Nil(t, res.Success.Stamp)
	require.True(t, f.reload(t, rc.ID).IsUsed)
}

func TestRedeemStampsNotCalledOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	stamps := mock.NewMockStampRecorder(ctrl)

	f := newFixture(t, stamps)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "NOPE12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(context.Background(), "NOPE12345678", "partner-2")
	require.NoError(t, err)
	require.Equal(t, KindCodeNotOwned, res.Kind)
}

func TestRedeemCreatesFirstStamp(t *testing.T) {
	f := newFixture(t, nil)
	f.svc.stamps = loyalty.NewDirectRecorder(f.loyalty)

	ctx := context.Background()
	_, err := f.loyalty.UpsertCard(ctx, loyalty.UpsertCardRequest{
		PartnerID:         "partner-1",
		RewardDescription: "Free coffee",
		StampsRequired:    10,
	})
	require.NoError(t, err)

	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "LOYL12345678", ev.ID, "client-1")

	res, err := f.svc.Redeem(ctx, "LOYL12345678", "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
	require.NotNil(t, res.Success.Stamp)
	require.Equal(t, int32(1), res.Success.Stamp.Count)
	require.Equal(t, int32(10), res.Success.Stamp.Required)
	require.False(t, res.Success.Stamp.Complete)

	var rec loyalty.ClientStamp
	require.NoError(t, f.db.First(&rec, "client_id = ? AND partner_id = ?", "client-1", "partner-1").Error)
	require.Equal(t, int32(1), rec.StampsCount)
	require.False(t, rec.RewardClaimed)
}

func TestIssueCode(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	ctx := context.Background()

	rc, err := f.svc.IssueCode(ctx, IssueCodeRequest{EventID: ev.ID, ClientID: "client-1"})
	require.NoError(t, err)
	require.True(t, ValidFormat(rc.Code))
	require.False(t, rc.IsUsed)
	require.Equal(t, ev.ID, rc.EventID)

	got, err := f.svc.GetCode(ctx, rc.Code)
	require.NoError(t, err)
	require.Equal(t, rc.ID, got.ID)
	require.NotNil(t, got.Event)
	require.Equal(t, "partner-1", got.Event.PartnerID)

	res, err := f.svc.Redeem(ctx, rc.Code, "partner-1")
	require.NoError(t, err)
	require.Equal(t, KindSuccess, res.Kind)
}

func TestIssueCodeRejectsClosedEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ended := f.seedEvent(t, "partner-1", fixedNow.Add(-time.Hour))
	_, err := f.svc.IssueCode(ctx, IssueCodeRequest{EventID: ended.ID, ClientID: "client-1"})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	noQR := f.seedEvent(t, "partner-1", fixedNow.Add(time.Hour))
	require.NoError(t, f.db.Model(&event.Event{}).Where("id = ?", noQR.ID).Update("qr_enabled", false).Error)
	_, err = f.svc.IssueCode(ctx, IssueCodeRequest{EventID: noQR.ID, ClientID: "client-1"})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	upcoming := f.seedEvent(t, "partner-1", fixedNow.Add(72*time.Hour))
	require.NoError(t, f.db.Model(&event.Event{}).Where("id = ?", upcoming.ID).Update("start_date", fixedNow.Add(time.Hour)).Error)
	_, err = f.svc.IssueCode(ctx, IssueCodeRequest{EventID: upcoming.ID, ClientID: "client-1"})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	paused := f.seedEvent(t, "partner-1", fixedNow.Add(time.Hour))
	require.NoError(t, f.db.Model(&event.Event{}).Where("id = ?", paused.ID).Update("is_active", false).Error)
	_, err = f.svc.IssueCode(ctx, IssueCodeRequest{EventID: paused.ID, ClientID: "client-1"})
	require.True(t, errutil.Is(err, errutil.StatusUnprocessableEntity))

	_, err = f.svc.IssueCode(ctx, IssueCodeRequest{EventID: "missing", ClientID: "client-1"})
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = f.svc.IssueCode(ctx, IssueCodeRequest{EventID: ended.ID})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

type fixedGenerator struct {
	codes []string
}

func (g *fixedGenerator) NextRedemptionCode(context.Context) (string, error) {
	code := g.codes[0]
	g.codes = g.codes[1:]
	return code, nil
}

func TestIssueCodeRetriesOnCollision(t *testing.T) {
	f := newFixture(t, nil)
	ev := f.seedEvent(t, "partner-1", fixedNow.Add(24*time.Hour))
	f.seedCode(t, "TAKEN0000001", ev.ID, "client-9")
	f.svc.codegen = &fixedGenerator{codes: []string{"TAKEN0000001", "FRESH0000001"}}

	rc, err := f.svc.IssueCode(context.Background(), IssueCodeRequest{EventID: ev.ID, ClientID: "client-1"})
	require.NoError(t, err)
	require.Equal(t, "FRESH0000001", rc.Code)
}

func TestGetCodeNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.GetCode(context.Background(), "ZZZZ99999999")
	require.True(t, errutil.Is(err, errutil.StatusNotFound))

	_, err = f.svc.GetCode(context.Background(), "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

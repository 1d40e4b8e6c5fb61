package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/nimbusworks/tenantgate/internal/procurement/domain"
	"github.com/nimbusworks/tenantgate/internal/procurement/repository"
	"github.com/nimbusworks/tenantgate/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingPartner struct {
	accounts     []string
	entitlements []string
	err          error
}

func (p *recordingPartner) ApproveAccount(ctx context.Context, accountID string) error {
	if p.err != nil {
		return p.err
	}
	p.accounts = append(p.accounts, accountID)
	return nil
}

func (p *recordingPartner) ApproveEntitlement(ctx context.Context, orderID string) error {
	if p.err != nil {
		return p.err
	}
	p.entitlements = append(p.entitlements, orderID)
	return nil
}

type fixture struct {
	conn    *gorm.DB
	svc     domain.Service
	partner *recordingPartner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Account{}, &domain.Entitlement{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	p := &recordingPartner{}
	return &fixture{
		conn:    conn,
		svc:     New(conn, repository.New(), p, node, nil, zap.NewNop()),
		partner: p,
	}
}

func accountEvent(eventType domain.EventType, accountID string) domain.Event {
	return domain.Event{
		EventID:   "evt-" + string(eventType),
		EventType: eventType,
		Account:   &domain.AccountSnapshot{ID: accountID, ProviderID: "providers/partner"},
	}
}

func entitlementEvent(eventType domain.EventType, orderID, accountID string) domain.Event {
	return domain.Event{
		EventID:   "evt-" + string(eventType),
		EventType: eventType,
		Entitlement: &domain.EntitlementSnapshot{
			ID:      orderID,
			Account: accountID,
			Product: "products/agent",
			Plan:    "standard",
		},
	}
}

func (f *fixture) accountState(t *testing.T, accountID string) domain.AccountState {
	t.Helper()
	var account domain.Account
	require.NoError(t, f.conn.Where("account_id = ?", accountID).First(&account).Error)
	return account.State
}

func (f *fixture) entitlementState(t *testing.T, orderID string) domain.EntitlementState {
	t.Helper()
	var entitlement domain.Entitlement
	require.NoError(t, f.conn.Where("order_id = ?", orderID).First(&entitlement).Error)
	return entitlement.State
}

func TestAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountCreationRequested, "acct-1")))
	assert.Equal(t, domain.AccountStatePending, f.accountState(t, "acct-1"))
	assert.Equal(t, []string{"acct-1"}, f.partner.accounts)

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountActive, "acct-1")))
	assert.Equal(t, domain.AccountStateActive, f.accountState(t, "acct-1"))

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountSuspended, "acct-1")))
	assert.Equal(t, domain.AccountStateSuspended, f.accountState(t, "acct-1"))
}

func TestAccountEventReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := accountEvent(domain.EventAccountCreationRequested, "acct-1")

	require.NoError(t, f.svc.HandleEvent(ctx, event))
	require.NoError(t, f.svc.HandleEvent(ctx, event))
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	var count int64
	require.NoError(t, f.conn.Model(&domain.Account{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, domain.AccountStatePending, f.accountState(t, "acct-1"))
}

func TestStaleAccountEventDoesNotRegress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountActive, "acct-1")))
	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountCreationRequested, "acct-1")))

	assert.Equal(t, domain.AccountStateActive, f.accountState(t, "acct-1"))
}

func TestOutOfOrderFirstEventCreatesAtTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The ACTIVE event arrives before CREATION_REQUESTED. The row is created
	// straight at ACTIVE and the late creation event becomes a no-op.
	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountSuspended, "acct-1")))
	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountActive, "acct-1")))

	assert.Equal(t, domain.AccountStateSuspended, f.accountState(t, "acct-1"))
}

func TestEntitlementLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountActive, "acct-1")))

	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementCreationRequested, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStatePending, f.entitlementState(t, "order-1"))
	assert.Equal(t, []string{"order-1"}, f.partner.entitlements)

	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementActive, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStateActive, f.entitlementState(t, "order-1"))

	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementCancelled, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStateCancelled, f.entitlementState(t, "order-1"))
}

func TestCancelledEntitlementStaysCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountActive, "acct-1")))
	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementCancelled, "order-1", "acct-1")))

	// A stale ACTIVE redelivery after cancellation must not resurrect the order.
	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementActive, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStateCancelled, f.entitlementState(t, "order-1"))

	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementDeleted, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStateDeleted, f.entitlementState(t, "order-1"))
}

func TestEntitlementBeforeAccountFailsForRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementCreationRequested, "order-1", "acct-1"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	// Once the account event lands, the redelivered entitlement succeeds.
	require.NoError(t, f.svc.HandleEvent(ctx, accountEvent(domain.EventAccountCreationRequested, "acct-1")))
	require.NoError(t, f.svc.HandleEvent(ctx, entitlementEvent(domain.EventEntitlementCreationRequested, "order-1", "acct-1")))
	assert.Equal(t, domain.EntitlementStatePending, f.entitlementState(t, "order-1"))
}

func TestUnknownEventTypeIsAcked(t *testing.T) {
	f := newFixture(t)

	err := f.svc.HandleEvent(context.Background(), domain.Event{
		EventID:   "evt-unknown",
		EventType: "ACCOUNT_ARCHIVED",
	})
	assert.NoError(t, err)
}

func TestEventWithoutPayloadIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.HandleEvent(ctx, domain.Event{
		EventID:   "evt-1",
		EventType: domain.EventAccountActive,
	})
	assert.ErrorIs(t, err, domain.ErrEventInvalid)

	err = f.svc.HandleEvent(ctx, domain.Event{
		EventID:     "evt-2",
		EventType:   domain.EventEntitlementActive,
		Entitlement: &domain.EntitlementSnapshot{},
	})
	assert.ErrorIs(t, err, domain.ErrEventInvalid)
}

func TestPartnerFailureForcesRedelivery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.partner.err = errors.New("partner unavailable")

	event := accountEvent(domain.EventAccountCreationRequested, "acct-1")
	require.Error(t, f.svc.HandleEvent(ctx, event))

	// The state change sticks; only the approval is retried on redelivery.
	assert.Equal(t, domain.AccountStatePending, f.accountState(t, "acct-1"))

	f.partner.err = nil
	require.NoError(t, f.svc.HandleEvent(ctx, event))
	assert.Equal(t, []string{"acct-1"}, f.partner.accounts)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	auditdomain "github.com/simroster/simroster/internal/audit/domain"
	"github.com/simroster/simroster/internal/clock"
	"github.com/simroster/simroster/internal/config"
	ledgerdomain "github.com/simroster/simroster/internal/ledger/domain"
	obsmetrics "github.com/simroster/simroster/internal/observability/metrics"
	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	"github.com/simroster/simroster/internal/settings"
	tariffdomain "github.com/simroster/simroster/internal/tariff/domain"
	workflowdomain "github.com/simroster/simroster/internal/workflow/domain"
	"github.com/simroster/simroster/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Commands and reply-keyboard button labels accepted as flow entry points.
const (
	cmdStart  = "/start"
	cmdAdd    = "/add"
	cmdList   = "/list"
	cmdEdit   = "/edit"
	cmdDelete = "/delete"
	cmdWallet = "/wallet"
	cmdCancel = "/cancel"

	btnAdd       = "➕ Добавить"
	btnList      = "📋 Список"
	btnWallet    = "💰 Кошелек"
	btnEdit      = "✏️ Редактировать"
	btnDelete    = "🗑️ Удалить"
	btnNewTariff = "➕ Новый тариф"
	btnTopup     = "➕ Пополнить"
	btnBack      = "🔙 Назад"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Cfg         config.Config
	Holder      *config.NotifyConfigHolder
	Clock       clock.Clock
	Store       workflowdomain.Store
	LedgerSvc   ledgerdomain.Service
	TariffSvc   tariffdomain.Service
	RosterSvc   rosterdomain.Service
	AuditSvc    auditdomain.Service
	SettingsSvc settings.Service
}

// Engine drives every administrative flow as a per-actor finite-state
// machine backed by a durable session store.
type Engine struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         config.Config
	holder      *config.NotifyConfigHolder
	clock       clock.Clock
	store       workflowdomain.Store
	ledgerSvc   ledgerdomain.Service
	tariffSvc   tariffdomain.Service
	rosterSvc   rosterdomain.Service
	auditSvc    auditdomain.Service
	settingsSvc settings.Service
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:          p.DB,
		log:         p.Log.Named("workflow.engine"),
		cfg:         p.Cfg,
		holder:      p.Holder,
		clock:       p.Clock,
		store:       p.Store,
		ledgerSvc:   p.LedgerSvc,
		tariffSvc:   p.TariffSvc,
		rosterSvc:   p.RosterSvc,
		auditSvc:    p.AuditSvc,
		settingsSvc: p.SettingsSvc,
	}
}

// Handle processes one input event for one actor and returns the reply text.
// Validation failures re-prompt in place; commit failures clear the session
// and surface a generic transient message. Handle never panics outward.
func (e *Engine) Handle(ctx context.Context, actorID int64, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("workflow handler panicked", zap.Int64("actor_id", actorID), zap.Any("panic", r))
			reply, err = msgInternalError, fmt.Errorf("workflow panic: %v", r)
		}
	}()

	text = strings.TrimSpace(text)

	if text == cmdCancel {
		if err := e.store.Delete(ctx, e.db, actorID); err != nil {
			return msgTransientError, err
		}
		return msgCanceled, nil
	}
	if text == cmdStart {
		return e.handleStart(ctx, actorID)
	}

	session, err := e.store.Get(ctx, e.db, actorID)
	if err != nil {
		return msgTransientError, err
	}

	// Slash commands always dispatch; button labels only start a flow when
	// the actor is idle, otherwise they are ordinary step input.
	if command, ok := entryCommand(text, session != nil); ok {
		return e.handleCommand(ctx, actorID, command)
	}

	if session == nil {
		return msgMainMenu, nil
	}

	obsmetrics.Workflow().IncHandled(string(session.State))
	return e.handleStep(ctx, session, text)
}

func entryCommand(text string, inFlow bool) (string, bool) {
	switch text {
	case cmdAdd, cmdList, cmdEdit, cmdDelete, cmdWallet:
		return text, true
	}
	if inFlow {
		return "", false
	}
	switch text {
	case btnAdd:
		return cmdAdd, true
	case btnList:
		return cmdList, true
	case btnEdit:
		return cmdEdit, true
	case btnDelete:
		return cmdDelete, true
	case btnWallet:
		return cmdWallet, true
	}
	return "", false
}

func (e *Engine) handleStart(ctx context.Context, actorID int64) (string, error) {
	reply := msgGreeting
	if len(e.cfg.AdminIDs) == 0 {
		note, _, err := e.claimAdmin(ctx, actorID)
		if err != nil && !errors.Is(err, settings.ErrAdminAlreadyClaimed) {
			return msgTransientError, err
		}
		reply = note + reply
	}
	return reply, nil
}

func (e *Engine) handleCommand(ctx context.Context, actorID int64, command string) (string, error) {
	note, allowed, err := e.authorize(ctx, actorID)
	if err != nil {
		return msgTransientError, err
	}
	if !allowed {
		obsmetrics.Workflow().IncDenied()
		return msgNoPermission, nil
	}

	obsmetrics.Workflow().IncHandled(command)

	switch command {
	case cmdAdd:
		session := workflowdomain.NewSession(actorID, workflowdomain.StateAddName, workflowdomain.ModeAdd)
		if err := e.store.Save(ctx, e.db, session); err != nil {
			return msgTransientError, err
		}
		return note + msgAskName, nil
	case cmdList:
		reply, err := e.rosterOverview(ctx)
		if err != nil {
			return msgTransientError, err
		}
		return note + reply, nil
	case cmdEdit:
		return e.startSelectUser(ctx, actorID, note, workflowdomain.StateEditSelectUser)
	case cmdDelete:
		return e.startSelectUser(ctx, actorID, note, workflowdomain.StateDeleteSelectUser)
	case cmdWallet:
		balance, err := e.ledgerSvc.Balance(ctx)
		if err != nil {
			return msgTransientError, err
		}
		session := workflowdomain.NewSession(actorID, workflowdomain.StateWalletMenu, "")
		if err := e.store.Save(ctx, e.db, session); err != nil {
			return msgTransientError, err
		}
		return note + walletMenuMessage(balance), nil
	}
	return msgMainMenu, nil
}

// authorize resolves the administrator gate: the static set when configured,
// otherwise the first-use claim stored in settings.
func (e *Engine) authorize(ctx context.Context, actorID int64) (note string, allowed bool, err error) {
	if len(e.cfg.AdminIDs) > 0 {
		return "", e.cfg.IsAdmin(actorID), nil
	}
	note, _, err = e.claimAdmin(ctx, actorID)
	if errors.Is(err, settings.ErrAdminAlreadyClaimed) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return note, true, nil
}

func (e *Engine) claimAdmin(ctx context.Context, actorID int64) (note string, claimed bool, err error) {
	_, claimed, err = e.settingsSvc.ClaimAdmin(ctx, actorID)
	if err != nil {
		return "", false, err
	}
	if !claimed {
		return "", false, nil
	}
	if auditErr := e.auditSvc.Log(ctx, auditdomain.ActionAdminClaimed, nil, strconv.FormatInt(actorID, 10), actorID); auditErr != nil {
		e.log.Warn("failed to audit admin claim", zap.Error(auditErr))
	}
	return msgAdminClaimed, true, nil
}

func (e *Engine) startSelectUser(ctx context.Context, actorID int64, note string, state workflowdomain.State) (string, error) {
	subs, err := e.rosterSvc.List(ctx)
	if err != nil {
		return msgTransientError, err
	}
	if len(subs) == 0 {
		return note + msgRosterEmpty, nil
	}

	session := workflowdomain.NewSession(actorID, state, "")
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}

	loc := e.holder.Get().Location()
	var b strings.Builder
	if state == workflowdomain.StateEditSelectUser {
		b.WriteString(msgSelectUserEdit)
	} else {
		b.WriteString(msgSelectUserDelete)
	}
	for _, sub := range subs {
		b.WriteString("\n")
		b.WriteString(selectionLabel(sub, loc, state == workflowdomain.StateEditSelectUser))
	}
	return note + b.String(), nil
}

func (e *Engine) handleStep(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	switch session.State {
	case workflowdomain.StateAddName:
		return e.stepAddName(ctx, session, text)
	case workflowdomain.StateAddPhone:
		return e.stepAddPhone(ctx, session, text)
	case workflowdomain.StateAddTariffSelect:
		return e.stepTariffSelect(ctx, session, text)
	case workflowdomain.StateTariffNewName:
		return e.stepTariffNewName(ctx, session, text)
	case workflowdomain.StateTariffNewCost:
		return e.stepTariffNewCost(ctx, session, text)
	case workflowdomain.StateTariffNewDuration:
		return e.stepTariffNewDuration(ctx, session, text)
	case workflowdomain.StateConnectionDate:
		return e.stepConnectionDate(ctx, session, text)
	case workflowdomain.StateEditSelectUser:
		return e.stepEditSelectUser(ctx, session, text)
	case workflowdomain.StateDeleteSelectUser:
		return e.stepDeleteSelectUser(ctx, session, text)
	case workflowdomain.StateWalletMenu:
		return e.stepWalletMenu(ctx, session, text)
	case workflowdomain.StateWalletAmount:
		return e.stepWalletAmount(ctx, session, text)
	}

	// Unknown state in storage: drop the stale session rather than wedge the
	// actor forever.
	e.log.Warn("dropping session with unknown state", zap.String("state", string(session.State)))
	if err := e.store.Delete(ctx, e.db, session.ActorID); err != nil {
		return msgTransientError, err
	}
	return msgMainMenu, nil
}

func (e *Engine) stepAddName(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	if text == "" {
		return msgAskName, nil
	}
	session.SetString(workflowdomain.KeyName, text)
	session.State = workflowdomain.StateAddPhone
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	return msgAskPhone, nil
}

func (e *Engine) stepAddPhone(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	phone := workflowdomain.NormalizePhone(text)
	if !workflowdomain.IsValidPhone(phone) {
		return msgBadPhone, nil
	}

	_, err := e.rosterSvc.Get(ctx, phone)
	if err == nil {
		if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
			return msgTransientError, delErr
		}
		return fmt.Sprintf(msgDuplicatePhone, phone), nil
	}
	if !errors.Is(err, rosterdomain.ErrSubscriptionNotFound) {
		return msgTransientError, err
	}

	tariffs, err := e.tariffSvc.List(ctx)
	if err != nil {
		return msgTransientError, err
	}

	session.SetString(workflowdomain.KeyPhone, phone)
	session.State = workflowdomain.StateAddTariffSelect
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}

	var b strings.Builder
	b.WriteString(msgSelectTariff)
	for _, t := range tariffs {
		b.WriteString("\n")
		b.WriteString(workflowdomain.TariffLabel(t.Name, t.CostMinor, t.DurationDays))
	}
	b.WriteString("\n" + btnNewTariff)
	return b.String(), nil
}

func (e *Engine) stepTariffSelect(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	if text == btnNewTariff {
		session.State = workflowdomain.StateTariffNewName
		if err := e.store.Save(ctx, e.db, session); err != nil {
			return msgTransientError, err
		}
		return msgAskTariffName, nil
	}

	name, costMinor, durationDays, err := workflowdomain.ParseTariffLabel(text)
	if err != nil {
		// A malformed selection aborts the flow; it is a format error, not a
		// value to correct in place.
		if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
			return msgTransientError, delErr
		}
		return msgTariffFromList, nil
	}

	session.SetString(workflowdomain.KeyTariffName, name)
	session.SetInt(workflowdomain.KeyTariffCostMinor, costMinor)
	session.SetInt(workflowdomain.KeyTariffDuration, int64(durationDays))
	session.State = workflowdomain.StateConnectionDate
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	return msgAskConnectionDate, nil
}

func (e *Engine) stepTariffNewName(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	if text == "" {
		return msgAskTariffName, nil
	}
	session.SetString(workflowdomain.KeyNewTariffName, text)
	session.State = workflowdomain.StateTariffNewCost
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	return msgAskTariffCost, nil
}

func (e *Engine) stepTariffNewCost(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	costMinor, err := money.ParseAmountMinor(text)
	if err != nil {
		return msgBadTariffCost, nil
	}
	session.SetInt(workflowdomain.KeyNewTariffCost, costMinor)
	session.State = workflowdomain.StateTariffNewDuration
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	return msgAskTariffDuration, nil
}

func (e *Engine) stepTariffNewDuration(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	durationDays, err := strconv.Atoi(text)
	if err != nil || durationDays < tariffdomain.MinDurationDays || durationDays > tariffdomain.MaxDurationDays {
		return msgBadTariffDuration, nil
	}

	name := session.GetString(workflowdomain.KeyNewTariffName)
	costMinor := session.GetInt(workflowdomain.KeyNewTariffCost)

	// The tariff is committed as soon as it is fully described, before the
	// connection date is known; aborting the rest of the flow keeps it.
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := e.tariffSvc.UpsertTx(ctx, tx, name, costMinor, durationDays); err != nil {
			return err
		}
		detail := fmt.Sprintf("%s: %s AED / %d дн.", name, money.FormatMinor(costMinor), durationDays)
		return e.auditSvc.LogTx(ctx, tx, auditdomain.ActionTariffUpsert, nil, detail, session.ActorID)
	})
	if err != nil {
		obsmetrics.Workflow().IncCommitFailure("tariff_upsert")
		e.log.Error("tariff upsert failed", zap.Error(err))
		if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
			e.log.Warn("failed to clear session", zap.Error(delErr))
		}
		return msgTransientError, err
	}

	session.SetString(workflowdomain.KeyTariffName, name)
	session.SetInt(workflowdomain.KeyTariffCostMinor, costMinor)
	session.SetInt(workflowdomain.KeyTariffDuration, int64(durationDays))
	session.State = workflowdomain.StateConnectionDate
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	saved := fmt.Sprintf(msgTariffSaved, name, money.FormatMinor(costMinor), durationDays)
	return saved + "\n" + msgAskConnectionDate, nil
}

func (e *Engine) stepConnectionDate(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	loc := e.holder.Get().Location()
	connectedAt, err := workflowdomain.ParseConnectionDate(text, e.clock.Now(), loc)
	if err != nil {
		return msgBadDate, nil
	}

	if session.Mode == workflowdomain.ModeEdit {
		return e.commitEdit(ctx, session, connectedAt)
	}
	return e.commitAdd(ctx, session, connectedAt)
}

func (e *Engine) commitAdd(ctx context.Context, session *workflowdomain.Session, connectedAt time.Time) (string, error) {
	loc := e.holder.Get().Location()
	phone := session.GetString(workflowdomain.KeyPhone)
	name := session.GetString(workflowdomain.KeyName)
	costMinor := session.GetInt(workflowdomain.KeyTariffCostMinor)
	durationDays := int(session.GetInt(workflowdomain.KeyTariffDuration))

	var tariffName *string
	if tn := session.GetString(workflowdomain.KeyTariffName); tn != "" {
		tariffName = &tn
	}

	if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
		return msgTransientError, delErr
	}

	sub, err := e.rosterSvc.Create(ctx, rosterdomain.CreateRequest{
		Phone:              phone,
		Name:               name,
		ConnectedAt:        connectedAt,
		TariffName:         tariffName,
		TariffCostMinor:    costMinor,
		TariffDurationDays: durationDays,
		ActorID:            session.ActorID,
	})
	switch {
	case errors.Is(err, ledgerdomain.ErrInsufficientFunds):
		balance, balErr := e.ledgerSvc.Balance(ctx)
		if balErr != nil {
			return msgTransientError, balErr
		}
		return fmt.Sprintf(msgInsufficientFunds, money.FormatMinor(costMinor), money.FormatMinor(balance)), nil
	case errors.Is(err, rosterdomain.ErrDuplicatePhone):
		return fmt.Sprintf(msgDuplicatePhone, phone), nil
	case err != nil:
		obsmetrics.Workflow().IncCommitFailure("add")
		e.log.Error("subscription create failed", zap.String("phone", phone), zap.Error(err))
		return msgTransientError, err
	}

	balance, err := e.ledgerSvc.Balance(ctx)
	if err != nil {
		return msgTransientError, err
	}
	tn := "-"
	if sub.TariffName != nil {
		tn = *sub.TariffName
	}
	return fmt.Sprintf(msgConnected,
		sub.Name,
		tn,
		sub.ConnectedAt.In(loc).Format(workflowdomain.DateFormat),
		sub.ExpiresAt.In(loc).Format(workflowdomain.DateFormat),
		money.FormatMinor(costMinor),
		money.FormatMinor(balance),
	), nil
}

func (e *Engine) commitEdit(ctx context.Context, session *workflowdomain.Session, connectedAt time.Time) (string, error) {
	loc := e.holder.Get().Location()
	phone := session.GetString(workflowdomain.KeyPhone)

	if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
		return msgTransientError, delErr
	}

	sub, err := e.rosterSvc.UpdateConnectionDate(ctx, phone, connectedAt, session.ActorID)
	switch {
	case errors.Is(err, rosterdomain.ErrSubscriptionNotFound):
		return fmt.Sprintf(msgPhoneNotFound, phone), nil
	case err != nil:
		obsmetrics.Workflow().IncCommitFailure("edit")
		e.log.Error("connection date update failed", zap.String("phone", phone), zap.Error(err))
		return msgTransientError, err
	}

	return fmt.Sprintf(msgDateUpdated,
		sub.ConnectedAt.In(loc).Format(workflowdomain.DateFormat),
		sub.ExpiresAt.In(loc).Format(workflowdomain.DateFormat),
	), nil
}

func (e *Engine) stepEditSelectUser(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	phone := workflowdomain.ExtractPhone(text)
	sub, err := e.rosterSvc.Get(ctx, phone)
	if errors.Is(err, rosterdomain.ErrSubscriptionNotFound) {
		if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
			return msgTransientError, delErr
		}
		return fmt.Sprintf(msgPhoneNotFound, phone), nil
	}
	if err != nil {
		return msgTransientError, err
	}

	loc := e.holder.Get().Location()
	session.SetString(workflowdomain.KeyPhone, sub.Phone)
	session.SetString(workflowdomain.KeyName, sub.Name)
	session.SetInt(workflowdomain.KeyTariffDuration, int64(sub.TariffDurationDays))
	session.Mode = workflowdomain.ModeEdit
	session.State = workflowdomain.StateConnectionDate
	if err := e.store.Save(ctx, e.db, session); err != nil {
		return msgTransientError, err
	}
	return fmt.Sprintf(msgEditSelected,
		sub.Name,
		sub.Phone,
		sub.ConnectedAt.In(loc).Format(workflowdomain.DateFormat),
	), nil
}

func (e *Engine) stepDeleteSelectUser(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	phone := workflowdomain.ExtractPhone(text)

	if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
		return msgTransientError, delErr
	}

	sub, err := e.rosterSvc.Delete(ctx, phone, session.ActorID)
	switch {
	case errors.Is(err, rosterdomain.ErrSubscriptionNotFound):
		return fmt.Sprintf(msgPhoneNotFound, phone), nil
	case err != nil:
		obsmetrics.Workflow().IncCommitFailure("delete")
		e.log.Error("subscription delete failed", zap.String("phone", phone), zap.Error(err))
		return msgTransientError, err
	}
	return fmt.Sprintf(msgUserDeleted, sub.Name, sub.Phone), nil
}

func (e *Engine) stepWalletMenu(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	switch text {
	case btnBack:
		if err := e.store.Delete(ctx, e.db, session.ActorID); err != nil {
			return msgTransientError, err
		}
		return msgMainMenu, nil
	case btnTopup:
		session.State = workflowdomain.StateWalletAmount
		if err := e.store.Save(ctx, e.db, session); err != nil {
			return msgTransientError, err
		}
		return msgAskTopupAmount, nil
	}
	if err := e.store.Delete(ctx, e.db, session.ActorID); err != nil {
		return msgTransientError, err
	}
	return msgUnknownCommand, nil
}

func (e *Engine) stepWalletAmount(ctx context.Context, session *workflowdomain.Session, text string) (string, error) {
	amountMinor, err := money.ParseAmountMinor(text)
	if err != nil {
		return msgBadAmount, nil
	}

	if delErr := e.store.Delete(ctx, e.db, session.ActorID); delErr != nil {
		return msgTransientError, delErr
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := e.ledgerSvc.RecordTx(ctx, tx, ledgerdomain.RecordRequest{
			AmountMinor: amountMinor,
			Kind:        ledgerdomain.EntryKindTopup,
			Description: "manual topup",
			ActorID:     session.ActorID,
		}); err != nil {
			return err
		}
		return e.auditSvc.LogTx(ctx, tx, auditdomain.ActionWalletTopup, nil, "+"+money.FormatMinor(amountMinor)+" AED", session.ActorID)
	})
	if err != nil {
		obsmetrics.Workflow().IncCommitFailure("wallet_topup")
		e.log.Error("wallet topup failed", zap.Error(err))
		return msgTransientError, err
	}

	balance, err := e.ledgerSvc.Balance(ctx)
	if err != nil {
		return msgTransientError, err
	}
	return fmt.Sprintf(msgToppedUp, money.FormatMinor(amountMinor), money.FormatMinor(balance)), nil
}

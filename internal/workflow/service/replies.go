package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	rosterdomain "github.com/simroster/simroster/internal/roster/domain"
	workflowdomain "github.com/simroster/simroster/internal/workflow/domain"
	"github.com/simroster/simroster/pkg/money"
)

// Operator-facing reply texts. The product language is Russian.
const (
	msgGreeting = "Привет! Я помогу вести учет корпоративных SIM-карт. 📱\n\n" +
		"Команды:\n" +
		"/add — добавить сотрудника\n" +
		"/list — список подключений\n" +
		"/edit — изменить дату подключения\n" +
		"/delete — удалить сотрудника\n" +
		"/wallet — кошелек\n" +
		"/cancel — отменить текущее действие"
	msgMainMenu     = "Выберите действие в меню. 👇"
	msgCanceled     = "Действие отменено. ❌"
	msgNoPermission = "У вас нет прав для выполнения этой команды. 🔒"
	msgAdminClaimed = "Вы назначены администратором этого бота. ✅\n\n"

	msgAskName        = "Введите имя сотрудника:"
	msgAskPhone       = "Введите номер телефона в формате +971XXXXXXXXX:"
	msgBadPhone       = "❗️ Неверный формат номера. Введите номер в формате +971XXXXXXXXX:"
	msgSelectTariff   = "Выберите тариф:"
	msgTariffFromList = "❗️ Выберите тариф из списка. Действие отменено."

	msgAskTariffName     = "Введите название нового тарифа:"
	msgAskTariffCost     = "Введите стоимость тарифа в AED (например 55 или 57.75):"
	msgBadTariffCost     = "❗️ Неверная сумма. Введите стоимость тарифа в AED (например 55 или 57.75):"
	msgAskTariffDuration = "Введите срок действия тарифа в днях:"
	msgBadTariffDuration = "❗️ Неверный срок. Введите срок действия тарифа в днях:"
	msgTariffSaved       = "Тариф сохранен: %s (%s AED / %d дн.) ✅"

	msgAskConnectionDate = "Введите дату и время ПОДКЛЮЧЕНИЯ в формате ДД.ММ.ГГГГ ЧЧ:ММ или напишите «Сегодня»:"
	msgBadDate           = "❗️ Неверный формат даты. Введите дату в формате ДД.ММ.ГГГГ ЧЧ:ММ или напишите «Сегодня»:"

	msgDuplicatePhone = "❗️ Номер %s уже есть в базе. Действие отменено."
	msgPhoneNotFound  = "❗️ Номер %s не найден в базе."

	msgInsufficientFunds = "❗️ Недостаточно средств на балансе.\n" +
		"Нужно: %s AED\n" +
		"Доступно: %s AED\n\n" +
		"Пополните кошелек: /wallet"

	msgConnected = "Сотрудник подключен. ✅\n\n" +
		"Имя: %s\n" +
		"Тариф: %s\n" +
		"Подключен: %s\n" +
		"Оплачен до: %s\n\n" +
		"Списано: %s AED\n" +
		"Баланс: %s AED"

	msgSelectUserEdit   = "Выберите сотрудника для изменения даты подключения:"
	msgSelectUserDelete = "Выберите сотрудника для удаления:"
	msgEditSelected     = "Сотрудник: %s (%s)\nТекущая дата подключения: %s\n\n" + msgAskConnectionDate
	msgDateUpdated      = "Дата подключения обновлена. ✅\n\nПодключен: %s\nОплачен до: %s"
	msgUserDeleted      = "Сотрудник %s (%s) удален. 🗑️"

	msgRosterEmpty = "Список пуст. 🤷‍♂️"

	msgAskTopupAmount = "Введите сумму пополнения в AED (например 100 или 57.75):"
	msgBadAmount      = "❗️ Неверная сумма. Введите сумму пополнения в AED (например 100 или 57.75):"
	msgToppedUp       = "Кошелек пополнен на %s AED. ✅\nБаланс: %s AED"
	msgUnknownCommand = "Не понимаю эту команду. Выберите действие в меню. 👇"

	msgTransientError = "⚠️ Произошла ошибка, попробуйте еще раз."
	msgInternalError  = "⚠️ Внутренняя ошибка, попробуйте еще раз."
)

func walletMenuMessage(balanceMinor int64) string {
	return fmt.Sprintf("💰 Кошелек\nТекущий баланс: %s AED\n\nВыберите действие:\n%s\n%s",
		money.FormatMinor(balanceMinor), btnTopup, btnBack)
}

// selectionLabel renders one roster row for the edit and delete pickers.
// ExtractPhone must be able to recover the phone from this shape.
func selectionLabel(sub rosterdomain.Subscription, loc *time.Location, withExpiry bool) string {
	if withExpiry {
		return fmt.Sprintf("%s (%s) — до %s", sub.Name, sub.Phone, sub.ExpiresAt.In(loc).Format(workflowdomain.DateFormat))
	}
	return fmt.Sprintf("%s (%s)", sub.Name, sub.Phone)
}

// rosterOverview builds the /list reply: balance, then every subscription
// ordered by expiry with a status marker.
func (e *Engine) rosterOverview(ctx context.Context) (string, error) {
	balance, err := e.ledgerSvc.Balance(ctx)
	if err != nil {
		return "", err
	}
	subs, err := e.rosterSvc.List(ctx)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Баланс: %s AED\n", money.FormatMinor(balance))
	if len(subs) == 0 {
		b.WriteString("\n" + msgRosterEmpty)
		return b.String(), nil
	}

	loc := e.holder.Get().Location()
	now := e.clock.Now()
	fmt.Fprintf(&b, "📋 Подключений: %d\n", len(subs))
	for i, sub := range subs {
		tn := "-"
		if sub.TariffName != nil {
			tn = *sub.TariffName
		}
		fmt.Fprintf(&b, "\n%d. %s (%s)\n   Тариф: %s\n   Оплачен до: %s %s",
			i+1,
			sub.Name,
			sub.Phone,
			tn,
			sub.ExpiresAt.In(loc).Format(workflowdomain.DateFormat),
			statusMarker(now, sub.ExpiresAt),
		)
	}
	return b.String(), nil
}

func statusMarker(now, expiresAt time.Time) string {
	left := expiresAt.Sub(now)
	switch {
	case left <= 0:
		return "❗️ (Просрочено)"
	case left <= 24*time.Hour:
		return "⚠️ (Меньше 1 дн.)"
	case left <= 72*time.Hour:
		return "⚠️ (Меньше 3 дн.)"
	default:
		return "✅"
	}
}

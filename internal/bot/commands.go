package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"
)

const (
	studentHelp = `Доступные команды:
/token - Получить токен для доступа к API
/help - Показать это сообщение`

	adminHelp = `Доступные команды:
/token - Получить токен для доступа к API
/balance <user> - Показать баланс кредитов пользователя
/history <user> - Последние операции по леджеру пользователя
/top [n] - Таблица лидеров
/bonus <user> <amount> reason <text> - Начислить бонусные кредиты
/register <tg_username> <user> - Привязать телеграм-аккаунт к пользователю курса
/users - Показать привязки телеграм-аккаунтов
/help - Показать это сообщение

Примеры:
/balance anna.k
/top 10
/bonus anna.k 15 reason Помогла однокурсникам с домашкой
/register @anna anna.k`
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start": b.handleStart,
		"token": b.handleToken,
		"help":  b.handleHelp,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"balance":  b.handleBalance,
		"history":  b.handleHistory,
		"top":      b.handleTop,
		"bonus":    b.handleBonus,
		"register": b.handleRegister,
		"users":    b.handleUsers,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeStudentCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	if b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if b.admins[msg.From.ID] {
		text = adminHelp
	} else {
		text = studentHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Используйте команды для взаимодействия с ботом. Отправьте /help для списка команд.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "Привет! Я помогу тебе с кредитами курса.\n\n"
	if b.admins[msg.From.ID] {
		text += "Ты организатор. Используй /help для списка команд."
	} else {
		text += "Используй /token чтобы получить токен."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "Авторизация выключена, токен не нужен")
	}

	ctx := context.Background()
	course := b.config.Bot.Course

	userID, err := b.tokens.FetchUserIDByTelegram(ctx, course, msg.From.UserName)
	if err != nil {
		return fmt.Errorf("не нашёл тебя в курсе %s: %v", course, err)
	}

	info, isNew, err := b.tokens.FetchOrCreateUserToken(ctx, course, userID)
	if err != nil {
		return fmt.Errorf("ошибка выдачи токена: %v", err)
	}

	status := "уже существует"
	if isNew {
		status = "создан"
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Токен %s:\n%s", status, info.Token))
}

func (b *Bot) handleBalance(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Использование: /balance <user>")
	}

	userID := args[0]
	total, err := b.service.Balance(userID)
	if err != nil {
		return fmt.Errorf("ошибка подсчёта кредитов: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("💰 %s: %d кредитов", userID, total))
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Использование: /history <user>")
	}

	userID := args[0]
	txs, err := b.service.History(userID)
	if err != nil {
		return fmt.Errorf("ошибка получения истории: %v", err)
	}

	if len(txs) == 0 {
		return b.sendMessage(msg.Chat.ID, "Операций не найдено")
	}

	const maxRows = 15

	var out strings.Builder
	out.WriteString(fmt.Sprintf("Последние операции %s:\n\n", userID))
	for i, tx := range txs {
		if i == maxRows {
			out.WriteString(fmt.Sprintf("… и ещё %d\n", len(txs)-maxRows))
			break
		}
		sign := "+"
		if tx.Amount < 0 {
			sign = ""
		}
		out.WriteString(fmt.Sprintf(
			"%s%d — %s\n📅 %s UTC\n\n",
			sign,
			tx.Amount,
			tx.Reason,
			time.Unix(tx.CreatedAt, 0).UTC().Format("2006-Jan-02 Mon 15:04"),
		))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleTop(msg *tgbotapi.Message) error {
	limit := 10
	args := strings.Fields(msg.CommandArguments())
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("некорректное число: %v", err)
		}
		limit = n
	}

	rows, err := b.service.Store.FetchLeaderboard(limit)
	if err != nil {
		return fmt.Errorf("ошибка получения таблицы лидеров: %v", err)
	}

	if len(rows) == 0 {
		return b.sendMessage(msg.Chat.ID, "Пока пусто")
	}

	var out strings.Builder
	out.WriteString("🏆 Таблица лидеров:\n\n")
	for i, row := range rows {
		out.WriteString(fmt.Sprintf("%d. %s — %d\n", i+1, row.DisplayName, row.Total))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) handleBonus(msg *tgbotapi.Message) error {
	// Пример: /bonus anna.k 15 reason Помогла однокурсникам
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 4 || args[2] != "reason" {
		return b.sendMessage(msg.Chat.ID, "Использование: /bonus <user> <amount> reason <text>")
	}

	userID := args[0]
	amount, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("некорректная сумма: %v", err)
	}
	reason := strings.Join(args[3:], " ")

	issuerID := fmt.Sprintf("tg:%d", msg.From.ID)
	if _, err := b.service.AwardBonus(context.Background(), userID, issuerID, amount, reason); err != nil {
		return fmt.Errorf("не получилось начислить бонус: %v", err)
	}

	total, err := b.service.Balance(userID)
	if err != nil {
		return fmt.Errorf("бонус записан, но баланс не прочитался: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ %s +%d (%s)\nТеперь на счету: %d",
		userID,
		amount,
		reason,
		total,
	))
}

// handleRegister stores the telegram→course-user mapping /token resolves
// through. Without it a student has no way to mint an API token.
func (b *Bot) handleRegister(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "Авторизация выключена, привязка не нужна")
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendMessage(msg.Chat.ID, "Использование: /register <tg_username> <user>")
	}

	tgUsername := strings.TrimPrefix(args[0], "@")
	userID := args[1]

	ctx := context.Background()
	if err := b.tokens.SaveUserTelegramMapping(ctx, b.config.Bot.Course, tgUsername, userID); err != nil {
		return fmt.Errorf("ошибка сохранения привязки: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ @%s → %s", tgUsername, userID))
}

func (b *Bot) handleUsers(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return b.sendMessage(msg.Chat.ID, "Авторизация выключена")
	}

	mappings, err := b.tokens.FetchCourseMappings(context.Background(), b.config.Bot.Course)
	if err != nil {
		return fmt.Errorf("ошибка получения привязок: %v", err)
	}

	if len(mappings) == 0 {
		return b.sendMessage(msg.Chat.ID, "Пока никто не привязан")
	}

	var out strings.Builder
	out.WriteString("Привязанные пользователи:\n\n")
	for tgUsername, userID := range mappings {
		out.WriteString(fmt.Sprintf("@%s → %s\n", tgUsername, userID))
	}

	return b.sendMessage(msg.Chat.ID, out.String())
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}

package flow

// User-facing dialogue copy. Marketplace help texts live in configuration;
// everything here is fixed dialogue scaffolding.
const (
	textWelcome = "Добро пожаловать в MaxExpress! 😊\n\nВыберите маркетплейс, по которому нужна помощь:"

	textChooseAgain = "Пожалуйста, выберите маркетплейс кнопкой ниже."

	textQueryPrompt = "Напишите Ваш запрос (ссылка на товар или вопрос)."

	textQueryAccepted = "Запрос принят! ✅ Мы свяжемся с Вами.\nЧтобы начать заново, отправьте /start."

	textCompletedHint = "Ваш запрос уже принят. Отправьте /start, чтобы начать новый."

	textIdleHint = "Отправьте /start, чтобы выбрать маркетплейс, или /help для списка команд."

	textCancelled = "Диалог сброшен. Отправьте /start, чтобы начать заново."

	textHelp = "Команды:\n" +
		"/start — выбрать маркетплейс\n" +
		"/register — регистрация и клиентский код\n" +
		"/code — показать клиентский код\n" +
		"/track — отследить посылку 🚚\n" +
		"/cancel — сбросить диалог\n" +
		"/help — эта справка"

	textUnknownCommand = "Неизвестная команда. Отправьте /help для списка команд."

	textRegisterIntro = "Пройдите быструю и легкую регистрацию, чтобы получить свой клиентский код!"

	textAskFirstName      = "Напишите Ваше имя."
	textAskFirstNameAgain = "Введите имя еще раз."
	textAskLastName       = "Напишите Вашу фамилию."
	textAskLastNameAgain  = "Введите фамилию еще раз."
	textAskPhone          = "Напишите Ваш номер телефона.\nПример: 996XXXXXXXXX."
	textAskPhoneAgain     = "Введите номер телефона еще раз.\nПример: 996XXXXXXXXX."
	textBadInput          = "Неверный формат."

	textRegistered = "Вы зарегистрированы!"

	textAskTrackCode   = "Введите трек-код посылки."
	textTrackChecking  = "Проверяем статус посылки..."
	textTrackArrived   = "Посылка прибыла на склад! 📦"
	textTrackInTransit = "Посылка еще в пути. 🚚"
)

// TrackStatusText renders the vendor's answer for the user.
func TrackStatusText(arrived bool) string {
	if arrived {
		return textTrackArrived
	}
	return textTrackInTransit
}

// RegisteredText confirms registration with the assigned client code.
func RegisteredText(clientCode string) string {
	return textRegistered + "\nВаш клиентский код: " + clientCode + " 💼"
}

// AlreadyRegisteredText is shown when /register finds an existing account.
func AlreadyRegisteredText(clientCode string) string {
	return "Вы уже зарегистрированы.\nВаш клиентский код: " + clientCode + " 💼"
}

// ClientCodeText answers /code for a registered user.
func ClientCodeText(clientCode string) string {
	return "Ваш клиентский код: " + clientCode + " 💼"
}

// NotRegisteredText is shown when a client code is requested before registration.
const NotRegisteredText = "Вы еще не зарегистрированы. Отправьте /register."

// ActionFailedText is the fallback when a side effect could not be completed.
const ActionFailedText = "Не получилось выполнить запрос. Попробуйте позже. 🙏"

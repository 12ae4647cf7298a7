package domain

// DefaultRules статический текст правил оценки, отдаётся по /rules
// и вшивается в промпт модели.
const DefaultRules = "Я оцениваю еду по: белок / овощи(клетчатка) / сладкое / жирное / порция / соусы.\n" +
	"Отвечаю форматом: Блюдо, Оценка 1–10, Калории (примерно диапазоном), Почему, Совет.\n" +
	"Калории по фото — всегда приблизительно."

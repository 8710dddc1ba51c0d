package intent

// Rule tables for the router. All entries are lower case. Entries in
// DBKeywords and DomainNouns match at a word start (so stems such as
// "транзакц" cover inflections); ChatKeywords and Interrogatives match whole
// words or phrases only.

// ChatKeywords mark greetings, identity and capability questions, thanks and
// farewells (ru, en, kk).
var ChatKeywords = []string{
	// ru
	"привет", "здравствуй", "здравствуйте", "добрый день", "добрый вечер", "доброе утро",
	"как дела", "кто ты", "что ты умеешь", "что умеешь", "ты умеешь", "помощь", "помоги",
	"спасибо", "благодарю", "пока", "до свидания",
	// en
	"hello", "hi", "hey", "good morning", "good evening", "how are you", "who are you",
	"what can you do", "can you", "help", "thanks", "thank you", "bye", "goodbye",
	// kk
	"сәлем", "сәлеметсіз бе", "қалайсың", "сен кімсің", "не істей аласың", "көмек",
	"рахмет", "сау бол",
}

// DomainNouns name the fact being queried. A chat keyword followed later in
// the question by one of these is part of a data request ("can you show
// transactions"), not small talk.
var DomainNouns = []string{
	"транзакц", "платеж", "операци", "данн",
	"transaction", "payment", "data",
	"транзакция", "төлем", "деректер",
}

// TimeWords are relative and calendar periods.
var TimeWords = []string{
	"сегодня", "вчера", "недел", "месяц", "год", "день", "дня", "дней", "дни", "дням", "квартал",
	"за последн", "за период",
	"today", "yesterday", "week", "month", "year", "day", "quarter", "last",
	"бүгін", "кеше", "апта", "ай", "жыл", "күн", "соңғы",
}

// AggregationWords ask for counts, totals and rankings.
var AggregationWords = []string{
	"сколько", "количеств", "число", "топ", "объем", "объём", "средн", "сумм", "максим", "миним",
	"всего", "итог",
	"how many", "count", "number of", "top", "volume", "average", "avg", "sum", "total",
	"maximum", "minimum",
	"қанша", "саны", "орташа", "сома", "көп", "ең",
}

// StrongPatterns are analytic phrasings that are almost never small talk.
var StrongPatterns = []string{
	"динамик", "тренд", "по дням", "по месяцам", "по годам", "по неделям", "статистик", "распределени",
	"dynamics", "trend", "by day", "by month", "by year", "by week", "statistics", "distribution",
	"күн бойынша", "ай бойынша", "статистика", "үлестірім",
}

// DBKeywords are scored; each distinct hit adds one point.
var DBKeywords = concat(
	AggregationWords,
	TimeWords,
	DomainNouns,
	[]string{
		// verbs asking for output
		"показ", "вывед", "выведи", "вывест", "найд", "найти", "получ", "покажи",
		"show", "display", "find", "get", "list",
		"көрсет", "тап",
		// grouping and comparison
		"по категори", "по город", "по банк", "по валют", "по тип", "по стран",
		"by category", "by city", "by bank", "by currency", "by type", "by country",
		"сравн", "compare", "анализ", "analysis", "график", "chart", "диаграмм", "diagram",
		"изменени", "change",
		// schema vocabulary
		"мерчант", "merchant", "карт", "card", "банк", "bank", "город", "city", "валют", "currency",
		"категори", "category", "чек",
		"mcc", "mcc_category", "merchant_city", "transaction_type", "transaction_currency",
		"acquirer_country_iso", "pos_entry_mode", "wallet_type", "issuer_bank_name",
	},
	StrongPatterns,
)

// Interrogatives are open question words ("what/who/why/how").
var Interrogatives = []string{
	"что", "кто", "почему", "зачем", "как",
	"what", "who", "why", "how",
	"не", "кім", "неге", "қалай",
}

func concat(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lists {
		for _, s := range l {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

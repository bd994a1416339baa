package locale

// englishDays are indexed by day-of-week ordinal, Sunday = 0.
var englishDays = [7]string{
	"Sunday",
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
}

// EnglishDayLabel returns the English display label for a day-of-week
// ordinal. It stands in for the host application's localization lookup.
func EnglishDayLabel(ordinal int) string {
	if ordinal < 0 || ordinal > 6 {
		return ""
	}
	return englishDays[ordinal]
}

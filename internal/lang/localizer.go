package lang

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"github.com/tbourn/go-sql-assistant/internal/safety"
)

//go:embed locales/*.json
var localeFS embed.FS

// Message IDs.
const (
	MsgBanNotice      = "ban_notice"
	MsgWarningNotice  = "warning_notice"
	MsgStillBanned    = "still_banned"
	MsgCannotGenerate = "cannot_generate"

	MsgViolationJailbreak     = "violation_jailbreak_attempt"
	MsgViolationInappropriate = "violation_inappropriate_language"
	MsgViolationAbuse         = "violation_system_abuse"
	MsgViolationRepeated      = "violation_repeated_violations"

	MsgFoundRecords    = "analysis_found_records"
	MsgResultContains  = "analysis_result_contains"
	MsgShowDetails     = "analysis_show_details"
	MsgComparePeriods  = "analysis_compare_periods"
	MsgMainResult      = "analysis_main_result"
	MsgFoundFor        = "analysis_found_for"
	MsgShowsRecords    = "analysis_shows_records"
	MsgQueryResult     = "analysis_query_result"
	MsgAllCategories   = "analysis_all_categories"
	MsgCompareOthers   = "analysis_compare_others"
	MsgCategoryDefault = "analysis_category_default"
)

// Localizer renders messages from the embedded ru/en/kk catalogs. It is
// immutable after construction and safe for concurrent use.
type Localizer struct {
	bundle     *i18n.Bundle
	localizers map[Language]*i18n.Localizer
}

// NewLocalizer loads the embedded catalogs.
func NewLocalizer() (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	l := &Localizer{bundle: bundle, localizers: make(map[Language]*i18n.Localizer)}
	for _, lg := range []Language{English, Russian, Kazakh} {
		if _, err := bundle.LoadMessageFileFS(localeFS, fmt.Sprintf("locales/%s.json", lg)); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", lg, err)
		}
		l.localizers[lg] = i18n.NewLocalizer(bundle, string(lg), string(English))
	}
	return l, nil
}

// MustLocalizer panics if the embedded catalogs are broken.
func MustLocalizer() *Localizer {
	l, err := NewLocalizer()
	if err != nil {
		panic(err)
	}
	return l
}

// Get renders id in lang, falling back to English and finally to the id.
func (l *Localizer) Get(lang Language, id string, data map[string]any) string {
	loc, ok := l.localizers[lang]
	if !ok {
		loc = l.localizers[English]
	}
	msg, err := loc.Localize(&i18n.LocalizeConfig{MessageID: id, TemplateData: data})
	if err != nil {
		return id
	}
	return msg
}

// CannotGenerate is the sentence a model returns when a question has no SQL
// answer.
func (l *Localizer) CannotGenerate(lang Language) string {
	return l.Get(lang, MsgCannotGenerate, nil)
}

// BanNotice implements safety.Messages.
func (l *Localizer) BanNotice(lang string, n safety.Notice) string {
	return l.Get(Parse(lang), MsgBanNotice, map[string]any{
		"Hours": int(n.Remaining.Round(time.Hour) / time.Hour),
		"Until": n.BannedUntil.UTC().Format("2006-01-02 15:04:05 UTC"),
	})
}

// WarningNotice implements safety.Messages.
func (l *Localizer) WarningNotice(lang string, n safety.Notice) string {
	lg := Parse(lang)
	return l.Get(lg, MsgWarningNotice, map[string]any{
		"Warnings": n.Warnings,
		"Max":      n.MaxWarnings,
		"Reason":   l.Get(lg, violationID(n.Kind), nil),
	})
}

// StillBanned implements safety.Messages.
func (l *Localizer) StillBanned(lang string, n safety.Notice) string {
	return l.Get(Parse(lang), MsgStillBanned, map[string]any{
		"Minutes": int(n.Remaining/time.Minute) + 1,
	})
}

func violationID(k safety.ViolationKind) string {
	switch k {
	case safety.JailbreakAttempt:
		return MsgViolationJailbreak
	case safety.InappropriateLanguage:
		return MsgViolationInappropriate
	case safety.SystemAbuse:
		return MsgViolationAbuse
	default:
		return MsgViolationRepeated
	}
}

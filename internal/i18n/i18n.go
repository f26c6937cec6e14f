// Package i18n translates user-facing messages and provides locale-aware
// string ordering.
package i18n

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/collate"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/alphabot-ai/inkpost/internal/client"
)

var supported = []language.Tag{language.English, language.Spanish}

var matcher = language.NewMatcher(supported)

var (
	buildOnce sync.Once
	builtCat  *catalog.Builder
	buildErr  error
)

func buildCatalog() (*catalog.Builder, error) {
	buildOnce.Do(func() {
		b := catalog.NewBuilder(catalog.Fallback(language.English))
		for key, text := range spanish {
			if err := b.SetString(language.Spanish, key, text); err != nil {
				buildErr = fmt.Errorf("catalog %q: %w", key, err)
				return
			}
		}
		for key, forms := range plurals {
			for lang, f := range forms {
				tag := language.MustParse(lang)
				msg := plural.Selectf(1, "%d", plural.One, f.one, plural.Other, f.other)
				if err := b.Set(tag, key, msg); err != nil {
					buildErr = fmt.Errorf("catalog %q: %w", key, err)
					return
				}
			}
		}
		builtCat = b
	})
	return builtCat, buildErr
}

// Match returns the supported tag closest to lang, English when nothing fits.
func Match(lang string) language.Tag {
	t, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Translator is safe for concurrent use.
type Translator struct {
	tag     language.Tag
	printer *message.Printer

	mu       sync.Mutex
	collator *collate.Collator
}

// New returns a translator for lang (e.g. "en", "es-MX").
func New(lang string) *Translator {
	tag := Match(lang)
	cat, err := buildCatalog()
	if err != nil {
		// The catalog is static; a failure here is a programming error.
		panic(err)
	}
	return &Translator{
		tag:      tag,
		printer:  message.NewPrinter(tag, message.Catalog(cat)),
		collator: collate.New(tag, collate.IgnoreCase),
	}
}

func (t *Translator) Tag() language.Tag {
	return t.tag
}

func (t *Translator) Sprintf(key string, args ...any) string {
	return t.printer.Sprintf(key, args...)
}

// Compare orders strings by the locale's collation rules.
func (t *Translator) Compare(a, b string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.collator.CompareString(a, b)
}

// LongDate formats d as "January 2, 2006" or "2 de enero de 2006".
func (t *Translator) LongDate(d time.Time) string {
	month := t.Sprintf(months[d.Month()-1])
	if t.tag == language.Spanish {
		return fmt.Sprintf("%d de %s de %d", d.Day(), month, d.Year())
	}
	return fmt.Sprintf("%s %d, %d", month, d.Day(), d.Year())
}

// ShortDate formats d as "Jan 2, 2006" or "2/1/2006".
func (t *Translator) ShortDate(d time.Time) string {
	if t.tag == language.Spanish {
		return d.Format("2/1/2006")
	}
	return d.Format("Jan 2, 2006")
}

// Spanish puts the label before the amount: "hace 2 horas".
var spanishMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "ahora", DivBy: time.Second},
	{D: 2 * time.Second, Format: "%s 1 segundo", DivBy: 1},
	{D: time.Minute, Format: "%s %d segundos", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "%s 1 minuto", DivBy: 1},
	{D: time.Hour, Format: "%s %d minutos", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "%s 1 hora", DivBy: 1},
	{D: humanize.Day, Format: "%s %d horas", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "%s 1 día", DivBy: 1},
	{D: humanize.Week, Format: "%s %d días", DivBy: humanize.Day},
	{D: 2 * humanize.Week, Format: "%s 1 semana", DivBy: 1},
	{D: humanize.Month, Format: "%s %d semanas", DivBy: humanize.Week},
	{D: 2 * humanize.Month, Format: "%s 1 mes", DivBy: 1},
	{D: humanize.Year, Format: "%s %d meses", DivBy: humanize.Month},
	{D: 18 * humanize.Month, Format: "%s 1 año", DivBy: 1},
	{D: 2 * humanize.Year, Format: "%s 2 años", DivBy: 1},
	{D: humanize.LongTime, Format: "%s %d años", DivBy: humanize.Year},
	{D: math.MaxInt64, Format: "%s mucho tiempo", DivBy: 1},
}

// RelTime describes then relative to now, e.g. "3 hours ago" or
// "hace 3 horas".
func (t *Translator) RelTime(then, now time.Time) string {
	past, future := t.Sprintf(MsgAgo), t.Sprintf(MsgFromNow)
	if t.tag == language.Spanish {
		return humanize.CustomRelTime(then, now, past, future, spanishMagnitudes)
	}
	return humanize.RelTime(then, now, past, future)
}

// Error renders err for the user. Client failures without a server message
// are translated; server messages are shown verbatim.
func (t *Translator) Error(err error) string {
	switch {
	case err == nil:
		return ""
	case client.IsKind(err, client.KindSessionExpired):
		return t.Sprintf(MsgSessionExpired)
	case client.IsKind(err, client.KindTransport):
		return t.Sprintf(MsgConnectivity)
	case client.IsKind(err, client.KindThrottled):
		return t.Sprintf(MsgTooManyRequests)
	case client.IsKind(err, client.KindValidation) && err.Error() == client.MsgNotAnImage:
		return t.Sprintf(MsgOnlyImages)
	}
	return err.Error()
}

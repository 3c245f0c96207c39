// Package summary turns a loosely-typed listing record into the Telegram HTML
// card shown by the bot and the mini app.
package summary

import (
	"html"
	"sort"
	"strings"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const (
	bullet        = "•"
	contactSep    = " · "
	NoDataMessage = "<i>Нет данных для отображения</i>"

	extrasTitle = "📋 Дополнительно"
)

type lines struct{ out []string }

// block appends a group of lines, separated from earlier content by one blank line.
func (l *lines) block(group ...string) {
	if len(group) == 0 {
		return
	}
	if len(l.out) > 0 {
		l.out = append(l.out, "")
	}
	l.out = append(l.out, group...)
}

func bulletLine(label, value string) string {
	return bullet + " <b>" + label + ":</b> " + html.EscapeString(value)
}

// Render builds the listing card. It never fails: unknown shapes fall back to
// plain text and an empty record yields NoDataMessage.
func Render(rec domain.Record) string {
	res := NewResolver(rec)
	var l lines

	if v, ok := res.Resolve(titleAliases); ok {
		if t := Stringify(v); t != "" {
			l.block("🏡 <b>" + html.EscapeString(t) + "</b>")
		}
	}

	l.block(renderFields(res, identityFields)...)

	for _, s := range sections {
		if items := renderFields(res, s.fields); len(items) > 0 {
			l.block(append([]string{"<b>" + s.title + "</b>"}, items...)...)
		}
	}

	var contact []string
	if v, ok := res.Resolve(contactNameAliases); ok {
		if s := Stringify(v); s != "" {
			contact = append(contact, s)
		}
	}
	if v, ok := res.Resolve(contactPhoneAliases); ok {
		if s := Stringify(v); s != "" {
			contact = append(contact, s)
		}
	}
	if len(contact) > 0 {
		l.block("<b>Контакт:</b> " + html.EscapeString(strings.Join(contact, contactSep)))
	}

	if v, ok := res.Resolve(linkAliases); ok {
		if s := Stringify(v); s != "" {
			l.block("<b>Ссылка:</b> " + html.EscapeString(s))
		}
	}

	if extras := renderExtras(res, rec); len(extras) > 0 {
		l.block(append([]string{"<b>" + extrasTitle + "</b>"}, extras...)...)
	}

	if len(l.out) == 0 {
		return NoDataMessage
	}
	return strings.Join(l.out, "\n")
}

// renderFields resolves each field in declared order. A value that formats to
// "" counts as absent; its key stays consumed.
func renderFields(res *Resolver, fields []Field) []string {
	var out []string
	for _, f := range fields {
		v, ok := res.Resolve(f.Aliases)
		if !ok {
			continue
		}
		s := format(f.Format, v)
		if s == "" {
			continue
		}
		out = append(out, bulletLine(f.Label, s))
	}
	return out
}

func renderExtras(res *Resolver, rec domain.Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		if res.Consumed(k) || excludedFromExtras(k) {
			continue
		}
		v := rec[k]
		if domain.IsEmpty(v) {
			continue
		}
		s := Stringify(v)
		if s == "" {
			continue
		}
		// raw column names come from the store, so they are escaped like values
		out = append(out, bulletLine(html.EscapeString(k), s))
	}
	return out
}

func excludedFromExtras(key string) bool {
	low := strings.ToLower(key)
	if _, ok := excludedExtraKeys[low]; ok {
		return true
	}
	for _, part := range excludedKeyParts {
		if strings.Contains(low, part) {
			return true
		}
	}
	return false
}

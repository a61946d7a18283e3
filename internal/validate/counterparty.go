package validate

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// roleAccounts are local parts that identify a mailbox rather than a person;
// the display name falls back to the domain for these.
var roleAccounts = map[string]bool{
	"info":           true,
	"admin":          true,
	"administracion": true,
	"no-reply":       true,
	"noreply":        true,
	"no_reply":       true,
	"contact":        true,
	"contacto":       true,
	"ventas":         true,
	"sales":          true,
	"facturacion":    true,
	"billing":        true,
	"soporte":        true,
	"support":        true,
	"notificaciones": true,
	"notifications":  true,
	"mail":           true,
	"correo":         true,
}

var titleCaser = cases.Title(language.Und)

// ResolveCounterparty derives a display name from a sender address with a
// deterministic rule: split the local part on separator characters,
// title-case each token, join with spaces. Role accounts (info@, no-reply@,
// ...) derive the name from the domain instead.
func ResolveCounterparty(sender string) string {
	addr := strings.TrimSpace(sender)
	if addr == "" {
		return ""
	}

	// "Some Name <user@host>" -> "user@host"
	if open := strings.LastIndex(addr, "<"); open >= 0 {
		if close := strings.LastIndex(addr, ">"); close > open {
			addr = addr[open+1 : close]
		}
	}

	local, domain, found := strings.Cut(addr, "@")
	if !found {
		return nameFromTokens(local)
	}

	if roleAccounts[strings.ToLower(strings.TrimSpace(local))] {
		return nameFromDomain(domain)
	}
	return nameFromTokens(local)
}

// Implausible reports whether a service-supplied counterparty name should be
// replaced by the resolved sender name: empty or purely numeric.
func Implausible(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return true
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func nameFromTokens(local string) string {
	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, token := range tokens {
		tokens[i] = titleCaser.String(strings.ToLower(token))
	}
	return strings.Join(tokens, " ")
}

func nameFromDomain(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	return titleCaser.String(strings.ToLower(label))
}

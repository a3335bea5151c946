package agent

import (
	"net/url"
	"strings"
)

type DomainLevel int

const (
	DomainSafe     DomainLevel = iota
	DomainCritical             // агент продолжает, но в журнале остаётся предупреждение
	DomainBlocked              // задача прерывается
)

type DomainVerdict struct {
	Level  DomainLevel
	Reason string
}

// DomainPolicy проверяет адреса, на которых оказывается агент.
type DomainPolicy struct {
	critical map[string]string
	blocked  []string
}

// DefaultDomainPolicy: финансовые и государственные сервисы критичны,
// админ-панели заблокированы.
func DefaultDomainPolicy() *DomainPolicy {
	return &DomainPolicy{
		critical: map[string]string{
			"sberbank.ru":       "Банковские операции",
			"alfabank.ru":       "Банковские операции",
			"vtb.ru":            "Банковские операции",
			"tbank.ru":          "Банковские операции",
			"chase.com":         "Банковские операции",
			"bankofamerica.com": "Банковские операции",
			"paypal.com":        "Платёжная система",
			"stripe.com":        "Платёжная система",
			"qiwi.com":          "Платёжная система",
			"binance.com":       "Криптобиржа",
			"coinbase.com":      "Криптобиржа",
			"gosuslugi.ru":      "Государственные услуги",
			"nalog.gov.ru":      "Налоговая служба",
		},
		blocked: []string{"/wp-admin", "/phpmyadmin", "/cpanel", "/administrator"},
	}
}

func (p *DomainPolicy) Check(raw string) DomainVerdict {
	if p == nil {
		return DomainVerdict{Level: DomainSafe}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return DomainVerdict{Level: DomainSafe}
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	for _, prefix := range p.blocked {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return DomainVerdict{Level: DomainBlocked, Reason: "системная страница " + prefix}
		}
	}
	for domain, why := range p.critical {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return DomainVerdict{Level: DomainCritical, Reason: why}
		}
	}
	if host == "localhost" || strings.HasPrefix(host, "127.") || strings.HasPrefix(host, "192.168.") {
		return DomainVerdict{Level: DomainCritical, Reason: "локальный адрес"}
	}
	return DomainVerdict{Level: DomainSafe}
}

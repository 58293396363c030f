package normalize

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ats-sync-backend/models"
)

// aliasDomains почтовые домены, где точки в имени и +метка не различают ящики.
// Для остальных доменов адрес сравнивается как есть.
var aliasDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

const emptyKeyPrefix = "__empty__|"

func Email(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if !aliasDomains[domain] {
		return email
	}
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	local = strings.ReplaceAll(local, ".", "")
	return local + "@" + domain
}

func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CompositeKey ключ кандидата по вакансии. Для строки без Job ID и Email
// возвращается уникальная метка, такие строки никогда не считаются дублями.
func CompositeKey(jobID, email string) string {
	jobID = strings.TrimSpace(jobID)
	normalized := Email(email)
	if jobID == "" && normalized == "" {
		return emptyKeyPrefix + uuid.NewString()
	}
	return jobID + "|" + normalized
}

func IsEmptyKey(key string) bool {
	return strings.HasPrefix(key, emptyKeyPrefix)
}

// CanonicalStatus приводит статус к словарю заявок без учёта регистра.
// Неизвестное значение не отклоняется, а возвращается в Title Case.
func CanonicalStatus(raw string) models.RequisitionStatus {
	folded := foldStatus(raw)
	if folded == "" {
		return ""
	}
	for _, status := range models.RequisitionStatuses {
		if foldStatus(string(status)) == folded {
			return status
		}
	}
	return models.RequisitionStatus(TitleCase(raw))
}

func foldStatus(raw string) string {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, " ")
}

func TitleCase(raw string) string {
	return cases.Title(language.English).String(strings.Join(strings.Fields(raw), " "))
}

// URL дополняет адрес без протокола схемой https://
func URL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	for _, scheme := range []string{"http://", "https://", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return value
		}
	}
	if strings.HasPrefix(lower, "www.") || strings.HasPrefix(lower, "linkedin.com/") || looksLikeDomain(lower) {
		return "https://" + value
	}
	return value
}

func looksLikeDomain(value string) bool {
	host := value
	if slash := strings.Index(host, "/"); slash >= 0 {
		host = host[:slash]
	}
	dot := strings.LastIndex(host, ".")
	return dot > 0 && dot < len(host)-2 && !strings.ContainsAny(host, " @")
}

// IsURL значение является ссылкой или становится ею после URL
func IsURL(raw string) bool {
	lower := strings.ToLower(URL(raw))
	for _, scheme := range []string{"http://", "https://", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

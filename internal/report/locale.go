package report

import (
	"strconv"
	"strings"
	"time"

	"BulletinDispatch/internal/domain"
)

// Locale localizes month names and the few fixed labels of a report.
type Locale struct {
	Code       string
	months     [12]string
	importance map[domain.Importance]string
	Labels     Labels
}

// Labels are the fixed captions printed in the report.
type Labels struct {
	Title          string
	Client         string
	Importance     string
	Generated      string
	Summary        string
	Details        string
	BulletinNumber string
	BulletinDate   string
	OrderNumber    string
	Applicant      string
	Agent          string
	FileNumber     string
	Class          string
	GuardedMark    string
	PublishedMark  string
	ClassList      string
}

var locales = map[string]Locale{
	"es": {
		Code: "es",
		months: [12]string{
			"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
			"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
		},
		importance: map[domain.Importance]string{
			domain.ImportancePending: "Pendiente",
			domain.ImportanceLow:     "Baja",
			domain.ImportanceMedium:  "Media",
			domain.ImportanceHigh:    "Alta",
		},
		Labels: Labels{
			Title:          "Informe de Vigilancia de Marcas",
			Client:         "Cliente",
			Importance:     "Importancia",
			Generated:      "Generado",
			Summary:        "Resumen",
			Details:        "Detalle",
			BulletinNumber: "Boletín",
			BulletinDate:   "Fecha",
			OrderNumber:    "Orden",
			Applicant:      "Solicitante",
			Agent:          "Agente",
			FileNumber:     "Acta",
			Class:          "Clase",
			GuardedMark:    "Marca vigilada",
			PublishedMark:  "Marca publicada",
			ClassList:      "Clases",
		},
	},
	"en": {
		Code: "en",
		months: [12]string{
			"January", "February", "March", "April", "May", "June",
			"July", "August", "September", "October", "November", "December",
		},
		importance: map[domain.Importance]string{
			domain.ImportancePending: "Pending",
			domain.ImportanceLow:     "Low",
			domain.ImportanceMedium:  "Medium",
			domain.ImportanceHigh:    "High",
		},
		Labels: Labels{
			Title:          "Trademark Watch Report",
			Client:         "Client",
			Importance:     "Importance",
			Generated:      "Generated",
			Summary:        "Summary",
			Details:        "Details",
			BulletinNumber: "Bulletin",
			BulletinDate:   "Date",
			OrderNumber:    "Order",
			Applicant:      "Applicant",
			Agent:          "Agent",
			FileNumber:     "File",
			Class:          "Class",
			GuardedMark:    "Guarded mark",
			PublishedMark:  "Published mark",
			ClassList:      "Classes",
		},
	},
}

// LookupLocale returns the locale for code, falling back to Spanish.
func LookupLocale(code string) Locale {
	if l, ok := locales[strings.ToLower(strings.TrimSpace(code))]; ok {
		return l
	}
	return locales["es"]
}

// Month returns the localized month name.
func (l Locale) Month(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return l.months[m-1]
}

// MonthYear renders "<Month>-<Year>".
func (l Locale) MonthYear(t time.Time) string {
	return l.Month(t.Month()) + "-" + strconv.Itoa(t.Year())
}

// Importance returns the localized severity label.
func (l Locale) Importance(i domain.Importance) string {
	if v, ok := l.importance[i]; ok {
		return v
	}
	return string(i)
}

// Date renders a timestamp with a localized month name.
func (l Locale) Date(t time.Time) string {
	return strconv.Itoa(t.Day()) + " " + strings.ToLower(l.Month(t.Month())) + " " + strconv.Itoa(t.Year())
}

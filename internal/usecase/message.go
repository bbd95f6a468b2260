package usecase

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
	"BulletinDispatch/internal/report"
)

// Tier selects the wording of a client email.
type Tier string

const (
	TierUrgent  Tier = "urgent"
	TierRoutine Tier = "routine"
)

// TierFor maps a severity to its template tier.
func TierFor(imp domain.Importance) Tier {
	if imp == domain.ImportanceHigh {
		return TierUrgent
	}
	return TierRoutine
}

type mailTemplate struct {
	subject *texttemplate.Template
	body    *template.Template
}

var mailTemplates = map[string]map[Tier]mailTemplate{
	"es": {
		TierUrgent: {
			subject: texttemplate.Must(texttemplate.New("subject").Parse(`URGENTE: Informe de vigilancia de marcas - {{.Client}} - {{.Period}}`)),
			body: template.Must(template.New("body").Parse(`<html><body>
<p>Estimado/a {{.Client}}:</p>
<p><strong>Detectamos publicaciones de importancia {{.Importance}} que podrían afectar a sus marcas protegidas.</strong></p>
<p>Se adjunta el informe con {{.Count}} boletín(es): {{.Numbers}}.</p>
<p>Le recomendamos revisarlo a la brevedad: los plazos de oposición son breves.</p>
<p>Saludos cordiales.</p>
</body></html>`)),
		},
		TierRoutine: {
			subject: texttemplate.Must(texttemplate.New("subject").Parse(`Informe de vigilancia de marcas - {{.Client}} - Importancia {{.Importance}} - {{.Period}}`)),
			body: template.Must(template.New("body").Parse(`<html><body>
<p>Estimado/a {{.Client}}:</p>
<p>Le enviamos el informe periódico de vigilancia con publicaciones de importancia {{.Importance}}.</p>
<p>El informe adjunto incluye {{.Count}} boletín(es): {{.Numbers}}.</p>
<p>Saludos cordiales.</p>
</body></html>`)),
		},
	},
	"en": {
		TierUrgent: {
			subject: texttemplate.Must(texttemplate.New("subject").Parse(`URGENT: Trademark watch report - {{.Client}} - {{.Period}}`)),
			body: template.Must(template.New("body").Parse(`<html><body>
<p>Dear {{.Client}},</p>
<p><strong>We found {{.Importance}} importance publications that may conflict with your protected marks.</strong></p>
<p>The attached report covers {{.Count}} bulletin(s): {{.Numbers}}.</p>
<p>Please review it promptly: opposition deadlines are short.</p>
<p>Kind regards.</p>
</body></html>`)),
		},
		TierRoutine: {
			subject: texttemplate.Must(texttemplate.New("subject").Parse(`Trademark watch report - {{.Client}} - {{.Importance}} importance - {{.Period}}`)),
			body: template.Must(template.New("body").Parse(`<html><body>
<p>Dear {{.Client}},</p>
<p>Please find attached your periodic watch report with {{.Importance}} importance publications.</p>
<p>The attached report covers {{.Count}} bulletin(s): {{.Numbers}}.</p>
<p>Kind regards.</p>
</body></html>`)),
		},
	},
}

type messageData struct {
	Client     string
	Importance string
	Period     string
	Count      int
	Numbers    string
}

// Composer builds the outgoing email for one dispatch unit.
type Composer struct {
	locale report.Locale
}

// NewComposer returns a composer using locale's wording.
func NewComposer(locale report.Locale) *Composer {
	return &Composer{locale: locale}
}

// Compose renders subject and dual plain/HTML body and attaches the artifact.
func (c *Composer) Compose(to string, group domain.Group, artifact domain.Artifact, data []byte, at time.Time) (ports.Message, error) {
	set, ok := mailTemplates[c.locale.Code]
	if !ok {
		set = mailTemplates["es"]
	}
	tpl := set[TierFor(group.Key.Importance)]

	values := messageData{
		Client:     group.Key.ClientKey,
		Importance: c.locale.Importance(group.Key.Importance),
		Period:     c.locale.MonthYear(at),
		Count:      len(group.Members),
		Numbers:    strings.Join(group.Numbers(), ", "),
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, values); err != nil {
		return ports.Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&body, values); err != nil {
		return ports.Message{}, fmt.Errorf("render body: %w", err)
	}

	plain, err := plainText(body.String())
	if err != nil {
		return ports.Message{}, err
	}

	return ports.Message{
		To:        to,
		Subject:   subject.String(),
		PlainBody: plain,
		HTMLBody:  body.String(),
		Attachment: ports.Attachment{
			Name:        artifact.Name,
			ContentType: "application/pdf",
			Data:        data,
		},
	}, nil
}

// plainText derives the text/plain alternative from the HTML body, one
// paragraph per block.
func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html body: %w", err)
	}
	var parts []string
	doc.Find("p, li, h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n") + "\n", nil
}

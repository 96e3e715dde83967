package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/Roma7-7-7/price-notifier/internal/models"
)

const (
	unknownValue = "نامشخص"
	reportTitle  = "📊 گزارش قیمت"
	warningIcon  = "⚠️"

	timestampLayout     = "2006-01-02 15:04"
	maxDiagnosticRunes  = 80
	maxAnnotationRunes  = 300
	annotationSeparator = " | "
)

type quantityLabel struct {
	icon  string
	title string
}

var quantityLabels = map[models.Quantity]quantityLabel{
	models.QuantityUSD:    {icon: "💵", title: "دلار آزاد"},
	models.QuantityGold18: {icon: "🥇", title: "طلای ۱۸ عیار"},
	models.QuantityBTC:    {icon: "₿", title: "بیت‌کوین (دلاری)"},
}

type ReportLine struct {
	Quantity  models.Quantity
	Label     string
	Value     string
	Unit      string
	Available bool
}

func (l ReportLine) String() string {
	if !l.Available || l.Unit == "" {
		return fmt.Sprintf("%s: %s", l.Label, l.Value)
	}
	return fmt.Sprintf("%s: %s %s", l.Label, l.Value, l.Unit)
}

// Report is an immutable snapshot of one composition. Annotation is empty when every quote was available.
type Report struct {
	GeneratedAt time.Time
	Lines       []ReportLine
	Annotation  string
}

// ComposeReport never fails: missing values are replaced by a placeholder and the reasons of
// all failed sources are folded into a single annotation line.
func ComposeReport(quotes []models.Quote, at time.Time) Report {
	res := Report{
		GeneratedAt: at,
		Lines:       make([]ReportLine, 0, len(quotes)),
	}

	var (
		failedSources []string
		diagnostics   = make(map[string][]string)
	)
	for _, q := range quotes {
		line := ReportLine{
			Quantity:  q.Quantity,
			Label:     labelOf(q.Quantity),
			Unit:      q.Unit,
			Available: q.Available(),
		}
		if line.Available {
			line.Value = FormatValue(q.Value, q.Precision)
		} else {
			line.Value = unknownValue
			source := q.Source
			if source == "" {
				source = string(q.Quantity)
			}
			if _, seen := diagnostics[source]; !seen {
				failedSources = append(failedSources, source)
			}
			diagnostics[source] = appendUnique(diagnostics[source], diagnosticOf(q.Err))
		}
		res.Lines = append(res.Lines, line)
	}

	if len(failedSources) > 0 {
		parts := make([]string, 0, len(failedSources))
		for _, source := range failedSources {
			parts = append(parts, source+": "+strings.Join(diagnostics[source], ", "))
		}
		res.Annotation = truncate(strings.Join(parts, annotationSeparator), maxAnnotationRunes)
	}

	return res
}

func (r Report) HasErrors() bool {
	return r.Annotation != ""
}

func (r Report) Text() string {
	sb := &strings.Builder{}
	sb.WriteString(reportTitle)
	sb.WriteString("\n⏰ ")
	sb.WriteString(r.GeneratedAt.Format(timestampLayout))
	sb.WriteString(" (")
	sb.WriteString(r.GeneratedAt.Location().String())
	sb.WriteString(")\n")

	if len(r.Lines) > 0 {
		sb.WriteString("\n")
	}
	for _, l := range r.Lines {
		sb.WriteString(l.String())
		sb.WriteString("\n")
	}

	if r.Annotation != "" {
		sb.WriteString("\n")
		sb.WriteString(warningIcon)
		sb.WriteString(" ")
		sb.WriteString(r.Annotation)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// FormatValue groups thousands with commas. Precision 0 renders whole numbers as integers,
// anything else is rendered with exactly precision fraction digits.
func FormatValue(v decimal.Decimal, precision int32) string {
	if precision <= 0 && !v.IsInteger() {
		precision = 2
	}

	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Abs()
	}

	if precision <= 0 {
		return sign + groupDigits(v.String())
	}

	fixed := v.StringFixed(precision)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + groupDigits(intPart) + "." + frac
}

func groupDigits(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return humanize.Comma(n)
	}
	// beyond int64, group by hand
	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func labelOf(q models.Quantity) string {
	l, ok := quantityLabels[q]
	if !ok {
		return string(q)
	}
	return l.icon + " " + l.title
}

func diagnosticOf(err error) string {
	if err == nil {
		return "unavailable"
	}
	return truncate(err.Error(), maxDiagnosticRunes)
}

func appendUnique(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}
	return append(values, v)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

// Package format turns inventory holdings into the availability text shown
// next to each catalog record.
//
// The HoldingFormatter interface is the extension point for institutions
// that want different wording: implement it (or embed DefaultFormatter and
// override single methods) and inject the value into the loader.
package format

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sternrassler/catalog-availability/pkg/holding"
)

// Fixed display strings.
const (
	UnavailableText       = "Checked out or temporarily unavailable"
	DigitalFallbackText   = "Digital Resource (no other information available)"
	ElectronicLinkText    = "Electronic resource"
	ElectronicNoURLText   = "Electronic Resource (no URL available)"
	NoStatusText          = "No status available for this item"
	ErrorLoadingText      = "Error loading status for this item"
	DefaultSeparator      = "<br/>"
	attentionSpanTemplate = "<span style='color: red'>%s</span>"
)

// HoldingFormatter renders holdings for one catalog record.
type HoldingFormatter interface {
	// FormatHolding renders a single holding. An empty result means the
	// holding is skipped.
	FormatHolding(recordID string, h holding.Holding) string

	// FormatHoldings combines the per-holding strings of one record.
	FormatHoldings(formatted []string) string

	// OnTerminalError returns the content written to every placeholder once
	// all fetch attempts have failed.
	OnTerminalError() string
}

// NoStatusFormatter is optionally implemented by formatters that customise
// the text shown when a record has no usable holdings.
type NoStatusFormatter interface {
	NoStatus() string
}

// DefaultFormatter is the stock formatter.
type DefaultFormatter struct {
	// Separator joins the holdings of one record.
	Separator string
}

// NewDefaultFormatter returns a formatter that separates holdings with a
// line break.
func NewDefaultFormatter() DefaultFormatter {
	return DefaultFormatter{Separator: DefaultSeparator}
}

// FormatHolding renders h according to its inventory type.
// Holdings of an unknown inventory type render as "" and are skipped.
func (f DefaultFormatter) FormatHolding(recordID string, h holding.Holding) string {
	switch h.InventoryType {
	case holding.InventoryPhysical:
		return PhysicalAvailability(h)
	case holding.InventoryDigital:
		return DigitalAvailability(h)
	case holding.InventoryElectronic:
		return ElectronicAvailability(h)
	default:
		return ""
	}
}

// FormatHoldings joins the non-empty entries with the configured separator.
func (f DefaultFormatter) FormatHoldings(formatted []string) string {
	return joinNonEmpty(f.Separator, formatted...)
}

// OnTerminalError returns the highlighted load failure message.
func (f DefaultFormatter) OnTerminalError() string {
	return Attention(ErrorLoadingText)
}

// NoStatus returns the highlighted no-status message.
func (f DefaultFormatter) NoStatus() string {
	return Attention(NoStatusText)
}

// PhysicalAvailability renders a shelf holding, e.g.
// "Available at Main Library - Stacks QA76 .K47".
func PhysicalAvailability(h holding.Holding) string {
	libraryAndLocation := joinNonEmpty(" - ", h.Library, h.Location)

	switch h.Availability {
	case holding.AvailabilityAvailable:
		return joinNonEmpty(" ", capitalize(h.Availability), "at", libraryAndLocation, h.CallNumber)
	case holding.AvailabilityUnavailable:
		return UnavailableText
	default:
		return joinNonEmpty(" ", h.Availability, libraryAndLocation, h.CallNumber)
	}
}

// DigitalAvailability renders a repository holding.
func DigitalAvailability(h holding.Holding) string {
	joined := joinNonEmpty(" - ", h.Institution, h.RepositoryName, h.Label, h.Representation)
	if joined == "" {
		return DigitalFallbackText
	}
	return joined
}

// ElectronicAvailability renders a licensed resource as a link to its
// service page. The link target is embedded exactly as received.
func ElectronicAvailability(h holding.Holding) string {
	link := ElectronicNoURLText
	if h.LinkToServicePage != "" {
		text := h.Collection
		if text == "" {
			text = ElectronicLinkText
		}
		link = `<a href="` + h.LinkToServicePage + `">` + text + `</a>`
	}
	return joinNonEmpty(" - ", link, h.CoverageStatement)
}

// Attention wraps text in the highlighted span used for status messages.
func Attention(text string) string {
	return fmt.Sprintf(attentionSpanTemplate, text)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

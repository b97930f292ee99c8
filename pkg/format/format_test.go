package format

import (
	"testing"

	"github.com/Sternrassler/catalog-availability/pkg/holding"
)

func TestFormatHolding_Physical(t *testing.T) {
	f := NewDefaultFormatter()

	tests := []struct {
		name    string
		holding holding.Holding
		want    string
	}{
		{
			name: "available with all fields",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Library:       "Van Pelt",
				Location:      "Stacks",
				Availability:  "available",
				CallNumber:    "QA76 .K47",
			},
			want: "Available at Van Pelt - Stacks QA76 .K47",
		},
		{
			name: "available without call number",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Library:       "Van Pelt",
				Location:      "Stacks",
				Availability:  "available",
			},
			want: "Available at Van Pelt - Stacks",
		},
		{
			name: "available without location",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Library:       "Van Pelt",
				Availability:  "available",
				CallNumber:    "PS3545",
			},
			want: "Available at Van Pelt PS3545",
		},
		{
			name: "available with nothing else",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Availability:  "available",
			},
			want: "Available at",
		},
		{
			name: "unavailable ignores other fields",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Library:       "Van Pelt",
				Location:      "Stacks",
				Availability:  "unavailable",
				CallNumber:    "QA76 .K47",
			},
			want: UnavailableText,
		},
		{
			name: "other status falls back",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Library:       "Fisher",
				Location:      "Reserve",
				Availability:  "in transit",
				CallNumber:    "NA2500",
			},
			want: "in transit Fisher - Reserve NA2500",
		},
		{
			name: "other status with empty parts",
			holding: holding.Holding{
				InventoryType: holding.InventoryPhysical,
				Location:      "Reserve",
				Availability:  "limited",
			},
			want: "limited Reserve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatHolding("101", tt.holding); got != tt.want {
				t.Errorf("FormatHolding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatHolding_Digital(t *testing.T) {
	f := NewDefaultFormatter()

	tests := []struct {
		name    string
		holding holding.Holding
		want    string
	}{
		{
			name: "all fields",
			holding: holding.Holding{
				InventoryType:  holding.InventoryDigital,
				Institution:    "Penn",
				RepositoryName: "Colenda",
				Label:          "Scan",
				Representation: "TIFF",
			},
			want: "Penn - Colenda - Scan - TIFF",
		},
		{
			name: "skips empty entries",
			holding: holding.Holding{
				InventoryType:  holding.InventoryDigital,
				RepositoryName: "Colenda",
				Representation: "TIFF",
			},
			want: "Colenda - TIFF",
		},
		{
			name:    "fallback when empty",
			holding: holding.Holding{InventoryType: holding.InventoryDigital},
			want:    DigitalFallbackText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatHolding("101", tt.holding); got != tt.want {
				t.Errorf("FormatHolding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatHolding_Electronic(t *testing.T) {
	f := NewDefaultFormatter()

	tests := []struct {
		name    string
		holding holding.Holding
		want    string
	}{
		{
			name: "link with collection and coverage",
			holding: holding.Holding{
				InventoryType:     holding.InventoryElectronic,
				LinkToServicePage: "https://na01.alma.exlibrisgroup.com/view/uresolver/01UPENN_INST/openurl?u.ignore_date_coverage=true&rft.mms_id=9977",
				Collection:        "JSTOR Arts & Sciences",
				CoverageStatement: "Available from 1990",
			},
			want: `<a href="https://na01.alma.exlibrisgroup.com/view/uresolver/01UPENN_INST/openurl?u.ignore_date_coverage=true&rft.mms_id=9977">JSTOR Arts & Sciences</a> - Available from 1990`,
		},
		{
			name: "link without collection",
			holding: holding.Holding{
				InventoryType:     holding.InventoryElectronic,
				LinkToServicePage: "https://example.org/a b",
			},
			want: `<a href="https://example.org/a b">Electronic resource</a>`,
		},
		{
			name: "no link",
			holding: holding.Holding{
				InventoryType: holding.InventoryElectronic,
				Collection:    "JSTOR",
			},
			want: ElectronicNoURLText,
		},
		{
			name: "no link with coverage",
			holding: holding.Holding{
				InventoryType:     holding.InventoryElectronic,
				CoverageStatement: "1990-2000",
			},
			want: ElectronicNoURLText + " - 1990-2000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.FormatHolding("101", tt.holding); got != tt.want {
				t.Errorf("FormatHolding() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatHolding_UnknownTypeIsSkipped(t *testing.T) {
	f := NewDefaultFormatter()

	got := f.FormatHolding("101", holding.Holding{InventoryType: "microfiche", Availability: "available"})
	if got != "" {
		t.Errorf("FormatHolding() = %q, want empty", got)
	}
}

func TestFormatHoldings(t *testing.T) {
	tests := []struct {
		name      string
		separator string
		in        []string
		want      string
	}{
		{name: "default separator", separator: DefaultSeparator, in: []string{"a", "b"}, want: "a<br/>b"},
		{name: "single", separator: DefaultSeparator, in: []string{"a"}, want: "a"},
		{name: "empty input", separator: DefaultSeparator, in: nil, want: ""},
		{name: "drops empty entries", separator: DefaultSeparator, in: []string{"", "a", ""}, want: "a"},
		{name: "custom separator", separator: "; ", in: []string{"a", "b", "c"}, want: "a; b; c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFormatter{Separator: tt.separator}
			if got := f.FormatHoldings(tt.in); got != tt.want {
				t.Errorf("FormatHoldings() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatusMessages(t *testing.T) {
	f := NewDefaultFormatter()

	if got, want := f.OnTerminalError(), "<span style='color: red'>Error loading status for this item</span>"; got != want {
		t.Errorf("OnTerminalError() = %q, want %q", got, want)
	}
	if got, want := f.NoStatus(), "<span style='color: red'>No status available for this item</span>"; got != want {
		t.Errorf("NoStatus() = %q, want %q", got, want)
	}
}

func TestCapitalize(t *testing.T) {
	tests := map[string]string{
		"available": "Available",
		"":          "",
		"élan":      "Élan",
		"A":         "A",
	}
	for in, want := range tests {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

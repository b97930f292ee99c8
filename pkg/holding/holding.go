// Package holding defines the inventory records returned by the availability
// status endpoint and decodes its JSON and XML wire formats.
package holding

// InventoryType identifies how a catalog item can be obtained.
type InventoryType string

const (
	// InventoryPhysical is an item on a shelf in a library location.
	InventoryPhysical InventoryType = "physical"

	// InventoryDigital is an item held in a digital repository.
	InventoryDigital InventoryType = "digital"

	// InventoryElectronic is a licensed electronic resource.
	InventoryElectronic InventoryType = "electronic"
)

// Known availability values for physical holdings. Any other value is a
// free-text status reported by the inventory service (e.g. "in transit").
const (
	AvailabilityAvailable   = "available"
	AvailabilityUnavailable = "unavailable"
)

// Holding is one inventory entry for a catalog record.
// Which fields are populated depends on InventoryType.
type Holding struct {
	InventoryType InventoryType `json:"inventory_type" xml:"inventory-type"`

	// Physical
	Library      string `json:"library,omitempty" xml:"library,omitempty"`
	Location     string `json:"location,omitempty" xml:"location,omitempty"`
	Availability string `json:"availability,omitempty" xml:"availability,omitempty"`
	CallNumber   string `json:"call_number,omitempty" xml:"call-number,omitempty"`

	// Digital
	Institution    string `json:"institution,omitempty" xml:"institution,omitempty"`
	RepositoryName string `json:"repository_name,omitempty" xml:"repository-name,omitempty"`
	Label          string `json:"label,omitempty" xml:"label,omitempty"`
	Representation string `json:"representation,omitempty" xml:"representation,omitempty"`

	// Electronic
	LinkToServicePage string `json:"link_to_service_page,omitempty" xml:"link-to-service-page,omitempty"`
	Collection        string `json:"collection,omitempty" xml:"collection,omitempty"`
	CoverageStatement string `json:"coverage_statement,omitempty" xml:"coverage-statement,omitempty"`
}

// IsKnownType reports whether the holding has one of the three inventory
// types the formatter understands.
func (h Holding) IsKnownType() bool {
	switch h.InventoryType {
	case InventoryPhysical, InventoryDigital, InventoryElectronic:
		return true
	default:
		return false
	}
}

// RecordAvailability holds the inventory entries for one record id.
type RecordAvailability struct {
	Holdings []Holding `json:"holdings"`
}

// Response is one decoded reply from the status endpoint.
// Exactly one of Availability or Error is meaningful.
type Response struct {
	Availability map[string]RecordAvailability `json:"availability,omitempty"`
	Error        string                        `json:"error,omitempty"`
}

// Failed reports whether the endpoint signalled a total request failure.
func (r *Response) Failed() bool {
	return r != nil && r.Error != ""
}

// HoldingsFor returns the holdings reported for id.
// Returns nil when the id is absent, which means "no known holdings".
func (r *Response) HoldingsFor(id string) []Holding {
	if r == nil || r.Availability == nil {
		return nil
	}
	rec, ok := r.Availability[id]
	if !ok {
		return nil
	}
	return rec.Holdings
}

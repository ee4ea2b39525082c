package domain

// FieldKind declares how a detail-field value is cleaned and stored.
type FieldKind string

const (
	KindNumber   FieldKind = "number"
	KindText     FieldKind = "text"
	KindTaxonomy FieldKind = "taxonomy"
)

// FieldValue is a cleaned detail value together with its declared kind.
type FieldValue struct {
	Value string    `json:"value"`
	Kind  FieldKind `json:"kind"`
}

// MappedField names the target field a source-page label maps to.
type MappedField struct {
	FieldID string
	Kind    FieldKind
}

// FieldMap maps a source-page label (the <dt> text) to a target field.
// It is static configuration data, not behavior.
type FieldMap map[string]MappedField

// DefaultFieldMap covers the labels published on the dealer's detail pages.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		"Märke":     {FieldID: "brand", Kind: KindTaxonomy},
		"Modell":    {FieldID: "model", Kind: KindTaxonomy},
		"Årsmodell": {FieldID: "model_year", Kind: KindNumber},
		"Miltal":    {FieldID: "mileage", Kind: KindNumber},
		"Drivmedel": {FieldID: "fuel", Kind: KindTaxonomy},
		"Växellåda": {FieldID: "gearbox", Kind: KindTaxonomy},
		"Drivhjul":  {FieldID: "drive_wheels", Kind: KindTaxonomy},
		"Regnr":     {FieldID: "registration", Kind: KindText},
	}
}

// Vehicle is one parsed detail page. UID is the relative URL path of the page
// and doubles as the natural key in the store.
type Vehicle struct {
	UID        string
	Title      string
	Price      string
	Details    map[string]FieldValue
	CarfaxURL  string
	Additional []KeyValue
	Images     []string
	Features   []string
}

// KeyValue preserves the document order of the additional-attributes block.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Item statuses reported per batch entry.
const (
	StatusSuccess         = "success"
	StatusSkippedExisting = "skipped_existing"
	StatusError           = "error"
)

// ItemResult is the outcome for a single link in a batch.
type ItemResult struct {
	UID       string `json:"uid"`
	Status    string `json:"status"`
	StorageID int64  `json:"id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// BatchRequest is one invocation of the batch runner.
type BatchRequest struct {
	Offset       int    `json:"offset"`
	Limit        int    `json:"limit"`
	SkipExisting bool   `json:"skip_existing"`
	SessionToken string `json:"session_id,omitempty"`
}

// BatchResult is the outcome of one batch call. AllIDs is populated only on
// the final batch and lists every storage id still considered valid.
type BatchResult struct {
	Results      []ItemResult `json:"results"`
	HasMore      bool         `json:"has_more"`
	NextOffset   int          `json:"next_offset"`
	Total        int          `json:"total"`
	SessionToken string       `json:"session_id"`
	AllIDs       []int64      `json:"all_ids,omitempty"`
}

package planning

// Classification is the outcome of comparing one desired entry.
type Classification string

const (
	Create    Classification = "Create"
	Update    Classification = "Update"
	Unchanged Classification = "Unchanged"
)

// Reasons attached to diff items.
const (
	ReasonMissing            = "Missing in existing state"
	ReasonMatches            = "Matches existing state"
	ReasonContentTypeDiffers = "Content type differs"
	ReasonValueDiffers       = "Value differs"
	ReasonBothDiffer         = "Value and content type differ"
)

// DiffItem is the classification of one desired entry.
type DiffItem struct {
	Key                 string         `json:"key"`
	Label               string         `json:"label"`
	Classification      Classification `json:"classification"`
	Reason              string         `json:"reason"`
	DesiredValue        string         `json:"desiredValue"`
	ExistingValue       *string        `json:"existingValue,omitempty"`
	DesiredContentType  string         `json:"desiredContentType,omitempty"`
	ExistingContentType string         `json:"existingContentType,omitempty"`
}

// Classify compares a desired entry with its existing counterpart, which may
// be nil.
func Classify(desired DesiredEntry, existing *ExistingEntry) DiffItem {
	item := DiffItem{
		Key:                desired.Key,
		Label:              desired.Label,
		DesiredValue:       desired.Value,
		DesiredContentType: desired.ContentType,
	}

	if existing == nil {
		item.Classification = Create
		item.Reason = ReasonMissing
		return item
	}

	existingValue := existing.Value
	item.ExistingValue = &existingValue
	item.ExistingContentType = existing.ContentType

	valueMatches := desired.Value == existing.Value
	contentMatches := desired.ContentType == existing.ContentType

	switch {
	case valueMatches && contentMatches:
		item.Classification = Unchanged
		item.Reason = ReasonMatches
	case valueMatches:
		item.Classification = Update
		item.Reason = ReasonContentTypeDiffers
	case contentMatches:
		item.Classification = Update
		item.Reason = ReasonValueDiffers
	default:
		item.Classification = Update
		item.Reason = ReasonBothDiffer
	}
	return item
}

package models

import "strings"

// SourceTile is one candidate cover/metadata source offered by a provider for a work.
type SourceTile struct {
	Provider  string `json:"provider"`
	SourceID  string `json:"source_id"`
	EditionID string `json:"edition_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Year      int    `json:"year,omitempty"`
	Language  string `json:"language,omitempty"`
	CoverURL  string `json:"cover_url,omitempty"`
}

// PrefetchKey is the key a source tile has in a prefetch_compare bundle.
func (s SourceTile) PrefetchKey() string {
	return s.Provider + ":" + s.SourceID
}

// SourceQuery narrows a source listing.
type SourceQuery struct {
	Languages []string
	Title     string
}

// CompareField is one attribute with its current value and a provider's candidate value.
type CompareField struct {
	FieldKey           string `json:"field_key"`
	Label              string `json:"label,omitempty"`
	CurrentValue       any    `json:"current_value"`
	CandidateValue     any    `json:"candidate_value"`
	CandidateAvailable bool   `json:"candidate_available"`
	Provider           string `json:"provider"`
}

// CompareResponse is the payload of the compare endpoint and of each prefetch bundle entry.
type CompareResponse struct {
	Fields []CompareField `json:"fields"`
}

// SourcesResponse is the payload of the source listing endpoint.
type SourcesResponse struct {
	Items           []SourceTile               `json:"items"`
	PrefetchCompare map[string]CompareResponse `json:"prefetch_compare,omitempty"`
}

// FieldSelection is one field value the user approves for a task.
type FieldSelection struct {
	FieldKey   string `json:"field_key"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	Value      any    `json:"value"`
}

// SelectionChoice is the per-field choice of a review session.
type SelectionChoice string

const (
	ChoiceCurrent  SelectionChoice = "current"
	ChoiceSelected SelectionChoice = "selected"
)

// DefaultChoice picks selected when the candidate is available, else current.
func DefaultChoice(f CompareField) SelectionChoice {
	if f.CandidateAvailable {
		return ChoiceSelected
	}
	return ChoiceCurrent
}

// CompareKey identifies one comparison: (work, provider, source, edition).
type CompareKey struct {
	WorkID    string
	Provider  string
	SourceID  string
	EditionID string
}

// NewCompareKey builds the key for a source tile of a work.
func NewCompareKey(workID string, tile SourceTile) CompareKey {
	return CompareKey{
		WorkID:    workID,
		Provider:  tile.Provider,
		SourceID:  tile.SourceID,
		EditionID: tile.EditionID,
	}
}

// String renders the key as work_id|provider|source_id|edition_id (edition may be empty).
func (k CompareKey) String() string {
	return strings.Join([]string{k.WorkID, k.Provider, k.SourceID, k.EditionID}, "|")
}

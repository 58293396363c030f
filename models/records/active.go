package recordmodels

import (
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
)

// ActiveCandidate строка Active, производная от Candidate
type ActiveCandidate struct {
	Row    int
	Values Fields
}

func ActiveFromFields(row int, f Fields) ActiveCandidate {
	return ActiveCandidate{Row: row, Values: f}
}

func (a ActiveCandidate) Kind() models.TableKind {
	return models.TableActive
}

func (a ActiveCandidate) RowNumber() int {
	return a.Row
}

func (a ActiveCandidate) Fields() Fields {
	return a.Values
}

func (a ActiveCandidate) JobID() string {
	return a.Values.Get(models.ColJobID)
}

func (a ActiveCandidate) Email() string {
	return a.Values.Get(models.ColEmail)
}

func (a ActiveCandidate) Key() string {
	return normalize.CompositeKey(a.JobID(), a.Email())
}

// OwnedValues правки кандидата, которые переносятся в All
func (a ActiveCandidate) OwnedValues() Fields {
	return a.Values.Only(CandidateOwnedColumns...)
}

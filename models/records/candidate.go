package recordmodels

import (
	"ats-sync-backend/lib/utils/normalize"
	"ats-sync-backend/models"
)

// Candidate строка таблицы All, основная запись о кандидате
type Candidate struct {
	Row            int
	FullName       string
	Email          string
	Phone          string
	Resume         string
	LinkedIn       string
	JobID          string
	JobTitle       string
	JobStatus      string
	Stage          string
	RejectedReason string
	Source         string
	Created        string
	Updated        string
	HiredDate      string
}

// ActiveMirrorColumns колонки All, копируемые в Active при сверке (без ссылок)
var ActiveMirrorColumns = []models.Column{
	models.ColFullName,
	models.ColEmail,
	models.ColPhone,
	models.ColJobID,
	models.ColJobTitle,
	models.ColJobStatus,
	models.ColStage,
	models.ColRejectedReason,
	models.ColSource,
	models.ColUpdated,
}

// CandidateOwnedColumns колонки, правки которых в Active переносятся обратно в All
var CandidateOwnedColumns = []models.Column{
	models.ColFullName,
	models.ColPhone,
	models.ColResume,
	models.ColLinkedIn,
	models.ColStage,
	models.ColRejectedReason,
	models.ColSource,
}

func CandidateFromFields(row int, f Fields) Candidate {
	return Candidate{
		Row:            row,
		FullName:       f.Get(models.ColFullName),
		Email:          f.Get(models.ColEmail),
		Phone:          f.Get(models.ColPhone),
		Resume:         f.Get(models.ColResume),
		LinkedIn:       f.Get(models.ColLinkedIn),
		JobID:          f.Get(models.ColJobID),
		JobTitle:       f.Get(models.ColJobTitle),
		JobStatus:      f.Get(models.ColJobStatus),
		Stage:          f.Get(models.ColStage),
		RejectedReason: f.Get(models.ColRejectedReason),
		Source:         f.Get(models.ColSource),
		Created:        f.Get(models.ColCreated),
		Updated:        f.Get(models.ColUpdated),
		HiredDate:      f.Get(models.ColHiredDate),
	}
}

func (c Candidate) Kind() models.TableKind {
	return models.TableCandidates
}

func (c Candidate) RowNumber() int {
	return c.Row
}

func (c Candidate) Fields() Fields {
	return Fields{
		models.ColFullName:       c.FullName,
		models.ColEmail:          c.Email,
		models.ColPhone:          c.Phone,
		models.ColResume:         c.Resume,
		models.ColLinkedIn:       c.LinkedIn,
		models.ColJobID:          c.JobID,
		models.ColJobTitle:       c.JobTitle,
		models.ColJobStatus:      c.JobStatus,
		models.ColStage:          c.Stage,
		models.ColRejectedReason: c.RejectedReason,
		models.ColSource:         c.Source,
		models.ColCreated:        c.Created,
		models.ColUpdated:        c.Updated,
		models.ColHiredDate:      c.HiredDate,
	}
}

// HasIdentity строка без Job ID или Email в сверке не участвует
func (c Candidate) HasIdentity() bool {
	return c.JobID != "" && c.Email != ""
}

func (c Candidate) Key() string {
	return normalize.CompositeKey(c.JobID, c.Email)
}

func (c Candidate) IsHired() bool {
	return models.CandidateStage(normalize.TitleCase(c.Stage)) == models.StageHired
}

func (c Candidate) IsClosedOut() bool {
	stage := models.CandidateStage(normalize.TitleCase(c.Stage))
	return stage == models.StageHired || stage == models.StageRejected
}

// ActiveMirror значения для строки Active
func (c Candidate) ActiveMirror() Fields {
	return c.Fields().Only(ActiveMirrorColumns...)
}

func (c Candidate) LinkFields() Fields {
	return c.Fields().Only(models.LinkColumns...)
}

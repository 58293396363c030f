package models

// RequisitionStatus статус заявки на вакансию
type RequisitionStatus string

const (
	StatusOpen            RequisitionStatus = "Open"
	StatusOnHold          RequisitionStatus = "On Hold"
	StatusClosed          RequisitionStatus = "Closed"
	StatusPendingApproval RequisitionStatus = "Pending Approval"
	StatusHired           RequisitionStatus = "Hired"
)

var RequisitionStatuses = []RequisitionStatus{
	StatusOpen,
	StatusOnHold,
	StatusClosed,
	StatusPendingApproval,
	StatusHired,
}

// IsActive кандидаты по заявке попадают в Active только для Open и On Hold
func (s RequisitionStatus) IsActive() bool {
	return s == StatusOpen || s == StatusOnHold
}

// IsTerminal Closed и Hired
func (s RequisitionStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusHired
}

// CandidateStage этап кандидата
type CandidateStage string

const (
	StageNewApplicant CandidateStage = "New Applicant"
	StageInterview    CandidateStage = "Interview"
	StageHired        CandidateStage = "Hired"
	StageRejected     CandidateStage = "Rejected"
)

const RejectReasonHiredOther = "Hired a Different Candidate"

const SourceForm = "Form"

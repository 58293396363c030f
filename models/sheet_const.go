package models

// Column имя колонки в строке заголовка таблицы
type Column string

const (
	// Requisitions
	ColJobID          Column = "Job ID"
	ColJobTitle       Column = "Job Title"
	ColStatus         Column = "Status"
	ColOpenedDate     Column = "Opened Date"
	ColOnHoldDate     Column = "On Hold Date"
	ColClosedDate     Column = "Closed Date"
	ColHiredDate      Column = "Hired Date"
	ColHiredCandidate Column = "Hired Candidate"
	ColDaysOpen       Column = "Days Open"

	// All / Active
	ColFullName       Column = "Full Name"
	ColEmail          Column = "Email"
	ColPhone          Column = "Phone"
	ColResume         Column = "Resume"
	ColLinkedIn       Column = "LinkedIn"
	ColJobStatus      Column = "Job Status"
	ColStage          Column = "Stage"
	ColRejectedReason Column = "Rejected Reason"
	ColSource         Column = "Source"
	ColCreated        Column = "Created"
	ColUpdated        Column = "Updated"
)

// TableKind логический тип таблицы
type TableKind string

const (
	TableRequisitions TableKind = "requisitions"
	TableCandidates   TableKind = "candidates"
	TableActive       TableKind = "active"
)

// AnchorColumn колонка, по которой ищется строка заголовка
func (k TableKind) AnchorColumn() Column {
	switch k {
	case TableRequisitions:
		return ColJobID
	default:
		return ColEmail
	}
}

// RequiredColumns колонки, без которых таблица считается не готовой
func (k TableKind) RequiredColumns() []Column {
	switch k {
	case TableRequisitions:
		return []Column{ColJobID, ColJobTitle, ColStatus, ColOpenedDate, ColOnHoldDate, ColClosedDate, ColHiredDate, ColHiredCandidate}
	case TableCandidates:
		return []Column{ColFullName, ColEmail, ColJobID, ColJobTitle, ColJobStatus, ColStage, ColUpdated}
	case TableActive:
		return []Column{ColFullName, ColEmail, ColJobID, ColJobTitle, ColJobStatus, ColStage}
	}
	return nil
}

// LinkColumns колонки с гиперссылками, которые обслуживает очистка ссылок
var LinkColumns = []Column{ColResume, ColLinkedIn}

func IsLinkColumn(col Column) bool {
	for _, c := range LinkColumns {
		if c == col {
			return true
		}
	}
	return false
}

const DateLayout = "2006-01-02"

const DateTimeLayout = "2006-01-02 15:04:05"

// KnownColumns все колонки, с которыми работает синхронизация
var KnownColumns = []Column{
	ColJobID, ColJobTitle, ColStatus, ColOpenedDate, ColOnHoldDate, ColClosedDate,
	ColHiredDate, ColHiredCandidate, ColDaysOpen, ColFullName, ColEmail, ColPhone,
	ColResume, ColLinkedIn, ColJobStatus, ColStage, ColRejectedReason, ColSource,
	ColCreated, ColUpdated,
}

// DefaultHeaders порядок колонок при создании нового листа
func (k TableKind) DefaultHeaders() []Column {
	switch k {
	case TableRequisitions:
		return []Column{ColJobID, ColJobTitle, ColStatus, ColOpenedDate, ColOnHoldDate,
			ColClosedDate, ColHiredDate, ColHiredCandidate, ColDaysOpen}
	case TableCandidates:
		return []Column{ColFullName, ColEmail, ColPhone, ColResume, ColLinkedIn, ColJobID,
			ColJobTitle, ColJobStatus, ColStage, ColRejectedReason, ColSource, ColCreated,
			ColUpdated, ColHiredDate}
	case TableActive:
		return []Column{ColFullName, ColEmail, ColPhone, ColResume, ColLinkedIn, ColJobID,
			ColJobTitle, ColJobStatus, ColStage, ColRejectedReason, ColSource, ColUpdated}
	}
	return nil
}

package care

// AuthResult is the outcome of a patient or staff login attempt.
type AuthResult struct {
	Authenticated bool   `json:"authenticated"`
	Name          string `json:"name"`
	Role          string `json:"role,omitempty"`
	Token         string `json:"token"`
	SubjectID     string `json:"subjectId"`
}

// Record is one medical record entry.
type Record struct {
	Date      string `json:"date"`
	Diagnosis string `json:"diagnosis"`
	Doctor    string `json:"doctor"`
	Notes     string `json:"notes,omitempty"`
}

// Medication is one active prescription.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Procedure is one past procedure.
type Procedure struct {
	Name   string `json:"name"`
	Date   string `json:"date"`
	Doctor string `json:"doctor"`
	Result string `json:"result"`
	Notes  string `json:"notes,omitempty"`
}

// Appointment is one upcoming appointment.
type Appointment struct {
	Date       string `json:"date"`
	Time       string `json:"time"`
	Doctor     string `json:"doctor"`
	Department string `json:"department"`
	Reason     string `json:"reason"`
}

// PatientSummary is a staff-facing search hit.
type PatientSummary struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Age             string `json:"age"`
	Gender          string `json:"gender"`
	LastVisit       string `json:"last_visit"`
	RecentDiagnosis string `json:"recent_diagnosis,omitempty"`
}

// RecentPatient is one row of the staff recent-patients listing.
type RecentPatient struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	VisitDate string `json:"visit_date"`
	Reason    string `json:"reason"`
}

// NotifyResult is the outcome of a patient notification.
type NotifyResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

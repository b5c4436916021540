package bot

import (
	"fmt"
	"strings"

	"github.com/carelink/whatsapp-bot/internal/service/care"
)

const welcomeReply = `🏥 Welcome to CARE WhatsApp Bot!

I can help you access your medical information and hospital services.

Please choose your role:
• Type 'patient' - For patients to view records
• Type 'staff' - For hospital staff
• Type 'help' - For more information

What are you?`

const patientAuthPrompt = `👤 Patient Access

To access your medical records, I need to verify your identity.

Please provide your Patient ID or the phone number registered with the hospital.

Format: Patient ID (e.g., P123456) or Phone (e.g., +919876543210)`

const staffAuthPrompt = `👨‍⚕️ Hospital Staff Access

Please provide your staff credentials to continue.

Format: StaffID:Password (e.g., STAFF123:password123)

Your credentials will be verified with the CARE system.`

const generalHelpReply = `ℹ️ CARE WhatsApp Bot Help

🏥 What is CARE?
CARE is a centralized patient management system that helps hospitals manage patient records, appointments, and medical information.

👤 For Patients:
• View your medical records
• Check current medications
• See procedure history
• View upcoming appointments

👨‍⚕️ For Hospital Staff:
• Access patient information
• Send notifications to patients
• Quick patient lookups

🔒 Privacy & Security:
Your data is protected and only authorized information is shared based on your role.

Type 'patient' or 'staff' to get started!`

const roleReprompt = "Please type 'patient' for patient access, 'staff' for hospital staff access, or 'help' for more information."

const invalidPatientIDReply = "Invalid Patient ID or phone number. Please provide a valid Patient ID (e.g., P123456) or registered phone number."

const patientAuthFailedReply = "❌ Authentication failed. Please check your Patient ID or phone number and try again."

const invalidStaffCredentialsReply = "Invalid staff credentials. Please use format: StaffID:Password (e.g., STAFF123:password123)"

const invalidStaffPasswordReply = "Invalid credentials. Please check your StaffID and Password."

const staffAuthFailedReply = "❌ Authentication failed. Please check your Staff ID and Password and try again."

const tryAgainLaterReply = "Sorry, we couldn't process your request at this time. Please try again later."

const authRetryLaterReply = "Sorry, we couldn't authenticate you at this time. Please try again later."

const sessionExpiredReply = "Your session has expired. Please type 'logout' and authenticate again."

const sessionNotRecognizedReply = "Your session is not recognized. Type 'logout' to restart."

const unrecognizedCommandReply = "Command not recognized. Type 'help' to see available options."

const unrecognizedSelectionReply = "Unrecognized selection. Please try again or type 'help' for assistance."

const logoutReply = "🔒 You have been logged out. Type 'patient' or 'staff' to login again."

const unsupportedEventReply = "I can only process text and interactive messages at the moment."

const patientHelpReply = `📋 Patient Commands:
• 'records' - View your medical records
• 'medicines' - Check medications
• 'procedures' - View procedures
• 'appointments' - View appointments
• 'logout' - End session`

const staffHelpReply = `👨‍⚕️ Staff Commands:
• 'search [patient_id]' - Find patient
• 'notify [patient_id] [message]' - Send notification
• 'patients' - List patients
• 'logout' - End session`

const notifyUsageReply = "Invalid notify format. Use: notify [patient_id] [message]"

func patientWelcomeReply(name string) string {
	if name == "" {
		name = "Patient"
	}
	return fmt.Sprintf(`✅ Authentication Successful!

Welcome %s to your CARE patient portal. Here's what you can do:

📋 Available Commands:
• 'records' - View your medical records
• 'medicines' - Check current medications
• 'procedures' - View procedure history
• 'appointments' - See upcoming appointments
• 'help' - Show this menu again
• 'logout' - End session

What would you like to do?`, name)
}

func staffWelcomeReply(name, role string) string {
	if name == "" {
		name = "Staff Member"
	}
	if role == "" {
		role = "Staff"
	}
	return fmt.Sprintf(`✅ Staff Authentication Successful!

Welcome %s (%s) to CARE Staff Portal. Available commands:

🏥 Staff Commands:
• 'search [patient_id]' - Find patient information
• 'notify [patient_id] [message]' - Send notification
• 'patients' - List recent patients
• 'help' - Show this menu
• 'logout' - End session

Example: search P123456

What would you like to do?`, name, role)
}

func formatRecords(records []care.Record) string {
	if len(records) == 0 {
		return "📄 No medical records found."
	}
	var b strings.Builder
	b.WriteString("📄 Medical Records:\n\n")
	for _, r := range records {
		fmt.Fprintf(&b, "Date: %s\n", r.Date)
		fmt.Fprintf(&b, "Diagnosis: %s\n", r.Diagnosis)
		fmt.Fprintf(&b, "Doctor: %s\n", r.Doctor)
		if r.Notes != "" {
			fmt.Fprintf(&b, "Notes: %s\n", r.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatMedications(meds []care.Medication) string {
	if len(meds) == 0 {
		return "💊 No current medications found."
	}
	var b strings.Builder
	b.WriteString("💊 Current Medications:\n\n")
	for _, m := range meds {
		fmt.Fprintf(&b, "%s - %s\n", m.Name, m.Dosage)
		fmt.Fprintf(&b, "Take: %s\n", m.Frequency)
		fmt.Fprintf(&b, "Duration: %s to %s\n\n", m.StartDate, m.EndDate)
	}
	return b.String()
}

func formatProcedures(procs []care.Procedure) string {
	if len(procs) == 0 {
		return "🛠 No procedures found."
	}
	var b strings.Builder
	b.WriteString("🛠 Procedures:\n\n")
	for _, p := range procs {
		fmt.Fprintf(&b, "%s - %s\n", p.Name, p.Date)
		fmt.Fprintf(&b, "Doctor: %s\n", p.Doctor)
		fmt.Fprintf(&b, "Result: %s\n", p.Result)
		if p.Notes != "" {
			fmt.Fprintf(&b, "Notes: %s\n", p.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatAppointments(appts []care.Appointment) string {
	if len(appts) == 0 {
		return "📅 No upcoming appointments found."
	}
	var b strings.Builder
	b.WriteString("📅 Upcoming Appointments:\n\n")
	for _, a := range appts {
		fmt.Fprintf(&b, "%s at %s\n", a.Date, a.Time)
		fmt.Fprintf(&b, "Doctor: %s\n", a.Doctor)
		fmt.Fprintf(&b, "Department: %s\n", a.Department)
		fmt.Fprintf(&b, "Reason: %s\n\n", a.Reason)
	}
	return b.String()
}

func formatSearchResults(query string, hits []care.PatientSummary) string {
	if len(hits) == 0 {
		return fmt.Sprintf("No patient found with ID: %s", query)
	}
	var b strings.Builder
	for _, hit := range hits {
		fmt.Fprintf(&b, "🔍 Patient %s found:\n", hit.ID)
		fmt.Fprintf(&b, "Name: %s\n", orUnknown(hit.Name))
		fmt.Fprintf(&b, "Age: %s\n", orUnknown(hit.Age))
		fmt.Fprintf(&b, "Gender: %s\n", orUnknown(hit.Gender))
		fmt.Fprintf(&b, "Last Visit: %s\n", orUnknown(hit.LastVisit))
		if hit.RecentDiagnosis != "" {
			fmt.Fprintf(&b, "Recent Diagnosis: %s\n", hit.RecentDiagnosis)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRecentPatients(patients []care.RecentPatient) string {
	if len(patients) == 0 {
		return "No recent patients found."
	}
	var b strings.Builder
	b.WriteString("🧑‍🤝‍🧑 Recent Patients:\n\n")
	for _, p := range patients {
		fmt.Fprintf(&b, "ID: %s\n", p.ID)
		fmt.Fprintf(&b, "Name: %s\n", p.Name)
		fmt.Fprintf(&b, "Visit Date: %s\n", p.VisitDate)
		fmt.Fprintf(&b, "Reason: %s\n\n", p.Reason)
	}
	return b.String()
}

func formatNotifyResult(patientID, message string, result care.NotifyResult) string {
	if result.Success {
		return fmt.Sprintf("✅ Notification sent to patient %s:\n%q", patientID, message)
	}
	reason := result.Error
	if reason == "" {
		reason = "Unknown error"
	}
	return fmt.Sprintf("❌ Failed to send notification: %s", reason)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

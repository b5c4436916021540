package care

import (
	"context"

	"github.com/carelink/whatsapp-bot/internal/service/ratelimit"
)

// LimitedAPI wraps an API so every call first takes a token from the
// backend-call bucket. The wrapping is explicit rather than hidden in
// transport metadata so the limiting policy stays visible here.
type LimitedAPI struct {
	api     API
	limiter *ratelimit.Limiter
}

// NewLimited wraps api with limiter.
func NewLimited(api API, limiter *ratelimit.Limiter) *LimitedAPI {
	return &LimitedAPI{api: api, limiter: limiter}
}

func (l *LimitedAPI) AuthenticatePatient(ctx context.Context, patientID string) (AuthResult, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.AuthenticatePatient(ctx, patientID)
}

func (l *LimitedAPI) AuthenticateStaff(ctx context.Context, staffID, password string) (AuthResult, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.AuthenticateStaff(ctx, staffID, password)
}

func (l *LimitedAPI) GetRecords(ctx context.Context, subjectID, token string) ([]Record, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.GetRecords(ctx, subjectID, token)
}

func (l *LimitedAPI) GetMedications(ctx context.Context, subjectID, token string) ([]Medication, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.GetMedications(ctx, subjectID, token)
}

func (l *LimitedAPI) GetProcedures(ctx context.Context, subjectID, token string) ([]Procedure, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.GetProcedures(ctx, subjectID, token)
}

func (l *LimitedAPI) GetAppointments(ctx context.Context, subjectID, token string) ([]Appointment, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.GetAppointments(ctx, subjectID, token)
}

func (l *LimitedAPI) SearchPatient(ctx context.Context, query, token string) ([]PatientSummary, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.SearchPatient(ctx, query, token)
}

func (l *LimitedAPI) NotifyPatient(ctx context.Context, patientID, message, token string) (NotifyResult, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.NotifyPatient(ctx, patientID, message, token)
}

func (l *LimitedAPI) GetRecentPatients(ctx context.Context, token string, limit int) ([]RecentPatient, error) {
	l.limiter.WaitForTokens(ratelimit.ClassCareAPI, 1)
	return l.api.GetRecentPatients(ctx, token, limit)
}

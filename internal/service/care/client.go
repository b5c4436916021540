package care

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// API is the backend record system as the bot consumes it. All methods
// return either a populated result or an error the engine converts to a
// retry-later reply.
type API interface {
	AuthenticatePatient(ctx context.Context, patientID string) (AuthResult, error)
	AuthenticateStaff(ctx context.Context, staffID, password string) (AuthResult, error)
	GetRecords(ctx context.Context, subjectID, token string) ([]Record, error)
	GetMedications(ctx context.Context, subjectID, token string) ([]Medication, error)
	GetProcedures(ctx context.Context, subjectID, token string) ([]Procedure, error)
	GetAppointments(ctx context.Context, subjectID, token string) ([]Appointment, error)
	SearchPatient(ctx context.Context, query, token string) ([]PatientSummary, error)
	NotifyPatient(ctx context.Context, patientID, message, token string) (NotifyResult, error)
	GetRecentPatients(ctx context.Context, token string, limit int) ([]RecentPatient, error)
}

// Client talks to the CARE HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// AuthenticatePatient verifies a patient id or registered phone number.
// A rejection is reported in the result, not as an error.
func (c *Client) AuthenticatePatient(ctx context.Context, patientID string) (AuthResult, error) {
	var result AuthResult
	payload := map[string]string{
		"username":  patientID,
		"user_type": "patient",
	}
	err := c.do(ctx, http.MethodPost, "api/v1/auth/login/", "", payload, nil, &result)
	if err != nil {
		return AuthResult{}, err
	}
	if result.SubjectID == "" {
		result.SubjectID = patientID
	}
	return result, nil
}

// AuthenticateStaff verifies staff credentials.
func (c *Client) AuthenticateStaff(ctx context.Context, staffID, password string) (AuthResult, error) {
	var result AuthResult
	payload := map[string]string{
		"username":  staffID,
		"password":  password,
		"user_type": "staff",
	}
	err := c.do(ctx, http.MethodPost, "api/v1/auth/login/", "", payload, nil, &result)
	if err != nil {
		return AuthResult{}, err
	}
	if result.SubjectID == "" {
		result.SubjectID = staffID
	}
	return result, nil
}

// GetRecords lists the patient's medical records.
func (c *Client) GetRecords(ctx context.Context, subjectID, token string) ([]Record, error) {
	var records []Record
	path := fmt.Sprintf("api/v1/patient/%s/records/", url.PathEscape(subjectID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetMedications lists the patient's current medications.
func (c *Client) GetMedications(ctx context.Context, subjectID, token string) ([]Medication, error) {
	var meds []Medication
	path := fmt.Sprintf("api/v1/patient/%s/medication/", url.PathEscape(subjectID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &meds); err != nil {
		return nil, err
	}
	return meds, nil
}

// GetProcedures lists the patient's procedure history.
func (c *Client) GetProcedures(ctx context.Context, subjectID, token string) ([]Procedure, error) {
	var procs []Procedure
	path := fmt.Sprintf("api/v1/patient/%s/procedure/", url.PathEscape(subjectID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// GetAppointments lists the patient's upcoming appointments.
func (c *Client) GetAppointments(ctx context.Context, subjectID, token string) ([]Appointment, error) {
	var appts []Appointment
	path := fmt.Sprintf("api/v1/patient/%s/get_appointments/", url.PathEscape(subjectID))
	if err := c.do(ctx, http.MethodGet, path, token, nil, nil, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// SearchPatient finds patients matching query.
func (c *Client) SearchPatient(ctx context.Context, query, token string) ([]PatientSummary, error) {
	var hits []PatientSummary
	params := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "api/v1/patient/search/", token, nil, params, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// NotifyPatient sends a notification to patientID on behalf of staff.
func (c *Client) NotifyPatient(ctx context.Context, patientID, message, token string) (NotifyResult, error) {
	var result NotifyResult
	path := fmt.Sprintf("api/v1/patient/%s/notification/", url.PathEscape(patientID))
	payload := map[string]string{"message": message}
	if err := c.do(ctx, http.MethodPost, path, token, payload, nil, &result); err != nil {
		return NotifyResult{}, err
	}
	return result, nil
}

// GetRecentPatients lists the most recently seen patients, up to limit.
func (c *Client) GetRecentPatients(ctx context.Context, token string, limit int) ([]RecentPatient, error) {
	if limit <= 0 {
		limit = 5
	}
	var patients []RecentPatient
	params := url.Values{"limit": {strconv.Itoa(limit)}}
	if err := c.do(ctx, http.MethodGet, "api/v1/patient/recent/", token, nil, params, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// do performs one JSON request. token, when set, overrides the service
// api key for per-user authorization.
func (c *Client) do(ctx context.Context, method, path, token string, payload any, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("care: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("care: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	bearer := c.apiKey
	if token != "" {
		bearer = token
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("care: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"path":   path,
		}).Error("care api request failed")
		return fmt.Errorf("care: %s %s: unexpected status %d: %s", method, path, resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("care: decode response: %w", err)
	}
	return nil
}

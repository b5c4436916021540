package bot

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	botmodel "github.com/carelink/whatsapp-bot/internal/model/bot"
	"github.com/carelink/whatsapp-bot/internal/service/care"
	"github.com/carelink/whatsapp-bot/internal/service/messagelog"
	"github.com/carelink/whatsapp-bot/internal/service/session"
)

// Global command keywords recognized in every state.
const (
	cmdHelp    = "help"
	cmdLogout  = "logout"
	cmdRestart = "restart"
)

// replyIDCommands maps interactive button and list reply IDs to the
// canonical text command each one stands for. Interactive input takes no
// separate logic path.
var replyIDCommands = map[string]string{
	"patient_access":       "patient",
	"staff_access":         "staff",
	"help_info":            "help",
	"help":                 "help",
	"patient_records":      "records",
	"patient_medicines":    "medicines",
	"patient_procedures":   "procedures",
	"patient_appointments": "appointments",
	"staff_patients":       "patients",
}

// Engine is the conversation state machine. Given an identity and an
// inbound event it advances the session and produces the reply text. It
// never returns an error: every failure tier maps to a fixed reply so
// the transport layer has one success path.
type Engine struct {
	sessions *session.Store
	careAPI  care.API
	audit    messagelog.Recorder
}

// New wires the engine to its collaborators. careAPI is expected to be
// rate-limit wrapped already.
func New(sessions *session.Store, careAPI care.API, audit messagelog.Recorder) *Engine {
	return &Engine{sessions: sessions, careAPI: careAPI, audit: audit}
}

// HandleInboundEvent processes one inbound event for identity and
// returns the reply to deliver. The whole event runs under the
// per-identity session lock so concurrent messages from the same user
// serialize.
func (e *Engine) HandleInboundEvent(ctx context.Context, identity string, event botmodel.Event) string {
	e.logMessage(identity, botmodel.DirectionIncoming, inboundContent(event))

	text, ok := canonicalText(event)
	if !ok {
		e.logMessage(identity, botmodel.DirectionOutgoing, unsupportedEventReply)
		return unsupportedEventReply
	}

	var reply string
	err := e.sessions.Update(identity, func(sc *session.Scope) error {
		reply = e.dispatch(ctx, sc, text)
		return nil
	})
	if err != nil {
		logrus.WithField("identity", identity).WithError(err).Error("session update failed")
		reply = tryAgainLaterReply
	}

	e.logMessage(identity, botmodel.DirectionOutgoing, reply)
	return reply
}

// canonicalText reduces any event kind to the text command fed to the
// transition table.
func canonicalText(event botmodel.Event) (string, bool) {
	switch event.Kind {
	case botmodel.EventText:
		return event.Body, true
	case botmodel.EventButtonReply, botmodel.EventListReply:
		if cmd, ok := replyIDCommands[event.ReplyID]; ok {
			return cmd, true
		}
		return "", true // falls through to the unrecognized reply in dispatch
	default:
		return "", false
	}
}

func inboundContent(event botmodel.Event) string {
	if event.Kind == botmodel.EventText {
		return event.Body
	}
	return string(event.Kind) + ":" + event.ReplyID
}

// dispatch runs the transition table with the per-identity lock held.
func (e *Engine) dispatch(ctx context.Context, sc *session.Scope, text string) string {
	sess := sc.Session()
	command := strings.ToLower(strings.TrimSpace(text))

	logrus.WithFields(logrus.Fields{
		"identity": sess.Identity,
		"state":    sess.State,
	}).Debug("processing inbound text")

	// Global commands apply in every state before state dispatch.
	switch command {
	case cmdLogout:
		sc.Logout()
		return logoutReply
	case cmdHelp:
		return e.helpFor(sc)
	case cmdRestart:
		sc.Clear()
		return e.welcome(sc)
	}

	switch sess.State {
	case botmodel.StateNew:
		return e.welcome(sc)
	case botmodel.StateUserTypeSelection:
		return e.selectUserType(sc, command)
	case botmodel.StatePatientAuth:
		return e.authenticatePatient(ctx, sc, text)
	case botmodel.StateStaffAuth:
		return e.authenticateStaff(ctx, sc, text)
	case botmodel.StatePatientMenu:
		return e.patientCommand(ctx, sc, command)
	case botmodel.StateStaffMenu:
		return e.staffCommand(ctx, sc, text)
	default:
		return sessionNotRecognizedReply
	}
}

// welcome starts the role-selection flow.
func (e *Engine) welcome(sc *session.Scope) string {
	sc.UpdateState(botmodel.StateUserTypeSelection, nil)
	return welcomeReply
}

func (e *Engine) selectUserType(sc *session.Scope, command string) string {
	switch {
	case strings.Contains(command, "patient"):
		sc.UpdateState(botmodel.StatePatientAuth, nil)
		return patientAuthPrompt
	case strings.Contains(command, "staff"):
		sc.UpdateState(botmodel.StateStaffAuth, nil)
		return staffAuthPrompt
	case strings.Contains(command, "help"):
		return generalHelpReply
	case command == "":
		return unrecognizedSelectionReply
	default:
		return roleReprompt
	}
}

func (e *Engine) authenticatePatient(ctx context.Context, sc *session.Scope, text string) string {
	patientID := strings.TrimSpace(text)
	if len(patientID) < 5 {
		return invalidPatientIDReply
	}

	result, err := e.careAPI.AuthenticatePatient(ctx, patientID)
	if err != nil {
		logrus.WithField("identity", sc.Session().Identity).WithError(err).Error("patient authentication call failed")
		return authRetryLaterReply
	}
	if !result.Authenticated {
		logrus.WithFields(logrus.Fields{
			"identity":   sc.Session().Identity,
			"patient_id": patientID,
		}).Warn("patient authentication rejected")
		return patientAuthFailedReply
	}

	subjectID := result.SubjectID
	if subjectID == "" {
		subjectID = patientID
	}
	if err := sc.Authenticate(botmodel.UserTypePatient, subjectID, result.Token); err != nil {
		logrus.WithError(err).Error("failed to persist patient authentication")
		return authRetryLaterReply
	}
	sc.UpdateState(botmodel.StatePatientMenu, nil)

	logrus.WithFields(logrus.Fields{
		"identity":   sc.Session().Identity,
		"patient_id": subjectID,
	}).Info("patient authenticated")
	return patientWelcomeReply(result.Name)
}

func (e *Engine) authenticateStaff(ctx context.Context, sc *session.Scope, text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, ":") || len(trimmed) < 8 {
		return invalidStaffCredentialsReply
	}
	staffID, password, _ := strings.Cut(trimmed, ":")
	if staffID == "" || len(password) < 6 {
		return invalidStaffPasswordReply
	}

	result, err := e.careAPI.AuthenticateStaff(ctx, staffID, password)
	if err != nil {
		logrus.WithField("identity", sc.Session().Identity).WithError(err).Error("staff authentication call failed")
		return authRetryLaterReply
	}
	if !result.Authenticated {
		logrus.WithFields(logrus.Fields{
			"identity": sc.Session().Identity,
			"staff_id": staffID,
		}).Warn("staff authentication rejected")
		return staffAuthFailedReply
	}

	subjectID := result.SubjectID
	if subjectID == "" {
		subjectID = staffID
	}
	if err := sc.Authenticate(botmodel.UserTypeStaff, subjectID, result.Token); err != nil {
		logrus.WithError(err).Error("failed to persist staff authentication")
		return authRetryLaterReply
	}
	sc.UpdateState(botmodel.StateStaffMenu, map[string]string{
		botmodel.AttrStaffName: result.Name,
		botmodel.AttrStaffRole: result.Role,
	})

	logrus.WithFields(logrus.Fields{
		"identity": sc.Session().Identity,
		"staff_id": subjectID,
		"role":     result.Role,
	}).Info("staff authenticated")
	return staffWelcomeReply(result.Name, result.Role)
}

func (e *Engine) patientCommand(ctx context.Context, sc *session.Scope, command string) string {
	sess := sc.Session()
	patientID := sess.Attributes[botmodel.AttrUserID]
	if patientID == "" || sess.Token == "" {
		// Should be unreachable given the session invariants; guards
		// against store/issuer disagreement.
		return sessionExpiredReply
	}
	// Backend credential from authentication; empty falls back to the
	// client's service key.
	tok := sess.Attributes[botmodel.AttrCareToken]

	switch command {
	case "records":
		records, err := e.careAPI.GetRecords(ctx, patientID, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "records", err)
		}
		return formatRecords(records)
	case "medicines":
		meds, err := e.careAPI.GetMedications(ctx, patientID, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "medicines", err)
		}
		return formatMedications(meds)
	case "procedures":
		procs, err := e.careAPI.GetProcedures(ctx, patientID, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "procedures", err)
		}
		return formatProcedures(procs)
	case "appointments":
		appts, err := e.careAPI.GetAppointments(ctx, patientID, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "appointments", err)
		}
		return formatAppointments(appts)
	default:
		return unrecognizedCommandReply
	}
}

// parseNotify extracts the target and message of a notify command. A
// malformed command is an explicit parse result, not an exception path.
func parseNotify(text string) (patientID, message string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return "", "", false
	}
	return fields[1], strings.Join(fields[2:], " "), true
}

func (e *Engine) staffCommand(ctx context.Context, sc *session.Scope, text string) string {
	sess := sc.Session()
	staffID := sess.Attributes[botmodel.AttrUserID]
	if staffID == "" || sess.Token == "" {
		return sessionExpiredReply
	}
	tok := sess.Attributes[botmodel.AttrCareToken]

	trimmed := strings.TrimSpace(text)
	command := strings.ToLower(trimmed)

	switch {
	case strings.HasPrefix(command, "search "):
		query := strings.TrimSpace(trimmed[len("search "):])
		hits, err := e.careAPI.SearchPatient(ctx, query, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "search", err)
		}
		return formatSearchResults(query, hits)
	case strings.HasPrefix(command, "notify "):
		patientID, message, ok := parseNotify(trimmed)
		if !ok {
			return notifyUsageReply
		}
		result, err := e.careAPI.NotifyPatient(ctx, patientID, message, tok)
		if err != nil {
			return e.backendFailure(sess.Identity, "notify", err)
		}
		return formatNotifyResult(patientID, message, result)
	case command == "patients":
		patients, err := e.careAPI.GetRecentPatients(ctx, tok, 5)
		if err != nil {
			return e.backendFailure(sess.Identity, "patients", err)
		}
		return formatRecentPatients(patients)
	default:
		return unrecognizedCommandReply
	}
}

// helpFor resolves contextual help by authentication status and user
// type. Help never mutates the session.
func (e *Engine) helpFor(sc *session.Scope) string {
	sess := sc.Session()
	switch {
	case !sess.Authenticated:
		return generalHelpReply
	case sess.UserType == botmodel.UserTypePatient:
		return patientHelpReply
	case sess.UserType == botmodel.UserTypeStaff:
		return staffHelpReply
	default:
		return generalHelpReply
	}
}

func (e *Engine) backendFailure(identity, operation string, err error) string {
	logrus.WithFields(logrus.Fields{
		"identity":  identity,
		"operation": operation,
	}).WithError(err).Error("backend call failed")
	return tryAgainLaterReply
}

func (e *Engine) logMessage(identity, direction, content string) {
	if err := e.audit.Append(identity, direction, content); err != nil {
		logrus.WithField("identity", identity).WithError(err).Warn("message audit append failed")
	}
}

package web

import (
	"errors"
	"net/http"
	"time"

	"weddingapp/internal/alerts"
	"weddingapp/internal/content"
	appLog "weddingapp/internal/log"
	"weddingapp/internal/model"
	"weddingapp/internal/push"
	"weddingapp/internal/rsvp"
)

type alertsResponse struct {
	Alerts    []model.Alert `json:"alerts"`
	FromCache bool          `json:"from_cache"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// handleAlerts serves the latest snapshot. The first request before any
// scheduled sync triggers one synchronously.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	res, at := s.deps.Alerts.Current(r.Context())
	writeJSON(w, http.StatusOK, toAlertsResponse(res, at))
}

func toAlertsResponse(res alerts.Result, at time.Time) alertsResponse {
	list := res.Alerts
	if list == nil {
		list = []model.Alert{}
	}
	return alertsResponse{Alerts: list, FromCache: res.FromCache, FetchedAt: at}
}

type rsvpResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Backup string `json:"backup"`
}

// handleRSVP accepts the RSVP form. The spreadsheet write decides the
// response; the backup write finishes in the background.
func (s *Server) handleRSVP(w http.ResponseWriter, r *http.Request) {
	var form rsvp.Form
	if !decodeJSON(w, r, &form) {
		return
	}

	id, primary, _, err := s.deps.RSVP.Dispatch(r.Context(), form)
	if errors.Is(err, rsvp.ErrInvalidForm) {
		writeError(w, http.StatusBadRequest, "invalid_form", "name and attending are required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not submit RSVP")
		return
	}

	switch primary.Status {
	case rsvp.StatusSent, rsvp.StatusConfirmed:
		writeJSON(w, http.StatusOK, rsvpResponse{Status: primary.Status, ID: id, Backup: "pending"})
	case rsvp.StatusSkipped:
		writeError(w, http.StatusServiceUnavailable, "not_configured", "RSVP sheet is not configured")
	default:
		writeError(w, http.StatusBadGateway, "rsvp_failed", "Submission failed. Please try again.")
	}
}

func (s *Server) handleContent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Content)
}

func (s *Server) handleCountdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, content.CountdownTo(s.deps.Content.WeddingDate, s.deps.Now()))
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	if s.deps.Weather == nil {
		writeError(w, http.StatusServiceUnavailable, "not_configured", "weather is not configured")
		return
	}
	cur, err := s.deps.Weather.Current(r.Context())
	if err != nil {
		appLog.Error("api weather failed", err)
		writeError(w, http.StatusBadGateway, "weather_unavailable", "weather is unavailable right now")
		return
	}
	writeJSON(w, http.StatusOK, cur)
}

type publicConfig struct {
	Firebase    any    `json:"firebase"`
	ProjectID   string `json:"projectId"`
	VAPIDKey    string `json:"vapidKey"`
	PushEnabled bool   `json:"pushEnabled"`
}

// handlePublicConfig exposes the browser-side Firebase settings. These are
// public client identifiers, not credentials.
func (s *Server) handlePublicConfig(w http.ResponseWriter, _ *http.Request) {
	fb := s.cfg.Firebase
	writeJSON(w, http.StatusOK, publicConfig{
		Firebase:    fb.Web,
		ProjectID:   fb.ProjectID,
		VAPIDKey:    fb.VAPIDKey,
		PushEnabled: fb.VAPIDKey != "" && s.deps.Tokens != nil,
	})
}

func (s *Server) pushReport(w http.ResponseWriter, r *http.Request) (push.Report, bool) {
	var rep push.Report
	if !decodeJSON(w, r, &rep) {
		return rep, false
	}
	if rep.UserAgent == "" {
		rep.UserAgent = r.UserAgent()
	}
	return rep, true
}

// handlePushRegister runs the permission flow over what the browser
// reported. Refusals are reported in the body with status 200.
func (s *Server) handlePushRegister(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.pushReport(w, r)
	if !ok {
		return
	}
	flow := push.NewFlow(push.NewReportedPlatform(rep), s.cfg.Firebase.VAPIDKey, s.deps.Tokens)
	writeJSON(w, http.StatusOK, flow.RequestPermission(r.Context()))
}

func (s *Server) handlePushToken(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.pushReport(w, r)
	if !ok {
		return
	}
	flow := push.NewFlow(push.NewReportedPlatform(rep), s.cfg.Firebase.VAPIDKey, s.deps.Tokens)
	token, granted := flow.CurrentToken(r.Context())
	writeJSON(w, http.StatusOK, struct {
		Token   string `json:"token,omitempty"`
		Granted bool   `json:"granted"`
	}{Token: token, Granted: granted})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var msg push.Message
	if !decodeJSON(w, r, &msg) {
		return
	}
	if msg.Title == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "title is required")
		return
	}

	sum, err := s.deps.Broadcaster.Broadcast(r.Context(), "custom", msg)
	switch {
	case errors.Is(err, push.ErrNoSender):
		writeError(w, http.StatusServiceUnavailable, "not_configured", "push delivery is not configured")
	case err != nil && sum.Sent == 0:
		appLog.Error("admin broadcast failed", err)
		writeError(w, http.StatusBadGateway, "broadcast_failed", err.Error())
	default:
		if err != nil {
			appLog.Error("admin broadcast partially failed", err)
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// handleAlertsRefresh forces a sync and announces urgent alerts the same
// way the scheduled job does.
func (s *Server) handleAlertsRefresh(w http.ResponseWriter, r *http.Request) {
	res, fresh := s.deps.Alerts.Refresh(r.Context())
	announced := 0
	if s.cfg.Alerts.PushUrgent && s.deps.Broadcaster != nil && len(fresh) > 0 {
		announced = s.deps.Broadcaster.AnnounceAlerts(r.Context(), fresh)
	}
	_, at, _ := s.deps.Alerts.Latest()
	writeJSON(w, http.StatusOK, struct {
		alertsResponse
		Source    string `json:"source"`
		Announced int    `json:"announced"`
	}{toAlertsResponse(res, at), res.Source, announced})
}

func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	body := content.ScheduleCalendar(s.deps.Content, s.cfg.Reminders.EventLead, s.deps.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="wedding.ics"`)
	_, _ = w.Write([]byte(body))
}

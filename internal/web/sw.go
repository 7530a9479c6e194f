package web

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"net/http"
	"text/template"

	appLog "weddingapp/internal/log"
)

//go:embed sw.js.tmpl
var swTemplateText string

var swTemplate = template.Must(template.New("sw").Parse(swTemplateText))

type swFirebaseConfig struct {
	APIKey            string `json:"apiKey"`
	AuthDomain        string `json:"authDomain"`
	ProjectID         string `json:"projectId"`
	StorageBucket     string `json:"storageBucket"`
	MessagingSenderID string `json:"messagingSenderId"`
	AppID             string `json:"appId"`
}

// renderServiceWorker fills the messaging service worker with the web
// client config. The config is embedded as a JSON literal.
func (s *Server) renderServiceWorker() ([]byte, error) {
	fb := s.cfg.Firebase
	cfgJSON, err := json.Marshal(swFirebaseConfig{
		APIKey:            fb.Web.APIKey,
		AuthDomain:        fb.Web.AuthDomain,
		ProjectID:         fb.ProjectID,
		StorageBucket:     fb.Web.StorageBucket,
		MessagingSenderID: fb.Web.MessagingSenderID,
		AppID:             fb.Web.AppID,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = swTemplate.Execute(&buf, struct {
		ConfigJSON   string
		DefaultTitle string
		DefaultBody  string
		Icon         string
	}{
		ConfigJSON:   string(cfgJSON),
		DefaultTitle: jsString("Wedding Update 💍"),
		DefaultBody:  jsString("You have a new update from the wedding!"),
		Icon:         jsString("/wedding-icon.png"),
	})
	return buf.Bytes(), err
}

func (s *Server) handleServiceWorker(w http.ResponseWriter, _ *http.Request) {
	body, err := s.renderServiceWorker()
	if err != nil {
		appLog.Error("render service worker failed", err)
		http.Error(w, "service worker unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Service-Worker-Allowed", "/")
	_, _ = w.Write(body)
}

// jsString renders s as a quoted JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

package livereload

import (
	"encoding/json"

	"github.com/olahol/melody"
)

// Browser extensions and livereload.js speak this protocol over websockets
const protocol = "http://livereload.com/protocols/official-7"

type command struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    *bool    `json:"liveCSS,omitempty"`
}

func newWebsocket(r *Reloader) *melody.Melody {
	ws := melody.New()
	ws.HandleConnect(func(s *melody.Session) {
		r.log.Debug("livereload: websocket connected", "remote", s.Request.RemoteAddr)
	})
	ws.HandleDisconnect(func(s *melody.Session) {
		r.log.Debug("livereload: websocket disconnected", "remote", s.Request.RemoteAddr)
	})
	ws.HandleMessage(func(s *melody.Session, msg []byte) {
		var cmd command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			r.log.Debug("livereload: ignoring websocket message", "error", err)
			return
		}
		if cmd.Command != "hello" {
			return
		}
		hello, err := json.Marshal(command{
			Command:    "hello",
			Protocols:  []string{protocol},
			ServerName: "devserve",
		})
		if err != nil {
			return
		}
		if err := s.Write(hello); err != nil {
			r.log.Debug("livereload: unable to write hello", "error", err)
		}
	})
	ws.HandleError(func(s *melody.Session, err error) {
		r.log.Debug("livereload: websocket error", "error", err)
	})
	return ws
}

// reloadCommand always asks for a full page reload
func reloadCommand(changes []Change) ([]byte, error) {
	path := ""
	if len(changes) > 0 {
		path = changes[len(changes)-1].Path
	}
	liveCSS := false
	return json.Marshal(command{
		Command: "reload",
		Path:    path,
		LiveCSS: &liveCSS,
	})
}

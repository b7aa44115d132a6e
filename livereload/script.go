package livereload

import (
	"fmt"
	"net/http"
	"strconv"
)

// openTag starts the injected script. Pages already carrying it aren't
// injected again.
const openTag = `<script type="text/javascript" data-livereload>`

// Client-side livereload script. Opens an event source on the livereload
// path and reloads the page when a "reload" event arrives.
const clientScript = `(function() {
	if (window.__livereload) return
	window.__livereload = true
	const es = new EventSource(%[1]q)
	es.addEventListener("open", function() {
		console.debug("livereload: connected to", %[1]q)
	})
	es.addEventListener("reload", function(e) {
		console.debug("livereload: eventsource got 'reload' event")
		const events = []
		const parts = (e.data || "").split(";")
		for (let i = 0; i < parts.length; i++) {
			const index = parts[i].indexOf(":")
			if (index < 0) continue
			events.push({ op: parts[i].slice(0, index), path: parts[i].slice(index + 1) })
		}
		window.dispatchEvent(new CustomEvent("reload", {
			bubbles: true,
			cancelable: true,
			detail: { events }
		}))
	})
	// Call e.preventDefault() in your own "reload" listener to handle the
	// change yourself.
	window.addEventListener("reload", function(e) {
		if (e.defaultPrevented) return
		console.debug("livereload: reloading")
		window.location.reload()
	})
	window.addEventListener("beforeunload", function() {
		es.close()
	})
})()
`

// scriptTag is injected before the closing body tag
func scriptTag(path string) string {
	return "\n" + openTag + "\n" + fmt.Sprintf(clientScript, path) + "</script>\n"
}

func (r *Reloader) serveScript(w http.ResponseWriter, req *http.Request) {
	script := fmt.Sprintf(clientScript, r.Path)
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(script)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if req.Method == http.MethodHead {
		return
	}
	w.Write([]byte(script))
}

package handlers

import "net/http"

// browserUI is a minimal landing page pointing operators at the file-browser
// API. Served inline since this repo carries no bundled frontend build.
const browserUI = `<!DOCTYPE html>
<html>
<head><title>WOPI Host</title></head>
<body>
<h1>WOPI Host</h1>
<p>Browse files: <a href="/api/files">/api/files</a></p>
<p>Discovery: <a href="/hosting/discovery">/hosting/discovery</a></p>
</body>
</html>
`

// ServeUI serves the browser UI landing page.
func (h *Handler) ServeUI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(browserUI))
}

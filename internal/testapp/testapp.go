// Package testapp serves a small instrumented page used by the live
// end-to-end tests. The page mimics the shape of the chat client the
// harness is built for: a loading spinner that resolves, a message
// composer, console chatter, background fetches, and a performance
// instrumentation object.
package testapp

import (
	"net/http"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>webdrill fixture</title></head>
<body>
  <div class="mx_Spinner">Loading…</div>
  <div class="app" style="display:none">
    <input class="composer" type="text" value="placeholder">
    <button class="send">Send</button>
    <ul class="timeline"></ul>
  </div>
  <script>
    const entries = [];
    window.mxPerformanceMonitor = {
      getEntries: () => entries.slice(),
    };

    const t0 = performance.now();
    console.log("fixture booting");
    setTimeout(() => {
      document.querySelector(".mx_Spinner").style.display = "none";
      document.querySelector(".app").style.display = "block";
      entries.push({name: "login", startTime: t0, duration: performance.now() - t0});
      console.log("fixture ready");
      fetch("/api/ping");
    }, 300);

    document.querySelector(".send").addEventListener("click", () => {
      const input = document.querySelector(".composer");
      const li = document.createElement("li");
      li.textContent = input.value;
      li.className = "message";
      document.querySelector(".timeline").appendChild(li);
      console.log("sent:", input.value);
      input.value = "";
    });
  </script>
</body>
</html>`

// Handler returns the fixture application.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	return mux
}

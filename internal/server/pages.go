package server

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// reloadClient connects to the reload endpoint, refreshes the page on
// "reload" and shows an overlay on "error".
const reloadClient = `<script id="__assetpipe-client">
(function () {
  var overlayId = "__assetpipe-overlay";
  function hideOverlay() {
    var el = document.getElementById(overlayId);
    if (el) el.remove();
  }
  function showOverlay(text) {
    hideOverlay();
    var el = document.createElement("div");
    el.id = overlayId;
    el.setAttribute("style", "` + overlayStyle + `");
    var pre = document.createElement("pre");
    pre.setAttribute("style", "` + overlayPreStyle + `");
    pre.textContent = text;
    el.appendChild(pre);
    el.addEventListener("click", hideOverlay);
    document.body.appendChild(el);
  }
  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "` + wsPath + `");
    ws.onmessage = function (ev) {
      var msg;
      try { msg = JSON.parse(ev.data); } catch (e) { return; }
      if (msg.type === "reload") { location.reload(); }
      else if (msg.type === "error") { showOverlay(msg.content || "build failed"); }
    };
    ws.onclose = function () { setTimeout(connect, 1000); };
  }
  connect();
})();
</script>`

const (
	overlayStyle    = "position:fixed;inset:0;z-index:2147483647;background:rgba(20,20,20,.92);color:#ff6b6b;overflow:auto;padding:2rem;cursor:pointer"
	overlayPreStyle = "white-space:pre-wrap;font:14px/1.5 monospace;margin:0"
)

// errorOverlay renders a failure the same way the reload client does, for
// pages loaded while a failure is outstanding.
func errorOverlay(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="__assetpipe-overlay" style="`+overlayStyle+`">`+
			`<pre style="`+overlayPreStyle+`">`+templ.EscapeString(message)+`</pre></div>`)
		return err
	})
}

// notFoundPage lists what the destination root does contain.
func notFoundPage(requested string, entries []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b bytes.Buffer
		b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Not found</title></head><body>")
		b.WriteString("<h1>Not found: " + templ.EscapeString(requested) + "</h1>")
		if len(entries) == 0 {
			b.WriteString("<p>The output directory is empty. Run <code>assetpipe build</code>.</p>")
		} else {
			b.WriteString("<ul>")
			for _, e := range entries {
				href := templ.EscapeString("/" + e)
				b.WriteString(`<li><a href="` + href + `">` + templ.EscapeString(e) + "</a></li>")
			}
			b.WriteString("</ul>")
		}
		b.WriteString("</body></html>")
		_, err := w.Write(b.Bytes())
		return err
	})
}

func render(ctx context.Context, c templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// inject inserts snippet before the last </body>, or appends it when the
// document has none.
func inject(page, snippet []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), snippet...)
	}
	out := make([]byte, 0, len(page)+len(snippet))
	out = append(out, page[:i]...)
	out = append(out, snippet...)
	return append(out, page[i:]...)
}

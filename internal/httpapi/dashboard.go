package httpapi

import (
	"fmt"
	"net/http"
)

// dashboardHTML is a read-only live view of the event feed.
const dashboardHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>RelaySheet Call Feed</title>
  <style>
    :root {
      --ink: #102223;
      --paper: #f8f4ea;
      --card: #fffdf9;
      --line: #d7cbb3;
      --accent: #1f9d88;
      --accent-2: #e88a3d;
      --danger: #c2483f;
      --muted: #6f7d7d;
      --shadow: 0 18px 36px rgba(16, 34, 35, 0.16);
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      font-family: "Space Grotesk", "Avenir Next", "Segoe UI", sans-serif;
      color: var(--ink);
      background: linear-gradient(140deg, #fff9ef 0%, #f1f8f7 45%, #fffdf9 100%);
      min-height: 100vh;
      padding: 20px;
    }

    .shell { max-width: 1100px; margin: 0 auto; display: grid; gap: 14px; }

    .bar, .panel {
      background: var(--card);
      border: 1px solid var(--line);
      border-radius: 18px;
      padding: 16px;
      box-shadow: var(--shadow);
    }

    h1 { margin: 0; font-size: clamp(1.2rem, 2vw, 1.75rem); }
    h2 { margin: 0 0 10px; font-size: 1rem; }
    .sub { margin-top: 6px; color: var(--muted); font-size: 0.9rem; }
    .mono { font-family: "IBM Plex Mono", "SFMono-Regular", monospace; }

    .cards { display: grid; gap: 10px; grid-template-columns: repeat(5, minmax(120px, 1fr)); }
    .card { background: var(--paper); border: 1px solid var(--line); border-radius: 14px; padding: 12px; }
    .card .label { color: var(--muted); font-size: 0.78rem; text-transform: uppercase; letter-spacing: 0.06em; }
    .card .value { font-size: 1.6rem; font-weight: 700; margin-top: 4px; }
    .card.emergency .value { color: var(--danger); }

    table { width: 100%; border-collapse: collapse; font-size: 0.88rem; }
    th, td { text-align: left; padding: 8px 6px; border-bottom: 1px solid var(--line); }
    th { color: var(--muted); font-weight: 600; }
    tr.emergency td { color: var(--danger); }

    .status-ok { color: var(--accent); }
    .status-warn { color: var(--accent-2); }
    .status-bad { color: var(--danger); }

    @media (max-width: 760px) {
      .cards { grid-template-columns: repeat(2, minmax(120px, 1fr)); }
    }
  </style>
</head>
<body>
  <main class="shell">
    <section class="bar">
      <h1>RelaySheet Call Feed</h1>
      <div class="sub">Rows written by the webhook, live. Feed: <span id="feedURL" class="mono">-</span> | <span id="status" class="status-warn">connecting</span></div>
    </section>

    <section class="cards">
      <div class="card"><div class="label">Booked</div><div class="value" id="count-job.created">0</div></div>
      <div class="card"><div class="label">Rescheduled</div><div class="value" id="count-job.rescheduled">0</div></div>
      <div class="card"><div class="label">Cancelled</div><div class="value" id="count-job.cancelled">0</div></div>
      <div class="card emergency"><div class="label">Emergencies</div><div class="value" id="count-emergency.logged">0</div></div>
      <div class="card"><div class="label">Inquiries</div><div class="value" id="count-inquiry.collected">0</div></div>
    </section>

    <section class="panel">
      <h2>Recent Events</h2>
      <table>
        <thead><tr><th>Timestamp</th><th>Event</th><th>Table</th><th>Row</th><th>Name</th><th>Phone</th><th>Status</th></tr></thead>
        <tbody id="rows"></tbody>
      </table>
    </section>
  </main>

  <script>
    (function () {
      const maxRows = 200;
      const dom = {
        rows: document.getElementById("rows"),
        status: document.getElementById("status"),
        feedURL: document.getElementById("feedURL"),
      };
      const scheme = window.location.protocol === "https:" ? "wss://" : "ws://";
      const token = new URLSearchParams(window.location.search).get("token") || "";
      const feed = scheme + window.location.host + "/v1/events?token=" + encodeURIComponent(token);
      dom.feedURL.textContent = scheme + window.location.host + "/v1/events";
      let retryMs = 1000;

      function setStatus(text, kind) {
        dom.status.textContent = text;
        dom.status.className = "status-" + kind;
      }

      function cell(text) {
        const td = document.createElement("td");
        td.textContent = text === undefined || text === null ? "" : String(text);
        return td;
      }

      function render(event) {
        const counter = document.getElementById("count-" + event.type);
        if (counter) {
          counter.textContent = String(Number(counter.textContent) + 1);
        }
        const tr = document.createElement("tr");
        if (event.type === "emergency.logged") {
          tr.className = "emergency";
        }
        [event.timestamp, event.type, event.table, event.position, event.name, event.phone_number, event.status]
          .forEach(function (value) { tr.appendChild(cell(value)); });
        dom.rows.insertBefore(tr, dom.rows.firstChild);
        while (dom.rows.children.length > maxRows) {
          dom.rows.removeChild(dom.rows.lastChild);
        }
      }

      function connect() {
        const ws = new WebSocket(feed);
        ws.onopen = function () {
          retryMs = 1000;
          setStatus("live", "ok");
        };
        ws.onmessage = function (msg) {
          try {
            render(JSON.parse(msg.data));
          } catch (err) {
            setStatus("bad event: " + err.message, "bad");
          }
        };
        ws.onclose = function () {
          setStatus("disconnected, retrying in " + Math.round(retryMs / 1000) + "s", "warn");
          window.setTimeout(connect, retryMs);
          retryMs = Math.min(retryMs * 2, 30000);
        };
      }

      connect();
    })();
  </script>
</body>
</html>`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, correlationID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", correlationID)
		return
	}
	if !s.checkEventsAccess(w, r, correlationID) {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Referrer-Policy", "no-referrer")
	_, _ = fmt.Fprint(w, dashboardHTML)
}

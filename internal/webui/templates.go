package webui

import (
	"html/template"
	"time"

	"github.com/fencewatch/fencewatch/internal/backend"
	"github.com/fencewatch/fencewatch/internal/collector"
	"github.com/fencewatch/fencewatch/internal/notifier"
	"github.com/fencewatch/fencewatch/internal/types"
)

// DashboardData is everything the dashboard page renders
type DashboardData struct {
	Version   string
	Commit    string
	BuildDate string
	Uptime    string

	Stream   collector.Health
	Stats    *backend.Stats
	StatsErr string
	Alerts   []types.AlertEvent
	FeedCap  int
	Notices  []notifier.Notice
	Logs     []LogEntry

	StreamURL  string
	BackendURL string
	ConfigPath string
}

// Templates contains all HTML templates for the web UI
var Templates = template.Must(template.New("").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal", "panic":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug", "trace":
			return "log-debug"
		default:
			return "log-info"
		}
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Local().Format("15:04:05")
	},
}).Parse(`
{{define "base"}}
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Fencewatch</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --text-muted: #6e7681;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-blue: #58a6ff;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
        }
        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }
        header {
            display: flex;
            justify-content: space-between;
            align-items: center;
            margin-bottom: 2rem;
            padding-bottom: 1.5rem;
            border-bottom: 1px solid var(--border-color);
        }
        h1 { font-size: 1.75rem; font-weight: 600; }
        .status-badge {
            display: flex;
            align-items: center;
            gap: 0.5rem;
            padding: 0.5rem 1rem;
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 20px;
            font-size: 0.875rem;
        }
        .status-dot { width: 8px; height: 8px; border-radius: 50%; background: var(--accent-red); }
        .status-dot.open { background: var(--accent-green); }
        .stats { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; margin-bottom: 2rem; }
        .stat-card, .card {
            background: var(--bg-secondary);
            border: 1px solid var(--border-color);
            border-radius: 12px;
        }
        .stat-card { padding: 1.25rem; }
        .stat-label { color: var(--text-secondary); font-size: 0.8125rem; }
        .stat-value { font-size: 2rem; font-weight: 600; color: var(--accent-blue); }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 1.5rem; margin-bottom: 1.5rem; }
        .card-header { padding: 1rem 1.25rem; border-bottom: 1px solid var(--border-color); font-weight: 600; }
        .card-body { padding: 1rem 1.25rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 500; }
        .event { padding: 0.125rem 0.5rem; border-radius: 4px; font-size: 0.75rem; }
        .event.entry { background: rgba(63, 185, 80, 0.15); color: var(--accent-green); }
        .event.exit { background: rgba(210, 153, 34, 0.15); color: var(--accent-yellow); }
        .empty { color: var(--text-muted); text-align: center; padding: 2rem; }
        .config-row { display: flex; justify-content: space-between; font-size: 0.875rem; padding: 0.25rem 0; }
        .config-value { font-family: monospace; color: var(--text-secondary); }
        .log-container { max-height: 320px; overflow-y: auto; font-family: monospace; font-size: 0.75rem; }
        .log-entry { display: flex; gap: 0.75rem; padding: 0.125rem 1.25rem; }
        .log-time { color: var(--text-muted); }
        .log-error .log-level { color: var(--accent-red); }
        .log-warn .log-level { color: var(--accent-yellow); }
        .log-debug .log-level { color: var(--text-muted); }
        .log-info .log-level { color: var(--accent-blue); }
        input, select, button {
            background: var(--bg-tertiary);
            color: var(--text-primary);
            border: 1px solid var(--border-color);
            border-radius: 6px;
            padding: 0.375rem 0.625rem;
            margin: 0.125rem 0;
        }
        button { cursor: pointer; }
        #toasts { position: fixed; top: 1rem; right: 1rem; display: flex; flex-direction: column; gap: 0.5rem; }
        .toast { padding: 0.75rem 1rem; border-radius: 8px; background: var(--bg-tertiary); border-left: 4px solid var(--accent-blue); }
        .toast.warning { border-left-color: var(--accent-yellow); }
    </style>
</head>
<body>
    <div class="container">
        {{template "content" .}}
    </div>
    <div id="toasts">
        {{range .Notices}}<div class="toast {{.Level}}">{{.Message}}</div>{{end}}
    </div>
    <script>
        function escapeHtml(text) {
            const div = document.createElement('div');
            div.textContent = text;
            return div.innerHTML;
        }

        function renderAlerts(alerts) {
            const body = document.getElementById('alerts');
            if (!body) return;
            if (!alerts.length) {
                body.innerHTML = '<tr><td colspan="5" class="empty">No alerts yet</td></tr>';
                return;
            }
            body.innerHTML = alerts.map(a =>
                '<tr><td>' + new Date(a.timestamp).toLocaleTimeString() + '</td>' +
                '<td>' + escapeHtml(a.vehicle.vehicle_number || '') + '</td>' +
                '<td>' + escapeHtml(a.vehicle.driver_name || '') + '</td>' +
                '<td>' + escapeHtml(a.geofence.geofence_name || '') + '</td>' +
                '<td><span class="event ' + a.event_type + '">' + a.event_type + '</span></td></tr>'
            ).join('');
        }

        function renderNotices(notices) {
            document.getElementById('toasts').innerHTML = notices.map(n =>
                '<div class="toast ' + n.level + '">' + escapeHtml(n.message) + '</div>'
            ).join('');
        }

        setInterval(() => {
            fetch('/api/alerts').then(r => r.json()).then(d => renderAlerts(d.alerts || []));
            fetch('/api/notices').then(r => r.json()).then(d => renderNotices(d.notices || []));
            fetch('/status').then(r => r.json()).then(d => {
                const dot = document.querySelector('.status-dot');
                const label = document.getElementById('stream-state');
                if (dot && label) {
                    dot.className = 'status-dot ' + d.stream.state;
                    label.textContent = d.stream.state;
                }
            });
        }, 2000);

        let draft = null;
        async function draftCall(path, body) {
            if (!draft) {
                const res = await fetch('/api/drafts', { method: 'POST' });
                draft = (await res.json()).id;
            }
            const res = await fetch('/api/drafts/' + draft + path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: body ? JSON.stringify(body) : undefined,
            });
            const data = await res.json();
            if (res.status === 404) {
                draft = null;
                document.getElementById('draft-status').textContent = 'draft expired, start again';
                return false;
            }
            document.getElementById('draft-status').textContent =
                res.ok ? (data.points ? data.points.length + ' points' : 'ok') : (data.error || 'failed');
            return res.ok;
        }
        window.addEventListener('pagehide', () => {
            if (draft) {
                fetch('/api/drafts/' + draft, { method: 'DELETE', keepalive: true });
            }
        });
        function addPoint() {
            draftCall('/points', {
                lat: parseFloat(document.getElementById('lat').value),
                lng: parseFloat(document.getElementById('lng').value),
            });
        }
        function resetDraft() { draftCall('/reset'); }
        function submitDraft() {
            draftCall('/submit', {
                name: document.getElementById('gf-name').value,
                description: document.getElementById('gf-desc').value,
                category: document.getElementById('gf-category').value,
            });
        }
    </script>
</body>
</html>
{{end}}

{{define "content"}}
        <header>
            <div>
                <h1>Fencewatch</h1>
                <span class="stat-label">{{if .Version}}{{.Version}}{{else}}dev{{end}} &middot; up {{.Uptime}}</span>
            </div>
            <div class="status-badge">
                <span class="status-dot {{.Stream.State}}"></span>
                <span>Alert stream: <span id="stream-state">{{.Stream.State}}</span></span>
            </div>
        </header>

        <div class="stats">
            {{if .Stats}}
            <div class="stat-card"><div class="stat-label">Geofences</div><div class="stat-value">{{.Stats.Geofences}}</div></div>
            <div class="stat-card"><div class="stat-label">Vehicles</div><div class="stat-value">{{.Stats.Vehicles}}</div></div>
            <div class="stat-card"><div class="stat-label">Alert rules</div><div class="stat-value">{{.Stats.Alerts}}</div></div>
            <div class="stat-card"><div class="stat-label">Violations</div><div class="stat-value">{{.Stats.Violations}}</div></div>
            {{else}}
            <div class="stat-card"><div class="stat-label">Backend unavailable</div><div class="config-value">{{.StatsErr}}</div></div>
            {{end}}
        </div>

        <div class="grid">
            <div class="card">
                <div class="card-header">Live alerts ({{len .Alerts}}/{{.FeedCap}})</div>
                <div class="card-body">
                    <table>
                        <thead><tr><th>Time</th><th>Vehicle</th><th>Driver</th><th>Geofence</th><th>Event</th></tr></thead>
                        <tbody id="alerts">
                        {{range .Alerts}}
                            <tr>
                                <td>{{clock .Timestamp}}</td>
                                <td>{{.Vehicle.VehicleNumber}}</td>
                                <td>{{.Vehicle.DriverName}}</td>
                                <td>{{.Geofence.GeofenceName}}</td>
                                <td><span class="event {{.EventType}}">{{.EventType}}</span></td>
                            </tr>
                        {{else}}
                            <tr><td colspan="5" class="empty">No alerts yet</td></tr>
                        {{end}}
                        </tbody>
                    </table>
                </div>
            </div>

            <div>
                <div class="card" style="margin-bottom: 1.5rem;">
                    <div class="card-header">New geofence</div>
                    <div class="card-body">
                        <input id="lat" placeholder="lat" size="10"> <input id="lng" placeholder="lng" size="10">
                        <button onclick="addPoint()">Add point</button>
                        <div><input id="gf-name" placeholder="name"></div>
                        <div><input id="gf-desc" placeholder="description"></div>
                        <div>
                            <select id="gf-category">
                                <option value="delivery_zone">delivery_zone</option>
                                <option value="restricted_zone">restricted_zone</option>
                                <option value="toll_zone">toll_zone</option>
                                <option value="customer_area">customer_area</option>
                            </select>
                        </div>
                        <button onclick="submitDraft()">Create</button> <button onclick="resetDraft()">Clear</button>
                        <div class="stat-label" id="draft-status"></div>
                    </div>
                </div>

                <div class="card">
                    <div class="card-header">Stream</div>
                    <div class="card-body">
                        <div class="config-row"><span>URL</span><span class="config-value">{{.StreamURL}}</span></div>
                        <div class="config-row"><span>Connected since</span><span class="config-value">{{clock .Stream.ConnectedSince}}</span></div>
                        <div class="config-row"><span>Last message</span><span class="config-value">{{clock .Stream.LastMessage}}</span></div>
                        <div class="config-row"><span>Messages</span><span class="config-value">{{.Stream.MessageCount}}</span></div>
                        <div class="config-row"><span>Malformed</span><span class="config-value">{{.Stream.DecodeErrors}}</span></div>
                        <div class="config-row"><span>Reconnects</span><span class="config-value">{{.Stream.ReconnectCount}}</span></div>
                        {{if .Stream.LastError}}<div class="config-row"><span>Last error</span><span class="config-value">{{.Stream.LastError}}</span></div>{{end}}
                        <div class="config-row"><span>Backend</span><span class="config-value">{{.BackendURL}}</span></div>
                        {{if .ConfigPath}}<div class="config-row"><span>Config</span><span class="config-value">{{.ConfigPath}}</span></div>{{end}}
                    </div>
                </div>
            </div>
        </div>

        <div class="card">
            <div class="card-header">Recent logs</div>
            <div class="log-container">
                {{range .Logs}}
                <div class="log-entry {{levelClass .Level}}">
                    <span class="log-time">{{.Timestamp.Format "15:04:05"}}</span>
                    <span class="log-level">{{.Level}}</span>
                    <span class="log-message">{{.Message}}</span>
                </div>
                {{end}}
            </div>
        </div>
{{end}}
`))
